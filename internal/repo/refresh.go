package repo

import (
	"context"
	"time"

	"github.com/Skotchmaster/session_auth/internal/models"
)

func (r *GormRepo) CreateRefreshSession(ctx context.Context, userID uint, tokenHash string, expiresAt time.Time) (uint, error) {
	session := models.RefreshSession{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt.UTC(),
	}
	if err := r.DB.WithContext(ctx).Create(&session).Error; err != nil {
		return 0, err
	}
	return session.ID, nil
}

// FindActiveRefreshByHash returns the newest unrevoked session with the given
// hash. Expiry is left to the caller.
func (r *GormRepo) FindActiveRefreshByHash(ctx context.Context, tokenHash string) (*models.RefreshSession, error) {
	var session models.RefreshSession
	err := r.DB.WithContext(ctx).
		Where("token_hash = ? AND revoked_at IS NULL", tokenHash).
		Order("id DESC").
		First(&session).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

// RevokeRefreshSession sets revoked_at once; revoking a revoked session is a no-op.
func (r *GormRepo) RevokeRefreshSession(ctx context.Context, session *models.RefreshSession, at time.Time) (bool, error) {
	at = at.UTC()
	result := r.DB.WithContext(ctx).Model(&models.RefreshSession{}).
		Where("id = ? AND revoked_at IS NULL", session.ID).
		Update("revoked_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		session.RevokedAt = &at
		return true, nil
	}
	return false, nil
}

func (r *GormRepo) PurgeExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.DB.WithContext(ctx).
		Where("expires_at < ?", cutoff.UTC()).
		Delete(&models.RefreshSession{})
	return result.RowsAffected, result.Error
}
