package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/session_auth/internal/events"
	"github.com/Skotchmaster/session_auth/internal/hash"
	"github.com/Skotchmaster/session_auth/internal/logging"
	"github.com/Skotchmaster/session_auth/internal/metrics"
	"github.com/Skotchmaster/session_auth/internal/models"
	"github.com/Skotchmaster/session_auth/internal/repo"
	"github.com/Skotchmaster/session_auth/internal/tokens"
)

type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
}

// TokenSigner is satisfied by *tokens.Signer.
type TokenSigner interface {
	Issue(userID uint, role string) (string, time.Time, error)
	Verify(token string) (tokens.Identity, error)
}

type SessionStore interface {
	CreateRefreshSession(ctx context.Context, userID uint, tokenHash string, expiresAt time.Time) (uint, error)
	FindActiveRefreshByHash(ctx context.Context, tokenHash string) (*models.RefreshSession, error)
	RevokeRefreshSession(ctx context.Context, session *models.RefreshSession, at time.Time) (bool, error)
	PurgeExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuthService implements login, refresh and logout on top of a stateless
// access token signer and a stateful refresh session store.
//
// Refresh secrets are not rotated on use: a session stays valid until it
// expires or is revoked by logout. Revoking a session does not invalidate
// access tokens already issued from it.
type AuthService struct {
	Users    UserStore
	Sessions SessionStore
	Hasher   *hash.Hasher
	Signer   TokenSigner

	RefreshTTL time.Duration

	Events  events.Publisher
	Metrics *metrics.Metrics
	Clock   func() time.Time
}

type LoginResult struct {
	AccessToken   string
	RefreshSecret string
	RefreshExp    time.Time
	SessionID     uint
	User          *models.User
}

type RefreshResult struct {
	AccessToken string
	UserID      uint
	Role        string
}

func (s *AuthService) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	user, err := s.Users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		s.Hasher.BurnCompare(password)
		s.countLogin(metrics.ResultRejected)
		l.Warn("login_failed", "reason", "invalid_credentials")
		return nil, ErrInvalidCredentials
	case err != nil:
		s.countLogin(metrics.ResultError)
		l.Error("login_error", "reason", "user lookup failed", "error", err)
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !s.Hasher.CheckPassword(user.PasswordHash, password) {
		s.countLogin(metrics.ResultRejected)
		l.Warn("login_failed", "reason", "invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	raw, secretHash, err := newRefreshSecret()
	if err != nil {
		s.countLogin(metrics.ResultError)
		l.Error("login_error", "reason", "cannot generate refresh secret", "error", err)
		return nil, fmt.Errorf("generate refresh secret: %w", err)
	}

	// Signed first: a stored session must always have been handed to the caller.
	accessToken, _, err := s.Signer.Issue(user.ID, user.Role)
	if err != nil {
		s.countLogin(metrics.ResultError)
		l.Error("login_error", "reason", "cannot sign access token", "error", err)
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	now := s.now()
	refreshExp := now.Add(s.RefreshTTL)
	sessionID, err := s.Sessions.CreateRefreshSession(ctx, user.ID, secretHash, refreshExp)
	if err != nil {
		s.countLogin(metrics.ResultError)
		l.Error("login_error", "reason", "cannot store refresh session", "error", err)
		return nil, fmt.Errorf("store refresh session: %w", err)
	}

	s.publish(ctx, events.Event{Type: events.TypeSessionCreated, UserID: user.ID, SessionID: sessionID, At: now})
	s.countLogin(metrics.ResultOK)
	l.Info("login_successful", "user_id", user.ID, "session_id", sessionID)

	return &LoginResult{
		AccessToken:   accessToken,
		RefreshSecret: raw,
		RefreshExp:    refreshExp,
		SessionID:     sessionID,
		User:          user,
	}, nil
}

// Refresh mints a new access token from a refresh secret. The role comes
// from the stored user, so role changes apply on the next refresh.
func (s *AuthService) Refresh(ctx context.Context, rawSecret string) (*RefreshResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	if rawSecret == "" {
		s.countRefresh(metrics.ResultRejected)
		return nil, ErrNoRefreshCredential
	}

	session, err := s.Sessions.FindActiveRefreshByHash(ctx, HashRefreshSecret(rawSecret))
	switch {
	case errors.Is(err, repo.ErrNotFound):
		s.countRefresh(metrics.ResultRejected)
		l.Warn("refresh_rejected", "reason", "invalid_refresh")
		return nil, ErrInvalidRefresh
	case err != nil:
		s.countRefresh(metrics.ResultError)
		l.Error("refresh_error", "reason", "session lookup failed", "error", err)
		return nil, fmt.Errorf("lookup refresh session: %w", err)
	}

	if !session.UsableAt(s.now()) {
		s.countRefresh(metrics.ResultRejected)
		l.Warn("refresh_rejected", "reason", "refresh_expired", "session_id", session.ID)
		return nil, ErrRefreshExpired
	}

	user, err := s.Users.GetUserByID(ctx, session.UserID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		s.countRefresh(metrics.ResultRejected)
		l.Warn("refresh_rejected", "reason", "user_not_found", "session_id", session.ID)
		return nil, ErrUserNotFound
	case err != nil:
		s.countRefresh(metrics.ResultError)
		l.Error("refresh_error", "reason", "user lookup failed", "error", err)
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	accessToken, _, err := s.Signer.Issue(user.ID, user.Role)
	if err != nil {
		s.countRefresh(metrics.ResultError)
		l.Error("refresh_error", "reason", "cannot sign access token", "error", err)
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	s.countRefresh(metrics.ResultOK)
	return &RefreshResult{
		AccessToken: accessToken,
		UserID:      user.ID,
		Role:        user.Role,
	}, nil
}

// Logout revokes the session behind rawSecret if there is an active one.
// An absent or unknown secret is not an error.
func (s *AuthService) Logout(ctx context.Context, rawSecret string) (bool, error) {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	if rawSecret == "" {
		s.countLogout(false)
		return false, nil
	}

	session, err := s.Sessions.FindActiveRefreshByHash(ctx, HashRefreshSecret(rawSecret))
	if errors.Is(err, repo.ErrNotFound) {
		s.countLogout(false)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup refresh session: %w", err)
	}

	now := s.now()
	revoked, err := s.Sessions.RevokeRefreshSession(ctx, session, now)
	if err != nil {
		return false, fmt.Errorf("revoke refresh session: %w", err)
	}
	s.countLogout(revoked)
	if revoked {
		s.publish(ctx, events.Event{Type: events.TypeSessionRevoked, UserID: session.UserID, SessionID: session.ID, At: now})
		l.Info("session_revoked", "user_id", session.UserID, "session_id", session.ID)
	}
	return revoked, nil
}

// IdentifyCaller verifies an access token without touching storage.
func (s *AuthService) IdentifyCaller(accessToken string) (tokens.Identity, error) {
	id, err := s.Signer.Verify(accessToken)
	if err != nil {
		return tokens.Identity{}, ErrInvalidAccessToken
	}
	return id, nil
}

func (s *AuthService) Me(ctx context.Context, id tokens.Identity) (*models.User, error) {
	user, err := s.Users.GetUserByID(ctx, id.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		logging.FromContext(ctx).Warn("me_failed", "svc", "auth.me", "reason", "user_not_found", "user_id", id.UserID)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// PurgeExpired deletes sessions that expired before now. Maintenance only.
func (s *AuthService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.Sessions.PurgeExpiredBefore(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	if s.Metrics != nil {
		s.Metrics.Purged.Add(float64(n))
	}
	return n, nil
}

func (s *AuthService) publish(ctx context.Context, e events.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, e); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "type", e.Type, "error", err)
	}
}

func (s *AuthService) countLogin(result string) {
	if s.Metrics != nil {
		s.Metrics.Logins.WithLabelValues(result).Inc()
	}
}

func (s *AuthService) countRefresh(result string) {
	if s.Metrics != nil {
		s.Metrics.Refreshes.WithLabelValues(result).Inc()
	}
}

func (s *AuthService) countLogout(revoked bool) {
	if s.Metrics != nil {
		label := "false"
		if revoked {
			label = "true"
		}
		s.Metrics.Logouts.WithLabelValues(label).Inc()
	}
}
