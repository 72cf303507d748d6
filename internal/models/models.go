package models

import (
	"time"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"        json:"id"`
	Email        string    `gorm:"size:255;uniqueIndex;not null"   json:"email"`
	PasswordHash string    `gorm:"size:255;not null"               json:"-"`
	Role         string    `gorm:"size:30;not null;default:USER"   json:"role"`
	Name         string    `gorm:"size:100"                        json:"name"`
	CreatedAt    time.Time `gorm:"not null"                        json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null"                        json:"updated_at"`
}

func (User) TableName() string { return "app_users" }

// RefreshSession is one issued refresh credential. Only the SHA-256 of the
// raw secret is stored; RevokedAt is set at most once.
type RefreshSession struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint       `gorm:"index;not null"           json:"user_id"`
	TokenHash string     `gorm:"size:64;index;not null"   json:"-"`
	ExpiresAt time.Time  `gorm:"index;not null"           json:"expires_at"`
	RevokedAt *time.Time `gorm:"index"                    json:"revoked_at,omitempty"`
	CreatedAt time.Time  `gorm:"not null"                 json:"created_at"`
}

func (RefreshSession) TableName() string { return "auth_refresh_sessions" }

// UsableAt reports whether the session can mint access tokens at now.
func (s *RefreshSession) UsableAt(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

func (s *RefreshSession) Revoked() bool {
	return s.RevokedAt != nil
}
