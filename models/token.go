package models

import (
	"time"

	"github.com/google/uuid"
)

// AccessToken tracks an issued JWT by its jti so it can be revoked.
type AccessToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null"`
	Revoked   bool      `gorm:"not null;default:false"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time
}

func (AccessToken) TableName() string { return "oauth_access_tokens" }

// RefreshToken stores only the sha256 of the opaque token handed out.
type RefreshToken struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	AccessTokenID uuid.UUID `gorm:"type:uuid;index;not null"`
	TokenHash     string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	Revoked       bool      `gorm:"not null;default:false"`
	ExpiresAt     time.Time `gorm:"not null"`
	CreatedAt     time.Time
}

func (RefreshToken) TableName() string { return "oauth_refresh_tokens" }
