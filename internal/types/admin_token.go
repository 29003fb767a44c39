package types

import (
	"time"

	"github.com/google/uuid"
)

// AdminToken stores one admin session: the JWT access token plus an opaque
// refresh token, both rotated on refresh.
type AdminToken struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AdminUserID uuid.UUID  `gorm:"type:uuid;index;not null;column:admin_user_id" json:"admin_user_id"`
	AdminUser   *AdminUser `gorm:"constraint:OnDelete:CASCADE;foreignKey:AdminUserID;references:ID" json:"-"`

	AccessToken  string    `gorm:"uniqueIndex;not null;column:access_token" json:"access_token"`
	RefreshToken string    `gorm:"uniqueIndex;not null;column:refresh_token" json:"refresh_token"`
	ExpiresAt    time.Time `gorm:"not null;column:expires_at" json:"expires_at"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (AdminToken) TableName() string {
	return "admin_token"
}
