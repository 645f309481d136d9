package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a Reelhub account
type User struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	Username    string `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName string `gorm:"not null" json:"display_name"`
	Bio         string `gorm:"type:text" json:"bio"`
	AvatarURL   string `json:"avatar_url"`

	// Native auth fields
	PasswordHash *string `gorm:"type:text" json:"-"`
	GoogleID     *string `gorm:"uniqueIndex" json:"-"`

	// Two-factor authentication, required for coin transfers when enabled
	TOTPSecret  *string `gorm:"type:text" json:"-"`
	TOTPEnabled bool    `json:"totp_enabled"`

	IsAdmin bool `json:"is_admin"`

	// Denormalized counters
	VideoCount    int `json:"video_count"`
	FollowerCount int `json:"follower_count"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}
