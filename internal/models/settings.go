package models

import "time"

// Layout modes for the feed page
const (
	LayoutFeed = "feed"
	LayoutGrid = "grid"
)

// SettingsValues are the UI preferences a user can persist and share
// between devices.
type SettingsValues struct {
	LayoutMode string `json:"layout_mode" toml:"layout_mode"`
	Autoplay   bool   `json:"autoplay" toml:"autoplay"`
	Muted      bool   `json:"muted" toml:"muted"`
	ABREnabled bool   `json:"abr_enabled" toml:"abr_enabled"`
}

type UserSettings struct {
	UserID    string         `gorm:"primaryKey;type:uuid" json:"user_id"`
	Values    SettingsValues `gorm:"embedded" json:"values"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (UserSettings) TableName() string {
	return "user_settings"
}

// SettingsProfile is a named snapshot of SettingsValues
type SettingsProfile struct {
	ID        string         `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string         `gorm:"not null;uniqueIndex:idx_settings_profiles_user_name" json:"user_id"`
	Name      string         `gorm:"not null;uniqueIndex:idx_settings_profiles_user_name" json:"name"`
	Values    SettingsValues `gorm:"serializer:json" json:"values"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (SettingsProfile) TableName() string {
	return "settings_profiles"
}
