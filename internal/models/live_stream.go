package models

import "time"

const (
	LiveStatusScheduled = "scheduled"
	LiveStatusLive      = "live"
	LiveStatusEnded     = "ended"
)

type LiveStream struct {
	ID           string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       string     `gorm:"not null;index" json:"user_id"`
	User         *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Title        string     `gorm:"not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	Status       string     `gorm:"not null;index" json:"status"`
	PlaybackURL  string     `json:"playback_url"`
	ChatChannel  string     `json:"chat_channel"`
	ViewerCount  int        `json:"viewer_count"`
	PeakViewers  int        `json:"peak_viewers"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (LiveStream) TableName() string {
	return "live_streams"
}
