package models

import "time"

const (
	ScheduledStatusPending   = "pending"
	ScheduledStatusPublished = "published"
	ScheduledStatusFailed    = "failed"
	ScheduledStatusCancelled = "cancelled"
)

// ScheduledVideo is an upload waiting to be published at PublishAt
type ScheduledVideo struct {
	ID              string          `gorm:"primaryKey;type:uuid" json:"id"`
	UserID          string          `gorm:"not null;index" json:"user_id"`
	Title           string          `gorm:"not null" json:"title"`
	Description     string          `gorm:"type:text" json:"description"`
	Tags            []string        `gorm:"serializer:json" json:"tags"`
	VideoURL        string          `json:"video_url"`
	ThumbnailURL    string          `json:"thumbnail_url"`
	DurationSeconds float64         `json:"duration_seconds"`
	Renditions      []RenditionSpec `gorm:"serializer:json" json:"renditions"`
	IsPublic        bool            `json:"is_public"`

	PublishAt   time.Time  `gorm:"not null;index" json:"publish_at"`
	Status      string     `gorm:"not null;index" json:"status"`
	VideoID     *string    `json:"video_id,omitempty"`
	LastError   string     `gorm:"type:text" json:"last_error,omitempty"`
	Attempts    int        `json:"attempts"`
	PublishedAt *time.Time `json:"published_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ScheduledVideo) TableName() string {
	return "scheduled_videos"
}
