package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	VideoStatusLive    = "live"
	VideoStatusRemoved = "removed"
)

// Video is a published short video shown in the feed
type Video struct {
	ID              string   `gorm:"primaryKey;type:uuid" json:"id"`
	UserID          string   `gorm:"not null;index" json:"user_id"`
	User            *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Title           string   `gorm:"not null" json:"title"`
	Description     string   `gorm:"type:text" json:"description"`
	Tags            []string `gorm:"serializer:json" json:"tags"`
	VideoURL        string   `gorm:"not null" json:"video_url"`
	ThumbnailURL    string   `json:"thumbnail_url"`
	DurationSeconds float64  `json:"duration_seconds"`
	IsPublic        bool     `json:"is_public"`
	Status          string   `gorm:"not null;index" json:"status"`

	LikeCount int64 `json:"like_count"`
	ViewCount int64 `json:"view_count"`

	// Set when the video was published by the scheduler
	ScheduledVideoID *string `gorm:"index" json:"scheduled_video_id,omitempty"`

	// Stream activity mirroring this video, empty when feeds are disabled
	StreamActivityID string `gorm:"size:64" json:"-"`

	Renditions []VideoRendition `gorm:"foreignKey:VideoID" json:"renditions,omitempty"`

	PublishedAt time.Time      `gorm:"index" json:"published_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Video) TableName() string {
	return "videos"
}

// VideoRendition is one bitrate variant of a video
type VideoRendition struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	VideoID     string `gorm:"not null;index" json:"video_id"`
	Label       string `gorm:"not null" json:"label"` // e.g. "720p"
	Height      int    `gorm:"not null" json:"height"`
	BitrateKbps int    `json:"bitrate_kbps"`
	URL         string `gorm:"not null" json:"url"`
}

func (VideoRendition) TableName() string {
	return "video_renditions"
}

// RenditionSpec describes a rendition before it is attached to a video row
type RenditionSpec struct {
	Label       string `json:"label" binding:"required"`
	Height      int    `json:"height" binding:"required,min=1"`
	BitrateKbps int    `json:"bitrate_kbps"`
	URL         string `json:"url" binding:"required"`
}

// VideoLike records a user liking a video; at most one per user and video
type VideoLike struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_video_likes_user_video" json:"user_id"`
	VideoID   string    `gorm:"not null;uniqueIndex:idx_video_likes_user_video;index" json:"video_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (VideoLike) TableName() string {
	return "video_likes"
}

// VideoView records a playback session of a video
type VideoView struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	VideoID        string    `gorm:"not null;index" json:"video_id"`
	UserID         *string   `gorm:"index" json:"user_id,omitempty"`
	WatchedSeconds float64   `json:"watched_seconds"`
	Completed      bool      `json:"completed"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (VideoView) TableName() string {
	return "video_views"
}
