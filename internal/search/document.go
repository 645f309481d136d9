package search

import (
	"time"

	"github.com/reelhub/backend/internal/models"
)

// VideoDoc represents a video document for Elasticsearch indexing
type VideoDoc struct {
	ID           string   `json:"id"`
	UserID       string   `json:"user_id"`
	Username     string   `json:"username,omitempty"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags,omitempty"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	LikeCount    int64    `json:"like_count"`
	ViewCount    int64    `json:"view_count"`
	PublishedAt  string   `json:"published_at"`
}

// NewVideoDoc converts a video row. The username is taken from the preloaded
// User when present.
func NewVideoDoc(video *models.Video) VideoDoc {
	doc := VideoDoc{
		ID:           video.ID,
		UserID:       video.UserID,
		Title:        video.Title,
		Description:  video.Description,
		Tags:         video.Tags,
		ThumbnailURL: video.ThumbnailURL,
		LikeCount:    video.LikeCount,
		ViewCount:    video.ViewCount,
		PublishedAt:  video.PublishedAt.UTC().Format(time.RFC3339),
	}
	if video.User != nil {
		doc.Username = video.User.Username
	}
	return doc
}
