package videos

import (
	"context"
	"fmt"

	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/playback"
	"github.com/reelhub/backend/internal/realtime"
)

var (
	_ realtime.FeedSource = (*Service)(nil)
	_ realtime.Liker      = (*Service)(nil)
)

// PlaybackVideos resolves a playback session's feed: the given ids in order,
// or a page of the global feed when ids is empty. Unknown ids are skipped.
func (s *Service) PlaybackVideos(ctx context.Context, userID string, videoIDs []string, offset, limit int) ([]playback.Video, error) {
	var items []FeedItem
	var err error

	if len(videoIDs) == 0 {
		items, err = s.Feed(ctx, userID, limit, offset)
	} else {
		items, err = s.byIDs(ctx, userID, videoIDs)
	}
	if err != nil {
		return nil, err
	}

	out := make([]playback.Video, 0, len(items))
	for _, item := range items {
		out = append(out, ToPlaybackVideo(item))
	}
	return out, nil
}

func (s *Service) byIDs(ctx context.Context, userID string, ids []string) ([]FeedItem, error) {
	var videos []models.Video
	err := s.db.WithContext(ctx).
		Preload("Renditions").
		Where("id IN ? AND status = ?", ids, models.VideoStatusLive).
		Where("is_public = ? OR user_id = ?", true, userID).
		Find(&videos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load videos: %w", err)
	}

	byID := make(map[string]models.Video, len(videos))
	for _, v := range videos {
		byID[v.ID] = v
	}
	ordered := make([]models.Video, 0, len(ids))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			ordered = append(ordered, v)
		}
	}
	return s.withLiked(ctx, userID, ordered)
}

// ToPlaybackVideo converts a feed item for the playback controller
func ToPlaybackVideo(item FeedItem) playback.Video {
	v := playback.Video{
		ID:              item.ID,
		URL:             item.VideoURL,
		DurationSeconds: item.DurationSeconds,
		Liked:           item.Liked,
		LikeCount:       item.LikeCount,
	}
	for _, r := range item.Renditions {
		v.Renditions = append(v.Renditions, playback.Rendition{
			Label:       r.Label,
			Height:      r.Height,
			BitrateKbps: r.BitrateKbps,
			URL:         r.URL,
		})
	}
	return v
}
