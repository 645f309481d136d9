// Package videos owns published videos: uploads, the feed, likes and views.
package videos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/metrics"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/notify"
	"github.com/reelhub/backend/internal/search"
	"github.com/reelhub/backend/internal/storage"
	"github.com/reelhub/backend/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrVideoNotFound = errors.New("video not found")
	ErrNotOwner      = errors.New("only the owner can change this video")
	ErrInvalidVideo  = errors.New("invalid video")
)

// CompletionRatio is the share of a video that must be watched for a view to
// count as completed
const CompletionRatio = 0.9

// WatchRewarder is told about completed views
type WatchRewarder interface {
	AwardWatchMilestone(ctx context.Context, userID, videoID string) error
}

// ActivityFeed mirrors public videos and their likes into an external
// activity feed
type ActivityFeed interface {
	PublishVideoActivity(ctx context.Context, video *models.Video) (string, error)
	RemoveVideoActivity(ctx context.Context, video *models.Video) error
	AddLikeReaction(ctx context.Context, userID string, video *models.Video) error
	RemoveLikeReaction(ctx context.Context, userID, videoID string) error
}

// Deps are the optional collaborators of the service; nil fields disable
// the matching side effect.
type Deps struct {
	Storage  storage.Uploader
	Indexer  search.Indexer
	Notifier notify.Notifier
	Rewarder WatchRewarder
	Feed     ActivityFeed
}

// Service manages videos
type Service struct {
	db   *gorm.DB
	deps Deps
	now  func() time.Time
}

func NewService(db *gorm.DB, deps Deps) *Service {
	return &Service{db: db, deps: deps, now: time.Now}
}

// CreateInput describes a video to publish
type CreateInput struct {
	Title           string                 `json:"title" binding:"required,min=1,max=150"`
	Description     string                 `json:"description" binding:"max=2200"`
	Tags            []string               `json:"tags"`
	VideoURL        string                 `json:"video_url" binding:"required,url"`
	ThumbnailURL    string                 `json:"thumbnail_url"`
	DurationSeconds float64                `json:"duration_seconds" binding:"min=0"`
	IsPublic        *bool                  `json:"is_public"`
	Renditions      []models.RenditionSpec `json:"renditions" binding:"dive"`
}

// FeedItem is a video as seen by one viewer
type FeedItem struct {
	models.Video
	Liked bool `json:"liked"`
}

// File is an upload body with its client filename
type File struct {
	Name string
	Body io.Reader
}

// Upload stores the media files and publishes the video
func (s *Service) Upload(ctx context.Context, userID string, video File, thumbnail *File, in CreateInput) (*models.Video, error) {
	if s.deps.Storage == nil {
		return nil, errors.New("storage is not configured")
	}
	if !util.IsValidVideoFile(video.Name) {
		return nil, fmt.Errorf("%w: unsupported video file %q", ErrInvalidVideo, video.Name)
	}

	res, err := s.deps.Storage.Upload(ctx, storage.KindVideo, userID, video.Name, video.Body)
	if err != nil {
		return nil, err
	}
	in.VideoURL = res.URL

	if thumbnail != nil {
		if !util.IsValidImageFile(thumbnail.Name) {
			return nil, fmt.Errorf("%w: unsupported thumbnail %q", ErrInvalidVideo, thumbnail.Name)
		}
		thumb, err := s.deps.Storage.Upload(ctx, storage.KindThumbnail, userID, thumbnail.Name, thumbnail.Body)
		if err != nil {
			return nil, err
		}
		in.ThumbnailURL = thumb.URL
	}

	return s.Create(ctx, userID, in, nil)
}

// Create publishes a video row. scheduledID links it to the scheduled upload
// it came from.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput, scheduledID *string) (*models.Video, error) {
	return s.CreateTx(ctx, s.db, userID, in, scheduledID)
}

// CreateTx is Create inside the caller's transaction
func (s *Service) CreateTx(ctx context.Context, tx *gorm.DB, userID string, in CreateInput, scheduledID *string) (*models.Video, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidVideo)
	}
	if in.VideoURL == "" {
		return nil, fmt.Errorf("%w: video url is required", ErrInvalidVideo)
	}

	isPublic := true
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}

	video := &models.Video{
		UserID:           userID,
		Title:            title,
		Description:      in.Description,
		Tags:             mergeTags(in.Tags, util.ExtractHashtags(in.Description)),
		VideoURL:         in.VideoURL,
		ThumbnailURL:     in.ThumbnailURL,
		DurationSeconds:  in.DurationSeconds,
		IsPublic:         isPublic,
		Status:           models.VideoStatusLive,
		ScheduledVideoID: scheduledID,
		PublishedAt:      s.now().UTC(),
	}
	for _, r := range in.Renditions {
		video.Renditions = append(video.Renditions, models.VideoRendition{
			Label:       r.Label,
			Height:      r.Height,
			BitrateKbps: r.BitrateKbps,
			URL:         r.URL,
		})
	}

	err := tx.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(video).Error; err != nil {
			return fmt.Errorf("failed to create video: %w", err)
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).
			UpdateColumn("video_count", gorm.Expr("video_count + 1")).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Video published", logger.WithUserID(userID), logger.WithVideoID(video.ID))
	s.index(ctx, tx, video)
	s.mirror(ctx, tx, video)
	return video, nil
}

func mergeTags(tags, extracted []string) []string {
	seen := make(map[string]bool, len(tags)+len(extracted))
	out := make([]string, 0, len(tags)+len(extracted))
	for _, t := range append(append([]string(nil), tags...), extracted...) {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func (s *Service) index(ctx context.Context, db *gorm.DB, video *models.Video) {
	if s.deps.Indexer == nil || !video.IsPublic {
		return
	}
	if video.User == nil {
		var user models.User
		if err := db.WithContext(ctx).Select("id", "username").First(&user, "id = ?", video.UserID).Error; err == nil {
			video.User = &user
		}
	}
	if err := s.deps.Indexer.IndexVideo(ctx, video); err != nil {
		// The reconciliation loop picks it up on its next pass
		logger.Log.Warn("Failed to index video", logger.WithVideoID(video.ID), zap.Error(err))
	}
}

func (s *Service) mirror(ctx context.Context, db *gorm.DB, video *models.Video) {
	if s.deps.Feed == nil || !video.IsPublic {
		return
	}
	activityID, err := s.deps.Feed.PublishVideoActivity(ctx, video)
	if err != nil {
		logger.Log.Warn("Failed to mirror video activity", logger.WithVideoID(video.ID), zap.Error(err))
		return
	}
	if activityID == "" {
		return
	}
	video.StreamActivityID = activityID
	if err := db.WithContext(ctx).Model(video).UpdateColumn("stream_activity_id", activityID).Error; err != nil {
		logger.Log.Warn("Failed to record video activity id", logger.WithVideoID(video.ID), zap.Error(err))
	}
}

// Get loads a live video. Private videos are only visible to their owner.
func (s *Service) Get(ctx context.Context, viewerID, videoID string) (*FeedItem, error) {
	var video models.Video
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Renditions").
		Where("id = ? AND status = ?", videoID, models.VideoStatusLive).
		First(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVideoNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to load video: %w", err)
	}
	if !video.IsPublic && video.UserID != viewerID {
		return nil, ErrVideoNotFound
	}

	items, err := s.withLiked(ctx, viewerID, []models.Video{video})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// Feed returns the global feed, newest first
func (s *Service) Feed(ctx context.Context, viewerID string, limit, offset int) ([]FeedItem, error) {
	start := time.Now()
	defer func() { metrics.RecordFeedGeneration("global", time.Since(start)) }()

	var videos []models.Video
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Renditions").
		Where("status = ? AND is_public = ?", models.VideoStatusLive, true).
		Order("published_at DESC, id").
		Limit(limit).Offset(offset).
		Find(&videos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load feed: %w", err)
	}
	return s.withLiked(ctx, viewerID, videos)
}

// UserVideos lists a creator's live videos. Private ones are included only
// for the creator.
func (s *Service) UserVideos(ctx context.Context, viewerID, userID string, limit, offset int) ([]FeedItem, error) {
	query := s.db.WithContext(ctx).
		Preload("Renditions").
		Where("user_id = ? AND status = ?", userID, models.VideoStatusLive)
	if viewerID != userID {
		query = query.Where("is_public = ?", true)
	}

	var videos []models.Video
	if err := query.Order("published_at DESC, id").Limit(limit).Offset(offset).Find(&videos).Error; err != nil {
		return nil, fmt.Errorf("failed to load videos: %w", err)
	}
	return s.withLiked(ctx, viewerID, videos)
}

func (s *Service) withLiked(ctx context.Context, viewerID string, videos []models.Video) ([]FeedItem, error) {
	items := make([]FeedItem, len(videos))
	for i := range videos {
		items[i] = FeedItem{Video: videos[i]}
	}
	if viewerID == "" || len(videos) == 0 {
		return items, nil
	}

	ids := make([]string, len(videos))
	for i, v := range videos {
		ids[i] = v.ID
	}
	var liked []string
	if err := s.db.WithContext(ctx).Model(&models.VideoLike{}).
		Where("user_id = ? AND video_id IN ?", viewerID, ids).
		Pluck("video_id", &liked).Error; err != nil {
		return nil, fmt.Errorf("failed to load likes: %w", err)
	}

	likedSet := make(map[string]bool, len(liked))
	for _, id := range liked {
		likedSet[id] = true
	}
	for i := range items {
		items[i].Liked = likedSet[items[i].ID]
	}
	return items, nil
}

// Delete removes a video. Admins may remove any video.
func (s *Service) Delete(ctx context.Context, user *models.User, videoID string) error {
	var video models.Video
	err := s.db.WithContext(ctx).Preload("Renditions").First(&video, "id = ?", videoID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrVideoNotFound
	} else if err != nil {
		return fmt.Errorf("failed to load video: %w", err)
	}
	if video.UserID != user.ID && !user.IsAdmin {
		return ErrNotOwner
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&video).Update("status", models.VideoStatusRemoved).Error; err != nil {
			return err
		}
		if err := tx.Delete(&video).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ? AND video_count > 0", video.UserID).
			UpdateColumn("video_count", gorm.Expr("video_count - 1")).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}

	if s.deps.Indexer != nil {
		if err := s.deps.Indexer.DeleteVideo(ctx, video.ID); err != nil {
			logger.Log.Warn("Failed to remove video from search", logger.WithVideoID(video.ID), zap.Error(err))
		}
	}
	if s.deps.Feed != nil && video.StreamActivityID != "" {
		if err := s.deps.Feed.RemoveVideoActivity(ctx, &video); err != nil {
			logger.Log.Warn("Failed to remove video activity", logger.WithVideoID(video.ID), zap.Error(err))
		}
	}
	s.deleteMedia(ctx, &video)

	logger.Log.Info("Video deleted", logger.WithUserID(user.ID), logger.WithVideoID(video.ID))
	return nil
}

// deleteMedia removes the objects we host; external URLs are left alone
func (s *Service) deleteMedia(ctx context.Context, video *models.Video) {
	if s.deps.Storage == nil {
		return
	}
	urls := []string{video.VideoURL, video.ThumbnailURL}
	for _, r := range video.Renditions {
		urls = append(urls, r.URL)
	}
	for _, u := range urls {
		key, ok := s.deps.Storage.KeyFromURL(u)
		if !ok {
			continue
		}
		if err := s.deps.Storage.DeleteFile(ctx, key); err != nil {
			logger.Log.Warn("Failed to delete video media", logger.WithVideoID(video.ID), zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *Service) liveVideo(ctx context.Context, tx *gorm.DB, videoID string) (*models.Video, error) {
	var video models.Video
	err := tx.WithContext(ctx).Where("id = ? AND status = ?", videoID, models.VideoStatusLive).First(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVideoNotFound
	}
	return &video, err
}
