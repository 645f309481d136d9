// Package scheduler publishes scheduled videos once their publish time has
// passed.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/metrics"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/notify"
	"github.com/reelhub/backend/internal/realtime"
	"github.com/reelhub/backend/internal/videos"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("scheduled video not found")
	ErrNotPending      = errors.New("only pending scheduled videos can be cancelled")
	ErrInvalidSchedule = errors.New("invalid scheduled video")

	// errClaimLost rolls back an item another pass already handled
	errClaimLost = errors.New("scheduled video is no longer pending")
)

// Table is the realtime channel for scheduled video changes
const Table = "scheduled_videos"

// VideoCreator publishes the video row; videos.Service satisfies it
type VideoCreator interface {
	CreateTx(ctx context.Context, tx *gorm.DB, userID string, in videos.CreateInput, scheduledID *string) (*models.Video, error)
}

type Service struct {
	db        *gorm.DB
	videos    VideoCreator
	publisher realtime.Publisher
	notifier  notify.Notifier
	now       func() time.Time
}

// NewService creates the scheduler service. publisher and notifier may be nil.
func NewService(db *gorm.DB, creator VideoCreator, publisher realtime.Publisher, notifier notify.Notifier) *Service {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &Service{db: db, videos: creator, publisher: publisher, notifier: notifier, now: time.Now}
}

type CreateInput struct {
	videos.CreateInput
	PublishAt time.Time `json:"publish_at" binding:"required"`
}

// Create schedules a video for a future publish time
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*models.ScheduledVideo, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidSchedule)
	}
	if in.VideoURL == "" {
		return nil, fmt.Errorf("%w: video url is required", ErrInvalidSchedule)
	}
	if !in.PublishAt.After(s.now()) {
		return nil, fmt.Errorf("%w: publish_at must be in the future", ErrInvalidSchedule)
	}

	isPublic := true
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}
	sv := &models.ScheduledVideo{
		UserID:          userID,
		Title:           title,
		Description:     in.Description,
		Tags:            in.Tags,
		VideoURL:        in.VideoURL,
		ThumbnailURL:    in.ThumbnailURL,
		DurationSeconds: in.DurationSeconds,
		Renditions:      in.Renditions,
		IsPublic:        isPublic,
		PublishAt:       in.PublishAt.UTC(),
		Status:          models.ScheduledStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(sv).Error; err != nil {
		return nil, fmt.Errorf("failed to schedule video: %w", err)
	}

	realtime.PublishRow(s.publisher, Table, realtime.EventInsert, sv, nil)
	logger.Log.Info("Video scheduled", logger.WithUserID(userID),
		zap.String("scheduled_video_id", sv.ID), zap.Time("publish_at", sv.PublishAt))
	return sv, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (*models.ScheduledVideo, error) {
	var sv models.ScheduledVideo
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&sv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sv, nil
}

// List returns the user's scheduled videos by publish time; status filters
// when set
func (s *Service) List(ctx context.Context, userID, status string, limit, offset int) ([]models.ScheduledVideo, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.ScheduledVideo{}).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.ScheduledVideo
	err := q.Order("publish_at ASC").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, total, err
}

// Cancel withdraws a pending scheduled video
func (s *Service) Cancel(ctx context.Context, userID, id string) (*models.ScheduledVideo, error) {
	sv, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	old := *sv

	res := s.db.WithContext(ctx).Model(&models.ScheduledVideo{}).
		Where("id = ? AND status = ?", id, models.ScheduledStatusPending).
		Update("status", models.ScheduledStatusCancelled)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotPending
	}
	sv.Status = models.ScheduledStatusCancelled

	realtime.PublishRow(s.publisher, Table, realtime.EventUpdate, sv, &old)
	return sv, nil
}

// ItemResult is the outcome for one scheduled video in a pass
type ItemResult struct {
	ScheduledVideoID string `json:"scheduled_video_id"`
	VideoID          string `json:"video_id,omitempty"`
	Status           string `json:"status"`
	Error            string `json:"error,omitempty"`
}

// Summary reports a publish pass
type Summary struct {
	Processed int          `json:"processed"`
	Published int          `json:"published"`
	Failed    int          `json:"failed"`
	Results   []ItemResult `json:"results"`
}

// RunOnce publishes up to batchSize due pending videos, oldest first. A
// failed item is marked failed and does not stop the pass.
func (s *Service) RunOnce(ctx context.Context, batchSize int) (*Summary, error) {
	if batchSize <= 0 {
		batchSize = 50
	}
	now := s.now().UTC()

	var due []models.ScheduledVideo
	err := s.db.WithContext(ctx).
		Where("status = ? AND publish_at <= ?", models.ScheduledStatusPending, now).
		Order("publish_at ASC").
		Limit(batchSize).
		Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load due videos: %w", err)
	}

	summary := &Summary{Results: make([]ItemResult, 0, len(due))}
	for i := range due {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		result, ok := s.publishOne(ctx, &due[i])
		if !ok {
			continue
		}
		summary.Processed++
		switch result.Status {
		case models.ScheduledStatusPublished:
			summary.Published++
		case models.ScheduledStatusFailed:
			summary.Failed++
		}
		metrics.Get().SchedulerItemsTotal.WithLabelValues(result.Status).Inc()
		summary.Results = append(summary.Results, result)
	}
	return summary, nil
}

// publishOne returns ok=false when the row was claimed elsewhere
func (s *Service) publishOne(ctx context.Context, sv *models.ScheduledVideo) (ItemResult, bool) {
	old := *sv
	result := ItemResult{ScheduledVideoID: sv.ID}
	now := s.now().UTC()

	var video *models.Video
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		video, err = s.videos.CreateTx(ctx, tx, sv.UserID, videos.CreateInput{
			Title:           sv.Title,
			Description:     sv.Description,
			Tags:            sv.Tags,
			VideoURL:        sv.VideoURL,
			ThumbnailURL:    sv.ThumbnailURL,
			DurationSeconds: sv.DurationSeconds,
			IsPublic:        &sv.IsPublic,
			Renditions:      sv.Renditions,
		}, &sv.ID)
		if err != nil {
			return err
		}

		res := tx.Model(&models.ScheduledVideo{}).
			Where("id = ? AND status = ?", sv.ID, models.ScheduledStatusPending).
			Updates(map[string]interface{}{
				"status":       models.ScheduledStatusPublished,
				"video_id":     video.ID,
				"published_at": now,
				"last_error":   "",
				"attempts":     gorm.Expr("attempts + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errClaimLost
		}
		return nil
	})

	switch {
	case errors.Is(err, errClaimLost):
		return result, false
	case err != nil:
		if !s.markFailed(ctx, sv, err) {
			return result, false
		}
		result.Status = models.ScheduledStatusFailed
		result.Error = err.Error()
		logger.Log.Warn("Scheduled video failed to publish",
			logger.WithUserID(sv.UserID), zap.String("scheduled_video_id", sv.ID), zap.Error(err))
	default:
		videoID := video.ID
		sv.Status = models.ScheduledStatusPublished
		sv.VideoID = &videoID
		sv.PublishedAt = &now
		sv.Attempts++
		result.Status = models.ScheduledStatusPublished
		result.VideoID = videoID
		logger.Log.Info("Scheduled video published",
			logger.WithUserID(sv.UserID), logger.WithVideoID(videoID), zap.String("scheduled_video_id", sv.ID))
		s.notifyPublished(ctx, sv, video)
	}

	realtime.PublishRow(s.publisher, Table, realtime.EventUpdate, sv, &old)
	return result, true
}

func (s *Service) markFailed(ctx context.Context, sv *models.ScheduledVideo, cause error) bool {
	res := s.db.WithContext(ctx).Model(&models.ScheduledVideo{}).
		Where("id = ? AND status = ?", sv.ID, models.ScheduledStatusPending).
		Updates(map[string]interface{}{
			"status":     models.ScheduledStatusFailed,
			"last_error": cause.Error(),
			"attempts":   gorm.Expr("attempts + 1"),
		})
	if res.Error != nil {
		logger.Log.Error("Failed to mark scheduled video failed", zap.String("scheduled_video_id", sv.ID), zap.Error(res.Error))
		return false
	}
	if res.RowsAffected == 0 {
		return false
	}
	sv.Status = models.ScheduledStatusFailed
	sv.LastError = cause.Error()
	sv.Attempts++
	return true
}

func (s *Service) notifyPublished(ctx context.Context, sv *models.ScheduledVideo, video *models.Video) {
	if s.notifier == nil {
		return
	}
	_, err := s.notifier.Notify(ctx, notify.Input{
		UserID:     sv.UserID,
		Kind:       models.NotificationVideoPublish,
		TargetType: "video",
		TargetID:   video.ID,
		Message:    fmt.Sprintf("Your scheduled video %q is now live", video.Title),
	})
	if err != nil {
		logger.Log.Warn("Failed to notify publish", logger.WithVideoID(video.ID), zap.Error(err))
	}
}
