package videos

import (
	"context"
	"fmt"

	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/metrics"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/notify"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeVideo records a like and returns the new like count. Liking twice is a
// no-op: the count only moves when a like row is inserted.
func (s *Service) LikeVideo(ctx context.Context, userID, videoID string) (int64, error) {
	var video *models.Video
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if video, err = s.liveVideo(ctx, tx, videoID); err != nil {
			return err
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.VideoLike{UserID: userID, VideoID: videoID})
		if res.Error != nil {
			return fmt.Errorf("failed to like video: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		return tx.Model(video).UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
	})
	if err != nil {
		return 0, err
	}

	count, err := s.likeCount(ctx, videoID)
	if err != nil {
		return 0, err
	}

	if created {
		metrics.Get().LikesTotal.WithLabelValues("like").Inc()
		s.notifyLike(ctx, userID, video)
		if s.deps.Feed != nil {
			if err := s.deps.Feed.AddLikeReaction(ctx, userID, video); err != nil {
				logger.Log.Warn("Failed to mirror like", logger.WithVideoID(video.ID), zap.Error(err))
			}
		}
	}
	return count, nil
}

// UnlikeVideo removes a like and returns the new like count
func (s *Service) UnlikeVideo(ctx context.Context, userID, videoID string) (int64, error) {
	removed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		video, err := s.liveVideo(ctx, tx, videoID)
		if err != nil {
			return err
		}

		res := tx.Where("user_id = ? AND video_id = ?", userID, videoID).Delete(&models.VideoLike{})
		if res.Error != nil {
			return fmt.Errorf("failed to unlike video: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		metrics.Get().LikesTotal.WithLabelValues("unlike").Inc()
		return tx.Model(video).Where("like_count > 0").
			UpdateColumn("like_count", gorm.Expr("like_count - 1")).Error
	})
	if err != nil {
		return 0, err
	}

	if removed && s.deps.Feed != nil {
		if err := s.deps.Feed.RemoveLikeReaction(ctx, userID, videoID); err != nil {
			logger.Log.Warn("Failed to remove mirrored like", logger.WithVideoID(videoID), zap.Error(err))
		}
	}
	return s.likeCount(ctx, videoID)
}

func (s *Service) likeCount(ctx context.Context, videoID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Video{}).Where("id = ?", videoID).
		Select("like_count").Scan(&count).Error
	return count, err
}

func (s *Service) notifyLike(ctx context.Context, userID string, video *models.Video) {
	if s.deps.Notifier == nil {
		return
	}

	var actor models.User
	if err := s.db.WithContext(ctx).Select("id", "username").First(&actor, "id = ?", userID).Error; err != nil {
		return
	}

	_, err := s.deps.Notifier.Notify(ctx, notify.Input{
		UserID:     video.UserID,
		ActorID:    userID,
		Kind:       models.NotificationLike,
		TargetType: "video",
		TargetID:   video.ID,
		Message:    fmt.Sprintf("%s liked your video \"%s\"", actor.Username, video.Title),
	})
	if err != nil {
		logger.Log.Warn("Failed to notify like", logger.WithVideoID(video.ID), zap.Error(err))
	}
}

// ViewInput is a finished or abandoned playback of a video
type ViewInput struct {
	WatchedSeconds float64 `json:"watched_seconds" binding:"min=0"`
}

// RecordView stores a view. userID is empty for anonymous viewers; completed
// views by signed-in users earn the watch milestone reward.
func (s *Service) RecordView(ctx context.Context, userID, videoID string, in ViewInput) (*models.VideoView, error) {
	var view *models.VideoView

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		video, err := s.liveVideo(ctx, tx, videoID)
		if err != nil {
			return err
		}

		view = &models.VideoView{
			VideoID:        videoID,
			WatchedSeconds: in.WatchedSeconds,
			Completed:      video.DurationSeconds > 0 && in.WatchedSeconds >= video.DurationSeconds*CompletionRatio,
		}
		if userID != "" {
			uid := userID
			view.UserID = &uid
		}
		if err := tx.Create(view).Error; err != nil {
			return fmt.Errorf("failed to record view: %w", err)
		}
		return tx.Model(video).UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
	})
	if err != nil {
		return nil, err
	}

	metrics.Get().VideoViewsTotal.WithLabelValues(fmt.Sprint(view.Completed)).Inc()

	if view.Completed && userID != "" && s.deps.Rewarder != nil {
		if err := s.deps.Rewarder.AwardWatchMilestone(ctx, userID, videoID); err != nil {
			logger.Log.Warn("Failed to award watch milestone", logger.WithUserID(userID), logger.WithVideoID(videoID), zap.Error(err))
		}
	}
	return view, nil
}
