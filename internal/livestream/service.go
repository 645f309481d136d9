// Package livestream manages live broadcasts and their chat rooms.
package livestream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/notify"
	"github.com/reelhub/backend/internal/realtime"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("live stream not found")
	ErrNotOwner     = errors.New("only the streamer can change this stream")
	ErrInvalidState = errors.New("live stream cannot change to that status")
	ErrInvalid      = errors.New("invalid live stream")
	ErrChatDisabled = errors.New("live chat is not configured")
)

// Table is the realtime channel for stream changes
const Table = "live_streams"

// ChatTokenTTL is the lifetime of issued chat tokens
const ChatTokenTTL = 6 * time.Hour

// audienceLimit caps live_started notifications per stream
const audienceLimit = 200

// Chat opens and closes chat rooms; stream.Client satisfies it
type Chat interface {
	APIKey() string
	CreateToken(userID string, expiration time.Time) (string, error)
	CreateLivestreamChannel(ctx context.Context, streamID, ownerID, title string) (string, error)
	CloseLivestreamChannel(ctx context.Context, cid string) error
}

type Service struct {
	db        *gorm.DB
	chat      Chat
	publisher realtime.Publisher
	notifier  notify.Notifier
	now       func() time.Time
}

// NewService creates the livestream service. chat, publisher and notifier may
// be nil; streams then run without chat rooms.
func NewService(db *gorm.DB, chat Chat, publisher realtime.Publisher, notifier notify.Notifier) *Service {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &Service{db: db, chat: chat, publisher: publisher, notifier: notifier, now: time.Now}
}

type CreateInput struct {
	Title        string     `json:"title" binding:"required,min=1,max=150"`
	Description  string     `json:"description" binding:"max=2000"`
	PlaybackURL  string     `json:"playback_url" binding:"omitempty,url"`
	ScheduledFor *time.Time `json:"scheduled_for"`
}

func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*models.LiveStream, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalid)
	}

	ls := &models.LiveStream{
		UserID:       userID,
		Title:        title,
		Description:  in.Description,
		Status:       models.LiveStatusScheduled,
		PlaybackURL:  in.PlaybackURL,
		ScheduledFor: in.ScheduledFor,
	}
	if err := s.db.WithContext(ctx).Create(ls).Error; err != nil {
		return nil, fmt.Errorf("failed to create live stream: %w", err)
	}

	if s.chat != nil {
		cid, err := s.chat.CreateLivestreamChannel(ctx, ls.ID, userID, title)
		if err != nil {
			logger.Log.Warn("Failed to create live chat channel", logger.WithUserID(userID),
				zap.String("stream_id", ls.ID), zap.Error(err))
		} else {
			ls.ChatChannel = cid
			if err := s.db.WithContext(ctx).Model(ls).Update("chat_channel", cid).Error; err != nil {
				return nil, err
			}
		}
	}

	realtime.PublishRow(s.publisher, Table, realtime.EventInsert, ls, nil)
	return ls, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.LiveStream, error) {
	var ls models.LiveStream
	err := s.db.WithContext(ctx).Preload("User").First(&ls, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ls, nil
}

// List returns streams, live ones first, then by creation time
func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]models.LiveStream, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.LiveStream{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var streams []models.LiveStream
	err := q.Preload("User").
		Order(fmt.Sprintf("CASE WHEN status = '%s' THEN 0 ELSE 1 END", models.LiveStatusLive)).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&streams).Error
	return streams, total, err
}

// transition moves an owned stream between statuses
func (s *Service) transition(ctx context.Context, userID, id, to string, from ...string) (*models.LiveStream, *models.LiveStream, error) {
	ls, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if ls.UserID != userID {
		return nil, nil, ErrNotOwner
	}
	old := *ls

	now := s.now().UTC()
	updates := map[string]interface{}{"status": to}
	switch to {
	case models.LiveStatusLive:
		updates["started_at"] = now
		ls.StartedAt = &now
	case models.LiveStatusEnded:
		updates["ended_at"] = now
		updates["viewer_count"] = 0
		ls.EndedAt = &now
		ls.ViewerCount = 0
	}

	res := s.db.WithContext(ctx).Model(&models.LiveStream{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return nil, nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidState, old.Status, to)
	}
	ls.Status = to

	realtime.PublishRow(s.publisher, Table, realtime.EventUpdate, ls, &old)
	return ls, &old, nil
}

// Start takes a scheduled stream live and tells the streamer's audience
func (s *Service) Start(ctx context.Context, userID, id string) (*models.LiveStream, error) {
	ls, _, err := s.transition(ctx, userID, id, models.LiveStatusLive, models.LiveStatusScheduled)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("Live stream started", logger.WithUserID(userID), zap.String("stream_id", id))
	s.notifyAudience(ctx, ls)
	return ls, nil
}

// End finishes a stream and closes its chat room
func (s *Service) End(ctx context.Context, userID, id string) (*models.LiveStream, error) {
	ls, _, err := s.transition(ctx, userID, id, models.LiveStatusEnded, models.LiveStatusScheduled, models.LiveStatusLive)
	if err != nil {
		return nil, err
	}
	if s.chat != nil && ls.ChatChannel != "" {
		if err := s.chat.CloseLivestreamChannel(ctx, ls.ChatChannel); err != nil {
			logger.Log.Warn("Failed to close live chat channel", zap.String("stream_id", id), zap.Error(err))
		}
	}
	logger.Log.Info("Live stream ended", logger.WithUserID(userID), zap.String("stream_id", id),
		zap.Int("peak_viewers", ls.PeakViewers))
	return ls, nil
}

// AdjustViewers applies a join (+1) or leave (-1) to a live stream. The count
// never drops below zero and the peak only grows.
func (s *Service) AdjustViewers(ctx context.Context, id string, delta int) (*models.LiveStream, error) {
	var ls, old models.LiveStream
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&ls, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if ls.Status != models.LiveStatusLive {
			return fmt.Errorf("%w: stream is %s", ErrInvalidState, ls.Status)
		}
		old = ls

		ls.ViewerCount += delta
		if ls.ViewerCount < 0 {
			ls.ViewerCount = 0
		}
		if ls.ViewerCount > ls.PeakViewers {
			ls.PeakViewers = ls.ViewerCount
		}
		return tx.Model(&models.LiveStream{}).Where("id = ?", id).Updates(map[string]interface{}{
			"viewer_count": ls.ViewerCount,
			"peak_viewers": ls.PeakViewers,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	realtime.PublishRow(s.publisher, Table, realtime.EventUpdate, &ls, &old)
	return &ls, nil
}

// ChatCredentials let a client join the stream's chat room
type ChatCredentials struct {
	APIKey    string    `json:"api_key"`
	Token     string    `json:"token"`
	ChannelID string    `json:"channel_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Service) ChatToken(ctx context.Context, userID, id string) (*ChatCredentials, error) {
	if s.chat == nil {
		return nil, ErrChatDisabled
	}
	ls, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ls.ChatChannel == "" || ls.Status == models.LiveStatusEnded {
		return nil, fmt.Errorf("%w: stream has no open chat", ErrInvalidState)
	}

	expiresAt := s.now().Add(ChatTokenTTL)
	token, err := s.chat.CreateToken(userID, expiresAt)
	if err != nil {
		return nil, err
	}
	return &ChatCredentials{
		APIKey:    s.chat.APIKey(),
		Token:     token,
		ChannelID: ls.ChatChannel,
		ExpiresAt: expiresAt,
	}, nil
}

// notifyAudience tells recent likers of the streamer's videos
func (s *Service) notifyAudience(ctx context.Context, ls *models.LiveStream) {
	if s.notifier == nil {
		return
	}
	var audience []string
	err := s.db.WithContext(ctx).Model(&models.VideoLike{}).
		Distinct().
		Joins("JOIN videos ON videos.id = video_likes.video_id").
		Where("videos.user_id = ? AND video_likes.user_id <> ?", ls.UserID, ls.UserID).
		Limit(audienceLimit).
		Pluck("video_likes.user_id", &audience).Error
	if err != nil {
		logger.Log.Warn("Failed to load live audience", zap.String("stream_id", ls.ID), zap.Error(err))
		return
	}

	name := ls.UserID
	if ls.User != nil {
		name = ls.User.Username
	}
	for _, userID := range audience {
		_, err := s.notifier.Notify(ctx, notify.Input{
			UserID:     userID,
			ActorID:    ls.UserID,
			Kind:       models.NotificationLiveStarted,
			TargetType: "live_stream",
			TargetID:   ls.ID,
			Message:    fmt.Sprintf("%s is live: %s", name, ls.Title),
		})
		if err != nil {
			logger.Log.Warn("Failed to notify live start", logger.WithUserID(userID), zap.Error(err))
		}
	}
}
