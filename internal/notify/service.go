// Package notify creates activity items and delivers them in-app over the
// realtime hub and by email, honouring per-kind preferences.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reelhub/backend/internal/email"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/metrics"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/realtime"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUnknownKind = errors.New("unknown notification kind")

// Kinds lists every notification kind a preference can be set for
var Kinds = []string{
	models.NotificationLike,
	models.NotificationOrderStatus,
	models.NotificationVideoPublish,
	models.NotificationLiveStarted,
	models.NotificationCoinsReceived,
	models.NotificationCommission,
}

func knownKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Notifier is what other services use to raise activity items
type Notifier interface {
	Notify(ctx context.Context, in Input) (*models.Notification, error)
}

// Input describes a notification before it is stored
type Input struct {
	UserID     string
	ActorID    string
	Kind       string
	TargetType string
	TargetID   string
	Message    string
	// Subject is the email subject; defaults to Message
	Subject string
}

// Service stores notifications and fans out deliveries
type Service struct {
	db        *gorm.DB
	publisher realtime.Publisher
	mailer    email.Sender
}

var _ Notifier = (*Service)(nil)

// NewService creates the notification service. mailer may be nil, in which
// case email deliveries are logged as skipped.
func NewService(db *gorm.DB, publisher realtime.Publisher, mailer email.Sender) *Service {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &Service{db: db, publisher: publisher, mailer: mailer}
}

// Notify stores the activity item and delivers it on every enabled channel.
// Delivery failures are recorded, never returned.
func (s *Service) Notify(ctx context.Context, in Input) (*models.Notification, error) {
	if !knownKind(in.Kind) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, in.Kind)
	}
	// Users are not notified about their own actions
	if in.ActorID != "" && in.ActorID == in.UserID {
		return nil, nil
	}

	n := &models.Notification{
		UserID:     in.UserID,
		Kind:       in.Kind,
		TargetType: in.TargetType,
		TargetID:   in.TargetID,
		Message:    in.Message,
	}
	if in.ActorID != "" {
		actor := in.ActorID
		n.ActorID = &actor
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	pref, err := s.preference(ctx, in.UserID, in.Kind)
	if err != nil {
		logger.Log.Warn("Failed to load notification preference, using defaults",
			logger.WithUserID(in.UserID), zap.Error(err))
		pref = defaultPreference(in.UserID, in.Kind)
	}

	if pref.InApp {
		s.deliverInApp(ctx, n)
	} else {
		s.logDelivery(ctx, n, models.ChannelInApp, models.DeliverySkipped, "disabled by preference")
	}

	if pref.Email {
		s.deliverEmail(ctx, n, in)
	}

	return n, nil
}

func (s *Service) deliverInApp(ctx context.Context, n *models.Notification) {
	realtime.PublishRow(s.publisher, "notifications", realtime.EventInsert, n, nil)
	s.publisher.SendToUser(n.UserID, realtime.NewMessage(realtime.MessageTypeNotification, realtime.NotificationPayload{
		ID:         n.ID,
		Kind:       n.Kind,
		Message:    n.Message,
		TargetType: n.TargetType,
		TargetID:   n.TargetID,
		CreatedAt:  n.CreatedAt.UnixMilli(),
	}))
	s.logDelivery(ctx, n, models.ChannelInApp, models.DeliverySent, "")
}

func (s *Service) deliverEmail(ctx context.Context, n *models.Notification, in Input) {
	if s.mailer == nil {
		s.logDelivery(ctx, n, models.ChannelEmail, models.DeliverySkipped, "email is not configured")
		return
	}

	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "email").First(&user, "id = ?", n.UserID).Error; err != nil {
		s.logDelivery(ctx, n, models.ChannelEmail, models.DeliveryFailed, err.Error())
		return
	}

	subject := in.Subject
	if subject == "" {
		subject = in.Message
	}
	err := s.mailer.Send(ctx, email.Message{To: user.Email, Subject: subject, Text: in.Message})
	if err != nil {
		logger.Log.Warn("Notification email failed", logger.WithUserID(n.UserID), zap.Error(err))
		s.logDelivery(ctx, n, models.ChannelEmail, models.DeliveryFailed, err.Error())
		return
	}
	s.logDelivery(ctx, n, models.ChannelEmail, models.DeliverySent, "")
}

func (s *Service) logDelivery(ctx context.Context, n *models.Notification, channel, status, errMsg string) {
	metrics.Get().NotificationsTotal.WithLabelValues(channel, status).Inc()

	entry := &models.NotificationDeliveryLog{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Channel:        channel,
		Status:         status,
		Error:          errMsg,
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.Log.Error("Failed to record notification delivery", zap.String("notification_id", n.ID), zap.Error(err))
		return
	}
	realtime.PublishRow(s.publisher, "notification_delivery_logs", realtime.EventInsert, entry, nil)
}

// List returns a page of the user's notifications, newest first, with the total
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	var items []models.Notification
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return items, total, nil
}

// UnreadCount returns the number of unread notifications
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkRead marks the given notifications read, or all of them when ids is empty
func (s *Service) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ? AND read = ?", userID, false)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	res := query.Update("read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeliveryLogs returns the delivery attempts for one of the user's notifications
func (s *Service) DeliveryLogs(ctx context.Context, userID, notificationID string) ([]models.NotificationDeliveryLog, error) {
	var logs []models.NotificationDeliveryLog
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND notification_id = ?", userID, notificationID).
		Order("created_at").
		Find(&logs).Error
	return logs, err
}

func defaultPreference(userID, kind string) models.NotificationPreference {
	return models.NotificationPreference{UserID: userID, Kind: kind, InApp: true, Email: false}
}

func (s *Service) preference(ctx context.Context, userID, kind string) (models.NotificationPreference, error) {
	var pref models.NotificationPreference
	err := s.db.WithContext(ctx).Where("user_id = ? AND kind = ?", userID, kind).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultPreference(userID, kind), nil
	}
	return pref, err
}

// Preferences returns the effective preference for every kind
func (s *Service) Preferences(ctx context.Context, userID string) ([]models.NotificationPreference, error) {
	var stored []models.NotificationPreference
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&stored).Error; err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	byKind := make(map[string]models.NotificationPreference, len(stored))
	for _, p := range stored {
		byKind[p.Kind] = p
	}

	out := make([]models.NotificationPreference, 0, len(Kinds))
	for _, kind := range Kinds {
		if p, ok := byKind[kind]; ok {
			out = append(out, p)
		} else {
			out = append(out, defaultPreference(userID, kind))
		}
	}
	return out, nil
}

// SetPreference upserts the channel toggles for one kind
func (s *Service) SetPreference(ctx context.Context, userID, kind string, inApp, emailOn bool) (*models.NotificationPreference, error) {
	if !knownKind(kind) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	pref := &models.NotificationPreference{
		UserID:    userID,
		Kind:      kind,
		InApp:     inApp,
		Email:     emailOn,
		UpdatedAt: time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"in_app", "email", "updated_at"}),
	}).Create(pref).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save preference: %w", err)
	}

	stored, err := s.preference(ctx, userID, kind)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}
