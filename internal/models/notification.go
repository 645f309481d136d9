package models

import "time"

// Notification kinds
const (
	NotificationLike          = "like"
	NotificationOrderStatus   = "order_status"
	NotificationVideoPublish  = "video_published"
	NotificationLiveStarted   = "live_started"
	NotificationCoinsReceived = "coins_received"
	NotificationCommission    = "commission"
)

// Delivery channels
const (
	ChannelInApp = "in_app"
	ChannelEmail = "email"
)

// Delivery statuses
const (
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
	DeliverySkipped = "skipped"
)

// Notification is an activity item addressed to a user
type Notification struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string    `gorm:"not null;index" json:"user_id"`
	ActorID    *string   `json:"actor_id,omitempty"`
	Kind       string    `gorm:"not null;index" json:"kind"`
	TargetType string    `json:"target_type,omitempty"`
	TargetID   string    `json:"target_id,omitempty"`
	Message    string    `gorm:"type:text" json:"message"`
	Read       bool      `gorm:"index" json:"read"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

// NotificationPreference toggles delivery channels per notification kind.
// A missing row means the defaults: in-app on, email off.
type NotificationPreference struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"not null;uniqueIndex:idx_notification_prefs_user_kind" json:"user_id"`
	Kind   string `gorm:"not null;uniqueIndex:idx_notification_prefs_user_kind" json:"kind"`
	InApp  bool   `json:"in_app"`
	Email  bool   `json:"email"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (NotificationPreference) TableName() string {
	return "notification_preferences"
}

type NotificationDeliveryLog struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	NotificationID string    `gorm:"not null;index" json:"notification_id"`
	UserID         string    `gorm:"not null;index" json:"user_id"`
	Channel        string    `gorm:"not null" json:"channel"`
	Status         string    `gorm:"not null" json:"status"`
	Error          string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (NotificationDeliveryLog) TableName() string {
	return "notification_delivery_logs"
}
