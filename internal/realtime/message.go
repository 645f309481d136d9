package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// FlexibleTime handles both Unix millisecond timestamps and RFC3339 strings
type FlexibleTime struct {
	time.Time
}

// UnmarshalJSON accepts Unix milliseconds or an RFC3339 string
func (ft *FlexibleTime) UnmarshalJSON(b []byte) error {
	var ms int64
	if err := json.Unmarshal(b, &ms); err == nil {
		ft.Time = time.UnixMilli(ms).UTC()
		return nil
	}

	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("timestamp must be Unix milliseconds (integer) or RFC3339 string")
	}
	if str == "" {
		ft.Time = time.Time{}
		return nil
	}

	t, err := time.Parse(time.RFC3339Nano, str)
	if err != nil {
		return err
	}
	ft.Time = t
	return nil
}

// MarshalJSON always outputs RFC3339
func (ft FlexibleTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(ft.Time)
}

// Message types for WebSocket communication
const (
	// System messages
	MessageTypeSystem = "system"
	MessageTypePing   = "ping"
	MessageTypePong   = "pong"
	MessageTypeError  = "error"
	MessageTypeAuth   = "auth"

	// Table change subscriptions
	MessageTypeSubscribe    = "subscribe"
	MessageTypeSubscribed   = "subscribed"
	MessageTypeUnsubscribe  = "unsubscribe"
	MessageTypeUnsubscribed = "unsubscribed"
	MessageTypeChange       = "change"

	// Direct notifications
	MessageTypeNotification = "notification"

	// Playback session, driven by the client
	MessageTypePlaybackLoad       = "playback.load"
	MessageTypePlaybackVisibility = "playback.visibility"
	MessageTypePlaybackTap        = "playback.tap"
	MessageTypePlaybackPress      = "playback.press"
	MessageTypePlaybackRelease    = "playback.release"
	MessageTypePlaybackKey        = "playback.key"
	MessageTypePlaybackMedia      = "playback.media"
	MessageTypePlaybackTime       = "playback.time"
	MessageTypePlaybackBuffer     = "playback.buffer"
	MessageTypePlaybackNetwork    = "playback.network"
	MessageTypePlaybackSettings   = "playback.settings"
	MessageTypePlaybackTick       = "playback.tick"
	MessageTypePlaybackDismiss    = "playback.dismiss_mini_player"
	MessageTypePlaybackState      = "playback.state"

	// Playback session, sent by the server
	MessageTypePlaybackCommands = "playback.commands"
	MessageTypePlaybackSnapshot = "playback.snapshot"
)

// Message represents a WebSocket message
type Message struct {
	// Type identifies the message type for routing
	Type string `json:"type"`

	// Payload contains the message-specific data
	Payload interface{} `json:"payload,omitempty"`

	// ID is a unique message identifier for acknowledgment
	ID string `json:"id,omitempty"`

	// ReplyTo references the original message ID for responses
	ReplyTo string `json:"reply_to,omitempty"`

	// Timestamp when the message was created (accepts Unix ms or RFC3339)
	Timestamp FlexibleTime `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: FlexibleTime{Time: time.Now().UTC()},
	}
}

// NewReply creates a reply message to an original message
func NewReply(original *Message, msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		ReplyTo:   original.ID,
		Payload:   payload,
		Timestamp: FlexibleTime{Time: time.Now().UTC()},
	}
}

// NewErrorMessage creates an error message
func NewErrorMessage(code string, message string) *Message {
	return NewMessage(MessageTypeError, ErrorPayload{Code: code, Message: message})
}

// ParsePayload unmarshals the payload into a specific type
func (m *Message) ParsePayload(target interface{}) error {
	if m.Payload == nil {
		return nil
	}
	// Re-marshal and unmarshal to properly type the payload
	data, err := json.Marshal(m.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// ErrorPayload represents an error message payload
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PingPayload represents a ping message payload
type PingPayload struct {
	ClientTime int64 `json:"client_time"`
}

// PongPayload represents a pong message payload
type PongPayload struct {
	ClientTime int64 `json:"client_time"`
	ServerTime int64 `json:"server_time"`
	Latency    int64 `json:"latency_ms"`
}

// AuthPayload represents authentication message payload
type AuthPayload struct {
	UserID string `json:"user_id,omitempty"`
	Status string `json:"status,omitempty"`
}

// SystemPayload represents system event payloads
type SystemPayload struct {
	Event   string                 `json:"event"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// SubscribePayload asks for change events on a table.
// Filter uses the "column=eq.value" form.
type SubscribePayload struct {
	Table  string `json:"table"`
	Event  string `json:"event"`
	Filter string `json:"filter,omitempty"`
}

// SubscribedPayload acknowledges a subscription
type SubscribedPayload struct {
	SubscriptionID string `json:"subscription_id"`
	Table          string `json:"table"`
	Event          string `json:"event"`
	Filter         string `json:"filter,omitempty"`
}

// UnsubscribePayload cancels a subscription
type UnsubscribePayload struct {
	SubscriptionID string `json:"subscription_id"`
}

// ChangePayload delivers a change event to the matching subscriptions of a
// client
type ChangePayload struct {
	SubscriptionIDs []string    `json:"subscription_ids"`
	Event           ChangeEvent `json:"event"`
}

// NotificationPayload represents a direct notification
type NotificationPayload struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	TargetType string `json:"target_type,omitempty"`
	TargetID   string `json:"target_id,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}
