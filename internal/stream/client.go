// Package stream wraps the GetStream chat API used for livestream chat rooms
// and the activity feeds published videos and likes are mirrored into.
package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	chat "github.com/GetStream/stream-chat-go/v5"
	feeds "github.com/GetStream/stream-go2/v8"
	"github.com/reelhub/backend/internal/config"
	"github.com/reelhub/backend/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ChannelType is the GetStream channel type livestream rooms are created with
const ChannelType = "livestream"

// ErrNotConfigured is returned when no API key was configured
var ErrNotConfigured = errors.New("STREAM_API_KEY and STREAM_API_SECRET must be set")

// ChatAPI is the part of *chat.Client the wrapper uses
type ChatAPI interface {
	UpsertUser(ctx context.Context, user *chat.User) (*chat.UpsertUserResponse, error)
	CreateToken(userID string, expire time.Time, issuedAt ...time.Time) (string, error)
	CreateChannel(ctx context.Context, chanType, chanID, userID string, data *chat.ChannelRequest) (*chat.CreateChannelResponse, error)
	DeleteChannels(ctx context.Context, cids []string, hardDelete bool) (*chat.AsyncTaskResponse, error)
}

// Client wraps the GetStream chat client with Reelhub-specific functionality
type Client struct {
	chat   ChatAPI
	feeds  FeedsAPI
	apiKey string
}

// NewClient creates the chat and feeds clients from the configured credentials
func NewClient(cfg config.StreamConfig) (*Client, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, ErrNotConfigured
	}

	chatClient, err := chat.NewClient(cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create Stream.io Chat client: %w", err)
	}
	feedClient, err := feeds.New(cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create Stream.io Feeds client: %w", err)
	}

	c := NewClientWithAPI(chatClient, cfg.APIKey)
	c.feeds = feedsClientAdapter(feedClient)
	return c, nil
}

// NewClientWithAPI wraps an existing chat API
func NewClientWithAPI(api ChatAPI, apiKey string) *Client {
	return &Client{chat: api, apiKey: apiKey}
}

// WithFeeds sets the activity feeds API; nil disables mirroring
func (c *Client) WithFeeds(api FeedsAPI) *Client {
	c.feeds = api
	return c
}

// APIKey is the public key clients connect with
func (c *Client) APIKey() string {
	return c.apiKey
}

// UpsertUser creates or updates the chat user for an account
func (c *Client) UpsertUser(ctx context.Context, userID, username, avatarURL string) error {
	ctx, span := telemetry.TraceExternalCall(ctx, "getstream", "upsert_user", attribute.String("user.id", userID))
	user := &chat.User{
		ID:    userID,
		Name:  username,
		Image: avatarURL,
	}
	_, err := c.chat.UpsertUser(ctx, user)
	telemetry.End(span, err)
	if err != nil {
		return fmt.Errorf("failed to create chat user: %w", err)
	}
	return nil
}

// CreateToken creates a chat token for userID. A zero expiration never expires.
func (c *Client) CreateToken(userID string, expiration time.Time) (string, error) {
	token, err := c.chat.CreateToken(userID, expiration)
	if err != nil {
		return "", fmt.Errorf("failed to create token: %w", err)
	}
	return token, nil
}

// CreateLivestreamChannel opens the chat room for a stream and returns its cid
func (c *Client) CreateLivestreamChannel(ctx context.Context, streamID, ownerID, title string) (string, error) {
	ctx, span := telemetry.TraceExternalCall(ctx, "getstream", "create_channel", attribute.String("stream.id", streamID))
	resp, err := c.chat.CreateChannel(ctx, ChannelType, streamID, ownerID, &chat.ChannelRequest{
		Members: []string{ownerID},
		ExtraData: map[string]interface{}{
			"name": title,
		},
	})
	telemetry.End(span, err)
	if err != nil {
		return "", fmt.Errorf("failed to create chat channel: %w", err)
	}
	if resp == nil || resp.Channel == nil {
		return "", fmt.Errorf("chat channel response was empty")
	}
	return ChannelCID(streamID), nil
}

// CloseLivestreamChannel soft-deletes the chat room once a stream ends
func (c *Client) CloseLivestreamChannel(ctx context.Context, cid string) error {
	ctx, span := telemetry.TraceExternalCall(ctx, "getstream", "delete_channel", attribute.String("chat.cid", cid))
	_, err := c.chat.DeleteChannels(ctx, []string{cid}, false)
	telemetry.End(span, err)
	if err != nil {
		return fmt.Errorf("failed to close chat channel: %w", err)
	}
	return nil
}

// ChannelCID is the GetStream channel id for a stream
func ChannelCID(streamID string) string {
	return ChannelType + ":" + streamID
}
