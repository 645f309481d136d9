package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/metrics"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	sendBufferSize = 256

	// Maximum subscriptions a single connection may hold
	maxSubscriptions = 32
)

// Client represents a single websocket connection
type Client struct {
	conn *websocket.Conn
	hub  *Hub

	UserID   string
	Username string

	// Buffered channel of outbound messages
	send       chan []byte
	sendClosed bool

	ConnectedAt time.Time
	LastPingAt  time.Time
	RemoteAddr  string
	UserAgent   string

	rateLimiter *RateLimiter

	// Table change subscriptions by id
	subscriptions map[string]*Subscription

	// Per-connection state owned by message handlers (the playback session)
	session *PlaybackSession

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// RateLimiter implements a simple token bucket rate limiter
type RateLimiter struct {
	tokens    float64
	maxTokens float64
	refill    float64
	lastTime  time.Time
	mu        sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(maxPerSecond int, burst int) *RateLimiter {
	return &RateLimiter{
		tokens:    float64(burst),
		maxTokens: float64(burst),
		refill:    float64(maxPerSecond),
		lastTime:  time.Now(),
	}
}

// Allow checks if an action is allowed and consumes a token
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastTime).Seconds()
	r.lastTime = now

	r.tokens += elapsed * r.refill
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}

	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// NewClient creates a new Client. conn may be nil in tests that only exercise
// hub routing.
func NewClient(hub *Hub, conn *websocket.Conn, userID, username string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	config := hub.GetRateLimitConfig()

	return &Client{
		hub:           hub,
		conn:          conn,
		UserID:        userID,
		Username:      username,
		send:          make(chan []byte, sendBufferSize),
		ConnectedAt:   time.Now(),
		rateLimiter:   NewRateLimiter(config.MaxMessagesPerSecond, config.BurstSize),
		subscriptions: make(map[string]*Subscription),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// ReadPump pumps messages from the websocket connection to the handlers
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		readCtx, readCancel := context.WithTimeout(c.ctx, pongWait)
		_, data, err := c.conn.Read(readCtx)
		readCancel()

		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Log.Info("Realtime client disconnected normally", logger.WithUserID(c.UserID))
			} else if c.ctx.Err() == nil {
				logger.Log.Warn("Realtime read error", logger.WithUserID(c.UserID), zap.Error(err))
				c.hub.metrics.Errors.Add(1)
			}
			return
		}

		if !c.rateLimiter.Allow() {
			c.SendError("rate_limited", "Too many messages, please slow down")
			c.hub.metrics.Errors.Add(1)
			continue
		}

		c.hub.metrics.MessagesReceived.Add(1)
		metrics.Get().RealtimeMessages.WithLabelValues("in").Inc()

		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			logger.Log.Warn("Realtime JSON parse error", logger.WithUserID(c.UserID), zap.Error(err))
			c.SendError("invalid_json", "Failed to parse message")
			continue
		}

		c.handleMessage(&message)
	}
}

// WritePump pumps messages from the hub to the websocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "server shutdown")
			return

		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				c.conn.Close(websocket.StatusNormalClosure, "closing")
				return
			}

			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()

			if err != nil {
				logger.Log.Warn("Realtime write error", logger.WithUserID(c.UserID), zap.Error(err))
				c.hub.metrics.Errors.Add(1)
				return
			}

		case <-ticker.C:
			c.mu.Lock()
			c.LastPingAt = time.Now()
			c.mu.Unlock()

			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Ping(ctx)
			cancel()

			if err != nil {
				logger.Log.Warn("Realtime ping failed", logger.WithUserID(c.UserID), zap.Error(err))
				return
			}
		}
	}
}

// handleMessage routes incoming messages to built-in or registered handlers
func (c *Client) handleMessage(message *Message) {
	if message.Timestamp.IsZero() {
		message.Timestamp = FlexibleTime{Time: time.Now().UTC()}
	}

	switch message.Type {
	case MessageTypePing, "heartbeat":
		c.handlePing(message)
		return
	case MessageTypeAuth:
		c.handleAuth(message)
		return
	case MessageTypeSubscribe:
		c.handleSubscribe(message)
		return
	case MessageTypeUnsubscribe:
		c.handleUnsubscribe(message)
		return
	}

	if handler, ok := c.hub.GetHandler(message.Type); ok {
		if err := handler(c, message); err != nil {
			logger.Log.Warn("Realtime handler error",
				zap.String("type", message.Type),
				logger.WithUserID(c.UserID),
				zap.Error(err))
			reply := NewReply(message, MessageTypeError, ErrorPayload{
				Code:    "handler_error",
				Message: err.Error(),
			})
			_ = c.Send(reply)
		}
		return
	}

	logger.Log.Warn("Unknown realtime message type",
		logger.WithUserID(c.UserID),
		zap.String("type", message.Type))
	c.SendError("unknown_type", fmt.Sprintf("Unknown message type: %s", message.Type))
}

func (c *Client) handlePing(message *Message) {
	var ping PingPayload
	if err := message.ParsePayload(&ping); err != nil {
		ping.ClientTime = 0
	}

	serverTime := time.Now().UnixMilli()
	pong := NewReply(message, MessageTypePong, PongPayload{
		ClientTime: ping.ClientTime,
		ServerTime: serverTime,
		Latency:    serverTime - ping.ClientTime,
	})
	_ = c.Send(pong)
}

// Authentication happens at upgrade time; this only confirms the identity.
func (c *Client) handleAuth(message *Message) {
	_ = c.Send(NewReply(message, MessageTypeAuth, AuthPayload{
		UserID: c.UserID,
		Status: "authenticated",
	}))
}

func (c *Client) handleSubscribe(message *Message) {
	var req SubscribePayload
	if err := message.ParsePayload(&req); err != nil {
		_ = c.Send(NewReply(message, MessageTypeError, ErrorPayload{Code: "invalid_payload", Message: err.Error()}))
		return
	}

	sub, err := c.Subscribe(req)
	if err != nil {
		_ = c.Send(NewReply(message, MessageTypeError, ErrorPayload{Code: "invalid_subscription", Message: err.Error()}))
		return
	}

	_ = c.Send(NewReply(message, MessageTypeSubscribed, SubscribedPayload{
		SubscriptionID: sub.ID,
		Table:          sub.Table,
		Event:          sub.Event,
		Filter:         sub.Filter.String(),
	}))
}

func (c *Client) handleUnsubscribe(message *Message) {
	var req UnsubscribePayload
	if err := message.ParsePayload(&req); err != nil || req.SubscriptionID == "" {
		_ = c.Send(NewReply(message, MessageTypeError, ErrorPayload{Code: "invalid_payload", Message: "subscription_id is required"}))
		return
	}
	if !c.Unsubscribe(req.SubscriptionID) {
		_ = c.Send(NewReply(message, MessageTypeError, ErrorPayload{Code: "not_found", Message: "unknown subscription"}))
		return
	}
	_ = c.Send(NewReply(message, MessageTypeUnsubscribed, UnsubscribePayload{SubscriptionID: req.SubscriptionID}))
}

// Subscribe adds a change subscription to this connection. Rows of private
// tables are only delivered when they belong to the connected user.
func (c *Client) Subscribe(req SubscribePayload) (*Subscription, error) {
	sub, err := NewSubscription(uuid.New().String(), req)
	if err != nil {
		return nil, err
	}
	sub.Owner = c.UserID

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subscriptions) >= maxSubscriptions {
		return nil, fmt.Errorf("subscription limit of %d reached", maxSubscriptions)
	}
	c.subscriptions[sub.ID] = sub
	return sub, nil
}

// Unsubscribe removes a subscription, reporting whether it existed
func (c *Client) Unsubscribe(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subscriptions[id]; !ok {
		return false
	}
	delete(c.subscriptions, id)
	return true
}

// SubscriptionCount returns the number of active subscriptions
func (c *Client) SubscriptionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscriptions)
}

func (c *Client) matchingSubscriptions(ev ChangeEvent) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var ids []string
	for id, sub := range c.subscriptions {
		if sub.Matches(ev) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// enqueue places data on the send buffer without blocking
func (c *Client) enqueue(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound channel once; WritePump then closes the socket
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

// Send sends a message to this client
func (c *Client) Send(message *Message) error {
	if c.IsClosed() {
		return fmt.Errorf("client connection closed")
	}

	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	if !c.enqueue(data) {
		return fmt.Errorf("send buffer full")
	}
	return nil
}

// SendError sends an error message to the client
func (c *Client) SendError(code, message string) {
	_ = c.Send(NewErrorMessage(code, message))
}

// Close closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancel()

	if c.conn != nil {
		c.conn.Close(websocket.StatusNormalClosure, "closing")
	}
}

// IsClosed returns whether the client connection is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// GetInfo returns client information
func (c *Client) GetInfo() ClientInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ClientInfo{
		UserID:        c.UserID,
		Username:      c.Username,
		ConnectedAt:   c.ConnectedAt,
		LastPingAt:    c.LastPingAt,
		RemoteAddr:    c.RemoteAddr,
		UserAgent:     c.UserAgent,
		Subscriptions: len(c.subscriptions),
	}
}

// ClientInfo represents public client information
type ClientInfo struct {
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	ConnectedAt   time.Time `json:"connected_at"`
	LastPingAt    time.Time `json:"last_ping_at"`
	RemoteAddr    string    `json:"remote_addr"`
	UserAgent     string    `json:"user_agent"`
	Subscriptions int       `json:"subscriptions"`
}
