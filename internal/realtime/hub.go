// Package realtime provides the websocket hub used for table change
// subscriptions, direct notifications and playback sessions.
// Uses github.com/coder/websocket.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/metrics"
	"go.uber.org/zap"
)

// Publisher pushes row changes and direct messages to connected clients.
// Services depend on this instead of the hub.
type Publisher interface {
	Publish(ev ChangeEvent)
	SendToUser(userID string, message *Message)
}

// NopPublisher drops everything. Used when realtime is not wired (CLI, lambda).
type NopPublisher struct{}

func (NopPublisher) Publish(ChangeEvent)         {}
func (NopPublisher) SendToUser(string, *Message) {}

var _ Publisher = (*Hub)(nil)

// Hub maintains the set of active clients and fans out messages to them.
type Hub struct {
	// Registered clients by user ID for targeted messaging
	clients map[string]map[*Client]struct{}

	// All clients for broadcasting and change fan-out
	allClients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	unicast    chan *UnicastMessage
	changes    chan ChangeEvent

	mu sync.RWMutex

	metrics *Metrics

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	handlers map[string]MessageHandler

	rateLimitConfig RateLimitConfig
}

// Metrics tracks hub statistics
type Metrics struct {
	TotalConnections   atomic.Int64
	ActiveConnections  atomic.Int64
	MessagesReceived   atomic.Int64
	MessagesSent       atomic.Int64
	ChangesPublished   atomic.Int64
	Errors             atomic.Int64
	ConnectionsDropped atomic.Int64
}

// RateLimitConfig defines rate limiting parameters
type RateLimitConfig struct {
	// MaxMessagesPerSecond per client
	MaxMessagesPerSecond int
	// BurstSize allows short bursts above the rate
	BurstSize int
}

// DefaultRateLimitConfig returns the per-client limits
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxMessagesPerSecond: 20,
		BurstSize:            40,
	}
}

// UnicastMessage is a message targeted at a specific user
type UnicastMessage struct {
	UserID  string
	Message *Message
}

// MessageHandler processes incoming messages of a specific type
type MessageHandler func(client *Client, message *Message) error

// NewHub creates a new Hub instance
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:         make(map[string]map[*Client]struct{}),
		allClients:      make(map[*Client]struct{}),
		register:        make(chan *Client, 256),
		unregister:      make(chan *Client, 256),
		broadcast:       make(chan *Message, 256),
		unicast:         make(chan *UnicastMessage, 256),
		changes:         make(chan ChangeEvent, 1024),
		metrics:         &Metrics{},
		ctx:             ctx,
		cancel:          cancel,
		done:            make(chan struct{}),
		handlers:        make(map[string]MessageHandler),
		rateLimitConfig: DefaultRateLimitConfig(),
	}
}

// RegisterHandler registers a handler for a specific message type
func (h *Hub) RegisterHandler(msgType string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[msgType] = handler
	logger.Log.Debug("Registered realtime handler", zap.String("type", msgType))
}

// GetHandler returns the handler for a message type
func (h *Hub) GetHandler(msgType string) (MessageHandler, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	handler, ok := h.handlers[msgType]
	return handler, ok
}

// Run starts the hub's main event loop
func (h *Hub) Run() {
	logger.Log.Info("Realtime hub starting")
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			logger.Log.Info("Realtime hub shutting down")
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case unicast := <-h.unicast:
			h.sendToUser(unicast.UserID, unicast.Message)

		case ev := <-h.changes:
			h.fanOut(ev)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[*Client]struct{})
	}
	h.clients[client.UserID][client] = struct{}{}
	h.allClients[client] = struct{}{}

	h.metrics.TotalConnections.Add(1)
	active := h.metrics.ActiveConnections.Add(1)
	metrics.Get().RealtimeConnections.Set(float64(active))

	logger.Log.Info("Realtime client connected",
		logger.WithUserID(client.UserID),
		zap.Int64("active", active))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.allClients[client]; !ok {
		return
	}
	delete(h.allClients, client)

	if clients, ok := h.clients[client.UserID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.UserID)
		}
	}

	client.closeSend()

	active := h.metrics.ActiveConnections.Add(-1)
	metrics.Get().RealtimeConnections.Set(float64(active))

	logger.Log.Info("Realtime client disconnected",
		logger.WithUserID(client.UserID),
		zap.Int64("active", active))
}

// deliver queues data on a client, dropping the client when its buffer is full.
// Callers hold h.mu.
func (h *Hub) deliver(client *Client, data []byte) {
	if client.enqueue(data) {
		h.metrics.MessagesSent.Add(1)
		metrics.Get().RealtimeMessages.WithLabelValues("out").Inc()
		return
	}
	h.metrics.ConnectionsDropped.Add(1)
	go func(c *Client) {
		h.Unregister(c)
	}(client)
}

func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		logger.Log.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.allClients {
		h.deliver(client, data)
	}
}

func (h *Hub) sendToUser(userID string, message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		logger.Log.Error("Failed to marshal unicast message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		h.deliver(client, data)
	}
}

// fanOut sends a change event to every client holding a matching
// subscription. Each client gets one message listing all of its matching
// subscription ids.
func (h *Hub) fanOut(ev ChangeEvent) {
	h.metrics.ChangesPublished.Add(1)
	metrics.Get().RealtimeChanges.WithLabelValues(ev.Table, ev.Type).Inc()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.allClients {
		ids := client.matchingSubscriptions(ev)
		if len(ids) == 0 {
			continue
		}
		data, err := json.Marshal(NewMessage(MessageTypeChange, ChangePayload{
			SubscriptionIDs: ids,
			Event:           ev,
		}))
		if err != nil {
			logger.Log.Error("Failed to marshal change event",
				zap.String("table", ev.Table),
				zap.Error(err))
			return
		}
		h.deliver(client, data)
	}
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(message *Message) {
	select {
	case h.broadcast <- message:
	case <-h.ctx.Done():
	}
}

// SendToUser sends a message to a specific user (all their connections)
func (h *Hub) SendToUser(userID string, message *Message) {
	select {
	case h.unicast <- &UnicastMessage{UserID: userID, Message: message}:
	case <-h.ctx.Done():
	}
}

// Publish queues a change event for fan-out. It never blocks the caller's
// transaction path: when the queue is full the event is dropped and counted.
func (h *Hub) Publish(ev ChangeEvent) {
	select {
	case h.changes <- ev:
	case <-h.ctx.Done():
	default:
		h.metrics.Errors.Add(1)
		logger.Log.Warn("Realtime change queue full, dropping event",
			zap.String("table", ev.Table),
			zap.String("type", ev.Type))
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// IsUserOnline checks if a user has any active connections
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// GetUserConnectionCount returns the number of connections for a user
func (h *Hub) GetUserConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// GetOnlineUsers returns a list of all online user IDs
func (h *Hub) GetOnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		users = append(users, userID)
	}
	return users
}

// UserConnections describes every open connection of one user
func (h *Hub) UserConnections(userID string) []ClientInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]ClientInfo, 0, len(h.clients[userID]))
	for client := range h.clients[userID] {
		infos = append(infos, client.GetInfo())
	}
	return infos
}

// GetMetrics returns current hub metrics
func (h *Hub) GetMetrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalConnections:   h.metrics.TotalConnections.Load(),
		ActiveConnections:  h.metrics.ActiveConnections.Load(),
		MessagesReceived:   h.metrics.MessagesReceived.Load(),
		MessagesSent:       h.metrics.MessagesSent.Load(),
		ChangesPublished:   h.metrics.ChangesPublished.Load(),
		Errors:             h.metrics.Errors.Load(),
		ConnectionsDropped: h.metrics.ConnectionsDropped.Load(),
	}
}

// MetricsSnapshot is a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	TotalConnections   int64 `json:"total_connections"`
	ActiveConnections  int64 `json:"active_connections"`
	MessagesReceived   int64 `json:"messages_received"`
	MessagesSent       int64 `json:"messages_sent"`
	ChangesPublished   int64 `json:"changes_published"`
	Errors             int64 `json:"errors"`
	ConnectionsDropped int64 `json:"connections_dropped"`
}

// String implements Stringer for MetricsSnapshot
func (m MetricsSnapshot) String() string {
	return fmt.Sprintf(
		"connections=%d/%d messages=rx:%d/tx:%d changes=%d errors=%d dropped=%d",
		m.ActiveConnections, m.TotalConnections,
		m.MessagesReceived, m.MessagesSent,
		m.ChangesPublished, m.Errors, m.ConnectionsDropped,
	)
}

// Shutdown stops the event loop and waits for it to close every client.
func (h *Hub) Shutdown(ctx context.Context) error {
	logger.Log.Info("Initiating realtime hub shutdown")
	h.cancel()

	select {
	case <-h.done:
		logger.Log.Info("Realtime hub shutdown complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, _ := json.Marshal(&Message{
		Type:      MessageTypeSystem,
		Payload:   SystemPayload{Event: "server_shutdown"},
		Timestamp: FlexibleTime{Time: time.Now().UTC()},
	})

	for client := range h.allClients {
		client.enqueue(data)
		client.closeSend()
	}

	logger.Log.Info("Closed realtime connections during shutdown",
		zap.Int("count", len(h.allClients)))

	h.clients = make(map[string]map[*Client]struct{})
	h.allClients = make(map[*Client]struct{})
}

// GetRateLimitConfig returns the current rate limit configuration
func (h *Hub) GetRateLimitConfig() RateLimitConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rateLimitConfig
}

// PublishRow converts a row change and publishes it. Conversion failures are
// logged; publishing never blocks the caller's write.
func PublishRow(p Publisher, table, eventType string, record, old interface{}) {
	if p == nil {
		return
	}
	ev, err := NewChangeEvent(table, eventType, record, old)
	if err != nil {
		logger.Log.Warn("Failed to encode change event",
			zap.String("table", table),
			zap.String("event", eventType),
			zap.Error(err))
		return
	}
	p.Publish(ev)
}
