package handlers

import (
	"github.com/reelhub/backend/internal/affiliate"
	"github.com/reelhub/backend/internal/analytics"
	"github.com/reelhub/backend/internal/auth"
	"github.com/reelhub/backend/internal/cache"
	"github.com/reelhub/backend/internal/collections"
	"github.com/reelhub/backend/internal/livestream"
	"github.com/reelhub/backend/internal/notify"
	"github.com/reelhub/backend/internal/realtime"
	"github.com/reelhub/backend/internal/scheduler"
	"github.com/reelhub/backend/internal/search"
	"github.com/reelhub/backend/internal/settings"
	"github.com/reelhub/backend/internal/store"
	"github.com/reelhub/backend/internal/videos"
	"github.com/reelhub/backend/internal/wallet"
	"gorm.io/gorm"
)

// Services are the domain services behind the API
type Services struct {
	Auth          *auth.Service
	Videos        *videos.Service
	Scheduler     *scheduler.Service
	Collections   *collections.Service
	Store         *store.Service
	Wallet        *wallet.Service
	Affiliate     *affiliate.Service
	Notifications *notify.Service
	Live          *livestream.Service
	Settings      *settings.Service
	Analytics     *analytics.Service
}

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	Services

	db       *gorm.DB
	cache    cache.Store
	searcher search.Searcher
	ws       *realtime.Handler
	hub      *realtime.Hub
}

// NewHandlers creates a new handlers instance. db and store back the health
// check; store may be nil when redis is not configured.
func NewHandlers(db *gorm.DB, store cache.Store, svc Services) *Handlers {
	return &Handlers{Services: svc, db: db, cache: store}
}

// SetSearcher enables /search. Without one the endpoint answers 503.
func (h *Handlers) SetSearcher(s search.Searcher) {
	h.searcher = s
}

// SetRealtime attaches the websocket endpoint
func (h *Handlers) SetRealtime(hub *realtime.Hub, ws *realtime.Handler) {
	h.hub = hub
	h.ws = ws
}
