package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     prometheus.CounterVec
	HTTPRequestDuration   prometheus.HistogramVec
	HTTPRequestSize       prometheus.HistogramVec
	HTTPResponseSize      prometheus.HistogramVec
	HTTPActiveConnections prometheus.GaugeVec

	// Cache metrics
	CacheHitsTotal         prometheus.CounterVec
	CacheMissesTotal       prometheus.CounterVec
	CacheOperationsTotal   prometheus.CounterVec
	CacheOperationDuration prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitExceededTotal prometheus.CounterVec

	// Database metrics
	DatabaseQueryDuration   prometheus.HistogramVec
	DatabaseQueriesTotal    prometheus.CounterVec
	DatabaseConnectionsOpen prometheus.GaugeVec

	// Redis metrics
	RedisOperationDuration prometheus.HistogramVec
	RedisOperationsTotal   prometheus.CounterVec

	// Realtime metrics
	RealtimeConnections prometheus.Gauge
	RealtimeMessages    prometheus.CounterVec
	RealtimeChanges     prometheus.CounterVec
	PlaybackCommands    prometheus.CounterVec

	// Feed and engagement
	FeedGenerationTime prometheus.HistogramVec
	LikesTotal         prometheus.CounterVec
	VideoViewsTotal    prometheus.CounterVec
	UploadsTotal       prometheus.CounterVec

	// Scheduled publishing
	SchedulerRunsTotal     prometheus.CounterVec
	SchedulerItemsTotal    prometheus.CounterVec
	SchedulerRunDuration   prometheus.Histogram
	SchedulerLockContended prometheus.Counter

	// Commerce
	OrdersTotal        prometheus.CounterVec
	WalletCoinsTotal   prometheus.CounterVec
	CommissionsTotal   prometheus.CounterVec
	NotificationsTotal prometheus.CounterVec

	// Search
	SearchQueriesTotal  prometheus.CounterVec
	SearchQueryDuration prometheus.HistogramVec

	// Error metrics
	ErrorsTotal prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			// HTTP metrics
			HTTPRequestsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestSize: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_size_bytes",
					Help:    "HTTP request body size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 8),
				},
				[]string{"method", "path"},
			),
			HTTPResponseSize: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_response_size_bytes",
					Help:    "HTTP response size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of currently active HTTP connections",
				},
				[]string{"method", "path"},
			),

			// Cache metrics
			CacheHitsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_hits_total",
					Help: "Total number of cache hits",
				},
				[]string{"cache_name"},
			),
			CacheMissesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_misses_total",
					Help: "Total number of cache misses",
				},
				[]string{"cache_name"},
			),
			CacheOperationsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_operations_total",
					Help: "Total number of cache operations",
				},
				[]string{"operation", "cache_name"},
			),
			CacheOperationDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "cache_operation_duration_seconds",
					Help:    "Cache operation latency in seconds",
					Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
				},
				[]string{"operation", "cache_name"},
			),

			RateLimitExceededTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Total number of rate limit violations",
				},
				[]string{"endpoint", "method"},
			),

			// Database metrics
			DatabaseQueryDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "database_query_duration_seconds",
					Help:    "Database query latency in seconds",
					Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"query_type", "table"},
			),
			DatabaseQueriesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "database_queries_total",
					Help: "Total number of database queries",
				},
				[]string{"query_type", "table", "status"},
			),
			DatabaseConnectionsOpen: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "database_connections_open",
					Help: "Number of currently open database connections",
				},
				[]string{"database"},
			),

			// Redis metrics
			RedisOperationDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "redis_operation_duration_seconds",
					Help:    "Redis operation latency in seconds",
					Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
				},
				[]string{"operation"},
			),
			RedisOperationsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "redis_operations_total",
					Help: "Total number of Redis operations",
				},
				[]string{"operation", "status"},
			),

			// Realtime metrics
			RealtimeConnections: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "realtime_connections",
					Help: "Number of open realtime websocket connections",
				},
			),
			RealtimeMessages: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "realtime_messages_total",
					Help: "Realtime messages by direction",
				},
				[]string{"direction"},
			),
			RealtimeChanges: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "realtime_changes_published_total",
					Help: "Row change events published to subscribers",
				},
				[]string{"table", "event"},
			),
			PlaybackCommands: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "playback_commands_total",
					Help: "Commands emitted by playback sessions",
				},
				[]string{"kind"},
			),

			// Feed and engagement
			FeedGenerationTime: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "feed_generation_duration_seconds",
					Help:    "Time to generate feed in seconds",
					Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"feed_type"},
			),
			LikesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "video_likes_total",
					Help: "Video like and unlike operations",
				},
				[]string{"action"},
			),
			VideoViewsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "video_views_total",
					Help: "Recorded video views",
				},
				[]string{"completed"},
			),
			UploadsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "uploads_total",
					Help: "Object storage uploads by kind and status",
				},
				[]string{"kind", "status"},
			),

			// Scheduled publishing
			SchedulerRunsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "scheduler_runs_total",
					Help: "Scheduled publish passes by outcome",
				},
				[]string{"status"},
			),
			SchedulerItemsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "scheduler_items_total",
					Help: "Scheduled videos processed by result",
				},
				[]string{"status"},
			),
			SchedulerRunDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "scheduler_run_duration_seconds",
					Help:    "Duration of scheduled publish passes",
					Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30},
				},
			),
			SchedulerLockContended: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "scheduler_lock_contended_total",
					Help: "Passes skipped because another instance held the lock",
				},
			),

			// Commerce
			OrdersTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "orders_total",
					Help: "Order status changes",
				},
				[]string{"status", "payment_method"},
			),
			WalletCoinsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "wallet_coins_total",
					Help: "Coins moved through wallets by direction and reason",
				},
				[]string{"direction", "reason"},
			),
			CommissionsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "affiliate_commissions_total",
					Help: "Affiliate commissions by tier and status",
				},
				[]string{"tier", "status"},
			),
			NotificationsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "notification_deliveries_total",
					Help: "Notification delivery attempts by channel and status",
				},
				[]string{"channel", "status"},
			),

			// Search
			SearchQueriesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "search_queries_total",
					Help: "Total number of search queries",
				},
				[]string{"index", "status"},
			),
			SearchQueryDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "search_query_duration_seconds",
					Help:    "Search query duration in seconds",
					Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
				},
				[]string{"index", "operation"},
			),

			// Error metrics
			ErrorsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Total number of errors by type",
				},
				[]string{"error_type", "endpoint"},
			),
		}
	})
	return instance
}

// Get returns the global metrics instance
func Get() *Metrics {
	if instance == nil {
		return Initialize()
	}
	return instance
}
