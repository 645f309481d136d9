package handlers

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/reelhub/backend/internal/middleware"
)

// RouterConfig carries the cross-cutting settings for the HTTP router
type RouterConfig struct {
	ServiceName string
	CORSOrigins []string
	// FeedCacheTTL caches anonymous feed and catalog reads; zero disables it
	FeedCacheTTL time.Duration
	// Tracing adds the otel gin middleware
	Tracing bool
}

// NewRouter builds the gin engine with every API route
func (h *Handlers) NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	if cfg.Tracing {
		r.Use(middleware.TracingMiddleware(cfg.ServiceName))
	}
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())

	corsConfig := cors.DefaultConfig()
	if allowAll(cfg.CORSOrigins) {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", middleware.ImpersonateHeader)
	r.Use(cors.New(corsConfig))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/ws"})))

	h.RegisterRoutes(r, cfg)
	return r
}

func allowAll(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// RegisterRoutes mounts the API on r
func (h *Handlers) RegisterRoutes(r *gin.Engine, cfg RouterConfig) {
	requireAuth := []gin.HandlerFunc{middleware.Auth(h.Auth), middleware.AdminImpersonation(h.Auth)}
	optionalAuth := middleware.OptionalAuth(h.Auth)

	cached := func(c *gin.Context) { c.Next() }
	if cfg.FeedCacheTTL > 0 && h.cache != nil {
		cached = middleware.ResponseCacheMiddleware(h.cache, cfg.FeedCacheTTL)
	}
	invalidateFeed := func(c *gin.Context) { c.Next() }
	if h.cache != nil {
		invalidateFeed = middleware.CacheInvalidationMiddleware(h.cache, "/api/v1/feed", "/api/v1/products")
	}

	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.Use(middleware.SharedRateLimit(h.cache, "api", middleware.DefaultRateLimitConfig()))
	{
		authGroup := api.Group("/auth")
		{
			authLimit := middleware.SharedRateLimit(h.cache, "auth", middleware.AuthRateLimitConfig())
			authGroup.POST("/register", authLimit, h.Register)
			authGroup.POST("/login", authLimit, h.Login)
			authGroup.GET("/google", h.GoogleLogin)
			authGroup.GET("/google/callback", h.GoogleCallback)
			authGroup.GET("/me", append(requireAuth, h.Me)...)
		}

		api.GET("/feed", optionalAuth, cached, h.GetFeed)
		api.GET("/users/:id/videos", optionalAuth, h.GetUserVideos)

		videosGroup := api.Group("/videos")
		{
			videosGroup.GET("/:id", optionalAuth, h.GetVideo)
			videosGroup.GET("/:id/quality", optionalAuth, h.GetPlaybackQuality)
			videosGroup.POST("/:id/view", optionalAuth, h.RecordView)

			authed := videosGroup.Group("", requireAuth...)
			authed.POST("", invalidateFeed, h.CreateVideo)
			authed.POST("/upload", middleware.SharedRateLimit(h.cache, "upload", middleware.UploadRateLimitConfig()), invalidateFeed, h.UploadVideo)
			authed.DELETE("/:id", invalidateFeed, h.DeleteVideo)
			authed.POST("/:id/like", h.LikeVideo)
			authed.DELETE("/:id/like", h.UnlikeVideo)
			authed.POST("/:id/save", h.SaveVideo)
		}

		scheduled := api.Group("/scheduled-videos", requireAuth...)
		{
			scheduled.POST("", h.CreateScheduledVideo)
			scheduled.GET("", h.ListScheduledVideos)
			scheduled.GET("/:id", h.GetScheduledVideo)
			scheduled.DELETE("/:id", h.CancelScheduledVideo)
		}

		collectionsGroup := api.Group("/collections", requireAuth...)
		{
			collectionsGroup.POST("", h.CreateCollection)
			collectionsGroup.GET("", h.ListCollections)
			collectionsGroup.GET("/:id", h.GetCollection)
			collectionsGroup.PATCH("/:id", h.UpdateCollection)
			collectionsGroup.DELETE("/:id", h.DeleteCollection)
			collectionsGroup.POST("/:id/videos", h.AddCollectionVideo)
			collectionsGroup.DELETE("/:id/videos/:video_id", h.RemoveCollectionVideo)
		}

		products := api.Group("/products")
		{
			products.GET("", optionalAuth, cached, h.ListProducts)
			products.GET("/:id", h.GetProduct)

			authed := products.Group("", requireAuth...)
			authed.POST("", invalidateFeed, h.CreateProduct)
			authed.PATCH("/:id", invalidateFeed, h.UpdateProduct)
			authed.DELETE("/:id", invalidateFeed, h.DeleteProduct)
			authed.POST("/:id/image", middleware.SharedRateLimit(h.cache, "upload", middleware.UploadRateLimitConfig()), invalidateFeed, h.UploadProductImage)
		}

		orders := api.Group("/orders", requireAuth...)
		{
			orders.POST("", h.PlaceOrder)
			orders.GET("", h.ListOrders)
			orders.GET("/:id", h.GetOrder)
			orders.PATCH("/:id/status", h.UpdateOrderStatus)
		}

		walletGroup := api.Group("/wallet", requireAuth...)
		{
			walletGroup.GET("", h.GetWallet)
			walletGroup.GET("/transactions", h.GetWalletHistory)
			walletGroup.POST("/check-in", h.CheckIn)
			walletGroup.POST("/transfer", h.TransferCoins)
			walletGroup.POST("/2fa/enroll", h.EnrollTOTP)
			walletGroup.POST("/2fa/confirm", h.ConfirmTOTP)
			walletGroup.POST("/2fa/disable", h.DisableTOTP)
		}

		rewards := api.Group("/rewards")
		{
			rewards.GET("", h.ListRewards)
			rewards.POST("/:id/purchase", append(requireAuth, h.PurchaseReward)...)
		}

		affiliateGroup := api.Group("/affiliate")
		{
			affiliateGroup.GET("/tiers", h.ListAffiliateTiers)
			affiliateGroup.POST("/links/:code/click", h.TrackAffiliateClick)

			authed := affiliateGroup.Group("", requireAuth...)
			authed.POST("/links", h.CreateAffiliateLink)
			authed.GET("/links", h.ListAffiliateLinks)
			authed.GET("/summary", h.GetAffiliateSummary)
			authed.GET("/commissions", h.ListCommissions)
			authed.POST("/payout", h.PayoutCommissions)
		}

		notifications := api.Group("/notifications", requireAuth...)
		{
			notifications.GET("", h.GetNotifications)
			notifications.GET("/counts", h.GetNotificationCounts)
			notifications.POST("/read", h.MarkNotificationsRead)
			notifications.GET("/preferences", h.GetNotificationPreferences)
			notifications.PUT("/preferences/:kind", h.UpdateNotificationPreference)
			notifications.GET("/:id/deliveries", h.GetNotificationDeliveries)
		}

		live := api.Group("/live")
		{
			live.GET("", h.ListLiveStreams)
			live.GET("/:id", h.GetLiveStream)
			live.POST("/:id/viewers", h.JoinLiveStream)

			authed := live.Group("", requireAuth...)
			authed.POST("", h.CreateLiveStream)
			authed.POST("/:id/start", h.StartLiveStream)
			authed.POST("/:id/end", h.EndLiveStream)
			authed.GET("/:id/chat-token", h.GetLiveChatToken)
		}

		settingsGroup := api.Group("/settings", requireAuth...)
		{
			settingsGroup.GET("", h.GetSettings)
			settingsGroup.PATCH("", h.UpdateSettings)
			settingsGroup.POST("/reset", h.ResetSettings)
			settingsGroup.GET("/export", h.ExportSettings)
			settingsGroup.POST("/import", h.ImportSettings)
			settingsGroup.GET("/profiles", h.ListSettingsProfiles)
			settingsGroup.POST("/profiles", h.SaveSettingsProfile)
			settingsGroup.POST("/profiles/:id/apply", h.ApplySettingsProfile)
			settingsGroup.DELETE("/profiles/:id", h.DeleteSettingsProfile)
		}

		api.GET("/search/videos", optionalAuth, h.SearchVideos)
		api.GET("/analytics/dashboard", append(requireAuth, h.GetCreatorDashboard)...)

		admin := api.Group("/admin", requireAuth...)
		admin.Use(middleware.RequireAdmin())
		{
			admin.POST("/scheduled-videos/run", h.RunScheduledPublish)
			admin.POST("/wallet/award", h.AwardCoins)
			admin.POST("/rewards", h.CreateReward)
			admin.POST("/announcements", h.Announce)
		}

		if h.ws != nil {
			ws := api.Group("/ws")
			ws.GET("", h.ws.HandleWebSocket)
			ws.GET("/metrics", append(requireAuth, h.ws.HandleMetrics)...)
			ws.POST("/online", append(requireAuth, h.ws.HandleOnlineStatus)...)
		}
	}
}
