package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/affiliate"
	"github.com/reelhub/backend/internal/analytics"
	"github.com/reelhub/backend/internal/auth"
	"github.com/reelhub/backend/internal/cache"
	"github.com/reelhub/backend/internal/collections"
	"github.com/reelhub/backend/internal/config"
	"github.com/reelhub/backend/internal/database"
	"github.com/reelhub/backend/internal/email"
	"github.com/reelhub/backend/internal/handlers"
	"github.com/reelhub/backend/internal/livestream"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/notify"
	"github.com/reelhub/backend/internal/realtime"
	"github.com/reelhub/backend/internal/scheduler"
	"github.com/reelhub/backend/internal/search"
	"github.com/reelhub/backend/internal/settings"
	"github.com/reelhub/backend/internal/storage"
	"github.com/reelhub/backend/internal/store"
	"github.com/reelhub/backend/internal/stream"
	"github.com/reelhub/backend/internal/telemetry"
	"github.com/reelhub/backend/internal/videos"
	"github.com/reelhub/backend/internal/wallet"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger isn't up yet
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Close()

	logger.Log.Info("=== Reelhub server starting ===", zap.String("environment", cfg.Environment))
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracer, err := telemetry.InitTracer(cfg.Telemetry, cfg.Environment)
	if err != nil {
		logger.Log.Warn("Tracing disabled", zap.Error(err))
		shutdownTracer = func(context.Context) error { return nil }
	}

	db, err := database.Open(cfg.Database, !cfg.IsProduction())
	if err != nil {
		logger.FatalWithFields("Failed to connect to database", err)
	}
	defer database.Close(db)
	if cfg.Telemetry.Enabled {
		if err := db.Use(telemetry.GORMPlugin()); err != nil {
			logger.WarnWithFields("Failed to install gorm tracing", err)
		}
	}
	if err := database.Migrate(db); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}

	// Optional infrastructure: every piece below degrades to nil, except the
	// cache, which falls back to process memory for a single instance
	var sharedCache cache.Store
	if cfg.Redis.Enabled() {
		rc, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.WarnWithFields("Redis unavailable, using in-process cache", err)
		} else {
			sharedCache = rc
			defer rc.Close()
		}
	}
	if sharedCache == nil {
		sharedCache = cache.NewMemory()
	}

	var uploader storage.Uploader
	if cfg.AWS.Bucket != "" {
		s3Uploader, err := storage.NewS3Uploader(context.Background(), cfg.AWS.Region, cfg.AWS.Bucket, cfg.AWS.CDNBaseURL)
		if err != nil {
			logger.WarnWithFields("S3 unavailable, uploads disabled", err)
		} else {
			if err := s3Uploader.CheckBucketAccess(context.Background()); err != nil {
				logger.WarnWithFields("S3 bucket access failed", err)
			}
			uploader = s3Uploader
		}
	}

	var mailer email.Sender
	if cfg.IsProduction() {
		ses, err := email.NewSESService(context.Background(), cfg.AWS.Region, cfg.AWS.EmailFrom)
		if err != nil {
			logger.WarnWithFields("SES unavailable, email deliveries skipped", err)
		} else {
			mailer = ses
		}
	}

	var chat *stream.Client
	if c, err := stream.NewClient(cfg.Stream); err != nil {
		logger.Log.Warn("Stream chat disabled", zap.Error(err))
	} else {
		chat = c
	}

	var indexer search.Indexer
	var searcher search.Searcher
	var reconciler *search.ReconciliationService
	if es, err := search.NewClient(cfg.Search); err != nil {
		logger.Log.Warn("Search disabled", zap.Error(err))
	} else {
		if err := es.EnsureIndex(context.Background()); err != nil {
			logger.WarnWithFields("Failed to ensure search index", err)
		}
		indexer = es
		searcher = search.NewCachedSearcher(es, sharedCache, 30*time.Second)
		reconciler = search.NewReconciliationService(db, es, 10*time.Minute)
		reconciler.Start()
		defer reconciler.Stop()
	}

	// Realtime
	hub := realtime.NewHub()
	go hub.Run()

	// Domain services
	notifier := notify.NewService(db, hub, mailer)
	ledger := wallet.NewService(db, notifier)
	referrals := affiliate.NewService(db, ledger, notifier)
	if err := referrals.EnsureDefaultTiers(context.Background()); err != nil {
		logger.WarnWithFields("Failed to seed affiliate tiers", err)
	}

	oauthConfig, err := cfg.OAuth.GoogleOAuth()
	if err != nil {
		logger.Log.Info("Google login disabled", zap.Error(err))
	}

	var chatUsers auth.ChatUsers
	var liveChat livestream.Chat
	var activityFeed videos.ActivityFeed
	if chat != nil {
		chatUsers, liveChat, activityFeed = chat, chat, chat
	}

	authService := auth.NewService(db, []byte(cfg.JWTSecret), oauthConfig, chatUsers)
	videoService := videos.NewService(db, videos.Deps{
		Storage:  uploader,
		Indexer:  indexer,
		Notifier: notifier,
		Rewarder: ledger,
		Feed:     activityFeed,
	})
	collectionService := collections.NewService(db)
	settingsService := settings.NewService(settings.NewGormRepository(db))
	schedulerService := scheduler.NewService(db, videoService, hub, notifier)

	realtime.NewPlaybackSessions(videoService, videoService, collectionService, settingsService).Register(hub)
	wsHandler := realtime.NewHandler(hub, authService, cfg.CORSOrigins)

	h := handlers.NewHandlers(db, sharedCache, handlers.Services{
		Auth:        authService,
		Videos:      videoService,
		Scheduler:   schedulerService,
		Collections: collectionService,
		Store: store.NewService(db, store.Deps{
			Storage:   uploader,
			Ledger:    ledger,
			Referrals: referrals,
			Notifier:  notifier,
			Publisher: hub,
		}),
		Wallet:        ledger,
		Affiliate:     referrals,
		Notifications: notifier,
		Live:          livestream.NewService(db, liveChat, hub, notifier),
		Settings:      settingsService,
		Analytics:     analytics.NewService(db),
	})
	if searcher != nil {
		h.SetSearcher(searcher)
	}
	h.SetRealtime(hub, wsHandler)

	if cfg.Scheduler.Enabled {
		runner := scheduler.NewRunner(schedulerService, sharedCache, cfg.Scheduler)
		runner.Start()
		defer runner.Stop()
	}

	r := h.NewRouter(handlers.RouterConfig{
		ServiceName:  telemetry.ServiceName,
		CORSOrigins:  cfg.CORSOrigins,
		FeedCacheTTL: 15 * time.Second,
		Tracing:      cfg.Telemetry.Enabled,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Reelhub backend listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := hub.Shutdown(ctx); err != nil {
		logger.WarnWithFields("Realtime shutdown", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorWithFields("Server forced to shutdown", err)
	}
	if err := shutdownTracer(ctx); err != nil {
		logger.WarnWithFields("Tracer shutdown", err)
	}

	logger.Log.Info("Server exited")
}
