// Command publish-lambda runs one scheduled-video publish pass per
// EventBridge tick. It shares the redis lock with the API's in-process runner.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/reelhub/backend/internal/cache"
	"github.com/reelhub/backend/internal/config"
	"github.com/reelhub/backend/internal/database"
	"github.com/reelhub/backend/internal/email"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/notify"
	"github.com/reelhub/backend/internal/scheduler"
	"github.com/reelhub/backend/internal/stream"
	"github.com/reelhub/backend/internal/videos"
	"go.uber.org/zap"
)

var (
	svc   *scheduler.Service
	locks cache.Store
	cfg   *config.Config
)

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Initialize(cfg.LogLevel, ""); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	db, err := database.Open(cfg.Database, false)
	if err != nil {
		logger.FatalWithFields("Failed to connect to database", err)
	}

	if cfg.Redis.Enabled() {
		rc, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.FatalWithFields("Failed to connect to redis", err)
		}
		locks = rc
	}

	var mailer email.Sender
	if ses, err := email.NewSESService(context.Background(), cfg.AWS.Region, cfg.AWS.EmailFrom); err != nil {
		logger.WarnWithFields("SES unavailable, email deliveries skipped", err)
	} else {
		mailer = ses
	}

	deps := videos.Deps{Notifier: notify.NewService(db, nil, mailer)}
	if feed, err := stream.NewClient(cfg.Stream); err == nil {
		deps.Feed = feed
	}
	svc = scheduler.NewService(db, videos.NewService(db, deps), nil, deps.Notifier)

	logger.Log.Info("Publish lambda initialized", zap.Bool("redis_lock", locks != nil), zap.Bool("activity_feed", deps.Feed != nil))
}

func handleRequest(ctx context.Context, event events.CloudWatchEvent) (*scheduler.Summary, error) {
	summary, ran, err := scheduler.RunLocked(ctx, svc, locks, cfg.Scheduler.Interval, cfg.Scheduler.BatchSize)
	if err != nil {
		logger.Log.Error("Publish pass failed", zap.String("event_id", event.ID), zap.Error(err))
		return summary, err
	}
	if !ran {
		logger.Log.Info("Publish lock held elsewhere, skipping", zap.String("event_id", event.ID))
		return &scheduler.Summary{}, nil
	}
	logger.Log.Info("Publish pass complete",
		zap.String("event_id", event.ID),
		zap.Int("processed", summary.Processed),
		zap.Int("published", summary.Published),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

func main() {
	lambda.Start(handleRequest)
}
