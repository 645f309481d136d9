package database

import (
	"fmt"
	"time"

	"github.com/reelhub/backend/internal/config"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/metrics"
	"github.com/reelhub/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open creates and configures the Postgres connection
func Open(cfg config.DatabaseConfig, development bool) (*gorm.DB, error) {
	gormLogger := gormlogger.Default.LogMode(gormlogger.Warn)
	if development {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	logger.Log.Info("Database connected")
	return db, nil
}

// Migrate runs auto-migration for all models and creates the indexes gorm
// tags cannot express.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, stmt := range sharedIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	if db.Dialector.Name() == "postgres" {
		createIndexes(db)
	}

	logger.Log.Info("Database migrations completed")
	return nil
}

// sharedIndexes back invariants the services rely on, so they run on every
// dialect and a failure aborts the migration.
var sharedIndexes = []string{
	"CREATE UNIQUE INDEX IF NOT EXISTS idx_wallet_transactions_watch_once ON wallet_transactions (user_id, reference) WHERE reason = 'watch_milestone'",
}

var postgresIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_users_username_lower ON users (LOWER(username))",
	"CREATE INDEX IF NOT EXISTS idx_videos_feed ON videos (published_at DESC) WHERE is_public AND status = 'live' AND deleted_at IS NULL",
	"CREATE INDEX IF NOT EXISTS idx_videos_user_published ON videos (user_id, published_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_scheduled_videos_due ON scheduled_videos (publish_at) WHERE status = 'pending'",
	"CREATE INDEX IF NOT EXISTS idx_orders_seller_status ON orders (seller_id, status)",
	"CREATE INDEX IF NOT EXISTS idx_wallet_transactions_user_created ON wallet_transactions (user_id, created_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_notifications_user_unread ON notifications (user_id, created_at DESC) WHERE NOT read",
	"CREATE INDEX IF NOT EXISTS idx_video_views_video_created ON video_views (video_id, created_at)",
}

func createIndexes(db *gorm.DB) {
	for _, stmt := range postgresIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			logger.Log.Warn("Failed to create index", zap.String("statement", stmt), zap.Error(err))
		}
	}
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health checks database connectivity
func Health(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Ping(); err != nil {
		return err
	}
	metrics.SetDatabaseConnections("postgres", sqlDB.Stats().OpenConnections)
	return nil
}
