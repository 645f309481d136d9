package main

import (
	"context"
	"fmt"
	"time"

	"github.com/reelhub/backend/internal/cache"
	"github.com/reelhub/backend/internal/config"
	"github.com/reelhub/backend/internal/database"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/notify"
	"github.com/reelhub/backend/internal/scheduler"
	"github.com/reelhub/backend/internal/search"
	"github.com/reelhub/backend/internal/seed"
	"github.com/reelhub/backend/internal/stream"
	"github.com/reelhub/backend/internal/videos"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// openDB loads the server configuration and connects to its database
func openDB() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg.Database, false)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close(db)

		if err := database.Migrate(db); err != nil {
			return err
		}
		fmt.Println("Migrations complete")
		return nil
	},
}

var (
	seedUsers    int
	seedVideos   int
	seedLikes    int
	seedViews    int
	seedSaves    int
	seedProducts int
)

var seedCmd = &cobra.Command{
	Use:       "seed <dev|test|clean>",
	Short:     "Populate or wipe the database with fake data",
	Long:      "dev: a realistic random data set. test: fixed accounts alice..eve. clean: delete all rows.",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"dev", "test", "clean"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close(db)
		if err := database.Migrate(db); err != nil {
			return err
		}

		seeder := seed.NewSeeder(db)
		if chat, err := stream.NewClient(cfg.Stream); err == nil {
			seeder.SetChatClient(chat)
		}

		ctx := cmd.Context()
		switch args[0] {
		case "dev":
			counts := seed.DefaultCounts
			flags := cmd.Flags()
			if flags.Changed("users") {
				counts.Users = seedUsers
			}
			if flags.Changed("videos") {
				counts.Videos = seedVideos
			}
			if flags.Changed("likes") {
				counts.Likes = seedLikes
			}
			if flags.Changed("views") {
				counts.Views = seedViews
			}
			if flags.Changed("saves") {
				counts.Saves = seedSaves
			}
			if flags.Changed("products") {
				counts.Products = seedProducts
			}
			seeder.SetCounts(counts)
			err = seeder.SeedDev(ctx)
		case "test":
			err = seeder.SeedTest(ctx)
		case "clean":
			err = seeder.Clean(ctx)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Seed %s complete (password for seeded accounts: %s)\n", args[0], seed.DefaultPassword)
		return nil
	},
}

var (
	publishBatch  int
	publishRemote bool
)

var publishCmd = &cobra.Command{
	Use:   "publish-scheduled",
	Short: "Publish due scheduled videos once",
	Long: `Runs one publish pass against the database under the shared redis lock,
or with --remote asks the API to run it (admin token required).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if publishRemote {
			summary, err := apiClient().RunScheduledPublish(cmd.Context(), publishBatch)
			if err != nil {
				return err
			}
			return printResult(summary, fmt.Sprintf("processed %d, published %d, failed %d", summary.Processed, summary.Published, summary.Failed))
		}

		cfg, db, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close(db)

		var locks cache.Store
		if cfg.Redis.Enabled() {
			rc, err := cache.NewRedisClient(cfg.Redis)
			if err != nil {
				return err
			}
			defer rc.Close()
			locks = rc
		}

		deps := videos.Deps{Notifier: notify.NewService(db, nil, nil)}
		if feed, err := stream.NewClient(cfg.Stream); err == nil {
			deps.Feed = feed
		}
		svc := scheduler.NewService(db, videos.NewService(db, deps), nil, deps.Notifier)
		summary, ran, err := scheduler.RunLocked(cmd.Context(), svc, locks, cfg.Scheduler.Interval, publishBatch)
		if err != nil {
			return err
		}
		if !ran {
			fmt.Println("Another instance holds the publish lock; nothing done")
			return nil
		}
		return printResult(summary, fmt.Sprintf("processed %d, published %d, failed %d", summary.Processed, summary.Published, summary.Failed))
	},
}

var (
	reindexSince time.Duration
	reindexBatch int
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search index from the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close(db)

		es, err := search.NewClient(cfg.Search)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
		defer cancel()
		if err := es.EnsureIndex(ctx); err != nil {
			return err
		}

		var since time.Time
		if reindexSince > 0 {
			since = time.Now().Add(-reindexSince)
		}
		summary, err := search.Reindex(ctx, db, es, since, reindexBatch)
		if err != nil {
			return err
		}
		logger.Log.Info("Reindex finished",
			zap.Int("indexed", summary.Indexed),
			zap.Int("deleted", summary.Deleted),
			zap.Int("failed", summary.Failed))
		return printResult(summary, fmt.Sprintf("indexed %d, deleted %d, failed %d", summary.Indexed, summary.Deleted, summary.Failed))
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedUsers, "users", seed.DefaultCounts.Users, "users to create (dev)")
	seedCmd.Flags().IntVar(&seedVideos, "videos", seed.DefaultCounts.Videos, "videos to create (dev)")
	seedCmd.Flags().IntVar(&seedLikes, "likes", seed.DefaultCounts.Likes, "likes to create (dev)")
	seedCmd.Flags().IntVar(&seedViews, "views", seed.DefaultCounts.Views, "views to create (dev)")
	seedCmd.Flags().IntVar(&seedSaves, "saves", seed.DefaultCounts.Saves, "bookmarks to create (dev)")
	seedCmd.Flags().IntVar(&seedProducts, "products", seed.DefaultCounts.Products, "products to create (dev)")

	publishCmd.Flags().IntVar(&publishBatch, "batch-size", 50, "maximum videos to publish")
	publishCmd.Flags().BoolVar(&publishRemote, "remote", false, "run the pass on the API server")

	reindexCmd.Flags().DurationVar(&reindexSince, "since", 0, "only videos updated within this window (0 = all)")
	reindexCmd.Flags().IntVar(&reindexBatch, "batch-size", 200, "rows per batch")
}
