package search

import (
	"context"
	"sync"
	"time"

	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReindexSummary counts the documents touched by a reconciliation pass
type ReindexSummary struct {
	Indexed int `json:"indexed"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// Reindex writes every live public video updated since `since` and deletes
// removed ones. A zero since reindexes everything.
func Reindex(ctx context.Context, db *gorm.DB, idx Indexer, since time.Time, batchSize int) (ReindexSummary, error) {
	var summary ReindexSummary
	if batchSize <= 0 {
		batchSize = 100
	}

	var batch []models.Video
	query := db.WithContext(ctx).Unscoped().Preload("User").Where("updated_at >= ?", since)
	err := query.FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		for i := range batch {
			video := &batch[i]
			var err error
			if video.DeletedAt.Valid || video.Status != models.VideoStatusLive || !video.IsPublic {
				err = idx.DeleteVideo(ctx, video.ID)
				if err == nil {
					summary.Deleted++
				}
			} else {
				err = idx.IndexVideo(ctx, video)
				if err == nil {
					summary.Indexed++
				}
			}
			if err != nil {
				summary.Failed++
				logger.Log.Warn("Failed to reconcile video", logger.WithVideoID(video.ID), zap.Error(err))
			}
		}
		return ctx.Err()
	}).Error
	return summary, err
}

// ReconciliationService periodically resynchronizes recently changed videos
// to catch index writes that failed inline.
type ReconciliationService struct {
	db       *gorm.DB
	indexer  Indexer
	interval time.Duration
	lastRun  time.Time

	stopChan  chan struct{}
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(db *gorm.DB, indexer Indexer, interval time.Duration) *ReconciliationService {
	return &ReconciliationService{
		db:       db,
		indexer:  indexer,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic reconciliation loop
func (rs *ReconciliationService) Start() {
	rs.mu.Lock()
	if rs.isRunning {
		rs.mu.Unlock()
		return
	}
	rs.isRunning = true
	rs.mu.Unlock()

	logger.Log.Info("Starting search reconciliation service", zap.Duration("interval", rs.interval))

	rs.wg.Add(1)
	go rs.loop()
}

// Stop gracefully stops the reconciliation service
func (rs *ReconciliationService) Stop() {
	rs.mu.Lock()
	if !rs.isRunning {
		rs.mu.Unlock()
		return
	}
	rs.isRunning = false
	rs.mu.Unlock()

	close(rs.stopChan)
	rs.wg.Wait()
	logger.Log.Info("Search reconciliation service stopped")
}

func (rs *ReconciliationService) loop() {
	defer rs.wg.Done()

	rs.runOnce()

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-rs.stopChan:
			return
		case <-ticker.C:
			rs.runOnce()
		}
	}
}

func (rs *ReconciliationService) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	started := time.Now()
	// Overlap one interval so rows committed during the previous pass are seen
	since := rs.lastRun.Add(-rs.interval)
	if rs.lastRun.IsZero() {
		since = time.Time{}
	}

	summary, err := Reindex(ctx, rs.db, rs.indexer, since, 100)
	if err != nil {
		logger.Log.Warn("Search reconciliation failed", zap.Error(err))
		return
	}
	rs.lastRun = started

	logger.Log.Info("Search reconciliation completed",
		zap.Int("indexed", summary.Indexed),
		zap.Int("deleted", summary.Deleted),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", time.Since(started)),
	)
}
