package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/reelhub/backend/internal/cache"
	"github.com/reelhub/backend/internal/config"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/metrics"
	"go.uber.org/zap"
)

// LockKey guards publish passes across instances
const LockKey = "scheduler:publish-scheduled"

// Runner executes publish passes on an interval: once at start, then every
// tick, until Stop.
type Runner struct {
	svc       *Service
	locks     cache.Store
	interval  time.Duration
	batchSize int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates a runner. A nil locks store runs passes unguarded, which
// is only safe for a single instance.
func NewRunner(svc *Service, locks cache.Store, cfg config.SchedulerConfig) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Runner{
		svc:       svc,
		locks:     locks,
		interval:  interval,
		batchSize: cfg.BatchSize,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (r *Runner) Start() {
	logger.Log.Info("Starting scheduled video publisher", zap.Duration("interval", r.interval))
	r.wg.Add(1)
	go r.run()
}

// Stop cancels the loop and waits for an in-flight pass to return
func (r *Runner) Stop() {
	logger.Log.Info("Stopping scheduled video publisher")
	r.cancel()
	r.wg.Wait()
}

func (r *Runner) run() {
	defer r.wg.Done()

	r.tick()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.tick()
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Runner) tick() {
	summary, ran, err := r.RunLocked(r.ctx)
	if err != nil {
		logger.Log.Error("Scheduled publish pass failed", zap.Error(err))
		return
	}
	if ran && summary.Processed > 0 {
		logger.Log.Info("Scheduled publish pass completed",
			zap.Int("processed", summary.Processed),
			zap.Int("published", summary.Published),
			zap.Int("failed", summary.Failed))
	}
}

// RunLocked runs one pass under the shared lock. ran is false when another
// instance holds it.
func (r *Runner) RunLocked(ctx context.Context) (*Summary, bool, error) {
	return RunLocked(ctx, r.svc, r.locks, r.interval, r.batchSize)
}

// RunLocked is the lock-guarded pass shared by the runner, the CLI and the
// lambda. The lock expires after ttl if the holder dies mid-pass.
func RunLocked(ctx context.Context, svc *Service, locks cache.Store, ttl time.Duration, batchSize int) (*Summary, bool, error) {
	m := metrics.Get()

	if locks != nil {
		release, ok, err := locks.AcquireLock(ctx, LockKey, ttl)
		if err != nil {
			m.SchedulerRunsTotal.WithLabelValues("error").Inc()
			return nil, false, err
		}
		if !ok {
			m.SchedulerLockContended.Inc()
			m.SchedulerRunsTotal.WithLabelValues("skipped").Inc()
			return nil, false, nil
		}
		defer release()
	}

	start := time.Now()
	summary, err := svc.RunOnce(ctx, batchSize)
	m.SchedulerRunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.SchedulerRunsTotal.WithLabelValues("error").Inc()
		return summary, true, err
	}
	m.SchedulerRunsTotal.WithLabelValues("ok").Inc()
	return summary, true, nil
}
