package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/lexigraph/lexigraph/internal/task"
)

// Default retention tuning.
const (
	defaultSweepInterval = time.Hour
	defaultTaskRetention = 7 * 24 * time.Hour
)

// AckedPurger removes acknowledged delivery-log entries older than the
// given age. The durable queue implements it; the in-memory queue has
// nothing to purge.
type AckedPurger interface {
	PurgeAcked(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Sweeper periodically deletes expired task records and acknowledged
// queue entries so neither table grows without bound.
type Sweeper struct {
	tasks     *task.Service
	purger    AckedPurger // nil when the queue is not durable
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger
}

// NewSweeper creates a retention sweeper. purger may be nil. Zero
// interval and retention fall back to one hour and seven days.
func NewSweeper(tasks *task.Service, purger AckedPurger, interval, retention time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if retention <= 0 {
		retention = defaultTaskRetention
	}

	return &Sweeper{
		tasks:     tasks,
		purger:    purger,
		interval:  interval,
		retention: retention,
		logger:    log.With(slog.String("component", "sweeper")),
	}
}

// Run sweeps on a ticker until ctx is cancelled. An immediate sweep
// runs on startup so a long-idle deployment catches up right away.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	purged, err := s.tasks.PurgeExpired(ctx, s.retention)
	if err != nil {
		s.logger.Error("failed to purge expired tasks", slog.String("error", err.Error()))
	} else if purged > 0 {
		s.logger.Info("purged expired tasks", slog.Int64("count", purged))
	}

	if s.purger == nil {
		return
	}

	purged, err = s.purger.PurgeAcked(ctx, s.retention)
	if err != nil {
		s.logger.Error("failed to purge acknowledged queue entries", slog.String("error", err.Error()))
	} else if purged > 0 {
		s.logger.Info("purged acknowledged queue entries", slog.Int64("count", purged))
	}
}
