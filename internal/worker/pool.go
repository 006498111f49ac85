// Package worker runs the claim-execute-acknowledge loop that drains
// the task delivery log. Each worker goroutine claims one entry at a
// time, dispatches it to the stage registered for its task type, and
// acknowledges the entry whether the stage succeeded or failed:
// retries are brand-new tasks, never redelivery of an acknowledged
// entry.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lexigraph/lexigraph/internal/domain"
	"github.com/lexigraph/lexigraph/internal/platform/logger"
	"github.com/lexigraph/lexigraph/internal/queue"
	"github.com/lexigraph/lexigraph/internal/store"
	"github.com/lexigraph/lexigraph/internal/task"
)

// StageFunc executes one pipeline stage for a claimed task and returns
// the result payload recorded on completion.
type StageFunc func(ctx context.Context, t *domain.Task) (map[string]any, error)

// Default pool tuning.
const (
	defaultWorkerCount = 4
	defaultClaimWait   = 5 * time.Second

	// claimErrorBackoff spaces out retries when the queue itself is
	// failing, so a down database is not hammered in a tight loop.
	claimErrorBackoff = time.Second
)

// Config tunes a Pool. Zero values fall back to defaults.
type Config struct {
	// Count is the number of concurrent worker goroutines.
	Count int

	// ClaimWait bounds how long a single claim call blocks waiting for
	// an entry before polling again.
	ClaimWait time.Duration
}

// Pool owns a set of worker goroutines sharing one queue and one stage
// registry.
type Pool struct {
	queue     queue.Queue
	tasks     *task.Service
	stages    map[domain.TaskType]StageFunc
	count     int
	claimWait time.Duration
	logger    *slog.Logger

	wg sync.WaitGroup
}

// NewPool creates a worker pool over the given queue and stage
// registry. The registry maps each task type to the stage that
// executes it; claimed entries of an unregistered type fail their task.
func NewPool(q queue.Queue, tasks *task.Service, stages map[domain.TaskType]StageFunc, cfg Config, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Count <= 0 {
		cfg.Count = defaultWorkerCount
	}
	if cfg.ClaimWait <= 0 {
		cfg.ClaimWait = defaultClaimWait
	}

	return &Pool{
		queue:     q,
		tasks:     tasks,
		stages:    stages,
		count:     cfg.Count,
		claimWait: cfg.ClaimWait,
		logger:    log.With(slog.String("component", "worker_pool")),
	}
}

// Start launches the worker goroutines. They run until ctx is
// cancelled or the queue is closed; call Wait to block for drain.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.count; i++ {
		consumer := fmt.Sprintf("worker-%d", i)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx, consumer)
		}()
	}

	p.logger.Info("worker pool started", slog.Int("workers", p.count))
}

// Wait blocks until every worker goroutine has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// run is one worker's claim loop.
func (p *Pool) run(ctx context.Context, consumer string) {
	log := p.logger.With(slog.String("consumer", consumer))

	for {
		if ctx.Err() != nil {
			log.Info("worker stopping", slog.String("reason", "context cancelled"))
			return
		}

		claimed, err := p.queue.Claim(ctx, consumer, p.claimWait)
		if err != nil {
			switch {
			case errors.Is(err, queue.ErrNoEntry):
				continue
			case errors.Is(err, queue.ErrClosed):
				log.Info("worker stopping", slog.String("reason", "queue closed"))
				return
			case ctx.Err() != nil:
				log.Info("worker stopping", slog.String("reason", "context cancelled"))
				return
			default:
				claimFailures.Inc()
				log.Error("queue claim failed", slog.String("error", err.Error()))
				select {
				case <-ctx.Done():
					return
				case <-time.After(claimErrorBackoff):
				}
				continue
			}
		}

		p.process(ctx, consumer, claimed)
	}
}

// process executes one claimed entry end to end. The entry is
// acknowledged in every branch: an entry that cannot be processed is
// still consumed, because redelivering it would only fail again.
func (p *Pool) process(ctx context.Context, consumer string, claimed *queue.ClaimedEntry) {
	log := p.logger.With(
		slog.String("consumer", consumer),
		slog.String("task_id", claimed.TaskID.String()),
		slog.String("task_type", string(claimed.TaskType)),
	)
	ctx = logger.WithLogger(ctx, log)

	defer func() {
		if err := p.queue.Ack(ctx, consumer, claimed.ID); err != nil {
			log.Error("failed to acknowledge queue entry",
				slog.Int64("entry_id", claimed.ID),
				slog.String("error", err.Error()))
		}
	}()

	t, err := p.tasks.Get(ctx, claimed.TaskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			// The record was purged after the entry was appended.
			tasksProcessed.WithLabelValues(string(claimed.TaskType), outcomeOrphaned).Inc()
			log.Warn("queue entry references unknown task")
			return
		}
		tasksProcessed.WithLabelValues(string(claimed.TaskType), outcomeOrphaned).Inc()
		log.Error("failed to load task for queue entry", slog.String("error", err.Error()))
		return
	}

	if t.Status.IsTerminal() {
		// Redelivery of already-finished work, e.g. after a crash
		// between processing and acknowledgement.
		tasksProcessed.WithLabelValues(string(t.Type), outcomeDuplicate).Inc()
		log.Info("skipping already-terminal task", slog.String("status", string(t.Status)))
		return
	}

	p.tasks.UpdateStatus(ctx, t.ID, store.TaskStatusUpdate{
		Status:   domain.TaskStatusInProgress,
		Progress: 0,
	})
	t.Status = domain.TaskStatusInProgress

	stage, ok := p.stages[t.Type]
	if !ok {
		p.fail(ctx, t, fmt.Errorf("no stage registered for task type %q", t.Type))
		return
	}

	log.Info("task started")
	start := time.Now()
	result, err := stage(ctx, t)
	taskDuration.WithLabelValues(string(t.Type)).Observe(time.Since(start).Seconds())

	if err != nil {
		p.fail(ctx, t, err)
		return
	}

	p.tasks.UpdateStatus(ctx, t.ID, store.TaskStatusUpdate{
		Status:   domain.TaskStatusCompleted,
		Progress: 100,
		Result:   result,
	})
	tasksProcessed.WithLabelValues(string(t.Type), outcomeCompleted).Inc()
	log.Info("task completed", slog.Duration("duration", time.Since(start)))
}

// fail records a terminal failure on the task.
func (p *Pool) fail(ctx context.Context, t *domain.Task, stageErr error) {
	p.tasks.UpdateStatus(ctx, t.ID, store.TaskStatusUpdate{
		Status: domain.TaskStatusFailed,
		Error:  stageErr.Error(),
	})
	tasksProcessed.WithLabelValues(string(t.Type), outcomeFailed).Inc()

	logger.FromContextOrDefault(ctx, p.logger).Error("task failed",
		slog.String("task_id", t.ID.String()),
		slog.String("error", stageErr.Error()))
}
