package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lexigraph/lexigraph/internal/domain"
	"github.com/lexigraph/lexigraph/internal/platform/logger"
	"github.com/lexigraph/lexigraph/internal/queue"
	"github.com/lexigraph/lexigraph/internal/store"
)

// Retry errors returned by Service.Retry.
var (
	// ErrNotRetryable is returned when retry is requested for a task
	// that is not in the failed state.
	ErrNotRetryable = errors.New("only failed tasks can be retried")

	// ErrRetryExhausted is returned when a task has already been
	// retried the maximum number of times.
	ErrRetryExhausted = errors.New("task retry limit reached")
)

// Service coordinates the task store and the delivery log. It owns
// the task lifecycle operations exposed to the API and the worker.
type Service struct {
	// db enables the transactional create-and-publish path. It may be
	// nil in tests or single-process deployments, in which case the
	// service falls back to sequential writes with a compensating
	// failure mark.
	db     *sql.DB
	tasks  store.TaskStore
	queue  queue.Queue
	logger *slog.Logger
}

// NewService creates a task service. db may be nil (see Service.db).
func NewService(db *sql.DB, tasks store.TaskStore, q queue.Queue, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		db:     db,
		tasks:  tasks,
		queue:  q,
		logger: log.With(slog.String("component", "task_service")),
	}
}

// Create allocates a new pending task and publishes its queue entry.
// With a database handle both writes commit in one transaction; a
// created task can therefore never exist without having been queued.
func (s *Service) Create(ctx context.Context, taskType domain.TaskType, userID, caseID uuid.UUID) (*domain.Task, error) {
	t, err := domain.NewTask(taskType, userID, caseID)
	if err != nil {
		return nil, err
	}
	return t, s.publish(ctx, t)
}

// publish persists the task and appends its queue entry.
func (s *Service) publish(ctx context.Context, t *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	entry := queue.Entry{
		TaskID:   t.ID,
		TaskType: t.Type,
		UserID:   t.UserID,
		CaseID:   t.CaseID,
	}

	if s.db != nil {
		err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
			if err := s.tasks.WithTx(tx).Create(ctx, t); err != nil {
				return err
			}
			return s.queue.WithTx(tx).Append(ctx, entry)
		})
		if err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
	} else {
		if err := s.tasks.Create(ctx, t); err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
		if err := s.queue.Append(ctx, entry); err != nil {
			// The record exists but was never queued; mark it failed so
			// it is visible and retryable instead of stuck in pending.
			log.Error("task created but queue append failed",
				slog.String("task_id", t.ID.String()),
				slog.String("error", err.Error()))
			_ = s.tasks.UpdateStatus(ctx, t.ID, store.TaskStatusUpdate{
				Status: domain.TaskStatusFailed,
				Error:  fmt.Sprintf("failed to enqueue task: %v", err),
			})
			return fmt.Errorf("failed to enqueue task: %w", err)
		}
	}

	log.Info("task enqueued",
		slog.String("task_id", t.ID.String()),
		slog.String("task_type", string(t.Type)),
		slog.String("case_id", t.CaseID.String()))
	return nil
}

// Get retrieves a task by ID. Returns store.ErrTaskNotFound when the
// task does not exist or has been purged.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

// List retrieves the user's tasks, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, filter store.TaskFilter) ([]*domain.Task, error) {
	return s.tasks.ListForUser(ctx, userID, filter)
}

// UpdateStatus applies a status transition. Failures are logged and
// swallowed: a stale or expired task record must never crash the
// worker loop that reports on it.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, upd store.TaskStatusUpdate) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := s.tasks.UpdateStatus(ctx, id, upd); err != nil {
		log.Error("failed to update task status",
			slog.String("task_id", id.String()),
			slog.String("status", string(upd.Status)),
			slog.String("error", err.Error()))
	}
}

// Retry creates a brand-new task for a failed one, carrying forward
// retry_count + 1. Only failed tasks owned by the caller are
// retryable, and only below the retry ceiling.
func (s *Service) Retry(ctx context.Context, taskID, userID uuid.UUID) (*domain.Task, error) {
	prev, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if prev.UserID != userID {
		return nil, domain.ErrUnauthorized
	}

	if prev.Status != domain.TaskStatusFailed {
		return nil, fmt.Errorf("%w: task is %s", ErrNotRetryable, prev.Status)
	}

	if prev.RetryCount >= domain.MaxTaskRetries {
		return nil, fmt.Errorf("%w: %d attempts", ErrRetryExhausted, prev.RetryCount)
	}

	t, err := domain.NewTask(prev.Type, prev.UserID, prev.CaseID)
	if err != nil {
		return nil, err
	}
	t.RetryCount = prev.RetryCount + 1

	if err := s.publish(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("task retried",
		slog.String("previous_task_id", prev.ID.String()),
		slog.String("task_id", t.ID.String()),
		slog.Int("retry_count", t.RetryCount))
	return t, nil
}

// PurgeExpired removes task records older than the retention window.
// Records may be purged regardless of terminal status.
func (s *Service) PurgeExpired(ctx context.Context, age time.Duration) (int64, error) {
	return s.tasks.PurgeOlderThan(ctx, age)
}
