package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lexigraph/lexigraph/internal/domain"
)

// TaskStatusUpdate carries the fields of a task status transition.
// Result and Error are only meaningful alongside a terminal status.
type TaskStatusUpdate struct {
	Status   domain.TaskStatus
	Progress int
	Result   map[string]any
	Error    string
}

// TaskFilter narrows a task listing. Nil fields match everything.
type TaskFilter struct {
	Status *domain.TaskStatus
	Type   *domain.TaskType
	Limit  int
}

// TaskStore defines the interface for persisting tasks.
// Version: 1.0
type TaskStore interface {
	// Create saves a new task to the store.
	// Returns validation errors from the domain Task if data is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// UpdateStatus applies a status transition to an existing task.
	// A terminal status also sets completed_at. An unknown task ID is
	// logged and treated as a no-op: a stale or expired task update
	// must never crash the worker.
	UpdateStatus(ctx context.Context, id uuid.UUID, upd TaskStatusUpdate) error

	// ListForUser retrieves the user's tasks, newest first, applying
	// the given filter.
	ListForUser(ctx context.Context, userID uuid.UUID, filter TaskFilter) ([]*domain.Task, error)

	// PurgeOlderThan deletes task records created before the retention
	// window, regardless of status, and reports how many were removed.
	PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error)

	// WithTx returns a new TaskStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) TaskStore
}
