package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"context"

	"github.com/google/uuid"
	"github.com/lexigraph/lexigraph/internal/domain"
	"github.com/lexigraph/lexigraph/internal/platform/logger"
	"github.com/lexigraph/lexigraph/internal/store"
)

// defaultTaskListLimit caps ListForUser when the filter does not set one.
const defaultTaskListLimit = 50

// PostgresTaskStore implements the store.TaskStore interface using a
// PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface. If logger is nil, a default logger is used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// Create implements store.TaskStore.Create.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (id, task_type, user_id, case_id, status, progress, retry_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.Type,
		task.UserID,
		task.CaseID,
		task.Status,
		task.Progress,
		task.RetryCount,
		task.CreatedAt,
	)
	if err != nil {
		if isPgError(err, pgUniqueViolationCode) {
			return fmt.Errorf("%w: task %s", store.ErrDuplicate, task.ID)
		}
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return fmt.Errorf("failed to create task: %w", err)
	}

	log.Info("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("task_type", string(task.Type)),
		slog.String("case_id", task.CaseID.String()))
	return nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, task_type, user_id, case_id, status, progress, result, error_message, retry_count, created_at, completed_at
		FROM tasks
		WHERE id = $1
	`
	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTaskNotFound
	}
	if err != nil {
		log.Error("failed to get task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// UpdateStatus implements store.TaskStore.UpdateStatus. Unknown task
// IDs are logged and swallowed so a stale update cannot crash the
// worker loop.
func (s *PostgresTaskStore) UpdateStatus(ctx context.Context, id uuid.UUID, upd store.TaskStatusUpdate) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var resultJSON []byte
	if upd.Result != nil {
		var err error
		resultJSON, err = json.Marshal(upd.Result)
		if err != nil {
			return fmt.Errorf("failed to marshal task result: %w", err)
		}
	}

	var completedAt *time.Time
	if upd.Status.IsTerminal() {
		now := time.Now().UTC()
		completedAt = &now
	}

	// Clamp rather than reject; progress is advisory.
	if upd.Progress < 0 {
		upd.Progress = 0
	} else if upd.Progress > 100 {
		upd.Progress = 100
	}

	query := `
		UPDATE tasks
		SET status = $1,
		    progress = $2,
		    result = COALESCE($3, result),
		    error_message = CASE WHEN $4 <> '' THEN $4 ELSE error_message END,
		    completed_at = COALESCE($5, completed_at)
		WHERE id = $6
	`
	result, err := s.db.ExecContext(ctx, query,
		upd.Status,
		upd.Progress,
		resultJSON,
		upd.Error,
		completedAt,
		id,
	)
	if err != nil {
		log.Error("failed to update task status",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()),
			slog.String("status", string(upd.Status)))
		return fmt.Errorf("failed to update task status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Task may have been purged; treat as a no-op.
		log.Warn("no task found with ID to update status",
			slog.String("task_id", id.String()),
			slog.String("status", string(upd.Status)))
		return nil
	}

	log.Debug("task status updated",
		slog.String("task_id", id.String()),
		slog.String("status", string(upd.Status)),
		slog.Int("progress", upd.Progress))
	return nil
}

// ListForUser implements store.TaskStore.ListForUser, newest first.
func (s *PostgresTaskStore) ListForUser(ctx context.Context, userID uuid.UUID, filter store.TaskFilter) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, task_type, user_id, case_id, status, progress, result, error_message, retry_count, created_at, completed_at
		FROM tasks
		WHERE user_id = $1
	`
	args := []any{userID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		query += fmt.Sprintf(" AND task_type = $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultTaskListLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list tasks",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, nil
}

// PurgeOlderThan implements store.TaskStore.PurgeOlderThan.
func (s *PostgresTaskStore) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE created_at < $1`,
		time.Now().UTC().Add(-age),
	)
	if err != nil {
		log.Error("failed to purge expired tasks",
			slog.String("error", err.Error()))
		return 0, fmt.Errorf("failed to purge expired tasks: %w", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if purged > 0 {
		log.Info("purged expired tasks", slog.Int64("count", purged))
	}
	return purged, nil
}

// WithTx implements store.TaskStore.WithTx.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanTask.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one task row.
func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task        domain.Task
		resultJSON  []byte
		errorMsg    sql.NullString
		completedAt sql.NullTime
	)

	err := row.Scan(
		&task.ID,
		&task.Type,
		&task.UserID,
		&task.CaseID,
		&task.Status,
		&task.Progress,
		&resultJSON,
		&errorMsg,
		&task.RetryCount,
		&task.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &task.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task result: %w", err)
		}
	}
	task.Error = errorMsg.String
	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}

	return &task, nil
}
