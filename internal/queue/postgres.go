package queue

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
	"github.com/lexigraph/lexigraph/internal/store"
)

// Default delivery parameters for the postgres queue.
const (
	// DefaultVisibilityTimeout is how long a claim holds an entry
	// before it becomes claimable again. A worker that crashes without
	// acknowledging loses its claim after this window, which is the
	// at-least-once redelivery path.
	DefaultVisibilityTimeout = 5 * time.Minute

	// defaultPollInterval is how often Claim re-checks the log while
	// waiting for a new entry.
	defaultPollInterval = 250 * time.Millisecond
)

// PostgresQueue implements Queue on a single postgres table acting as
// an append-only log with consumer-group bookkeeping. Claim selects
// the oldest unacknowledged entry with FOR UPDATE SKIP LOCKED so that
// concurrent workers never receive the same entry, while an expired
// claim (visibility timeout) makes the entry deliverable again.
type PostgresQueue struct {
	db           store.DBTX
	visibility   time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewPostgresQueue creates a new postgres-backed queue. A zero
// visibility duration selects DefaultVisibilityTimeout. If logger is
// nil, a default logger is used.
func NewPostgresQueue(db store.DBTX, visibility time.Duration, logger *slog.Logger) *PostgresQueue {
	if db == nil {
		panic("db cannot be nil")
	}
	if visibility <= 0 {
		visibility = DefaultVisibilityTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresQueue{
		db:           db,
		visibility:   visibility,
		pollInterval: defaultPollInterval,
		logger:       logger.With(slog.String("component", "postgres_queue")),
	}
}

var _ Queue = (*PostgresQueue)(nil)

// Append implements Queue.Append as a pure INSERT.
func (q *PostgresQueue) Append(ctx context.Context, e Entry) error {
	log := logger.FromContextOrDefault(ctx, q.logger)

	query := `
		INSERT INTO queue_entries (task_id, task_type, user_id, case_id, appended_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := q.db.ExecContext(ctx, query,
		e.TaskID,
		e.TaskType,
		e.UserID,
		e.CaseID,
		time.Now().UTC(),
	)
	if err != nil {
		log.Error("failed to append queue entry",
			slog.String("task_id", e.TaskID.String()),
			slog.String("task_type", string(e.TaskType)),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: append failed: %v", ErrUnavailable, err)
	}

	log.Debug("queue entry appended",
		slog.String("task_id", e.TaskID.String()),
		slog.String("task_type", string(e.TaskType)))
	return nil
}

// Claim implements Queue.Claim by polling the log with SKIP LOCKED
// selection until an entry is claimed or maxWait elapses.
func (q *PostgresQueue) Claim(ctx context.Context, consumer string, maxWait time.Duration) (*ClaimedEntry, error) {
	deadline := time.Now().Add(maxWait)

	for {
		ce, err := q.tryClaim(ctx, consumer)
		if err != nil {
			return nil, err
		}
		if ce != nil {
			return ce, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrNoEntry
		}

		wait := q.pollInterval
		if wait > remaining {
			wait = remaining
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// tryClaim attempts a single claim. A nil entry with nil error means
// the log had nothing deliverable.
func (q *PostgresQueue) tryClaim(ctx context.Context, consumer string) (*ClaimedEntry, error) {
	log := logger.FromContextOrDefault(ctx, q.logger)

	// An entry is deliverable when it was never claimed or its claim
	// has passed the visibility timeout without an acknowledgment.
	query := `
		UPDATE queue_entries
		SET claimed_by = $1, claimed_at = $2
		WHERE id = (
			SELECT id
			FROM queue_entries
			WHERE acked_at IS NULL
			  AND (claimed_at IS NULL OR claimed_at < $3)
			ORDER BY id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, task_id, task_type, user_id, case_id
	`

	now := time.Now().UTC()
	cutoff := now.Add(-q.visibility)

	var (
		id       int64
		taskID   uuid.UUID
		taskType string
		userID   uuid.UUID
		caseID   uuid.UUID
	)

	err := q.db.QueryRowContext(ctx, query, consumer, now, cutoff).
		Scan(&id, &taskID, &taskType, &userID, &caseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Error("failed to claim queue entry",
			slog.String("consumer", consumer),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: claim failed: %v", ErrUnavailable, err)
	}

	log.Debug("queue entry claimed",
		slog.Int64("entry_id", id),
		slog.String("task_id", taskID.String()),
		slog.String("consumer", consumer))

	return &ClaimedEntry{
		ID: id,
		Entry: Entry{
			TaskID:   taskID,
			TaskType: domain.TaskType(taskType),
			UserID:   userID,
			CaseID:   caseID,
		},
	}, nil
}

// Ack implements Queue.Ack. Acknowledging an entry that is unknown or
// claimed by another consumer is logged and treated as a no-op.
func (q *PostgresQueue) Ack(ctx context.Context, consumer string, entryID int64) error {
	log := logger.FromContextOrDefault(ctx, q.logger)

	query := `
		UPDATE queue_entries
		SET acked_at = $1
		WHERE id = $2 AND claimed_by = $3 AND acked_at IS NULL
	`
	result, err := q.db.ExecContext(ctx, query, time.Now().UTC(), entryID, consumer)
	if err != nil {
		log.Error("failed to acknowledge queue entry",
			slog.Int64("entry_id", entryID),
			slog.String("consumer", consumer),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: ack failed: %v", ErrUnavailable, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: ack failed: %v", ErrUnavailable, err)
	}

	if rowsAffected == 0 {
		log.Warn("acknowledged entry not pending for consumer",
			slog.Int64("entry_id", entryID),
			slog.String("consumer", consumer))
	}

	return nil
}

// WithTx returns a PostgresQueue whose writes run in the provided
// transaction.
func (q *PostgresQueue) WithTx(tx *sql.Tx) Queue {
	return &PostgresQueue{
		db:           tx,
		visibility:   q.visibility,
		pollInterval: q.pollInterval,
		logger:       q.logger,
	}
}

// PurgeAcked deletes acknowledged entries older than the given age.
// The retention sweeper calls this alongside task purging so the log
// does not grow without bound.
func (q *PostgresQueue) PurgeAcked(ctx context.Context, age time.Duration) (int64, error) {
	result, err := q.db.ExecContext(ctx,
		`DELETE FROM queue_entries WHERE acked_at IS NOT NULL AND acked_at < $1`,
		time.Now().UTC().Add(-age),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: purge failed: %v", ErrUnavailable, err)
	}
	return result.RowsAffected()
}
