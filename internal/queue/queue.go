// Package queue provides the durable, append-only delivery log that
// decouples task creation from worker execution. Entries are delivered
// at least once: a claimed entry that is never acknowledged becomes
// claimable again, so stage logic must be safe to re-run.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lexigraph/lexigraph/internal/domain"
)

// Common errors returned by queue implementations.
var (
	// ErrNoEntry is returned by Claim when no entry became available
	// within the bounded wait.
	ErrNoEntry = errors.New("no queue entry available")

	// ErrUnavailable wraps transport-level failures to append, claim
	// or acknowledge.
	ErrUnavailable = errors.New("queue unavailable")

	// ErrClosed is returned when the queue has been shut down.
	ErrClosed = errors.New("queue is closed")
)

// Entry is the immutable routing record appended to the delivery log.
// It carries only task routing metadata, never document content.
type Entry struct {
	TaskID   uuid.UUID
	TaskType domain.TaskType
	UserID   uuid.UUID
	CaseID   uuid.UUID
}

// ClaimedEntry is an Entry together with its position in the log,
// needed to acknowledge it.
type ClaimedEntry struct {
	Entry

	// ID is the entry's position in the delivery log.
	ID int64
}

// Queue is the delivery-log contract shared by the durable postgres
// implementation and the single-process in-memory one.
// Version: 1.0
type Queue interface {
	// Append adds an entry to the log. It is a pure write and never
	// blocks on downstream processing.
	Append(ctx context.Context, e Entry) error

	// Claim blocks for at most maxWait for the next unacknowledged
	// entry, assigning it to the named consumer. Returns ErrNoEntry
	// when the wait elapses without a delivery. Entries are delivered
	// in append order per consumer.
	Claim(ctx context.Context, consumer string, maxWait time.Duration) (*ClaimedEntry, error)

	// Ack removes the entry from the pending set for the consumer
	// group. Processed entries are acknowledged exactly once, on
	// success and on failure alike; retries are new entries, never
	// redelivery of an acknowledged one.
	Ack(ctx context.Context, consumer string, entryID int64) error

	// WithTx returns a Queue whose Append participates in the provided
	// transaction, so task creation and queue publication commit
	// atomically. Implementations without transactional storage return
	// themselves.
	WithTx(tx *sql.Tx) Queue
}
