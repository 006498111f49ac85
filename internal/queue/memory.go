package queue

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// MemoryQueue is a buffered-channel implementation of Queue for
// single-process deployments and tests. It is not durable: entries are
// lost on restart, and an entry claimed by a consumer that dies is not
// redelivered. Multi-worker deployments use the postgres queue instead.
type MemoryQueue struct {
	entries chan ClaimedEntry
	logger  *slog.Logger

	mu       sync.Mutex
	closed   bool
	nextID   int64
	inflight map[int64]Entry
}

// NewMemoryQueue creates a new in-memory queue with the specified
// buffer size.
func NewMemoryQueue(size int, logger *slog.Logger) *MemoryQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryQueue{
		entries:  make(chan ClaimedEntry, size),
		logger:   logger,
		inflight: make(map[int64]Entry),
	}
}

var _ Queue = (*MemoryQueue)(nil)

// Append adds an entry to the queue. Returns a wrapped ErrUnavailable
// if the buffer is full and ErrClosed after Close.
func (q *MemoryQueue) Append(ctx context.Context, e Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.nextID++
	id := q.nextID

	// The send stays under the lock: Close closes the channel under the
	// same lock, and a send racing the close would panic. The send is
	// non-blocking, so the lock is never held across a wait.
	select {
	case q.entries <- ClaimedEntry{Entry: e, ID: id}:
		q.logger.Debug("queue entry appended",
			"entry_id", id,
			"task_id", e.TaskID,
			"task_type", e.TaskType,
			"queue_len", len(q.entries),
			"queue_cap", cap(q.entries))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrUnavailable, cap(q.entries))
	}
}

// Claim blocks for at most maxWait for the next entry.
func (q *MemoryQueue) Claim(ctx context.Context, consumer string, maxWait time.Duration) (*ClaimedEntry, error) {
	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrNoEntry
	case ce, ok := <-q.entries:
		if !ok {
			return nil, ErrClosed
		}
		q.mu.Lock()
		q.inflight[ce.ID] = ce.Entry
		q.mu.Unlock()
		q.logger.Debug("queue entry claimed",
			"entry_id", ce.ID,
			"task_id", ce.TaskID,
			"consumer", consumer)
		return &ce, nil
	}
}

// Ack marks the claimed entry as processed. Acknowledging an unknown
// entry is a no-op.
func (q *MemoryQueue) Ack(ctx context.Context, consumer string, entryID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, entryID)
	return nil
}

// WithTx implements Queue. The memory queue has no transactional
// storage, so it returns itself; callers fall back to compensating
// updates when a post-commit append fails.
func (q *MemoryQueue) WithTx(tx *sql.Tx) Queue {
	return q
}

// PendingCount reports how many entries are claimed but not yet
// acknowledged. Used by tests and shutdown diagnostics.
func (q *MemoryQueue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}

// Close closes the queue, preventing further appends.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.entries)
		q.logger.Info("memory queue closed")
	}
}
