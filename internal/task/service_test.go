package task

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexigraph/lexigraph/internal/domain"
	"github.com/lexigraph/lexigraph/internal/queue"
	"github.com/lexigraph/lexigraph/internal/store"
)

// fakeTaskStore is an in-memory store.TaskStore for service tests.
type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (f *fakeTaskStore) Create(ctx context.Context, t *domain.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.tasks[t.ID] = &cp
	return nil
}

func (f *fakeTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTaskStore) UpdateStatus(ctx context.Context, id uuid.UUID, upd store.TaskStatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		// Unknown tasks are a logged no-op, mirroring the postgres store.
		return nil
	}
	t.Status = upd.Status
	t.Progress = upd.Progress
	if upd.Result != nil {
		t.Result = upd.Result
	}
	if upd.Error != "" {
		t.Error = upd.Error
	}
	if upd.Status.IsTerminal() {
		now := time.Now().UTC()
		t.CompletedAt = &now
	}
	return nil
}

func (f *fakeTaskStore) ListForUser(ctx context.Context, userID uuid.UUID, filter store.TaskFilter) ([]*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Task
	for _, t := range f.tasks {
		if t.UserID != userID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Type != nil && t.Type != *filter.Type {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeTaskStore) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().UTC().Add(-age)
	var purged int64
	for id, t := range f.tasks {
		if t.CreatedAt.Before(cutoff) {
			delete(f.tasks, id)
			purged++
		}
	}
	return purged, nil
}

func (f *fakeTaskStore) WithTx(tx *sql.Tx) store.TaskStore { return f }

func newTestService(t *testing.T) (*Service, *fakeTaskStore, *queue.MemoryQueue) {
	t.Helper()
	st := newFakeTaskStore()
	q := queue.NewMemoryQueue(16, nil)
	return NewService(nil, st, q, nil), st, q
}

func TestCreatePersistsAndPublishes(t *testing.T) {
	t.Parallel()
	svc, st, q := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	caseID := uuid.New()

	created, err := svc.Create(ctx, domain.TaskTypeTextExtraction, userID, caseID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, created.Status)

	stored, err := st.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskTypeTextExtraction, stored.Type)

	claimed, err := q.Claim(ctx, "worker-1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claimed.TaskID)
	assert.Equal(t, userID, claimed.UserID)
	assert.Equal(t, caseID, claimed.CaseID)
}

func TestCreateRejectsUnknownType(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), domain.TaskType("summarize"), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrInvalidTaskType)
}

func TestCreateMarksTaskFailedWhenQueueFull(t *testing.T) {
	t.Parallel()
	st := newFakeTaskStore()
	q := queue.NewMemoryQueue(1, nil)
	svc := NewService(nil, st, q, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.TaskTypeTextExtraction, uuid.New(), uuid.New())
	require.NoError(t, err)

	created, err := svc.Create(ctx, domain.TaskTypeTextExtraction, uuid.New(), uuid.New())
	assert.ErrorIs(t, err, queue.ErrUnavailable)

	// The record exists but is marked failed, not stuck in pending.
	_ = created
	var failed int
	for _, task := range st.tasks {
		if task.Status == domain.TaskStatusFailed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestRetrySemantics(t *testing.T) {
	t.Parallel()
	svc, st, q := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	created, err := svc.Create(ctx, domain.TaskTypeEntityExtraction, userID, uuid.New())
	require.NoError(t, err)

	// Pending tasks are not retryable.
	_, err = svc.Retry(ctx, created.ID, userID)
	assert.ErrorIs(t, err, ErrNotRetryable)

	// A foreign caller is refused before state is considered.
	_, err = svc.Retry(ctx, created.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, st.UpdateStatus(ctx, created.ID, store.TaskStatusUpdate{
		Status: domain.TaskStatusFailed,
		Error:  "extraction failed",
	}))

	// Drain the original entry so the retry entry is observable.
	claimed, err := q.Claim(ctx, "worker-1", time.Second)
	require.NoError(t, err)
	require.NoError(t, q.Ack(ctx, "worker-1", claimed.ID))

	retried, err := svc.Retry(ctx, created.ID, userID)
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, retried.ID)
	assert.Equal(t, 1, retried.RetryCount)
	assert.Equal(t, domain.TaskStatusPending, retried.Status)

	claimed, err = q.Claim(ctx, "worker-1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, retried.ID, claimed.TaskID)
}

func TestRetryCeiling(t *testing.T) {
	t.Parallel()
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	created, err := svc.Create(ctx, domain.TaskTypeTextExtraction, userID, uuid.New())
	require.NoError(t, err)

	st.mu.Lock()
	st.tasks[created.ID].Status = domain.TaskStatusFailed
	st.tasks[created.ID].RetryCount = domain.MaxTaskRetries
	st.mu.Unlock()

	_, err = svc.Retry(ctx, created.ID, userID)
	assert.ErrorIs(t, err, ErrRetryExhausted)
}

func TestRetryUnknownTask(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)

	_, err := svc.Retry(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestUpdateStatusSwallowsStoreFailures(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)

	// Unknown task: must not panic or propagate.
	svc.UpdateStatus(context.Background(), uuid.New(), store.TaskStatusUpdate{
		Status:   domain.TaskStatusInProgress,
		Progress: 10,
	})
}
