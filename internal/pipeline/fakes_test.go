package pipeline

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lexigraph/lexigraph/internal/domain"
	"github.com/lexigraph/lexigraph/internal/store"
)

// memTaskStore is a minimal in-memory store.TaskStore for stage tests.
type memTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (m *memTaskStore) Create(ctx context.Context, t *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTaskStore) UpdateStatus(ctx context.Context, id uuid.UUID, upd store.TaskStatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
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
	return nil
}

func (m *memTaskStore) ListForUser(ctx context.Context, userID uuid.UUID, filter store.TaskFilter) ([]*domain.Task, error) {
	return nil, nil
}

func (m *memTaskStore) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	return 0, nil
}

func (m *memTaskStore) WithTx(tx *sql.Tx) store.TaskStore { return m }

// progressLog returns the recorded progress values for a task, in
// update order.
type recordingTaskStore struct {
	*memTaskStore
	mu       sync.Mutex
	progress map[uuid.UUID][]int
}

func newRecordingTaskStore() *recordingTaskStore {
	return &recordingTaskStore{
		memTaskStore: newMemTaskStore(),
		progress:     make(map[uuid.UUID][]int),
	}
}

func (r *recordingTaskStore) UpdateStatus(ctx context.Context, id uuid.UUID, upd store.TaskStatusUpdate) error {
	r.mu.Lock()
	r.progress[id] = append(r.progress[id], upd.Progress)
	r.mu.Unlock()
	return r.memTaskStore.UpdateStatus(ctx, id, upd)
}

func (r *recordingTaskStore) progressLog(id uuid.UUID) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.progress[id]...)
}

// fakeCaseStore is an in-memory store.CaseStore.
type fakeCaseStore struct {
	mu    sync.Mutex
	cases map[uuid.UUID]*domain.Case
}

func newFakeCaseStore(cases ...*domain.Case) *fakeCaseStore {
	f := &fakeCaseStore{cases: make(map[uuid.UUID]*domain.Case)}
	for _, c := range cases {
		cp := *c
		f.cases[c.ID] = &cp
	}
	return f
}

func (f *fakeCaseStore) Create(ctx context.Context, c *domain.Case) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.cases[c.ID] = &cp
	return nil
}

func (f *fakeCaseStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cases[id]
	if !ok || c.IsDeleted {
		return nil, store.ErrCaseNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCaseStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Case
	for _, id := range ids {
		if c, ok := f.cases[id]; ok && !c.IsDeleted {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeCaseStore) UpdateText(ctx context.Context, id uuid.UUID, rawText string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cases[id]
	if !ok {
		return store.ErrCaseNotFound
	}
	c.RawText = rawText
	return nil
}

func (f *fakeCaseStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CaseStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cases[id]
	if !ok {
		return store.ErrCaseNotFound
	}
	c.Status = status
	return nil
}

func (f *fakeCaseStore) WithTx(tx *sql.Tx) store.CaseStore { return f }

func (f *fakeCaseStore) status(id uuid.UUID) domain.CaseStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cases[id].Status
}

// fakeEntityStore is an in-memory store.EntityStore.
type fakeEntityStore struct {
	mu     sync.Mutex
	byCase map[uuid.UUID][]*domain.Entity
}

func newFakeEntityStore() *fakeEntityStore {
	return &fakeEntityStore{byCase: make(map[uuid.UUID][]*domain.Entity)}
}

func (f *fakeEntityStore) ReplaceForCase(ctx context.Context, caseID uuid.UUID, entities []*domain.Entity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := make([]*domain.Entity, len(entities))
	for i, e := range entities {
		cp := *e
		rows[i] = &cp
	}
	f.byCase[caseID] = rows
	return nil
}

func (f *fakeEntityStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Entity
	for _, rows := range f.byCase {
		for _, e := range rows {
			if e.OwnerUserID == userID {
				cp := *e
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (f *fakeEntityStore) WithTx(tx *sql.Tx) store.EntityStore { return f }

func (f *fakeEntityStore) forCase(caseID uuid.UUID) []*domain.Entity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.Entity(nil), f.byCase[caseID]...)
}

// fakeExtractor is a canned TextExtractor.
type fakeExtractor struct {
	fullText string
	pages    []PageText
	err      error
}

func (f *fakeExtractor) ExtractText(ctx context.Context, filePath string) (string, []PageText, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return f.fullText, f.pages, nil
}

// fakeRecognizer is a canned EntityRecognizer.
type fakeRecognizer struct {
	entities []RawEntity
	err      error
}

func (f *fakeRecognizer) ExtractEntities(ctx context.Context, text string) ([]RawEntity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entities, nil
}
