package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lexigraph/lexigraph/internal/api/shared"
	"github.com/lexigraph/lexigraph/internal/domain"
	"github.com/lexigraph/lexigraph/internal/network"
	"github.com/lexigraph/lexigraph/internal/queue"
	"github.com/lexigraph/lexigraph/internal/store"
	"github.com/lexigraph/lexigraph/internal/task"
)

// fakeTaskStore is an in-memory store.TaskStore for handler tests.
type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (f *fakeTaskStore) Create(ctx context.Context, t *domain.Task) error {
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
	return 0, nil
}

func (f *fakeTaskStore) WithTx(tx *sql.Tx) store.TaskStore { return f }

// fakeCaseStore is an in-memory store.CaseStore for handler tests.
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
	if !ok {
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
		if c, ok := f.cases[id]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeCaseStore) UpdateText(ctx context.Context, id uuid.UUID, rawText string) error {
	return nil
}

func (f *fakeCaseStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CaseStatus) error {
	return nil
}

func (f *fakeCaseStore) WithTx(tx *sql.Tx) store.CaseStore { return f }

// fakeEntityStore serves canned entity rows for network handler tests.
type fakeEntityStore struct {
	rows []*domain.Entity
}

func (f *fakeEntityStore) ReplaceForCase(ctx context.Context, caseID uuid.UUID, entities []*domain.Entity) error {
	return nil
}

func (f *fakeEntityStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Entity, error) {
	var out []*domain.Entity
	for _, e := range f.rows {
		if e.OwnerUserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEntityStore) WithTx(tx *sql.Tx) store.EntityStore { return f }

// handlerFixture wires handlers over in-memory collaborators and a
// router mirroring the production routes.
type handlerFixture struct {
	router    chi.Router
	taskStore *fakeTaskStore
	caseStore *fakeCaseStore
	entities  *fakeEntityStore
	queue     *queue.MemoryQueue
	svc       *task.Service
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	taskStore := newFakeTaskStore()
	caseStore := newFakeCaseStore()
	entities := &fakeEntityStore{}
	q := queue.NewMemoryQueue(16, nil)
	svc := task.NewService(nil, taskStore, q, nil)

	taskHandler := NewTaskHandler(svc, caseStore, slog.Default())
	networkHandler := NewNetworkHandler(network.NewService(entities, caseStore, nil), slog.Default())

	r := chi.NewRouter()
	r.Post("/cases/{caseID}/process", taskHandler.ProcessCase)
	r.Get("/tasks", taskHandler.List)
	r.Get("/tasks/{taskID}/status", taskHandler.GetStatus)
	r.Post("/tasks/{taskID}/retry", taskHandler.Retry)
	r.Get("/network", networkHandler.GetNetwork)
	r.Get("/network/entity/{name}", networkHandler.GetEntity)

	return &handlerFixture{
		router:    r,
		taskStore: taskStore,
		caseStore: caseStore,
		entities:  entities,
		queue:     q,
		svc:       svc,
	}
}

// doAs performs a request with the given user injected into the
// context, as the authentication middleware would.
func (fx *handlerFixture) doAs(t *testing.T, userID uuid.UUID, method, target string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	if userID != uuid.Nil {
		req = req.WithContext(context.WithValue(req.Context(), shared.UserIDContextKey, userID))
	}

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}
