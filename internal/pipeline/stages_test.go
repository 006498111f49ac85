package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexigraph/lexigraph/internal/domain"
	"github.com/lexigraph/lexigraph/internal/queue"
	"github.com/lexigraph/lexigraph/internal/task"
)

type stageFixture struct {
	stages   *Stages
	tasks    *recordingTaskStore
	cases    *fakeCaseStore
	entities *fakeEntityStore
	queue    *queue.MemoryQueue
	svc      *task.Service
}

func newStageFixture(t *testing.T, c *domain.Case, extractor TextExtractor, recognizer EntityRecognizer) *stageFixture {
	t.Helper()

	tasks := newRecordingTaskStore()
	cases := newFakeCaseStore(c)
	entities := newFakeEntityStore()
	q := queue.NewMemoryQueue(16, nil)
	svc := task.NewService(nil, tasks, q, nil)

	return &stageFixture{
		stages:   NewStages(nil, cases, entities, svc, extractor, recognizer, nil),
		tasks:    tasks,
		cases:    cases,
		entities: entities,
		queue:    q,
		svc:      svc,
	}
}

func newOwnedCase(t *testing.T) *domain.Case {
	t.Helper()
	c, err := domain.NewCase(uuid.New(), "ruling.pdf", "/data/cases/ruling.pdf")
	require.NoError(t, err)
	return c
}

func newStageTask(t *testing.T, taskType domain.TaskType, c *domain.Case) *domain.Task {
	t.Helper()
	tk, err := domain.NewTask(taskType, c.UploadedBy, c.ID)
	require.NoError(t, err)
	return tk
}

func TestExtractTextSuccessChainsEntityExtraction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := newOwnedCase(t)
	fx := newStageFixture(t, c, &fakeExtractor{
		fullText: "In the matter of Smith v. Acme Corp.",
		pages: []PageText{
			{PageNumber: 1, Text: "In the matter of"},
			{PageNumber: 2, Text: "Smith v. Acme Corp."},
		},
	}, &fakeRecognizer{})

	tk := newStageTask(t, domain.TaskTypeTextExtraction, c)
	require.NoError(t, fx.tasks.Create(ctx, tk))

	result, err := fx.stages.ExtractText(ctx, tk)
	require.NoError(t, err)

	assert.Equal(t, 2, result["pages"])
	assert.Equal(t, len("In the matter of Smith v. Acme Corp."), result["characters"])
	assert.NotEmpty(t, result["next_task_id"])

	assert.Equal(t, domain.CaseStatusOCRComplete, fx.cases.status(c.ID))
	stored, err := fx.cases.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "In the matter of Smith v. Acme Corp.", stored.RawText)

	// The chained task is published for workers.
	claimed, err := fx.queue.Claim(ctx, "worker-1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskTypeEntityExtraction, claimed.TaskType)
	assert.Equal(t, c.ID, claimed.CaseID)
	assert.Equal(t, result["next_task_id"], claimed.TaskID.String())

	// Checkpoints arrive in monotonic order.
	assert.Equal(t, []int{10, 50, 70}, fx.tasks.progressLog(tk.ID))
}

func TestExtractTextOwnershipMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := newOwnedCase(t)
	fx := newStageFixture(t, c, &fakeExtractor{fullText: "text"}, &fakeRecognizer{})

	forged, err := domain.NewTask(domain.TaskTypeTextExtraction, uuid.New(), c.ID)
	require.NoError(t, err)

	_, err = fx.stages.ExtractText(ctx, forged)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// The case is untouched: no text persisted, status unchanged.
	assert.Equal(t, domain.CaseStatusPending, fx.cases.status(c.ID))
	stored, err := fx.cases.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.RawText)
}

func TestExtractTextMissingFilePath(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := newOwnedCase(t)
	c.FilePath = ""
	fx := newStageFixture(t, c, &fakeExtractor{fullText: "text"}, &fakeRecognizer{})
	tk := newStageTask(t, domain.TaskTypeTextExtraction, c)
	require.NoError(t, fx.tasks.Create(ctx, tk))

	_, err := fx.stages.ExtractText(ctx, tk)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, domain.CaseStatusFailed, fx.cases.status(c.ID))
}

func TestExtractTextExtractorFailureMarksCaseFailed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := newOwnedCase(t)
	fx := newStageFixture(t, c, &fakeExtractor{err: ErrFileNotFound}, &fakeRecognizer{})
	tk := newStageTask(t, domain.TaskTypeTextExtraction, c)
	require.NoError(t, fx.tasks.Create(ctx, tk))

	_, err := fx.stages.ExtractText(ctx, tk)
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.Equal(t, domain.CaseStatusFailed, fx.cases.status(c.ID))

	// No chained task was enqueued.
	_, err = fx.queue.Claim(ctx, "worker-1", 10*time.Millisecond)
	assert.ErrorIs(t, err, queue.ErrNoEntry)
}

func TestExtractEntitiesSuccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := newOwnedCase(t)
	c.RawText = "Judge Jane Doe presided over Smith v. Acme Corp."
	fx := newStageFixture(t, c, &fakeExtractor{}, &fakeRecognizer{
		entities: []RawEntity{
			{Name: "Jane Doe", Type: "PERSON", Confidence: 0.92, PageNumber: 1},
			{Name: "Acme Corp", Type: "ORG", Confidence: 0.88, PageNumber: 1},
			{Name: "jane doe", Type: "PERSON", Confidence: 0.75, PageNumber: 2},
			{Name: "some noun", Type: "MISC", Confidence: 0.99, PageNumber: 2},
		},
	})
	tk := newStageTask(t, domain.TaskTypeEntityExtraction, c)
	require.NoError(t, fx.tasks.Create(ctx, tk))

	result, err := fx.stages.ExtractEntities(ctx, tk)
	require.NoError(t, err)

	// Out-of-vocabulary MISC is dropped, duplicate Jane Doe collapsed.
	assert.Equal(t, 2, result["entities_extracted"])
	assert.Equal(t, domain.CaseStatusComplete, fx.cases.status(c.ID))

	rows := fx.entities.forCase(c.ID)
	require.Len(t, rows, 2)
	assert.Equal(t, "Jane Doe", rows[0].Name)
	assert.Equal(t, "jane doe", rows[0].NormalizedName)
	assert.Equal(t, 0.92, rows[0].Confidence)
	assert.Equal(t, c.UploadedBy, rows[0].OwnerUserID)
	assert.Equal(t, domain.EntityTypeOrg, rows[1].Type)

	assert.Equal(t, []int{10, 50, 80}, fx.tasks.progressLog(tk.ID))
}

func TestExtractEntitiesRequiresText(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := newOwnedCase(t)
	fx := newStageFixture(t, c, &fakeExtractor{}, &fakeRecognizer{})
	tk := newStageTask(t, domain.TaskTypeEntityExtraction, c)
	require.NoError(t, fx.tasks.Create(ctx, tk))

	_, err := fx.stages.ExtractEntities(ctx, tk)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, domain.CaseStatusFailed, fx.cases.status(c.ID))
}

func TestExtractEntitiesRecognizerFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	recognizerErr := errors.New("model unavailable")

	c := newOwnedCase(t)
	c.RawText = "some text"
	fx := newStageFixture(t, c, &fakeExtractor{}, &fakeRecognizer{err: recognizerErr})
	tk := newStageTask(t, domain.TaskTypeEntityExtraction, c)
	require.NoError(t, fx.tasks.Create(ctx, tk))

	_, err := fx.stages.ExtractEntities(ctx, tk)
	assert.ErrorIs(t, err, recognizerErr)
	assert.Equal(t, domain.CaseStatusFailed, fx.cases.status(c.ID))
	assert.Empty(t, fx.entities.forCase(c.ID))
}

func TestExtractEntitiesReplacesPriorRows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := newOwnedCase(t)
	c.RawText = "Acme Corp appealed."
	fx := newStageFixture(t, c, &fakeExtractor{}, &fakeRecognizer{
		entities: []RawEntity{{Name: "Acme Corp", Type: "ORG", Confidence: 0.9, PageNumber: 1}},
	})

	// Rows from an earlier delivery of the same stage.
	stale, err := domain.NewEntity(c.ID, c.UploadedBy, domain.EntityTypePerson, "Stale Person", 0.5, 1)
	require.NoError(t, err)
	require.NoError(t, fx.entities.ReplaceForCase(ctx, c.ID, []*domain.Entity{stale}))

	tk := newStageTask(t, domain.TaskTypeEntityExtraction, c)
	require.NoError(t, fx.tasks.Create(ctx, tk))

	_, err = fx.stages.ExtractEntities(ctx, tk)
	require.NoError(t, err)

	rows := fx.entities.forCase(c.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "Acme Corp", rows[0].Name)
}
