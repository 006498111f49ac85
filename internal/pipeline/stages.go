package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lexigraph/lexigraph/internal/domain"
	"github.com/lexigraph/lexigraph/internal/platform/logger"
	"github.com/lexigraph/lexigraph/internal/store"
	"github.com/lexigraph/lexigraph/internal/task"
)

// Progress checkpoints reported during a stage. Progress is monotonic
// within a single execution attempt.
const (
	progressCaseLoaded    = 10
	progressExtracted     = 50
	progressCasePersisted = 70
	progressRecognized    = 80
)

// Stages holds the dependencies of the two pipeline stage handlers.
type Stages struct {
	// db enables transactional entity replacement; may be nil in tests.
	db         *sql.DB
	cases      store.CaseStore
	entities   store.EntityStore
	tasks      *task.Service
	extractor  TextExtractor
	recognizer EntityRecognizer
	logger     *slog.Logger
}

// NewStages creates the stage handler set.
func NewStages(
	db *sql.DB,
	cases store.CaseStore,
	entities store.EntityStore,
	tasks *task.Service,
	extractor TextExtractor,
	recognizer EntityRecognizer,
	log *slog.Logger,
) *Stages {
	if log == nil {
		log = slog.Default()
	}
	return &Stages{
		db:         db,
		cases:      cases,
		entities:   entities,
		tasks:      tasks,
		extractor:  extractor,
		recognizer: recognizer,
		logger:     log.With(slog.String("component", "pipeline")),
	}
}

// loadOwnedCase loads the task's case and verifies that it belongs to
// the task's user. A mismatch fails the task with an authorization
// error rather than silently skipping it.
func (s *Stages) loadOwnedCase(ctx context.Context, t *domain.Task) (*domain.Case, error) {
	c, err := s.cases.GetByID(ctx, t.CaseID)
	if err != nil {
		return nil, err
	}

	if c.UploadedBy != t.UserID {
		return nil, fmt.Errorf("%w: task user does not own case %s", domain.ErrUnauthorized, t.CaseID)
	}

	return c, nil
}

// failCase marks the case failed so the UI reflects the failure
// without polling task state. Errors here are logged and swallowed;
// the task's own failed state is the authoritative record.
func (s *Stages) failCase(ctx context.Context, c *domain.Case) {
	if c == nil {
		return
	}

	log := logger.FromContextOrDefault(ctx, s.logger)
	if err := s.cases.UpdateStatus(ctx, c.ID, domain.CaseStatusFailed); err != nil {
		log.Error("failed to mark case failed",
			slog.String("case_id", c.ID.String()),
			slog.String("error", err.Error()))
	}
}

// reportProgress records an in-progress checkpoint for the task.
func (s *Stages) reportProgress(ctx context.Context, t *domain.Task, progress int) {
	s.tasks.UpdateStatus(ctx, t.ID, store.TaskStatusUpdate{
		Status:   domain.TaskStatusInProgress,
		Progress: progress,
	})
}

// ExtractText runs the text_extraction stage: load and verify the
// case, extract its text, persist it, advance the case to
// ocr_complete and chain an entity_extraction task. The chaining is a
// separate queued unit of work so a crash between stages is recovered
// by re-triggering extraction alone.
func (s *Stages) ExtractText(ctx context.Context, t *domain.Task) (map[string]any, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	c, err := s.loadOwnedCase(ctx, t)
	if err != nil {
		return nil, err
	}
	s.reportProgress(ctx, t, progressCaseLoaded)

	if c.FilePath == "" {
		err := fmt.Errorf("%w: case has no stored file", domain.ErrInvalidInput)
		s.failCase(ctx, c)
		return nil, err
	}

	fullText, pages, err := s.extractor.ExtractText(ctx, c.FilePath)
	if err != nil {
		s.failCase(ctx, c)
		return nil, fmt.Errorf("text extraction failed: %w", err)
	}
	s.reportProgress(ctx, t, progressExtracted)

	if err := s.cases.UpdateText(ctx, c.ID, fullText); err != nil {
		s.failCase(ctx, c)
		return nil, fmt.Errorf("failed to persist extracted text: %w", err)
	}
	if err := s.cases.UpdateStatus(ctx, c.ID, domain.CaseStatusOCRComplete); err != nil {
		s.failCase(ctx, c)
		return nil, fmt.Errorf("failed to update case status: %w", err)
	}
	s.reportProgress(ctx, t, progressCasePersisted)

	next, err := s.tasks.Create(ctx, domain.TaskTypeEntityExtraction, t.UserID, t.CaseID)
	if err != nil {
		s.failCase(ctx, c)
		return nil, fmt.Errorf("failed to enqueue entity extraction: %w", err)
	}

	log.Info("text extraction complete",
		slog.String("case_id", c.ID.String()),
		slog.Int("pages", len(pages)),
		slog.String("next_task_id", next.ID.String()))

	return map[string]any{
		"pages":        len(pages),
		"characters":   len(fullText),
		"next_task_id": next.ID.String(),
	}, nil
}

// ExtractEntities runs the entity_extraction stage: load and verify
// the case, recognize entities in its extracted text, filter them to
// the fixed vocabulary, deduplicate, replace the case's entity rows
// and advance the case to complete.
func (s *Stages) ExtractEntities(ctx context.Context, t *domain.Task) (map[string]any, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	c, err := s.loadOwnedCase(ctx, t)
	if err != nil {
		return nil, err
	}
	s.reportProgress(ctx, t, progressCaseLoaded)

	if c.RawText == "" {
		err := fmt.Errorf("%w: case has no extracted text", domain.ErrInvalidInput)
		s.failCase(ctx, c)
		return nil, err
	}

	raw, err := s.recognizer.ExtractEntities(ctx, c.RawText)
	if err != nil {
		s.failCase(ctx, c)
		return nil, fmt.Errorf("entity recognition failed: %w", err)
	}
	s.reportProgress(ctx, t, progressExtracted)

	entities, err := s.buildEntities(c, raw)
	if err != nil {
		s.failCase(ctx, c)
		return nil, err
	}
	s.reportProgress(ctx, t, progressRecognized)

	if err := s.replaceEntities(ctx, c, entities); err != nil {
		s.failCase(ctx, c)
		return nil, fmt.Errorf("failed to persist entities: %w", err)
	}

	if err := s.cases.UpdateStatus(ctx, c.ID, domain.CaseStatusComplete); err != nil {
		s.failCase(ctx, c)
		return nil, fmt.Errorf("failed to update case status: %w", err)
	}

	log.Info("entity extraction complete",
		slog.String("case_id", c.ID.String()),
		slog.Int("entities_extracted", len(entities)))

	return map[string]any{
		"entities_extracted": len(entities),
	}, nil
}

// buildEntities filters recognizer output to the fixed vocabulary,
// deduplicates it and materializes entity rows for the case.
func (s *Stages) buildEntities(c *domain.Case, raw []RawEntity) ([]*domain.Entity, error) {
	log := s.logger

	inVocabulary := raw[:0:0]
	for _, r := range raw {
		if !domain.IsValidEntityType(domain.EntityType(r.Type)) {
			log.Debug("discarding out-of-vocabulary entity",
				slog.String("entity_name", r.Name),
				slog.String("entity_type", r.Type))
			continue
		}
		inVocabulary = append(inVocabulary, r)
	}

	deduped := Deduplicate(inVocabulary)

	entities := make([]*domain.Entity, 0, len(deduped))
	for _, r := range deduped {
		e, err := domain.NewEntity(c.ID, c.UploadedBy, domain.EntityType(r.Type), r.Name, r.Confidence, r.PageNumber)
		if err != nil {
			return nil, fmt.Errorf("invalid recognized entity %q: %w", r.Name, err)
		}
		entities = append(entities, e)
	}

	return entities, nil
}

// replaceEntities swaps the case's entity rows, transactionally when a
// database handle is available. The replace keeps at-least-once
// redelivery from duplicating rows.
func (s *Stages) replaceEntities(ctx context.Context, c *domain.Case, entities []*domain.Entity) error {
	if s.db == nil {
		return s.entities.ReplaceForCase(ctx, c.ID, entities)
	}

	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.entities.WithTx(tx).ReplaceForCase(ctx, c.ID, entities)
	})
}
