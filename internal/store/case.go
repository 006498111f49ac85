package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lexigraph/lexigraph/internal/domain"
)

// CaseStore defines the interface for case data persistence. The
// pipeline only needs a narrow CRUD surface: loading a case, storing
// extracted text and advancing the case status.
// Version: 1.0
type CaseStore interface {
	// Create saves a new case to the store.
	Create(ctx context.Context, c *domain.Case) error

	// GetByID retrieves a case by its unique ID.
	// Returns ErrCaseNotFound if the case does not exist or is deleted.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Case, error)

	// ListByIDs retrieves the non-deleted cases with the given IDs.
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Case, error)

	// UpdateText stores the extracted full text for a case.
	// Returns ErrCaseNotFound if the case does not exist.
	UpdateText(ctx context.Context, id uuid.UUID, rawText string) error

	// UpdateStatus advances the case status.
	// Returns ErrCaseNotFound if the case does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CaseStatus) error

	// WithTx returns a new CaseStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) CaseStore
}
