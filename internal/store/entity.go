package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lexigraph/lexigraph/internal/domain"
)

// EntityStore defines the interface for extracted entity persistence.
// Version: 1.0
type EntityStore interface {
	// ReplaceForCase atomically removes any prior entity rows for the
	// case and inserts the given rows. Running the same extraction
	// twice therefore converges instead of duplicating rows.
	ReplaceForCase(ctx context.Context, caseID uuid.UUID, entities []*domain.Entity) error

	// ListForUser retrieves all entity rows owned by the user whose
	// cases are not deleted.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Entity, error)

	// WithTx returns a new EntityStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) EntityStore
}
