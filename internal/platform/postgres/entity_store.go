package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lexigraph/lexigraph/internal/domain"
	"github.com/lexigraph/lexigraph/internal/platform/logger"
	"github.com/lexigraph/lexigraph/internal/store"
)

// PostgresEntityStore implements the store.EntityStore interface using
// a PostgreSQL database as the storage backend.
type PostgresEntityStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresEntityStore creates a new PostgreSQL implementation of
// the EntityStore interface. If logger is nil, a default logger is used.
func NewPostgresEntityStore(db store.DBTX, logger *slog.Logger) *PostgresEntityStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresEntityStore{
		db:     db,
		logger: logger.With(slog.String("component", "entity_store")),
	}
}

// Ensure PostgresEntityStore implements store.EntityStore interface
var _ store.EntityStore = (*PostgresEntityStore)(nil)

// ReplaceForCase implements store.EntityStore.ReplaceForCase. Callers
// run it inside a transaction (WithTx) so the delete and inserts
// commit atomically; a re-run of entity extraction then converges
// instead of duplicating rows.
func (s *PostgresEntityStore) ReplaceForCase(ctx context.Context, caseID uuid.UUID, entities []*domain.Entity) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM entities WHERE case_id = $1`, caseID,
	); err != nil {
		log.Error("failed to clear prior entities",
			slog.String("error", err.Error()),
			slog.String("case_id", caseID.String()))
		return fmt.Errorf("failed to clear prior entities: %w", err)
	}

	query := `
		INSERT INTO entities (entity_id, case_id, owner_user_id, entity_type, entity_name, normalized_name, confidence, page_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, e := range entities {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}

		if _, err := s.db.ExecContext(ctx, query,
			e.ID,
			e.CaseID,
			e.OwnerUserID,
			e.Type,
			e.Name,
			nullString(e.NormalizedName),
			e.Confidence,
			e.PageNumber,
			e.CreatedAt,
		); err != nil {
			if isPgError(err, pgForeignKeyViolationCode) {
				return fmt.Errorf("%w: case %s", store.ErrInvalidEntity, e.CaseID)
			}
			log.Error("failed to insert entity",
				slog.String("error", err.Error()),
				slog.String("entity_name", e.Name),
				slog.String("case_id", caseID.String()))
			return fmt.Errorf("failed to insert entity: %w", err)
		}
	}

	log.Info("entities replaced for case",
		slog.String("case_id", caseID.String()),
		slog.Int("count", len(entities)))
	return nil
}

// ListForUser implements store.EntityStore.ListForUser. Rows from
// soft-deleted cases are excluded.
func (s *PostgresEntityStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Entity, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT e.entity_id, e.case_id, e.owner_user_id, e.entity_type, e.entity_name, e.normalized_name, e.confidence, e.page_number, e.created_at
		FROM entities e
		JOIN cases c ON c.case_id = e.case_id
		WHERE e.owner_user_id = $1 AND c.is_deleted = FALSE
		ORDER BY e.created_at ASC, e.entity_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		log.Error("failed to list entities",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entities []*domain.Entity
	for rows.Next() {
		var (
			e              domain.Entity
			normalizedName sql.NullString
			confidence     sql.NullFloat64
			pageNumber     sql.NullInt64
		)

		if err := rows.Scan(
			&e.ID,
			&e.CaseID,
			&e.OwnerUserID,
			&e.Type,
			&e.Name,
			&normalizedName,
			&confidence,
			&pageNumber,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan entity row: %w", err)
		}

		e.NormalizedName = normalizedName.String
		e.Confidence = confidence.Float64
		e.PageNumber = int(pageNumber.Int64)
		entities = append(entities, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entity rows: %w", err)
	}

	return entities, nil
}

// WithTx implements store.EntityStore.WithTx.
func (s *PostgresEntityStore) WithTx(tx *sql.Tx) store.EntityStore {
	return &PostgresEntityStore{
		db:     tx,
		logger: s.logger,
	}
}
