package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lexigraph/lexigraph/internal/domain"
	"github.com/lexigraph/lexigraph/internal/platform/logger"
	"github.com/lexigraph/lexigraph/internal/store"
)

// PostgresCaseStore implements the store.CaseStore interface using a
// PostgreSQL database as the storage backend.
type PostgresCaseStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCaseStore creates a new PostgreSQL implementation of the
// CaseStore interface. If logger is nil, a default logger is used.
func NewPostgresCaseStore(db store.DBTX, logger *slog.Logger) *PostgresCaseStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresCaseStore{
		db:     db,
		logger: logger.With(slog.String("component", "case_store")),
	}
}

// Ensure PostgresCaseStore implements store.CaseStore interface
var _ store.CaseStore = (*PostgresCaseStore)(nil)

const caseColumns = `case_id, uploaded_by, filename, file_path, raw_text, court_name, case_date, document_type, status, is_deleted, created_at, updated_at`

// Create implements store.CaseStore.Create.
func (s *PostgresCaseStore) Create(ctx context.Context, c *domain.Case) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := c.Validate(); err != nil {
		log.Warn("case validation failed during create",
			slog.String("error", err.Error()),
			slog.String("case_id", c.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO cases (` + caseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID,
		c.UploadedBy,
		c.Filename,
		nullString(c.FilePath),
		nullString(c.RawText),
		nullString(c.CourtName),
		c.CaseDate,
		nullString(c.DocumentType),
		c.Status,
		c.IsDeleted,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if isPgError(err, pgUniqueViolationCode) {
			return fmt.Errorf("%w: case %s", store.ErrDuplicate, c.ID)
		}
		log.Error("failed to create case",
			slog.String("error", err.Error()),
			slog.String("case_id", c.ID.String()))
		return fmt.Errorf("failed to create case: %w", err)
	}

	log.Info("case created",
		slog.String("case_id", c.ID.String()),
		slog.String("filename", c.Filename))
	return nil
}

// GetByID implements store.CaseStore.GetByID. Soft-deleted cases are
// reported as not found.
func (s *PostgresCaseStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Case, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + caseColumns + `
		FROM cases
		WHERE case_id = $1 AND is_deleted = FALSE
	`
	c, err := scanCase(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrCaseNotFound
	}
	if err != nil {
		log.Error("failed to get case",
			slog.String("error", err.Error()),
			slog.String("case_id", id.String()))
		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	return c, nil
}

// ListByIDs implements store.CaseStore.ListByIDs.
func (s *PostgresCaseStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Case, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	log := logger.FromContextOrDefault(ctx, s.logger)

	// database/sql has no array binding, so expand one placeholder per ID.
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := `
		SELECT ` + caseColumns + `
		FROM cases
		WHERE case_id IN (` + strings.Join(placeholders, ", ") + `) AND is_deleted = FALSE
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list cases",
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cases []*domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case row: %w", err)
		}
		cases = append(cases, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating case rows: %w", err)
	}

	return cases, nil
}

// UpdateText implements store.CaseStore.UpdateText.
func (s *PostgresCaseStore) UpdateText(ctx context.Context, id uuid.UUID, rawText string) error {
	return s.update(ctx, id, `raw_text = $1`, rawText)
}

// UpdateStatus implements store.CaseStore.UpdateStatus.
func (s *PostgresCaseStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CaseStatus) error {
	return s.update(ctx, id, `status = $1`, status)
}

// update applies a single-column update with updated_at bookkeeping.
func (s *PostgresCaseStore) update(ctx context.Context, id uuid.UUID, setClause string, value any) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `UPDATE cases SET ` + setClause + `, updated_at = $2 WHERE case_id = $3 AND is_deleted = FALSE`
	result, err := s.db.ExecContext(ctx, query, value, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update case",
			slog.String("error", err.Error()),
			slog.String("case_id", id.String()))
		return fmt.Errorf("failed to update case: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrCaseNotFound
	}

	return nil
}

// WithTx implements store.CaseStore.WithTx.
func (s *PostgresCaseStore) WithTx(tx *sql.Tx) store.CaseStore {
	return &PostgresCaseStore{
		db:     tx,
		logger: s.logger,
	}
}

// scanCase reads one case row.
func scanCase(row rowScanner) (*domain.Case, error) {
	var (
		c            domain.Case
		filePath     sql.NullString
		rawText      sql.NullString
		courtName    sql.NullString
		caseDate     sql.NullTime
		documentType sql.NullString
	)

	err := row.Scan(
		&c.ID,
		&c.UploadedBy,
		&c.Filename,
		&filePath,
		&rawText,
		&courtName,
		&caseDate,
		&documentType,
		&c.Status,
		&c.IsDeleted,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.FilePath = filePath.String
	c.RawText = rawText.String
	c.CourtName = courtName.String
	c.DocumentType = documentType.String
	if caseDate.Valid {
		t := caseDate.Time
		c.CaseDate = &t
	}

	return &c, nil
}

// nullString maps an empty string to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
