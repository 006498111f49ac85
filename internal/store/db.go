package store

import (
	"context"
	"database/sql"
)

// DBTX is the database handle shared by the task, case and entity
// stores and the durable queue. Both *sql.DB and *sql.Tx satisfy it,
// so a store built over a plain connection can be rebound to a
// transaction with WithTx when a task insert and its queue entry must
// commit together.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
