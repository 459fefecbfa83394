package postgres

import (
	"context"
	"database/sql"
)

// DBTX is the query surface shared by *sqlx.DB and *sqlx.Tx. Repositories
// are constructed over it, so the same code serves the transactional path
// and plain reads.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row

	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}
