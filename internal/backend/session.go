package backend

import (
	"context"
	"database/sql"
)

// dbtx is the statement-execution surface shared by *sql.DB and *sql.Tx,
// so every helper can run either directly against the pool or inside a
// scoped session.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// withSession runs fn inside one transaction: commit on success, rollback
// on any error, and the underlying connection returns to the pool either
// way. This is the scoped-session guard every mutating facade operation
// runs under: all SQL statements and audit inserts of one call observe
// the same transaction boundary.
func (s *sqlStore) withSession(ctx context.Context, fn func(tx dbtx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
