// Constructors for the two concrete backends this module targets: the
// embedded single-file store (SQLite/libsql) and the server-based
// relational store (PostgreSQL).
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"

	"github.com/atomicbase/squril/internal/apierrors"
	"github.com/atomicbase/squril/internal/sqlgen"
)

// OpenSQLite opens (creating if necessary) the embedded single-file store
// at path, under the given schema name. schema is baked into every table's
// fully qualified name as "<schema>_<table>", since a single SQLite file
// has no native schema concept.
func OpenSQLite(ctx context.Context, path, schema string) (Backend, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("squril: creating data directory: %w", err)
		}
	}
	db, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("squril: opening embedded store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("squril: pinging embedded store: %w", err)
	}
	return &sqlStore{
		db:      db,
		dialect: sqlgen.SQLiteDialect{},
		gen:     sqlgen.New(sqlgen.SQLiteDialect{}),
		schema:  schema,
	}, nil
}

// PostgresPoolConfig carries the server backend's connection-pool knobs.
type PostgresPoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
}

// OpenPostgres opens a connection pool against the server backend, running
// the process-wide, idempotent database-init SQL block (the content-hash
// dedup trigger) once per call. A "concurrent tuple update" error from a
// racing initializer is tolerated, not propagated.
func OpenPostgres(ctx context.Context, dsn, schema string, pool PostgresPoolConfig) (Backend, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("squril: opening server store: %w", err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("squril: pinging server store: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqlgen.PostgresInitSQL); err != nil && !apierrors.IsConcurrentUpdate(err) {
		db.Close()
		return nil, fmt.Errorf("squril: running database-init SQL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("create schema if not exists %s", schema)); err != nil {
		db.Close()
		return nil, fmt.Errorf("squril: creating schema %q: %w", schema, err)
	}

	return &sqlStore{
		db:      db,
		dialect: sqlgen.PostgresDialect{},
		gen:     sqlgen.New(sqlgen.PostgresDialect{}),
		schema:  schema,
	}, nil
}
