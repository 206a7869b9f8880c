package backend

import (
	"context"
	"fmt"
)

// ensureTable creates table (and, for Postgres, its dedup trigger) if it
// does not already exist. Data tables and audit tables share the same
// shape: one JSON-document column plus a content-hash uniqueness guard.
func (s *sqlStore) ensureTable(ctx context.Context, db dbtx, table string) error {
	switch s.dialect.Name() {
	case "sqlite":
		_, err := db.ExecContext(ctx, fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (data TEXT NOT NULL, UNIQUE(data))`, s.fqtn(table)))
		return err
	case "postgres":
		if _, err := db.ExecContext(ctx, fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (id serial PRIMARY KEY, data jsonb NOT NULL, uniq text UNIQUE)`, s.fqtn(table))); err != nil {
			return err
		}
		trigger := fmt.Sprintf(`DO $do$ BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = '%s_unique_data') THEN
		CREATE TRIGGER %s_unique_data BEFORE INSERT OR UPDATE ON %s
		FOR EACH ROW EXECUTE FUNCTION unique_data();
	END IF;
END $do$;`, table, table, s.fqtn(table))
		_, err := db.ExecContext(ctx, trigger)
		return err
	}
	return fmt.Errorf("backend: unknown dialect %q", s.dialect.Name())
}

func (s *sqlStore) insertStmt(table string) string {
	switch s.dialect.Name() {
	case "sqlite":
		return fmt.Sprintf("insert or ignore into %s (data) values (?)", s.fqtn(table))
	case "postgres":
		return fmt.Sprintf("insert into %s (data) values ($1) on conflict (uniq) do nothing", s.fqtn(table))
	}
	return ""
}

// tableExists probes the catalog rather than selecting from the table, so
// the check never errors a surrounding transaction (Postgres aborts a
// session on any failed statement).
func (s *sqlStore) tableExists(ctx context.Context, table string) bool {
	var query string
	var args []any
	switch s.dialect.Name() {
	case "sqlite":
		query = `select 1 from sqlite_master where type='table' and name = ?`
		args = []any{s.schema + "_" + table}
	case "postgres":
		query = `select 1 from pg_tables where schemaname = $1 and tablename = $2`
		args = []any{s.schema, table}
	default:
		return false
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return false
	}
	defer rows.Close()
	return rows.Next()
}

func (s *sqlStore) listTables(ctx context.Context) ([]string, error) {
	var query string
	switch s.dialect.Name() {
	case "sqlite":
		query = `select name from sqlite_master where type='table'`
	case "postgres":
		query = `select schemaname || '.' || tablename from pg_tables where schemaname not in ('pg_catalog','information_schema')`
	default:
		return nil, fmt.Errorf("backend: unknown dialect %q", s.dialect.Name())
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
