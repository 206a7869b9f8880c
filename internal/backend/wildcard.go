package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/atomicbase/squril/internal/audit"
	"github.com/atomicbase/squril/internal/config"
	"github.com/atomicbase/squril/internal/parser"
	"github.com/atomicbase/squril/internal/sqlgen"
)

// resolveTableList expands wildcard and list select targets:
// "a,b,c" is an explicit list, "<prefix>*<suffix>" matches every table in
// this backend's schema whose bare name fits the pattern (audit tables
// never match a wildcard), and a plain name is left alone.
// isMulti reports whether the caller asked for a union (comma-list or
// wildcard) rather than a single table.
func (s *sqlStore) resolveTableList(ctx context.Context, table string) (tables []string, isMulti bool, err error) {
	if strings.Contains(table, ",") {
		parts := strings.Split(table, ",")
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}
		return parts, true, nil
	}

	if strings.Contains(table, "*") {
		names, err := s.bareTableNames(ctx)
		if err != nil {
			return nil, false, err
		}
		prefix, suffix, _ := strings.Cut(table, "*")
		var matched []string
		for _, name := range names {
			if _, isAuditName := audit.SourceTableName(name); isAuditName {
				continue
			}
			if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
				matched = append(matched, name)
			}
		}
		return matched, true, nil
	}

	return []string{table}, false, nil
}

// bareTableNames lists every table in this backend's own schema, stripped
// of the dialect's schema-qualification convention, so wildcard matching
// operates on the same bare names callers pass to every other operation.
func (s *sqlStore) bareTableNames(ctx context.Context) ([]string, error) {
	all, err := s.listTables(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	switch s.dialect.Name() {
	case "sqlite":
		prefix := s.schema + "_"
		for _, n := range all {
			if strings.HasPrefix(n, prefix) {
				names = append(names, strings.TrimPrefix(n, prefix))
			}
		}
	case "postgres":
		prefix := s.schema + "."
		for _, n := range all {
			if strings.HasPrefix(n, prefix) {
				names = append(names, strings.TrimPrefix(n, prefix))
			}
		}
	}
	return names, nil
}

// selectUnion is the wildcard/list branch of select:
// each resolved table is queried independently, wrapped in
// json_object(<table>, (…)) so the combined result is one row per table of
// the shape {<table>: [...]}, unioned together.
func (s *sqlStore) selectUnion(ctx context.Context, tables []string, q *parser.UriQuery, withAudit bool, identity string) (*Rows, error) {
	if len(tables) == 0 {
		return nil, errNoTablesMatched
	}

	var parts []string
	for _, t := range tables {
		opts := sqlgen.Options{IsAuditTable: s.isAuditTable(ctx, t), ArrayAggWrap: true}
		if opts.IsAuditTable {
			if cutoff, apply := s.retentionCutoff(ctx, t); apply {
				opts.BackupCutoff = &cutoff
			}
		}
		result, err := s.gen.Generate(s.fqtn(t), q, opts)
		if err != nil {
			return nil, err
		}
		obj := s.dialect.ObjectConstructor(t, "("+result.SelectQuery+")")
		parts = append(parts, fmt.Sprintf("select %s as data", obj))
	}
	combined := strings.Join(parts, " union all ")

	rows, err := s.db.QueryContext(ctx, combined)
	if err != nil {
		return nil, err
	}

	if withAudit {
		tsc := audit.NewTransaction(identity, "", q.Message)
		for _, t := range tables {
			ev := tsc.Read(q.Raw)
			if err := s.appendAuditEvents(ctx, s.db, audit.TableName(t), []audit.Event{ev}); err != nil {
				rows.Close()
				return nil, err
			}
		}
	}

	return &Rows{rows: rows}, nil
}

// rebuildAllView maintains the cross-schema union view.
// It is invoked after insert/delete when config.Cfg.UpdateAllView is set:
// the view "all"."<table>" is replaced with a union of "select * from
// <schema>.<table>" across every schema matching AllViewSchemaPrefix that
// currently has a table by this name; if no schema has one, the view is
// dropped rather than left referencing nothing.
func (s *sqlStore) rebuildAllView(ctx context.Context, table string) error {
	if !config.Cfg.UpdateAllView || s.dialect.Name() != "postgres" {
		return nil
	}

	rows, err := s.db.QueryContext(ctx,
		`select schemaname from pg_tables where tablename = $1 and schemaname like $2`,
		table, config.Cfg.AllViewSchemaPrefix+"%")
	if err != nil {
		return err
	}
	var schemas []string
	for rows.Next() {
		var schema string
		if err := rows.Scan(&schema); err != nil {
			rows.Close()
			return err
		}
		schemas = append(schemas, schema)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	quotedView := fmt.Sprintf(`"all".%s`, s.dialect.QuoteIdent(table))
	if _, err := s.db.ExecContext(ctx, "drop view if exists "+quotedView); err != nil {
		return err
	}
	if len(schemas) == 0 {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, `create schema if not exists "all"`); err != nil {
		return err
	}
	var selects []string
	for _, schema := range schemas {
		selects = append(selects, fmt.Sprintf("select * from %s", s.dialect.QuoteTable(schema, table)))
	}
	stmt := fmt.Sprintf("create view %s as %s", quotedView, strings.Join(selects, " union all "))
	_, err = s.db.ExecContext(ctx, stmt)
	return err
}

var errNoTablesMatched = fmt.Errorf("select: no tables matched the requested pattern")
