// Package backend wires the parser and SQL generator to a live database
// connection: table lifecycle, insert/select/update/delete/alter/restore,
// and the audit journal that accompanies every mutation. Tables are
// created lazily on first insert and dropped by an unfiltered delete.
package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/atomicbase/squril/internal/apierrors"
	"github.com/atomicbase/squril/internal/applog"
	"github.com/atomicbase/squril/internal/audit"
	"github.com/atomicbase/squril/internal/parser"
	"github.com/atomicbase/squril/internal/restore"
	"github.com/atomicbase/squril/internal/sqlgen"
)

// Backend is the public facade every SQURIL operation is dispatched
// through.
type Backend interface {
	Insert(ctx context.Context, table string, docs []map[string]any, withAudit bool, identity string) error
	Select(ctx context.Context, table string, q *parser.UriQuery, withAudit bool, identity string) (*Rows, error)
	Update(ctx context.Context, table string, q *parser.UriQuery, payload map[string]any, identity, identityName string) error
	Delete(ctx context.Context, table string, q *parser.UriQuery, withAudit bool, identity, identityName string) error
	Alter(ctx context.Context, table string, q *parser.UriQuery) (*AlterResult, error)
	Restore(ctx context.Context, table string, q *parser.UriQuery, identity, identityName string) (*restore.Result, error)
	Tables(ctx context.Context) ([]string, error)
	Close() error
}

// AlterResult reports the renames one alter call performed: the new data
// table name first, the new audit table name second when one existed.
type AlterResult struct {
	Tables []string `json:"tables"`
}

// sqlStore is the shared implementation behind both dialects; the SQLite
// and Postgres constructors differ only in their driver, ddl, and Dialect.
type sqlStore struct {
	db      *sql.DB
	dialect sqlgen.Dialect
	gen     *sqlgen.Generator
	schema  string
}

func (s *sqlStore) fqtn(table string) string {
	return s.dialect.QuoteTable(s.schema, table)
}

func (s *sqlStore) Close() error { return s.db.Close() }

// isAuditTable combines the name-suffix and content-probe checks.
func (s *sqlStore) isAuditTable(ctx context.Context, table string) bool {
	if _, ok := audit.SourceTableName(table); !ok {
		return false
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("select data from %s limit 1", s.fqtn(table)))
	if err != nil {
		return false
	}
	defer rows.Close()
	if !rows.Next() {
		return true // empty audit table: name match is sufficient, nothing to contradict it
	}
	var cell any
	if err := rows.Scan(&cell); err != nil {
		return false
	}
	doc, ok := decodeCell(cell).(map[string]any)
	if !ok {
		return false
	}
	return audit.ProbeRow(doc)
}

func (s *sqlStore) Tables(ctx context.Context) ([]string, error) {
	return s.listTables(ctx)
}

func (s *sqlStore) Insert(ctx context.Context, table string, docs []map[string]any, withAudit bool, identity string) error {
	if err := s.ensureTable(ctx, s.db, table); err != nil {
		return err
	}
	err := s.withSession(ctx, func(tx dbtx) error {
		tsc := audit.NewTransaction(identity, "", "")
		var events []audit.Event
		for _, doc := range docs {
			if err := s.insertRow(ctx, tx, table, doc); err != nil {
				return err
			}
			if withAudit {
				events = append(events, tsc.Create(doc))
			}
		}
		return s.appendAuditEvents(ctx, tx, audit.TableName(table), events)
	})
	if err != nil {
		return err
	}
	return s.rebuildAllView(ctx, table)
}

// insertRow writes one document, swallowing a duplicate-content violation
// as an idempotent no-op and retrying once after lazily creating a missing
// table.
func (s *sqlStore) insertRow(ctx context.Context, db dbtx, table string, doc map[string]any) error {
	enc, err := json.Marshal(doc)
	if err != nil {
		return apierrors.NewParseError("document is not valid JSON: %v", err)
	}
	stmt := s.insertStmt(table)
	_, err = db.ExecContext(ctx, stmt, string(enc))
	if apierrors.IsMissingRelation(err) {
		if err := s.ensureTable(ctx, db, table); err != nil {
			return err
		}
		_, err = db.ExecContext(ctx, stmt, string(enc))
	}
	if err != nil && !apierrors.IsUniqueViolation(err) {
		return err
	}
	return nil
}

func (s *sqlStore) Select(ctx context.Context, table string, q *parser.UriQuery, withAudit bool, identity string) (*Rows, error) {
	tables, isMulti, err := s.resolveTableList(ctx, table)
	if err != nil {
		return nil, err
	}
	if isMulti {
		return s.selectUnion(ctx, tables, q, withAudit, identity)
	}

	opts := sqlgen.Options{IsAuditTable: s.isAuditTable(ctx, table)}
	if opts.IsAuditTable {
		if cutoff, apply := s.retentionCutoff(ctx, table); apply {
			opts.BackupCutoff = &cutoff
		}
	}
	result, err := s.gen.Generate(s.fqtn(table), q, opts)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, result.SelectQuery)
	if err != nil {
		return nil, err
	}
	if withAudit {
		tsc := audit.NewTransaction(identity, "", q.Message)
		ev := tsc.Read(q.Raw)
		if err := s.appendAuditEvents(ctx, s.db, audit.TableName(table), []audit.Event{ev}); err != nil {
			rows.Close()
			return nil, err
		}
	}
	applog.WithTable(table).Debug("select executed", "sql", result.SelectQuery)
	return &Rows{rows: rows}, nil
}

func (s *sqlStore) Update(ctx context.Context, table string, q *parser.UriQuery, payload map[string]any, identity, identityName string) error {
	if s.isAuditTable(ctx, table) {
		return apierrors.NewOperationNotPermittedError("table %q is an audit table", table)
	}
	result, err := s.gen.Generate(s.fqtn(table), q, sqlgen.Options{Payload: payload})
	if err != nil {
		return err
	}
	return s.withSession(ctx, func(tx dbtx) error {
		before, err := s.selectDocs(ctx, tx, table, q)
		if err != nil {
			return err
		}
		for _, stmt := range result.UpdateQuery {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		tsc := audit.NewTransaction(identity, identityName, q.Message)
		var events []audit.Event
		for _, prev := range before {
			events = append(events, tsc.Update(payload, prev, q.Raw))
		}
		applog.WithTransaction(table, tsc.TransactionID).Debug("update applied", "rows", len(before))
		return s.appendAuditEvents(ctx, tx, audit.TableName(table), events)
	})
}

func (s *sqlStore) Delete(ctx context.Context, table string, q *parser.UriQuery, withAudit bool, identity, identityName string) error {
	if s.isAuditTable(ctx, table) {
		return apierrors.NewOperationNotPermittedError("table %q is an audit table", table)
	}
	result, err := s.gen.Generate(s.fqtn(table), q, sqlgen.Options{})
	if err != nil {
		return err
	}
	err = s.withSession(ctx, func(tx dbtx) error {
		before, err := s.selectDocs(ctx, tx, table, q)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, result.DeleteQuery); err != nil {
			return err
		}
		if !withAudit {
			return nil
		}
		tsc := audit.NewTransaction(identity, identityName, q.Message)
		var events []audit.Event
		for _, prev := range before {
			events = append(events, tsc.Delete(nil, prev, q.Raw))
		}
		applog.WithTransaction(table, tsc.TransactionID).Debug("delete applied", "rows", len(before))
		return s.appendAuditEvents(ctx, tx, audit.TableName(table), events)
	})
	if err != nil {
		return err
	}
	return s.rebuildAllView(ctx, table)
}

func (s *sqlStore) Alter(ctx context.Context, table string, q *parser.UriQuery) (*AlterResult, error) {
	if s.isAuditTable(ctx, table) {
		return nil, apierrors.NewOperationNotPermittedError("table %q is an audit table", table)
	}
	result, err := s.gen.Generate(s.fqtn(table), q, sqlgen.Options{RenameTarget: s.renameTarget})
	if err != nil {
		return nil, err
	}
	if result.AlterQuery == "" {
		return nil, apierrors.NewParseError("alter= requires alter=name=eq.<new_name>")
	}

	renamed := &AlterResult{Tables: []string{q.Alter.NewName}}
	err = s.withSession(ctx, func(tx dbtx) error {
		if _, err := tx.ExecContext(ctx, result.AlterQuery); err != nil {
			return err
		}
		auditOld, auditNew := audit.TableName(table), audit.TableName(q.Alter.NewName)
		if !s.tableExists(ctx, auditOld) {
			return nil
		}
		stmt := fmt.Sprintf("alter table %s rename to %s", s.fqtn(auditOld), s.renameTarget(auditNew))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
		renamed.Tables = append(renamed.Tables, auditNew)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return renamed, nil
}

// renameTarget is the right-hand side of "rename to": SQLite folds the
// schema into the table name so the new name must be fully qualified,
// while Postgres renames within the schema and takes a bare identifier.
func (s *sqlStore) renameTarget(table string) string {
	if s.dialect.Name() == "sqlite" {
		return s.fqtn(table)
	}
	return s.dialect.QuoteIdent(table)
}

func (s *sqlStore) Restore(ctx context.Context, table string, q *parser.UriQuery, identity, identityName string) (*restore.Result, error) {
	var result *restore.Result
	err := s.withSession(ctx, func(tx dbtx) error {
		var err error
		result, err = restore.Run(ctx, &sessionStore{s: s, tx: tx}, table, q, identity, identityName)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *sqlStore) selectDocs(ctx context.Context, db dbtx, table string, q *parser.UriQuery) ([]map[string]any, error) {
	selectOnly := &parser.UriQuery{Table: table, Where: q.Where}
	result, err := s.gen.Generate(s.fqtn(table), selectOnly, sqlgen.Options{})
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, result.SelectQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []map[string]any
	for rows.Next() {
		var cell any
		if err := rows.Scan(&cell); err != nil {
			return nil, err
		}
		if doc, ok := decodeCell(cell).(map[string]any); ok {
			docs = append(docs, doc)
		}
	}
	return docs, rows.Err()
}

// appendAuditEvents serializes events into the audit table, creating it
// lazily on first use. A no-op for an empty batch.
func (s *sqlStore) appendAuditEvents(ctx context.Context, db dbtx, auditTable string, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := s.ensureTable(ctx, db, auditTable); err != nil {
		return err
	}
	for _, ev := range events {
		enc, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		var doc map[string]any
		if err := json.Unmarshal(enc, &doc); err != nil {
			return err
		}
		if err := s.insertRow(ctx, db, auditTable, doc); err != nil {
			return err
		}
	}
	return nil
}
