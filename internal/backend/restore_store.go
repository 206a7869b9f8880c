package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atomicbase/squril/internal/audit"
	"github.com/atomicbase/squril/internal/parser"
	"github.com/atomicbase/squril/internal/sqlgen"
)

// sessionStore satisfies restore.Store against one scoped session, so the
// entire restore pass (row lookups, reinstated inserts, rollback updates,
// and the audit events describing them) observes one transaction
// boundary.
type sessionStore struct {
	s  *sqlStore
	tx dbtx
}

func (st *sessionStore) TableExists(ctx context.Context, table string) (bool, error) {
	return st.s.tableExists(ctx, table), nil
}

func (st *sessionStore) CreateTable(ctx context.Context, table string) error {
	return st.s.ensureTable(ctx, st.tx, table)
}

func (st *sessionStore) SelectByKey(ctx context.Context, table, primaryKey string, value any) ([]map[string]any, error) {
	q, err := keyLookupQuery(table, primaryKey, value)
	if err != nil {
		return nil, err
	}
	return st.s.selectDocs(ctx, st.tx, table, q)
}

// keyLookupQuery builds the synthetic "where=<pk>=eq.<value>" query a
// restore pass locates rows by, going through the parser so quoting rules
// match what a caller would have typed.
func keyLookupQuery(table, primaryKey string, value any) (*parser.UriQuery, error) {
	enc, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return parser.Parse(table, fmt.Sprintf("where=%s=eq.%s", primaryKey, trimQuotes(string(enc))))
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func (st *sessionStore) InsertRow(ctx context.Context, table string, row map[string]any) error {
	return st.s.insertRow(ctx, st.tx, table, row)
}

func (st *sessionStore) ApplyUpdate(ctx context.Context, table string, toChange map[string]any, toRemove []string, primaryKey string, value any) error {
	encVal, err := json.Marshal(value)
	if err != nil {
		return err
	}
	where := fmt.Sprintf("where=%s=eq.%s", primaryKey, trimQuotes(string(encVal)))

	if len(toChange) > 0 {
		keys := make([]string, 0, len(toChange))
		for k := range toChange {
			keys = append(keys, k)
		}
		q, err := parser.Parse(table, "set="+joinComma(keys)+"&"+where)
		if err != nil {
			return err
		}
		if err := st.execUpdate(ctx, table, q, toChange); err != nil {
			return err
		}
	}

	if len(toRemove) > 0 {
		removeTerms := make([]string, len(toRemove))
		for i, k := range toRemove {
			removeTerms[i] = "-" + k
		}
		q, err := parser.Parse(table, "set="+joinComma(removeTerms)+"&"+where)
		if err != nil {
			return err
		}
		if err := st.execUpdate(ctx, table, q, nil); err != nil {
			return err
		}
	}
	return nil
}

func (st *sessionStore) execUpdate(ctx context.Context, table string, q *parser.UriQuery, payload map[string]any) error {
	result, err := st.s.gen.Generate(st.s.fqtn(table), q, sqlgen.Options{Payload: payload})
	if err != nil {
		return err
	}
	for _, stmt := range result.UpdateQuery {
		if _, err := st.tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (st *sessionStore) AppendAuditEvents(ctx context.Context, auditTable string, events []audit.Event) error {
	return st.s.appendAuditEvents(ctx, st.tx, auditTable, events)
}

func (st *sessionStore) SelectAuditHistory(ctx context.Context, table string, where []parser.WhereTerm) ([]audit.Event, error) {
	auditTable := audit.TableName(table)
	if !st.s.tableExists(ctx, auditTable) {
		return nil, nil
	}
	q := &parser.UriQuery{Table: auditTable, Where: where,
		Order: &parser.OrderTerm{Path: mustPath("timestamp"), Direction: "asc"}}

	opts := sqlgen.Options{IsAuditTable: true}
	if cutoff, apply := st.s.retentionCutoff(ctx, auditTable); apply {
		opts.BackupCutoff = &cutoff
	}
	result, err := st.s.gen.Generate(st.s.fqtn(auditTable), q, opts)
	if err != nil {
		return nil, err
	}

	rows, err := st.tx.QueryContext(ctx, result.SelectQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var cell any
		if err := rows.Scan(&cell); err != nil {
			return nil, err
		}
		doc, ok := decodeCell(cell).(map[string]any)
		if !ok {
			continue
		}
		enc, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		var ev audit.Event
		if err := json.Unmarshal(enc, &ev); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
