// Package restore implements the point-in-time restore engine: replaying
// a table's audit history, oldest first, to reinstate deleted rows and
// roll back updates. The narrow Store seam keeps the algorithm
// independent of the concrete SQLite/Postgres backend.
package restore

import (
	"context"
	"fmt"

	"github.com/atomicbase/squril/internal/apierrors"
	"github.com/atomicbase/squril/internal/audit"
	"github.com/atomicbase/squril/internal/parser"
)

// Store is the minimal surface the restore engine needs from a backend.
// Selected rows are decoded JSON documents; TableExists distinguishes "no
// rows" from "table absent" so the engine knows whether to create it.
type Store interface {
	TableExists(ctx context.Context, table string) (bool, error)
	CreateTable(ctx context.Context, table string) error
	SelectByKey(ctx context.Context, table, primaryKey string, value any) ([]map[string]any, error)
	InsertRow(ctx context.Context, table string, row map[string]any) error
	ApplyUpdate(ctx context.Context, table string, toChange map[string]any, toRemove []string, primaryKey string, value any) error
	AppendAuditEvents(ctx context.Context, auditTable string, events []audit.Event) error
	// SelectAuditHistory returns the target table's audit events ordered
	// timestamp ascending, honoring the caller's where clause and the
	// audit-retention cutoff, but discarding any caller-supplied order=.
	SelectAuditHistory(ctx context.Context, table string, where []parser.WhereTerm) ([]audit.Event, error)
}

// Result is the {restores, updates} report returned to the caller.
type Result struct {
	Restores []audit.Event `json:"restores"`
	Updates  []audit.Event `json:"updates"`
}

// Run executes the restore algorithm against table, per the parsed query q.
// q must carry Restore=true and a non-empty PrimaryKey (Parse already
// enforces this). identity/identityName/message seed the single audit
// transaction shared by every event this call emits.
func Run(ctx context.Context, store Store, table string, q *parser.UriQuery, identity, identityName string) (*Result, error) {
	if !q.Restore || q.PrimaryKey == "" {
		return nil, apierrors.NewParseError("restore requires restore and primary_key=")
	}

	result := &Result{Restores: []audit.Event{}, Updates: []audit.Event{}}

	history, err := store.SelectAuditHistory(ctx, table, q.Where)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return result, nil
	}

	exists, err := store.TableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := store.CreateTable(ctx, table); err != nil {
			return nil, err
		}
	}

	tsc := audit.NewTransaction(identity, identityName, q.Message)
	auditTable := audit.TableName(table)
	var emitted []audit.Event

	handled := map[string]bool{}

	for _, entry := range history {
		if entry.Event == audit.KindRestore || entry.Event == audit.KindCreate || entry.Event == audit.KindRead {
			continue
		}

		target := entry.Previous
		var pk any
		if target != nil {
			pk = audit.PrimaryKeyValue(q.PrimaryKey, target)
		}
		// Keys are stringified so a non-scalar primary-key value can never
		// panic the map insert; first seen wins, oldest state is restored.
		pkKey := fmt.Sprintf("%T:%v", pk, pk)
		if handled[pkKey] {
			continue
		}
		handled[pkKey] = true

		if target == nil {
			continue
		}

		rows, err := store.SelectByKey(ctx, table, q.PrimaryKey, pk)
		if err != nil {
			return nil, err
		}

		switch len(rows) {
		case 0:
			if err := store.InsertRow(ctx, table, target); err != nil {
				return nil, err
			}
			ev := tsc.Restore(target, nil, q.Raw)
			emitted = append(emitted, ev)
			result.Restores = append(result.Restores, entry)

		case 1:
			current := rows[0]
			toChange, toRemove, toAdd := audit.Diff(current, target)
			for k, v := range toAdd {
				toChange[k] = v
			}
			var removeKeys []string
			for k := range toRemove {
				removeKeys = append(removeKeys, k)
			}
			if len(toChange) == 0 && len(removeKeys) == 0 {
				continue
			}
			if err := store.ApplyUpdate(ctx, table, toChange, removeKeys, q.PrimaryKey, pk); err != nil {
				return nil, err
			}
			ev := tsc.Update(toChange, current, q.Raw)
			emitted = append(emitted, ev)
			result.Updates = append(result.Updates, entry)

		default:
			return nil, apierrors.NewDataIntegrityError("primary_key %q is not unique", q.PrimaryKey)
		}
	}

	if len(emitted) > 0 {
		if err := store.AppendAuditEvents(ctx, auditTable, emitted); err != nil {
			return nil, err
		}
	}

	return result, nil
}
