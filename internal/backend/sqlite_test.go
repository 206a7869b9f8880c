package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/atomicbase/squril/internal/apierrors"
	"github.com/atomicbase/squril/internal/parser"
)

// setupTestBackend opens a fresh embedded store on a temp file, so every
// test runs against a real SQLite engine rather than string-matched SQL.
func setupTestBackend(t *testing.T) Backend {
	t.Helper()
	ctx := context.Background()
	b, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"), "p")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func mustQ(t *testing.T, table, query string) *parser.UriQuery {
	t.Helper()
	q, err := parser.Parse(table, query)
	if err != nil {
		t.Fatalf("parse %q: %v", query, err)
	}
	return q
}

// collectRows drains a streamed select into decoded documents.
func collectRows(t *testing.T, b Backend, table, query string) []any {
	t.Helper()
	rows, err := b.Select(context.Background(), table, mustQ(t, table, query), false, "tester")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	var out []any
	for rows.Next() {
		doc, err := rows.Decode()
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}
	return out
}

func docsByID(t *testing.T, docs []any) map[float64]map[string]any {
	t.Helper()
	out := map[float64]map[string]any{}
	for _, d := range docs {
		doc, ok := d.(map[string]any)
		if !ok {
			t.Fatalf("expected an object row, got %T", d)
		}
		id, ok := doc["id"].(float64)
		if !ok {
			t.Fatalf("row is missing a numeric id: %v", doc)
		}
		out[id] = doc
	}
	return out
}

func seedPeople(t *testing.T, b Backend, withAudit bool) {
	t.Helper()
	err := b.Insert(context.Background(), "people", []map[string]any{
		{"id": 1, "a": 5, "b": "a"},
		{"id": 2, "a": 5, "c": map[string]any{"m": "t"}},
	}, withAudit, "tester")
	if err != nil {
		t.Fatal(err)
	}
}

func TestInsertUpdateSelectRestoreChain(t *testing.T) {
	ctx := context.Background()
	b := setupTestBackend(t)
	seedPeople(t, b, false)

	q := mustQ(t, "people", "set=a&where=a=eq.5&message=M")
	if err := b.Update(ctx, "people", q, map[string]any{"a": 6}, "tester", ""); err != nil {
		t.Fatal(err)
	}

	rows := docsByID(t, collectRows(t, b, "people", ""))
	if rows[1]["a"] != float64(6) || rows[2]["a"] != float64(6) {
		t.Fatalf("expected both rows updated to a=6, got %v", rows)
	}

	events := collectRows(t, b, "people_audit", "where=event=eq.update")
	if len(events) != 2 {
		t.Fatalf("expected 2 update audit events, got %d", len(events))
	}
	var firstEventID string
	var txnIDs []string
	for _, e := range events {
		ev := e.(map[string]any)
		if ev["message"] != "M" {
			t.Errorf("expected message M on every event, got %v", ev["message"])
		}
		txnIDs = append(txnIDs, ev["transaction_id"].(string))
		prev, _ := ev["previous"].(map[string]any)
		if prev["id"] == float64(1) {
			firstEventID = ev["event_id"].(string)
		}
	}
	if txnIDs[0] != txnIDs[1] {
		t.Error("both update events must share one transaction_id")
	}
	if firstEventID == "" {
		t.Fatal("no update event captured the previous state of row id=1")
	}

	result, err := b.Restore(ctx, "people", mustQ(t, "people", "restore&primary_key=id&where=event_id=eq."+firstEventID), "tester", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Updates) != 1 || len(result.Restores) != 0 {
		t.Fatalf("expected one rolled-back update, got %+v", result)
	}

	rows = docsByID(t, collectRows(t, b, "people", ""))
	if rows[1]["a"] != float64(5) {
		t.Errorf("expected row id=1 rolled back to a=5, got %v", rows[1]["a"])
	}
	if rows[2]["a"] != float64(6) {
		t.Errorf("row id=2 should be untouched, got %v", rows[2]["a"])
	}
	if n := len(collectRows(t, b, "people_audit", "where=event=eq.update")); n != 3 {
		t.Errorf("expected the reversal recorded as a third update event, got %d", n)
	}

	// A second identical restore finds nothing left to do.
	again, err := b.Restore(ctx, "people", mustQ(t, "people", "restore&primary_key=id&where=event_id=eq."+firstEventID), "tester", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(again.Updates) != 0 || len(again.Restores) != 0 {
		t.Errorf("expected restore to be a fixed point, got %+v", again)
	}
}

func TestDeleteWhereAndRestoreDeletedRow(t *testing.T) {
	ctx := context.Background()
	b := setupTestBackend(t)
	seedPeople(t, b, false)

	if err := b.Delete(ctx, "people", mustQ(t, "people", "where=c=not.is.null&message=bad"), true, "tester", ""); err != nil {
		t.Fatal(err)
	}
	if rows := collectRows(t, b, "people", ""); len(rows) != 1 {
		t.Fatalf("expected one row left after delete, got %d", len(rows))
	}

	result, err := b.Restore(ctx, "people", mustQ(t, "people", "restore&primary_key=id&where=event=eq.delete"), "tester", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Restores) != 1 {
		t.Fatalf("expected one reinstated row, got %+v", result)
	}

	rows := docsByID(t, collectRows(t, b, "people", ""))
	c, ok := rows[2]["c"].(map[string]any)
	if !ok || c["m"] != "t" {
		t.Errorf("expected row id=2 reinstated with its nested object, got %v", rows[2])
	}
	if n := len(collectRows(t, b, "people_audit", "where=event=eq.restore")); n != 1 {
		t.Errorf("expected one restore audit event, got %d", n)
	}
}

func TestDropTableAndRestoreAll(t *testing.T) {
	ctx := context.Background()
	b := setupTestBackend(t)
	seedPeople(t, b, true)

	if err := b.Delete(ctx, "people", mustQ(t, "people", ""), true, "tester", ""); err != nil {
		t.Fatal(err)
	}
	tables, err := b.Tables(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range tables {
		if name == "p_people" {
			t.Fatal("expected the unfiltered delete to drop the table")
		}
	}

	result, err := b.Restore(ctx, "people", mustQ(t, "people", "restore&primary_key=id"), "tester", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Restores) != 2 {
		t.Fatalf("expected both rows reinstated, got %+v", result)
	}
	rows := docsByID(t, collectRows(t, b, "people", ""))
	if len(rows) != 2 || rows[1]["b"] != "a" || rows[2]["a"] != float64(5) {
		t.Errorf("expected the table re-created with its original rows, got %v", rows)
	}
}

func TestSelectQuotedApostropheValue(t *testing.T) {
	ctx := context.Background()
	b := setupTestBackend(t)
	err := b.Insert(ctx, "people", []map[string]any{
		{"id": 1, "loop": "g'n kat oor die pad"},
		{"id": 2, "loop": "iets anders"},
	}, false, "tester")
	if err != nil {
		t.Fatal(err)
	}

	rows := collectRows(t, b, "people", `where=loop=eq.'g\'n kat oor die pad'`)
	if len(rows) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(rows))
	}
	if rows[0].(map[string]any)["loop"] != "g'n kat oor die pad" {
		t.Errorf("unexpected row: %v", rows[0])
	}
}

func TestBroadcastArraySelect(t *testing.T) {
	ctx := context.Background()
	b := setupTestBackend(t)
	err := b.Insert(ctx, "people", []map[string]any{
		{"id": 4, "a": map[string]any{"k3": []any{
			map[string]any{"h": 0, "r": 77, "s": 521},
			map[string]any{"h": 63, "s": 333},
		}}},
	}, false, "tester")
	if err != nil {
		t.Fatal(err)
	}

	rows := collectRows(t, b, "people", "select=a.k3[*|h,s]&where=id=eq.4")
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	tuples, ok := rows[0].([]any)
	if !ok || len(tuples) != 2 {
		t.Fatalf("expected two collected tuples, got %v", rows[0])
	}
	first := tuples[0].([]any)
	second := tuples[1].([]any)
	if first[0] != float64(0) || first[1] != float64(521) {
		t.Errorf("unexpected first tuple: %v", first)
	}
	if second[0] != float64(63) || second[1] != float64(333) {
		t.Errorf("unexpected second tuple: %v", second)
	}
}

func TestCountAvgAggregateSelect(t *testing.T) {
	ctx := context.Background()
	b := setupTestBackend(t)
	var docs []map[string]any
	for i, x := range []any{1900, nil, 88, 107, 10} {
		docs = append(docs, map[string]any{"id": i + 1, "x": x})
	}
	if err := b.Insert(ctx, "samples", docs, false, "tester"); err != nil {
		t.Fatal(err)
	}

	rows := collectRows(t, b, "samples", "select=count(*),avg(x)&where=x=not.is.null")
	if len(rows) != 1 {
		t.Fatalf("expected one aggregate row, got %d", len(rows))
	}
	agg, ok := rows[0].([]any)
	if !ok || len(agg) != 2 {
		t.Fatalf("expected a [count, avg] pair, got %v", rows[0])
	}
	if agg[0] != float64(4) {
		t.Errorf("expected count 4, got %v", agg[0])
	}
	if agg[1] != float64(526.25) {
		t.Errorf("expected avg 526.25, got %v", agg[1])
	}
}

func TestInsertIdempotence(t *testing.T) {
	ctx := context.Background()
	b := setupTestBackend(t)
	doc := map[string]any{"id": 1, "a": 5}
	for i := 0; i < 2; i++ {
		if err := b.Insert(ctx, "people", []map[string]any{doc}, false, "tester"); err != nil {
			t.Fatal(err)
		}
	}
	if rows := collectRows(t, b, "people", ""); len(rows) != 1 {
		t.Errorf("expected duplicate insert to be a no-op, got %d rows", len(rows))
	}
}

func TestAuditTableImmutable(t *testing.T) {
	ctx := context.Background()
	b := setupTestBackend(t)
	seedPeople(t, b, true)

	err := b.Update(ctx, "people_audit", mustQ(t, "people_audit", "set=message&where=event=eq.create"),
		map[string]any{"message": "tampered"}, "tester", "")
	if _, ok := err.(*apierrors.OperationNotPermittedError); !ok {
		t.Errorf("expected update on an audit table to be refused, got %v", err)
	}

	err = b.Delete(ctx, "people_audit", mustQ(t, "people_audit", "where=event=eq.create"), true, "tester", "")
	if _, ok := err.(*apierrors.OperationNotPermittedError); !ok {
		t.Errorf("expected delete on an audit table to be refused, got %v", err)
	}

	_, err = b.Alter(ctx, "people_audit", mustQ(t, "people_audit", "alter=name=eq.history"))
	if _, ok := err.(*apierrors.OperationNotPermittedError); !ok {
		t.Errorf("expected alter on an audit table to be refused, got %v", err)
	}
}

func TestAlterRenamesDataAndAuditTables(t *testing.T) {
	ctx := context.Background()
	b := setupTestBackend(t)
	if err := b.Insert(ctx, "cars", []map[string]any{{"id": 1, "make": "saab"}}, true, "tester"); err != nil {
		t.Fatal(err)
	}

	result, err := b.Alter(ctx, "cars", mustQ(t, "cars", "alter=name=eq.vehicles"))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Tables) != 2 || result.Tables[0] != "vehicles" || result.Tables[1] != "vehicles_audit" {
		t.Fatalf("unexpected alter result: %+v", result)
	}

	tables, err := b.Tables(ctx)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, name := range tables {
		seen[name] = true
	}
	if !seen["p_vehicles"] || !seen["p_vehicles_audit"] {
		t.Fatalf("expected both renamed tables in the catalog, got %v", tables)
	}
	if seen["p_cars"] || seen["p_cars_audit"] {
		t.Fatalf("old names must be gone, got %v", tables)
	}

	rows := collectRows(t, b, "vehicles", "")
	if len(rows) != 1 || rows[0].(map[string]any)["make"] != "saab" {
		t.Errorf("expected the row to survive the rename, got %v", rows)
	}
}

func TestWildcardListSelect(t *testing.T) {
	ctx := context.Background()
	b := setupTestBackend(t)
	if err := b.Insert(ctx, "t1", []map[string]any{{"id": 1}}, false, "tester"); err != nil {
		t.Fatal(err)
	}
	if err := b.Insert(ctx, "t2", []map[string]any{{"id": 2}}, false, "tester"); err != nil {
		t.Fatal(err)
	}

	rows := collectRows(t, b, "t1,t2", "")
	if len(rows) != 2 {
		t.Fatalf("expected one row per table, got %d", len(rows))
	}
	keys := map[string]bool{}
	for _, r := range rows {
		doc, ok := r.(map[string]any)
		if !ok || len(doc) != 1 {
			t.Fatalf("expected each union row keyed by its table, got %v", r)
		}
		for k := range doc {
			keys[k] = true
		}
	}
	if !keys["t1"] || !keys["t2"] {
		t.Errorf("expected keys t1 and t2, got %v", keys)
	}
}
