package audit

import (
	"reflect"
	"testing"
)

// applyDiff replays a three-way diff onto current, the way the restore
// engine issues its set operations.
func applyDiff(current, toChange, toRemove, toAdd map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range current {
		out[k] = v
	}
	for k := range toRemove {
		delete(out, k)
	}
	for k, v := range toChange {
		out[k] = v
	}
	for k, v := range toAdd {
		out[k] = v
	}
	return out
}

func TestDiffAppliedYieldsTarget(t *testing.T) {
	cases := []struct {
		name    string
		current map[string]any
		target  map[string]any
	}{
		{"disjoint", map[string]any{"a": 1.0}, map[string]any{"b": 2.0}},
		{"identical", map[string]any{"a": 1.0}, map[string]any{"a": 1.0}},
		{"changed scalar", map[string]any{"a": 1.0, "b": "x"}, map[string]any{"a": 2.0, "b": "x"}},
		{"nested object changed", map[string]any{"c": map[string]any{"m": "t"}}, map[string]any{"c": map[string]any{"m": "u"}}},
		{"array changed", map[string]any{"k": []any{1.0, 2.0}}, map[string]any{"k": []any{2.0, 1.0}}},
		{"empty current", map[string]any{}, map[string]any{"a": 1.0, "b": 2.0}},
		{"empty target", map[string]any{"a": 1.0, "b": 2.0}, map[string]any{}},
	}
	for _, c := range cases {
		toChange, toRemove, toAdd := Diff(c.current, c.target)
		got := applyDiff(c.current, toChange, toRemove, toAdd)
		if !reflect.DeepEqual(got, c.target) {
			t.Errorf("%s: applying diff gave %v, want %v", c.name, got, c.target)
		}
	}
}

func TestDiffIdenticalIsEmpty(t *testing.T) {
	doc := map[string]any{"a": 1.0, "c": map[string]any{"m": "t"}}
	toChange, toRemove, toAdd := Diff(doc, doc)
	if len(toChange)+len(toRemove)+len(toAdd) != 0 {
		t.Errorf("diffing a document against itself must be empty, got %v %v %v", toChange, toRemove, toAdd)
	}
}
