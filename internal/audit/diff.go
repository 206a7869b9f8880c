package audit

import (
	"reflect"
	"strings"
)

// Diff computes the three-way diff driving the restore engine: given the
// current row and the target (desired) row, it returns the keys to change
// (present in both, differing value, set to target), the top-level keys
// to remove (present in current, absent from target), and the keys to add
// (present in target, absent from current).
func Diff(current, target map[string]any) (toChange, toRemove, toAdd map[string]any) {
	toChange = map[string]any{}
	toRemove = map[string]any{}
	toAdd = map[string]any{}

	for k, v := range target {
		if cv, ok := current[k]; ok && !valuesEqual(cv, v) {
			toChange[k] = v
		}
	}
	for k, v := range current {
		if _, ok := target[k]; !ok {
			toRemove[k] = v
		}
	}
	for k, v := range target {
		if _, ok := current[k]; !ok {
			toAdd[k] = v
		}
	}
	return toChange, toRemove, toAdd
}

func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// PrimaryKeyValue resolves a dotted primary-key path against a decoded JSON
// object, descending through nested objects one segment at a time.
func PrimaryKeyValue(primaryKey string, entry map[string]any) any {
	segments := strings.Split(primaryKey, ".")
	var cur any = entry
	for _, seg := range segments {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[seg]
	}
	return cur
}
