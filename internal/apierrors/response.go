package apierrors

import "strings"

// Driver-level error classification. Both the sqlite3 and lib/pq drivers
// report constraint and missing-relation failures as plain strings rather
// than typed sentinels for the conditions this engine cares about, so
// these helpers pattern-match the message text before mapping it to a
// stable Code.

// IsUniqueViolation reports whether err is a duplicate-content-hash failure
// from either backend driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// IsMissingRelation reports whether err indicates the target table (or its
// audit table) does not exist yet, the trigger for the insert retry-once
// policy.
func IsMissingRelation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "does not exist")
}

// IsConcurrentUpdate reports whether err is the benign "concurrent tuple
// update" class of Postgres error tolerated during idempotent schema
// initialization.
func IsConcurrentUpdate(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "concurrent tuple update") ||
		strings.Contains(msg, "could not serialize access")
}
