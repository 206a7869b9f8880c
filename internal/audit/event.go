// Package audit builds and classifies audit-event documents: the immutable
// journal rows paired with every data table. A Transaction mints every
// event of one logical operation, so they share a transaction_id and
// timestamp.
package audit

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atomicbase/squril/internal/config"
)

// Kind is the enum of audit event types.
type Kind string

const (
	KindUpdate  Kind = "update"
	KindDelete  Kind = "delete"
	KindRestore Kind = "restore"
	KindCreate  Kind = "create"
	KindRead    Kind = "read"
)

// Event is one row of an audit table.
type Event struct {
	EventID       string         `json:"event_id"`
	TransactionID string         `json:"transaction_id"`
	Event         Kind           `json:"event"`
	Timestamp     string         `json:"timestamp"`
	Identity      string         `json:"identity"`
	IdentityName  string         `json:"identity_name,omitempty"`
	Diff          map[string]any `json:"diff,omitempty"`
	Previous      map[string]any `json:"previous,omitempty"`
	Query         string         `json:"query,omitempty"`
	Message       string         `json:"message,omitempty"`
}

// Transaction mints every event belonging to one logical call: all share
// a transaction_id and timestamp.
type Transaction struct {
	Identity      string
	IdentityName  string
	Message       string
	TransactionID string
	Timestamp     string
}

// timestampLayout keeps a fixed-width fraction so the text ordering of
// timestamps matches their chronological ordering; RFC3339Nano trims
// trailing zeros and breaks that property.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// NewTransaction opens a new audit transaction for the given principal.
func NewTransaction(identity, identityName, message string) *Transaction {
	return &Transaction{
		Identity:      identity,
		IdentityName:  identityName,
		Message:       message,
		TransactionID: uuid.NewString(),
		Timestamp:     time.Now().UTC().Format(timestampLayout),
	}
}

func (tsc *Transaction) event(kind Kind, diff, previous map[string]any, query string) Event {
	return Event{
		EventID:       uuid.NewString(),
		TransactionID: tsc.TransactionID,
		Event:         kind,
		Timestamp:     tsc.Timestamp,
		Identity:      tsc.Identity,
		IdentityName:  tsc.IdentityName,
		Diff:          diff,
		Previous:      previous,
		Query:         query,
		Message:       tsc.Message,
	}
}

// Update records a change to an existing row.
func (tsc *Transaction) Update(diff, previous map[string]any, query string) Event {
	return tsc.event(KindUpdate, diff, previous, query)
}

// Delete records a row's removal.
func (tsc *Transaction) Delete(diff, previous map[string]any, query string) Event {
	return tsc.event(KindDelete, diff, previous, query)
}

// Restore records a row reinstated by the restore engine.
func (tsc *Transaction) Restore(diff, previous map[string]any, query string) Event {
	return tsc.event(KindRestore, diff, previous, query)
}

// Create records a newly inserted row; previous is always absent.
func (tsc *Transaction) Create(diff map[string]any) Event {
	return tsc.event(KindCreate, diff, nil, "")
}

// Read records that a query was executed against a table, with no row
// payload captured.
func (tsc *Transaction) Read(query string) Event {
	return tsc.event(KindRead, nil, nil, query)
}

// TableName returns the audit table name paired with a data table, using
// the configured separator and suffix: "T<sep>audit".
func TableName(table string) string {
	return table + config.Cfg.AuditSeparator + config.Cfg.AuditSuffix
}

// SourceTableName reverses TableName, returning the data table an audit
// table name is paired with, or ok=false if name is not a well-formed
// audit-table name.
func SourceTableName(name string) (table string, ok bool) {
	suffix := config.Cfg.AuditSeparator + config.Cfg.AuditSuffix
	if !strings.HasSuffix(name, suffix) {
		return "", false
	}
	return strings.TrimSuffix(name, suffix), true
}

var knownKinds = map[string]bool{
	string(KindUpdate): true, string(KindDelete): true, string(KindRestore): true,
	string(KindCreate): true, string(KindRead): true,
}

// ProbeRow reports whether a sampled row looks like a valid audit event:
// its event_id/transaction_id parse as UUIDs, event is a known kind,
// timestamp is present, and its key set is a subset of the schema.
// Combined with the name-suffix check (SourceTableName), this is the full
// audit-table detection contract.
func ProbeRow(row map[string]any) bool {
	eventID, _ := row["event_id"].(string)
	txnID, _ := row["transaction_id"].(string)
	kind, _ := row["event"].(string)
	if _, err := uuid.Parse(eventID); err != nil {
		return false
	}
	if _, err := uuid.Parse(txnID); err != nil {
		return false
	}
	if !knownKinds[kind] {
		return false
	}
	if row["timestamp"] == nil {
		return false
	}
	schema := map[string]bool{
		"event_id": true, "transaction_id": true, "event": true, "timestamp": true,
		"identity": true, "identity_name": true, "diff": true, "previous": true,
		"query": true, "message": true,
	}
	for k := range row {
		if !schema[k] {
			return false
		}
	}
	return true
}
