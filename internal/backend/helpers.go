package backend

import (
	"context"
	"strings"
	"time"

	"github.com/atomicbase/squril/internal/audit"
	"github.com/atomicbase/squril/internal/config"
	"github.com/atomicbase/squril/internal/parser"
)

// joinComma joins bare set-term/clause fragments the way a SQURIL query
// string would: comma-separated, no escaping needed since these are always
// plain identifiers reconstructed from restore's own diff output.
func joinComma(parts []string) string {
	return strings.Join(parts, ",")
}

// mustPath builds a single-Key element path from a bare column name, for
// constructing synthetic UriQuery clauses (e.g. the restore engine's
// "order by timestamp asc") without round-tripping through the parser.
func mustPath(name string) []parser.Element {
	return []parser.Element{{Kind: parser.Key, Raw: name, Key: name}}
}

// retentionCutoff decides the backup window: once the data table backing auditTable
// has been dropped, and a backup_days policy is configured, reads against
// auditTable are filtered to events no older than today minus the policy
// window. Returns apply=false when no cutoff is in effect.
func (s *sqlStore) retentionCutoff(ctx context.Context, auditTable string) (cutoff time.Time, apply bool) {
	if config.Cfg.BackupRetentionDays <= 0 {
		return time.Time{}, false
	}
	source, ok := audit.SourceTableName(auditTable)
	if !ok {
		return time.Time{}, false
	}
	if s.tableExists(ctx, source) {
		return time.Time{}, false
	}
	return time.Now().UTC().AddDate(0, 0, -config.Cfg.BackupRetentionDays), true
}
