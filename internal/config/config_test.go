package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.AuditSeparator != "_" || cfg.AuditSuffix != "audit" {
		t.Errorf("unexpected audit naming defaults: %q %q", cfg.AuditSeparator, cfg.AuditSuffix)
	}
	if cfg.BackupRetentionDays != 0 {
		t.Errorf("retention should be disabled by default, got %d", cfg.BackupRetentionDays)
	}
	if cfg.PostgresMaxOpenConns <= 0 || cfg.PostgresMaxIdleConns <= 0 {
		t.Errorf("pool defaults must be positive, got %d/%d", cfg.PostgresMaxOpenConns, cfg.PostgresMaxIdleConns)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SQURIL_AUDIT_SEPARATOR", "/")
	t.Setenv("SQURIL_BACKUP_RETENTION_DAYS", "90")
	t.Setenv("SQURIL_UPDATE_ALL_VIEW", "true")
	t.Setenv("SQURIL_PG_MAX_OPEN_CONNS", "25")

	cfg := Load()
	if cfg.AuditSeparator != "/" {
		t.Errorf("separator override not applied: %q", cfg.AuditSeparator)
	}
	if cfg.BackupRetentionDays != 90 {
		t.Errorf("retention override not applied: %d", cfg.BackupRetentionDays)
	}
	if !cfg.UpdateAllView {
		t.Error("all-view override not applied")
	}
	if cfg.PostgresMaxOpenConns != 25 {
		t.Errorf("pool override not applied: %d", cfg.PostgresMaxOpenConns)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("SQURIL_BACKUP_RETENTION_DAYS", "soon")
	cfg := Load()
	if cfg.BackupRetentionDays != 0 {
		t.Errorf("malformed retention should fall back to 0, got %d", cfg.BackupRetentionDays)
	}
}
