package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileMissing(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("LoadFile on missing file: %v", err)
	}
	if cfg.Store.RetentionDays != DefaultRetentionDays {
		t.Errorf("RetentionDays = %d, want default %d", cfg.Store.RetentionDays, DefaultRetentionDays)
	}
	if cfg.Crew.OrphanAfterHours != DefaultOrphanAfterHours {
		t.Errorf("OrphanAfterHours = %d, want default %d", cfg.Crew.OrphanAfterHours, DefaultOrphanAfterHours)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[store]
retention_days = 7

[crew]
stale_after_hours = 6

[merge]
test_command = "make test"
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Store.RetentionDays != 7 {
		t.Errorf("RetentionDays = %d", cfg.Store.RetentionDays)
	}
	if cfg.Crew.StaleAfterHours != 6 {
		t.Errorf("StaleAfterHours = %d", cfg.Crew.StaleAfterHours)
	}
	// Unset fields keep their defaults.
	if cfg.Crew.OrphanAfterHours != DefaultOrphanAfterHours {
		t.Errorf("OrphanAfterHours = %d", cfg.Crew.OrphanAfterHours)
	}
	if cfg.Merge.TestCommand != "make test" {
		t.Errorf("TestCommand = %q", cfg.Merge.TestCommand)
	}
}

func TestLoadFileBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[store]\nretention_days = -5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Store.RetentionDays != DefaultRetentionDays {
		t.Errorf("negative retention not normalized: %d", cfg.Store.RetentionDays)
	}
}
