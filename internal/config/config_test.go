package config

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeAndDefaults(t *testing.T) {
	yaml := `
database_path: /var/lib/app/app.db
files_root: /var/lib/app/filedir
table_prefix: app_
`
	cfg, err := decode(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if err := cfg.validateAndDefault(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	if cfg.PageSize != 100 {
		t.Errorf("Expected default page size 100, got %d", cfg.PageSize)
	}
	if cfg.Logging.RotationDays != 30 {
		t.Errorf("Expected default rotation 30 days, got %d", cfg.Logging.RotationDays)
	}
	if cfg.Prometheus.Port != 0 {
		t.Errorf("Expected Prometheus disabled by default, got port %d", cfg.Prometheus.Port)
	}
	if cfg.TablePrefix != "app_" {
		t.Errorf("Table prefix not decoded: %q", cfg.TablePrefix)
	}
}

func TestMissingDatabasePath(t *testing.T) {
	cfg := &Config{FilesRoot: "/var/lib/app/filedir"}
	if err := cfg.validateAndDefault(); !errors.Is(err, errNoDatabase) {
		t.Errorf("Expected errNoDatabase, got %v", err)
	}
}

func TestMissingFilesRoot(t *testing.T) {
	cfg := &Config{DatabasePath: "/var/lib/app/app.db"}
	if err := cfg.validateAndDefault(); !errors.Is(err, errNoFilesRoot) {
		t.Errorf("Expected errNoFilesRoot, got %v", err)
	}
}

func TestRelativeFilesRoot(t *testing.T) {
	cfg := &Config{
		DatabasePath: "/var/lib/app/app.db",
		FilesRoot:    "relative/filedir",
	}
	if err := cfg.validateAndDefault(); !errors.Is(err, errInvalidPath) {
		t.Errorf("Expected errInvalidPath, got %v", err)
	}
}

func TestFilesRootCleaned(t *testing.T) {
	cfg := &Config{
		DatabasePath: "/var/lib/app/app.db",
		FilesRoot:    "/var/lib/app//filedir/",
	}
	if err := cfg.validateAndDefault(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if cfg.FilesRoot != "/var/lib/app/filedir" {
		t.Errorf("Expected cleaned root, got %q", cfg.FilesRoot)
	}
}
