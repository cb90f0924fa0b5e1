package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/yungbote/neurodecode/internal/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init failed: %v", err)
	}
	return log
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Project.RandomSeed != 42 {
		t.Fatalf("default seed: %d", cfg.Project.RandomSeed)
	}
	if cfg.Modeling.NSplits != 5 {
		t.Fatalf("default n_splits: %d", cfg.Modeling.NSplits)
	}
	if len(cfg.Analysis.ERPWindows) != 3 || len(cfg.Analysis.Bands) != 3 {
		t.Fatalf("default analysis windows/bands: %+v", cfg.Analysis)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
project:
  dataset: my_dataset
modeling:
  n_splits: 3
  threshold_policy: fixed_half
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path, testLogger(t))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Project.Dataset != "my_dataset" {
		t.Fatalf("dataset: %q", cfg.Project.Dataset)
	}
	if cfg.Modeling.NSplits != 3 || cfg.Modeling.ThresholdPolicy != "fixed_half" {
		t.Fatalf("modeling: %+v", cfg.Modeling)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Project.RandomSeed != 42 {
		t.Fatalf("seed should default to 42, got %d", cfg.Project.RandomSeed)
	}
	if len(cfg.Analysis.ROIChannels) == 0 {
		t.Fatalf("roi channels should keep defaults")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("modeling:\n  n_splits: 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path, testLogger(t)); err == nil {
		t.Fatalf("expected validation failure for n_splits=1")
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), testLogger(t)); err == nil {
		t.Fatalf("expected error for missing config path")
	}
}
