package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spachava753/hltcheck/internal/config"
)

func ptr[T any](v T) *T {
	return &v
}

func TestApplyLayering(t *testing.T) {
	// defaults file < run file < flags
	d := config.DefaultDefaults()
	d.GlobalTag = "from-defaults"
	d.Era = "era-from-defaults"
	d.Threads = 3

	runYaml := `globaltag: from-run-file
events: 50
restrict_paths_to: [MC_*]
`
	tmpFile := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(tmpFile, []byte(runYaml), 0644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}

	cfg, err := config.LoadRunConfig(tmpFile, d)
	if err != nil {
		t.Fatalf("LoadRunConfig failed: %v", err)
	}

	cfg = config.Apply(cfg, config.Overrides{
		Events:          ptr(7),
		RestrictPathsTo: []string{"HLT_Ele*", "HLT_Mu*"},
		DryRun:          ptr(true),
	})

	if cfg.GlobalTag != "from-run-file" {
		t.Errorf("expected run file globaltag, got %s", cfg.GlobalTag)
	}
	if cfg.Era != "era-from-defaults" {
		t.Errorf("expected defaults era, got %s", cfg.Era)
	}
	if cfg.Threads != 3 {
		t.Errorf("expected defaults threads 3, got %d", cfg.Threads)
	}
	if cfg.Events != 7 {
		t.Errorf("expected flag events 7, got %d", cfg.Events)
	}
	if !cfg.DryRun {
		t.Error("expected dry run from flag")
	}
	if diff := cmp.Diff([]string{"HLT_Ele*", "HLT_Mu*"}, cfg.RestrictPathsTo); diff != "" {
		t.Errorf("restrict_paths_to mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyNoOverrides(t *testing.T) {
	cfg := config.DefaultRunConfig(config.DefaultDefaults())
	if diff := cmp.Diff(cfg, config.Apply(cfg, config.Overrides{})); diff != "" {
		t.Errorf("empty overrides changed config (-want +got):\n%s", diff)
	}
}
