package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultConfig verifies the default parameter values.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Processing.NumCores < 1 {
		t.Errorf("Expected at least 1 core, got %d", cfg.Processing.NumCores)
	}
	if cfg.Voxelize.Pitch != 1.0 {
		t.Errorf("Expected default pitch 1.0, got %g", cfg.Voxelize.Pitch)
	}
	if cfg.Voxelize.MaxGridCells != 1<<27 {
		t.Errorf("Expected default cell cap 1<<27, got %d", cfg.Voxelize.MaxGridCells)
	}
	if cfg.Voxelize.AllowPartialRepair {
		t.Error("Expected partial repair to be disabled by default")
	}
	if cfg.Reconstruct.IsoValue != 0.5 {
		t.Errorf("Expected default iso-value 0.5, got %g", cfg.Reconstruct.IsoValue)
	}
	if cfg.Reconstruct.SpacingTolerance != 0.01 {
		t.Errorf("Expected default spacing tolerance 0.01, got %g", cfg.Reconstruct.SpacingTolerance)
	}
}

// TestLoadConfigMissingFile verifies that a missing config file falls
// back to defaults without error.
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Voxelize.Pitch != DefaultConfig().Voxelize.Pitch {
		t.Error("Expected default configuration")
	}
}

// TestSaveLoadRoundTrip verifies that saved settings survive a reload
// and that unspecified fields keep their defaults.
func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "anatomesh.yaml")

	cfg := DefaultConfig()
	cfg.Voxelize.Pitch = 0.25
	cfg.Reconstruct.IsoValue = 0.7
	cfg.Voxelize.AllowPartialRepair = true

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if loaded.Voxelize.Pitch != 0.25 {
		t.Errorf("Expected pitch 0.25, got %g", loaded.Voxelize.Pitch)
	}
	if loaded.Reconstruct.IsoValue != 0.7 {
		t.Errorf("Expected iso-value 0.7, got %g", loaded.Reconstruct.IsoValue)
	}
	if !loaded.Voxelize.AllowPartialRepair {
		t.Error("Expected partial repair to be enabled")
	}
	if loaded.Reconstruct.SliceGap != 1.0 {
		t.Errorf("Expected default slice gap, got %g", loaded.Reconstruct.SliceGap)
	}
}

// TestLoadConfigPartialFile verifies that a config file overriding a
// single value keeps defaults for the rest.
func TestLoadConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	content := "voxelize:\n  pitch: 2.5\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Voxelize.Pitch != 2.5 {
		t.Errorf("Expected pitch 2.5, got %g", cfg.Voxelize.Pitch)
	}
	if cfg.Reconstruct.IsoValue != 0.5 {
		t.Errorf("Expected default iso-value, got %g", cfg.Reconstruct.IsoValue)
	}
}

// TestLoadConfigInvalidYAML verifies that malformed YAML is rejected.
func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("voxelize: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected parse error")
	}
}
