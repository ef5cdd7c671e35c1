package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	t.Parallel()

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Info.Title != "API Documentation" || cfg.Info.Version != "0.1.0" {
		t.Errorf("info defaults = %+v", cfg.Info)
	}
	if cfg.Output != "openapi.yaml" {
		t.Errorf("output = %q", cfg.Output)
	}
	if len(cfg.Exclude) != 2 {
		t.Errorf("exclude = %v", cfg.Exclude)
	}
	if cfg.Validate {
		t.Error("validate must default off")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	content := `info:
  title: Memo Service
  version: 2.3.0
  description: Internal memo API.
output: docs/openapi.yaml
exclude:
  - migrations
validate: true
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Info.Title != "Memo Service" || cfg.Info.Version != "2.3.0" {
		t.Errorf("info = %+v", cfg.Info)
	}
	if cfg.Info.Description != "Internal memo API." {
		t.Errorf("description = %q", cfg.Info.Description)
	}
	if !cfg.Validate {
		t.Error("validate not read")
	}
	// User entries add to the built-in exclusions rather than replacing
	// them.
	for _, want := range []string{"migrations", "vendor", "testdata"} {
		if !slices.Contains(cfg.Exclude, want) {
			t.Errorf("exclude = %v, missing %q", cfg.Exclude, want)
		}
	}
	if got := cfg.OutputPath(dir); got != filepath.Join(dir, "docs", "openapi.yaml") {
		t.Errorf("OutputPath = %q", got)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("info: [broken\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("want parse error")
	}
}

func TestOutputPathAbsolute(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Output = "/tmp/spec/openapi.yaml"
	if got := cfg.OutputPath("/project"); got != "/tmp/spec/openapi.yaml" {
		t.Errorf("OutputPath = %q", got)
	}
}
