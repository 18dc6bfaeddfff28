package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidate_Default(t *testing.T) {
	if warnings := Default().Validate(); len(warnings) != 0 {
		t.Errorf("default config should have no warnings, got %v", warnings)
	}
}

func TestValidate_Warnings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"group_by", func(c *Config) { c.Analysis.GroupBy = "category+planet" }, "analysis.group_by"},
		{"format", func(c *Config) { c.Analysis.Format = "yaml" }, "analysis.format"},
		{"workers", func(c *Config) { c.Analysis.Workers = -2 }, "analysis.workers"},
		{"coverage", func(c *Config) { c.Gates.MinDocCoverage = 1.5 }, "gates.min_doc_coverage"},
		{"deprecated", func(c *Config) { c.Gates.MaxDeprecatedRatio = -0.1 }, "gates.max_deprecated_ratio"},
		{"cycles", func(c *Config) { c.Gates.MaxCycles = -5 }, "gates.max_cycles"},
		{"sample_rate", func(c *Config) { c.Tracing.SampleRate = 2 }, "tracing.sample_rate"},
		{"level", func(c *Config) { c.Log.Level = "chatty" }, "log.level"},
		{"log_format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			warnings := cfg.Validate()
			if len(warnings) != 1 || !strings.Contains(warnings[0], tt.want) {
				t.Errorf("warnings = %v, want one mentioning %s", warnings, tt.want)
			}
		})
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.File != "" {
		t.Errorf("file = %q, want none", cfg.File)
	}
	if cfg.Analysis.GroupBy != "category" || !cfg.Analysis.AssumeStable || cfg.Gates.MaxCycles != -1 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoad_MissingExplicitPath(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "apistat.toml")
	content := `
[analysis]
group_by = "category+module"
exclude = ["demo::internal"]
workers = 4

[gates]
min_doc_coverage = 0.8

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("APISTAT_GATES_MAX_CYCLES", "0")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.File != path {
		t.Errorf("file = %q", cfg.File)
	}
	if cfg.Analysis.GroupBy != "category+module" || cfg.Analysis.Workers != 4 {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	if len(cfg.Analysis.Exclude) != 1 || cfg.Analysis.Exclude[0] != "demo::internal" {
		t.Errorf("exclude = %v", cfg.Analysis.Exclude)
	}
	if cfg.Gates.MinDocCoverage != 0.8 {
		t.Errorf("min_doc_coverage = %v", cfg.Gates.MinDocCoverage)
	}
	if cfg.Gates.MaxCycles != 0 {
		t.Errorf("env override ignored: max_cycles = %d", cfg.Gates.MaxCycles)
	}
	if cfg.Analysis.Format != "table" || cfg.Log.Level != "debug" {
		t.Errorf("unexpected values %+v %+v", cfg.Analysis, cfg.Log)
	}
}

func TestInit_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "apistat.toml")
	if err := Init(path, false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := Init(path, false); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("second Init should refuse to overwrite, got %v", err)
	}
	if err := Init(path, true); err != nil {
		t.Errorf("forced Init: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d := Default()
	if cfg.Analysis.GroupBy != d.Analysis.GroupBy || cfg.Graph.URI != d.Graph.URI ||
		cfg.Gates.MaxOtherRatio != d.Gates.MaxOtherRatio || cfg.Tracing.ServiceName != d.Tracing.ServiceName {
		t.Errorf("round trip mismatch: %+v", cfg)
	}
}

func TestWriteTOML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTOML(&buf, Default()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"[analysis]", "group_by = ", "category", "[gates]", "[log]"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "File") {
		t.Error("File should not be encoded")
	}
}
