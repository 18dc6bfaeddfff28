package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/efebarandurmaz/apistat/internal/aggregate"
	"github.com/efebarandurmaz/apistat/internal/report"
)

// AppName names the config directory and file.
const AppName = "apistat"

// Config holds all application configuration.
type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis" toml:"analysis"`
	Gates    GatesConfig    `mapstructure:"gates" toml:"gates"`
	Graph    GraphConfig    `mapstructure:"graph" toml:"graph"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite" toml:"sqlite"`
	Tracing  TracingConfig  `mapstructure:"tracing" toml:"tracing"`
	Log      LogConfig      `mapstructure:"log" toml:"log"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-" toml:"-"`
}

type AnalysisConfig struct {
	GroupBy      string   `mapstructure:"group_by" toml:"group_by"`
	Format       string   `mapstructure:"format" toml:"format"`
	AssumeStable bool     `mapstructure:"assume_stable" toml:"assume_stable"`
	Workers      int      `mapstructure:"workers" toml:"workers"`
	Exclude      []string `mapstructure:"exclude" toml:"exclude"`
	PublicOnly   bool     `mapstructure:"public_only" toml:"public_only"`
}

// GatesConfig holds the thresholds used by `apistat check`. Ratios are in
// [0, 1]; a minimum of 0 or a maximum of 1 never fails.
type GatesConfig struct {
	MinDocCoverage     float64 `mapstructure:"min_doc_coverage" toml:"min_doc_coverage"`
	MaxDeprecatedRatio float64 `mapstructure:"max_deprecated_ratio" toml:"max_deprecated_ratio"`
	MaxUnstableRatio   float64 `mapstructure:"max_unstable_ratio" toml:"max_unstable_ratio"`
	MaxOtherRatio      float64 `mapstructure:"max_other_ratio" toml:"max_other_ratio"`
	// MaxCycles of -1 disables the cycle gate.
	MaxCycles int `mapstructure:"max_cycles" toml:"max_cycles"`
}

type GraphConfig struct {
	URI      string `mapstructure:"uri" toml:"uri"`
	Username string `mapstructure:"username" toml:"username"`
	Password string `mapstructure:"password" toml:"password"`
	Database string `mapstructure:"database" toml:"database"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint" toml:"endpoint"`
	Insecure    bool    `mapstructure:"insecure" toml:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate" toml:"sample_rate"`
	ServiceName string  `mapstructure:"service_name" toml:"service_name"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" toml:"level"`
	Format string `mapstructure:"format" toml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			GroupBy:      string(aggregate.GroupByCategory),
			Format:       string(report.FormatTable),
			AssumeStable: true,
			Workers:      1,
			Exclude:      []string{},
		},
		Gates: GatesConfig{
			MaxDeprecatedRatio: 1,
			MaxUnstableRatio:   1,
			MaxOtherRatio:      1,
			MaxCycles:          -1,
		},
		Graph: GraphConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		SQLite: SQLiteConfig{Path: "apistat.db"},
		Tracing: TracingConfig{
			Insecure:    true,
			SampleRate:  1,
			ServiceName: AppName,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if _, err := aggregate.ParseGroupBy(c.Analysis.GroupBy); err != nil {
		warnings = append(warnings, fmt.Sprintf("analysis.group_by: %v", err))
	}
	if _, err := report.ParseFormat(c.Analysis.Format); err != nil {
		warnings = append(warnings, fmt.Sprintf("analysis.format: %v", err))
	}
	if c.Analysis.Workers < 0 {
		warnings = append(warnings, fmt.Sprintf("analysis.workers %d is negative", c.Analysis.Workers))
	}

	ratios := []struct {
		name string
		v    float64
	}{
		{"gates.min_doc_coverage", c.Gates.MinDocCoverage},
		{"gates.max_deprecated_ratio", c.Gates.MaxDeprecatedRatio},
		{"gates.max_unstable_ratio", c.Gates.MaxUnstableRatio},
		{"gates.max_other_ratio", c.Gates.MaxOtherRatio},
		{"tracing.sample_rate", c.Tracing.SampleRate},
	}
	for _, r := range ratios {
		if r.v < 0 || r.v > 1 {
			warnings = append(warnings, fmt.Sprintf("%s %.2f is outside [0.0, 1.0]", r.name, r.v))
		}
	}
	if c.Gates.MaxCycles < -1 {
		warnings = append(warnings, fmt.Sprintf("gates.max_cycles %d is below -1", c.Gates.MaxCycles))
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		warnings = append(warnings, fmt.Sprintf("log.level %q is not a known level", c.Log.Level))
	}
	switch c.Log.Format {
	case "", "text", "json", "logfmt":
	default:
		warnings = append(warnings, fmt.Sprintf("log.format %q is not one of text, json, logfmt", c.Log.Format))
	}

	return warnings
}

// Dir returns the per-user config directory.
func Dir() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, AppName), nil
}

// Load reads configuration from path, or when path is empty from an
// apistat.{toml,yaml,json} file in the working directory or Dir. A missing
// search-path file is not an error; a missing explicit path is. Environment
// variables prefixed APISTAT_ override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(AppName)
		v.AddConfigPath(".")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("analysis.group_by", d.Analysis.GroupBy)
	v.SetDefault("analysis.format", d.Analysis.Format)
	v.SetDefault("analysis.assume_stable", d.Analysis.AssumeStable)
	v.SetDefault("analysis.workers", d.Analysis.Workers)
	v.SetDefault("analysis.exclude", d.Analysis.Exclude)
	v.SetDefault("analysis.public_only", d.Analysis.PublicOnly)
	v.SetDefault("gates.min_doc_coverage", d.Gates.MinDocCoverage)
	v.SetDefault("gates.max_deprecated_ratio", d.Gates.MaxDeprecatedRatio)
	v.SetDefault("gates.max_unstable_ratio", d.Gates.MaxUnstableRatio)
	v.SetDefault("gates.max_other_ratio", d.Gates.MaxOtherRatio)
	v.SetDefault("gates.max_cycles", d.Gates.MaxCycles)
	v.SetDefault("graph.uri", d.Graph.URI)
	v.SetDefault("graph.username", d.Graph.Username)
	v.SetDefault("graph.password", d.Graph.Password)
	v.SetDefault("graph.database", d.Graph.Database)
	v.SetDefault("sqlite.path", d.SQLite.Path)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.insecure", d.Tracing.Insecure)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// WriteTOML encodes cfg as a TOML document.
func WriteTOML(w io.Writer, cfg *Config) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// Init writes the default configuration to path. It refuses to overwrite an
// existing file unless force is set.
func Init(path string, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
		}
		return fmt.Errorf("creating config file: %w", err)
	}
	if err := WriteTOML(f, Default()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
