package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/apistat/internal/config"
	"github.com/efebarandurmaz/apistat/internal/observability"
)

// skipConfig marks commands that run without loading configuration.
const skipConfig = "apistat/skip-config"

// app is the state shared by every subcommand of one invocation.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *log.Logger
	tracer *observability.TracerProvider
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "apistat",
		Short: "Statistics over rustdoc JSON API indexes",
		Long: `apistat reads the JSON index rustdoc emits for a crate, classifies every
item and reports counts per category: visibility, stability, documentation,
generics and method counts. Indexes can be compared, checked against quality
gates, exported as a module graph, or stored in Neo4j or SQLite.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfig] != "" {
				a.cfg = config.Default()
				a.logger = newLogger(cmd.ErrOrStderr(), a.cfg.Log, a.logLevel)
				return nil
			}
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: ./apistat.toml or $XDG_CONFIG_HOME/apistat/apistat.toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides log.level)")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: exitUsage, Err: err}
	})

	root.AddCommand(
		newPresetCmd(a, "csv", "Print the aggregation as CSV"),
		newPresetCmd(a, "table", "Print the aggregation as an aligned table"),
		newPresetCmd(a, "stats", "Print totals, ratios and one line per group"),
		newReportCmd(a),
		newItemsCmd(a),
		newDiffCmd(a),
		newSnapshotCmd(a),
		newCheckCmd(a),
		newGraphCmd(a),
		newExportCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads configuration, builds the logger and starts tracing.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(cmd.ErrOrStderr(), cfg.Log, a.logLevel)
	if cfg.File != "" {
		a.logger.Debug("config loaded", "file", cfg.File)
	}
	for _, w := range cfg.Validate() {
		a.logger.Warn("config", "problem", w)
	}

	if cfg.Tracing.Endpoint != "" {
		tp, err := observability.InitTracing(cmd.Context(), &observability.TracingConfig{
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: version,
			OTLPEndpoint:   cfg.Tracing.Endpoint,
			Insecure:       cfg.Tracing.Insecure,
			SampleRate:     cfg.Tracing.SampleRate,
		})
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		a.tracer = tp
		a.logger.Debug("tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}
	return nil
}

// shutdown flushes pending spans.
func (a *app) shutdown() {
	if a.tracer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracer.Shutdown(ctx); err != nil && a.logger != nil {
		a.logger.Warn("tracing shutdown", "error", err)
	}
}

func newLogger(w io.Writer, cfg config.LogConfig, override string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	name := cfg.Level
	if override != "" {
		name = override
	}
	level, err := log.ParseLevel(name)
	if err != nil {
		level = log.InfoLevel
	}

	formatter := log.TextFormatter
	switch cfg.Format {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}
	return log.NewWithOptions(w, log.Options{
		Prefix:    config.AppName,
		Level:     level,
		Formatter: formatter,
	})
}

// exactArgs is cobra.ExactArgs with a usage exit status.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &ExitError{Code: exitUsage, Err: err}
		}
		return nil
	}
}
