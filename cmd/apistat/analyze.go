package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/apistat/internal/aggregate"
	"github.com/efebarandurmaz/apistat/internal/analysis"
	"github.com/efebarandurmaz/apistat/internal/classify"
)

// analysisFlags are the flags of every command that analyses an index.
// Flags left unset fall back to the [analysis] section of the config.
type analysisFlags struct {
	groupBy      string
	exclude      []string
	publicOnly   bool
	assumeStable bool
	workers      int
	timings      bool
}

func (f *analysisFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.groupBy, "group-by", "g", "", "grouping: category, category+module, category+stability or category+crate")
	fs.StringArrayVar(&f.exclude, "exclude", nil, "skip items whose path starts with this prefix (repeatable)")
	fs.BoolVar(&f.publicOnly, "public-only", false, "count public items only")
	fs.BoolVar(&f.assumeStable, "assume-stable", true, "treat items without a stability attribute as stable")
	fs.IntVar(&f.workers, "workers", 0, "classify with this many goroutines")
	fs.BoolVar(&f.timings, "timings", false, "print stage timings to stderr")
}

func (f *analysisFlags) options(cmd *cobra.Command, a *app, source string) analysis.Options {
	c := a.cfg.Analysis
	opts := analysis.Options{
		Source:   source,
		Classify: classify.Options{AssumeStable: c.AssumeStable, Workers: c.Workers},
		Aggregate: aggregate.Options{
			GroupBy:    aggregate.GroupBy(c.GroupBy),
			Exclude:    c.Exclude,
			PublicOnly: c.PublicOnly,
		},
		Logger: a.logger,
	}

	fs := cmd.Flags()
	if fs.Changed("group-by") {
		opts.Aggregate.GroupBy = aggregate.GroupBy(f.groupBy)
	}
	if fs.Changed("exclude") {
		opts.Aggregate.Exclude = f.exclude
	}
	if fs.Changed("public-only") {
		opts.Aggregate.PublicOnly = f.publicOnly
	}
	if fs.Changed("assume-stable") {
		opts.Classify.AssumeStable = f.assumeStable
	}
	if fs.Changed("workers") {
		opts.Classify.Workers = f.workers
	}
	return opts
}

// analyze runs every stage but report on the index at path.
func (f *analysisFlags) analyze(cmd *cobra.Command, a *app, path string) (*analysis.Result, error) {
	return analysis.RunFile(cmd.Context(), path, f.options(cmd, a, path))
}

// render runs the report stage and prints timings when asked to.
func (f *analysisFlags) render(cmd *cobra.Command, a *app, res *analysis.Result, format string) error {
	fm := reportFormat(format)
	err := analysis.Render(cmd.Context(), cmd.OutOrStdout(), fm, res, analysis.Options{Logger: a.logger})
	if err == nil && !fm.CarriesWarnings() {
		printWarnings(cmd, res)
	}
	f.printTimings(cmd, res)
	return err
}

// printWarnings writes the run's warnings to stderr regardless of log level.
func printWarnings(cmd *cobra.Command, res *analysis.Result) {
	for _, w := range res.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
}

func (f *analysisFlags) printTimings(cmd *cobra.Command, res *analysis.Result) {
	if f.timings && res.Metrics != nil {
		res.Metrics.PrintSummary(cmd.ErrOrStderr())
	}
}
