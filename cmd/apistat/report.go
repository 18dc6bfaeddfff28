package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/apistat/internal/aggregate"
	"github.com/efebarandurmaz/apistat/internal/analysis"
	"github.com/efebarandurmaz/apistat/internal/classify"
	"github.com/efebarandurmaz/apistat/internal/report"
)

func reportFormat(s string) report.Format { return report.Format(strings.ToLower(s)) }

// newPresetCmd builds the csv, table and stats commands, which differ only in
// the presentation they request.
func newPresetCmd(a *app, format, short string) *cobra.Command {
	var f analysisFlags
	cmd := &cobra.Command{
		Use:   format + " FILE",
		Short: short,
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := f.analyze(cmd, a, args[0])
			if err != nil {
				return err
			}
			return f.render(cmd, a, res, format)
		},
	}
	f.register(cmd)
	return cmd
}

func newReportCmd(a *app) *cobra.Command {
	var (
		f       analysisFlags
		format  string
		render  bool
		width   int
		formats []string
	)
	for _, fm := range report.Formats() {
		formats = append(formats, string(fm))
	}

	cmd := &cobra.Command{
		Use:   "report FILE",
		Short: "Print the aggregation in any supported format",
		Example: `  apistat report target/doc/serde.json --format json
  apistat report target/doc/serde.json --format markdown --render`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("format") {
				format = a.cfg.Analysis.Format
			}
			fm, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			if render && fm != report.FormatMarkdown {
				return usageErrorf("--render needs --format markdown, not %s", fm)
			}

			res, err := f.analyze(cmd, a, args[0])
			if err != nil {
				return err
			}
			if !render {
				return f.render(cmd, a, res, string(fm))
			}

			var md bytes.Buffer
			if err := analysis.Render(cmd.Context(), &md, fm, res, analysis.Options{Logger: a.logger}); err != nil {
				return err
			}
			f.printTimings(cmd, res)
			return renderMarkdown(cmd.OutOrStdout(), md.String(), width)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "table", "one of "+strings.Join(formats, ", "))
	cmd.Flags().BoolVar(&render, "render", false, "render markdown for the terminal")
	cmd.Flags().IntVar(&width, "width", 100, "word wrap width for --render")
	return cmd
}

func renderMarkdown(w io.Writer, md string, width int) error {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return fmt.Errorf("markdown renderer: %w", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

func newItemsCmd(a *app) *cobra.Command {
	var (
		f          analysisFlags
		categories []string
	)
	cmd := &cobra.Command{
		Use:   "items FILE",
		Short: "List every item with its category, path and declaration",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			want := make(map[classify.Category]bool)
			for _, c := range categories {
				cat, err := classify.ParseCategory(c)
				if err != nil {
					return usageErrorf("%v", err)
				}
				want[cat] = true
			}

			opts := f.options(cmd, a, args[0])
			res, err := analysis.RunFile(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			var records []classify.Record
			for _, rec := range res.Records {
				if len(want) > 0 && !want[rec.Category] {
					continue
				}
				if opts.Aggregate.PublicOnly && !rec.Public() {
					continue
				}
				if aggregate.IsExcluded(rec.Path, opts.Aggregate.Exclude) {
					continue
				}
				records = append(records, rec)
			}
			if err := report.ItemsTable(cmd.OutOrStdout(), records); err != nil {
				return err
			}
			printWarnings(cmd, res)
			f.printTimings(cmd, res)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringArrayVarP(&categories, "category", "c", nil, "only list items of this category (repeatable)")
	return cmd
}
