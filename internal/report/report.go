// Package report renders aggregation rows as text. Rendering is pure: the same
// input always produces the same bytes.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/efebarandurmaz/apistat/internal/aggregate"
)

// Format names a presentation.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatTable    Format = "table"
	FormatStats    Format = "stats"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formats lists the supported presentations.
func Formats() []Format {
	return []Format{FormatCSV, FormatTable, FormatStats, FormatJSON, FormatMarkdown}
}

// CarriesWarnings reports whether the presentation prints Input.Warnings
// itself. CSV output stays machine readable, so callers surface warnings
// elsewhere.
func (f Format) CarriesWarnings() bool { return f != FormatCSV }

// ParseFormat validates a presentation name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats() {
		if string(f) == strings.ToLower(strings.TrimSpace(s)) {
			return f, nil
		}
	}
	return "", &UnsupportedPresentationError{Format: s}
}

// UnsupportedPresentationError reports a format the emitter does not implement.
type UnsupportedPresentationError struct {
	Format string
}

func (e *UnsupportedPresentationError) Error() string {
	names := make([]string, 0, 5)
	for _, f := range Formats() {
		names = append(names, string(f))
	}
	return fmt.Sprintf("unsupported presentation %q (supported: %s)", e.Format, strings.Join(names, ", "))
}

// Input is everything a presentation may show.
type Input struct {
	GroupBy    aggregate.GroupBy
	Rows       []aggregate.Row
	Total      aggregate.Row
	Excluded   int
	Other      int
	Unresolved int
	// Warnings are non-fatal problems, such as reference cycles, that must be
	// shown next to the numbers.
	Warnings []string
}

// FromResult builds an Input from an aggregation result.
func FromResult(res aggregate.Result, warnings []string) Input {
	return Input{
		GroupBy:    res.GroupBy,
		Rows:       res.Rows,
		Total:      res.Total,
		Excluded:   res.Excluded,
		Other:      res.Other,
		Unresolved: res.Unresolved,
		Warnings:   warnings,
	}
}

// Render writes in to w in the requested format.
func Render(w io.Writer, format Format, in Input) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, in.Rows)
	case FormatTable:
		return writeTable(w, in)
	case FormatStats:
		return writeStats(w, in)
	case FormatJSON:
		return writeJSON(w, in)
	case FormatMarkdown:
		return writeMarkdown(w, in)
	}
	return &UnsupportedPresentationError{Format: string(format)}
}

type jsonRow struct {
	aggregate.Row
	AvgGenerics float64 `json:"avg_generics"`
}

func toJSONRow(r aggregate.Row) jsonRow {
	return jsonRow{Row: r, AvgGenerics: round(r.AvgGenerics())}
}

func writeJSON(w io.Writer, in Input) error {
	rows := make([]jsonRow, 0, len(in.Rows))
	for _, r := range in.Rows {
		rows = append(rows, toJSONRow(r))
	}
	warnings := in.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	out := struct {
		GroupBy    aggregate.GroupBy `json:"group_by"`
		Rows       []jsonRow         `json:"rows"`
		Total      jsonRow           `json:"total"`
		Excluded   int               `json:"excluded"`
		Other      int               `json:"other"`
		Unresolved int               `json:"unresolved"`
		Warnings   []string          `json:"warnings"`
	}{in.GroupBy, rows, toJSONRow(in.Total), in.Excluded, in.Other, in.Unresolved, warnings}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

func writeStats(w io.Writer, in Input) error {
	t := in.Total
	var b strings.Builder
	fmt.Fprintf(&b,
		"stats: items=%d public=%d documented=%d deprecated=%d unstable=%d other=%d unresolved=%d excluded=%d group_by=%s\n",
		t.Count, t.Public, t.Documented, t.Deprecated, t.Unstable, in.Other, in.Unresolved, in.Excluded, groupBy(in.GroupBy),
	)
	fmt.Fprintf(&b, "ratios: public=%s documented=%s deprecated=%s\n",
		t.PublicRatio(), t.DocumentedRatio(), t.DeprecatedRatio())
	fmt.Fprintf(&b, "generics: generic_items=%d params=%d avg=%s\n", t.Generic, t.GenericSum, formatAvg(t.AvgGenerics()))
	fmt.Fprintf(&b, "functions: const=%d async=%d unsafe=%d methods=%d\n", t.Const, t.Async, t.Unsafe, t.Methods)
	if len(in.Rows) > 0 {
		b.WriteString("groups:\n")
		for _, r := range in.Rows {
			b.WriteString("  " + string(r.Category))
			if r.Key != "" {
				b.WriteString(" key=" + r.Key)
			}
			fmt.Fprintf(&b, " count=%d public=%d deprecated=%d unstable=%d documented=%d avg_generics=%s methods=%d\n",
				r.Count, r.Public, r.Deprecated, r.Unstable, r.Documented, formatAvg(r.AvgGenerics()), r.Methods)
		}
	}
	writeWarnings(&b, in.Warnings, "warnings:\n", "  ")
	_, err := io.WriteString(w, b.String())
	return err
}

func writeMarkdown(w io.Writer, in Input) error {
	var b strings.Builder
	t := in.Total
	b.WriteString("# API statistics\n\n")
	fmt.Fprintf(&b, "Grouped by `%s`. %d items, %s public, %s documented, %s deprecated.\n\n",
		groupBy(in.GroupBy), t.Count, t.PublicRatio(), t.DocumentedRatio(), t.DeprecatedRatio())

	b.WriteString("| Category | Key | Count | Public | Deprecated | Unstable | Documented | Avg generics | Methods |\n")
	b.WriteString("|---|---|---:|---:|---:|---:|---:|---:|---:|\n")
	for _, r := range in.Rows {
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %d | %d | %s | %d |\n",
			r.Category, mdEscape(r.Key), r.Count, r.Public, r.Deprecated, r.Unstable, r.Documented,
			formatAvg(r.AvgGenerics()), r.Methods)
	}
	if in.Other > 0 || in.Unresolved > 0 || in.Excluded > 0 {
		fmt.Fprintf(&b, "\n%d unrecognized, %d unresolved, %d excluded.\n", in.Other, in.Unresolved, in.Excluded)
	}
	if len(in.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		writeWarnings(&b, in.Warnings, "", "- ")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeWarnings(b *strings.Builder, warnings []string, header, bullet string) {
	if len(warnings) == 0 {
		return
	}
	b.WriteString(header)
	for _, w := range warnings {
		b.WriteString(bullet + w + "\n")
	}
}

func groupBy(g aggregate.GroupBy) string {
	if g == "" {
		return string(aggregate.GroupByCategory)
	}
	return string(g)
}

func mdEscape(s string) string { return strings.ReplaceAll(s, "|", `\|`) }
