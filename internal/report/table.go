package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/efebarandurmaz/apistat/internal/aggregate"
	"github.com/efebarandurmaz/apistat/internal/classify"
)

var (
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	numericStyle = cellStyle.Align(lipgloss.Right)
	headerStyle  = cellStyle.Bold(true)
)

// NewGrid returns a bordered table whose columns from firstNumeric on are
// right-aligned.
func NewGrid(headers []string, firstNumeric int) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col >= firstNumeric:
				return numericStyle
			}
			return cellStyle
		})
}

func writeTable(w io.Writer, in Input) error {
	grouped := in.GroupBy != "" && in.GroupBy != aggregate.GroupByCategory
	headers := []string{"Category"}
	if grouped {
		headers = append(headers, keyHeader(in.GroupBy))
	}
	first := len(headers)
	headers = append(headers, "Count", "Public", "Deprecated", "Unstable", "Documented",
		"Generic", "Avg generics", "Const", "Async", "Unsafe", "Methods")

	t := NewGrid(headers, first)
	cells := func(label []string, r aggregate.Row) []string {
		return append(label,
			strconv.Itoa(r.Count), strconv.Itoa(r.Public), strconv.Itoa(r.Deprecated),
			strconv.Itoa(r.Unstable), strconv.Itoa(r.Documented), strconv.Itoa(r.Generic),
			formatAvg(r.AvgGenerics()), strconv.Itoa(r.Const), strconv.Itoa(r.Async),
			strconv.Itoa(r.Unsafe), strconv.Itoa(r.Methods))
	}
	for _, r := range in.Rows {
		label := []string{string(r.Category)}
		if grouped {
			label = append(label, r.Key)
		}
		t.Row(cells(label, r)...)
	}
	if len(in.Rows) > 0 {
		label := []string{"Total"}
		if grouped {
			label = append(label, "")
		}
		t.Row(cells(label, in.Total)...)
	}

	var b strings.Builder
	b.WriteString(t.String())
	b.WriteString("\n")
	writeWarnings(&b, in.Warnings, "", "warning: ")
	_, err := io.WriteString(w, b.String())
	return err
}

func keyHeader(g aggregate.GroupBy) string {
	switch g {
	case aggregate.GroupByCategoryModule:
		return "Module"
	case aggregate.GroupByCategoryStability:
		return "Stability"
	case aggregate.GroupByCategoryCrate:
		return "Crate"
	}
	return "Key"
}

// ItemsTable renders one line per record: kind, path, signature, whether it
// is generic, stability and method count.
func ItemsTable(w io.Writer, records []classify.Record) error {
	t := NewGrid([]string{"Kind", "Path", "Signature", "Generics?", "Stability", "Methods"}, 5)
	for _, rec := range records {
		path := rec.Path
		if !rec.Resolved {
			path = "<unresolved " + string(rec.ID) + ">"
		}
		t.Row(
			string(rec.Category),
			path,
			rec.Signature,
			fmt.Sprint(rec.HasGenerics),
			string(rec.Stability),
			strconv.Itoa(rec.Methods),
		)
	}
	_, err := io.WriteString(w, t.String()+"\n")
	return err
}
