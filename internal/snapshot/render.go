package snapshot

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/efebarandurmaz/apistat/internal/report"
)

// DiffFormats lists the presentations WriteDiff supports.
var DiffFormats = []report.Format{report.FormatTable, report.FormatCSV, report.FormatJSON}

// WriteDiff renders d as a table, csv or json.
func WriteDiff(w io.Writer, d *SnapshotDiff, format report.Format) error {
	switch format {
	case report.FormatTable:
		return writeDiffTable(w, d)
	case report.FormatCSV:
		return writeDiffCSV(w, d)
	case report.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}
	return &report.UnsupportedPresentationError{Format: string(format)}
}

func signed(n int) string {
	if n > 0 {
		return "+" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func summaryLine(d *SnapshotDiff) string {
	s := d.Summary
	return fmt.Sprintf("diff: items %s public %s doc_coverage %+.1f%% added=%d removed=%d modified=%d breaking=%d",
		signed(s.TotalDelta), signed(s.PublicDelta), s.DocCoverageDelta*100,
		s.ItemsAdded, s.ItemsRemoved, s.ItemsModified, s.Breaking)
}

func writeDiffTable(w io.Writer, d *SnapshotDiff) error {
	var b strings.Builder
	b.WriteString(summaryLine(d))
	b.WriteString("\n")

	if len(d.Rows) > 0 {
		t := report.NewGrid([]string{"Category", "Key", "Change", "Old", "New", "Δ", "Public Δ", "Documented Δ"}, 3)
		for _, r := range d.Rows {
			t.Row(string(r.Category), r.Key, string(r.Type),
				strconv.Itoa(r.OldCount), strconv.Itoa(r.NewCount), signed(r.CountDelta),
				signed(r.PublicDelta), signed(r.DocumentedDelta))
		}
		b.WriteString(t.String())
		b.WriteString("\n")
	}

	if len(d.Items) > 0 {
		t := report.NewGrid([]string{"Path", "Category", "Change", "Details", "Breaking"}, 5)
		for _, it := range d.Items {
			breaking := ""
			if it.Breaking {
				breaking = "yes"
			}
			t.Row(it.Path, string(it.Category), string(it.Type), describe(it.Changes), breaking)
		}
		b.WriteString(t.String())
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func describe(changes []FieldChange) string {
	parts := make([]string, 0, len(changes))
	for _, c := range changes {
		parts = append(parts, fmt.Sprintf("%s: %s -> %s", c.Field, c.Old, c.New))
	}
	return strings.Join(parts, "; ")
}

func writeDiffCSV(w io.Writer, d *SnapshotDiff) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"scope", "category", "key", "change", "old", "new", "delta", "breaking"}); err != nil {
		return err
	}
	for _, r := range d.Rows {
		if err := cw.Write([]string{
			"group", string(r.Category), r.Key, string(r.Type),
			strconv.Itoa(r.OldCount), strconv.Itoa(r.NewCount), strconv.Itoa(r.CountDelta), "",
		}); err != nil {
			return err
		}
	}
	for _, it := range d.Items {
		if err := cw.Write([]string{
			"item", string(it.Category), it.Path, string(it.Type),
			"", "", describe(it.Changes), strconv.FormatBool(it.Breaking),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
