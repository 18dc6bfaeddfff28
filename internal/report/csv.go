package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/efebarandurmaz/apistat/internal/aggregate"
	"github.com/efebarandurmaz/apistat/internal/classify"
)

// CSVHeader is the fixed column order of the csv presentation.
var CSVHeader = []string{
	"category", "key", "count", "public", "deprecated", "unstable", "documented",
	"generic", "generic_sum", "const", "async", "unsafe", "methods", "avg_generics",
}

// WriteCSV writes a header line followed by one line per row.
func WriteCSV(w io.Writer, rows []aggregate.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{string(r.Category), r.Key}
		for _, n := range counts(&r) {
			rec = append(rec, strconv.Itoa(*n))
		}
		rec = append(rec, formatAvg(r.AvgGenerics()))
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseCSV reads rows written by WriteCSV. The derived avg_generics column is
// checked against the counts it was computed from.
func ParseCSV(r io.Reader) ([]aggregate.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("reading csv: missing header")
	}
	for i, name := range CSVHeader {
		if records[0][i] != name {
			return nil, fmt.Errorf("reading csv: column %d is %q, want %q", i+1, records[0][i], name)
		}
	}

	rows := make([]aggregate.Row, 0, len(records)-1)
	for line, rec := range records[1:] {
		cat, err := classify.ParseCategory(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+2, err)
		}
		row := aggregate.Row{Category: cat, Key: rec[1]}
		for i, n := range counts(&row) {
			v, err := strconv.Atoi(rec[2+i])
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line+2, CSVHeader[2+i], err)
			}
			*n = v
		}
		avg, err := strconv.ParseFloat(rec[len(rec)-1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d column avg_generics: %w", line+2, err)
		}
		if math.Abs(avg-row.AvgGenerics()) > 0.0001 {
			return nil, fmt.Errorf("line %d: avg_generics %s does not match generic_sum/count", line+2, rec[len(rec)-1])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// counts returns the integer columns of r in CSVHeader order.
func counts(r *aggregate.Row) []*int {
	return []*int{
		&r.Count, &r.Public, &r.Deprecated, &r.Unstable, &r.Documented,
		&r.Generic, &r.GenericSum, &r.Const, &r.Async, &r.Unsafe, &r.Methods,
	}
}

func round(f float64) float64 { return math.Round(f*10000) / 10000 }

func formatAvg(f float64) string { return strconv.FormatFloat(round(f), 'f', 4, 64) }
