package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// RunMetrics collects statistics for one analysis run.
type RunMetrics struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
	Duration   time.Duration  `json:"duration_ms,omitempty"`
	Source     SourceMetrics  `json:"source"`
	Stages     []StageMetrics `json:"stages"`
	Categories map[string]int `json:"categories,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
	Errors     []string       `json:"errors,omitempty"`
}

// SourceMetrics describes the loaded index.
type SourceMetrics struct {
	Path          string `json:"path"`
	Bytes         int    `json:"bytes"`
	FormatVersion int    `json:"format_version"`
	Crate         string `json:"crate"`
	ItemCount     int    `json:"item_count"`
	PathCount     int    `json:"path_count"`
	ExternalCount int    `json:"external_crate_count"`
}

// StageMetrics is the timing of one pipeline stage.
type StageMetrics struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ms"`
	Items    int           `json:"items"`
	Failed   bool          `json:"failed,omitempty"`
}

// New starts tracking a run.
func New() *RunMetrics {
	return &RunMetrics{StartedAt: time.Now()}
}

// AddStage records a single stage's timing and output size.
func (m *RunMetrics) AddStage(name string, d time.Duration, items int, failed bool) {
	m.Stages = append(m.Stages, StageMetrics{
		Name:     name,
		Duration: d,
		Items:    items,
		Failed:   failed,
	})
}

// CountCategory adds n items of category cat.
func (m *RunMetrics) CountCategory(cat string, n int) {
	if m.Categories == nil {
		m.Categories = make(map[string]int)
	}
	m.Categories[cat] += n
}

// Stage returns the metrics of the named stage.
func (m *RunMetrics) Stage(name string) (StageMetrics, bool) {
	for _, s := range m.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageMetrics{}, false
}

// Finish marks the run as complete.
func (m *RunMetrics) Finish(warnings, errs []string) {
	m.FinishedAt = time.Now()
	m.Duration = m.FinishedAt.Sub(m.StartedAt)
	m.Warnings = warnings
	m.Errors = errs
}

// PrintSummary writes a human-readable summary.
func (m *RunMetrics) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "\n╔══════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║           APISTAT RUN REPORT         ║\n")
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Duration:    %-23s║\n", m.Duration.Round(time.Microsecond))
	fmt.Fprintf(w, "║ Crate:       %-23s║\n", m.Source.Crate)
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ SOURCE (%s)\n", m.Source.Path)
	fmt.Fprintf(w, "║   Size:        %s\n", formatBytes(m.Source.Bytes))
	fmt.Fprintf(w, "║   Format:      v%d\n", m.Source.FormatVersion)
	fmt.Fprintf(w, "║   Items:       %d\n", m.Source.ItemCount)
	fmt.Fprintf(w, "║   Paths:       %d\n", m.Source.PathCount)
	fmt.Fprintf(w, "║   Ext crates:  %d\n", m.Source.ExternalCount)
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ STAGES\n")
	for _, s := range m.Stages {
		status := "OK"
		if s.Failed {
			status = "FAILED"
		}
		fmt.Fprintf(w, "║   %-10s %10s  %6d items  %s\n", s.Name, s.Duration.Round(time.Microsecond), s.Items, status)
	}
	if len(m.Categories) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ CATEGORIES\n")
		names := make([]string, 0, len(m.Categories))
		for name := range m.Categories {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "║   %-16s %d\n", name, m.Categories[name])
		}
	}
	if len(m.Warnings) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ WARNINGS\n")
		for _, e := range m.Warnings {
			fmt.Fprintf(w, "║   • %s\n", e)
		}
	}
	if len(m.Errors) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ ERRORS\n")
		for _, e := range m.Errors {
			fmt.Fprintf(w, "║   • %s\n", e)
		}
	}
	fmt.Fprintf(w, "╚══════════════════════════════════════╝\n")
}

// JSON returns the metrics as formatted JSON.
func (m *RunMetrics) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func formatBytes(b int) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
