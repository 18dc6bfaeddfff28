package qualitygate

import (
	"fmt"
	"strings"

	"github.com/efebarandurmaz/apistat/internal/config"
)

// BuildPipeline constructs a gate pipeline from configuration. Gates left at
// their neutral value (a minimum of 0, a maximum of 1, max_cycles of -1) are
// not added. The cycle gate goes first and is critical: ratios over an index
// with broken re-exports are not worth reporting.
func BuildPipeline(cfg config.GatesConfig) *Pipeline {
	p := NewPipeline()

	if cfg.MaxCycles >= 0 {
		p.AddGate(NewCycleGate(cfg.MaxCycles, SeverityCritical))
	}
	if cfg.MinDocCoverage > 0 {
		p.AddGate(NewDocCoverageGate(cfg.MinDocCoverage, SeverityRequired))
	}
	if cfg.MaxDeprecatedRatio < 1 {
		p.AddGate(NewDeprecatedGate(cfg.MaxDeprecatedRatio, SeverityRequired))
	}
	if cfg.MaxUnstableRatio < 1 {
		p.AddGate(NewUnstableGate(cfg.MaxUnstableRatio, SeverityRequired))
	}
	if cfg.MaxOtherRatio < 1 {
		p.AddGate(NewOtherGate(cfg.MaxOtherRatio, SeverityAdvisory))
	}
	return p
}

// FormatReport returns a human-readable quality gate report.
func FormatReport(ctx *EvalContext, result *PipelineResult) string {
	var b strings.Builder
	b.WriteString("╔══════════════════════════════════════════╗\n")
	fmt.Fprintf(&b, "║ Quality gates: %-26s║\n", ctx.Crate)
	b.WriteString("╠══════════════════════════════════════════╣\n")

	if len(result.Gates) == 0 {
		b.WriteString("║ no gates configured\n")
	}
	for _, gr := range result.Gates {
		icon := "✓"
		switch gr.Status {
		case GateFailed:
			icon = "✗"
		case GateSkipped:
			icon = "○"
		case GateWarning:
			icon = "⚠"
		}
		fmt.Fprintf(&b, "║ %s %-16s %-10s %s\n", icon, gr.Name, "["+strings.ToUpper(string(gr.Severity))+"]", gr.Message)
		for _, d := range gr.Details {
			fmt.Fprintf(&b, "║   → %s\n", d)
		}
	}

	b.WriteString("╠══════════════════════════════════════════╣\n")
	status := "PASSED"
	if result.Status == GateFailed {
		status = "FAILED"
	}
	fmt.Fprintf(&b, "║ Result: %s (%s)\n", status, result.Summary)
	b.WriteString("╚══════════════════════════════════════════╝\n")
	return b.String()
}
