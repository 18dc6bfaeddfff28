package qualitygate

import (
	"fmt"

	"github.com/efebarandurmaz/apistat/internal/aggregate"
)

// DocCoverageGate checks that enough items carry documentation.
type DocCoverageGate struct {
	MinCoverage float64
	severity    GateSeverity
}

func NewDocCoverageGate(minCoverage float64, severity GateSeverity) *DocCoverageGate {
	return &DocCoverageGate{MinCoverage: minCoverage, severity: severity}
}

func (g *DocCoverageGate) Name() string          { return "doc_coverage" }
func (g *DocCoverageGate) Severity() GateSeverity { return g.severity }
func (g *DocCoverageGate) Evaluate(ctx *EvalContext) (*GateResult, error) {
	r := &GateResult{
		Name:      g.Name(),
		Severity:  g.severity,
		Threshold: g.MinCoverage,
	}

	if ctx.Total.Count == 0 {
		r.Status = GateSkipped
		r.Message = "no items to evaluate"
		return r, nil
	}

	ratio := ctx.Total.DocumentedRatio()
	r.Value = ratio.Float()
	if r.Value >= g.MinCoverage {
		r.Status = GatePassed
		r.Message = fmt.Sprintf("documented %s meets minimum %.1f%%", ratio, g.MinCoverage*100)
	} else {
		r.Status = GateFailed
		r.Message = fmt.Sprintf("documented %s below minimum %.1f%%", ratio, g.MinCoverage*100)
	}
	return r, nil
}

// RatioGate fails when a share of the counted items exceeds Max.
type RatioGate struct {
	Max      float64
	name     string
	label    string
	severity GateSeverity
	ratio    func(*EvalContext) aggregate.Ratio
}

// NewDeprecatedGate caps the share of deprecated items.
func NewDeprecatedGate(max float64, severity GateSeverity) *RatioGate {
	return &RatioGate{Max: max, name: "deprecated_ratio", label: "deprecated", severity: severity,
		ratio: func(c *EvalContext) aggregate.Ratio { return c.Total.DeprecatedRatio() }}
}

// NewUnstableGate caps the share of unstable items.
func NewUnstableGate(max float64, severity GateSeverity) *RatioGate {
	return &RatioGate{Max: max, name: "unstable_ratio", label: "unstable", severity: severity,
		ratio: func(c *EvalContext) aggregate.Ratio { return c.Total.UnstableRatio() }}
}

// NewOtherGate caps the share of items with an unrecognized kind.
func NewOtherGate(max float64, severity GateSeverity) *RatioGate {
	return &RatioGate{Max: max, name: "other_ratio", label: "unrecognized", severity: severity,
		ratio: func(c *EvalContext) aggregate.Ratio { return aggregate.Ratio{Num: c.Other, Den: c.Total.Count} }}
}

func (g *RatioGate) Name() string          { return g.name }
func (g *RatioGate) Severity() GateSeverity { return g.severity }
func (g *RatioGate) Evaluate(ctx *EvalContext) (*GateResult, error) {
	r := &GateResult{
		Name:      g.name,
		Severity:  g.severity,
		Threshold: g.Max,
	}

	if ctx.Total.Count == 0 {
		r.Status = GateSkipped
		r.Message = "no items to evaluate"
		return r, nil
	}

	ratio := g.ratio(ctx)
	r.Value = ratio.Float()
	if r.Value <= g.Max {
		r.Status = GatePassed
		r.Message = fmt.Sprintf("%s %s within maximum %.1f%%", g.label, ratio, g.Max*100)
	} else {
		r.Status = GateFailed
		r.Message = fmt.Sprintf("%s %s exceeds maximum %.1f%%", g.label, ratio, g.Max*100)
	}
	return r, nil
}

// CycleGate limits the number of reference cycles in the index.
type CycleGate struct {
	MaxCycles int
	severity  GateSeverity
}

func NewCycleGate(maxCycles int, severity GateSeverity) *CycleGate {
	return &CycleGate{MaxCycles: maxCycles, severity: severity}
}

func (g *CycleGate) Name() string          { return "cycles" }
func (g *CycleGate) Severity() GateSeverity { return g.severity }
func (g *CycleGate) Evaluate(ctx *EvalContext) (*GateResult, error) {
	r := &GateResult{
		Name:      g.Name(),
		Severity:  g.severity,
		Value:     float64(len(ctx.Cycles)),
		Threshold: float64(g.MaxCycles),
	}

	n := len(ctx.Cycles)
	if n <= g.MaxCycles {
		r.Status = GatePassed
		r.Message = fmt.Sprintf("%d reference cycles within limit %d", n, g.MaxCycles)
	} else {
		r.Status = GateFailed
		r.Message = fmt.Sprintf("%d reference cycles exceed limit %d", n, g.MaxCycles)
		r.Details = ctx.Cycles
	}
	return r, nil
}
