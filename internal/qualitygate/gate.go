package qualitygate

import (
	"fmt"
	"time"

	"github.com/efebarandurmaz/apistat/internal/aggregate"
	"github.com/efebarandurmaz/apistat/internal/analysis"
)

// GateStatus represents the result of a quality gate check.
type GateStatus string

const (
	GatePassed  GateStatus = "passed"
	GateFailed  GateStatus = "failed"
	GateSkipped GateStatus = "skipped"
	GateWarning GateStatus = "warning"
)

// GateSeverity indicates how critical a gate failure is.
type GateSeverity string

const (
	SeverityCritical GateSeverity = "critical" // later gates are skipped
	SeverityRequired GateSeverity = "required"
	SeverityAdvisory GateSeverity = "advisory" // reported, never fails the run
)

// GateResult captures the outcome of a single gate evaluation.
type GateResult struct {
	Name        string        `json:"name"`
	Status      GateStatus    `json:"status"`
	Severity    GateSeverity  `json:"severity"`
	Value       float64       `json:"value"`
	Threshold   float64       `json:"threshold"`
	Message     string        `json:"message"`
	Details     []string      `json:"details,omitempty"`
	Duration    time.Duration `json:"duration"`
	EvaluatedAt time.Time     `json:"evaluated_at"`
}

// Gate is the interface all quality gates must implement.
type Gate interface {
	Name() string
	Severity() GateSeverity
	Evaluate(ctx *EvalContext) (*GateResult, error)
}

// EvalContext is the slice of an analysis run the gates look at.
type EvalContext struct {
	Crate      string
	Total      aggregate.Row
	Other      int
	Unresolved int
	// Cycles are the reference cycle warnings reported by the resolver.
	Cycles []string
}

// FromResult builds an EvalContext from an analysis run.
func FromResult(res *analysis.Result) *EvalContext {
	ctx := &EvalContext{
		Total:      res.Aggregate.Total,
		Other:      res.Aggregate.Other,
		Unresolved: res.Aggregate.Unresolved,
		Cycles:     res.Cycles,
	}
	if res.Document != nil {
		if root := res.Document.RootItem(); root != nil {
			ctx.Crate = root.Name
		}
	}
	return ctx
}

// PipelineResult captures the complete gate pipeline evaluation.
type PipelineResult struct {
	Status       GateStatus    `json:"status"` // failed if any critical or required gate failed
	Gates        []GateResult  `json:"gates"`
	PassedCount  int           `json:"passed_count"`
	FailedCount  int           `json:"failed_count"`
	SkippedCount int           `json:"skipped_count"`
	WarningCount int           `json:"warning_count"`
	Duration     time.Duration `json:"duration"`
	EvaluatedAt  time.Time     `json:"evaluated_at"`
	Summary      string        `json:"summary"`
}

// Err returns a *FailedError when the pipeline failed and nil otherwise.
func (r *PipelineResult) Err() error {
	if r.Status != GateFailed {
		return nil
	}
	return &FailedError{Result: r}
}

// FailedError reports a failed gate pipeline.
type FailedError struct {
	Result *PipelineResult
}

func (e *FailedError) Error() string {
	var names []string
	for _, g := range e.Result.Gates {
		if g.Status == GateFailed {
			names = append(names, g.Name)
		}
	}
	return fmt.Sprintf("quality gates failed: %v", names)
}

// Pipeline orchestrates multiple quality gates in sequence.
type Pipeline struct {
	gates []Gate
}

// NewPipeline creates a new quality gate pipeline.
func NewPipeline(gates ...Gate) *Pipeline {
	return &Pipeline{gates: gates}
}

// AddGate appends a gate to the pipeline.
func (p *Pipeline) AddGate(g Gate) {
	p.gates = append(p.gates, g)
}

// Len returns the number of configured gates.
func (p *Pipeline) Len() int { return len(p.gates) }

// Run evaluates all gates against the provided context.
func (p *Pipeline) Run(ctx *EvalContext) *PipelineResult {
	start := time.Now()
	result := &PipelineResult{
		Status:      GatePassed,
		Gates:       []GateResult{},
		EvaluatedAt: start,
	}

	aborted := false
	for _, gate := range p.gates {
		if aborted {
			result.Gates = append(result.Gates, GateResult{
				Name:        gate.Name(),
				Status:      GateSkipped,
				Severity:    gate.Severity(),
				Message:     "skipped after a critical gate failed",
				EvaluatedAt: time.Now(),
			})
			result.SkippedCount++
			continue
		}

		gateStart := time.Now()
		gr, err := gate.Evaluate(ctx)
		if err != nil {
			gr = &GateResult{
				Name:     gate.Name(),
				Status:   GateFailed,
				Severity: gate.Severity(),
				Message:  fmt.Sprintf("gate evaluation error: %v", err),
			}
		}
		if gr.Status == GateFailed && gr.Severity == SeverityAdvisory {
			gr.Status = GateWarning
		}
		gr.Duration = time.Since(gateStart)
		gr.EvaluatedAt = gateStart

		result.Gates = append(result.Gates, *gr)

		switch gr.Status {
		case GatePassed:
			result.PassedCount++
		case GateFailed:
			result.FailedCount++
			result.Status = GateFailed
			if gr.Severity == SeverityCritical {
				aborted = true
			}
		case GateWarning:
			result.WarningCount++
		case GateSkipped:
			result.SkippedCount++
		}
	}

	result.Duration = time.Since(start)
	result.Summary = formatSummary(result)
	return result
}

func formatSummary(r *PipelineResult) string {
	return fmt.Sprintf("%d passed, %d failed, %d warnings, %d skipped [%s]",
		r.PassedCount, r.FailedCount, r.WarningCount, r.SkippedCount, r.Status)
}
