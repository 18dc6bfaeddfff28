package qualitygate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/efebarandurmaz/apistat/internal/aggregate"
	"github.com/efebarandurmaz/apistat/internal/analysis"
	"github.com/efebarandurmaz/apistat/internal/config"
	"github.com/efebarandurmaz/apistat/internal/index/indextest"
)

func evalCtx(count, documented, deprecated, unstable, other int) *EvalContext {
	return &EvalContext{
		Crate: "demo",
		Total: aggregate.Row{
			Category:   "Total",
			Count:      count,
			Documented: documented,
			Deprecated: deprecated,
			Unstable:   unstable,
		},
		Other: other,
	}
}

func TestDocCoverageGate(t *testing.T) {
	tests := []struct {
		name       string
		min        float64
		ctx        *EvalContext
		wantStatus GateStatus
		wantValue  float64
	}{
		{"pass above minimum", 0.5, evalCtx(10, 8, 0, 0, 0), GatePassed, 0.8},
		{"pass at minimum", 0.8, evalCtx(10, 8, 0, 0, 0), GatePassed, 0.8},
		{"fail below minimum", 0.9, evalCtx(10, 8, 0, 0, 0), GateFailed, 0.8},
		{"skip empty index", 0.9, evalCtx(0, 0, 0, 0, 0), GateSkipped, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewDocCoverageGate(tt.min, SeverityRequired)
			result, err := gate.Evaluate(tt.ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Status != tt.wantStatus {
				t.Errorf("got status %v, want %v (%s)", result.Status, tt.wantStatus, result.Message)
			}
			if result.Value != tt.wantValue {
				t.Errorf("got value %v, want %v", result.Value, tt.wantValue)
			}
			if result.Name != "doc_coverage" || result.Threshold != tt.min {
				t.Errorf("got %q threshold %v", result.Name, result.Threshold)
			}
		})
	}
}

func TestRatioGates(t *testing.T) {
	ctx := evalCtx(20, 0, 2, 5, 1)
	tests := []struct {
		gate       *RatioGate
		wantName   string
		wantStatus GateStatus
	}{
		{NewDeprecatedGate(0.1, SeverityRequired), "deprecated_ratio", GatePassed},
		{NewDeprecatedGate(0.05, SeverityRequired), "deprecated_ratio", GateFailed},
		{NewUnstableGate(0.25, SeverityRequired), "unstable_ratio", GatePassed},
		{NewUnstableGate(0.2, SeverityRequired), "unstable_ratio", GateFailed},
		{NewOtherGate(0.05, SeverityRequired), "other_ratio", GatePassed},
		{NewOtherGate(0, SeverityRequired), "other_ratio", GateFailed},
	}
	for _, tt := range tests {
		result, err := tt.gate.Evaluate(ctx)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.wantName, err)
		}
		if result.Name != tt.wantName || result.Status != tt.wantStatus {
			t.Errorf("%s max %v: got %s %s (%s)", tt.wantName, tt.gate.Max, result.Name, result.Status, result.Message)
		}
	}

	result, _ := NewUnstableGate(0, SeverityRequired).Evaluate(evalCtx(0, 0, 0, 0, 0))
	if result.Status != GateSkipped {
		t.Errorf("empty index should skip, got %s", result.Status)
	}
}

func TestCycleGate(t *testing.T) {
	ctx := &EvalContext{Cycles: []string{"cycle: 30 -> 31 -> 30"}}

	result, _ := NewCycleGate(1, SeverityCritical).Evaluate(ctx)
	if result.Status != GatePassed {
		t.Errorf("one cycle within limit 1: got %s", result.Status)
	}

	result, _ = NewCycleGate(0, SeverityCritical).Evaluate(ctx)
	if result.Status != GateFailed {
		t.Fatalf("got %s, want failed", result.Status)
	}
	if len(result.Details) != 1 || !strings.Contains(result.Details[0], "30 -> 31") {
		t.Errorf("details = %v", result.Details)
	}
}

func TestPipeline_AllPass(t *testing.T) {
	p := NewPipeline(
		NewDocCoverageGate(0.5, SeverityRequired),
		NewDeprecatedGate(0.5, SeverityRequired),
	)
	result := p.Run(evalCtx(10, 9, 1, 0, 0))
	if result.Status != GatePassed || result.PassedCount != 2 {
		t.Errorf("got %+v", result)
	}
	if result.Err() != nil {
		t.Errorf("Err() = %v", result.Err())
	}
}

func TestPipeline_RequiredFailure(t *testing.T) {
	p := NewPipeline(
		NewDocCoverageGate(0.95, SeverityRequired),
		NewDeprecatedGate(0.5, SeverityRequired),
	)
	result := p.Run(evalCtx(10, 9, 1, 0, 0))
	if result.Status != GateFailed || result.FailedCount != 1 || result.PassedCount != 1 {
		t.Errorf("got %+v", result)
	}

	var fe *FailedError
	if err := result.Err(); !errors.As(err, &fe) || !strings.Contains(err.Error(), "doc_coverage") {
		t.Errorf("Err() = %v", err)
	}
}

func TestPipeline_CriticalAborts(t *testing.T) {
	p := NewPipeline(
		NewCycleGate(0, SeverityCritical),
		NewDocCoverageGate(0.1, SeverityRequired),
	)
	ctx := evalCtx(10, 9, 0, 0, 0)
	ctx.Cycles = []string{"a -> b -> a"}

	result := p.Run(ctx)
	if result.Status != GateFailed || result.SkippedCount != 1 {
		t.Errorf("got %+v", result)
	}
	if result.Gates[1].Status != GateSkipped {
		t.Errorf("second gate = %s, want skipped", result.Gates[1].Status)
	}
}

func TestPipeline_AdvisoryWarns(t *testing.T) {
	p := NewPipeline(NewOtherGate(0, SeverityAdvisory))
	result := p.Run(evalCtx(10, 0, 0, 0, 3))
	if result.Status != GatePassed || result.WarningCount != 1 {
		t.Errorf("got %+v", result)
	}
	if result.Gates[0].Status != GateWarning {
		t.Errorf("advisory failure should be a warning, got %s", result.Gates[0].Status)
	}
}

func TestBuildPipeline(t *testing.T) {
	if n := BuildPipeline(config.Default().Gates).Len(); n != 0 {
		t.Errorf("default gates should be disabled, got %d", n)
	}

	cfg := config.GatesConfig{
		MinDocCoverage:     0.5,
		MaxDeprecatedRatio: 0.1,
		MaxUnstableRatio:   1,
		MaxOtherRatio:      0,
		MaxCycles:          0,
	}
	p := BuildPipeline(cfg)
	var names []string
	for _, g := range p.gates {
		names = append(names, g.Name()+":"+string(g.Severity()))
	}
	want := "cycles:critical,doc_coverage:required,deprecated_ratio:required,other_ratio:advisory"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("gates = %s, want %s", got, want)
	}
}

func TestFromResult(t *testing.T) {
	b := indextest.New("demo").Add(
		indextest.Item{ID: "1", Name: "documented", Kind: "function", Parent: "0", Docs: "Yes."},
		indextest.Item{ID: "2", Name: "bare", Kind: "function", Parent: "0"},
	)
	res, err := analysis.Run(context.Background(), b.JSON(), analysis.Options{})
	if err != nil {
		t.Fatal(err)
	}
	ctx := FromResult(res)
	if ctx.Crate != "demo" || ctx.Total.Count != 3 || ctx.Total.Documented != 1 {
		t.Errorf("ctx = %+v", ctx)
	}

	result := NewPipeline(NewDocCoverageGate(0.5, SeverityRequired)).Run(ctx)
	if result.Status != GateFailed {
		t.Errorf("1/3 documented should fail a 50%% minimum: %+v", result.Gates)
	}
}

func TestFormatReport(t *testing.T) {
	ctx := evalCtx(10, 2, 0, 0, 0)
	result := NewPipeline(NewDocCoverageGate(0.5, SeverityRequired)).Run(ctx)
	out := FormatReport(ctx, result)
	for _, want := range []string{"Quality gates: demo", "✗ doc_coverage", "[REQUIRED]", "Result: FAILED", "2/10 (20.0%)"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	empty := FormatReport(ctx, NewPipeline().Run(ctx))
	if !strings.Contains(empty, "no gates configured") || !strings.Contains(empty, "PASSED") {
		t.Errorf("empty report:\n%s", empty)
	}
}
