// Package analysis runs the load, resolve, classify and aggregate stages over
// one API index. Each run carries its own document, so several indexes can be
// analysed in one process.
package analysis

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/efebarandurmaz/apistat/internal/aggregate"
	"github.com/efebarandurmaz/apistat/internal/classify"
	"github.com/efebarandurmaz/apistat/internal/index"
	"github.com/efebarandurmaz/apistat/internal/metrics"
	"github.com/efebarandurmaz/apistat/internal/observability"
	"github.com/efebarandurmaz/apistat/internal/report"
	"github.com/efebarandurmaz/apistat/internal/resolve"
)

// Stage names a pipeline step.
type Stage string

const (
	StageLoad      Stage = "load"
	StageResolve   Stage = "resolve"
	StageClassify  Stage = "classify"
	StageAggregate Stage = "aggregate"
	StageReport    Stage = "report"
)

// StageError wraps a fatal error with the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Options configures a run.
type Options struct {
	// Source labels the input in logs, spans and metrics.
	Source    string
	Classify  classify.Options
	Aggregate aggregate.Options
	// Logger receives stage timings at debug level and warnings at warn
	// level. Nil discards output.
	Logger *log.Logger
	// Metrics collects stage timings. Nil allocates a fresh collector.
	Metrics *metrics.RunMetrics
}

// Result holds every intermediate product of a run.
type Result struct {
	Document  *index.Document
	Table     *resolve.Table
	Records   []classify.Record
	Aggregate aggregate.Result
	// Warnings are the non-fatal problems found, such as reference cycles
	// and partly decoded items.
	Warnings []string
	// Cycles are the reference cycle warnings alone.
	Cycles   []string
	Metrics  *metrics.RunMetrics
}

// ReportInput converts the aggregation into emitter input, warnings included.
func (r *Result) ReportInput() report.Input {
	return report.FromResult(r.Aggregate, r.Warnings)
}

type runner struct {
	opts   Options
	logger *log.Logger
	m      *metrics.RunMetrics
}

func newRunner(opts Options) *runner {
	r := &runner{opts: opts, logger: opts.Logger, m: opts.Metrics}
	if r.logger == nil {
		r.logger = log.New(io.Discard)
	}
	if r.m == nil {
		r.m = metrics.New()
	}
	if opts.Source != "" {
		r.m.Source.Path = opts.Source
	}
	return r
}

// RunFile reads path and runs every stage on it.
func RunFile(ctx context.Context, path string, opts Options) (*Result, error) {
	if opts.Source == "" {
		opts.Source = path
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &StageError{Stage: StageLoad, Err: err}
	}
	return Run(ctx, data, opts)
}

// Run loads data and runs every stage on it. Stages run strictly in
// sequence; the first fatal error stops the run and is returned as a
// *StageError.
func Run(ctx context.Context, data []byte, opts Options) (*Result, error) {
	r := newRunner(opts)
	ctx, span := observability.StartRunSpan(ctx, opts.Source)
	defer span.End()

	r.m.Source.Bytes = len(data)
	var doc *index.Document
	err := r.stage(ctx, StageLoad, func(context.Context) (int, error) {
		var err error
		doc, err = index.Load(data)
		if err != nil {
			return 0, err
		}
		return doc.Len(), nil
	})
	if err != nil {
		observability.RecordError(span, err)
		r.m.Finish(nil, []string{err.Error()})
		return nil, err
	}

	res, err := r.analyze(ctx, doc)
	if err != nil {
		observability.RecordError(span, err)
	}
	return res, err
}

// Analyze runs the stages after load on an already loaded document.
func Analyze(ctx context.Context, doc *index.Document, opts Options) (*Result, error) {
	r := newRunner(opts)
	ctx, span := observability.StartRunSpan(ctx, opts.Source)
	defer span.End()

	res, err := r.analyze(ctx, doc)
	if err != nil {
		observability.RecordError(span, err)
	}
	return res, err
}

func (r *runner) analyze(ctx context.Context, doc *index.Document) (*Result, error) {
	res := &Result{Document: doc, Metrics: r.m}
	r.m.Source.FormatVersion = doc.FormatVersion
	r.m.Source.ItemCount = doc.Len()
	r.m.Source.PathCount = len(doc.Paths)
	r.m.Source.ExternalCount = len(doc.ExternalCrates)
	if root := doc.RootItem(); root != nil {
		r.m.Source.Crate = root.Name
	}

	fail := func(err error) (*Result, error) {
		r.m.Finish(res.Warnings, []string{err.Error()})
		return nil, err
	}

	for _, p := range doc.Problems {
		res.Warnings = append(res.Warnings, p.Error())
		r.logger.Warn("malformed item", "source", r.opts.Source, "id", p.ID, "error", p.Err)
	}

	err := r.stage(ctx, StageResolve, func(ctx context.Context) (int, error) {
		table, err := resolve.Resolve(doc)
		if err != nil {
			return 0, err
		}
		res.Table = table
		for _, w := range table.Warnings() {
			res.Warnings = append(res.Warnings, w.Error())
			res.Cycles = append(res.Cycles, w.Error())
			r.logger.Warn("reference cycle", "source", r.opts.Source, "chain", w.Chain)
		}
		observability.RecordWarnings(trace.SpanFromContext(ctx), res.Warnings)
		return table.Len(), nil
	})
	if err != nil {
		return fail(err)
	}

	err = r.stage(ctx, StageClassify, func(ctx context.Context) (int, error) {
		records, err := classify.All(ctx, doc, res.Table, r.opts.Classify)
		if err != nil {
			return 0, err
		}
		res.Records = records
		return len(records), nil
	})
	if err != nil {
		return fail(err)
	}

	err = r.stage(ctx, StageAggregate, func(context.Context) (int, error) {
		agg, err := aggregate.Aggregate(res.Records, r.opts.Aggregate)
		if err != nil {
			return 0, err
		}
		res.Aggregate = agg
		for _, row := range agg.Rows {
			r.m.CountCategory(string(row.Category), row.Count)
		}
		if agg.Other > 0 {
			r.logger.Warn("unrecognized item kinds", "source", r.opts.Source, "count", agg.Other)
		}
		return len(agg.Rows), nil
	})
	if err != nil {
		return fail(err)
	}

	r.m.Finish(res.Warnings, nil)
	return res, nil
}

// stage runs fn inside a span, records its timing and wraps its error.
func (r *runner) stage(ctx context.Context, name Stage, fn func(context.Context) (int, error)) error {
	ctx, span := observability.StartStageSpan(ctx, string(name))
	defer span.End()

	start := time.Now()
	items, err := fn(ctx)
	d := time.Since(start)

	observability.RecordStageResult(span, items, d)
	r.m.AddStage(string(name), d, items, err != nil)
	if err != nil {
		observability.RecordError(span, err)
		r.logger.Debug("stage failed", "stage", name, "duration", d, "error", err)
		return &StageError{Stage: name, Err: err}
	}
	r.logger.Debug("stage complete", "stage", name, "items", items, "duration", d)
	return nil
}

// Render emits res in format, timing it as the report stage.
func Render(ctx context.Context, w io.Writer, format report.Format, res *Result, opts Options) error {
	r := newRunner(opts)
	if res.Metrics != nil && opts.Metrics == nil {
		r.m = res.Metrics
	}
	return r.stage(ctx, StageReport, func(context.Context) (int, error) {
		in := res.ReportInput()
		if err := report.Render(w, format, in); err != nil {
			return 0, err
		}
		return len(in.Rows), nil
	})
}
