package pipeline

import (
	"context"
	"fmt"
	"time"

	"FinForge/internal/align"
	"FinForge/internal/features"
	"FinForge/internal/frame"
	"FinForge/internal/validate"
	applogger "FinForge/pkg/logger"
)

// Step statuses recorded per stage.
const (
	StepSuccess = "success"
	StepFailed  = "failed"
	StepSkipped = "skipped"
)

// StepRecord captures the outcome of one pipeline stage.
type StepRecord struct {
	Name    string
	Status  string
	Elapsed time.Duration
	Detail  string
	Err     error
}

// Sink persists a finished dataset. Persistence failures are reported but
// never fail the run; the enriched frame is still returned to the caller.
type Sink interface {
	Persist(ctx context.Context, f *frame.Frame, destination string) error
	Name() string
}

// Metrics receives per-stage timing observations.
type Metrics interface {
	ObserveStage(stage, status string, elapsed time.Duration)
}

// RunOptions configure a single pipeline run.
type RunOptions struct {
	// Align carries anchor, suffix and strict-row settings.
	Align align.Options
	// SkipAlignment bypasses the join for a single-asset run. The one
	// input series is standardized and suffixed as if it had been aligned
	// against itself.
	SkipAlignment bool
	// SkipValidation bypasses the quality gate entirely.
	SkipValidation bool
	// ValidationOverrides adjust individual rules for this run only.
	ValidationOverrides map[string]any
	// SkipStorage suppresses the persistence stage.
	SkipStorage bool
	// Destination is passed through to the sink (table or path name).
	Destination string
}

// Orchestrator runs the fixed stage sequence align, validate, transform
// tiers, store. Any stage failure before storage aborts the run; the step
// records always cover every stage that was attempted.
type Orchestrator struct {
	aligner      align.Aligner
	validator    *validate.Validator
	transformers []features.Transformer
	sink         Sink
	metrics      Metrics
	log          *applogger.Logger

	records []StepRecord
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithSink attaches a persistence backend.
func WithSink(s Sink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

// WithMetrics attaches a stage-timing recorder.
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New assembles an orchestrator. The validator may be nil when validation
// is structurally disabled rather than per-run skipped.
func New(aligner align.Aligner, validator *validate.Validator, transformers []features.Transformer, log *applogger.Logger, opts ...Option) (*Orchestrator, error) {
	if aligner == nil {
		return nil, fmt.Errorf("pipeline: aligner is required")
	}
	o := &Orchestrator{
		aligner:      aligner,
		validator:    validator,
		transformers: transformers,
		log:          log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Steps returns the records of the most recent run.
func (o *Orchestrator) Steps() []StepRecord {
	return o.records
}

// StepNames returns just the stage names of the most recent run.
func (o *Orchestrator) StepNames() []string {
	names := make([]string, len(o.records))
	for i, r := range o.records {
		names[i] = r.Name
	}
	return names
}

// Run executes the full sequence against raw per-symbol candle frames.
func (o *Orchestrator) Run(ctx context.Context, series map[string]*frame.Frame, opts RunOptions) (*frame.Frame, error) {
	o.records = o.records[:0]

	if opts.SkipAlignment {
		if len(series) != 1 {
			return nil, fmt.Errorf("pipeline: skip_alignment requires exactly one symbol, got %d", len(series))
		}
		var out *frame.Frame
		for symbol, raw := range series {
			f, err := singlePassthrough(symbol, raw, opts.Align)
			if err != nil {
				return nil, fmt.Errorf("pipeline: %w", err)
			}
			out = f
		}
		o.skip("align", "single-asset passthrough")
		return out, o.finish(ctx, out, opts)
	}

	var out *frame.Frame
	err := o.step(ctx, "align", func() (string, error) {
		aligned, err := o.aligner.Align(series, opts.Align)
		if err != nil {
			return "", err
		}
		out = aligned
		return fmt.Sprintf("rows=%d cols=%d", out.NumRows(), out.NumColumns()), nil
	})
	if err != nil {
		return nil, err
	}
	return out, o.finish(ctx, out, opts)
}

// RunSingle executes validation, transforms and storage against an already
// aligned frame, skipping the alignment stage.
func (o *Orchestrator) RunSingle(ctx context.Context, f *frame.Frame, opts RunOptions) (*frame.Frame, error) {
	o.records = o.records[:0]
	if f == nil {
		return nil, fmt.Errorf("pipeline: nil frame")
	}
	return f, o.finish(ctx, f, opts)
}

// singlePassthrough standardizes one raw series and suffixes its columns so
// the tiers see the same shape an aligned frame would have.
func singlePassthrough(symbol string, raw *frame.Frame, opts align.Options) (*frame.Frame, error) {
	if raw == nil || raw.NumRows() == 0 {
		return nil, fmt.Errorf("series %s: no rows", symbol)
	}
	raw.SortByTimestamp()
	raw.DedupKeepLast()

	suffix := opts.SuffixFor(symbol)
	out := frame.New(raw.Timestamps())
	for _, name := range raw.Columns() {
		col, _ := raw.Column(name)
		if err := out.AddColumn(name+suffix, col.Vals, col.Valid); err != nil {
			return nil, fmt.Errorf("series %s: %w", symbol, err)
		}
	}
	out.SetAttr("aligned_symbols", symbol)
	out.SetAttr("anchor_symbol", symbol)
	out.SetAttr("alignment_method", "skipped")
	out.SetAttr("symbol_count", "1")
	return out, nil
}

// finish runs every stage after alignment.
func (o *Orchestrator) finish(ctx context.Context, f *frame.Frame, opts RunOptions) error {
	if o.validator == nil || opts.SkipValidation {
		o.skip("validate", "validation disabled for this run")
	} else {
		err := o.step(ctx, "validate", func() (string, error) {
			if _, err := o.validator.Validate(f, opts.ValidationOverrides); err != nil {
				return "", err
			}
			s := o.validator.Summary()
			return fmt.Sprintf("rows=%d status=%s", s.RowCount, s.Status), nil
		})
		if err != nil {
			return err
		}
	}

	for _, tr := range o.transformers {
		tr := tr
		err := o.step(ctx, tr.Name(), func() (string, error) {
			before := f.NumColumns()
			if _, err := tr.Apply(f); err != nil {
				return "", err
			}
			return fmt.Sprintf("columns_added=%d", f.NumColumns()-before), nil
		})
		if err != nil {
			return err
		}
	}

	if o.sink == nil || opts.SkipStorage {
		o.skip("store", "storage disabled for this run")
		return nil
	}

	// Storage is the only non-fatal stage: the enriched frame is already
	// complete and the caller still gets it.
	err := o.step(ctx, "store", func() (string, error) {
		if err := o.sink.Persist(ctx, f, opts.Destination); err != nil {
			return "", err
		}
		return fmt.Sprintf("sink=%s destination=%s", o.sink.Name(), opts.Destination), nil
	})
	if err != nil && o.log != nil {
		o.log.Error("persistence failed, returning dataset anyway", applogger.Error(err))
	}
	return nil
}

// step times one stage, records its outcome and reports it to logs and
// metrics.
func (o *Orchestrator) step(ctx context.Context, name string, fn func() (string, error)) error {
	if err := ctx.Err(); err != nil {
		o.records = append(o.records, StepRecord{Name: name, Status: StepFailed, Err: err, Detail: "context cancelled"})
		return fmt.Errorf("pipeline: %s: %w", name, err)
	}

	start := time.Now()
	detail, err := fn()
	elapsed := time.Since(start)

	rec := StepRecord{Name: name, Elapsed: elapsed, Detail: detail, Err: err}
	if err != nil {
		rec.Status = StepFailed
		rec.Detail = err.Error()
	} else {
		rec.Status = StepSuccess
	}
	o.records = append(o.records, rec)

	if o.metrics != nil {
		o.metrics.ObserveStage(name, rec.Status, elapsed)
	}
	if o.log != nil {
		fields := []applogger.Field{
			applogger.String("step", name),
			applogger.String("status", rec.Status),
			applogger.Duration("elapsed_ms", elapsed),
		}
		if err != nil {
			o.log.Warn("pipeline step failed", append(fields, applogger.Error(err))...)
		} else {
			o.log.Info("pipeline step complete", append(fields, applogger.String("detail", detail))...)
		}
	}
	if err != nil {
		return fmt.Errorf("pipeline: %s: %w", name, err)
	}
	return nil
}

func (o *Orchestrator) skip(name, reason string) {
	o.records = append(o.records, StepRecord{Name: name, Status: StepSkipped, Detail: reason})
	if o.metrics != nil {
		o.metrics.ObserveStage(name, StepSkipped, 0)
	}
	if o.log != nil {
		o.log.Debug("pipeline step skipped",
			applogger.String("step", name),
			applogger.String("reason", reason),
		)
	}
}
