package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"FinForge/internal/align"
	"FinForge/internal/domain/models"
	domrepo "FinForge/internal/domain/repository"
	"FinForge/internal/frame"
	"FinForge/internal/pipeline"
	"FinForge/internal/registry"
	applogger "FinForge/pkg/logger"
	"FinForge/pkg/util"
)

// Refiner turns a run request into a feature-enriched dataset: it loads raw
// candles per symbol, drives the pipeline, then fans the run report out to
// Kafka and the run cache. Report fan-out is best effort; a dataset that was
// built and persisted is never failed retroactively by observability plumbing.
type Refiner struct {
	source       domrepo.CandleSource
	orchestrator *pipeline.Orchestrator
	reg          *registry.Registry
	publisher    domrepo.ReportPublisher
	runCache     domrepo.RunCache
	metrics      domrepo.Metrics
	log          *applogger.Logger

	timeframe      domrepo.Timeframe
	defaultDest    string
	defaultAnchor  string
	defaultStrict  bool
	maxFetchWindow time.Duration
}

// RefinerConfig carries the per-deployment defaults.
type RefinerConfig struct {
	Timeframe      domrepo.Timeframe
	Destination    string
	Anchor         string
	Strict         bool
	MaxFetchWindow time.Duration
}

func NewRefiner(
	source domrepo.CandleSource,
	orchestrator *pipeline.Orchestrator,
	reg *registry.Registry,
	publisher domrepo.ReportPublisher,
	runCache domrepo.RunCache,
	metrics domrepo.Metrics,
	log *applogger.Logger,
	cfg RefinerConfig,
) *Refiner {
	if cfg.Timeframe == "" {
		cfg.Timeframe = domrepo.DefaultTimeframe()
	}
	if cfg.Destination == "" {
		cfg.Destination = "features"
	}
	if cfg.MaxFetchWindow <= 0 {
		cfg.MaxFetchWindow = 30 * 24 * time.Hour
	}
	return &Refiner{
		source:         source,
		orchestrator:   orchestrator,
		reg:            reg,
		publisher:      publisher,
		runCache:       runCache,
		metrics:        metrics,
		log:            log,
		timeframe:      cfg.Timeframe,
		defaultDest:    cfg.Destination,
		defaultAnchor:  cfg.Anchor,
		defaultStrict:  cfg.Strict,
		maxFetchWindow: cfg.MaxFetchWindow,
	}
}

// Run executes one full pipeline run.
func (r *Refiner) Run(ctx context.Context, req *models.RunRequest) (*models.RunReport, error) {
	start := time.Now()

	from, ok := util.ParseTime(req.From)
	if !ok {
		return nil, fmt.Errorf("refine: invalid 'from' time %q", req.From)
	}
	to := util.ParseTimeDefault(req.To, time.Now().UTC())
	if !to.After(from) {
		return nil, fmt.Errorf("refine: 'to' must be after 'from'")
	}
	if to.Sub(from) > r.maxFetchWindow {
		return nil, fmt.Errorf("refine: requested window exceeds %s", r.maxFetchWindow)
	}
	from, to = util.AlignFromTo(from, to, string(r.timeframe))

	series, err := r.fetchSeries(ctx, req.Symbols, from, to)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordError("fetch")
		}
		return nil, err
	}

	dest := req.Destination
	if dest == "" {
		dest = r.defaultDest
	}
	anchor := req.Anchor
	if anchor == "" {
		anchor = r.defaultAnchor
	}

	out, runErr := r.orchestrator.Run(ctx, series, pipeline.RunOptions{
		Align: align.Options{
			Anchor: anchor,
			Suffix: req.Suffix,
			Strict: req.Strict || r.defaultStrict,
		},
		SkipAlignment:       req.SkipAlignment,
		SkipValidation:      req.SkipValidation,
		ValidationOverrides: req.ValidationRules,
		SkipStorage:         req.SkipStorage,
		Destination:         dest,
	})

	report := r.buildReport(dest, out, time.Since(start), runErr)
	if r.metrics != nil {
		r.metrics.RecordRun(report.Status)
		if out != nil {
			r.metrics.RecordDatasetRows(dest, out.NumRows())
		}
	}
	r.fanOut(ctx, dest, report)

	if runErr != nil {
		return report, fmt.Errorf("refine: %w", runErr)
	}
	return report, nil
}

// LatestReport returns the cached report for a destination.
func (r *Refiner) LatestReport(ctx context.Context, destination string) (*models.RunReport, error) {
	if r.runCache == nil {
		return nil, fmt.Errorf("refine: run cache not configured")
	}
	if destination == "" {
		destination = r.defaultDest
	}
	return r.runCache.GetReport(ctx, destination)
}

// Steps exposes the step records of the most recent run.
func (r *Refiner) Steps() []pipeline.StepRecord {
	return r.orchestrator.Steps()
}

// Datasets lists every dataset committed to the registry.
func (r *Refiner) Datasets() ([]string, error) {
	return r.reg.List()
}

// Dataset loads one registry entry.
func (r *Refiner) Dataset(name string) (registry.Entry, error) {
	return r.reg.Load(name)
}

// fetchSeries loads candles for every requested symbol. Any empty symbol
// result is fatal here; partial-universe decisions belong to the aligner,
// which only sees series that actually have data.
func (r *Refiner) fetchSeries(ctx context.Context, symbols []string, from, to time.Time) (map[string]*frame.Frame, error) {
	series := make(map[string]*frame.Frame, len(symbols))
	for _, symbol := range symbols {
		candles, err := r.source.GetCandles(ctx, symbol, from, to, r.timeframe)
		if err != nil {
			return nil, fmt.Errorf("refine: fetch %s: %w", symbol, err)
		}
		if len(candles) == 0 {
			return nil, fmt.Errorf("refine: no candles for %s in [%s, %s]", symbol, from.Format(time.RFC3339), to.Format(time.RFC3339))
		}
		f, err := models.CandlesFrame(candles)
		if err != nil {
			return nil, fmt.Errorf("refine: frame %s: %w", symbol, err)
		}
		series[symbol] = f
	}
	return series, nil
}

func (r *Refiner) buildReport(dest string, out *frame.Frame, elapsed time.Duration, runErr error) *models.RunReport {
	report := &models.RunReport{
		Destination: dest,
		Status:      "completed",
		ElapsedMS:   elapsed.Milliseconds(),
	}
	if runErr != nil {
		report.Status = "failed"
	}
	if out != nil {
		report.RowCount = out.NumRows()
		report.ColumnCount = out.NumColumns() + 1 // timestamp axis included
		if v, ok := out.Attr("aligned_symbols"); ok {
			report.Symbols = v
		}
		if v, ok := out.Attr("anchor_symbol"); ok {
			report.Anchor = v
		}
		report.FeatureHash = r.reg.Fingerprint(out.Attrs())
	}
	for _, rec := range r.orchestrator.Steps() {
		report.Steps = append(report.Steps, models.StepSummary{
			Name:      rec.Name,
			Status:    rec.Status,
			ElapsedMS: rec.Elapsed.Milliseconds(),
			Detail:    rec.Detail,
		})
	}
	return report
}

// fanOut pushes the report to Kafka and the run cache, logging failures
// instead of propagating them.
func (r *Refiner) fanOut(ctx context.Context, dest string, report *models.RunReport) {
	if r.publisher != nil {
		if err := r.publisher.PublishReport(ctx, report); err != nil {
			if r.log != nil {
				r.log.Warn("report publish failed", applogger.Error(err))
			}
			if r.metrics != nil {
				r.metrics.RecordError("publish")
			}
		}
	}
	if r.runCache != nil {
		if err := r.runCache.PutReport(ctx, dest, report); err != nil {
			if r.log != nil {
				r.log.Warn("report cache failed", applogger.Error(err))
			}
			if r.metrics != nil {
				r.metrics.RecordError("cache")
			}
		}
	}
	if r.log != nil {
		r.log.Info("pipeline run finished",
			applogger.String("destination", dest),
			applogger.String("status", report.Status),
			applogger.Int("rows", report.RowCount),
			applogger.String("symbols", strings.ReplaceAll(report.Symbols, ",", " ")),
			applogger.Int64("elapsed_ms", report.ElapsedMS),
		)
	}
}
