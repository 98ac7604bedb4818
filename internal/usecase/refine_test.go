package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"FinForge/internal/align"
	"FinForge/internal/domain/models"
	domrepo "FinForge/internal/domain/repository"
	"FinForge/internal/features"
	"FinForge/internal/pipeline"
	"FinForge/internal/registry"
	"FinForge/internal/validate"
)

type fakeSource struct {
	candles map[string][]models.Candle
	err     error
}

func (s *fakeSource) GetCandles(_ context.Context, symbol string, _, _ time.Time, _ domrepo.Timeframe) ([]models.Candle, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.candles[symbol], nil
}

func (s *fakeSource) GetLatestNCandles(_ context.Context, symbol string, n int, _ domrepo.Timeframe) ([]models.Candle, error) {
	return s.candles[symbol], nil
}

func (s *fakeSource) Health(context.Context) error { return nil }

type fakePublisher struct {
	reports []*models.RunReport
	err     error
}

func (p *fakePublisher) PublishReport(_ context.Context, r *models.RunReport) error {
	if p.err != nil {
		return p.err
	}
	p.reports = append(p.reports, r)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeRunCache struct {
	reports map[string]*models.RunReport
}

func (c *fakeRunCache) PutReport(_ context.Context, dest string, r *models.RunReport) error {
	if c.reports == nil {
		c.reports = make(map[string]*models.RunReport)
	}
	c.reports[dest] = r
	return nil
}

func (c *fakeRunCache) GetReport(_ context.Context, dest string) (*models.RunReport, error) {
	r, ok := c.reports[dest]
	if !ok {
		return nil, fmt.Errorf("not cached")
	}
	return r, nil
}

type fakeMetrics struct {
	runs   []string
	errors []string
}

func (m *fakeMetrics) ObserveStage(string, string, time.Duration) {}
func (m *fakeMetrics) RecordRun(status string)                    { m.runs = append(m.runs, status) }
func (m *fakeMetrics) RecordDatasetRows(string, int)              {}
func (m *fakeMetrics) RecordError(kind string)                    { m.errors = append(m.errors, kind) }

func testCandles(n int, base float64) []models.Candle {
	out := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		price := base * (1 + 0.01*float64(i))
		out[i] = models.Candle{
			Timestamp: int64(i) * 60_000,
			Open:      price,
			High:      price * 1.001,
			Low:       price * 0.999,
			Close:     price,
			Volume:    10,
		}
	}
	return out
}

func newTestRefiner(t *testing.T, source domrepo.CandleSource, pub domrepo.ReportPublisher, cache domrepo.RunCache, m domrepo.Metrics) *Refiner {
	t.Helper()
	aligner, err := align.Default(nil)
	if err != nil {
		t.Fatalf("aligner: %v", err)
	}
	validator, err := validate.NewValidator(validate.LooseRules(), nil)
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	orch, err := pipeline.New(aligner, validator, []features.Transformer{
		features.NewReturns(nil),
		features.NewMicrostructure([]string{"3m"}, nil),
		features.NewStatArb("3m", "3m", "", nil),
	}, nil)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	reg, err := registry.New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return NewRefiner(source, orch, reg, pub, cache, m, nil, RefinerConfig{Destination: "features"})
}

func TestRefinerRunHappyPath(t *testing.T) {
	source := &fakeSource{candles: map[string][]models.Candle{
		"BTC":  testCandles(12, 100),
		"DOGE": testCandles(12, 0.5),
	}}
	pub := &fakePublisher{}
	cache := &fakeRunCache{}
	m := &fakeMetrics{}
	r := newTestRefiner(t, source, pub, cache, m)

	report, err := r.Run(context.Background(), &models.RunRequest{
		Symbols: []string{"BTC", "DOGE"},
		From:    "2026-08-01T00:00:00Z",
		To:      "2026-08-02T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Status != "completed" || report.RowCount != 12 {
		t.Fatalf("report: %+v", report)
	}
	if report.Anchor != "BTC" {
		t.Fatalf("anchor: %q", report.Anchor)
	}
	if report.FeatureHash == "" {
		t.Fatalf("feature hash must be set")
	}
	if len(pub.reports) != 1 {
		t.Fatalf("report should be published once, got %d", len(pub.reports))
	}
	cached, err := r.LatestReport(context.Background(), "features")
	if err != nil || cached.RowCount != 12 {
		t.Fatalf("cached report: %+v %v", cached, err)
	}
	if len(m.runs) != 1 || m.runs[0] != "completed" {
		t.Fatalf("run metric: %v", m.runs)
	}
}

func TestRefinerRejectsBadTimeRange(t *testing.T) {
	r := newTestRefiner(t, &fakeSource{}, nil, nil, nil)
	cases := []models.RunRequest{
		{Symbols: []string{"BTC", "DOGE"}, From: "not-a-time"},
		{Symbols: []string{"BTC", "DOGE"}, From: "2026-08-02T00:00:00Z", To: "2026-08-01T00:00:00Z"},
	}
	for i, req := range cases {
		req := req
		if _, err := r.Run(context.Background(), &req); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestRefinerFailsOnEmptySymbol(t *testing.T) {
	source := &fakeSource{candles: map[string][]models.Candle{
		"BTC": testCandles(12, 100),
		// DOGE missing entirely
	}}
	m := &fakeMetrics{}
	r := newTestRefiner(t, source, nil, nil, m)
	_, err := r.Run(context.Background(), &models.RunRequest{
		Symbols: []string{"BTC", "DOGE"},
		From:    "2026-08-01T00:00:00Z",
	})
	if err == nil {
		t.Fatalf("expected error for symbol without candles")
	}
	if len(m.errors) == 0 || m.errors[0] != "fetch" {
		t.Fatalf("fetch error metric missing: %v", m.errors)
	}
}

func TestRefinerPublishFailureIsNonFatal(t *testing.T) {
	source := &fakeSource{candles: map[string][]models.Candle{
		"BTC":  testCandles(12, 100),
		"DOGE": testCandles(12, 0.5),
	}}
	pub := &fakePublisher{err: fmt.Errorf("broker down")}
	m := &fakeMetrics{}
	r := newTestRefiner(t, source, pub, nil, m)
	report, err := r.Run(context.Background(), &models.RunRequest{
		Symbols: []string{"BTC", "DOGE"},
		From:    "2026-08-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("publish failure must not fail the run: %v", err)
	}
	if report.Status != "completed" {
		t.Fatalf("report status: %s", report.Status)
	}
	if len(m.errors) == 0 || m.errors[0] != "publish" {
		t.Fatalf("publish error metric missing: %v", m.errors)
	}
}

func TestRefinerFailedRunStillReports(t *testing.T) {
	// Three candles per symbol: the loose gate still needs 10 rows.
	source := &fakeSource{candles: map[string][]models.Candle{
		"BTC":  testCandles(3, 100),
		"DOGE": testCandles(3, 0.5),
	}}
	pub := &fakePublisher{}
	m := &fakeMetrics{}
	r := newTestRefiner(t, source, pub, nil, m)
	report, err := r.Run(context.Background(), &models.RunRequest{
		Symbols: []string{"BTC", "DOGE"},
		From:    "2026-08-01T00:00:00Z",
	})
	if err == nil {
		t.Fatalf("expected validation failure")
	}
	if report == nil || report.Status != "failed" {
		t.Fatalf("failed run must still produce a report: %+v", report)
	}
	if len(report.Steps) == 0 {
		t.Fatalf("failed report must carry step records")
	}
	if len(pub.reports) != 1 {
		t.Fatalf("failed report should still be published")
	}
}
