package repository

import (
	"context"
	"time"

	"FinForge/internal/domain/models"
	"FinForge/internal/frame"
)

// CandleSource reads historical candles for one symbol at a time.
type CandleSource interface {
	GetCandles(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Candle, error)
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
	Health(ctx context.Context) error
}

// DatasetStore persists a finished feature dataset to columnar storage and
// records it in the metadata registry.
type DatasetStore interface {
	Persist(ctx context.Context, f *frame.Frame, destination string) error
	Name() string
	Health(ctx context.Context) error
	Close() error
}

// ReportPublisher broadcasts run reports to downstream consumers.
type ReportPublisher interface {
	PublishReport(ctx context.Context, report *models.RunReport) error
	Close() error
}

// RunCache stores the latest run report per destination for cheap reads.
type RunCache interface {
	PutReport(ctx context.Context, destination string, report *models.RunReport) error
	GetReport(ctx context.Context, destination string) (*models.RunReport, error)
}

// Metrics records pipeline observability signals.
type Metrics interface {
	ObserveStage(stage, status string, elapsed time.Duration)
	RecordRun(status string)
	RecordDatasetRows(destination string, rows int)
	RecordError(kind string)
}
