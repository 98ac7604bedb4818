package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	stageDuration *prometheus.HistogramVec
	runsTotal     *prometheus.CounterVec
	datasetRows   *prometheus.GaugeVec
	errorsTotal   *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		stageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finforge_pipeline_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage", "status"},
		),
		runsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finforge_pipeline_runs_total",
				Help: "Total pipeline runs by final status",
			},
			[]string{"status"},
		),
		datasetRows: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finforge_dataset_rows",
				Help: "Row count of the last persisted dataset",
			},
			[]string{"destination"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finforge_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// ObserveStage records the duration and outcome of one pipeline stage.
func (r *Recorder) ObserveStage(stage, status string, elapsed time.Duration) {
	r.stageDuration.WithLabelValues(stage, status).Observe(elapsed.Seconds())
}

// RecordRun counts a finished pipeline run.
func (r *Recorder) RecordRun(status string) {
	r.runsTotal.WithLabelValues(status).Inc()
}

// RecordDatasetRows records the size of a persisted dataset.
func (r *Recorder) RecordDatasetRows(destination string, rows int) {
	r.datasetRows.WithLabelValues(destination).Set(float64(rows))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
