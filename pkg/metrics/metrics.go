// Package metrics holds the Prometheus collectors for scan runs. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pixishelf"

// Run modes.
const (
	ModeIncremental = "incremental"
	ModeForce       = "force"
	ModeRescan      = "rescan"
)

// Run outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

type Metrics struct {
	RunsTotal            *prometheus.CounterVec
	RunDurationSeconds   *prometheus.HistogramVec
	RunInProgress        prometheus.Gauge
	BatchesTotal         *prometheus.CounterVec
	BatchDurationSeconds prometheus.Histogram
	RowsCreatedTotal     *prometheus.CounterVec
	SkippedTotal         *prometheus.CounterVec
}

// New registers the scan collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scan_runs_total",
				Help:      "Total number of scan runs by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		RunDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_run_duration_seconds",
				Help:      "Duration of scan runs in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"mode"},
		),
		RunInProgress: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scan_in_progress",
				Help:      "1 while a scan or rescan is running",
			},
		),
		BatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scan_batches_total",
				Help:      "Total number of ingestion batches by outcome",
			},
			[]string{"outcome"},
		),
		BatchDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_batch_duration_seconds",
				Help:      "Duration of ingestion batch transactions in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		RowsCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scan_rows_created_total",
				Help:      "Total number of rows created by scans",
			},
			[]string{"kind"},
		),
		SkippedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scan_candidates_skipped_total",
				Help:      "Total number of discovered sidecars that were not ingested, by reason",
			},
			[]string{"reason"},
		),
	}
}

func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.RunInProgress.Set(1)
}

func (m *Metrics) RunFinished(mode, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunInProgress.Set(0)
	m.RunsTotal.WithLabelValues(mode, outcome).Inc()
	m.RunDurationSeconds.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) BatchFinished(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "committed"
	if !ok {
		outcome = OutcomeFailed
	}
	m.BatchesTotal.WithLabelValues(outcome).Inc()
	m.BatchDurationSeconds.Observe(d.Seconds())
}

// RowsCreated adds n to the counter for kind (artists, artworks, images, tags).
func (m *Metrics) RowsCreated(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsCreatedTotal.WithLabelValues(kind).Add(float64(n))
}

// Skipped adds n to the counter for reason.
func (m *Metrics) Skipped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SkippedTotal.WithLabelValues(reason).Add(float64(n))
}
