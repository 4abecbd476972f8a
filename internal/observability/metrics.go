package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion and validation pipeline.
type Metrics struct {
	FilesIngested     prometheus.Counter
	IngestErrors      prometheus.Counter
	PredictionsStored prometheus.Counter

	// Validations by source: measured (telemetry) or stale (reconciler).
	ValidationsStored *prometheus.CounterVec
	ValidationErrors  prometheus.Counter

	SchedulerRunning prometheus.Gauge
	JobsPending      prometheus.Gauge
	JobErrors        prometheus.Counter
	TickDuration     prometheus.Histogram

	TelemetryRequestDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.FilesIngested,
		m.IngestErrors,
		m.PredictionsStored,
		m.ValidationsStored,
		m.ValidationErrors,
		m.SchedulerRunning,
		m.JobsPending,
		m.JobErrors,
		m.TickDuration,
		m.TelemetryRequestDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FilesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "modtrack",
			Name:      "files_ingested_total",
			Help:      "Total result files fully ingested and marked in the ledger.",
		}),
		IngestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "modtrack",
			Name:      "ingest_errors_total",
			Help:      "Total file-scoped ingestion failures (file left unmarked).",
		}),
		PredictionsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "modtrack",
			Name:      "predictions_stored_total",
			Help:      "Total prediction rows persisted.",
		}),
		ValidationsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modtrack",
			Name:      "validations_stored_total",
			Help:      "Total validation rows persisted, by source.",
		}, []string{"source"}),
		ValidationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "modtrack",
			Name:      "validation_errors_total",
			Help:      "Total validation attempts that failed and were deferred to the stale sweep.",
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "modtrack",
			Name:      "scheduler_running",
			Help:      "1 when the scheduler loop is active, 0 when shut down.",
		}),
		JobsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "modtrack",
			Name:      "scheduler_jobs_pending",
			Help:      "Number of jobs currently in the pending set.",
		}),
		JobErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "modtrack",
			Name:      "scheduler_job_errors_total",
			Help:      "Total scheduled job executions that returned an error or panicked.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "modtrack",
			Name:      "scheduler_tick_duration_seconds",
			Help:      "Duration of one scheduler tick including all due job bodies.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		TelemetryRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "modtrack",
			Name:      "telemetry_request_duration_seconds",
			Help:      "Water-level API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}
