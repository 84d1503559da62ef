package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the ingestion service.
// Metrics are organized by subsystem: units of work, source requests, papers,
// batch flushes, and retention. All counters and histograms are registered
// via promauto with the default Prometheus registry.
type Metrics struct {
	// UnitsStarted counts units of work started, labeled by mode
	// (date, annual, bulk).
	UnitsStarted *prometheus.CounterVec

	// UnitsCompleted counts units that finished successfully, labeled by mode.
	UnitsCompleted *prometheus.CounterVec

	// UnitsFailed counts units that ended in failure, labeled by mode.
	UnitsFailed *prometheus.CounterVec

	// UnitDuration observes unit duration in seconds, labeled by mode.
	UnitDuration *prometheus.HistogramVec

	// PagesFetched counts search result pages retrieved.
	PagesFetched prometheus.Counter

	// SourceRequestsFailed counts source requests that exhausted retries,
	// labeled by error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRateLimited counts 429 cooldowns taken against the source.
	SourceRateLimited prometheus.Counter

	// PapersFetched counts raw records received from the source.
	PapersFetched prometheus.Counter

	// PapersInserted counts papers written as new rows.
	PapersInserted prometheus.Counter

	// PapersUpdated counts papers refreshed in place.
	PapersUpdated prometheus.Counter

	// PapersSkipped counts records rejected before storage, labeled by reason.
	PapersSkipped *prometheus.CounterVec

	// BatchFlushes counts batched upsert flushes.
	BatchFlushes prometheus.Counter

	// BatchSize observes the number of papers per flush.
	BatchSize prometheus.Histogram

	// PapersTrimmed counts rows deleted by retention trimming.
	PapersTrimmed prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		UnitsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_started_total",
			Help:      "Total number of ingestion units started",
		}, []string{"mode"}),
		UnitsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_completed_total",
			Help:      "Total number of ingestion units completed successfully",
		}, []string{"mode"}),
		UnitsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_failed_total",
			Help:      "Total number of ingestion units that failed",
		}, []string{"mode"}),
		UnitDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "unit_duration_seconds",
			Help:      "Duration of ingestion units in seconds",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600, 14400},
		}, []string{"mode"}),
		PagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Total number of search result pages retrieved",
		}),
		SourceRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of source requests that exhausted retries",
		}, []string{"error_type"}),
		SourceRateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate-limit cooldowns taken",
		}),
		PapersFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_fetched_total",
			Help:      "Total number of raw paper records received",
		}),
		PapersInserted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_inserted_total",
			Help:      "Total number of papers inserted as new rows",
		}),
		PapersUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_updated_total",
			Help:      "Total number of papers refreshed in place",
		}),
		PapersSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_skipped_total",
			Help:      "Total number of records rejected before storage",
		}, []string{"reason"}),
		BatchFlushes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_flushes_total",
			Help:      "Total number of batched upsert flushes",
		}),
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size_papers",
			Help:      "Number of papers per batched flush",
			Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000},
		}),
		PapersTrimmed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_trimmed_total",
			Help:      "Total number of rows deleted by retention trimming",
		}),
	}
}

// RecordUnitStarted increments the started counter for a mode.
func (m *Metrics) RecordUnitStarted(mode string) {
	m.UnitsStarted.WithLabelValues(mode).Inc()
}

// RecordUnitCompleted records a successful unit and its duration.
func (m *Metrics) RecordUnitCompleted(mode string, durationSeconds float64) {
	m.UnitsCompleted.WithLabelValues(mode).Inc()
	m.UnitDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// RecordUnitFailed records a failed unit and its duration.
func (m *Metrics) RecordUnitFailed(mode string, durationSeconds float64) {
	m.UnitsFailed.WithLabelValues(mode).Inc()
	m.UnitDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// RecordPageFetched records one retrieved search page and its records.
func (m *Metrics) RecordPageFetched(recordCount int) {
	m.PagesFetched.Inc()
	m.PapersFetched.Add(float64(recordCount))
}

// RecordSourceRequestFailed records a source request that exhausted retries.
func (m *Metrics) RecordSourceRequestFailed(errorType string) {
	m.SourceRequestsFailed.WithLabelValues(errorType).Inc()
}

// RecordSourceRateLimited records a 429 cooldown.
func (m *Metrics) RecordSourceRateLimited() {
	m.SourceRateLimited.Inc()
}

// RecordPapersUpserted records the outcome of a batched flush.
func (m *Metrics) RecordPapersUpserted(inserted, updated int) {
	m.PapersInserted.Add(float64(inserted))
	m.PapersUpdated.Add(float64(updated))
	m.BatchFlushes.Inc()
	m.BatchSize.Observe(float64(inserted + updated))
}

// RecordPaperSkipped records a rejected record by reason.
func (m *Metrics) RecordPaperSkipped(reason string) {
	m.PapersSkipped.WithLabelValues(reason).Inc()
}

// RecordPapersTrimmed records rows deleted by retention trimming.
func (m *Metrics) RecordPapersTrimmed(count int64) {
	m.PapersTrimmed.Add(float64(count))
}
