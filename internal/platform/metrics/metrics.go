package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the consent and ingestion
// pipelines.
type Metrics struct {
	ConsentsGranted prometheus.Counter
	ConsentsRevoked prometheus.Counter
	ErasedRows      prometheus.Counter

	MessagesIngested  prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	ConsentDenied     prometheus.Counter
	IngestLatency     prometheus.Histogram

	TrackedSubjects prometheus.Gauge
}

// New registers and returns the pipeline metrics collectors.
func New() *Metrics {
	return &Metrics{
		ConsentsGranted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatvault_consents_granted_total",
			Help: "Total number of consent grants recorded",
		}),
		ConsentsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatvault_consents_revoked_total",
			Help: "Total number of consent revocations recorded",
		}),
		ErasedRows: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatvault_erased_rows_total",
			Help: "Total number of captured rows deleted by cascading erasure",
		}),
		MessagesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatvault_messages_ingested_total",
			Help: "Total number of messages stored by the ingestion pipeline",
		}),
		DuplicatesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatvault_duplicates_skipped_total",
			Help: "Total number of messages skipped because their row hash already existed",
		}),
		ConsentDenied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatvault_consent_denied_total",
			Help: "Total number of messages dropped because the author has no active consent",
		}),
		IngestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatvault_ingest_latency_seconds",
			Help:    "Latency of single-message ingestion in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		TrackedSubjects: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chatvault_tracked_subjects",
			Help: "Current number of subjects with active consent",
		}),
	}
}
