// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rushroster_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rushroster_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Authentication
	AuthFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rushroster_auth_failures_total",
			Help: "Rejected authentication attempts",
		},
		[]string{"kind"}, // "device", "user"
	)

	// Ingestion
	IngestBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rushroster_ingest_batch_size",
			Help:    "Number of events per accepted ingest batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	IngestEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rushroster_ingest_events_total",
			Help: "Events processed by the ingest pipeline",
		},
		[]string{"result"}, // "created", "duplicate"
	)

	IngestRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rushroster_ingest_rejected_batches_total",
			Help: "Batches rejected by validation before any write",
		},
	)

	// Photos
	PhotoUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rushroster_photo_uploads_total",
			Help: "Photo upload coordination steps",
		},
		[]string{"stage"}, // "requested", "confirmed", "stored"
	)

	// Storage
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rushroster_storage_operations_total",
			Help: "Storage backend operations",
		},
		[]string{"backend", "operation", "result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rushroster_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rushroster_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Background jobs
	StatsRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rushroster_stats_refresh_total",
			Help: "Global statistics refresh runs",
		},
		[]string{"result"},
	)
)

// BreakerStateValue maps a breaker state to the gauge value.
func BreakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Result returns the "result" label for an operation outcome.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
