// Package metrics exposes Prometheus instruments for manifest and segment retrieval.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch stages
const (
	StageManifest      = "manifest"
	StageMediaPlaylist = "media_playlist"
	StageInit          = "init"
	StageSegment       = "segment"
)

// Fetch outcomes
const (
	OutcomeOK        = "ok"
	OutcomeHTTPError = "http_error"
	OutcomeTransport = "transport_error"
	OutcomeCanceled  = "canceled"
)

var (
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hlsfetch_fetches_total",
			Help: "Total number of HTTP fetches by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hlsfetch_fetch_duration_seconds",
			Help:    "Duration of a single fetch attempt in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hlsfetch_retries_total",
			Help: "Total number of fetch retries by stage",
		},
		[]string{"stage"},
	)

	DeliveredBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hlsfetch_delivered_bytes_total",
			Help: "Bytes handed to sinks by segment kind",
		},
		[]string{"kind"},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hlsfetch_deliveries_total",
			Help: "Buffers handed to sinks by segment kind",
		},
		[]string{"kind"},
	)

	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hlsfetch_sessions_total",
			Help: "Finished sessions by result",
		},
		[]string{"result"},
	)

	SessionsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hlsfetch_sessions_in_progress",
			Help: "Number of sessions currently running",
		},
	)
)

// RecordFetch records one fetch attempt.
func RecordFetch(stage, outcome string, seconds float64) {
	FetchesTotal.WithLabelValues(stage, outcome).Inc()
	FetchDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordRetry records a retry scheduled after a failed attempt.
func RecordRetry(stage string) {
	RetriesTotal.WithLabelValues(stage).Inc()
}

// RecordDelivery records a buffer handed to a sink.
func RecordDelivery(kind string, size int) {
	DeliveriesTotal.WithLabelValues(kind).Inc()
	DeliveredBytesTotal.WithLabelValues(kind).Add(float64(size))
}

// SessionStarted increments the in-progress gauge.
func SessionStarted() {
	SessionsInProgress.Inc()
}

// SessionFinished decrements the in-progress gauge and counts the result.
func SessionFinished(result string) {
	SessionsInProgress.Dec()
	SessionsTotal.WithLabelValues(result).Inc()
}
