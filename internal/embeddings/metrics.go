package embeddings

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Embedding Prometheus metrics.
var (
	embedRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fixbank",
			Name:      "embedding_requests_total",
			Help:      "Total embedding requests by provider and status (ok, degraded)",
		},
		[]string{"provider", "status"},
	)

	embedDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fixbank",
			Name:      "embedding_duration_seconds",
			Help:      "Embedding generation duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"provider"},
	)
)

var registerOnce sync.Once

// RegisterMetrics registers embedding metrics with the default Prometheus
// registry. Safe to call from multiple paths; safe to skip in tests.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(embedRequests)
		prometheus.MustRegister(embedDuration)
	})
}
