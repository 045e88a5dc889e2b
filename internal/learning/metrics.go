package learning

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Attempt store and recommender Prometheus metrics.
var (
	attemptsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fixbank",
			Name:      "attempts_recorded_total",
			Help:      "Fix attempts recorded by status (ok, error, dropped)",
		},
		[]string{"status"},
	)

	similarScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fixbank",
			Name:      "similarity_scan_duration_seconds",
			Help:      "Duration of linear k-NN scans over the attempt log",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	recommendations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fixbank",
			Name:      "recommendations_total",
			Help:      "Recommendation outcomes (recommended, insufficient_evidence, low_confidence)",
		},
		[]string{"outcome"},
	)
)

var registerOnce sync.Once

// RegisterMetrics registers learning metrics with the default Prometheus
// registry. Safe to call from multiple paths; safe to skip in tests.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(attemptsRecorded)
		prometheus.MustRegister(similarScanDuration)
		prometheus.MustRegister(recommendations)
	})
}
