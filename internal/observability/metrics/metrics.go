// Package metrics exposes the Prometheus counters/histograms the query
// and indexing paths increment, adapted from cmd/metrics-server's
// standalone promhttp exporter (teacher root go.mod) into an in-process
// registry this binary serves at GET /metrics alongside its own routes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	IndexingStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campaign_rag_indexing_stage_duration_seconds",
			Help:    "Duration of each indexing pipeline stage",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	IndexingJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_rag_indexing_jobs_total",
			Help: "Total indexing jobs processed, by outcome",
		},
		[]string{"outcome"},
	)

	QueryLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "campaign_rag_query_latency_seconds",
			Help:    "End-to-end latency of the query endpoint",
			Buckets: prometheus.DefBuckets,
		},
	)

	QueryConfidence = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campaign_rag_query_confidence",
			Help:    "Distribution of response confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"label"},
	)
)

func init() {
	prometheus.MustRegister(IndexingStageDuration, IndexingJobsTotal, QueryLatency, QueryConfidence)
}

// TimeStage records how long a named indexing stage took. Call with
// defer TimeStage("embed")().
func TimeStage(stage string) func() {
	start := time.Now()
	return func() {
		IndexingStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
