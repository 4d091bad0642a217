package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fishcast_upstream_calls_total",
			Help: "Total historical-archive API calls",
		},
		[]string{"status"},
	)

	UpstreamLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fishcast_upstream_latency_seconds",
			Help:    "Historical-archive API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fishcast_cache_lookups_total",
			Help: "Coordinate cache lookups by outcome (hit, miss, stale)",
		},
		[]string{"outcome"},
	)

	CoalescedFetchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fishcast_coalesced_fetches_total",
			Help: "Fetches that piggybacked on an in-flight fetch for the same cache key",
		},
	)

	ModelFitFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fishcast_model_fit_failures_total",
			Help: "Per-variable model fit failures that triggered fallback values",
		},
		[]string{"variable"},
	)

	ForecastRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fishcast_forecast_runs_total",
			Help: "Completed pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	ForecastRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fishcast_forecast_run_duration_seconds",
			Help:    "End-to-end pipeline run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	SummarizerCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fishcast_summarizer_calls_total",
			Help: "Optional summarizer calls by status",
		},
		[]string{"status"},
	)
)
