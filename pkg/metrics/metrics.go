// Package metrics defines the Prometheus collectors for the analysis engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles all engine collectors. One instance per process,
// registered against a single registry so tests can use isolated registries.
type Metrics struct {
	ToolCallDuration *prometheus.HistogramVec
	ToolCallFailures *prometheus.CounterVec
	ToolCacheHits    prometheus.Counter
	ToolCacheMisses  prometheus.Counter
	ParallelSpeedup  prometheus.Gauge

	SessionsInFlight prometheus.Gauge
	SessionDuration  prometheus.Histogram
}

// New registers all collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ToolCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradecouncil_tool_call_duration_seconds",
			Help:    "Duration of individual tool calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		ToolCallFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tradecouncil_tool_call_failures_total",
			Help: "Tool calls that returned an error after retries.",
		}, []string{"tool", "kind"}),
		ToolCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradecouncil_tool_cache_hits_total",
			Help: "Tool invocations served from the result cache.",
		}),
		ToolCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradecouncil_tool_cache_misses_total",
			Help: "Tool invocations that missed the result cache.",
		}),
		ParallelSpeedup: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tradecouncil_tool_parallel_speedup",
			Help: "Observed wall-clock speedup of the last parallel tool batch (sum of call durations / batch duration).",
		}),
		SessionsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tradecouncil_sessions_in_flight",
			Help: "Analysis sessions currently executing.",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradecouncil_session_duration_seconds",
			Help:    "End-to-end duration of completed analysis sessions.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		}),
	}
}

// NewNop returns metrics registered on a throwaway registry. Used by tests
// and by callers that don't export metrics.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
