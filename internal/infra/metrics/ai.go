package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiCallsLatencyMs,
		analysisRuns,
	)
}

var (
	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "AI call latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 30000},
		},
		[]string{"provider", "model", "success"},
	)

	analysisRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_runs_total",
			Help: "Background analysis cycles by outcome.",
		},
		[]string{"success"},
	)
)

func ObserveAICall(provider, model string, latencyMs int, success bool) {
	aiCallsLatencyMs.WithLabelValues(provider, model, strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func AnalysisRun(success bool) {
	analysisRuns.WithLabelValues(strconv.FormatBool(success)).Inc()
}
