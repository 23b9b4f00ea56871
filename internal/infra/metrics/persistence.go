package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		documentSaves,
		saveDurationMs,
	)
}

var (
	documentSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persistence_saves_total",
			Help: "Document saves by document and outcome.",
		},
		[]string{"document", "success"},
	)

	saveDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "persistence_save_duration_ms",
			Help:    "Document save duration in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"document"},
	)
)

func DocumentSaved(document string, durationMs int, success bool) {
	documentSaves.WithLabelValues(document, strconv.FormatBool(success)).Inc()
	if success {
		saveDurationMs.WithLabelValues(document).Observe(float64(durationMs))
	}
}
