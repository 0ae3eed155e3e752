package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cellRuns counts finished cell runs.
	// Labels: kind (output kind), status (success, error, discarded)
	cellRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skillgrid",
		Subsystem: "cell",
		Name:      "runs_total",
		Help:      "Total cell runs by output kind and final status",
	}, []string{"kind", "status"})

	// cellRunSeconds measures wall time from loading to commit.
	cellRunSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "skillgrid",
		Subsystem: "cell",
		Name:      "run_seconds",
		Help:      "Cell run latency in seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"kind"})
)

func recordRun(kind, status string, seconds float64) {
	if kind == "" {
		kind = "unknown"
	}
	cellRuns.WithLabelValues(kind, status).Inc()
	cellRunSeconds.WithLabelValues(kind).Observe(seconds)
}
