package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// batchRuns counts column runs.
	// Labels: mode, outcome (completed, cancelled, rejected)
	batchRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skillgrid",
		Subsystem: "batch",
		Name:      "runs_total",
		Help:      "Total column runs by mode and outcome",
	}, []string{"mode", "outcome"})

	// batchRows counts rows processed by column runs.
	// Labels: mode, status (success, error, discarded)
	batchRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skillgrid",
		Subsystem: "batch",
		Name:      "rows_total",
		Help:      "Total rows processed by column runs",
	}, []string{"mode", "status"})
)
