package ranking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "joki_metrics_runs_total",
			Help: "Aggregator runs by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)
	usersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "joki_metrics_users_total",
			Help: "Per-user score recomputations by outcome",
		},
		[]string{"outcome"},
	)
	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "joki_metrics_run_duration_seconds",
			Help:    "Aggregator run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
