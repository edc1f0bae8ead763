package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchesTotal tracks batch runs.
	BatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dexsim_engine_batches_total",
		Help: "Total number of batch runs",
	})

	// OperationsTotal tracks operations by kind and terminal state.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexsim_engine_operations_total",
			Help: "Total number of operations processed",
		},
		[]string{"kind", "state"},
	)

	// OperationDurationSeconds tracks per-operation processing latency.
	OperationDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dexsim_engine_operation_duration_seconds",
		Help:    "Duration of operation processing",
		Buckets: prometheus.DefBuckets,
	})

	// QuoteDivergenceBps tracks how far live quotes stray from descriptor
	// expectations.
	QuoteDivergenceBps = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dexsim_engine_quote_divergence_bps",
		Help:    "Divergence between declared and live quoted output in basis points",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
)
