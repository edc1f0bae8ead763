package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CallsTotal tracks gateway calls by method and result.
	CallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexsim_chain_calls_total",
			Help: "Total number of chain gateway calls",
		},
		[]string{"method", "status"},
	)

	// CallDurationSeconds tracks gateway call latency by method.
	CallDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dexsim_chain_call_duration_seconds",
			Help:    "Duration of chain gateway calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)
