package fork

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StartupDurationSeconds tracks how long the fork took to become healthy.
	StartupDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dexsim_fork_startup_duration_seconds",
			Help:    "Time from spawning anvil until it answers eth_blockNumber",
			Buckets: prometheus.DefBuckets,
		},
	)

	// BalanceSeedsTotal tracks ERC-20 balance seeding attempts by result.
	BalanceSeedsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexsim_fork_balance_seeds_total",
			Help: "Total number of ERC-20 balance seeding attempts",
		},
		[]string{"status"},
	)

	// SlotProbesTotal counts storage slots probed while locating a token's
	// balances mapping.
	SlotProbesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dexsim_fork_slot_probes_total",
			Help: "Total number of storage slots probed during balance seeding",
		},
	)
)
