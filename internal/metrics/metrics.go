// Package metrics holds the oracle's prometheus collectors, registered on
// the default registry and exposed at /metrics by the status server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts scheduler cycles by result (ok, error).
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settleoracle_cycles_total",
			Help: "Total number of scheduler cycles",
		},
		[]string{"result"},
	)

	// EligibleMarkets is the number of markets found ready in the last cycle.
	EligibleMarkets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "settleoracle_eligible_markets",
			Help: "Markets eligible for settlement in the last cycle",
		},
	)

	// ResolutionsTotal counts decided outcomes by the strategy that decided.
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settleoracle_resolutions_total",
			Help: "Total number of market resolutions",
		},
		[]string{"strategy"},
	)

	// SettlementsTotal counts submissions by status.
	SettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settleoracle_settlements_total",
			Help: "Total number of settlement submissions",
		},
		[]string{"status"},
	)

	// CycleDuration tracks wall time per cycle
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "settleoracle_cycle_duration_seconds",
			Help:    "Scheduler cycle duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)
)
