// Package metrics provides Prometheus metrics for the Trellis service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MovesTotal tracks board move operations by result
	MovesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trellis",
			Subsystem: "board",
			Name:      "moves_total",
			Help:      "Total number of move operations by result",
		},
		[]string{"tenant_id", "result"},
	)

	// StageTransitionsTotal tracks committed stage transitions
	StageTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trellis",
			Subsystem: "board",
			Name:      "stage_transitions_total",
			Help:      "Total number of committed stage transitions",
		},
		[]string{"tenant_id", "from_stage", "to_stage"},
	)

	// StaleConflictsTotal tracks moves rejected by the stale-index check
	StaleConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trellis",
			Subsystem: "board",
			Name:      "stale_conflicts_total",
			Help:      "Total number of moves rejected as stale",
		},
		[]string{"tenant_id"},
	)

	// DispatchQueueDepth tracks pending side-effect events
	DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trellis",
			Subsystem: "dispatch",
			Name:      "queue_depth",
			Help:      "Number of committed events awaiting side-effect delivery",
		},
	)

	// DispatchDeliveriesTotal tracks side-effect deliveries by subscriber and status
	DispatchDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trellis",
			Subsystem: "dispatch",
			Name:      "deliveries_total",
			Help:      "Total number of side-effect deliveries by subscriber and status",
		},
		[]string{"subscriber", "status"},
	)

	// ReportDuration tracks funnel report computation duration in seconds
	ReportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "trellis",
			Subsystem: "funnel",
			Name:      "report_duration_seconds",
			Help:      "Duration of funnel report computations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	// ReportCacheHitsTotal tracks funnel report cache lookups
	ReportCacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trellis",
			Subsystem: "funnel",
			Name:      "report_cache_lookups_total",
			Help:      "Total number of funnel report cache lookups by outcome",
		},
		[]string{"outcome"},
	)
)
