package live

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "incidentdesk",
			Subsystem: "live",
			Name:      "subscriptions",
			Help:      "Number of active live query subscriptions",
		},
	)

	refreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "incidentdesk",
			Subsystem: "live",
			Name:      "refreshes_total",
			Help:      "Total number of live query recomputations",
		},
		[]string{"result"},
	)

	changesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "incidentdesk",
			Subsystem: "live",
			Name:      "changes_total",
			Help:      "Total number of change signals received",
		},
		[]string{"topic"},
	)
)
