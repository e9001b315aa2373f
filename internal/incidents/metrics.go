package incidents

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "incidentdesk"

var (
	incidentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "created_total",
			Help:      "Total incidents reported",
		},
		[]string{"priority"},
	)

	statusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "transitions_total",
			Help:      "Total applied status transitions",
		},
		[]string{"from", "to"},
	)

	rejectedMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "rejected_mutations_total",
			Help:      "Mutations refused by lifecycle rules",
		},
		[]string{"operation", "reason"},
	)
)

func recordTransition(from, to string) {
	statusTransitions.WithLabelValues(from, to).Inc()
}

func recordRejected(operation, reason string) {
	rejectedMutations.WithLabelValues(operation, reason).Inc()
}
