package notifications

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "incidentdesk"

var (
	notificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "created_total",
			Help:      "Total notifications written to user feeds",
		},
		[]string{"type"},
	)

	notificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "failures_total",
			Help:      "Notifications that could not be written, by type",
		},
		[]string{"type"},
	)

	notificationsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "purged_total",
			Help:      "Read notifications removed by the retention job",
		},
	)
)

func recordCreated(t string) {
	notificationsCreated.WithLabelValues(t).Inc()
}

func recordFailure(t string) {
	notificationFailures.WithLabelValues(t).Inc()
}
