package messages

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messagesPosted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "incidentdesk",
		Subsystem: "messages",
		Name:      "posted_total",
		Help:      "Total number of thread messages posted",
	},
	[]string{"type"},
)
