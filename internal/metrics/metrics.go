package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DeploymentsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deployments_started_total",
		Help: "Number of deployment jobs dispatched to the execution facility",
	})

	DeploymentsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deployments_completed_total",
		Help: "Number of deployments reaching a terminal state",
	}, []string{"status"})

	EventsBroadcast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_broadcast_total",
		Help: "Number of events delivered to websocket subscribers",
	}, []string{"type"})
)
