package events

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for event publishing
var (
	eventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_events_published_total",
			Help: "Total number of agent events published, by subject",
		},
		[]string{"subject"},
	)

	eventPublishFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_event_publish_failures_total",
			Help: "Total number of failed event publishes, by subject",
		},
		[]string{"subject"},
	)

	natsReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_reconnects_total",
			Help: "Total number of NATS reconnection events",
		},
	)

	metricsOnce sync.Once
)

func init() {
	metricsOnce.Do(func() {
		prometheus.DefaultRegisterer.MustRegister(eventsPublishedTotal)
		prometheus.DefaultRegisterer.MustRegister(eventPublishFailuresTotal)
		prometheus.DefaultRegisterer.MustRegister(natsReconnectsTotal)
	})
}
