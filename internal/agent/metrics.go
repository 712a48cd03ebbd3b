package agent

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the engine's own operations.
var (
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_operations_total",
			Help: "Total number of engine operations by type",
		},
		[]string{"operation"},
	)

	operationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_operation_failures_total",
			Help: "Total number of failed engine operations by type and failure tag",
		},
		[]string{"operation", "tag"},
	)

	degradedResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_degraded_responses_total",
			Help: "Total number of responses served with fallback narrative",
		},
		[]string{"operation"},
	)

	reasoningDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agent_reasoning_duration_seconds",
			Help:    "Latency of reasoning backend calls",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)

	metricsOnce sync.Once
)

func init() {
	metricsOnce.Do(func() {
		prometheus.DefaultRegisterer.MustRegister(operationsTotal)
		prometheus.DefaultRegisterer.MustRegister(operationFailuresTotal)
		prometheus.DefaultRegisterer.MustRegister(degradedResponsesTotal)
		prometheus.DefaultRegisterer.MustRegister(reasoningDurationSeconds)
	})
}

// recordOperation updates the per-operation counters for one request.
func recordOperation(operation string, err error) {
	operationsTotal.WithLabelValues(operation).Inc()
	if err != nil {
		tag, ok := TagOf(err)
		if !ok {
			tag = TagBackendUnavailable
		}
		operationFailuresTotal.WithLabelValues(operation, string(tag)).Inc()
	}
}
