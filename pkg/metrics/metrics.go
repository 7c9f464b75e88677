// Package metrics exports the worker's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Connection state label values.
var connectionStates = []string{"connected", "disconnected", "unknown"}

var (
	metricSessionsBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "extkeeper",
		Name:      "sessions_built_total",
		Help:      "Number of browser sessions successfully constructed.",
	})
	metricAttemptFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "extkeeper",
		Name:      "attempt_failures_total",
		Help:      "Failed attempts by the state they failed in.",
	}, []string{"state"})
	metricRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "extkeeper",
		Name:      "restarts_total",
		Help:      "Number of times the flow restarted after backoff.",
	})
	metricConnectionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "extkeeper",
		Name:      "connection_state",
		Help:      "1 for the last observed connection state, 0 for the others.",
	}, []string{"state"})
	metricSupervisorState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "extkeeper",
		Name:      "supervisor_state",
		Help:      "1 for the resilience loop's current state, 0 for the others.",
	}, []string{"state"})
)

// RecordSessionBuilt counts a constructed session.
func RecordSessionBuilt() {
	metricSessionsBuilt.Inc()
}

// RecordAttemptFailure counts a failed attempt in state.
func RecordAttemptFailure(state string) {
	metricAttemptFailures.WithLabelValues(state).Inc()
}

// RecordRestart counts a restart after backoff.
func RecordRestart() {
	metricRestarts.Inc()
}

// RecordConnectionState marks state as the current connection state.
func RecordConnectionState(state string) {
	for _, s := range connectionStates {
		value := 0.0
		if s == state {
			value = 1
		}
		metricConnectionState.WithLabelValues(s).Set(value)
	}
}

// RecordSupervisorState marks state as current, clearing previous.
func RecordSupervisorState(previous, state string) {
	if previous != "" && previous != state {
		metricSupervisorState.WithLabelValues(previous).Set(0)
	}
	metricSupervisorState.WithLabelValues(state).Set(1)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
