/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package observe

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// MetricsObserver translates events into Prometheus metrics.
type MetricsObserver struct {
	Events        *prometheus.CounterVec
	CallDurations *prometheus.HistogramVec
}

// NewMetricsObserver creates a new MetricsObserver.
func NewMetricsObserver(namespace string) *MetricsObserver {
	return &MetricsObserver{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submission_events_total",
			Help:      "Number of observed submission events.",
		}, []string{"kind", "outcome"}),
		CallDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "A histogram of the remote API call durations.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"status"}),
	}
}

// MustRegister registers metrics in the default Prometheus registry.
func (mo *MetricsObserver) MustRegister() {
	prometheus.MustRegister(mo.Events, mo.CallDurations)
}

// Unregister cancels registration of metrics in the default Prometheus registry.
func (mo *MetricsObserver) Unregister() {
	prometheus.Unregister(mo.Events)
	prometheus.Unregister(mo.CallDurations)
}

// Observe implements Observer.
func (mo *MetricsObserver) Observe(e Event) {
	outcome := outcomeSuccess
	if e.Failed() {
		outcome = outcomeFailure
	}
	if e.Kind == EventAdmission {
		outcome = e.Decision.String()
	}
	mo.Events.WithLabelValues(e.Kind.String(), outcome).Inc()

	if e.Kind == EventRemoteCallCompleted {
		mo.CallDurations.WithLabelValues(strconv.Itoa(e.StatusCode)).Observe(e.Duration.Seconds())
	}
}
