/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of metrics for the admission gate.
type MetricsCollector interface {
	IncDecisions(d Decision)
	IncResets()
}

// PrometheusMetrics represents a collector of Prometheus metrics for the admission gate.
type PrometheusMetrics struct {
	Decisions *prometheus.CounterVec
	Resets    prometheus.Counter
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	return &PrometheusMetrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_decisions_total",
			Help:      "Number of admission decisions made by the gate.",
		}, []string{"decision"}),
		Resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_window_resets_total",
			Help:      "Number of admission window resets.",
		}),
	}
}

// MustRegister registers metrics in the default Prometheus registry.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.Decisions, pm.Resets)
}

// Unregister cancels registration of metrics in the default Prometheus registry.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.Decisions)
	prometheus.Unregister(pm.Resets)
}

// IncDecisions increments the counter of decisions with the given result.
func (pm *PrometheusMetrics) IncDecisions(d Decision) {
	pm.Decisions.WithLabelValues(d.String()).Inc()
}

// IncResets increments the counter of window resets.
func (pm *PrometheusMetrics) IncResets() {
	pm.Resets.Inc()
}

type disabledMetrics struct{}

func (disabledMetrics) IncDecisions(Decision) {}
func (disabledMetrics) IncResets()            {}
