/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package dispatch

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of metrics for the dispatcher.
type MetricsCollector interface {
	IncInFlight()
	DecInFlight()
	IncSaturated()
}

// PrometheusMetrics represents a collector of Prometheus metrics for the dispatcher.
type PrometheusMetrics struct {
	InFlight  prometheus.Gauge
	Saturated prometheus.Counter
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	return &PrometheusMetrics{
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatcher_in_flight_submissions",
			Help:      "Number of submissions that are being signed or sent right now.",
		}),
		Saturated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatcher_saturated_total",
			Help:      "Number of submissions refused because the dispatcher queue was full.",
		}),
	}
}

// MustRegister registers metrics in the default Prometheus registry.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.InFlight, pm.Saturated)
}

// Unregister cancels registration of metrics in the default Prometheus registry.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.InFlight)
	prometheus.Unregister(pm.Saturated)
}

// IncInFlight increments the gauge of in-flight submissions.
func (pm *PrometheusMetrics) IncInFlight() { pm.InFlight.Inc() }

// DecInFlight decrements the gauge of in-flight submissions.
func (pm *PrometheusMetrics) DecInFlight() { pm.InFlight.Dec() }

// IncSaturated increments the counter of submissions refused due to saturation.
func (pm *PrometheusMetrics) IncSaturated() { pm.Saturated.Inc() }

type disabledMetrics struct{}

func (disabledMetrics) IncInFlight()  {}
func (disabledMetrics) DecInFlight()  {}
func (disabledMetrics) IncSaturated() {}
