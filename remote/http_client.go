/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package remote

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-docsubmit/log"
)

// HTTPClientOpts represents options for NewHTTPClient.
type HTTPClientOpts struct {
	// Delegate is the innermost RoundTripper. A clone of http.DefaultTransport is used by default.
	Delegate http.RoundTripper

	// Logger is used by the logging round tripper.
	Logger log.FieldLogger

	// Collector receives request durations when metrics are enabled in the config.
	Collector MetricsCollector
}

// NewHTTPClient builds an *http.Client which transport is wrapped (from inner to outer) with
// logging, metrics, rate limiting, user agent and request id round trippers according to the config.
func NewHTTPClient(cfg *TransportConfig, opts HTTPClientOpts) (*http.Client, error) {
	delegate := opts.Delegate
	if delegate == nil {
		delegate = http.DefaultTransport.(*http.Transport).Clone()
	}

	if cfg.Logger.Enabled && opts.Logger != nil {
		delegate = &LoggingRoundTripper{
			Delegate:             delegate,
			Logger:               opts.Logger,
			Mode:                 cfg.Logger.Mode,
			SlowRequestThreshold: cfg.Logger.SlowRequestThreshold,
		}
	}

	if cfg.Metrics.Enabled && opts.Collector != nil {
		delegate = &MetricsRoundTripper{Delegate: delegate, Collector: opts.Collector}
	}

	if cfg.RateLimits.Enabled {
		var err error
		if delegate, err = NewRateLimitingRoundTripper(
			delegate, cfg.RateLimits.Limit, cfg.RateLimits.Burst, cfg.RateLimits.WaitTimeout,
		); err != nil {
			return nil, fmt.Errorf("create rate limiting round tripper: %w", err)
		}
	}

	if cfg.UserAgent != "" {
		delegate = &UserAgentRoundTripper{Delegate: delegate, UserAgent: cfg.UserAgent}
	}

	delegate = &RequestIDRoundTripper{Delegate: delegate}

	return &http.Client{Transport: delegate, Timeout: cfg.Timeout}, nil
}

// PrometheusMetricsCollector collects durations of outgoing HTTP requests.
type PrometheusMetricsCollector struct {
	Durations *prometheus.HistogramVec
}

// NewPrometheusMetricsCollector creates a new PrometheusMetricsCollector.
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	return &PrometheusMetricsCollector{
		Durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_client_request_duration_seconds",
			Help:      "A histogram of the http client requests durations.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"remote_address", "method", "status"}),
	}
}

// MustRegister registers metrics in the default Prometheus registry.
func (p *PrometheusMetricsCollector) MustRegister() {
	prometheus.MustRegister(p.Durations)
}

// Unregister cancels registration of metrics in the default Prometheus registry.
func (p *PrometheusMetricsCollector) Unregister() {
	prometheus.Unregister(p.Durations)
}

// RequestDuration implements MetricsCollector.
func (p *PrometheusMetricsCollector) RequestDuration(host, method, status string, start time.Time) {
	p.Durations.WithLabelValues(host, method, status).Observe(time.Since(start).Seconds())
}
