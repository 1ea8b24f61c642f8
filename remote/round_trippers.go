/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/acronis/go-docsubmit/log"
)

// RequestIDHeader is the name of the header that carries the submission ID.
const RequestIDHeader = "X-Request-ID"

// Default parameter values for RateLimitingRoundTripper.
const (
	DefaultRateLimitingBurst       = 1
	DefaultRateLimitingWaitTimeout = 15 * time.Second
)

// LoggingMode represents a mode of logging outgoing requests.
type LoggingMode string

// Logging modes.
const (
	LoggingModeNone   LoggingMode = "none"
	LoggingModeAll    LoggingMode = "all"
	LoggingModeFailed LoggingMode = "failed"
)

// IsValid checks if the logging mode is valid.
func (lm LoggingMode) IsValid() bool {
	switch lm {
	case LoggingModeNone, LoggingModeAll, LoggingModeFailed:
		return true
	}
	return false
}

// LoggingRoundTripper logs outgoing requests that take longer than SlowRequestThreshold.
type LoggingRoundTripper struct {
	Delegate             http.RoundTripper
	Logger               log.FieldLogger
	Mode                 LoggingMode
	SlowRequestThreshold time.Duration
}

// RoundTrip implements http.RoundTripper.
func (rt *LoggingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if rt.Mode == LoggingModeNone || rt.Logger == nil {
		return rt.Delegate.RoundTrip(r)
	}

	start := time.Now()
	resp, err := rt.Delegate.RoundTrip(r)
	elapsed := time.Since(start)
	if elapsed < rt.SlowRequestThreshold {
		return resp, err
	}

	fields := []log.Field{
		log.String("method", r.Method),
		log.String("url", r.URL.String()),
		log.DurationIn(elapsed, time.Millisecond),
	}
	if submissionID := GetSubmissionIDFromContext(r.Context()); submissionID != "" {
		fields = append(fields, log.SubmissionID(submissionID))
	}
	if err != nil {
		rt.Logger.Error("client http request failed", append(fields, log.Error(err))...)
		return resp, err
	}
	if rt.Mode == LoggingModeFailed && resp.StatusCode < http.StatusBadRequest {
		return resp, err
	}
	rt.Logger.Info("client http request done", append(fields, log.Int("status_code", resp.StatusCode))...)
	return resp, err
}

// MetricsCollector is an interface for collecting metrics for outgoing requests.
type MetricsCollector interface {
	RequestDuration(host, method, status string, startTime time.Time)
}

// MetricsRoundTripper measures outgoing requests.
type MetricsRoundTripper struct {
	Delegate  http.RoundTripper
	Collector MetricsCollector
}

// RoundTrip implements http.RoundTripper.
func (rt *MetricsRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if rt.Collector == nil {
		return rt.Delegate.RoundTrip(r)
	}
	status := "0"
	start := time.Now()
	resp, err := rt.Delegate.RoundTrip(r)
	if err == nil && resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	rt.Collector.RequestDuration(r.Host, r.Method, status, start)
	return resp, err
}

// RateLimitingRoundTripper paces outgoing requests with a token bucket.
// It doesn't replace the admission gate and only smooths bursts that the remote side can't absorb.
type RateLimitingRoundTripper struct {
	Delegate    http.RoundTripper
	WaitTimeout time.Duration

	rateLimiter *rate.Limiter
}

// NewRateLimitingRoundTripper creates a new RateLimitingRoundTripper with specified rate limit (requests per second).
func NewRateLimitingRoundTripper(
	delegate http.RoundTripper, rateLimit int, burst int, waitTimeout time.Duration,
) (*RateLimitingRoundTripper, error) {
	if rateLimit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive")
	}
	if burst < 0 {
		return nil, fmt.Errorf("burst must be positive")
	}
	if burst == 0 {
		burst = DefaultRateLimitingBurst
	}
	if waitTimeout == 0 {
		waitTimeout = DefaultRateLimitingWaitTimeout
	}
	return &RateLimitingRoundTripper{
		Delegate:    delegate,
		WaitTimeout: waitTimeout,
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), burst),
	}, nil
}

// RoundTrip implements http.RoundTripper.
func (rt *RateLimitingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(r.Context(), rt.WaitTimeout)
	defer cancel()

	if err := rt.rateLimiter.Wait(ctx); err != nil {
		if r.Body != nil {
			_ = r.Body.Close() // Per RoundTripper contract.
		}
		if errors.Is(r.Context().Err(), context.Canceled) {
			return nil, r.Context().Err()
		}
		return nil, &RateLimitingWaitError{Inner: err}
	}
	return rt.Delegate.RoundTrip(r)
}

// RateLimitingWaitError is returned by RateLimitingRoundTripper when waiting for a token takes too long.
type RateLimitingWaitError struct {
	Inner error
}

func (e *RateLimitingWaitError) Error() string {
	return fmt.Sprintf("wait due to client side rate limiting: %s", e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *RateLimitingWaitError) Unwrap() error {
	return e.Inner
}

// RequestIDRoundTripper sets the X-Request-ID header from the submission ID stored in the request context.
type RequestIDRoundTripper struct {
	Delegate http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (rt *RequestIDRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	submissionID := GetSubmissionIDFromContext(r.Context())
	if submissionID == "" || r.Header.Get(RequestIDHeader) != "" {
		return rt.Delegate.RoundTrip(r)
	}
	r = r.Clone(r.Context()) // Per RoundTripper contract.
	r.Header.Set(RequestIDHeader, submissionID)
	return rt.Delegate.RoundTrip(r)
}

// UserAgentRoundTripper sets the User-Agent header if it's not set yet.
type UserAgentRoundTripper struct {
	Delegate  http.RoundTripper
	UserAgent string
}

// RoundTrip implements http.RoundTripper.
func (rt *UserAgentRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if rt.UserAgent == "" || r.Header.Get("User-Agent") != "" {
		return rt.Delegate.RoundTrip(r)
	}
	r = r.Clone(r.Context())
	r.Header.Set("User-Agent", rt.UserAgent)
	return rt.Delegate.RoundTrip(r)
}
