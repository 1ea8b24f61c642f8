/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrAdmissionRejected is returned by Decision.Err when the limit of the current window is exhausted.
var ErrAdmissionRejected = errors.New("admission rejected: request limit of the current window is reached")

// ErrShutdownInProgress is returned by Decision.Err when the gate has been closed.
var ErrShutdownInProgress = errors.New("shutdown in progress")

// Decision is a result of the admission check.
type Decision int

// Admission decisions.
const (
	Admitted Decision = iota
	Rejected
	ShuttingDown
)

// String returns a label of the decision that is used in logs and metrics.
func (d Decision) String() string {
	switch d {
	case Admitted:
		return "admitted"
	case Rejected:
		return "rejected"
	case ShuttingDown:
		return "shutting_down"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// Err converts the decision into an error value. It returns nil for Admitted.
func (d Decision) Err() error {
	switch d {
	case Admitted:
		return nil
	case ShuttingDown:
		return ErrShutdownInProgress
	}
	return ErrAdmissionRejected
}

// GateOpts represents options for Gate.
type GateOpts struct {
	// MetricsCollector receives every decision and window reset. May be nil.
	MetricsCollector MetricsCollector

	// Now is used for stamping window starts. time.Now is used by default.
	Now func() time.Time
}

// Gate counts calls admitted within the current fixed window against the limit.
// A slot is reserved at admission time and is never given back until the window is reset,
// so the limit bounds both in-flight and completed calls of the window.
type Gate struct {
	limit   int
	metrics MetricsCollector
	now     func() time.Time

	mu          sync.Mutex
	count       int
	closed      bool
	windowStart time.Time
}

// NewGate creates a new Gate that admits at most limit calls per window.
func NewGate(limit int) (*Gate, error) {
	return NewGateWithOpts(limit, GateOpts{})
}

// NewGateWithOpts is a more configurable version of NewGate.
func NewGateWithOpts(limit int, opts GateOpts) (*Gate, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit should be positive, got %d", limit)
	}
	metrics := opts.MetricsCollector
	if metrics == nil {
		metrics = disabledMetrics{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Gate{limit: limit, metrics: metrics, now: now, windowStart: now()}, nil
}

// TryAdmit checks whether one more call fits into the current window and reserves a slot for it if so.
// The check and the reservation happen in one critical section, so concurrent callers
// can never be admitted beyond the limit.
func (g *Gate) TryAdmit() Decision {
	g.mu.Lock()
	var d Decision
	switch {
	case g.closed:
		d = ShuttingDown
	case g.count < g.limit:
		g.count++
		d = Admitted
	default:
		d = Rejected
	}
	g.mu.Unlock()

	if d != ShuttingDown {
		g.metrics.IncDecisions(d)
	}
	return d
}

// Reset starts a new window with no reserved slots.
// It's called by the window clock and may be called any number of times.
func (g *Gate) Reset() {
	g.mu.Lock()
	g.count = 0
	g.windowStart = g.now()
	g.mu.Unlock()

	g.metrics.IncResets()
}

// Close makes every subsequent TryAdmit return ShuttingDown. It's idempotent.
func (g *Gate) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

// Closed reports whether Close has been called.
func (g *Gate) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Count returns the number of slots reserved in the current window.
func (g *Gate) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

// Limit returns the maximum number of calls per window.
func (g *Gate) Limit() int {
	return g.limit
}

// WindowStart returns the moment the current window was started.
func (g *Gate) WindowStart() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.windowStart
}
