/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package observe contains the event stream of the document submission pipeline:
// admission decisions, signing failures and remote call results.
package observe

import (
	"fmt"
	"time"

	"github.com/acronis/go-docsubmit/admission"
)

// EventKind defines a kind of the observed event.
type EventKind int

// Event kinds.
const (
	EventAdmission EventKind = iota
	EventDispatchRejected
	EventSigningFailed
	EventRemoteCallCompleted
)

// String returns a label of the event kind that is used in logs and metrics.
func (k EventKind) String() string {
	switch k {
	case EventAdmission:
		return "admission"
	case EventDispatchRejected:
		return "dispatch_rejected"
	case EventSigningFailed:
		return "signing_failed"
	case EventRemoteCallCompleted:
		return "remote_call_completed"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is a single observation. Fields that don't relate to the Kind are zero.
type Event struct {
	Kind         EventKind
	Time         time.Time
	SubmissionID string

	// Decision is set for EventAdmission.
	Decision admission.Decision

	// StatusCode and Duration are set for EventRemoteCallCompleted.
	StatusCode int
	Duration   time.Duration

	// Err is the cause of a failure (nil for successful remote calls and admitted submissions).
	Err error
}

// Failed reports whether the event describes a failure of the submission.
func (e Event) Failed() bool {
	return e.Err != nil
}

// Observer receives events of the pipeline. Implementations must not block the caller for long.
type Observer interface {
	Observe(e Event)
}

// ObserverFunc is an adapter to allow the use of ordinary functions as Observer.
type ObserverFunc func(e Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(e Event) {
	f(e)
}

// Multi fans out every event to all observers in order.
type Multi []Observer

// Observe implements Observer.
func (m Multi) Observe(e Event) {
	for _, o := range m {
		o.Observe(e)
	}
}

// Nop is an Observer that ignores all events.
var Nop Observer = ObserverFunc(func(Event) {})
