/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package observe

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/acronis/go-docsubmit/log"
)

// DefaultAsyncObserverBufferSize is a default size of the AsyncObserver's events buffer.
const DefaultAsyncObserverBufferSize = 1024

// AsyncObserverOpts represents options for AsyncObserver.
type AsyncObserverOpts struct {
	BufferSize int
	Logger     log.FieldLogger
}

// AsyncObserver decouples the pipeline from a slow observer.
// Events are buffered and delivered to the delegate from a separate goroutine in the order of Observe calls.
// When the buffer is full the event is dropped and counted; the number of dropped events is reported on Close.
type AsyncObserver struct {
	delegate Observer
	logger   log.FieldLogger
	events   chan Event
	done     chan struct{}
	dropped  atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewAsyncObserver creates a new AsyncObserver and starts its delivery goroutine.
func NewAsyncObserver(delegate Observer) *AsyncObserver {
	return NewAsyncObserverWithOpts(delegate, AsyncObserverOpts{})
}

// NewAsyncObserverWithOpts is a more configurable version of NewAsyncObserver.
func NewAsyncObserverWithOpts(delegate Observer, opts AsyncObserverOpts) *AsyncObserver {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultAsyncObserverBufferSize
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	ao := &AsyncObserver{
		delegate: delegate,
		logger:   opts.Logger,
		events:   make(chan Event, opts.BufferSize),
		done:     make(chan struct{}),
	}
	go ao.deliver()
	return ao
}

// Observe implements Observer. It never blocks.
func (ao *AsyncObserver) Observe(e Event) {
	ao.mu.RLock()
	defer ao.mu.RUnlock()
	if ao.closed {
		ao.dropped.Inc()
		return
	}
	select {
	case ao.events <- e:
	default:
		ao.dropped.Inc()
	}
}

// Dropped returns the number of events that were not delivered to the delegate.
func (ao *AsyncObserver) Dropped() uint64 {
	return ao.dropped.Load()
}

// Close stops accepting events and waits until buffered events are delivered or ctx is done.
// It's idempotent.
func (ao *AsyncObserver) Close(ctx context.Context) error {
	ao.mu.Lock()
	if !ao.closed {
		ao.closed = true
		close(ao.events)
	}
	ao.mu.Unlock()

	defer ao.logDropped()
	select {
	case <-ao.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for buffered events delivery: %w", ctx.Err())
	}
}

func (ao *AsyncObserver) logDropped() {
	if dropped := ao.dropped.Load(); dropped > 0 {
		ao.logger.Warn("some events were dropped by async observer", log.Int64("dropped", int64(dropped)))
	}
}

func (ao *AsyncObserver) deliver() {
	defer close(ao.done)
	for e := range ao.events {
		ao.delegate.Observe(e)
	}
}
