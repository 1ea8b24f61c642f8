/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package window provides a clock that fires a handler at the start of every fixed window.
package window

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/acronis/go-docsubmit/log"
)

// ClockOpts represents options for Clock.
type ClockOpts struct {
	Logger log.FieldLogger
}

// Clock calls the tick handler immediately on Start and then every interval until Stop.
// The handler is always called from a single goroutine, so two ticks never overlap.
// If the handler is slower than the interval, the next tick is delivered at the next boundary.
type Clock struct {
	interval time.Duration
	onTick   func()
	logger   log.FieldLogger

	ticks atomic.Uint64

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// NewClock creates a new Clock.
func NewClock(interval time.Duration, onTick func()) (*Clock, error) {
	return NewClockWithOpts(interval, onTick, ClockOpts{})
}

// NewClockWithOpts is a more configurable version of NewClock.
func NewClockWithOpts(interval time.Duration, onTick func(), opts ClockOpts) (*Clock, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval should be positive, got %s", interval)
	}
	if onTick == nil {
		return nil, fmt.Errorf("tick handler should be specified")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	return &Clock{
		interval: interval,
		onTick:   onTick,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start fires the first tick and begins firing every interval in a separate goroutine.
// Calling Start on a started or stopped clock does nothing.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.stopped {
		return
	}
	c.started = true
	go c.run()
}

// Stop stops firing ticks. It doesn't wait for the handler in progress, use Wait for that.
// It may be called multiple times, from any goroutine (the tick handler included), and before Start.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stopped {
		c.stopped = true
		close(c.stop)
	}
}

// Wait blocks until the clock is stopped and the handler in progress (if any) returns.
// It returns immediately if the clock was never started.
// Wait must not be called from the tick handler.
func (c *Clock) Wait() {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if started {
		<-c.done
	}
}

// Ticks returns the number of ticks fired so far.
func (c *Clock) Ticks() uint64 {
	return c.ticks.Load()
}

// Interval returns the configured interval between ticks.
func (c *Clock) Interval() time.Duration {
	return c.interval
}

func (c *Clock) run() {
	defer close(c.done)
	defer func() {
		if p := recover(); p != nil {
			const logStackSize = 8192
			stack := make([]byte, logStackSize)
			stack = stack[:runtime.Stack(stack, false)]
			c.logger.Error(fmt.Sprintf("panic in window clock tick: %+v", p), log.Bytes("stack", stack))
			panic(p)
		}
	}()

	c.logger.Infof("starting window clock (interval=%s)...", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.tick()
	for {
		select {
		case <-c.stop:
			c.logger.Info("window clock stopped", log.Int64("ticks", int64(c.ticks.Load())))
			return
		case <-ticker.C:
		}
		// Stop has priority over a tick that became ready at the same time.
		select {
		case <-c.stop:
			c.logger.Info("window clock stopped", log.Int64("ticks", int64(c.ticks.Load())))
			return
		default:
		}
		c.tick()
	}
}

func (c *Clock) tick() {
	c.onTick()
	c.ticks.Inc()
}
