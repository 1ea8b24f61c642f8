/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package dispatch executes admitted submissions on a fixed-size pool of workers.
// Each worker signs the document and then calls the remote API, reporting every outcome to the observer.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/acronis/go-docsubmit/admission"
	"github.com/acronis/go-docsubmit/log"
	"github.com/acronis/go-docsubmit/observe"
	"github.com/acronis/go-docsubmit/remote"
	"github.com/acronis/go-docsubmit/signing"
)

// Default parameter values for Dispatcher.
const (
	DefaultWorkerPoolSize    = 10
	DefaultSaturationTimeout = 5 * time.Second
)

// abandonWaitTimeout bounds waiting for workers to report canceled calls after the shutdown context is done.
const abandonWaitTimeout = time.Second

// ErrDispatcherSaturated is returned by Submit when there is no room in the queue.
var ErrDispatcherSaturated = errors.New("dispatcher is saturated")

// ErrShutdownInProgress is returned by Submit after Shutdown has been called.
var ErrShutdownInProgress = admission.ErrShutdownInProgress

// SaturationPolicy defines what Submit does when the queue is full.
type SaturationPolicy string

// Saturation policies.
const (
	// SaturationPolicyReject makes Submit fail with ErrDispatcherSaturated immediately.
	SaturationPolicyReject SaturationPolicy = "reject"

	// SaturationPolicyBlock makes Submit wait for a free place in the queue up to the saturation timeout.
	SaturationPolicyBlock SaturationPolicy = "block"
)

// IsValid checks if the saturation policy is known.
func (p SaturationPolicy) IsValid() bool {
	return p == SaturationPolicyReject || p == SaturationPolicyBlock
}

// Caller issues remote calls. *remote.Adapter implements it.
type Caller interface {
	Call(ctx context.Context, req remote.Request) *remote.Future
}

// Opts represents options for Dispatcher.
type Opts struct {
	// WorkerPoolSize is the number of workers. DefaultWorkerPoolSize is used if zero.
	WorkerPoolSize int

	// QueueSize is the number of accepted submissions that may wait for a free worker.
	// WorkerPoolSize is used if zero.
	QueueSize int

	// SaturationPolicy is SaturationPolicyReject by default.
	SaturationPolicy SaturationPolicy

	// SaturationTimeout bounds waiting in Submit for SaturationPolicyBlock. DefaultSaturationTimeout is used if zero.
	SaturationTimeout time.Duration

	Logger           log.FieldLogger
	MetricsCollector MetricsCollector
}

// Dispatcher runs submissions concurrently without blocking the caller (beyond the saturation policy).
// It never touches the admission gate: capacity reserved at admission is reclaimed only by the window reset.
type Dispatcher struct {
	signer   signing.Signer
	caller   Caller
	observer observe.Observer
	logger   log.FieldLogger
	metrics  MetricsCollector

	workerPoolSize    int
	policy            SaturationPolicy
	saturationTimeout time.Duration

	queue    chan Submission
	inFlight atomic.Int32

	// callsCtx is canceled when in-flight work is abandoned on shutdown.
	callsCtx    context.Context
	cancelCalls context.CancelFunc

	mu           sync.RWMutex
	closed       bool
	stopping     chan struct{}
	stopOnce     sync.Once
	workersGroup sync.WaitGroup
	drained      chan struct{}
}

// NewDispatcher creates a new Dispatcher and starts its workers.
func NewDispatcher(signer signing.Signer, caller Caller, observer observe.Observer, opts Opts) (*Dispatcher, error) {
	if signer == nil {
		return nil, fmt.Errorf("signer should be specified")
	}
	if caller == nil {
		return nil, fmt.Errorf("caller should be specified")
	}
	if observer == nil {
		observer = observe.Nop
	}
	if opts.WorkerPoolSize < 0 {
		return nil, fmt.Errorf("worker pool size should be positive, got %d", opts.WorkerPoolSize)
	}
	if opts.WorkerPoolSize == 0 {
		opts.WorkerPoolSize = DefaultWorkerPoolSize
	}
	if opts.QueueSize < 0 {
		return nil, fmt.Errorf("queue size should not be negative, got %d", opts.QueueSize)
	}
	if opts.QueueSize == 0 {
		opts.QueueSize = opts.WorkerPoolSize
	}
	if opts.SaturationPolicy == "" {
		opts.SaturationPolicy = SaturationPolicyReject
	}
	if !opts.SaturationPolicy.IsValid() {
		return nil, fmt.Errorf("unknown saturation policy %q", opts.SaturationPolicy)
	}
	if opts.SaturationTimeout < 0 {
		return nil, fmt.Errorf("saturation timeout should not be negative, got %s", opts.SaturationTimeout)
	}
	if opts.SaturationTimeout == 0 {
		opts.SaturationTimeout = DefaultSaturationTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetrics{}
	}

	callsCtx, cancelCalls := context.WithCancel(context.Background())
	d := &Dispatcher{
		signer:            signer,
		caller:            caller,
		observer:          observer,
		logger:            opts.Logger,
		metrics:           opts.MetricsCollector,
		workerPoolSize:    opts.WorkerPoolSize,
		policy:            opts.SaturationPolicy,
		saturationTimeout: opts.SaturationTimeout,
		queue:             make(chan Submission, opts.QueueSize),
		callsCtx:          callsCtx,
		cancelCalls:       cancelCalls,
		stopping:          make(chan struct{}),
		drained:           make(chan struct{}),
	}
	d.workersGroup.Add(opts.WorkerPoolSize)
	for i := 0; i < opts.WorkerPoolSize; i++ {
		go d.work()
	}
	return d, nil
}

// Submit enqueues the admitted submission for processing.
// It returns ErrDispatcherSaturated if the queue is full (after waiting up to the saturation timeout
// for SaturationPolicyBlock) and ErrShutdownInProgress if Shutdown has been called.
func (d *Dispatcher) Submit(s Submission) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrShutdownInProgress
	}

	select {
	case d.queue <- s:
		return nil
	default:
	}

	if d.policy == SaturationPolicyBlock {
		timer := time.NewTimer(d.saturationTimeout)
		defer timer.Stop()
		select {
		case d.queue <- s:
			return nil
		case <-d.stopping:
			return ErrShutdownInProgress
		case <-timer.C:
		}
	}

	d.metrics.IncSaturated()
	d.observer.Observe(observe.Event{
		Kind: observe.EventDispatchRejected, Time: time.Now(), SubmissionID: s.ID, Err: ErrDispatcherSaturated,
	})
	return ErrDispatcherSaturated
}

// InFlight returns the number of submissions that are being processed by workers right now.
func (d *Dispatcher) InFlight() int {
	return int(d.inFlight.Load())
}

// Queued returns the number of submissions waiting for a free worker.
func (d *Dispatcher) Queued() int {
	return len(d.queue)
}

// Shutdown stops accepting submissions and waits until all accepted ones are processed.
// If ctx is done before that, in-flight remote calls are canceled and the context error is returned.
// Canceled calls are still reported to the observer as failures. Shutdown may be called multiple times.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.stopOnce.Do(func() {
		close(d.stopping)
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()

		d.logger.Info("dispatcher is shutting down",
			log.Int("in_flight", d.InFlight()), log.Int("queued", d.Queued()))

		go func() {
			d.workersGroup.Wait()
			d.cancelCalls()
			close(d.drained)
		}()
	})

	select {
	case <-d.drained:
		return nil
	case <-ctx.Done():
		d.cancelCalls()
		select {
		case <-d.drained:
		case <-time.After(abandonWaitTimeout):
		}
		d.logger.Warn("in-flight submissions are abandoned", log.Int("in_flight", d.InFlight()))
		return fmt.Errorf("wait for in-flight submissions: %w", ctx.Err())
	}
}

func (d *Dispatcher) work() {
	defer d.workersGroup.Done()
	for s := range d.queue {
		d.process(s)
	}
}

func (d *Dispatcher) process(s Submission) {
	d.inFlight.Inc()
	d.metrics.IncInFlight()
	defer func() {
		d.metrics.DecInFlight()
		d.inFlight.Dec()
	}()

	if err := d.sign(s); err != nil {
		d.observer.Observe(observe.Event{
			Kind: observe.EventSigningFailed, Time: time.Now(), SubmissionID: s.ID, Err: err,
		})
		return
	}

	res := d.caller.Call(d.callsCtx, remote.Request{
		SubmissionID:  s.ID,
		DocumentValue: s.Document.Value,
		Signature:     s.Signature,
	}).Result()

	d.observer.Observe(observe.Event{
		Kind:         observe.EventRemoteCallCompleted,
		Time:         time.Now(),
		SubmissionID: s.ID,
		StatusCode:   res.StatusCode,
		Duration:     res.Duration,
		Err:          res.Err,
	})
}

func (d *Dispatcher) sign(s Submission) (err error) {
	defer func() {
		if p := recover(); p != nil {
			const logStackSize = 8192
			stack := make([]byte, logStackSize)
			stack = stack[:runtime.Stack(stack, false)]
			d.logger.Error(fmt.Sprintf("panic in signer: %+v", p), log.Bytes("stack", stack))
			err = &SigningError{SubmissionID: s.ID, Err: fmt.Errorf("signer panicked: %v", p)}
		}
	}()
	if signErr := d.signer.Sign(s.Document.Value, s.Signature); signErr != nil {
		return &SigningError{SubmissionID: s.ID, Err: signErr}
	}
	return nil
}
