/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package docsubmit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-docsubmit/admission"
	"github.com/acronis/go-docsubmit/dispatch"
	"github.com/acronis/go-docsubmit/log"
	"github.com/acronis/go-docsubmit/observe"
	"github.com/acronis/go-docsubmit/remote"
	"github.com/acronis/go-docsubmit/signing"
	"github.com/acronis/go-docsubmit/window"
)

// Opts represents options for Client.
type Opts struct {
	Logger log.FieldLogger

	// Observer receives all events in addition to the built-in logging and metrics observers.
	Observer observe.Observer

	// ObserverBufferSize is the size of the buffer between the pipeline and observers.
	// observe.DefaultAsyncObserverBufferSize is used if zero.
	ObserverBufferSize int

	// Transport replaces the HTTP transport built from Config.Transport.
	Transport remote.Transport

	// HTTPDelegate is the innermost round tripper of the HTTP transport (used only when Transport is nil).
	HTTPDelegate http.RoundTripper

	// MetricsNamespace is a namespace of Prometheus metrics.
	MetricsNamespace string
}

// Client admits document submissions within the per-window request limit and
// dispatches admitted ones (signing and the remote API call) concurrently.
type Client struct {
	logger log.FieldLogger

	gate       *admission.Gate
	clock      *window.Clock
	dispatcher *dispatch.Dispatcher
	adapter    *remote.Adapter
	observer   *observe.AsyncObserver

	shutdownGracePeriod time.Duration

	gateMetrics     *admission.PrometheusMetrics
	dispatchMetrics *dispatch.PrometheusMetrics
	metricsObserver *observe.MetricsObserver
	httpMetrics     *remote.PrometheusMetricsCollector
	droppedEvents   prometheus.CounterFunc

	shutdownOnce sync.Once
	shutdownDone chan struct{}
	shutdownErr  error
}

// New creates a new Client. The window clock is not started until Start is called.
func New(cfg *Config, signer signing.Signer, opts Opts) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config should be specified")
	}
	if signer == nil {
		return nil, errors.New("signer should be specified")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}

	c := &Client{
		logger:              opts.Logger,
		shutdownGracePeriod: cfg.ShutdownGracePeriod,
		gateMetrics:         admission.NewPrometheusMetrics(opts.MetricsNamespace),
		dispatchMetrics:     dispatch.NewPrometheusMetrics(opts.MetricsNamespace),
		metricsObserver:     observe.NewMetricsObserver(opts.MetricsNamespace),
		httpMetrics:         remote.NewPrometheusMetricsCollector(opts.MetricsNamespace),
		shutdownDone:        make(chan struct{}),
	}

	var err error
	if c.gate, err = admission.NewGateWithOpts(cfg.RequestLimit, admission.GateOpts{
		MetricsCollector: c.gateMetrics,
	}); err != nil {
		return nil, fmt.Errorf("create admission gate: %w", err)
	}

	observers := observe.Multi{observe.NewLoggingObserver(opts.Logger), c.metricsObserver}
	if opts.Observer != nil {
		observers = append(observers, opts.Observer)
	}
	c.observer = observe.NewAsyncObserverWithOpts(observers, observe.AsyncObserverOpts{
		BufferSize: opts.ObserverBufferSize,
		Logger:     opts.Logger,
	})
	c.droppedEvents = prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: opts.MetricsNamespace,
		Name:      "observer_dropped_events_total",
		Help:      "Number of events dropped because observers were too slow.",
	}, func() float64 {
		return float64(c.observer.Dropped())
	})

	transport := opts.Transport
	if transport == nil {
		transportCfg := cfg.Transport
		if transportCfg == nil {
			transportCfg = remote.NewDefaultTransportConfig()
		}
		httpClient, httpErr := remote.NewHTTPClient(transportCfg, remote.HTTPClientOpts{
			Delegate:  opts.HTTPDelegate,
			Logger:    opts.Logger,
			Collector: c.httpMetrics,
		})
		if httpErr != nil {
			c.closeObserver()
			return nil, fmt.Errorf("create http client: %w", httpErr)
		}
		transport = remote.NewHTTPTransport(httpClient)
	}
	c.adapter = remote.NewAdapter(transport, remote.AdapterOpts{
		URL:         cfg.API.URL,
		Headers:     cfg.API.Headers,
		CallTimeout: cfg.CallTimeout,
	})

	if c.dispatcher, err = dispatch.NewDispatcher(signer, c.adapter, c.observer, dispatch.Opts{
		WorkerPoolSize:    cfg.WorkerPoolSize,
		QueueSize:         cfg.QueueSize,
		SaturationPolicy:  cfg.Saturation.Policy,
		SaturationTimeout: cfg.Saturation.Timeout,
		Logger:            opts.Logger,
		MetricsCollector:  c.dispatchMetrics,
	}); err != nil {
		c.closeObserver()
		return nil, fmt.Errorf("create dispatcher: %w", err)
	}

	if c.clock, err = window.NewClockWithOpts(cfg.WindowDuration, c.resetWindow, window.ClockOpts{
		Logger: opts.Logger,
	}); err != nil {
		_ = c.dispatcher.Shutdown(context.Background())
		c.closeObserver()
		return nil, fmt.Errorf("create window clock: %w", err)
	}

	return c, nil
}

// Start starts the window clock. The first window begins immediately.
func (c *Client) Start() {
	c.clock.Start()
}

// TryAdmit reserves a slot in the current window for one remote call.
// Prefer CreateDocumentAndSign which also dispatches the admitted submission.
func (c *Client) TryAdmit() admission.Decision {
	return c.admit("")
}

// Submit dispatches a submission and returns its ID.
// It doesn't consult the admission gate: the caller must have got Admitted from TryAdmit before,
// otherwise the request limit of the window is bypassed.
func (c *Client) Submit(doc Document, signature string) (string, error) {
	s := dispatch.NewSubmission(doc, signature)
	if err := c.dispatcher.Submit(s); err != nil {
		return "", err
	}
	return s.ID, nil
}

// CreateDocumentAndSign admits the document within the request limit of the current window and
// hands it over for signing and sending to the remote API. It never waits for the remote call.
// ErrAdmissionRejected is returned when the limit is reached, the caller may try again in the next window.
// The ID of the accepted submission is returned, its outcome is reported to the observers
// in events carrying the same ID.
func (c *Client) CreateDocumentAndSign(ctx context.Context, doc Document, signature string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s := dispatch.NewSubmission(doc, signature)
	if err := c.admit(s.ID).Err(); err != nil {
		return "", err
	}
	if err := c.dispatcher.Submit(s); err != nil {
		return "", err
	}
	return s.ID, nil
}

// Shutdown stops the window clock, rejects new submissions and waits for the accepted ones
// up to the shutdown grace period (unless ctx has an earlier deadline).
// Remote calls that don't complete in time are canceled and reported as failures.
// Shutdown may be called multiple times, later calls wait for the first one and return its result.
func (c *Client) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		defer close(c.shutdownDone)
		c.shutdownErr = c.shutdown(ctx)
	})
	select {
	case <-c.shutdownDone:
		return c.shutdownErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) shutdown(ctx context.Context) error {
	c.logger.Info("shutting down document submission client...")
	c.gate.Close()
	c.clock.Stop()
	c.clock.Wait()

	if _, ok := ctx.Deadline(); !ok && c.shutdownGracePeriod > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.shutdownGracePeriod)
		defer cancel()
	}

	var errs []error
	if err := c.dispatcher.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown dispatcher: %w", err))
	}
	if err := c.observer.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close observer: %w", err))
	}
	if len(errs) != 0 {
		err := errors.Join(errs...)
		c.logger.Error("document submission client is not gracefully shut down", log.Error(err))
		return err
	}
	c.logger.Info("document submission client is shut down")
	return nil
}

// InFlight returns the number of submissions that are being signed or sent right now.
func (c *Client) InFlight() int {
	return c.dispatcher.InFlight()
}

// RequestCount returns the number of slots reserved in the current window.
func (c *Client) RequestCount() int {
	return c.gate.Count()
}

// MustRegisterMetrics registers all Prometheus metrics of the client in the default registry.
func (c *Client) MustRegisterMetrics() {
	c.gateMetrics.MustRegister()
	c.dispatchMetrics.MustRegister()
	c.metricsObserver.MustRegister()
	c.httpMetrics.MustRegister()
	prometheus.MustRegister(c.droppedEvents)
}

// UnregisterMetrics cancels registration of all Prometheus metrics of the client.
func (c *Client) UnregisterMetrics() {
	c.gateMetrics.Unregister()
	c.dispatchMetrics.Unregister()
	c.metricsObserver.Unregister()
	c.httpMetrics.Unregister()
	prometheus.Unregister(c.droppedEvents)
}

func (c *Client) admit(submissionID string) admission.Decision {
	d := c.gate.TryAdmit()
	if d == admission.ShuttingDown {
		return d
	}
	c.observer.Observe(observe.Event{
		Kind:         observe.EventAdmission,
		Time:         time.Now(),
		SubmissionID: submissionID,
		Decision:     d,
		Err:          d.Err(),
	})
	return d
}

func (c *Client) resetWindow() {
	c.gate.Reset()
	c.logger.Debug("request count reset", log.Time("window_start", c.gate.WindowStart()))
}

func (c *Client) closeObserver() {
	_ = c.observer.Close(context.Background())
}
