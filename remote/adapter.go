/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package remote sends signed documents to the remote API.
// Every call resolves its Future exactly once: with the transport response,
// or with a failure when the call deadline passes or the context is canceled first.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// DefaultURL is the URL of the remote API used when none is configured.
const DefaultURL = "https://example.com/mock-api"

// DefaultCallTimeout is a default deadline of a single remote call.
const DefaultCallTimeout = 10 * time.Second

// ErrCallTimeout is wrapped by the failure of a call that has not been completed within the call timeout.
var ErrCallTimeout = errors.New("remote call timed out")

// Request is a signed document to be sent.
type Request struct {
	SubmissionID  string
	DocumentValue string
	Signature     string
}

type requestBody struct {
	DocumentValue string `json:"documentValue"`
	Signature     string `json:"signature"`
}

// Result is an outcome of a remote call. The call succeeded if Err is nil.
type Result struct {
	StatusCode int
	Duration   time.Duration
	Err        error
}

// Success reports whether the remote call succeeded.
func (r Result) Success() bool {
	return r.Err == nil
}

// TransportError describes a failed remote call of the submission.
type TransportError struct {
	SubmissionID string
	Err          error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("remote call for submission %s failed: %s", e.SubmissionID, e.Err.Error())
}

// Unwrap returns the next error in the error chain.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// UnexpectedStatusError is the cause of a failure when the remote API responds with a non-2xx status code.
type UnexpectedStatusError struct {
	StatusCode int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.StatusCode)
}

// Future is a one-shot holder of a call's Result.
type Future struct {
	once   sync.Once
	done   chan struct{}
	result Result
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// resolve sets the result if the future is not resolved yet and reports whether it did.
func (f *Future) resolve(r Result) bool {
	resolved := false
	f.once.Do(func() {
		f.result = r
		close(f.done)
		resolved = true
	})
	return resolved
}

// Done returns a channel that is closed when the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result blocks until the future is resolved and returns the result of the call.
func (f *Future) Result() Result {
	<-f.done
	return f.result
}

// Wait blocks until the result is available or ctx is done.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// OnComplete calls fn with the result in a separate goroutine once the future is resolved.
func (f *Future) OnComplete(fn func(Result)) {
	go func() {
		<-f.done
		fn(f.result)
	}()
}

// AdapterOpts represents options for Adapter.
type AdapterOpts struct {
	// URL of the remote API. DefaultURL is used if empty.
	URL string

	// Headers are sent with every call in addition to "Content-Type: application/json".
	Headers map[string]string

	// CallTimeout bounds every call. DefaultCallTimeout is used if zero or negative.
	CallTimeout time.Duration
}

// Adapter issues asynchronous calls of the remote API.
type Adapter struct {
	transport   Transport
	url         string
	headers     map[string]string
	callTimeout time.Duration
}

// NewAdapter creates a new Adapter.
func NewAdapter(transport Transport, opts AdapterOpts) *Adapter {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	headers := make(map[string]string, len(opts.Headers)+1)
	headers["Content-Type"] = "application/json"
	for name, value := range opts.Headers {
		headers[http.CanonicalHeaderKey(name)] = value
	}
	return &Adapter{transport: transport, url: opts.URL, headers: headers, callTimeout: opts.CallTimeout}
}

// CallTimeout returns the deadline of a single call.
func (a *Adapter) CallTimeout() time.Duration {
	return a.callTimeout
}

// Call sends the request and returns immediately. The returned Future is resolved exactly once.
func (a *Adapter) Call(ctx context.Context, req Request) *Future {
	f := newFuture()
	start := time.Now()

	body, err := json.Marshal(requestBody{DocumentValue: req.DocumentValue, Signature: req.Signature})
	if err != nil {
		f.resolve(Result{Err: &TransportError{req.SubmissionID, fmt.Errorf("encode request body: %w", err)}})
		return f
	}

	callCtx, cancel := context.WithTimeout(NewContextWithSubmissionID(ctx, req.SubmissionID), a.callTimeout)
	respCh := a.transport.PostAsync(callCtx, a.url, body, a.headers)

	go func() {
		defer cancel()
		select {
		case resp := <-respCh:
			f.resolve(a.makeResult(req, resp, time.Since(start)))
		case <-callCtx.Done():
			cause := callCtx.Err()
			if ctx.Err() == nil && errors.Is(cause, context.DeadlineExceeded) {
				cause = fmt.Errorf("%w after %s", ErrCallTimeout, a.callTimeout)
			}
			f.resolve(Result{Duration: time.Since(start), Err: &TransportError{req.SubmissionID, cause}})
		}
	}()
	return f
}

func (a *Adapter) makeResult(req Request, resp TransportResponse, elapsed time.Duration) Result {
	res := Result{StatusCode: resp.StatusCode, Duration: elapsed}
	switch {
	case resp.Err != nil:
		res.Err = &TransportError{req.SubmissionID, resp.Err}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		res.Err = &TransportError{req.SubmissionID, &UnexpectedStatusError{StatusCode: resp.StatusCode}}
	}
	return res
}
