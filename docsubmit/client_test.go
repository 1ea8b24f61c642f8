/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package docsubmit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/acronis/go-docsubmit/admission"
	"github.com/acronis/go-docsubmit/log/logtest"
	"github.com/acronis/go-docsubmit/observe"
	"github.com/acronis/go-docsubmit/remote"
	"github.com/acronis/go-docsubmit/signing"
	"github.com/acronis/go-docsubmit/testutil"
)

type mockTransport struct {
	calls  atomic.Int32
	mu     sync.Mutex
	bodies [][]byte
	delay  time.Duration
}

func (m *mockTransport) PostAsync(
	ctx context.Context, url string, body []byte, headers map[string]string,
) <-chan remote.TransportResponse {
	m.calls.Inc()
	m.mu.Lock()
	m.bodies = append(m.bodies, body)
	m.mu.Unlock()

	respCh := make(chan remote.TransportResponse, 1)
	go func() {
		if m.delay > 0 {
			select {
			case <-time.After(m.delay):
			case <-ctx.Done():
				respCh <- remote.TransportResponse{Err: ctx.Err()}
				return
			}
		}
		respCh <- remote.TransportResponse{StatusCode: http.StatusOK}
	}()
	return respCh
}

type eventsCollector struct {
	mu     sync.Mutex
	events []observe.Event
}

func (c *eventsCollector) Observe(e observe.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *eventsCollector) Count(kind observe.EventKind, failed bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cnt := 0
	for _, e := range c.events {
		if e.Kind == kind && e.Failed() == failed {
			cnt++
		}
	}
	return cnt
}

func (c *eventsCollector) Find(kind observe.EventKind) []observe.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var found []observe.Event
	for _, e := range c.events {
		if e.Kind == kind {
			found = append(found, e)
		}
	}
	return found
}

func newTestConfig(limit int, windowDuration time.Duration) *Config {
	cfg := NewDefaultConfig()
	cfg.RequestLimit = limit
	cfg.WindowDuration = windowDuration
	return cfg
}

func newSigner() signing.Signer {
	return signing.SignerFunc(func(string, string) error { return nil })
}

func TestNew(t *testing.T) {
	_, err := New(nil, newSigner(), Opts{})
	require.EqualError(t, err, "config should be specified")

	_, err = New(NewDefaultConfig(), nil, Opts{})
	require.EqualError(t, err, "signer should be specified")

	_, err = New(newTestConfig(0, time.Second), newSigner(), Opts{})
	require.Error(t, err)

	_, err = New(newTestConfig(1, 0), newSigner(), Opts{Transport: &mockTransport{}})
	require.Error(t, err)

	cfg := NewDefaultConfig()
	cfg.Saturation.Policy = "unknown"
	_, err = New(cfg, newSigner(), Opts{Transport: &mockTransport{}})
	require.Error(t, err)
}

func TestClient_CreateDocumentAndSign(t *testing.T) {
	t.Run("concurrent requests above the limit are rejected until the window is reset", func(t *testing.T) {
		transport := &mockTransport{}
		collector := &eventsCollector{}
		client, err := New(newTestConfig(3, time.Second), newSigner(), Opts{Transport: transport, Observer: collector})
		require.NoError(t, err)
		client.Start()
		require.Eventually(t, func() bool { return client.clock.Ticks() == 1 }, time.Second, time.Millisecond)

		var admitted, rejected atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := client.CreateDocumentAndSign(context.Background(), Document{Value: "doc"}, "+"+strconv.Itoa(i))
				switch {
				case err == nil:
					admitted.Inc()
				case errors.Is(err, ErrAdmissionRejected):
					rejected.Inc()
				default:
					assert.NoError(t, err)
				}
			}(i)
		}
		wg.Wait()
		require.Equal(t, int32(3), admitted.Load())
		require.Equal(t, int32(2), rejected.Load())
		require.Equal(t, 3, client.RequestCount())

		require.Eventually(t, func() bool {
			return client.RequestCount() == 0
		}, 3*time.Second, 10*time.Millisecond, "request count should be reset by the window clock")
		_, err = client.CreateDocumentAndSign(context.Background(), Document{Value: "doc"}, "+5")
		require.NoError(t, err)

		require.NoError(t, client.Shutdown(context.Background()))
		require.Equal(t, int32(4), transport.calls.Load())
		require.Equal(t, 4, collector.Count(observe.EventRemoteCallCompleted, false))
		require.Equal(t, 2, collector.Count(observe.EventAdmission, true))
		require.Equal(t, 4, collector.Count(observe.EventAdmission, false))
	})

	t.Run("request body", func(t *testing.T) {
		transport := &mockTransport{}
		client, err := New(newTestConfig(1, time.Second), newSigner(), Opts{Transport: transport})
		require.NoError(t, err)

		_, err = client.CreateDocumentAndSign(context.Background(), Document{Value: "value-1"}, "+1")
		require.NoError(t, err)
		require.NoError(t, client.Shutdown(context.Background()))

		require.Len(t, transport.bodies, 1)
		var body map[string]string
		require.NoError(t, json.Unmarshal(transport.bodies[0], &body))
		require.Equal(t, map[string]string{"documentValue": "value-1", "signature": "+1"}, body)
	})

	t.Run("signing failure is observed and no remote call is made", func(t *testing.T) {
		transport := &mockTransport{}
		collector := &eventsCollector{}
		signer := signing.SignerFunc(func(string, string) error { return errors.New("no key") })
		client, err := New(newTestConfig(1, time.Second), signer, Opts{Transport: transport, Observer: collector})
		require.NoError(t, err)

		id, err := client.CreateDocumentAndSign(context.Background(), Document{Value: "doc"}, "+1")
		require.NoError(t, err)
		require.NotEmpty(t, id)
		require.NoError(t, client.Shutdown(context.Background()))

		require.Equal(t, int32(0), transport.calls.Load())
		require.Equal(t, 1, collector.Count(observe.EventSigningFailed, true))
		failed := collector.Find(observe.EventSigningFailed)
		require.Len(t, failed, 1)
		require.Equal(t, id, failed[0].SubmissionID, "failure should carry the ID returned to the caller")
		require.Equal(t, 0, collector.Count(observe.EventRemoteCallCompleted, false))
		require.Equal(t, 0, collector.Count(observe.EventRemoteCallCompleted, true))
	})

	t.Run("canceled context", func(t *testing.T) {
		client, err := New(newTestConfig(1, time.Second), newSigner(), Opts{Transport: &mockTransport{}})
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = client.CreateDocumentAndSign(ctx, Document{Value: "doc"}, "+1")
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 0, client.RequestCount())
		require.NoError(t, client.Shutdown(context.Background()))
	})
}

func TestClient_TryAdmitAndSubmit(t *testing.T) {
	transport := &mockTransport{}
	client, err := New(newTestConfig(2, time.Hour), newSigner(), Opts{Transport: transport})
	require.NoError(t, err)

	require.Equal(t, admission.Admitted, client.TryAdmit())
	id, err := client.Submit(Document{Value: "doc"}, "+1")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, admission.Admitted, client.TryAdmit())
	require.Equal(t, admission.Rejected, client.TryAdmit())

	require.NoError(t, client.Shutdown(context.Background()))
	require.Equal(t, admission.ShuttingDown, client.TryAdmit())
	_, err = client.Submit(Document{Value: "doc"}, "+2")
	require.ErrorIs(t, err, ErrShutdownInProgress)
}

func TestClient_Shutdown(t *testing.T) {
	t.Run("new submissions are refused after shutdown", func(t *testing.T) {
		transport := &mockTransport{}
		client, err := New(newTestConfig(10, time.Second), newSigner(), Opts{Transport: transport})
		require.NoError(t, err)
		client.Start()

		require.NoError(t, client.Shutdown(context.Background()))
		require.NoError(t, client.Shutdown(context.Background()))

		_, err = client.CreateDocumentAndSign(context.Background(), Document{Value: "doc"}, "+1")
		require.ErrorIs(t, err, ErrShutdownInProgress)
		require.Equal(t, 0, client.RequestCount())
		require.Equal(t, int32(0), transport.calls.Load())
	})

	t.Run("calls after shutdown are not observed", func(t *testing.T) {
		collector := &eventsCollector{}
		client, err := New(newTestConfig(10, time.Second), newSigner(), Opts{
			Transport: &mockTransport{}, Observer: collector,
		})
		require.NoError(t, err)
		require.NoError(t, client.Shutdown(context.Background()))
		eventsBefore := len(collector.Find(observe.EventAdmission))

		for i := 0; i < 5; i++ {
			require.Equal(t, admission.ShuttingDown, client.TryAdmit())
			_, err = client.CreateDocumentAndSign(context.Background(), Document{Value: "doc"}, "+"+strconv.Itoa(i))
			require.ErrorIs(t, err, ErrShutdownInProgress)
		}
		require.Equal(t, eventsBefore, len(collector.Find(observe.EventAdmission)))
		require.Equal(t, uint64(0), client.observer.Dropped())
	})

	t.Run("accepted submissions are completed", func(t *testing.T) {
		transport := &mockTransport{delay: 50 * time.Millisecond}
		collector := &eventsCollector{}
		client, err := New(newTestConfig(5, time.Second), newSigner(), Opts{Transport: transport, Observer: collector})
		require.NoError(t, err)
		client.Start()

		for i := 0; i < 5; i++ {
			_, err = client.CreateDocumentAndSign(context.Background(), Document{Value: "doc"}, "+"+strconv.Itoa(i))
			require.NoError(t, err)
		}
		require.NoError(t, client.Shutdown(context.Background()))
		require.Equal(t, 5, collector.Count(observe.EventRemoteCallCompleted, false))
		require.Equal(t, 0, client.InFlight())
	})

	t.Run("grace period expires", func(t *testing.T) {
		transport := &mockTransport{delay: time.Minute}
		collector := &eventsCollector{}
		cfg := newTestConfig(5, time.Second)
		cfg.ShutdownGracePeriod = 100 * time.Millisecond
		client, err := New(cfg, newSigner(), Opts{Transport: transport, Observer: collector})
		require.NoError(t, err)

		_, err = client.CreateDocumentAndSign(context.Background(), Document{Value: "doc"}, "+1")
		require.NoError(t, err)
		require.Eventually(t, func() bool { return transport.calls.Load() == 1 }, time.Second, 10*time.Millisecond)

		err = client.Shutdown(context.Background())
		testutil.RequireErrorIsAny(t, err, []error{context.DeadlineExceeded})
		require.Eventually(t, func() bool {
			return collector.Count(observe.EventRemoteCallCompleted, true) == 1
		}, time.Second, 10*time.Millisecond)
	})
}

func TestClient_LogsWindowReset(t *testing.T) {
	logRecorder := logtest.NewRecorder()
	client, err := New(newTestConfig(1, 20*time.Millisecond), newSigner(), Opts{
		Transport: &mockTransport{}, Logger: logRecorder,
	})
	require.NoError(t, err)
	client.Start()

	require.Eventually(t, func() bool {
		return len(logRecorder.FindAllEntries("request count reset")) >= 2
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, client.Shutdown(context.Background()))
}

func TestClient_OverHTTP(t *testing.T) {
	var received atomic.Int32
	handlerErrs := make(chan error, 10)
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		received.Inc()
		switch {
		case r.Header.Get("Content-Type") != "application/json":
			handlerErrs <- fmt.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		case r.Header.Get("X-Api-Key") != "secret":
			handlerErrs <- fmt.Errorf("unexpected api key %q", r.Header.Get("X-Api-Key"))
		case r.Header.Get(remote.RequestIDHeader) == "":
			handlerErrs <- errors.New("request id is missing")
		}
		rw.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	cfg := newTestConfig(3, time.Second)
	cfg.API.URL = server.URL
	cfg.API.Headers = map[string]string{"x-api-key": "secret"}
	collector := &eventsCollector{}
	client, err := New(cfg, newSigner(), Opts{Observer: collector})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = client.CreateDocumentAndSign(context.Background(), Document{Value: "doc"}, "+"+strconv.Itoa(i))
		require.NoError(t, err)
	}
	_, err = client.CreateDocumentAndSign(context.Background(), Document{Value: "doc"}, "+3")
	require.ErrorIs(t, err, ErrAdmissionRejected)

	require.NoError(t, client.Shutdown(context.Background()))
	require.Equal(t, int32(3), received.Load())
	testutil.RequireNoErrorInChannel(t, handlerErrs)
	require.Equal(t, 3, collector.Count(observe.EventRemoteCallCompleted, false))
}

func TestClient_Metrics(t *testing.T) {
	client, err := New(newTestConfig(1, time.Second), newSigner(), Opts{
		Transport: &mockTransport{}, MetricsNamespace: "docsubmit_test",
	})
	require.NoError(t, err)
	client.MustRegisterMetrics()
	defer client.UnregisterMetrics()
	require.NoError(t, client.Shutdown(context.Background()))
}
