/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func respondWith(resp TransportResponse, delay time.Duration) TransportFunc {
	return func(ctx context.Context, url string, body []byte, headers map[string]string) <-chan TransportResponse {
		respCh := make(chan TransportResponse, 1)
		go func() {
			time.Sleep(delay)
			respCh <- resp
		}()
		return respCh
	}
}

func TestAdapter_Call(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		adapter := NewAdapter(respondWith(TransportResponse{StatusCode: http.StatusOK}, 0), AdapterOpts{})
		res, err := adapter.Call(context.Background(), Request{SubmissionID: "s1"}).Wait(context.Background())
		require.NoError(t, err)
		require.True(t, res.Success())
		require.Equal(t, http.StatusOK, res.StatusCode)
	})

	t.Run("transport error", func(t *testing.T) {
		transportErr := errors.New("connection refused")
		adapter := NewAdapter(respondWith(TransportResponse{Err: transportErr}, 0), AdapterOpts{})
		res := adapter.Call(context.Background(), Request{SubmissionID: "s2"}).Result()
		require.False(t, res.Success())
		require.ErrorIs(t, res.Err, transportErr)
		var tErr *TransportError
		require.ErrorAs(t, res.Err, &tErr)
		require.Equal(t, "s2", tErr.SubmissionID)
	})

	t.Run("non-2xx status code is a failure", func(t *testing.T) {
		adapter := NewAdapter(respondWith(TransportResponse{StatusCode: http.StatusServiceUnavailable}, 0), AdapterOpts{})
		res := adapter.Call(context.Background(), Request{SubmissionID: "s3"}).Result()
		require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
		var statusErr *UnexpectedStatusError
		require.ErrorAs(t, res.Err, &statusErr)
		require.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	})

	t.Run("hung transport resolves to timeout exactly once", func(t *testing.T) {
		var resolved int32
		hung := TransportFunc(func(ctx context.Context, _ string, _ []byte, _ map[string]string) <-chan TransportResponse {
			return make(chan TransportResponse, 1) // never answers
		})
		adapter := NewAdapter(hung, AdapterOpts{CallTimeout: time.Millisecond * 30})
		future := adapter.Call(context.Background(), Request{SubmissionID: "s4"})
		future.OnComplete(func(Result) { atomic.AddInt32(&resolved, 1) })

		select {
		case <-future.Done():
		case <-time.After(time.Second):
			require.Fail(t, "call should be resolved by timeout")
		}
		res := future.Result()
		require.ErrorIs(t, res.Err, ErrCallTimeout)
		require.Equal(t, 0, res.StatusCode)
		require.False(t, future.resolve(Result{StatusCode: http.StatusOK}), "second resolution should be ignored")
		require.Eventually(t, func() bool { return atomic.LoadInt32(&resolved) == 1 }, time.Second, time.Millisecond)
		require.ErrorIs(t, future.Result().Err, ErrCallTimeout)
	})

	t.Run("late response after timeout is ignored", func(t *testing.T) {
		adapter := NewAdapter(respondWith(TransportResponse{StatusCode: http.StatusOK}, time.Millisecond*100),
			AdapterOpts{CallTimeout: time.Millisecond * 10})
		future := adapter.Call(context.Background(), Request{})
		res := future.Result()
		require.ErrorIs(t, res.Err, ErrCallTimeout)
		time.Sleep(time.Millisecond * 150)
		require.ErrorIs(t, future.Result().Err, ErrCallTimeout)
	})

	t.Run("canceled context", func(t *testing.T) {
		hung := TransportFunc(func(ctx context.Context, _ string, _ []byte, _ map[string]string) <-chan TransportResponse {
			return make(chan TransportResponse, 1)
		})
		adapter := NewAdapter(hung, AdapterOpts{CallTimeout: time.Minute})
		ctx, cancel := context.WithCancel(context.Background())
		future := adapter.Call(ctx, Request{})
		cancel()
		res := future.Result()
		require.ErrorIs(t, res.Err, context.Canceled)
		require.False(t, errors.Is(res.Err, ErrCallTimeout))
	})

	t.Run("wait respects context", func(t *testing.T) {
		adapter := NewAdapter(respondWith(TransportResponse{StatusCode: http.StatusOK}, time.Second), AdapterOpts{})
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*10)
		defer cancel()
		_, err := adapter.Call(context.Background(), Request{}).Wait(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestAdapter_CallOverHTTP(t *testing.T) {
	type received struct {
		body      requestBody
		header    http.Header
		method    string
		requestID string
	}
	receivedCh := make(chan received, 1)
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var body requestBody
		assert.NoError(t, json.Unmarshal(data, &body))
		receivedCh <- received{body: body, header: r.Header, method: r.Method, requestID: r.Header.Get(RequestIDHeader)}
		rw.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	cfg := NewDefaultTransportConfig()
	cfg.UserAgent = "docsubmit-test"
	client, err := NewHTTPClient(cfg, HTTPClientOpts{})
	require.NoError(t, err)

	adapter := NewAdapter(NewHTTPTransport(client), AdapterOpts{
		URL:     server.URL,
		Headers: map[string]string{"x-api-version": "3"},
	})
	res := adapter.Call(context.Background(), Request{SubmissionID: "sub-1", DocumentValue: "doc", Signature: "+1"}).Result()
	require.NoError(t, res.Err)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	got := <-receivedCh
	require.Equal(t, http.MethodPost, got.method)
	require.Equal(t, requestBody{DocumentValue: "doc", Signature: "+1"}, got.body)
	require.Equal(t, "application/json", got.header.Get("Content-Type"))
	require.Equal(t, "3", got.header.Get("X-Api-Version"))
	require.Equal(t, "docsubmit-test", got.header.Get("User-Agent"))
	require.Equal(t, "sub-1", got.requestID)
}

func TestNewAdapter_Defaults(t *testing.T) {
	adapter := NewAdapter(respondWith(TransportResponse{}, 0), AdapterOpts{})
	require.Equal(t, DefaultURL, adapter.url)
	require.Equal(t, DefaultCallTimeout, adapter.CallTimeout())
	require.Equal(t, "application/json", adapter.headers["Content-Type"])
}
