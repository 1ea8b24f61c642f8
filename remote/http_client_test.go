/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package remote

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-docsubmit/config"
	"github.com/acronis/go-docsubmit/log"
	"github.com/acronis/go-docsubmit/log/logtest"
	"github.com/acronis/go-docsubmit/testutil"
)

func makeTestServer(statusCode int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(statusCode)
	}))
}

func TestNewRateLimitingRoundTripper(t *testing.T) {
	_, err := NewRateLimitingRoundTripper(http.DefaultTransport, 0, 0, 0)
	require.EqualError(t, err, "rate limit must be positive")
	_, err = NewRateLimitingRoundTripper(http.DefaultTransport, 1, -1, 0)
	require.EqualError(t, err, "burst must be positive")

	rt, err := NewRateLimitingRoundTripper(http.DefaultTransport, 1, 0, 0)
	require.NoError(t, err)
	require.Equal(t, DefaultRateLimitingWaitTimeout, rt.WaitTimeout)
}

func TestRateLimitingRoundTripper_RoundTrip(t *testing.T) {
	server := makeTestServer(http.StatusOK)
	defer server.Close()

	rt, err := NewRateLimitingRoundTripper(http.DefaultTransport, 1, 1, time.Millisecond*100)
	require.NoError(t, err)
	client := &http.Client{Transport: rt}

	resp, err := client.Post(server.URL, "application/json", bytes.NewReader([]byte("{}")))
	require.NoError(t, err)
	_ = resp.Body.Close()

	// The second request needs to wait ~1s for a token, which is longer than the wait timeout.
	_, err = client.Post(server.URL, "application/json", bytes.NewReader([]byte("{}")))
	var waitErr *RateLimitingWaitError
	require.ErrorAs(t, err, &waitErr)
}

func TestLoggingRoundTripper(t *testing.T) {
	okServer := makeTestServer(http.StatusOK)
	defer okServer.Close()
	failServer := makeTestServer(http.StatusInternalServerError)
	defer failServer.Close()

	doPost := func(client *http.Client, url string) {
		req, err := http.NewRequestWithContext(
			NewContextWithSubmissionID(context.Background(), "sub-42"), http.MethodPost, url, nil)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	t.Run("failed mode logs only failed requests", func(t *testing.T) {
		logRecorder := logtest.NewRecorder()
		client := &http.Client{Transport: &LoggingRoundTripper{
			Delegate: http.DefaultTransport, Logger: logRecorder, Mode: LoggingModeFailed,
		}}
		doPost(client, okServer.URL)
		require.Empty(t, logRecorder.Entries())

		doPost(client, failServer.URL)
		entry, found := logRecorder.FindEntry("client http request done")
		require.True(t, found)
		statusField, found := entry.FindField("status_code")
		require.True(t, found)
		require.Equal(t, int64(http.StatusInternalServerError), statusField.Int)
		idField, found := entry.FindField("submission_id")
		require.True(t, found)
		require.Equal(t, "sub-42", string(idField.Bytes))
	})

	t.Run("all mode", func(t *testing.T) {
		logRecorder := logtest.NewRecorder()
		client := &http.Client{Transport: &LoggingRoundTripper{
			Delegate: http.DefaultTransport, Logger: logRecorder, Mode: LoggingModeAll,
		}}
		doPost(client, okServer.URL)
		entry, found := logRecorder.FindEntry("client http request done")
		require.True(t, found)
		require.Equal(t, log.LevelInfo, entry.Level)
	})

	t.Run("none mode", func(t *testing.T) {
		logRecorder := logtest.NewRecorder()
		client := &http.Client{Transport: &LoggingRoundTripper{
			Delegate: http.DefaultTransport, Logger: logRecorder, Mode: LoggingModeNone,
		}}
		doPost(client, failServer.URL)
		require.Empty(t, logRecorder.Entries())
	})
}

func TestNewHTTPClient_Metrics(t *testing.T) {
	server := makeTestServer(http.StatusAccepted)
	defer server.Close()

	collector := NewPrometheusMetricsCollector("")
	client, err := NewHTTPClient(NewDefaultTransportConfig(), HTTPClientOpts{Collector: collector})
	require.NoError(t, err)

	resp, err := client.Post(server.URL, "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()

	host := server.Listener.Addr().String()
	testutil.RequireSamplesCountInHistogram(t,
		collector.Durations.WithLabelValues(host, http.MethodPost, "202").(prometheus.Histogram), 1)
}

func TestTransportConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := &TransportConfig{}
		require.NoError(t, config.NewLoader(config.NewViperAdapter()).LoadFromReader(
			bytes.NewReader([]byte("{}")), config.DataTypeJSON, cfg))
		require.Equal(t, NewDefaultTransportConfig(), cfg)
	})

	t.Run("custom values", func(t *testing.T) {
		cfgData := `
timeout: 5s
userAgent: docsubmit/1.0
logger:
  mode: all
  slowRequestThreshold: 1s
metrics:
  enabled: false
rateLimits:
  enabled: true
  limit: 20
  burst: 5
  waitTimeout: 2s
`
		cfg := &TransportConfig{}
		require.NoError(t, config.NewLoader(config.NewViperAdapter()).LoadFromReader(
			bytes.NewReader([]byte(cfgData)), config.DataTypeYAML, cfg))
		require.Equal(t, &TransportConfig{
			Timeout:   time.Second * 5,
			UserAgent: "docsubmit/1.0",
			Logger:    TransportLoggerConfig{Enabled: true, Mode: LoggingModeAll, SlowRequestThreshold: time.Second},
			Metrics:   TransportMetricsConfig{Enabled: false},
			RateLimits: TransportRateLimitConfig{
				Enabled: true, Limit: 20, Burst: 5, WaitTimeout: time.Second * 2,
			},
		}, cfg)
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name       string
			cfgData    string
			wantErrMsg string
		}{
			{"negative timeout", "timeout: -1s", "timeout: cannot be negative"},
			{"unknown logger mode", "logger:\n  mode: some", `logger.mode: unknown value "some", should be one of [none all failed]`},
			{"zero rate limit", "rateLimits:\n  enabled: true\n  limit: 0", "rateLimits.limit: must be positive"},
		}
		for i := range tests {
			tt := tests[i]
			t.Run(tt.name, func(t *testing.T) {
				cfg := &TransportConfig{}
				err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
					bytes.NewReader([]byte(tt.cfgData)), config.DataTypeYAML, cfg)
				require.EqualError(t, err, tt.wantErrMsg)
			})
		}
	})
}
