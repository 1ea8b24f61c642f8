/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxDrainedBodySize limits how many bytes of the response body are read before closing it,
// so the underlying connection can be reused.
const maxDrainedBodySize = 64 * 1024

// TransportResponse is a terminal outcome of an asynchronous POST.
type TransportResponse struct {
	StatusCode int
	Err        error
}

// Transport sends JSON bodies asynchronously.
// PostAsync must return immediately and deliver exactly one TransportResponse to the returned channel.
// The channel must be buffered (or otherwise never block the sender) since the receiver may stop waiting
// after the call deadline.
type Transport interface {
	PostAsync(ctx context.Context, url string, body []byte, headers map[string]string) <-chan TransportResponse
}

// TransportFunc is an adapter to allow the use of ordinary functions as Transport.
type TransportFunc func(ctx context.Context, url string, body []byte, headers map[string]string) <-chan TransportResponse

// PostAsync implements Transport.
func (f TransportFunc) PostAsync(
	ctx context.Context, url string, body []byte, headers map[string]string,
) <-chan TransportResponse {
	return f(ctx, url, body, headers)
}

// HTTPTransport is a Transport that sends requests via *http.Client, each one in its own goroutine.
type HTTPTransport struct {
	client *http.Client
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport.
// Use NewHTTPClient to build a client with logging, metrics and rate limiting round trippers.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{client: client}
}

// PostAsync implements Transport.
func (t *HTTPTransport) PostAsync(
	ctx context.Context, url string, body []byte, headers map[string]string,
) <-chan TransportResponse {
	respCh := make(chan TransportResponse, 1)
	go func() {
		statusCode, err := t.post(ctx, url, body, headers)
		respCh <- TransportResponse{StatusCode: statusCode, Err: err}
	}()
	return respCh
}

func (t *HTTPTransport) post(ctx context.Context, url string, body []byte, headers map[string]string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainedBodySize))
		_ = resp.Body.Close()
	}()
	return resp.StatusCode, nil
}
