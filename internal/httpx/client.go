// Package httpx provides the Retrying HTTP Client the dispatch core uses
// for service invocation and subscription registration.
package httpx

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/nemaniarjun/storyengine/internal/storymodel"
)

// Client wraps http.Client with FetchWithRetry, the only method the
// dispatch core's HTTPClient interface requires.
type Client struct {
	// HTTP is the underlying http.Client. If nil, http.DefaultClient is used.
	HTTP *http.Client

	// Backoff is the delay before the second attempt; it doubles on each
	// subsequent attempt. Defaults to 1s if zero.
	Backoff time.Duration
}

// New returns a Client with default settings.
func New() *Client {
	return &Client{}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) backoff() time.Duration {
	if c.Backoff > 0 {
		return c.Backoff
	}
	return time.Second
}

// FetchWithRetry sends req, retrying up to attempts times with exponential
// backoff (1s, 2s, 4s, ...) on transport-level failure. A non-2xx response
// is returned to the caller unchanged — only a transport error (connection
// refused, timeout, DNS failure) triggers a retry.
//
// req.Body, if present, is buffered up front so it can be replayed across
// attempts.
func (c *Client) FetchWithRetry(ctx context.Context, logger storymodel.Logger, attempts int, req *http.Request) (*http.Response, error) {
	if attempts < 1 {
		attempts = 1
	}

	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
	}

	backoff := c.backoff()
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt > 0 {
			if logger != nil {
				logger.Debug("retrying %s %s (attempt %d/%d)", req.Method, req.URL, attempt+1, attempts)
			}
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
		}

		attemptReq := req.Clone(ctx)
		if bodyBytes != nil {
			attemptReq.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			attemptReq.ContentLength = int64(len(bodyBytes))
		}

		resp, err := c.httpClient().Do(attemptReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
