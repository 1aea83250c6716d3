// Package http is the outbound HTTP client shared by the service integrations.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Alias1177/PickGate/internal/trace"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const userAgent = "pickgate/1"

// Client is a rate limited HTTP client that retries transient failures
type Client struct {
	HTTPClient      *http.Client
	Limiter         *rate.Limiter
	MaxRetries      int
	MaxRetryTimeout time.Duration
	logger          zerolog.Logger
}

// ClientOptions holds options for creating a new Client
type ClientOptions struct {
	Timeout         time.Duration
	RequestsPerSec  int
	MaxRetries      int
	MaxRetryTimeout time.Duration
}

// NewClient creates a client. Zero options fall back to 30s timeout, 5 req/s and 3 retries.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.MaxRetryTimeout == 0 {
		opts.MaxRetryTimeout = 30 * time.Second
	}

	return &Client{
		HTTPClient:      &http.Client{Timeout: opts.Timeout},
		Limiter:         rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.RequestsPerSec),
		MaxRetries:      opts.MaxRetries,
		MaxRetryTimeout: opts.MaxRetryTimeout,
		logger:          log.With().Str("component", "http_client").Logger(),
	}
}

// StatusError is returned for any non-2xx response
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Retryable reports whether another attempt could succeed
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Do sends the request built by newReq, rebuilding it for every attempt.
// 5xx and 429 responses are retried with exponential backoff; other non-2xx
// responses fail at once. The caller owns the body of the returned response.
func (c *Client) Do(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	traceID := trace.FromContext(ctx)

	var resp *http.Response
	operation := func() error {
		if err := c.Limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := newReq(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)
		if traceID != "" {
			req.Header.Set(trace.HeaderName, traceID)
		}

		r, err := c.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		if r.StatusCode < 200 || r.StatusCode > 299 {
			io.Copy(io.Discard, r.Body)
			r.Body.Close()
			serr := &StatusError{Method: req.Method, URL: req.URL.String(), StatusCode: r.StatusCode}
			if !serr.Retryable() {
				return backoff.Permanent(serr)
			}
			return serr
		}
		resp = r
		return nil
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.InitialInterval = 100 * time.Millisecond
	strategy.MaxElapsedTime = c.MaxRetryTimeout
	policy := backoff.WithContext(backoff.WithMaxRetries(strategy, uint64(c.MaxRetries)), ctx)

	notify := func(err error, wait time.Duration) {
		c.logger.Warn().Err(err).Str("trace_id", traceID).Dur("retry_in", wait).Msg("Request failed, retrying")
	}
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetJSON fetches url and decodes the JSON body into dst
func (c *Client) GetJSON(ctx context.Context, url string, dst any) error {
	resp, err := c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		c.logger.Error().Err(err).Str("url", url).Str("response", string(body)).Msg("Error parsing JSON")
		return fmt.Errorf("parsing JSON from %s: %w", url, err)
	}
	return nil
}
