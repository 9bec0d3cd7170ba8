// Package httpclient is an outbound HTTP client with retries, client-side rate
// limiting and an optional circuit breaker.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Config holds HTTP client configuration.
type Config struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RatePerSecond caps outbound requests; zero disables limiting.
	RatePerSecond float64
	Burst         int
}

// DefaultConfig returns defaults suited to a third-party API.
func DefaultConfig() Config {
	return Config{
		Timeout:       10 * time.Second,
		MaxRetries:    3,
		RetryWaitMin:  500 * time.Millisecond,
		RetryWaitMax:  5 * time.Second,
		RatePerSecond: 10,
		Burst:         5,
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || (e.Status >= 500 && e.Status != http.StatusNotImplemented)
}

// Client sends requests with exponential-backoff retries.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	config     Config
}

// New creates a Client. A nil transport uses http.DefaultTransport.
func New(cfg Config, transport http.RoundTripper) *Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	c := &Client{
		httpClient: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		config:     cfg,
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return c
}

func (c *Client) wait(attempt int) time.Duration {
	d := c.config.RetryWaitMin << (attempt - 1)
	if d > c.config.RetryWaitMax || d <= 0 {
		d = c.config.RetryWaitMax
	}
	return d
}

// PostJSON marshals payload and POSTs it to url. The body is rebuilt for
// every attempt. 2xx responses return nil; anything else a *StatusError.
func (c *Client) PostJSON(ctx context.Context, url string, payload any, header http.Header) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.wait(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
		}

		lastErr = c.post(ctx, url, body, header)
		if lastErr == nil || !retryable(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("request failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) post(ctx context.Context, url string, body []byte, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return &StatusError{Status: resp.StatusCode, Body: string(raw)}
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	var ne net.Error
	return errors.As(err, &ne)
}
