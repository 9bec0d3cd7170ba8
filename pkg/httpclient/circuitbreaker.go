package httpclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sony/gobreaker/v2"

	"github.com/onlydeal/DevHub/pkg/breaker"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = gobreaker.ErrOpenState

// CircuitBreakerClient guards a Client with a circuit breaker. Client errors
// (4xx other than 429) do not count as failures.
type CircuitBreakerClient struct {
	client  *Client
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewCircuitBreakerClient wraps client with a breaker configured by cfg.
func NewCircuitBreakerClient(client *Client, cfg breaker.Config, logger *slog.Logger) *CircuitBreakerClient {
	settings := breaker.Settings(cfg, logger, func(err error) bool {
		var se *StatusError
		if errors.As(err, &se) {
			return !se.Retryable()
		}
		return err == nil
	})
	return &CircuitBreakerClient{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// PostJSON sends payload through the breaker.
func (c *CircuitBreakerClient) PostJSON(ctx context.Context, url string, payload any, header http.Header) error {
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.client.PostJSON(ctx, url, payload, header)
	})
	return err
}

// State returns the current breaker state.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.breaker.State()
}
