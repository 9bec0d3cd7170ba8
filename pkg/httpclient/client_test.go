package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onlydeal/DevHub/pkg/breaker"
)

func fastConfig() Config {
	return Config{
		Timeout:      time.Second,
		MaxRetries:   2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	}
}

func TestPostJSON_Success(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := New(fastConfig(), nil)
	err := c.PostJSON(context.Background(), srv.URL, map[string]string{"to": "ada@example.com"},
		http.Header{"Authorization": []string{"Bearer key"}})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got["to"])
}

func TestPostJSON_RetriesServerErrorsWithFullBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"n":1}`, string(body))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := New(fastConfig(), nil).PostJSON(context.Background(), srv.URL, map[string]int{"n": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPostJSON_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("bad address"))
	}))
	defer srv.Close()

	err := New(fastConfig(), nil).PostJSON(context.Background(), srv.URL, struct{}{}, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.Status)
	assert.Equal(t, "bad address", se.Body)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPostJSON_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := New(fastConfig(), nil).PostJSON(context.Background(), srv.URL, struct{}{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), calls.Load())
}

func TestStatusError_Retryable(t *testing.T) {
	assert.True(t, (&StatusError{Status: 503}).Retryable())
	assert.True(t, (&StatusError{Status: 429}).Retryable())
	assert.False(t, (&StatusError{Status: 501}).Retryable())
	assert.False(t, (&StatusError{Status: 400}).Retryable())
}

func TestCircuitBreakerClient_OpensAfterFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.MaxRetries = 0
	cbCfg := breaker.DefaultConfig("mail-api-test")
	cbCfg.MinRequests = 2
	cbCfg.Timeout = time.Hour

	c := NewCircuitBreakerClient(New(cfg, nil), cbCfg, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	for i := 0; i < 2; i++ {
		require.Error(t, c.PostJSON(context.Background(), srv.URL, struct{}{}, nil))
	}

	assert.Equal(t, gobreaker.StateOpen, c.State())
	assert.ErrorIs(t, c.PostJSON(context.Background(), srv.URL, struct{}{}, nil), ErrCircuitOpen)
}

func TestCircuitBreakerClient_ClientErrorsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := fastConfig()
	cbCfg := breaker.DefaultConfig("mail-api-4xx")
	cbCfg.MinRequests = 2

	c := NewCircuitBreakerClient(New(cfg, nil), cbCfg, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	for i := 0; i < 5; i++ {
		require.Error(t, c.PostJSON(context.Background(), srv.URL, struct{}{}, nil))
	}
	assert.Equal(t, gobreaker.StateClosed, c.State())
}
