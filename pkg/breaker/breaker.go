// Package breaker builds sony/gobreaker settings shared by every protected
// dependency: a failure-ratio trip rule, state-change logging and a state gauge.
package breaker

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

// Config describes when a breaker trips and how long it stays open.
type Config struct {
	Name         string
	MaxRequests  uint32        // probes allowed while half-open
	Interval     time.Duration // closed-state count reset period; 0 never resets
	Timeout      time.Duration // open duration before probing
	FailureRatio float64
	MinRequests  uint32
}

// DefaultConfig trips after half of at least 5 requests fail and probes after 30s.
func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

var stateGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
	},
	[]string{"name"},
)

// StateValue maps a breaker state to its gauge value.
func StateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Settings converts cfg into gobreaker settings. isSuccessful may be nil.
func Settings(cfg Config, logger *slog.Logger, isSuccessful func(error) bool) gobreaker.Settings {
	stateGauge.WithLabelValues(cfg.Name).Set(0)
	return gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			stateGauge.WithLabelValues(name).Set(StateValue(to))
		},
		IsSuccessful: isSuccessful,
	}
}

// New creates a typed breaker from cfg.
func New[T any](cfg Config, logger *slog.Logger) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](Settings(cfg, logger, nil))
}
