package app

import (
	"context"
	"log/slog"
	"time"
)

const cleanupTimeout = 5 * time.Second

// cleanup releases what a constructor already acquired when a later step
// fails. Steps run in reverse order of registration, and only once.
type cleanup struct {
	logger *slog.Logger
	names  []string
	steps  []func(context.Context) error
}

func newCleanup(logger *slog.Logger) *cleanup {
	return &cleanup{logger: logger}
}

func (c *cleanup) add(name string, step func(context.Context) error) {
	c.names = append(c.names, name)
	c.steps = append(c.steps, step)
}

func (c *cleanup) run() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	for i := len(c.steps) - 1; i >= 0; i-- {
		if err := c.steps[i](ctx); err != nil {
			c.logger.Error("cleanup step failed",
				slog.String("step", c.names[i]),
				slog.String("error", err.Error()),
			)
		}
	}
	c.names, c.steps = nil, nil
}
