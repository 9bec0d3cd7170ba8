package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanup_RunsStepsInReverseOnce(t *testing.T) {
	undo := newCleanup(slog.New(slog.NewTextHandler(io.Discard, nil)))
	var order []string
	step := func(name string, err error) func(context.Context) error {
		return func(ctx context.Context) error {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			order = append(order, name)
			return err
		}
	}

	undo.add("tracer", step("tracer", nil))
	undo.add("postgres", step("postgres", errors.New("already closed")))
	undo.add("redis", step("redis", nil))

	undo.run()
	undo.run()

	assert.Equal(t, []string{"redis", "postgres", "tracer"}, order)
}

func TestCleanup_EmptyIsNoop(t *testing.T) {
	undo := newCleanup(slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NotPanics(t, undo.run)
}
