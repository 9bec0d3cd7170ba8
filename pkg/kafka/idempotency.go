package kafka

import (
	"context"
	"log/slog"
)

// IdempotencyStore records processed event ids.
type IdempotencyStore interface {
	// Claim marks eventID as processed and reports whether this call was the
	// first to do so.
	Claim(ctx context.Context, eventID string) (bool, error)
	// Release forgets eventID so a failed delivery can be retried.
	Release(ctx context.Context, eventID string) error
}

// IdempotentHandler skips events whose id was already claimed. The claim is
// released when inner fails. Store errors are logged and the event is
// processed anyway.
func IdempotentHandler(store IdempotencyStore, inner Handler, logger *slog.Logger) Handler {
	return func(ctx context.Context, event *Event) error {
		if event.EventID == "" {
			return inner(ctx, event)
		}

		first, err := store.Claim(ctx, event.EventID)
		if err != nil {
			logger.WarnContext(ctx, "idempotency claim failed, processing anyway",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
			return inner(ctx, event)
		}
		if !first {
			consumerMessagesDuplicate.WithLabelValues(event.EventType).Inc()
			logger.DebugContext(ctx, "skipping duplicate event",
				slog.String("event_id", event.EventID),
				slog.String("event_type", event.EventType),
			)
			return nil
		}

		if err := inner(ctx, event); err != nil {
			if relErr := store.Release(ctx, event.EventID); relErr != nil {
				logger.WarnContext(ctx, "failed to release idempotency claim",
					slog.String("event_id", event.EventID),
					slog.String("error", relErr.Error()),
				)
			}
			return err
		}
		return nil
	}
}
