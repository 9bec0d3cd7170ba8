package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/onlydeal/DevHub/internal/event"
	pkgkafka "github.com/onlydeal/DevHub/pkg/kafka"
)

// Topics consumed by the mailer.
var Topics = []string{
	event.TopicPasswordResetRequested,
	event.TopicUserRegistered,
}

// Worker renders auth events into messages and hands them to a Sender.
type Worker struct {
	sender Sender
	logger *slog.Logger
}

// NewWorker creates a new mailer worker.
func NewWorker(sender Sender, logger *slog.Logger) *Worker {
	return &Worker{sender: sender, logger: logger}
}

// Handle routes an event by type. Unknown types are acknowledged and ignored.
func (w *Worker) Handle(ctx context.Context, evt *pkgkafka.Event) error {
	var (
		msg *Message
		err error
	)
	switch evt.EventType {
	case event.TypePasswordResetRequested:
		msg, err = w.renderPasswordReset(evt)
	case event.TypeUserRegistered:
		msg, err = w.renderWelcome(evt)
	default:
		w.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", evt.EventType),
			slog.String("event_id", evt.EventID),
		)
		return nil
	}
	if err != nil {
		return err
	}

	if err := w.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("deliver %s via %s: %w", evt.EventType, w.sender.Name(), err)
	}

	w.logger.InfoContext(ctx, "message delivered",
		slog.String("event_type", evt.EventType),
		slog.String("event_id", evt.EventID),
		slog.String("sender", w.sender.Name()),
	)
	return nil
}

func (w *Worker) renderPasswordReset(evt *pkgkafka.Event) (*Message, error) {
	var data event.PasswordResetRequestedData
	if err := evt.UnmarshalData(&data); err != nil {
		return nil, fmt.Errorf("decode password reset payload: %w", err)
	}
	if data.Email == "" || data.ResetURL == "" {
		return nil, fmt.Errorf("password reset payload for user %q is missing email or url", data.UserID)
	}

	expiry := time.Duration(data.ExpiresIn) * time.Second

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", displayName(data.Name))
	b.WriteString("We received a request to reset your DevHub password.\n")
	b.WriteString("Open the link below to choose a new one:\n\n")
	fmt.Fprintf(&b, "%s\n\n", data.ResetURL)
	if expiry > 0 {
		fmt.Fprintf(&b, "The link expires in %s and can be used once.\n", expiry)
	}
	b.WriteString("If you did not ask for this, you can ignore this email.\n")

	return &Message{
		To:      data.Email,
		Subject: "Reset your DevHub password",
		Body:    b.String(),
	}, nil
}

func (w *Worker) renderWelcome(evt *pkgkafka.Event) (*Message, error) {
	var data event.UserRegisteredData
	if err := evt.UnmarshalData(&data); err != nil {
		return nil, fmt.Errorf("decode user registered payload: %w", err)
	}
	if data.Email == "" {
		return nil, fmt.Errorf("user registered payload for user %q is missing email", data.UserID)
	}

	return &Message{
		To:      data.Email,
		Subject: "Welcome to DevHub",
		Body: fmt.Sprintf("Hi %s,\n\nYour DevHub account is ready. "+
			"Complete your profile so other developers can find you.\n", displayName(data.Name)),
	}, nil
}

func displayName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}

// ConsumerOptions configures the mailer consumers.
type ConsumerOptions struct {
	Brokers      []string
	GroupID      string
	MaxRetries   int
	RetryBackoff time.Duration
}

// NewConsumers creates one consumer per mailer topic. Each handler skips
// events already delivered according to store. Reset links are stripped from
// anything handed to dlq.
func NewConsumers(
	opts ConsumerOptions,
	worker *Worker,
	store pkgkafka.IdempotencyStore,
	dlq pkgkafka.DeadLetterer,
	logger *slog.Logger,
) []*pkgkafka.Consumer {
	handler := pkgkafka.IdempotentHandler(store, worker.Handle, logger)
	if dlq != nil {
		dlq = RedactResetLinks(dlq)
	}

	consumers := make([]*pkgkafka.Consumer, 0, len(Topics))
	for _, topic := range Topics {
		cfg := pkgkafka.ConsumerConfig{
			Brokers:      opts.Brokers,
			GroupID:      opts.GroupID,
			Topic:        topic,
			MaxRetries:   opts.MaxRetries,
			RetryBackoff: opts.RetryBackoff,
		}
		consumers = append(consumers, pkgkafka.NewConsumer(cfg, handler, dlq, logger))
	}
	return consumers
}
