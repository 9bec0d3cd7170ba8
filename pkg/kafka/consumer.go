package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler processes one decoded event.
type Handler func(ctx context.Context, event *Event) error

// MessageReader is the subset of *kafka.Reader used by Consumer.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers      []string
	GroupID      string
	Topic        string
	MaxRetries   int
	RetryBackoff time.Duration
}

// Consumer reads one topic in a consumer group. Each message is handled with
// linear-backoff retries; messages that still fail go to the dead-letter sink
// (if any) and are committed so one bad message cannot stall the partition.
type Consumer struct {
	reader    MessageReader
	handler   Handler
	dlq       DeadLetterer
	cfg       ConsumerConfig
	logger    *slog.Logger
	closeOnce sync.Once
}

// NewConsumer creates a consumer backed by a kafka-go reader.
func NewConsumer(cfg ConsumerConfig, handler Handler, dlq DeadLetterer, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		GroupID: cfg.GroupID,
		Topic:   cfg.Topic,
	})
	return NewConsumerWithReader(r, cfg, handler, dlq, logger)
}

// NewConsumerWithReader creates a consumer over an existing reader.
func NewConsumerWithReader(r MessageReader, cfg ConsumerConfig, handler Handler, dlq DeadLetterer, logger *slog.Logger) *Consumer {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	return &Consumer{reader: r, handler: handler, dlq: dlq, cfg: cfg, logger: logger}
}

// Start consumes until ctx is canceled or the reader is closed.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started", slog.String("topic", c.cfg.Topic), slog.String("group", c.cfg.GroupID))
	defer c.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.logger.Info("consumer stopping", slog.String("topic", c.cfg.Topic))
				return nil
			}
			c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
			continue
		}
		consumerMessagesReceived.WithLabelValues(msg.Topic, c.cfg.GroupID).Inc()

		if stop := c.process(ctx, msg); stop {
			return nil
		}
	}
}

// process handles one message and commits it. It reports true when ctx was
// canceled mid-retry and the message was left uncommitted.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to unmarshal event", slog.String("topic", msg.Topic), slog.String("error", err.Error()))
		c.deadLetter(ctx, msg, err)
		c.commit(ctx, msg)
		return false
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if lastErr = c.handler(ctx, event); lastErr == nil {
			break
		}
		c.logger.Warn("handler failed",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)
		if attempt < c.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return true
			case <-time.After(time.Duration(attempt) * c.cfg.RetryBackoff):
			}
		}
	}
	consumerProcessingDuration.WithLabelValues(msg.Topic, c.cfg.GroupID).Observe(time.Since(start).Seconds())

	if lastErr != nil {
		consumerMessagesFailed.WithLabelValues(msg.Topic, c.cfg.GroupID).Inc()
		c.deadLetter(ctx, msg, lastErr)
	} else {
		consumerMessagesProcessed.WithLabelValues(msg.Topic, c.cfg.GroupID).Inc()
	}
	c.commit(ctx, msg)
	return false
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) {
	if c.dlq == nil {
		return
	}
	if err := c.dlq.Publish(ctx, msg, cause, c.cfg.GroupID); err != nil {
		c.logger.Error("failed to dead-letter message", slog.String("error", err.Error()))
		return
	}
	consumerDLQPublished.WithLabelValues(msg.Topic, c.cfg.GroupID).Inc()
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("failed to commit message", slog.Int64("offset", msg.Offset), slog.String("error", err.Error()))
	}
}

// Close closes the reader. It is safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.reader.Close() })
	return err
}
