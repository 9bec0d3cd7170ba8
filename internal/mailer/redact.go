package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/onlydeal/DevHub/internal/event"
	pkgkafka "github.com/onlydeal/DevHub/pkg/kafka"
)

const redactedHeader = "dlq.redacted"

// redactingDeadLetterer removes reset links from password reset events before
// they reach the dead-letter topic, which outlives the token itself.
type redactingDeadLetterer struct {
	next pkgkafka.DeadLetterer
}

// RedactResetLinks wraps next so that dead-lettered password reset events
// carry no usable token.
func RedactResetLinks(next pkgkafka.DeadLetterer) pkgkafka.DeadLetterer {
	return &redactingDeadLetterer{next: next}
}

func (d *redactingDeadLetterer) Publish(ctx context.Context, original kafka.Message, lastErr error, consumerGroup string) error {
	msg, lastErr := redactResetMessage(original, lastErr)
	return d.next.Publish(ctx, msg, lastErr, consumerGroup)
}

func redactResetMessage(msg kafka.Message, lastErr error) (kafka.Message, error) {
	evt, err := pkgkafka.UnmarshalEvent(msg.Value)
	if err != nil {
		if msg.Topic == event.TopicPasswordResetRequested {
			return dropValue(msg), lastErr
		}
		return msg, lastErr
	}
	if evt.EventType != event.TypePasswordResetRequested {
		return msg, lastErr
	}

	var data event.PasswordResetRequestedData
	if err := evt.UnmarshalData(&data); err != nil {
		return dropValue(msg), lastErr
	}
	if lastErr != nil && data.ResetURL != "" && strings.Contains(lastErr.Error(), data.ResetURL) {
		lastErr = errors.New(strings.ReplaceAll(lastErr.Error(), data.ResetURL, "[redacted]"))
	}
	data.ResetURL = ""

	raw, err := json.Marshal(data)
	if err != nil {
		return dropValue(msg), lastErr
	}
	evt.Data = raw
	value, err := json.Marshal(evt)
	if err != nil {
		return dropValue(msg), lastErr
	}

	msg.Value = value
	msg.Headers = append(msg.Headers, kafka.Header{Key: redactedHeader, Value: []byte("reset_url")})
	return msg, lastErr
}

// dropValue is used when the payload cannot be decoded and may still hold a token.
func dropValue(msg kafka.Message) kafka.Message {
	msg.Value = nil
	msg.Headers = append(msg.Headers, kafka.Header{Key: redactedHeader, Value: []byte("value")})
	return msg
}
