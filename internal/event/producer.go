package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/onlydeal/DevHub/internal/domain"
	pkgkafka "github.com/onlydeal/DevHub/pkg/kafka"
	"github.com/onlydeal/DevHub/pkg/logger"
)

// Event types, also used as topic actions.
const (
	TypeUserRegistered         = "user_registered"
	TypePasswordResetRequested = "password_reset_requested"
)

// Topics of auth domain events.
var (
	TopicUserRegistered         = pkgkafka.Topic("auth", TypeUserRegistered)
	TopicPasswordResetRequested = pkgkafka.Topic("auth", TypePasswordResetRequested)
)

// SourceAuthService identifies events originating from this service.
const SourceAuthService = "devhub-auth"

// UserRegisteredData is the payload of a user_registered event.
type UserRegisteredData struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// PasswordResetRequestedData is the payload of a password_reset_requested
// event. ResetURL embeds the raw single-use token.
type PasswordResetRequestedData struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	ResetURL  string `json:"reset_url"`
	ExpiresIn int64  `json:"expires_in_seconds"`
}

// Publisher is the subset of pkgkafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes auth domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the auth service.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user_registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
	}
	return p.publish(ctx, TopicUserRegistered, TypeUserRegistered, user.ID, data)
}

// PublishPasswordResetRequested publishes a password_reset_requested event.
func (p *Producer) PublishPasswordResetRequested(ctx context.Context, data PasswordResetRequestedData) error {
	return p.publish(ctx, TopicPasswordResetRequested, TypePasswordResetRequested, data.UserID, data)
}

func (p *Producer) publish(ctx context.Context, topic, eventType, subjectID string, data any) error {
	evt, err := pkgkafka.NewEvent(eventType, subjectID, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published auth event",
		slog.String("event_type", eventType),
		slog.String("user_id", subjectID),
	)
	return nil
}
