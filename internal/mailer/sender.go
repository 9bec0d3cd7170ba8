package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// Message is a rendered plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers rendered messages through a specific channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg *Message) error
}

// JSONPoster is the subset of httpclient.CircuitBreakerClient used by HTTPSender.
type JSONPoster interface {
	PostJSON(ctx context.Context, url string, payload any, header http.Header) error
}

// mailRequest is the body accepted by the mail API.
type mailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// HTTPSender posts messages to a transactional mail API.
type HTTPSender struct {
	client JSONPoster
	url    string
	apiKey string
	from   string
}

// NewHTTPSender creates a sender for the mail API at url.
func NewHTTPSender(client JSONPoster, url, apiKey, from string) *HTTPSender {
	return &HTTPSender{client: client, url: url, apiKey: apiKey, from: from}
}

// Name returns the name of this sender.
func (s *HTTPSender) Name() string {
	return "http"
}

// Send posts msg to the mail API.
func (s *HTTPSender) Send(ctx context.Context, msg *Message) error {
	header := http.Header{}
	if s.apiKey != "" {
		header.Set("Authorization", "Bearer "+s.apiKey)
	}
	req := mailRequest{
		From:    s.from,
		To:      msg.To,
		Subject: msg.Subject,
		Text:    msg.Body,
	}
	if err := s.client.PostJSON(ctx, s.url, req, header); err != nil {
		return fmt.Errorf("send mail to api: %w", err)
	}
	return nil
}

// LogSender logs messages instead of delivering them. It is used when no
// mail API is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a new log sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Name returns the name of this sender.
func (s *LogSender) Name() string {
	return "log"
}

// Send logs the message, body included.
func (s *LogSender) Send(ctx context.Context, msg *Message) error {
	s.logger.InfoContext(ctx, "log sender: message rendered",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	)
	return nil
}
