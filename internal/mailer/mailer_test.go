package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/onlydeal/DevHub/internal/event"
	redisrepo "github.com/onlydeal/DevHub/internal/repository/redis"
	"github.com/onlydeal/DevHub/pkg/breaker"
	"github.com/onlydeal/DevHub/pkg/httpclient"
	pkgkafka "github.com/onlydeal/DevHub/pkg/kafka"
)

// --- Mock Sender ---

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Name() string {
	return "mock"
}

func (m *mockSender) Send(ctx context.Context, msg *Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// --- Test helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEvent(t *testing.T, eventType string, data any) *pkgkafka.Event {
	t.Helper()
	evt, err := pkgkafka.NewEvent(eventType, "user-1", event.SourceAuthService, data)
	require.NoError(t, err)
	return evt
}

func resetEventData() event.PasswordResetRequestedData {
	return event.PasswordResetRequestedData{
		UserID:    "user-1",
		Name:      "Ada",
		Email:     "ada@devhub.io",
		ResetURL:  "https://devhub.io/reset-password/abc123",
		ExpiresIn: 600,
	}
}

// ============================================================================
// Worker
// ============================================================================

func TestWorker_PasswordReset(t *testing.T) {
	sender := new(mockSender)
	w := NewWorker(sender, newTestLogger())
	ctx := context.Background()

	var sent *Message
	sender.On("Send", ctx, mock.AnythingOfType("*mailer.Message")).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*Message) }).
		Return(nil)

	err := w.Handle(ctx, newTestEvent(t, event.TypePasswordResetRequested, resetEventData()))
	require.NoError(t, err)
	require.NotNil(t, sent)

	assert.Equal(t, "ada@devhub.io", sent.To)
	assert.Equal(t, "Reset your DevHub password", sent.Subject)
	assert.Contains(t, sent.Body, "Hi Ada,")
	assert.Contains(t, sent.Body, "https://devhub.io/reset-password/abc123")
	assert.Contains(t, sent.Body, "10m0s")
}

func TestWorker_Welcome(t *testing.T) {
	sender := new(mockSender)
	w := NewWorker(sender, newTestLogger())
	ctx := context.Background()
	sender.On("Send", ctx, mock.MatchedBy(func(m *Message) bool {
		return m.To == "ada@devhub.io" && m.Subject == "Welcome to DevHub"
	})).Return(nil)

	data := event.UserRegisteredData{UserID: "user-1", Name: "Ada", Email: "ada@devhub.io"}
	require.NoError(t, w.Handle(ctx, newTestEvent(t, event.TypeUserRegistered, data)))
	sender.AssertExpectations(t)
}

func TestWorker_UnknownEventTypeIsIgnored(t *testing.T) {
	sender := new(mockSender)
	w := NewWorker(sender, newTestLogger())

	err := w.Handle(context.Background(), newTestEvent(t, "something_else", map[string]string{}))

	assert.NoError(t, err)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestWorker_InvalidPayload(t *testing.T) {
	sender := new(mockSender)
	w := NewWorker(sender, newTestLogger())

	evt := newTestEvent(t, event.TypePasswordResetRequested, resetEventData())
	evt.Data = json.RawMessage(`{"email": 42}`)
	assert.Error(t, w.Handle(context.Background(), evt))

	missing := newTestEvent(t, event.TypePasswordResetRequested, event.PasswordResetRequestedData{UserID: "user-1"})
	assert.Error(t, w.Handle(context.Background(), missing))

	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestWorker_SendFailureIsReturned(t *testing.T) {
	sender := new(mockSender)
	w := NewWorker(sender, newTestLogger())
	sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	err := w.Handle(context.Background(), newTestEvent(t, event.TypePasswordResetRequested, resetEventData()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
}

func TestWorker_DuplicateDeliveryIsSuppressed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.Anything).Return(nil).Once()
	w := NewWorker(sender, newTestLogger())
	handler := pkgkafka.IdempotentHandler(redisrepo.NewIdempotencyStore(client, time.Hour), w.Handle, newTestLogger())

	evt := newTestEvent(t, event.TypePasswordResetRequested, resetEventData())
	require.NoError(t, handler(context.Background(), evt))
	require.NoError(t, handler(context.Background(), evt))

	sender.AssertNumberOfCalls(t, "Send", 1)
	assert.True(t, mr.Exists("processed:"+evt.EventID))
}

// ============================================================================
// HTTPSender
// ============================================================================

func newTestHTTPClient(t *testing.T) *httpclient.CircuitBreakerClient {
	t.Helper()
	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 1
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = time.Millisecond
	cfg.RatePerSecond = 0
	return httpclient.NewCircuitBreakerClient(httpclient.New(cfg, nil), breaker.DefaultConfig("mail-api-"+t.Name()), newTestLogger())
}

func TestHTTPSender_PostsMessage(t *testing.T) {
	var got mailRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewHTTPSender(newTestHTTPClient(t), srv.URL, "key-123", "DevHub <no-reply@devhub.io>")
	err := s.Send(context.Background(), &Message{To: "ada@devhub.io", Subject: "Hi", Body: "Hello"})

	require.NoError(t, err)
	assert.Equal(t, "Bearer key-123", auth)
	assert.Equal(t, mailRequest{From: "DevHub <no-reply@devhub.io>", To: "ada@devhub.io", Subject: "Hi", Text: "Hello"}, got)
	assert.Equal(t, "http", s.Name())
}

func TestHTTPSender_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPSender(newTestHTTPClient(t), srv.URL, "", "no-reply@devhub.io")

	require.NoError(t, s.Send(context.Background(), &Message{To: "ada@devhub.io"}))
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPSender_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	s := NewHTTPSender(newTestHTTPClient(t), srv.URL, "", "no-reply@devhub.io")
	err := s.Send(context.Background(), &Message{To: "bad"})

	var se *httpclient.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(newTestLogger())
	assert.Equal(t, "log", s.Name())
	assert.NoError(t, s.Send(context.Background(), &Message{To: "ada@devhub.io"}))
}

// ============================================================================
// Dead-letter redaction
// ============================================================================

// --- Mock DeadLetterer ---

type mockDeadLetterer struct {
	mock.Mock
}

func (m *mockDeadLetterer) Publish(ctx context.Context, original kafka.Message, lastErr error, consumerGroup string) error {
	args := m.Called(ctx, original, lastErr, consumerGroup)
	return args.Error(0)
}

func encodeEvent(t *testing.T, evt *pkgkafka.Event) []byte {
	t.Helper()
	raw, err := json.Marshal(evt)
	require.NoError(t, err)
	return raw
}

func TestRedactResetLinks_StripsURLFromPayloadAndError(t *testing.T) {
	next := new(mockDeadLetterer)
	var (
		got     kafka.Message
		gotErr  error
		dlq     = RedactResetLinks(next)
		ctx     = context.Background()
		data    = resetEventData()
		evt     = newTestEvent(t, event.TypePasswordResetRequested, data)
		message = kafka.Message{Topic: event.TopicPasswordResetRequested, Key: []byte("user-1"), Value: encodeEvent(t, evt)}
	)
	next.On("Publish", ctx, mock.Anything, mock.Anything, "devhub-mailer").
		Run(func(args mock.Arguments) {
			got = args.Get(1).(kafka.Message)
			gotErr, _ = args.Get(2).(error)
		}).
		Return(nil)

	cause := errors.New("unexpected status 422: rejected body containing " + data.ResetURL)
	require.NoError(t, dlq.Publish(ctx, message, cause, "devhub-mailer"))

	assert.NotContains(t, string(got.Value), "abc123")
	require.Error(t, gotErr)
	assert.NotContains(t, gotErr.Error(), "abc123")
	assert.Contains(t, gotErr.Error(), "[redacted]")

	decoded, err := pkgkafka.UnmarshalEvent(got.Value)
	require.NoError(t, err)
	assert.Equal(t, evt.EventID, decoded.EventID)
	var payload event.PasswordResetRequestedData
	require.NoError(t, decoded.UnmarshalData(&payload))
	assert.Empty(t, payload.ResetURL)
	assert.Equal(t, "ada@devhub.io", payload.Email)
	assert.Equal(t, []byte("user-1"), got.Key)
	assert.Contains(t, got.Headers, kafka.Header{Key: "dlq.redacted", Value: []byte("reset_url")})
}

func TestRedactResetLinks_LeavesOtherEventsUntouched(t *testing.T) {
	next := new(mockDeadLetterer)
	ctx := context.Background()
	evt := newTestEvent(t, event.TypeUserRegistered, event.UserRegisteredData{UserID: "user-1", Email: "ada@devhub.io"})
	message := kafka.Message{Topic: event.TopicUserRegistered, Value: encodeEvent(t, evt)}
	cause := errors.New("smtp down")
	next.On("Publish", ctx, message, cause, "g").Return(nil)

	require.NoError(t, RedactResetLinks(next).Publish(ctx, message, cause, "g"))

	next.AssertExpectations(t)
}

func TestRedactResetLinks_DropsUndecodableResetPayload(t *testing.T) {
	next := new(mockDeadLetterer)
	ctx := context.Background()
	var got kafka.Message
	next.On("Publish", ctx, mock.Anything, mock.Anything, "g").
		Run(func(args mock.Arguments) { got = args.Get(1).(kafka.Message) }).
		Return(nil)

	message := kafka.Message{Topic: event.TopicPasswordResetRequested, Value: []byte(`{"reset_url":"https://devhub.io/reset-password/abc123"`)}
	require.NoError(t, RedactResetLinks(next).Publish(ctx, message, errors.New("bad json"), "g"))

	assert.Nil(t, got.Value)
	assert.Contains(t, got.Headers, kafka.Header{Key: "dlq.redacted", Value: []byte("value")})
}

// fakeReader serves a fixed set of messages, then reports EOF.
type fakeReader struct {
	msgs []kafka.Message
}

func (r *fakeReader) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(context.Context, ...kafka.Message) error { return nil }

func (r *fakeReader) Close() error { return nil }

func TestConsumer_DeadLettersResetEventsWithoutURL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	next := new(mockDeadLetterer)
	var got kafka.Message
	next.On("Publish", mock.Anything, mock.Anything, mock.Anything, "devhub-mailer").
		Run(func(args mock.Arguments) { got = args.Get(1).(kafka.Message) }).
		Return(nil)

	evt := newTestEvent(t, event.TypePasswordResetRequested, resetEventData())
	reader := &fakeReader{msgs: []kafka.Message{{Topic: event.TopicPasswordResetRequested, Value: encodeEvent(t, evt)}}}
	handler := pkgkafka.IdempotentHandler(redisrepo.NewIdempotencyStore(client, time.Hour), NewWorker(sender, newTestLogger()).Handle, newTestLogger())
	consumer := pkgkafka.NewConsumerWithReader(reader,
		pkgkafka.ConsumerConfig{Topic: event.TopicPasswordResetRequested, GroupID: "devhub-mailer", MaxRetries: 1},
		handler, RedactResetLinks(next), newTestLogger())

	require.NoError(t, consumer.Start(context.Background()))

	next.AssertNumberOfCalls(t, "Publish", 1)
	assert.NotContains(t, string(got.Value), "abc123")
}
