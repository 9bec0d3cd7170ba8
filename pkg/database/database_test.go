package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"testing/fstest"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// ============================================================================
// Backoff
// ============================================================================

func TestBackoff_ExponentialWithJitter(t *testing.T) {
	for attempt := 0; attempt < connectAttempts; attempt++ {
		base := connectBaseWait << attempt
		lo := time.Duration(float64(base) * (1 - jitterFraction))
		hi := time.Duration(float64(base) * (1 + jitterFraction))
		for i := 0; i < 20; i++ {
			d := backoff(attempt)
			assert.GreaterOrEqual(t, d, lo)
			assert.LessOrEqual(t, d, hi)
		}
	}
}

func TestWithRetry_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := withRetry(ctx, nil, "test", func() error {
		calls++
		return errors.New("refused")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

// ============================================================================
// Redis
// ============================================================================

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr()}, nil)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

// ============================================================================
// Migrations
// ============================================================================

func TestRunMigrations_AppliesPendingInOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	migrations := fstest.MapFS{
		"002_add_profile.up.sql":    {Data: []byte("ALTER TABLE users ADD COLUMN bio TEXT")},
		"001_create_users.up.sql":   {Data: []byte("CREATE TABLE users (id UUID PRIMARY KEY)")},
		"001_create_users.down.sql": {Data: []byte("DROP TABLE users")},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	mock.ExpectQuery("SELECT EXISTS").WithArgs("001_create_users.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectQuery("SELECT EXISTS").WithArgs("002_add_profile.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("ALTER TABLE users ADD COLUMN bio").
		WillReturnResult(pgxmock.NewResult("ALTER", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("002_add_profile.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	var buf bytes.Buffer
	err = RunMigrations(context.Background(), mock, migrations, newTestLogger(&buf))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, buf.String(), "002_add_profile.up.sql")
}

func TestRunMigrations_RollsBackOnFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	migrations := fstest.MapFS{
		"001_create_users.up.sql": {Data: []byte("CREATE TABLE users (")},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("001_create_users.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE users").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	var buf bytes.Buffer
	err = RunMigrations(context.Background(), mock, migrations, newTestLogger(&buf))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute migration 001_create_users.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================================================
// Tracing
// ============================================================================

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func TestTraceQuery_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), "GetUserByEmail", "SELECT id FROM users WHERE email = $1")
	end(errors.New("boom"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.GetUserByEmail", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestTraceQuery_SlowQueryLogged(t *testing.T) {
	setupTestTracer(t)
	var buf bytes.Buffer
	SetSlowQueryLogging(time.Nanosecond, newTestLogger(&buf))
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	_, end := TraceQuery(context.Background(), "UpdatePassword", "UPDATE users SET password_hash = $1")
	time.Sleep(time.Millisecond)
	end(nil)

	assert.Contains(t, buf.String(), "slow query")
	assert.Contains(t, buf.String(), "UpdatePassword")
}

// ============================================================================
// Pool metrics
// ============================================================================

func TestPoolStatsCollector_Describe(t *testing.T) {
	c := NewPoolStatsCollector(nil, "devhub-auth")

	ch := make(chan *prometheus.Desc, 16)
	c.Describe(ch)
	close(ch)

	n := 0
	for range ch {
		n++
	}
	assert.Equal(t, 7, n)
}
