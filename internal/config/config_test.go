package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

var (
	strongAccess  = strings.Repeat("a", 32)
	strongRefresh = strings.Repeat("r", 32)
)

func TestLoad_Defaults(t *testing.T) {
	setEnvs(t, map[string]string{"ENVIRONMENT": "development"})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 10*time.Minute, cfg.ResetTokenTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.False(t, cfg.ResetUniformResponse)
	assert.True(t, cfg.RevokeSessionsOnPasswordChange)
	assert.False(t, cfg.SecureCookies())
}

func TestLoad_Production_RejectsDefaultSecrets(t *testing.T) {
	setEnvs(t, map[string]string{"ENVIRONMENT": "production"})

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be explicitly set")
}

func TestLoad_Production_RejectsShortSecret(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":        "production",
		"JWT_ACCESS_SECRET":  "short-secret",
		"JWT_REFRESH_SECRET": strongRefresh,
	})

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_ACCESS_SECRET must be at least 32 characters")
}

func TestLoad_RejectsSharedSecret(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":        "development",
		"JWT_ACCESS_SECRET":  strongAccess,
		"JWT_REFRESH_SECRET": strongAccess,
	})

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestLoad_Production_AcceptsStrongSecrets(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":        "production",
		"JWT_ACCESS_SECRET":  strongAccess,
		"JWT_REFRESH_SECRET": strongRefresh,
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.SecureCookies())
}

func TestLoad_InvalidPort(t *testing.T) {
	setEnvs(t, map[string]string{"HTTP_PORT": "70000"})

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
}

func TestLoad_InvalidBcryptCost(t *testing.T) {
	setEnvs(t, map[string]string{"BCRYPT_COST": "2"})

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "BCRYPT_COST")
}

func TestLoad_ListsAndFlags(t *testing.T) {
	setEnvs(t, map[string]string{
		"KAFKA_BROKERS":                      "k1:9092,k2:9092",
		"CORS_ALLOWED_ORIGINS":               "https://devhub.io,https://app.devhub.io",
		"RESET_UNIFORM_RESPONSE":             "true",
		"REVOKE_SESSIONS_ON_PASSWORD_CHANGE": "false",
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"https://devhub.io", "https://app.devhub.io"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.ResetUniformResponse)
	assert.False(t, cfg.RevokeSessionsOnPasswordChange)
}
