package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")

	cfg, err := Load("does-not-exist.json")
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.DB.Driver)
	assert.Equal(t, 5001, cfg.App.Port)
	assert.Equal(t, "auth_token", cfg.Auth.CookieName)
	assert.False(t, cfg.App.Production())
	assert.False(t, cfg.RateLimit.TrustProxy)

	ttl, err := cfg.Auth.TokenTTL()
	require.NoError(t, err)
	assert.Equal(t, 168*time.Hour, ttl)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("TOKEN_EXPIRE_TIME", "never")
	t.Setenv("STREAM_API_KEY", "key")
	t.Setenv("STREAM_API_SECRET", "secret")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.RateLimit.TrustProxy)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.True(t, cfg.App.Production())
	assert.True(t, cfg.Chat.Enabled())
	ttl, err := cfg.Auth.TokenTTL()
	require.NoError(t, err)
	assert.Zero(t, ttl)
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "cassandra")
	_, err := Load()
	assert.ErrorContains(t, err, "invalid DB_DRIVER")
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{User: "u", Password: "p", Host: "db", Port: "5432", Database: "streamify", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/streamify?sslmode=disable", p.DSN())

	p.URL = "postgres://override"
	assert.Equal(t, "postgres://override", p.DSN())
}
