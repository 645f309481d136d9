package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/reelhub")
	t.Setenv("SCHEDULER_INTERVAL", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8787", cfg.Port)
	assert.Equal(t, "postgres://localhost/reelhub", cfg.Database.URL)
	assert.Equal(t, time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, 50, cfg.Scheduler.BatchSize)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestFromEnvRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SCHEDULER_INTERVAL", "30s")
	t.Setenv("SCHEDULER_BATCH_SIZE", "5")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ELASTICSEARCH_URL", "http://es:9200")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, 5, cfg.Scheduler.BatchSize)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, []string{"http://es:9200"}, cfg.Search.Addresses)
}

func TestGoogleOAuthRequiresCredentials(t *testing.T) {
	_, err := OAuthSettings{RedirectURL: "https://api.example"}.GoogleOAuth()
	assert.Error(t, err)

	oc, err := OAuthSettings{
		RedirectURL:        "https://api.example",
		GoogleClientID:     "id",
		GoogleClientSecret: "secret",
	}.GoogleOAuth()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example/api/v1/auth/google/callback", oc.RedirectURL)
}
