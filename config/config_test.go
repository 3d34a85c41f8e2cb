package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("RATE_LIMIT_MAX", "not-a-number")

	cfg := Load()

	assert.False(t, cfg.Development())
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, time.Hour, cfg.RateLimit.Window)
	assert.Equal(t, 10*time.Minute, cfg.Auth.ResetTokenExpiry)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_WINDOW", "15m")
	t.Setenv("EMAIL_DEV_MODE", "false")
	t.Setenv("PORT", "8080")

	cfg := Load()

	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.False(t, cfg.Email.DevMode)
	assert.Equal(t, "8080", cfg.Server.Port)
}
