package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 1812, cfg.RadiusAuthPort)
	assert.Equal(t, 1813, cfg.RadiusAcctPort)
	assert.Equal(t, 8080, cfg.DashboardPort)
	assert.Equal(t, "radiusd.db", cfg.DatabasePath)
	assert.Equal(t, "admin", cfg.AdminUsername)
	assert.Equal(t, 24, cfg.JWTExpireHours)
	assert.Equal(t, 30, cfg.StaleSessionMinutes)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.NotEmpty(t, cfg.DefaultSecret)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RADIUS_AUTH_PORT", "11812")
	t.Setenv("RADIUS_ACCT_PORT", "11813")
	t.Setenv("DATABASE_PATH", "/tmp/test.db")
	t.Setenv("JWT_SECRET", "fixed-secret")
	t.Setenv("JWT_EXPIRE_HOURS", "2")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := Load()

	assert.Equal(t, 11812, cfg.RadiusAuthPort)
	assert.Equal(t, 11813, cfg.RadiusAcctPort)
	assert.Equal(t, "/tmp/test.db", cfg.DatabasePath)
	assert.Equal(t, "fixed-secret", cfg.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL())
	assert.True(t, cfg.Debug())
}

func TestLoadIgnoresMalformedInt(t *testing.T) {
	t.Setenv("RADIUS_AUTH_PORT", "not-a-port")
	cfg := Load()
	assert.Equal(t, 1812, cfg.RadiusAuthPort)
}

func TestDebug(t *testing.T) {
	assert.True(t, (&Config{LogLevel: "debug"}).Debug())
	assert.False(t, (&Config{LogLevel: "info"}).Debug())
}
