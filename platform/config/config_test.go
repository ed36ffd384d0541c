package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/marketplace")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ALLOW_ALL", "false")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 300*time.Second, cfg.GetEligibilityCacheTTL())
	assert.Equal(t, 15, cfg.GetNotifyFanoutLimit())
	assert.Equal(t, 15.0, cfg.GetImmediateRadiusKm())
	assert.Equal(t, 50.0, cfg.GetScheduledRadiusKm())
	assert.Equal(t, "US", cfg.GetPhoneDefaultRegion())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ELIGIBILITY_CACHE_TTL", "2m")
	t.Setenv("NOTIFY_FANOUT_LIMIT", "5")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("EMAIL_FROM_ADDRESS", "noreply@example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.GetEligibilityCacheTTL())
	assert.Equal(t, 5, cfg.GetNotifyFanoutLimit())
	assert.True(t, cfg.IsEmailEnabled())
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"missing database":  {"DATABASE_URL": ""},
		"missing secret":    {"JWT_ACCESS_SECRET": ""},
		"zero fanout":       {"NOTIFY_FANOUT_LIMIT": "0"},
		"fanout above cap":  {"NOTIFY_FANOUT_LIMIT": "40"},
		"bad ttl":           {"ELIGIBILITY_CACHE_TTL": "soon"},
		"wildcard w/ creds": {"CORS_ORIGINS": "*", "CORS_ALLOW_CREDENTIALS": "true"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
