package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "memory", cfg.DB.Driver)
	require.True(t, cfg.DB.AutoMigrate)
	require.False(t, cfg.Auth.Disabled)
	require.Equal(t, 0.5, cfg.Validate.ToleranceCents)
	require.Equal(t, "3600", cfg.Worker.RevalidateInterval)
	require.Equal(t, "generic", cfg.Alerts.WebhookType)
	require.Equal(t, 1, cfg.Alerts.MinFailures)
	require.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	for key, val := range map[string]string{
		"EFLENGINE_DB_DRIVER":                "sqlite",
		"EFLENGINE_DB_DSN":                   "test.db",
		"EFLENGINE_LOG_LEVEL":                "debug",
		"EFLENGINE_AUTH_DISABLED":            "true",
		"EFLENGINE_VALIDATE_TOLERANCE_CENTS": "1.25",
		"EFLENGINE_REVALIDATE_INTERVAL":      "*/15 * * * *",
		"CORS_ALLOWED_ORIGINS":               "https://a.example,https://b.example",
	} {
		t.Setenv(key, val)
	}

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "sqlite", cfg.DB.Driver)
	require.Equal(t, "test.db", cfg.DB.DSN)
	require.Equal(t, "debug", cfg.LogLevel)
	require.True(t, cfg.Auth.Disabled)
	require.Equal(t, 1.25, cfg.Validate.ToleranceCents)
	require.Equal(t, "*/15 * * * *", cfg.Worker.RevalidateInterval)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}
