package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_DSN", "file:test.db")
	t.Setenv("JWT_SECRET", "secret")
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 30*time.Second, cfg.CardAuthTimeout)
	assert.False(t, cfg.AllowRegistration)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	assert.False(t, cfg.CardReaderConnected())
	assert.Equal(t, "emporio-pos", cfg.ServiceName)
}

func TestFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("CARD_AUTH_TIMEOUT", "5s")
	t.Setenv("ALLOW_REGISTRATION", "true")
	t.Setenv("CORS_ORIGINS", "http://a.local, http://b.local,")
	t.Setenv("TERMINAL_URL", "http://terminal.local/")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 5*time.Second, cfg.CardAuthTimeout)
	assert.True(t, cfg.AllowRegistration)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.CORSOrigins)
	assert.Equal(t, "http://terminal.local", cfg.TerminalURL)
	assert.True(t, cfg.CardReaderConnected())
	assert.Equal(t, time.UTC, cfg.Location)
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing dsn", env: map[string]string{"DB_DSN": ""}},
		{name: "unknown driver", env: map[string]string{"DB_DRIVER": "oracle"}},
		{name: "bad timeout", env: map[string]string{"CARD_AUTH_TIMEOUT": "soon"}},
		{name: "negative timeout", env: map[string]string{"CARD_AUTH_TIMEOUT": "-1s"}},
		{name: "bad bool", env: map[string]string{"ALLOW_REGISTRATION": "maybe"}},
		{name: "bad timezone", env: map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{name: "missing jwt secret", env: map[string]string{"JWT_SECRET": "", "GIN_MODE": "release"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestFromEnv_DebugSecretFallback(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("GIN_MODE", "debug")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.JWTSecret)
}
