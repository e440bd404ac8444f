package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mossy-p/call-signaling/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", false)
	require.NoError(t, err)

	assert.Equal(t, uint16(8080), cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.AllowedOrigins)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICE.Servers)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("ALLOWED_ORIGINS", "https://call.example.com,https://staging.example.com")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Load("", false)
	require.NoError(t, err)

	assert.Equal(t, uint16(9000), cfg.Port)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, []string{"https://call.example.com", "https://staging.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr())
	assert.Equal(t, 2, cfg.Redis.DB)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=debug\nTURN_USERNAME=alice\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("TURN_USERNAME")
	})

	cfg, err := Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "alice", cfg.ICE.TURNUsername)
}

func TestLoadMissingEnvFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")

	_, err := Load(missing, false)
	assert.NoError(t, err, "default env file is optional")

	_, err = Load(missing, true)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad environment", "ENVIRONMENT", "staging"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad port", "PORT", "not-a-port"},
		{"zero port", "PORT", "0"},
		{"bad ice uri", "ICE_SERVERS", "stun:stun.l.google.com:19302,http://example.com"},
		{"bad duration", "SHUTDOWN_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load("", false)
			assert.Error(t, err)
		})
	}
}

func TestICEServersGroupsByScheme(t *testing.T) {
	ice := ICEConfig{
		Servers: []string{
			"stun:stun.l.google.com:19302",
			"turn:turn.example.com:3478?transport=udp",
			"stun:stun1.l.google.com:19302",
			"turns:turn.example.com:5349",
		},
		TURNUsername:   "user",
		TURNCredential: "secret",
	}

	assert.Equal(t, []models.ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"}},
		{
			URLs:       []string{"turn:turn.example.com:3478?transport=udp", "turns:turn.example.com:5349"},
			Username:   "user",
			Credential: "secret",
		},
	}, ice.ICEServers())
}

func TestICEServersEmpty(t *testing.T) {
	assert.Equal(t, []models.ICEServer{}, ICEConfig{}.ICEServers())
}
