package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 600*time.Second, cfg.SessionTimeout)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, 10000, cfg.MaxEvents)
	assert.Equal(t, 10*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, 3, cfg.WebhookMaxAttempts)
	assert.NotEmpty(t, cfg.DBPath)
	assert.Empty(t, cfg.MetricsAddr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EVENT_BUS_DB", "/tmp/custom.db")
	t.Setenv("SESSION_TIMEOUT", "120")
	t.Setenv("SWEEP_INTERVAL", "5")
	t.Setenv("MAX_EVENTS", "500")
	t.Setenv("WEBHOOK_TIMEOUT", "3")
	t.Setenv("WEBHOOK_MAX_ATTEMPTS", "5")
	t.Setenv("EVENT_BUS_METRICS_ADDR", ":9091")

	cfg := FromEnv()

	assert.Equal(t, "/tmp/custom.db", cfg.DBPath)
	assert.Equal(t, 120*time.Second, cfg.SessionTimeout)
	assert.Equal(t, 5*time.Second, cfg.SweepInterval)
	assert.Equal(t, 500, cfg.MaxEvents)
	assert.Equal(t, 3*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, 5, cfg.WebhookMaxAttempts)
	assert.Equal(t, ":9091", cfg.MetricsAddr)
}

func TestInvalidEnvValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("SESSION_TIMEOUT", "not-a-number")
	t.Setenv("MAX_EVENTS", "-1")

	cfg := FromEnv()

	assert.Equal(t, DefaultSessionTimeout, cfg.SessionTimeout)
	assert.Equal(t, DefaultMaxEvents, cfg.MaxEvents)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_path: /var/lib/eventbus/events.db
session_timeout: 300
sweep_interval: 10
max_events: 2000
webhook_timeout: 5
webhook_max_attempts: 4
metrics_addr: ":9100"
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/eventbus/events.db", cfg.DBPath)
	assert.Equal(t, 300*time.Second, cfg.SessionTimeout)
	assert.Equal(t, 10*time.Second, cfg.SweepInterval)
	assert.Equal(t, 2000, cfg.MaxEvents)
	assert.Equal(t, 5*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, 4, cfg.WebhookMaxAttempts)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session_timeout: 300\n"), 0644))

	t.Setenv("SESSION_TIMEOUT", "120")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, cfg.SessionTimeout)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_events: 42\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.MaxEvents)
	assert.Equal(t, DefaultSessionTimeout, cfg.SessionTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxEvents, cfg.MaxEvents)
}
