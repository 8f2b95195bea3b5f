package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1", cfg.API.Host)
	assert.Equal(t, 5000, cfg.API.Port)
	assert.Equal(t, 5*time.Second, cfg.Monitor.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.Monitor.IdleThreshold)
	assert.Equal(t, 60*time.Second, cfg.Monitor.KeystrokeWindow)
	assert.Equal(t, 10, cfg.Log.MaxSizeMB)
	assert.Equal(t, 5, cfg.Log.MaxBackups)
	assert.False(t, cfg.Smart.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlBody := "api:\n  port: 6000\nmonitor:\n  poll_interval: 2s\n  keyboard_devices: [/dev/input/event3]\nlog:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	t.Setenv("DFM_API_PORT", "7000")
	t.Setenv("DFM_SMART_ENABLED", "true")
	t.Setenv("DFM_MONITOR_IDLE_THRESHOLD", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.API.Port, "env overrides file")
	assert.Equal(t, "127.0.0.1", cfg.API.Host, "defaults survive")
	assert.Equal(t, 2*time.Second, cfg.Monitor.PollInterval)
	assert.Equal(t, []string{"/dev/input/event3"}, cfg.Monitor.KeyboardDevices)
	assert.Equal(t, 90*time.Second, cfg.Monitor.IdleThreshold)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Smart.Enabled)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("api: [unclosed"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "failed to parse config file")

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("api:\n  port: 70000\n"), 0o644))
	_, err = Load(invalid)
	assert.ErrorContains(t, err, "invalid api port")
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.API.Port = 5123
	cfg.Smart.Enabled = true
	require.NoError(t, cfg.Write(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5123, loaded.API.Port)
	assert.True(t, loaded.Smart.Enabled)
	assert.Equal(t, cfg.Monitor, loaded.Monitor)
}

func TestLoad_IgnoresUnprefixedEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))
	t.Setenv("PORT", "1234")
	t.Setenv("HOST", "example.invalid")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.API.Port)
	assert.Equal(t, "127.0.0.1", cfg.API.Host)
}
