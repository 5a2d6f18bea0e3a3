package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkeye/chatrelay/internal/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, int64(65536), cfg.ReadLimit)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 60*time.Second, cfg.PongWait)
	assert.Equal(t, 64, cfg.SendBuffer)
	assert.Equal(t, "kick", cfg.Backpressure)
	assert.Equal(t, "relay.db", cfg.Store.DSN)
	assert.Equal(t, time.Second, cfg.Presence.Debounce)
	assert.Equal(t, app.DefaultQuotas(), cfg.Limits.Quotas())
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICEServers[0].URLs)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	yaml := []byte(`
port: 9090
limits:
  message:
    points: 3
    window: 2s
    block: 10s
ice_servers:
  - urls: ["turn:turn.example.org:3478"]
    username: relay
    credential: pw
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), yaml, 0o644))
	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("RELAY_SYSTEM_TOKEN", "sys-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "sys-secret", cfg.SystemToken)
	assert.Equal(t, app.Quota{Points: 3, Window: 2 * time.Second, Block: 10 * time.Second}, cfg.Limits.Message)
	assert.Equal(t, 5, cfg.Limits.Typing.Points)
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, "relay", cfg.ICEServers[0].Username)
}
