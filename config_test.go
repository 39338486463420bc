package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "DB_PATH", "STORE_PATH", "SERVER_ENVIRONMENT", "SERVER_ADDRESS", "LOGGING_LEVEL", "LOGGING_PRETTY"} {
		t.Setenv(key, "")
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+): it changes the working directory
// for the duration of the test and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	chdir(t, t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, EnvDev, cfg.Server.Environment)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)
	assert.Equal(t, StoreDriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "./data/upwatch.db", cfg.Store.Path)
	assert.Equal(t, filepath.Join("data", "monitors.yaml"), cfg.Seed.Path)
	assert.Equal(t, DefaultIntervalMs, cfg.DefaultIntervalMs())
	assert.Equal(t, DefaultSweepInterval, cfg.SweepInterval())
	assert.Equal(t, 587, cfg.Alerts.Email.Port)
	assert.False(t, cfg.Alerts.Email.Enabled())
}

func TestLoadConfigFile(t *testing.T) {
	clearConfigEnv(t)
	path := writeFile(t, filepath.Join(t.TempDir(), "upwatch.yaml"), `
server:
  address: "127.0.0.1:9000"
  environment: prod
logging:
  level: debug
monitor:
  default_interval: 15s
sweeper:
  interval: 10s
store:
  driver: file
  fallback_path: /tmp/upwatch/monitors.json
alerts:
  webhooks:
    - https://hooks.example.com/upwatch
  email:
    host: smtp.example.com
    from: upwatch@example.com
    to: [ops@example.com]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address)
	assert.False(t, cfg.Logging.Pretty)
	assert.Equal(t, int64(15000), cfg.DefaultIntervalMs())
	assert.Equal(t, 10*time.Second, cfg.SweepInterval())
	assert.Equal(t, "/tmp/upwatch/monitors.json", cfg.storePath())
	assert.Equal(t, []string{"https://hooks.example.com/upwatch"}, cfg.Alerts.Webhooks)
	assert.True(t, cfg.Alerts.Email.Enabled())
	assert.Equal(t, 587, cfg.Alerts.Email.Port)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("PORT", "3001")
	t.Setenv("DB_PATH", "/var/lib/upwatch/state.db")
	t.Setenv("SERVER_ENVIRONMENT", EnvStaging)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":3001", cfg.Server.Address)
	assert.Equal(t, "/var/lib/upwatch/state.db", cfg.Store.Path)
	assert.Equal(t, "/var/lib/upwatch/monitors.yaml", cfg.Seed.Path)
	assert.Equal(t, EnvStaging, cfg.Server.Environment)
	assert.False(t, cfg.Logging.Pretty)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	clearConfigEnv(t)
	dir := t.TempDir()

	cases := map[string]string{
		"environment": "server:\n  environment: qa\n",
		"address":     "server:\n  address: nope\n",
		"level":       "logging:\n  level: loud\n",
		"interval":    "monitor:\n  default_interval: soon\n",
		"driver":      "store:\n  driver: postgres\n",
		"webhook":     "alerts:\n  webhooks: [\"not a url\"]\n",
		"email":       "alerts:\n  email:\n    host: smtp.example.com\n    from: nobody\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, filepath.Join(dir, name+".yaml"), content))
			assert.ErrorContains(t, err, "invalid configuration")
		})
	}
}

func TestLoadSeedFile(t *testing.T) {
	dir := t.TempDir()

	reqs, err := loadSeedFile(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Nil(t, reqs)

	path := writeFile(t, filepath.Join(dir, "monitors.yaml"), `
monitors:
  - name: api
    url: api.example.com
    interval: 30s
  - name: legacy
    url: https://legacy.example.com
    checkInterval: 45
    paused: true
  - url: https://plain.example.com
    enabled: false
`)
	reqs, err = loadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, reqs, 3)
	assert.Equal(t, int64(30000), reqs[0].IntervalMs)
	assert.True(t, *reqs[0].Enabled)
	assert.Equal(t, int64(45000), reqs[1].IntervalMs)
	assert.False(t, *reqs[1].Enabled)
	assert.Zero(t, reqs[2].IntervalMs)
	assert.False(t, *reqs[2].Enabled)

	bad := writeFile(t, filepath.Join(dir, "bad.yaml"), "monitors:\n  - name: nourl\n")
	_, err = loadSeedFile(bad)
	assert.ErrorContains(t, err, "url is required")
}

func TestApplySeedSkipsKnownURLs(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "monitors.yaml"), `
monitors:
  - url: a.example.com
  - url: http://A.example.com
  - url: b.example.com
`)
	r := NewRegistry(testLogger(), nil)
	_, err := r.Create(CreateMonitorRequest{URL: "b.example.com"})
	require.NoError(t, err)

	n, err := applySeed(r, path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, r.Len())

	n, err = applySeed(r, path, testLogger())
	require.NoError(t, err)
	assert.Zero(t, n)
}
