package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `http:
  addr: ":9000"
store:
  path: "/var/lib/cad/cad.db"
dispatch:
  max_assignments_per_unit: 2
panic:
  timeout: 2s
alert:
  url: "https://discord.com/api/webhooks/1/x"
  locale: "fr"
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  client_id: "cli"
  username: "user"
  password: "pass"
  qos:
    events: 1
metrics:
  sinks:
    - type: "nop"
    - type: "influx"
      conf:
        url: "http://localhost:8086"
        bucket: "cad"
journal:
  backend: "sqlite"
  path: "journal.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"http.addr", cfg.HTTP.Addr, ":9000"},
		{"http.base_path", cfg.HTTP.BasePath, "/v1"},
		{"store.path", cfg.Store.Path, "/var/lib/cad/cad.db"},
		{"dispatch.max", cfg.Dispatch.MaxAssignmentsPerUnit, 2},
		{"dispatch.end_call_retries", cfg.Dispatch.EndCallRetries, 3},
		{"panic.timeout", cfg.Panic.Timeout, 2 * time.Second},
		{"alert.locale", cfg.Alert.Locale, "fr"},
		{"mqtt.broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"mqtt.client_id", cfg.MQTT.ClientID, "cli"},
		{"mqtt.topic_prefix", cfg.MQTT.TopicPrefix, "cad"},
		{"mqtt.qos", cfg.MQTT.QoS["events"], byte(1)},
		{"metrics.sinks", len(cfg.Metrics.Sinks), 2},
		{"metrics.influx", cfg.Metrics.Sinks[1].Conf["bucket"], "cad"},
		{"journal.backend", cfg.Journal.Backend, "sqlite"},
		{"broadcast.buffer", cfg.Broadcast.Buffer, 64},
		{"logging.level", cfg.Logging.Level, "info"},
		{"sentry.environment", cfg.Sentry.Environment, "production"},
	}
	for _, c := range checks {
		assert.Equal(t, c.want, c.got, c.name)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "config.json", `{"mqtt":{"broker":"tcp://file:1883"}}`)
	t.Setenv("CAD_MQTT__BROKER", "tcp://env:1883")
	t.Setenv("CAD_DISPATCH__MAX_ASSIGNMENTS_PER_UNIT", "4")
	t.Setenv("CAD_LOGGING__LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp://env:1883", cfg.MQTT.Broker)
	assert.Equal(t, 4, cfg.Dispatch.MaxAssignmentsPerUnit)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("CAD_STORE__PATH", "env.db")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Store.Path)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoadRejectsInvalidSections(t *testing.T) {
	_, err := Load(writeConfig(t, "config.toml", ""))
	assert.Error(t, err)

	path := writeConfig(t, "bad.yaml", `dispatch:
  max_assignments_per_unit: -1
mqtt:
  enabled: true
logging:
  level: loud
journal:
  backend: kafka
metrics:
  sinks:
    - conf: {bucket: cad}
`)
	_, err = Load(path)
	require.Error(t, err)
	for _, want := range []string{"max_assignments_per_unit", "broker", "logging.level", "journal", "sinks[0]"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestJournalOpen(t *testing.T) {
	dir := t.TempDir()
	for _, c := range []JournalConfig{
		{Backend: "jsonl", Path: filepath.Join(dir, "a.log")},
		{Backend: "jsonl", Path: filepath.Join(dir, "b.log"), MaxSizeMB: 1, MaxBackups: 2},
		{Backend: "sqlite", Path: filepath.Join(dir, "c.db")},
	} {
		s, err := c.Open()
		require.NoError(t, err, c.Backend)
		require.NotNil(t, s)
		require.NoError(t, s.Close())
	}
	s, err := JournalConfig{Backend: "none"}.Open()
	require.NoError(t, err)
	assert.Nil(t, s)
}
