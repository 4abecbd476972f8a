package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WATCH_DIR", "/data/results")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/results", cfg.WatchDir)
	assert.Equal(t, ".processed", cfg.LedgerFile)
	assert.Equal(t, 1*time.Minute, cfg.ScanInterval)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 1*time.Second, cfg.TickInterval)
	assert.Equal(t, 5*time.Minute, cfg.StaleGrace)
	assert.Equal(t, 10*time.Second, cfg.CallTimeout)
	assert.Equal(t, 5, cfg.BootstrapAttempts)
	assert.Equal(t, 2*time.Second, cfg.BootstrapDelay)
	assert.Equal(t, "secrets.yaml", cfg.SecretsFile)
	assert.Equal(t, "modtrack/database", cfg.DBSecretName)
	assert.Equal(t, "modtrack/api", cfg.APISecretName)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "validation-events", cfg.KafkaEventsTopic)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("WATCH_DIR", "/srv/forecasts")
	t.Setenv("LEDGER_FILE", "ingested.log")
	t.Setenv("SCAN_INTERVAL", "30s")
	t.Setenv("SWEEP_INTERVAL", "10m")
	t.Setenv("TICK_INTERVAL", "500ms")
	t.Setenv("STALE_GRACE", "2m")
	t.Setenv("CALL_TIMEOUT", "5s")
	t.Setenv("BOOTSTRAP_ATTEMPTS", "3")
	t.Setenv("BOOTSTRAP_DELAY", "1s")
	t.Setenv("SECRETS_FILE", "/etc/modtrack/secrets.yaml")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_EVENTS_TOPIC", "custom-events")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/forecasts", cfg.WatchDir)
	assert.Equal(t, "ingested.log", cfg.LedgerFile)
	assert.Equal(t, 30*time.Second, cfg.ScanInterval)
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 2*time.Minute, cfg.StaleGrace)
	assert.Equal(t, 5*time.Second, cfg.CallTimeout)
	assert.Equal(t, 3, cfg.BootstrapAttempts)
	assert.Equal(t, 1*time.Second, cfg.BootstrapDelay)
	assert.Equal(t, "/etc/modtrack/secrets.yaml", cfg.SecretsFile)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-events", cfg.KafkaEventsTopic)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_MissingWatchDir(t *testing.T) {
	t.Setenv("WATCH_DIR", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WATCH_DIR")
}

func TestLoad_InvalidScanInterval(t *testing.T) {
	t.Setenv("WATCH_DIR", "/data/results")
	t.Setenv("SCAN_INTERVAL", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCAN_INTERVAL")
}

func TestLoad_NegativeStaleGrace(t *testing.T) {
	t.Setenv("WATCH_DIR", "/data/results")
	t.Setenv("STALE_GRACE", "-1m")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STALE_GRACE")
}

func TestLoad_InvalidBootstrapAttempts(t *testing.T) {
	t.Setenv("WATCH_DIR", "/data/results")
	t.Setenv("BOOTSTRAP_ATTEMPTS", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOOTSTRAP_ATTEMPTS")
}

func TestLoadDashboard_Defaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("CALL_TIMEOUT", "")

	cfg, err := LoadDashboard()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, "secrets.yaml", cfg.SecretsFile)
	assert.Equal(t, "modtrack/database", cfg.DBSecretName)
	assert.Equal(t, 10*time.Second, cfg.CallTimeout)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoadMockAPI_Defaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("MOCK_API_KEY", "test_key")

	cfg, err := LoadMockAPI()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, "test_key", cfg.APIKey)
}
