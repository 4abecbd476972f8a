package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	WatchDir   string
	LedgerFile string

	ScanInterval  time.Duration
	SweepInterval time.Duration
	TickInterval  time.Duration
	StaleGrace    time.Duration
	CallTimeout   time.Duration

	BootstrapAttempts int
	BootstrapDelay    time.Duration

	SecretsFile   string
	DBSecretName  string
	APISecretName string

	KafkaBrokers     []string
	KafkaEventsTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	watchDir := os.Getenv("WATCH_DIR")
	if watchDir == "" {
		return nil, errors.New("WATCH_DIR is required")
	}

	scanInterval, err := parseDuration("SCAN_INTERVAL", "1m")
	if err != nil {
		return nil, err
	}
	sweepInterval, err := parseDuration("SWEEP_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	tickInterval, err := parseDuration("TICK_INTERVAL", "1s")
	if err != nil {
		return nil, err
	}
	staleGrace, err := parseDuration("STALE_GRACE", "5m")
	if err != nil {
		return nil, err
	}
	callTimeout, err := parseDuration("CALL_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	bootstrapDelay, err := parseDuration("BOOTSTRAP_DELAY", "2s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	attempts, err := parseBootstrapAttempts()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		WatchDir:   watchDir,
		LedgerFile: envOrDefault("LEDGER_FILE", ".processed"),

		ScanInterval:  scanInterval,
		SweepInterval: sweepInterval,
		TickInterval:  tickInterval,
		StaleGrace:    staleGrace,
		CallTimeout:   callTimeout,

		BootstrapAttempts: attempts,
		BootstrapDelay:    bootstrapDelay,

		SecretsFile:   envOrDefault("SECRETS_FILE", "secrets.yaml"),
		DBSecretName:  envOrDefault("DB_SECRET_NAME", "modtrack/database"),
		APISecretName: envOrDefault("API_SECRET_NAME", "modtrack/api"),

		KafkaBrokers:     parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaEventsTopic: envOrDefault("KAFKA_EVENTS_TOPIC", "validation-events"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaEventsTopic == "" {
		return nil, errors.New("KAFKA_EVENTS_TOPIC is required")
	}

	return cfg, nil
}

// Dashboard holds settings for the read-only dashboard server, which needs
// database access but none of the watch or scheduling machinery.
type Dashboard struct {
	HTTPAddr     string
	SecretsFile  string
	DBSecretName string
	CallTimeout  time.Duration

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// LoadDashboard reads dashboard configuration from environment variables.
func LoadDashboard() (*Dashboard, error) {
	callTimeout, err := parseDuration("CALL_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		HTTPAddr:     envOrDefault("HTTP_ADDR", ":8081"),
		SecretsFile:  envOrDefault("SECRETS_FILE", "secrets.yaml"),
		DBSecretName: envOrDefault("DB_SECRET_NAME", "modtrack/database"),
		CallTimeout:  callTimeout,

		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

// MockAPI holds settings for the stand-in water-level API.
type MockAPI struct {
	HTTPAddr string
	APIKey   string

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// LoadMockAPI reads mock API configuration from environment variables. An
// empty MOCK_API_KEY disables auth.
func LoadMockAPI() (*MockAPI, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	return &MockAPI{
		HTTPAddr: envOrDefault("HTTP_ADDR", ":8000"),
		APIKey:   os.Getenv("MOCK_API_KEY"),

		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	raw := envOrDefault(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func parseBootstrapAttempts() (int, error) {
	raw := envOrDefault("BOOTSTRAP_ATTEMPTS", "5")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid BOOTSTRAP_ATTEMPTS: %q", raw)
	}
	return n, nil
}

func parseBrokers(raw string) []string {
	parts := strings.Split(raw, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
