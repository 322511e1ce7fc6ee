package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/wms-platform/inbound-service/pkg/kafka"
	"github.com/wms-platform/inbound-service/pkg/mongodb"
)

// Store backends
const (
	BackendMongoDB = "mongodb"
	BackendMemory  = "memory"
)

// Config holds application configuration
type Config struct {
	ServerAddr   string
	LogLevel     string
	Environment  string
	StoreBackend string

	MongoDB      *mongodb.Config
	Kafka        *kafka.Config
	KafkaEnabled bool

	TracingEnabled bool
	OTLPEndpoint   string

	Retry RetryConfig

	DefaultReceivingLocation string
	PutawayRulesFile         string

	Outbox OutboxConfig
}

// RetryConfig bounds optimistic-concurrency retries
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

// OutboxConfig controls the outbox publisher and the purge job
type OutboxConfig struct {
	PollInterval  time.Duration
	Retention     time.Duration
	PurgeSchedule string
}

// Load reads the environment, optionally seeded from envFile, and validates the result.
// A missing env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() (*Config, error) {
	var errs []error
	duration := func(key string, fallback time.Duration) time.Duration {
		d, err := time.ParseDuration(getEnv(key, fallback.String()))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}
	integer := func(key string, fallback int) int {
		n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return n
	}
	boolean := func(key string, fallback bool) bool {
		b, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return b
	}

	mongoCfg := mongodb.DefaultConfig()
	mongoCfg.URI = getEnv("MONGODB_URI", mongoCfg.URI)
	mongoCfg.Database = getEnv("MONGODB_DATABASE", mongoCfg.Database)
	mongoCfg.ReplicaSet = os.Getenv("MONGODB_REPLICA_SET")

	kafkaCfg := kafka.DefaultConfig()
	kafkaCfg.Brokers = splitList(getEnv("KAFKA_BROKERS", strings.Join(kafkaCfg.Brokers, ",")))

	cfg := &Config{
		ServerAddr:   getEnv("SERVER_ADDR", ":8010"),
		LogLevel:     strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Environment:  getEnv("ENVIRONMENT", "development"),
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendMongoDB)),

		MongoDB:      mongoCfg,
		Kafka:        kafkaCfg,
		KafkaEnabled: boolean("KAFKA_ENABLED", true),

		TracingEnabled: boolean("TRACING_ENABLED", true),
		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		Retry: RetryConfig{
			MaxAttempts:  integer("RETRY_MAX_ATTEMPTS", 3),
			InitialDelay: duration("RETRY_INITIAL_DELAY", 10*time.Millisecond),
		},

		DefaultReceivingLocation: getEnv("DEFAULT_RECEIVING_LOCATION", "DOCK-01"),
		PutawayRulesFile:         os.Getenv("PUTAWAY_RULES_FILE"),

		Outbox: OutboxConfig{
			PollInterval:  duration("OUTBOX_POLL_INTERVAL", time.Second),
			Retention:     duration("OUTBOX_RETENTION", 72*time.Hour),
			PurgeSchedule: getEnv("OUTBOX_PURGE_SCHEDULE", "@hourly"),
		},
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the configuration is usable
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.ServerAddr == "" {
		return errors.New("SERVER_ADDR must be provided")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel)
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendMongoDB:
		if c.MongoDB.URI == "" {
			return errors.New("MONGODB_URI must be provided")
		}
		if c.MongoDB.Database == "" {
			return errors.New("MONGODB_DATABASE must be provided")
		}
	default:
		return fmt.Errorf("STORE_BACKEND %q is not one of mongodb, memory", c.StoreBackend)
	}

	if c.KafkaEnabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("KAFKA_BROKERS must be provided when KAFKA_ENABLED is true")
	}

	if c.Retry.MaxAttempts < 1 {
		return errors.New("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.Retry.InitialDelay < 0 {
		return errors.New("RETRY_INITIAL_DELAY must not be negative")
	}

	if c.DefaultReceivingLocation == "" {
		return errors.New("DEFAULT_RECEIVING_LOCATION must be provided")
	}

	if c.Outbox.PollInterval <= 0 {
		return errors.New("OUTBOX_POLL_INTERVAL must be positive")
	}
	if c.Outbox.Retention <= 0 {
		return errors.New("OUTBOX_RETENTION must be positive")
	}
	if _, err := cron.ParseStandard(c.Outbox.PurgeSchedule); err != nil {
		return fmt.Errorf("OUTBOX_PURGE_SCHEDULE: %w", err)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
