package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures the full process configuration so main stays lean.
type Config struct {
	Server    Server
	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Scheduler SchedulerConfig
	Connector ConnectorConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
}

// PostgresConfig captures the durable store connection. Empty URL means
// in-memory stores (development and unit tests).
type PostgresConfig struct {
	URL string
}

// RedisConfig captures the scheduler lease backend. Empty URL disables
// the lease and lets every instance tick (single-node deployments).
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig captures the transition event feed. Empty brokers means
// events stay in the outbox only.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// SchedulerConfig drives the activation/expiry tick and pool cool-down.
type SchedulerConfig struct {
	TickInterval  time.Duration
	CoolDown      time.Duration
	LeaseKey      string
	LeaseDuration time.Duration
}

// ConnectorConfig bounds external target-system calls.
type ConnectorConfig struct {
	CallTimeout time.Duration
	MaxAttempts int
	BackoffBase time.Duration
}

// FromEnv builds the configuration from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr: envString("FIREGATE_ADDR", ":8080"),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			Topic:   envString("KAFKA_TRANSITIONS_TOPIC", "firegate.request.transitions"),
		},
		Scheduler: SchedulerConfig{
			TickInterval:  envDuration("SCHEDULER_TICK_INTERVAL", 30*time.Second),
			CoolDown:      envDuration("POOL_COOLDOWN", 15*time.Minute),
			LeaseKey:      envString("SCHEDULER_LEASE_KEY", "firegate:scheduler:lease"),
			LeaseDuration: envDuration("SCHEDULER_LEASE_DURATION", 90*time.Second),
		},
		Connector: ConnectorConfig{
			CallTimeout: envDuration("CONNECTOR_CALL_TIMEOUT", 10*time.Second),
			MaxAttempts: envInt("CONNECTOR_MAX_ATTEMPTS", 3),
			BackoffBase: envDuration("CONNECTOR_BACKOFF_BASE", 2*time.Second),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
