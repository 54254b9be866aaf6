// Package config loads runtime configuration from environment variables.
// A .env file in the working directory is read first when present; real
// environment variables take precedence over it.
package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.
//
// Fields:
//   - Env, Port: deployment name and HTTP port.
//   - StoreDriver: "mysql" or "memory". The DB* fields are required only
//     for mysql.
//   - JWTSecret, AccessTTLMin, RefreshTTLDays, BcryptCost: token issuing.
//   - AMQPURL, EventQueue, ConsumerPrefetch: event bus. An empty AMQPURL
//     delivers events inline.
//   - RolesPath: optional YAML role registry overriding the built-in one.
type Config struct {
	Env              string
	Port             string
	StoreDriver      string
	DBUser           string
	DBPass           string
	DBHost           string
	DBPort           string
	DBName           string
	JWTSecret        string
	AccessTTLMin     int
	RefreshTTLDays   int
	BcryptCost       int
	AMQPURL          string
	EventQueue       string
	ConsumerPrefetch int
	RolesPath        string
	Fanout           FanoutConfig
	Retention        RetentionConfig
	Log              LogConfig
	Telemetry        TelemetryConfig
}

// FanoutConfig tunes notification delivery.
type FanoutConfig struct {
	BatchSize   int
	AudienceTTL time.Duration
}

// RetentionConfig tunes the notification sweeper. Interval zero disables
// the scheduled sweep in the server.
type RetentionConfig struct {
	Days       int
	BatchSize  int
	MaxBatches int
	Interval   time.Duration
}

// LogConfig selects the zap encoder and an optional rotating file sink.
type LogConfig struct {
	Dev   bool
	Level string
	Dir   string
}

// TelemetryConfig enables OTLP trace export when Endpoint is set.
type TelemetryConfig struct {
	Endpoint    string
	ServiceName string
	Insecure    bool
}

// Load reads the configuration. Missing required variables stop the
// process.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Env:              must("APP_ENV"),
		Port:             envStr("APP_PORT", "8080"),
		StoreDriver:      envStr("STORE_DRIVER", "mysql"),
		JWTSecret:        must("JWT_SECRET"),
		AccessTTLMin:     envInt("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays:   envInt("REFRESH_TOKEN_TTL_DAYS", 7),
		BcryptCost:       envInt("BCRYPT_COST", 10),
		AMQPURL:          os.Getenv("AMQP_URL"),
		EventQueue:       envStr("EVENT_QUEUE", "platform.events"),
		ConsumerPrefetch: envInt("CONSUMER_PREFETCH", 50),
		RolesPath:        os.Getenv("ROLE_REGISTRY_PATH"),
		Fanout:           LoadFanoutConfig(),
		Retention:        LoadRetentionConfig(),
		Log:              LoadLogConfig(),
		Telemetry:        LoadTelemetryConfig(),
	}
	if cfg.StoreDriver == "mysql" {
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = envStr("DB_PORT", "3306")
		cfg.DBName = must("DB_NAME")
	}
	return cfg
}

func LoadFanoutConfig() FanoutConfig {
	return FanoutConfig{
		BatchSize:   envInt("FANOUT_BATCH_SIZE", 500),
		AudienceTTL: envDur("AUDIENCE_CACHE_TTL", 30*time.Second),
	}
}

func LoadRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Days:       envInt("RETENTION_DAYS", 30),
		BatchSize:  envInt("RETENTION_BATCH_SIZE", 500),
		MaxBatches: envInt("RETENTION_MAX_BATCHES", 100),
		Interval:   envDur("RETENTION_INTERVAL", 24*time.Hour),
	}
}

func LoadLogConfig() LogConfig {
	return LogConfig{
		Dev:   envBool("LOG_DEV", false),
		Level: envStr("LOG_LEVEL", "info"),
		Dir:   os.Getenv("LOG_DIR"),
	}
}

func LoadTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName: envStr("OTEL_SERVICE_NAME", "venture-platform"),
		Insecure:    envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
