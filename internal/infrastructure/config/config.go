// internal/infrastructure/config/config.go
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Sink backends
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config holds all configuration for the application
type Config struct {
	// App
	AppVersion string
	LogLevel   string

	// Server
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Feed
	FeedHost        string
	FeedPort        int
	FeedReadBuffer  int
	FeedDialTimeout time.Duration
	ReconnectDelay  time.Duration

	// Ingest
	BulkSize          int
	FlushTimeout      time.Duration
	FlushRetries      int
	FlushRetryBackoff time.Duration

	// Sink
	SinkBackend     string
	StoreCollection string

	// MongoDB
	MongoURI      string
	MongoDB       string
	MongoUser     string
	MongoPassword string

	// PostgreSQL
	PostgresURI string

	// Redis
	RedisAddr string
	RedisDB   int
	RedisTTL  time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	config := &Config{
		AppVersion:   getEnv("APP_VERSION", "1.0.0"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Port:         getEnv("PORT", "8080"),
		ReadTimeout:  getEnvAsDuration("READ_TIMEOUT", 30, time.Second),
		WriteTimeout: getEnvAsDuration("WRITE_TIMEOUT", 30, time.Second),

		FeedHost:        getEnv("FEED_HOST", "localhost"),
		FeedPort:        getEnvAsInt("FEED_PORT", 30003),
		FeedReadBuffer:  getEnvAsInt("FEED_READ_BUFFER", 1024),
		FeedDialTimeout: getEnvAsDuration("FEED_DIAL_TIMEOUT", 10, time.Second),
		ReconnectDelay:  getEnvAsDuration("RECONNECT_DELAY", 0, time.Second),

		BulkSize:          getEnvAsInt("BULK_SIZE", 50),
		FlushTimeout:      getEnvAsDuration("FLUSH_TIMEOUT", 10, time.Second),
		FlushRetries:      getEnvAsInt("FLUSH_RETRIES", 0),
		FlushRetryBackoff: getEnvAsDuration("FLUSH_RETRY_BACKOFF", 500, time.Millisecond),

		SinkBackend:     getEnv("SINK_BACKEND", BackendMongo),
		StoreCollection: getEnv("STORE_COLLECTION", "adsb-traffic"),

		MongoURI:      getEnv("MONGODB_DSN", "mongodb://localhost:27017"),
		MongoDB:       getEnv("MONGO_DB", "adsb"),
		MongoUser:     getEnv("MONGO_USER", ""),
		MongoPassword: getEnv("MONGO_PASSWORD", ""),

		PostgresURI: getEnv("POSTGRES_URI", ""),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:   getEnvAsInt("REDIS_DB", 0),
		RedisTTL:  getEnvAsDuration("REDIS_TTL", 600, time.Second),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	if c.BulkSize <= 0 {
		return fmt.Errorf("%w: BULK_SIZE must be positive, got %d", ErrInvalidConfig, c.BulkSize)
	}
	if c.FeedPort <= 0 || c.FeedPort > 65535 {
		return fmt.Errorf("%w: FEED_PORT out of range: %d", ErrInvalidConfig, c.FeedPort)
	}
	if c.FlushRetries < 0 {
		return fmt.Errorf("%w: FLUSH_RETRIES must not be negative", ErrInvalidConfig)
	}

	switch c.SinkBackend {
	case BackendMongo, BackendRedis:
	case BackendPostgres:
		if c.PostgresURI == "" {
			return fmt.Errorf("%w: POSTGRES_URI is required for the postgres backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown SINK_BACKEND %q", ErrInvalidConfig, c.SinkBackend)
	}

	return nil
}

// FeedAddr is the host:port of the telemetry feed
func (c *Config) FeedAddr() string {
	return net.JoinHostPort(c.FeedHost, strconv.Itoa(c.FeedPort))
}

// Helper functions to get environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration reads an integer count of unit
func getEnvAsDuration(key string, defaultValue int, unit time.Duration) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultValue)) * unit
}
