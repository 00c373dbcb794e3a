package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	StoreSQLite = "sqlite"
	StoreMySQL  = "mysql"

	NotifierLog    = "log"
	NotifierRedis  = "redis"
	NotifierPubSub = "pubsub"
)

type Config struct {
	StoreDriver string `validate:"oneof=sqlite mysql"`
	SQLitePath  string `validate:"required_if=StoreDriver sqlite"`
	MySQLDSN    string `validate:"required_if=StoreDriver mysql"`

	// RedisAddr enables idempotency keys and order locks when set
	RedisAddr    string `validate:"required_if=Notifier redis"`
	RedisChannel string

	Notifier        string `validate:"oneof=log redis pubsub"`
	PubSubProjectID string `validate:"required_if=Notifier pubsub"`
	PubSubTopic     string `validate:"required_if=Notifier pubsub"`

	HTTPAddr string `validate:"required"`
	GRPCAddr string `validate:"required"`

	LaneQueueSize   int           `validate:"gte=1"`
	ConflictRetries int           `validate:"gte=0,lte=10"`
	OrderLockTTL    time.Duration `validate:"gt=0"`
	IdempotencyTTL  time.Duration `validate:"gt=0"`

	LogLevel string `validate:"oneof=trace debug info warn error"`
}

// Load reads the environment, after merging a .env file when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		StoreDriver:     getEnv("STORE_DRIVER", StoreSQLite),
		SQLitePath:      getEnv("SQLITE_PATH", "data/goods-issue.db"),
		MySQLDSN:        os.Getenv("MYSQL_DSN"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisChannel:    os.Getenv("REDIS_CHANNEL"),
		Notifier:        getEnv("NOTIFIER", NotifierLog),
		PubSubProjectID: os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubTopic:     os.Getenv("PUBSUB_TOPIC"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:        getEnv("GRPC_ADDR", ":50051"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.LaneQueueSize, err = getEnvInt("LANE_QUEUE_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.ConflictRetries, err = getEnvInt("CONFLICT_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.OrderLockTTL, err = getEnvDuration("ORDER_LOCK_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL, err = getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
