package config

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"STORE_DRIVER", "SQLITE_PATH", "MYSQL_DSN", "REDIS_ADDR", "REDIS_CHANNEL",
	"NOTIFIER", "PUBSUB_PROJECT_ID", "PUBSUB_TOPIC", "HTTP_ADDR", "GRPC_ADDR",
	"LANE_QUEUE_SIZE", "CONFLICT_RETRIES", "ORDER_LOCK_TTL", "IDEMPOTENCY_TTL", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, StoreSQLite, cfg.StoreDriver)
	assert.Equal(t, NotifierLog, cfg.Notifier)
	assert.Equal(t, 1000, cfg.LaneQueueSize)
	assert.Equal(t, 3, cfg.ConflictRetries)
	assert.Equal(t, 30*time.Second, cfg.OrderLockTTL)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "mysql")
	t.Setenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/goodsissue")
	t.Setenv("NOTIFIER", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CONFLICT_RETRIES", "5")
	t.Setenv("ORDER_LOCK_TTL", "45s")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, StoreMySQL, cfg.StoreDriver)
	assert.Equal(t, 5, cfg.ConflictRetries)
	assert.Equal(t, 45*time.Second, cfg.OrderLockTTL)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown driver", env: map[string]string{"STORE_DRIVER": "postgres"}},
		{name: "mysql without dsn", env: map[string]string{"STORE_DRIVER": "mysql"}},
		{name: "pubsub without project", env: map[string]string{"NOTIFIER": "pubsub", "PUBSUB_TOPIC": "stock"}},
		{name: "redis notifier without addr", env: map[string]string{"NOTIFIER": "redis"}},
		{name: "bad retries", env: map[string]string{"CONFLICT_RETRIES": "many"}},
		{name: "retries out of range", env: map[string]string{"CONFLICT_RETRIES": "50"}},
		{name: "empty queue", env: map[string]string{"LANE_QUEUE_SIZE": "0"}},
		{name: "bad ttl", env: map[string]string{"ORDER_LOCK_TTL": "soon"}},
		{name: "bad level", env: map[string]string{"LOG_LEVEL": "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	_, err = NewLogger("loud")
	assert.Error(t, err)
}

func TestLogError(t *testing.T) {
	logger, hook := test.NewNullLogger()

	LogError(logger, "reconcile", "Forward", "lock order", int64(7), errors.New("lock held"))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "lock held", entry.Message)
	assert.Equal(t, int64(7), entry.Data["data"])

	LogError(logger, "reconcile", "Forward", "lock order", nil, errors.New("lock held"))
	_, ok := hook.LastEntry().Data["data"]
	assert.False(t, ok)
}
