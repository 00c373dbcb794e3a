package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix         = "lock:"
	lockRetryInterval     = 100 * time.Millisecond
	defaultIdempotencyTTL = 24 * time.Hour
)

// ErrLockNotObtained is returned when the lock stayed held by another
// instance for longer than the caller was willing to wait.
var ErrLockNotObtained = errors.New("lock not obtained")

type RedisAdapter struct {
	client         *redis.Client
	locks          *redislock.Client
	idempotencyTTL time.Duration
}

func NewRedisAdapter(client *redis.Client, idempotencyTTL time.Duration) *RedisAdapter {
	if idempotencyTTL <= 0 {
		idempotencyTTL = defaultIdempotencyTTL
	}
	return &RedisAdapter{
		client:         client,
		locks:          redislock.New(client),
		idempotencyTTL: idempotencyTTL,
	}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, r.idempotencyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Obtain retries until the lock is free, ttl elapses or ctx ends.
func (r *RedisAdapter) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	retries := int(ttl / lockRetryInterval)
	lock, err := r.locks.Obtain(ctx, lockKeyPrefix+key, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(lockRetryInterval), retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrLockNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func(ctx context.Context) error {
		err := lock.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return nil
		}
		return err
	}, nil
}
