package port

import (
	"context"
	"time"
)

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency forgets a key so a failed request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error
}

// Locker hands out exclusive leases shared by every service instance.
type Locker interface {
	// Obtain blocks until the lease is held or ctx ends. The returned func releases it.
	Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}
