package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serialises work on a key (a process instance ID) across replicas.
type DistributedLocker interface {
	// Lock blocks until the lock for key is held or ctx is done.
	// The returned UnlockFunc MUST be called to release it; the TTL bounds a crashed holder.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
