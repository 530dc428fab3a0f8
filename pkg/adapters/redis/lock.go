package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/bpmgate/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

var (
	// ErrLockAcquire is returned when the lock cannot be acquired.
	ErrLockAcquire = errors.New("failed to acquire distributed lock")
)

// DefaultLockPrefix namespaces lock keys.
const DefaultLockPrefix = "bpmgate:"

const retryInterval = 100 * time.Millisecond

var unlockScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Locker implements ports.DistributedLocker using Redis.
type Locker struct {
	client backend.UniversalClient
	prefix string
}

// NewLocker creates a new Redis locker. An empty prefix uses DefaultLockPrefix.
func NewLocker(client backend.UniversalClient, prefix string) *Locker {
	if prefix == "" {
		prefix = DefaultLockPrefix
	}
	return &Locker{client: client, prefix: prefix}
}

// Lock acquires the lock for key with SET NX PX, polling until ctx is done.
// Each holder writes a unique token so it can only release its own lock.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrLockAcquire, ctx.Err())
			}
			return nil, fmt.Errorf("redis error acquiring lock: %w", err)
		}
		if ok {
			return func(ctx context.Context) error {
				return unlockScript.Run(ctx, l.client, []string{lockKey}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockAcquire, ctx.Err())
		case <-ticker.C:
		}
	}
}
