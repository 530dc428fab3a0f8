// Package locking serialises work per key, locally and optionally across replicas.
package locking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/bpmgate/internal/logging"
	"github.com/aretw0/bpmgate/pkg/ports"
)

// DefaultTTL bounds how long a crashed replica can hold a distributed lock.
const DefaultTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Keyed hands out one mutex per key and drops it once nobody holds or waits for it.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*lockEntry

	locker ports.DistributedLocker
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a Keyed lock.
type Option func(*Keyed)

// WithLocker also takes a distributed lock for every key.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(k *Keyed) { k.locker = locker }
}

// WithTTL sets the distributed lock TTL.
func WithTTL(ttl time.Duration) Option {
	return func(k *Keyed) { k.ttl = ttl }
}

func WithLogger(logger *slog.Logger) Option {
	return func(k *Keyed) { k.logger = logger }
}

// NewKeyed creates an empty keyed lock.
func NewKeyed(opts ...Option) *Keyed {
	k := &Keyed{
		locks:  make(map[string]*lockEntry),
		ttl:    DefaultTTL,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// acquire gets or creates the entry for key and increments its reference count.
// The caller MUST lock entry.mu, and call release(key) after unlocking.
func (k *Keyed) acquire(key string) *lockEntry {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (k *Keyed) release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry, ok := k.locks[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(k.locks, key)
	}
}

// Len reports how many keys currently have an entry.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// WithLock runs fn while holding the lock for key.
func (k *Keyed) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := k.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		k.release(key)
	}()

	if k.locker != nil {
		unlock, err := k.locker.Lock(ctx, key, k.ttl)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				k.logger.Warn("failed to release distributed lock (will expire via TTL)", "key", key, "error", err)
			}
		}()
	}

	return fn(ctx)
}
