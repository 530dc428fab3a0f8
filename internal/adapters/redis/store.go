package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/bpmgate/internal/logging"
	"github.com/aretw0/bpmgate/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the adapters.
const DefaultPrefix = "bpmgate:"

// streamMaxLen caps the global audit stream (approximate trimming).
const streamMaxLen = 100000

// AuditStore implements ports.AuditStore using Redis.
// Records live in one list per process instance and are mirrored to a global stream
// so other services can follow the trail.
type AuditStore struct {
	client backend.UniversalClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

type Option func(*AuditStore)

// WithTTL sets the expiration for per-instance trails.
func WithTTL(ttl time.Duration) Option {
	return func(s *AuditStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *AuditStore) {
		s.prefix = prefix
	}
}

// WithLogger sets the logger used for non-fatal failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *AuditStore) {
		s.logger = logger
	}
}

// New creates a new Redis audit store with options.
func New(address, password string, db int, opts ...Option) *AuditStore {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis audit store from an existing client.
func NewFromClient(client backend.UniversalClient, opts ...Option) *AuditStore {
	store := &AuditStore{
		client: client,
		prefix: DefaultPrefix,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *AuditStore) key(processInstanceID string) string {
	return s.prefix + "audit:" + processInstanceID
}

func (s *AuditStore) indexKey() string {
	return s.prefix + "audit:index"
}

// StreamKey is the global stream mirroring every record.
func (s *AuditStore) StreamKey() string {
	return s.prefix + "audit:stream"
}

// Append pushes the record to the instance list and the global stream in one round trip.
func (s *AuditStore) Append(ctx context.Context, record domain.AuditRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, s.key(record.ProcessInstanceID), data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(record.ProcessInstanceID), s.ttl)
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(record.Timestamp.Unix()),
		Member: record.ProcessInstanceID,
	})
	pipe.XAdd(ctx, &backend.XAddArgs{
		Stream: s.StreamKey(),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"kind":                string(record.Kind),
			"process_instance_id": record.ProcessInstanceID,
			"record":              string(data),
		},
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append to redis: %w", err)
	}
	return nil
}

// List returns the trail of an instance in insertion order.
func (s *AuditStore) List(ctx context.Context, processInstanceID string) ([]domain.AuditRecord, error) {
	vals, err := s.client.LRange(ctx, s.key(processInstanceID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read audit trail: %w", err)
	}

	records := make([]domain.AuditRecord, 0, len(vals))
	for _, v := range vals {
		var r domain.AuditRecord
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit record: %w", err)
		}
		records = append(records, r)
	}
	return records, nil
}

// Instances lists the audited process instances, most recently active first.
// Instances whose trail expired are pruned from the index.
func (s *AuditStore) Instances(ctx context.Context) ([]string, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list audited instances: %w", err)
	}
	if s.ttl == 0 {
		return ids, nil
	}

	live := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := s.client.Exists(ctx, s.key(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check trail: %w", err)
		}
		if n == 0 {
			if err := s.client.ZRem(ctx, s.indexKey(), id).Err(); err != nil {
				s.logger.Warn("Failed to prune expired trail from index", "process_instance_id", id, "error", err)
			}
			continue
		}
		live = append(live, id)
	}
	return live, nil
}

// Close closes the redis client.
func (s *AuditStore) Close() error {
	return s.client.Close()
}
