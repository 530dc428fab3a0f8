package memory

import (
	"context"
	"sync"

	"github.com/aretw0/bpmgate/pkg/domain"
)

// AuditStore implements ports.AuditStore in memory.
// Safe for concurrent use.
type AuditStore struct {
	data map[string][]domain.AuditRecord
	mu   sync.RWMutex
}

// NewAuditStore creates a new in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{
		data: make(map[string][]domain.AuditRecord),
	}
}

// Append stores the record under its process instance.
func (s *AuditStore) Append(ctx context.Context, record domain.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[record.ProcessInstanceID] = append(s.data[record.ProcessInstanceID], record)
	return nil
}

// List returns a copy of the records so callers cannot mutate the store.
func (s *AuditStore) List(ctx context.Context, processInstanceID string) ([]domain.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.data[processInstanceID]
	out := make([]domain.AuditRecord, len(records))
	copy(out, records)
	return out, nil
}

// NotificationChannel keeps delivered notifications for inspection.
type NotificationChannel struct {
	sent []domain.Notification
	mu   sync.Mutex
}

// NewNotificationChannel creates an empty channel.
func NewNotificationChannel() *NotificationChannel {
	return &NotificationChannel{}
}

func (c *NotificationChannel) Name() string { return "memory" }

func (c *NotificationChannel) Deliver(ctx context.Context, n domain.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
	return nil
}

// Sent returns the notifications delivered so far, oldest first.
func (c *NotificationChannel) Sent() []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Notification, len(c.sent))
	copy(out, c.sent)
	return out
}
