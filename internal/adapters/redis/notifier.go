package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/bpmgate/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// NotificationStream is the stream notifications are published to.
const NotificationStream = "bpmgate:notifications"

// NotificationChannel publishes notifications to a Redis stream for mailers and chat bots.
type NotificationChannel struct {
	client backend.UniversalClient
	stream string
}

// NewNotificationChannel publishes to stream; empty means NotificationStream.
func NewNotificationChannel(client backend.UniversalClient, stream string) *NotificationChannel {
	if stream == "" {
		stream = NotificationStream
	}
	return &NotificationChannel{client: client, stream: stream}
}

func (c *NotificationChannel) Name() string { return "redis" }

func (c *NotificationChannel) Deliver(ctx context.Context, n domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	err = c.client.XAdd(ctx, &backend.XAddArgs{
		Stream: c.stream,
		Values: map[string]any{
			"kind":      string(n.Kind),
			"recipient": n.Recipient,
			"payload":   string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}
