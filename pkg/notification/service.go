// Package notification sends workflow notifications to every configured channel.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/bpmgate/internal/logging"
	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/observability"
	"github.com/aretw0/bpmgate/pkg/ports"
	"github.com/benbjohnson/clock"
)

// Notification is a message addressed to a person or to the process owner.
type Notification = domain.Notification

// TaskRef identifies the task a notification is about.
type TaskRef struct {
	ID                string
	Name              string
	ProcessInstanceID string
}

// Service fans notifications out to its channels.
type Service struct {
	channels []ports.NotificationChannel
	logger   *slog.Logger
	clock    clock.Clock
	metrics  *observability.Metrics
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a service delivering to channels.
func NewService(channels []ports.NotificationChannel, opts ...Option) *Service {
	s := &Service{
		channels: channels,
		logger:   logging.NewNop(),
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) SendTaskAssignment(ctx context.Context, assignee string, task TaskRef) error {
	return s.send(ctx, Notification{
		Kind:              domain.NotifyTaskAssigned,
		Recipient:         assignee,
		ProcessInstanceID: task.ProcessInstanceID,
		TaskID:            task.ID,
		TaskName:          task.Name,
	})
}

func (s *Service) SendTaskCompletion(ctx context.Context, processOwner string, task TaskRef) error {
	return s.send(ctx, Notification{
		Kind:              domain.NotifyTaskCompleted,
		Recipient:         processOwner,
		ProcessInstanceID: task.ProcessInstanceID,
		TaskID:            task.ID,
		TaskName:          task.Name,
	})
}

func (s *Service) SendTaskCancellation(ctx context.Context, assignee string, task TaskRef, reason string) error {
	return s.send(ctx, Notification{
		Kind:              domain.NotifyTaskCancelled,
		Recipient:         assignee,
		ProcessInstanceID: task.ProcessInstanceID,
		TaskID:            task.ID,
		TaskName:          task.Name,
		Reason:            reason,
	})
}

func (s *Service) SendProcessStart(ctx context.Context, processInstanceID, definitionKey string) error {
	return s.send(ctx, Notification{Kind: domain.NotifyProcessStarted, ProcessInstanceID: processInstanceID, ProcessDefinitionKey: definitionKey})
}

func (s *Service) SendProcessEnd(ctx context.Context, processInstanceID, definitionKey string) error {
	return s.send(ctx, Notification{Kind: domain.NotifyProcessEnded, ProcessInstanceID: processInstanceID, ProcessDefinitionKey: definitionKey})
}

func (s *Service) SendFinalApproval(ctx context.Context, processInstanceID, approver string) error {
	return s.send(ctx, Notification{Kind: domain.NotifyFinalApproval, ProcessInstanceID: processInstanceID, Approver: approver})
}

func (s *Service) SendRejection(ctx context.Context, processInstanceID, approver string) error {
	return s.send(ctx, Notification{Kind: domain.NotifyRejection, ProcessInstanceID: processInstanceID, Approver: approver})
}

// send delivers n to every channel. A failing channel does not stop the others.
func (s *Service) send(ctx context.Context, n Notification) error {
	n.SentAt = s.clock.Now().UTC()

	var errs []error
	for _, ch := range s.channels {
		if err := ch.Deliver(ctx, n); err != nil {
			s.logger.Error("notification delivery failed", "channel", ch.Name(), "kind", n.Kind, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}
		s.metrics.NotificationDelivered(string(n.Kind), ch.Name())
	}
	return errors.Join(errs...)
}

// LogChannel writes notifications to a logger.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel creates a channel writing to logger.
func NewLogChannel(logger *slog.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Deliver(ctx context.Context, n Notification) error {
	attrs := []any{"kind", n.Kind, "process_instance_id", n.ProcessInstanceID}
	if n.Recipient != "" {
		attrs = append(attrs, "recipient", n.Recipient)
	}
	if n.TaskID != "" {
		attrs = append(attrs, "task_id", n.TaskID, "task_name", n.TaskName)
	}
	if n.ProcessDefinitionKey != "" {
		attrs = append(attrs, "process_definition_key", n.ProcessDefinitionKey)
	}
	if n.Approver != "" {
		attrs = append(attrs, "approver", n.Approver)
	}
	if n.Reason != "" {
		attrs = append(attrs, "reason", n.Reason)
	}
	c.logger.InfoContext(ctx, "NOTIFICATION: "+string(n.Kind), attrs...)
	return nil
}
