// Package subscriber reacts to engine lifecycle events.
//
// Each event name maps to one handler. Handlers write the audit trail, send notifications
// and enrich process variables (timestamps, statuses, durations, default assignees) through
// the delegate carried by the event. The same handlers serve the in-memory engine hooks and
// events pushed over HTTP by a remote engine.
package subscriber

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/bpmgate/internal/logging"
	"github.com/aretw0/bpmgate/pkg/audit"
	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/notification"
	"github.com/aretw0/bpmgate/pkg/observability"
	"github.com/benbjohnson/clock"
)

type (
	taskHandler      func(ctx context.Context, task domain.DelegateTask) error
	executionHandler func(ctx context.Context, exec domain.DelegateExecution) error
	processHandler   func(ctx context.Context, exec domain.DelegateExecution, definitionKey string) error
)

// Subscriber dispatches lifecycle events to their handlers.
type Subscriber struct {
	audit   *audit.Service
	notify  *notification.Service
	logger  *slog.Logger
	clock   clock.Clock
	metrics *observability.Metrics

	taskHandlers      map[string]taskHandler
	executionHandlers map[string]executionHandler
	processHandlers   map[string]processHandler
}

// Option configures a Subscriber.
type Option func(*Subscriber)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Subscriber) { s.logger = logger }
}

// WithClock sets the time source for timestamps and durations.
func WithClock(c clock.Clock) Option {
	return func(s *Subscriber) { s.clock = c }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Subscriber) { s.metrics = m }
}

// New creates a subscriber writing to the given audit and notification services.
func New(auditSvc *audit.Service, notifySvc *notification.Service, opts ...Option) *Subscriber {
	s := &Subscriber{
		audit:  auditSvc,
		notify: notifySvc,
		logger: logging.NewNop(),
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.taskHandlers = map[string]taskHandler{
		domain.TaskEventCreate:     s.onTaskCreate,
		domain.TaskEventAssignment: s.onTaskAssignment,
		domain.TaskEventComplete:   s.onTaskComplete,
		domain.TaskEventDelete:     s.onTaskDelete,
	}
	s.executionHandlers = map[string]executionHandler{
		domain.ExecutionEventStart: s.onExecutionStart,
		domain.ExecutionEventEnd:   s.onExecutionEnd,
		domain.ExecutionEventTake:  s.onExecutionTake,
	}
	s.processHandlers = map[string]processHandler{
		domain.ProcessEventStart: s.onProcessStart,
		domain.ProcessEventEnd:   s.onProcessEnd,
	}
	return s
}

// Hooks returns lifecycle hooks bound to the subscriber, for engines that emit events in-process.
func (s *Subscriber) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTaskEvent: func(ctx context.Context, e *domain.TaskEvent) {
			_ = s.HandleTaskEvent(ctx, e)
		},
		OnExecutionEvent: func(ctx context.Context, e *domain.ExecutionEvent) {
			_ = s.HandleExecutionEvent(ctx, e)
		},
		OnProcessInstanceEvent: func(ctx context.Context, e *domain.ProcessInstanceEvent) {
			_ = s.HandleProcessInstanceEvent(ctx, e)
		},
	}
}

// HandleTaskEvent dispatches a task event.
// It returns domain.ErrUnknownEvent for names without a handler; collaborator failures are
// logged and do not interrupt the handler.
func (s *Subscriber) HandleTaskEvent(ctx context.Context, e *domain.TaskEvent) error {
	h, ok := s.taskHandlers[e.EventName]
	if !ok {
		return s.unknown(domain.EventTask, e.EventName)
	}
	return s.finish(domain.EventTask, e.EventName, h(ctx, e.Task))
}

// HandleExecutionEvent dispatches an execution event.
// Events without a current activity are ignored.
func (s *Subscriber) HandleExecutionEvent(ctx context.Context, e *domain.ExecutionEvent) error {
	h, ok := s.executionHandlers[e.EventName]
	if !ok {
		return s.unknown(domain.EventExecution, e.EventName)
	}
	if e.Execution.CurrentActivityID() == "" {
		s.logger.Debug("execution event without activity", "event", e.EventName, "process_instance_id", e.Execution.ProcessInstanceID())
		s.metrics.EventDispatched(string(domain.EventExecution), e.EventName, observability.OutcomeIgnored)
		return nil
	}
	return s.finish(domain.EventExecution, e.EventName, h(ctx, e.Execution))
}

// HandleProcessInstanceEvent dispatches a process instance event.
func (s *Subscriber) HandleProcessInstanceEvent(ctx context.Context, e *domain.ProcessInstanceEvent) error {
	h, ok := s.processHandlers[e.EventName]
	if !ok {
		return s.unknown(domain.EventProcessInstance, e.EventName)
	}
	key := e.ProcessDefinitionKey
	if key == "" {
		key, _, _ = strings.Cut(e.Execution.ProcessDefinitionID(), ":")
	}
	return s.finish(domain.EventProcessInstance, e.EventName, h(ctx, e.Execution, key))
}

func (s *Subscriber) unknown(family domain.EventType, name string) error {
	s.logger.Debug("ignoring unknown event", "family", family, "event", name)
	s.metrics.EventDispatched(string(family), name, observability.OutcomeIgnored)
	return fmt.Errorf("%s event %q: %w", family, name, domain.ErrUnknownEvent)
}

// finish records the outcome. Collaborator errors were already logged by the handler.
func (s *Subscriber) finish(family domain.EventType, name string, err error) error {
	outcome := observability.OutcomeHandled
	if err != nil {
		outcome = observability.OutcomeFailed
	}
	s.metrics.EventDispatched(string(family), name, outcome)
	return nil
}
