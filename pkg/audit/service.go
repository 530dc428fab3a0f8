// Package audit records the lifecycle of process instances.
//
// Every entry is written as a structured "AUDIT:" log line and appended to the configured
// ports.AuditStore, so the trail can be read back per process instance.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/bpmgate/internal/logging"
	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/observability"
	"github.com/aretw0/bpmgate/pkg/ports"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// Record is one audit entry.
type Record = domain.AuditRecord

// Service writes audit records.
type Service struct {
	store   ports.AuditStore
	logger  *slog.Logger
	clock   clock.Clock
	metrics *observability.Metrics
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

// NewService creates a service backed by store. A nil store only logs.
func NewService(store ports.AuditStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logging.NewNop(),
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) LogTaskCreation(ctx context.Context, processInstanceID, taskID, taskName string) error {
	return s.write(ctx, Record{Kind: domain.AuditTaskCreated, ProcessInstanceID: processInstanceID, TaskID: taskID, TaskName: taskName})
}

func (s *Service) LogTaskAssignment(ctx context.Context, processInstanceID, taskID, assignee string) error {
	return s.write(ctx, Record{Kind: domain.AuditTaskAssigned, ProcessInstanceID: processInstanceID, TaskID: taskID, Assignee: assignee})
}

func (s *Service) LogTaskCompletion(ctx context.Context, processInstanceID, taskID, assignee string) error {
	return s.write(ctx, Record{Kind: domain.AuditTaskCompleted, ProcessInstanceID: processInstanceID, TaskID: taskID, Assignee: assignee})
}

func (s *Service) LogTaskDeletion(ctx context.Context, processInstanceID, taskID, reason string) error {
	return s.write(ctx, Record{Kind: domain.AuditTaskDeleted, ProcessInstanceID: processInstanceID, TaskID: taskID, Reason: reason})
}

func (s *Service) LogProcessStart(ctx context.Context, processInstanceID, definitionKey string) error {
	return s.write(ctx, Record{Kind: domain.AuditProcessStarted, ProcessInstanceID: processInstanceID, ProcessDefinitionKey: definitionKey})
}

func (s *Service) LogProcessEnd(ctx context.Context, processInstanceID, definitionKey string) error {
	return s.write(ctx, Record{Kind: domain.AuditProcessEnded, ProcessInstanceID: processInstanceID, ProcessDefinitionKey: definitionKey})
}

func (s *Service) LogActivityStart(ctx context.Context, processInstanceID, activityID, activityName string) error {
	return s.write(ctx, Record{Kind: domain.AuditActivityStarted, ProcessInstanceID: processInstanceID, ActivityID: activityID, ActivityName: activityName})
}

func (s *Service) LogActivityEnd(ctx context.Context, processInstanceID, activityID, activityName string) error {
	return s.write(ctx, Record{Kind: domain.AuditActivityEnded, ProcessInstanceID: processInstanceID, ActivityID: activityID, ActivityName: activityName})
}

func (s *Service) LogSequenceFlowTaken(ctx context.Context, processInstanceID, transitionID string) error {
	return s.write(ctx, Record{Kind: domain.AuditSequenceFlowTaken, ProcessInstanceID: processInstanceID, TransitionID: transitionID})
}

// Trail returns the records of a process instance. Without a store it is always empty.
func (s *Service) Trail(ctx context.Context, processInstanceID string) ([]Record, error) {
	if s.store == nil {
		return []Record{}, nil
	}
	return s.store.List(ctx, processInstanceID)
}

func (s *Service) write(ctx context.Context, r Record) error {
	r.ID = uuid.NewString()
	r.Timestamp = s.clock.Now().UTC()

	s.logger.Info("AUDIT: "+string(r.Kind), attrs(r)...)
	s.metrics.AuditRecorded(string(r.Kind))

	if s.store == nil {
		return nil
	}
	if err := s.store.Append(ctx, r); err != nil {
		s.logger.Error("failed to persist audit record", "kind", r.Kind, "process_instance_id", r.ProcessInstanceID, "error", err)
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

func attrs(r Record) []any {
	out := []any{"process_instance_id", r.ProcessInstanceID}
	add := func(k, v string) {
		if v != "" {
			out = append(out, k, v)
		}
	}
	add("process_definition_key", r.ProcessDefinitionKey)
	add("task_id", r.TaskID)
	add("task_name", r.TaskName)
	add("activity_id", r.ActivityID)
	add("activity_name", r.ActivityName)
	add("transition_id", r.TransitionID)
	add("assignee", r.Assignee)
	add("reason", r.Reason)
	return out
}
