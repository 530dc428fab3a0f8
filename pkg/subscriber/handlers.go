package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/notification"
	"github.com/aretw0/bpmgate/pkg/variables"
)

// Task and process statuses written to variables.
const (
	StatusCreated   = "CREATED"
	StatusAssigned  = "ASSIGNED"
	StatusCompleted = "COMPLETED"
	StatusRunning   = "RUNNING"
)

// Activity IDs with dedicated behaviour.
const (
	ActivityApproval     = "approvalTask"
	ActivityReview       = "reviewTask"
	ActivityNotification = "notificationTask"
)

// Transition IDs with dedicated behaviour.
const (
	TransitionRejected = "approvalRejected"
	TransitionApproved = "approvalApproved"
)

const (
	highPriorityDue  = 24 * time.Hour
	approvalWindow   = 72 * time.Hour
	reviewWindow     = 48 * time.Hour
	completedReason  = "completed"
	systemAssignedBy = "system"
)

// DefaultAssignee returns the manager responsible for a department.
func DefaultAssignee(department string) string {
	switch strings.ToLower(department) {
	case "hr":
		return "hr.manager"
	case "finance":
		return "finance.manager"
	case "it":
		return "it.manager"
	case "legal":
		return "legal.manager"
	default:
		return "default.manager"
	}
}

func taskRef(t domain.DelegateTask) notification.TaskRef {
	return notification.TaskRef{ID: t.ID(), Name: t.Name(), ProcessInstanceID: t.ProcessInstanceID()}
}

func (s *Subscriber) onTaskCreate(ctx context.Context, t domain.DelegateTask) error {
	s.logger.Info("task created", "task_id", t.ID(), "task_name", t.Name(), "process_instance_id", t.ProcessInstanceID())
	now := s.clock.Now()
	var errs []error

	errs = append(errs, s.audit.LogTaskCreation(ctx, t.ProcessInstanceID(), t.ID(), t.Name()))

	if t.DueDate() == nil {
		if p, _ := stringVar(t, "priority"); p == "high" || p == "important" {
			t.SetDueDate(now.Add(highPriorityDue))
			s.logger.Info("due date set for high priority task", "task_id", t.ID())
		}
	}

	if dept, ok := stringVar(t, "department"); ok && dept != "" && t.Assignee() == "" {
		assignee := DefaultAssignee(dept)
		t.SetAssignee(assignee)
		s.logger.Info("task auto-assigned", "task_id", t.ID(), "assignee", assignee)
	}

	t.SetVariable("createdDate", now)
	t.SetVariable("taskStatus", StatusCreated)
	return s.report(errs)
}

func (s *Subscriber) onTaskAssignment(ctx context.Context, t domain.DelegateTask) error {
	assignee := t.Assignee()
	s.logger.Info("task assigned", "task_id", t.ID(), "assignee", assignee)
	if assignee == "" {
		return nil
	}

	errs := []error{
		s.notify.SendTaskAssignment(ctx, assignee, taskRef(t)),
		s.audit.LogTaskAssignment(ctx, t.ProcessInstanceID(), t.ID(), assignee),
	}
	t.SetVariable("assignedDate", s.clock.Now())
	t.SetVariable("assignedBy", systemAssignedBy)
	t.SetVariable("taskStatus", StatusAssigned)
	return s.report(errs)
}

func (s *Subscriber) onTaskComplete(ctx context.Context, t domain.DelegateTask) error {
	s.logger.Info("task completed", "task_id", t.ID(), "completed_by", t.Assignee())
	now := s.clock.Now()
	var errs []error

	if assigned, ok := timeVar(t, "assignedDate"); ok {
		hours := int64(now.Sub(assigned) / time.Hour)
		t.SetVariable("taskDurationHours", hours)
		s.logger.Info("task duration", "task_id", t.ID(), "hours", hours)
	}

	errs = append(errs, s.audit.LogTaskCompletion(ctx, t.ProcessInstanceID(), t.ID(), t.Assignee()))

	if owner, ok := stringVar(t, "processOwner"); ok && owner != "" {
		errs = append(errs, s.notify.SendTaskCompletion(ctx, owner, taskRef(t)))
	}

	t.SetVariable("completedDate", now)
	t.SetVariable("taskStatus", StatusCompleted)
	return s.report(errs)
}

func (s *Subscriber) onTaskDelete(ctx context.Context, t domain.DelegateTask) error {
	reason := t.DeleteReason()
	s.logger.Info("task deleted", "task_id", t.ID(), "reason", reason)

	errs := []error{s.audit.LogTaskDeletion(ctx, t.ProcessInstanceID(), t.ID(), reason)}
	if t.Assignee() != "" && reason != completedReason {
		errs = append(errs, s.notify.SendTaskCancellation(ctx, t.Assignee(), taskRef(t), reason))
	}
	return s.report(errs)
}

func (s *Subscriber) onExecutionStart(ctx context.Context, e domain.DelegateExecution) error {
	activityID := e.CurrentActivityID()
	pid := e.ProcessInstanceID()
	now := s.clock.Now()
	s.logger.Info("execution started", "activity_id", activityID, "process_instance_id", pid)

	err := s.audit.LogActivityStart(ctx, pid, activityID, e.CurrentActivityName())
	e.SetVariable(activityID+"_startTime", now)

	switch activityID {
	case ActivityApproval:
		e.SetVariable("approvalDeadline", now.Add(approvalWindow))
		e.SetVariable("approvalLevel", 1)
		e.SetVariable("approvalStarted", true)
		s.logger.Info("approval started", "process_instance_id", pid)
	case ActivityReview:
		e.SetVariable("reviewStarted", true)
		e.SetVariable("reviewerCount", 0)
		e.SetVariable("reviewDeadline", now.Add(reviewWindow))
		s.logger.Info("review started", "process_instance_id", pid)
	case ActivityNotification:
		e.SetVariable("notificationSent", false)
		e.SetVariable("notificationAttempts", 0)
		s.logger.Info("notification task started", "process_instance_id", pid)
	}
	return s.report([]error{err})
}

func (s *Subscriber) onExecutionEnd(ctx context.Context, e domain.DelegateExecution) error {
	activityID := e.CurrentActivityID()
	pid := e.ProcessInstanceID()
	s.logger.Info("execution ended", "activity_id", activityID, "process_instance_id", pid)

	if started, ok := timeVar(e, activityID+"_startTime"); ok {
		ms := s.clock.Now().Sub(started).Milliseconds()
		e.SetVariable(activityID+"_duration", ms)
		s.logger.Info("activity duration", "activity_id", activityID, "ms", ms)
	}

	errs := []error{s.audit.LogActivityEnd(ctx, pid, activityID, e.CurrentActivityName())}

	if activityID == ActivityApproval {
		approver, _ := stringVar(e, "approver")
		if approved, _ := boolVar(e, "approved"); approved {
			e.SetVariable("finalApprovalDate", s.clock.Now())
			s.logger.Info("process approved", "process_instance_id", pid, "approver", approver)
			errs = append(errs, s.notify.SendFinalApproval(ctx, pid, approver))
		} else {
			s.logger.Info("process rejected", "process_instance_id", pid, "approver", approver)
			errs = append(errs, s.notify.SendRejection(ctx, pid, approver))
		}
	}
	return s.report(errs)
}

func (s *Subscriber) onExecutionTake(ctx context.Context, e domain.DelegateExecution) error {
	transition := e.CurrentTransitionID()
	pid := e.ProcessInstanceID()
	s.logger.Info("sequence flow taken", "transition_id", transition, "process_instance_id", pid)

	err := s.audit.LogSequenceFlowTaken(ctx, pid, transition)

	switch transition {
	case TransitionRejected:
		count := intVar(e, "rejectionCount") + 1
		e.SetVariable("rejectionCount", count)
		s.logger.Info("process rejected", "process_instance_id", pid, "times", count)
	case TransitionApproved:
		e.SetVariable("approvalDate", s.clock.Now())
		s.logger.Info("process approved", "process_instance_id", pid)
	}
	return s.report([]error{err})
}

func (s *Subscriber) onProcessStart(ctx context.Context, e domain.DelegateExecution, key string) error {
	pid := e.ProcessInstanceID()
	s.logger.Info("process started", "process_instance_id", pid, "process_definition_id", e.ProcessDefinitionID())

	errs := []error{s.audit.LogProcessStart(ctx, pid, key)}
	e.SetVariable("processStartTime", s.clock.Now())
	e.SetVariable("processStatus", StatusRunning)
	e.SetVariable("rejectionCount", 0)
	errs = append(errs, s.notify.SendProcessStart(ctx, pid, key))
	return s.report(errs)
}

func (s *Subscriber) onProcessEnd(ctx context.Context, e domain.DelegateExecution, key string) error {
	pid := e.ProcessInstanceID()
	now := s.clock.Now()
	s.logger.Info("process ended", "process_instance_id", pid, "process_definition_id", e.ProcessDefinitionID())

	if started, ok := timeVar(e, "processStartTime"); ok {
		ms := now.Sub(started).Milliseconds()
		e.SetVariable("processDuration", ms)
		s.logger.Info("process duration", "process_instance_id", pid, "ms", ms)
	}

	errs := []error{s.audit.LogProcessEnd(ctx, pid, key)}
	e.SetVariable("processEndTime", now)
	e.SetVariable("processStatus", StatusCompleted)
	errs = append(errs, s.notify.SendProcessEnd(ctx, pid, key))
	return s.report(errs)
}

// report logs collaborator failures and folds them into one error.
func (s *Subscriber) report(errs []error) error {
	err := errors.Join(errs...)
	if err != nil {
		s.logger.Warn("event handler continued after collaborator failure", "error", err)
	}
	return err
}

func stringVar(scope domain.VariableScope, name string) (string, bool) {
	v, ok := scope.Variable(name)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

func boolVar(scope domain.VariableScope, name string) (bool, bool) {
	v, ok := scope.Variable(name)
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(b)
		return parsed, err == nil
	}
	return false, false
}

// timeVar accepts time values as well as their JSON string forms.
func timeVar(scope domain.VariableScope, name string) (time.Time, bool) {
	v, ok := scope.Variable(name)
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		return variables.ParseTime(t)
	}
	return time.Time{}, false
}

// intVar reads a counter; missing or non-numeric values count as zero.
func intVar(scope domain.VariableScope, name string) int {
	v, _ := scope.Variable(name)
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	}
	return 0
}
