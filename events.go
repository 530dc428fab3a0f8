package bpmgate

import (
	"context"
	"errors"

	"github.com/aretw0/bpmgate/pkg/domain"
)

// TaskEventRequest is a task event pushed by a remote engine.
type TaskEventRequest struct {
	EventName    string           `json:"eventName"`
	Task         domain.Task      `json:"task"`
	DeleteReason string           `json:"deleteReason,omitempty"`
	Variables    domain.Variables `json:"variables,omitempty"`
}

// ExecutionEventRequest is an execution event pushed by a remote engine.
type ExecutionEventRequest struct {
	EventName           string           `json:"eventName"`
	ProcessInstanceID   string           `json:"processInstanceId"`
	ProcessDefinitionID string           `json:"processDefinitionId,omitempty"`
	ActivityID          string           `json:"activityId,omitempty"`
	ActivityName        string           `json:"activityName,omitempty"`
	TransitionID        string           `json:"transitionId,omitempty"`
	Variables           domain.Variables `json:"variables,omitempty"`
}

// ProcessInstanceEventRequest is a process-instance event pushed by a remote engine.
type ProcessInstanceEventRequest struct {
	EventName            string           `json:"eventName"`
	ProcessInstanceID    string           `json:"processInstanceId"`
	ProcessDefinitionID  string           `json:"processDefinitionId,omitempty"`
	ProcessDefinitionKey string           `json:"processDefinitionKey,omitempty"`
	Variables            domain.Variables `json:"variables,omitempty"`
}

// HandleTaskEvent runs the task handlers over a snapshot of the event and writes the
// recorded changes back. Assignee and due date are only written while the task is alive.
func (g *Gateway) HandleTaskEvent(ctx context.Context, req TaskEventRequest) (domain.Changes, error) {
	pid := req.Task.ProcessInstanceID
	var changes domain.Changes
	err := g.locks.WithLock(ctx, lockKey(pid), func(ctx context.Context) error {
		snap := domain.NewTaskSnapshot(req.Task, req.DeleteReason, g.eventVariables(ctx, pid, req.Variables))
		if err := g.subscriber.HandleTaskEvent(ctx, domain.NewTaskEvent(req.EventName, snap, g.clock.Now())); err != nil {
			return err
		}
		changes = snap.Changes()

		if err := g.writeVariables(ctx, pid, changes.Variables); err != nil {
			return err
		}
		update := changes.TaskUpdate()
		taskAlive := req.EventName == domain.TaskEventCreate || req.EventName == domain.TaskEventAssignment
		if update.IsEmpty() || !taskAlive || req.Task.ID == "" {
			return nil
		}
		return g.engine.UpdateTask(ctx, req.Task.ID, update)
	})
	return changes, err
}

// HandleExecutionEvent runs the execution handlers and writes variable changes back.
func (g *Gateway) HandleExecutionEvent(ctx context.Context, req ExecutionEventRequest) (domain.Changes, error) {
	pid := req.ProcessInstanceID
	var changes domain.Changes
	err := g.locks.WithLock(ctx, lockKey(pid), func(ctx context.Context) error {
		snap := domain.NewExecutionSnapshot(pid, req.ProcessDefinitionID, req.ActivityID, req.ActivityName, req.TransitionID,
			g.eventVariables(ctx, pid, req.Variables))
		if err := g.subscriber.HandleExecutionEvent(ctx, domain.NewExecutionEvent(req.EventName, snap, g.clock.Now())); err != nil {
			return err
		}
		changes = snap.Changes()
		return g.writeVariables(ctx, pid, changes.Variables)
	})
	return changes, err
}

// HandleProcessInstanceEvent runs the process handlers and writes variable changes back.
// Changes made on "end" are returned but cannot reach an instance that no longer runs.
func (g *Gateway) HandleProcessInstanceEvent(ctx context.Context, req ProcessInstanceEventRequest) (domain.Changes, error) {
	pid := req.ProcessInstanceID
	var changes domain.Changes
	err := g.locks.WithLock(ctx, lockKey(pid), func(ctx context.Context) error {
		snap := domain.NewExecutionSnapshot(pid, req.ProcessDefinitionID, "", "", "", g.eventVariables(ctx, pid, req.Variables))
		ev := domain.NewProcessInstanceEvent(req.EventName, req.ProcessDefinitionKey, snap, g.clock.Now())
		if err := g.subscriber.HandleProcessInstanceEvent(ctx, ev); err != nil {
			return err
		}
		changes = snap.Changes()
		return g.writeVariables(ctx, pid, changes.Variables)
	})
	return changes, err
}

func lockKey(processInstanceID string) string {
	return "process-instance:" + processInstanceID
}

// eventVariables uses the variables carried by the event, or reads them from the engine.
func (g *Gateway) eventVariables(ctx context.Context, pid string, carried domain.Variables) domain.Variables {
	if carried != nil || pid == "" {
		return carried
	}
	vars, err := g.engine.Variables(ctx, pid)
	if err != nil {
		g.logger.Debug("Event variables unavailable", "process_instance_id", pid, "error", err)
		return domain.Variables{}
	}
	return vars
}

func (g *Gateway) writeVariables(ctx context.Context, pid string, vars domain.Variables) error {
	if len(vars) == 0 || pid == "" {
		return nil
	}
	err := g.engine.SetVariables(ctx, pid, vars)
	if errors.Is(err, domain.ErrProcessInstanceNotFound) {
		g.logger.Debug("Instance ended before variables could be written", "process_instance_id", pid)
		return nil
	}
	return err
}
