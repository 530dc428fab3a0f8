package ports

import (
	"context"

	"github.com/aretw0/bpmgate/pkg/domain"
)

// ProcessEngine is the external BPMN engine as seen by the gateway.
type ProcessEngine interface {
	// Deploy registers a BPMN resource and returns the created definitions.
	Deploy(ctx context.Context, req domain.DeploymentRequest) (*domain.Deployment, error)

	// StartProcessInstance starts a new instance of the given definition.
	StartProcessInstance(ctx context.Context, definitionID, businessKey string, vars domain.Variables) (*domain.ProcessInstance, error)

	// ProcessInstance returns a running instance.
	// Returns domain.ErrProcessInstanceNotFound if the instance is not running.
	ProcessInstance(ctx context.Context, id string) (*domain.ProcessInstance, error)

	// HistoricProcessInstance returns the history view of an instance, running or ended.
	// Returns domain.ErrProcessInstanceNotFound if the engine never saw it.
	HistoricProcessInstance(ctx context.Context, id string) (*domain.HistoricProcessInstance, error)

	// Variables returns the variables of an instance.
	Variables(ctx context.Context, processInstanceID string) (domain.Variables, error)

	// SetVariables writes (and overrides) instance variables.
	SetVariables(ctx context.Context, processInstanceID string, vars domain.Variables) error

	// ActiveTasks lists the open user tasks of an instance.
	ActiveTasks(ctx context.Context, processInstanceID string) ([]domain.Task, error)

	// Task returns an active task. Returns domain.ErrTaskNotFound if it does not exist.
	Task(ctx context.Context, taskID string) (*domain.Task, error)

	// UpdateTask changes the assignee and/or due date of an active task.
	UpdateTask(ctx context.Context, taskID string, update domain.TaskUpdate) error

	// CompleteTask completes a task, merging vars into the instance.
	CompleteTask(ctx context.Context, taskID string, vars domain.Variables) error

	// DeleteProcessInstance cancels a running instance.
	DeleteProcessInstance(ctx context.Context, id, reason string) error
}

// Hookable is implemented by engines that emit lifecycle events in-process.
// Remote engines deliver events through the HTTP API instead.
type Hookable interface {
	SetLifecycleHooks(hooks domain.LifecycleHooks)
}
