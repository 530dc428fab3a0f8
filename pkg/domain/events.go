package domain

import (
	"context"
	"time"
)

// EventType defines the family of a lifecycle event.
type EventType string

const (
	EventTask            EventType = "task"
	EventExecution       EventType = "execution"
	EventProcessInstance EventType = "process_instance"
)

// Task event names.
const (
	TaskEventCreate     = "create"
	TaskEventAssignment = "assignment"
	TaskEventComplete   = "complete"
	TaskEventDelete     = "delete"
)

// Execution event names.
const (
	ExecutionEventStart = "start"
	ExecutionEventEnd   = "end"
	ExecutionEventTake  = "take"
)

// Process instance event names.
const (
	ProcessEventStart = "start"
	ProcessEventEnd   = "end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// TaskEvent is emitted on task lifecycle transitions.
type TaskEvent struct {
	EventBase
	EventName string
	Task      DelegateTask
}

// ExecutionEvent is emitted when an activity starts or ends, or a sequence flow is taken.
type ExecutionEvent struct {
	EventBase
	EventName string
	Execution DelegateExecution
}

// ProcessInstanceEvent is emitted when an instance starts or ends.
type ProcessInstanceEvent struct {
	EventBase
	EventName            string
	ProcessInstanceID    string
	ProcessDefinitionKey string
	Execution            DelegateExecution
}

// NewTaskEvent stamps a task event.
func NewTaskEvent(name string, task DelegateTask, at time.Time) *TaskEvent {
	return &TaskEvent{EventBase: EventBase{Timestamp: at, Type: EventTask}, EventName: name, Task: task}
}

// NewExecutionEvent stamps an execution event.
func NewExecutionEvent(name string, exec DelegateExecution, at time.Time) *ExecutionEvent {
	return &ExecutionEvent{EventBase: EventBase{Timestamp: at, Type: EventExecution}, EventName: name, Execution: exec}
}

// NewProcessInstanceEvent stamps a process instance event.
func NewProcessInstanceEvent(name, definitionKey string, exec DelegateExecution, at time.Time) *ProcessInstanceEvent {
	return &ProcessInstanceEvent{
		EventBase:            EventBase{Timestamp: at, Type: EventProcessInstance},
		EventName:            name,
		ProcessInstanceID:    exec.ProcessInstanceID(),
		ProcessDefinitionKey: definitionKey,
		Execution:            exec,
	}
}

// LifecycleHooks defines the callbacks an engine invokes while it runs.
// Engines call them synchronously; nil hooks are skipped.
type LifecycleHooks struct {
	OnTaskEvent            func(context.Context, *TaskEvent)
	OnExecutionEvent       func(context.Context, *ExecutionEvent)
	OnProcessInstanceEvent func(context.Context, *ProcessInstanceEvent)
}
