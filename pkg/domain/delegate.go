package domain

import "time"

// VariableScope exposes the variables visible to a callback.
type VariableScope interface {
	// Variable returns the value and whether it is set.
	Variable(name string) (any, bool)
	// SetVariable writes a variable. The change is visible to later callbacks.
	SetVariable(name string, value any)
}

// DelegateTask is the handle passed to task callbacks.
// It is only valid for the duration of the callback.
type DelegateTask interface {
	VariableScope

	ID() string
	Name() string
	Assignee() string
	SetAssignee(assignee string)
	DueDate() *time.Time
	SetDueDate(due time.Time)
	ProcessInstanceID() string
	DeleteReason() string
}

// DelegateExecution is the handle passed to execution and process callbacks.
// It is only valid for the duration of the callback.
type DelegateExecution interface {
	VariableScope

	ProcessInstanceID() string
	ProcessDefinitionID() string
	CurrentActivityID() string
	CurrentActivityName() string
	CurrentTransitionID() string
}
