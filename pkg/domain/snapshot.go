package domain

import "time"

// Changes lists the mutations a callback made on a snapshot.
type Changes struct {
	Variables Variables  `json:"variables,omitempty"`
	Assignee  *string    `json:"assignee,omitempty"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
}

// IsEmpty reports whether nothing was changed.
func (c Changes) IsEmpty() bool {
	return len(c.Variables) == 0 && c.Assignee == nil && c.DueDate == nil
}

// TaskUpdate converts assignee and due date changes into an engine update.
func (c Changes) TaskUpdate() TaskUpdate {
	return TaskUpdate{Assignee: c.Assignee, DueDate: c.DueDate}
}

type recorder struct {
	vars    Variables
	changed Variables
}

func (r *recorder) Variable(name string) (any, bool) {
	v, ok := r.vars[name]
	return v, ok
}

func (r *recorder) SetVariable(name string, value any) {
	if r.vars == nil {
		r.vars = make(Variables)
	}
	if r.changed == nil {
		r.changed = make(Variables)
	}
	r.vars[name] = value
	r.changed[name] = value
}

// TaskSnapshot is a DelegateTask built from an event received over the wire.
// Every mutation is recorded so it can be written back to the engine.
type TaskSnapshot struct {
	recorder

	TaskID      string
	TaskName    string
	TaskOwner   string
	Due         *time.Time
	InstanceID  string
	Reason      string
	newAssignee *string
	newDue      *time.Time
}

// NewTaskSnapshot creates a snapshot over a copy of vars.
func NewTaskSnapshot(t Task, deleteReason string, vars Variables) *TaskSnapshot {
	return &TaskSnapshot{
		recorder:   recorder{vars: vars.Clone()},
		TaskID:     t.ID,
		TaskName:   t.Name,
		TaskOwner:  t.Assignee,
		Due:        t.DueDate,
		InstanceID: t.ProcessInstanceID,
		Reason:     deleteReason,
	}
}

func (s *TaskSnapshot) ID() string                { return s.TaskID }
func (s *TaskSnapshot) Name() string              { return s.TaskName }
func (s *TaskSnapshot) Assignee() string          { return s.TaskOwner }
func (s *TaskSnapshot) DueDate() *time.Time       { return s.Due }
func (s *TaskSnapshot) ProcessInstanceID() string { return s.InstanceID }
func (s *TaskSnapshot) DeleteReason() string      { return s.Reason }

func (s *TaskSnapshot) SetAssignee(assignee string) {
	s.TaskOwner = assignee
	s.newAssignee = &assignee
}

func (s *TaskSnapshot) SetDueDate(due time.Time) {
	s.Due = &due
	s.newDue = &due
}

// Changes returns every mutation made through the snapshot.
func (s *TaskSnapshot) Changes() Changes {
	return Changes{Variables: s.changed, Assignee: s.newAssignee, DueDate: s.newDue}
}

// ExecutionSnapshot is a DelegateExecution built from an event received over the wire.
type ExecutionSnapshot struct {
	recorder

	InstanceID   string
	DefinitionID string
	ActivityID   string
	ActivityName string
	TransitionID string
}

// NewExecutionSnapshot creates a snapshot over a copy of vars.
func NewExecutionSnapshot(instanceID, definitionID, activityID, activityName, transitionID string, vars Variables) *ExecutionSnapshot {
	return &ExecutionSnapshot{
		recorder:     recorder{vars: vars.Clone()},
		InstanceID:   instanceID,
		DefinitionID: definitionID,
		ActivityID:   activityID,
		ActivityName: activityName,
		TransitionID: transitionID,
	}
}

func (s *ExecutionSnapshot) ProcessInstanceID() string   { return s.InstanceID }
func (s *ExecutionSnapshot) ProcessDefinitionID() string { return s.DefinitionID }
func (s *ExecutionSnapshot) CurrentActivityID() string   { return s.ActivityID }
func (s *ExecutionSnapshot) CurrentActivityName() string { return s.ActivityName }
func (s *ExecutionSnapshot) CurrentTransitionID() string { return s.TransitionID }

// Changes returns the variables written through the snapshot.
func (s *ExecutionSnapshot) Changes() Changes {
	return Changes{Variables: s.changed}
}
