package domain

import "time"

// AuditKind classifies an audit record.
type AuditKind string

const (
	AuditTaskCreated       AuditKind = "task_created"
	AuditTaskAssigned      AuditKind = "task_assigned"
	AuditTaskCompleted     AuditKind = "task_completed"
	AuditTaskDeleted       AuditKind = "task_deleted"
	AuditProcessStarted    AuditKind = "process_started"
	AuditProcessEnded      AuditKind = "process_ended"
	AuditActivityStarted   AuditKind = "activity_started"
	AuditActivityEnded     AuditKind = "activity_ended"
	AuditSequenceFlowTaken AuditKind = "sequence_flow_taken"
)

// AuditRecord is one entry of the audit trail.
type AuditRecord struct {
	ID                   string    `json:"id"`
	Kind                 AuditKind `json:"kind"`
	Timestamp            time.Time `json:"timestamp"`
	ProcessInstanceID    string    `json:"processInstanceId,omitempty"`
	ProcessDefinitionKey string    `json:"processDefinitionKey,omitempty"`
	TaskID               string    `json:"taskId,omitempty"`
	TaskName             string    `json:"taskName,omitempty"`
	ActivityID           string    `json:"activityId,omitempty"`
	ActivityName         string    `json:"activityName,omitempty"`
	TransitionID         string    `json:"transitionId,omitempty"`
	Assignee             string    `json:"assignee,omitempty"`
	Reason               string    `json:"reason,omitempty"`
}
