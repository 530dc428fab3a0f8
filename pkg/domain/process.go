package domain

import "time"

// Variables is an unordered, string-keyed bag of heterogeneous values.
// Keys are expected to be non-empty and values JSON-serialisable.
type Variables map[string]any

// Clone returns a shallow copy of the map. A nil receiver yields an empty map.
func (v Variables) Clone() Variables {
	out := make(Variables, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Merge copies every entry of other into v, overriding existing keys.
func (v Variables) Merge(other Variables) {
	for k, val := range other {
		v[k] = val
	}
}

// DefaultTaskPriority mirrors the engine default for user tasks.
const DefaultTaskPriority = 50

// Task is a unit of human work owned by the engine.
type Task struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Assignee            string     `json:"assignee,omitempty"`
	CreateTime          time.Time  `json:"createTime"`
	DueDate             *time.Time `json:"dueDate,omitempty"`
	Priority            int        `json:"priority"`
	ProcessInstanceID   string     `json:"processInstanceId"`
	ProcessDefinitionID string     `json:"processDefinitionId,omitempty"`
	TaskDefinitionKey   string     `json:"taskDefinitionKey,omitempty"`
}

// TaskUpdate carries optional changes to a task. Nil fields are left untouched.
type TaskUpdate struct {
	Assignee *string
	DueDate  *time.Time
}

// IsEmpty reports whether the update changes nothing.
func (u TaskUpdate) IsEmpty() bool {
	return u.Assignee == nil && u.DueDate == nil
}

// ProcessInstance is a running execution of a deployed definition.
type ProcessInstance struct {
	ID                   string `json:"id"`
	ProcessDefinitionID  string `json:"processDefinitionId"`
	ProcessDefinitionKey string `json:"processDefinitionKey,omitempty"`
	BusinessKey          string `json:"businessKey,omitempty"`
	Suspended            bool   `json:"suspended"`
	Ended                bool   `json:"ended"`
}

// Historic instance states, matching the engine's vocabulary.
const (
	HistoricStateActive               = "ACTIVE"
	HistoricStateCompleted            = "COMPLETED"
	HistoricStateExternallyTerminated = "EXTERNALLY_TERMINATED"
	HistoricStateInternallyTerminated = "INTERNALLY_TERMINATED"
)

// HistoricProcessInstance is the history view of an instance, available after it ended.
type HistoricProcessInstance struct {
	ID                   string     `json:"id"`
	ProcessDefinitionID  string     `json:"processDefinitionId"`
	ProcessDefinitionKey string     `json:"processDefinitionKey,omitempty"`
	BusinessKey          string     `json:"businessKey,omitempty"`
	StartTime            time.Time  `json:"startTime"`
	EndTime              *time.Time `json:"endTime,omitempty"`
	DurationInMillis     *int64     `json:"durationInMillis,omitempty"`
	State                string     `json:"state"`
	DeleteReason         string     `json:"deleteReason,omitempty"`
}

// ProcessDefinition is one deployed version of a process.
type ProcessDefinition struct {
	ID           string `json:"id"`
	Key          string `json:"key"`
	Name         string `json:"name,omitempty"`
	Version      int    `json:"version"`
	DeploymentID string `json:"deploymentId"`
}

// Deployment groups the definitions created by a single deploy call.
type Deployment struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	DeploymentTime     time.Time           `json:"deploymentTime"`
	ProcessDefinitions []ProcessDefinition `json:"processDefinitions"`
}

// DeploymentRequest describes a BPMN resource to deploy.
type DeploymentRequest struct {
	Name         string
	ResourceName string
	BPMN         []byte
	TenantID     string
}
