package domain

import "time"

// NotificationKind classifies a notification.
type NotificationKind string

const (
	NotifyTaskAssigned   NotificationKind = "task_assigned"
	NotifyTaskCompleted  NotificationKind = "task_completed"
	NotifyTaskCancelled  NotificationKind = "task_cancelled"
	NotifyProcessStarted NotificationKind = "process_started"
	NotifyProcessEnded   NotificationKind = "process_ended"
	NotifyFinalApproval  NotificationKind = "final_approval"
	NotifyRejection      NotificationKind = "rejection"
)

// Notification is a message addressed to a person or to the process owner.
type Notification struct {
	Kind                 NotificationKind `json:"kind"`
	Recipient            string           `json:"recipient,omitempty"`
	ProcessInstanceID    string           `json:"processInstanceId,omitempty"`
	ProcessDefinitionKey string           `json:"processDefinitionKey,omitempty"`
	TaskID               string           `json:"taskId,omitempty"`
	TaskName             string           `json:"taskName,omitempty"`
	Reason               string           `json:"reason,omitempty"`
	Approver             string           `json:"approver,omitempty"`
	SentAt               time.Time        `json:"sentAt"`
}
