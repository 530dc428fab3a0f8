package domain

import "errors"

// ErrProcessInstanceNotFound is returned when neither runtime nor history knows an instance.
var ErrProcessInstanceNotFound = errors.New("process instance not found")

// ErrTaskNotFound is returned when a task ID does not match an active task.
var ErrTaskNotFound = errors.New("task not found")

// ErrProcessDefinitionNotFound is returned when a definition ID cannot be resolved.
var ErrProcessDefinitionNotFound = errors.New("process definition not found")

// ErrDeploymentNotFound is returned when a deployment ID cannot be resolved.
var ErrDeploymentNotFound = errors.New("deployment not found")

// ErrEmptyBPMN is returned when a deployment carries no BPMN content.
var ErrEmptyBPMN = errors.New("BPMN XML cannot be empty")

// ErrInvalidBPMN is returned when the BPMN document cannot be parsed or has no process.
var ErrInvalidBPMN = errors.New("invalid BPMN document")

// ErrUnknownEvent is returned when an inbound event name has no handler.
var ErrUnknownEvent = errors.New("unknown event")

// ErrDocumentNotFound is returned by catalog repositories for missing documents.
var ErrDocumentNotFound = errors.New("document not found")
