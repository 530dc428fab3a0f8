package http

import (
	"errors"
	"net/http"

	"github.com/aretw0/bpmgate"
	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/variables"
	"github.com/go-chi/chi/v5"
)

// DeployAndStart handles POST /api/workflow/deploy-and-start.
func (s *Server) DeployAndStart(w http.ResponseWriter, r *http.Request) {
	var req variables.WorkflowRequest
	if err := decodeBody(r, &req); err != nil {
		s.logger.Warn("DeployAndStart: invalid request body", "error", err)
		writeJSON(w, http.StatusBadRequest, bpmgate.DeploymentResponse{ErrorMessage: "Invalid request body: " + err.Error()})
		return
	}

	resp := s.Workflow.DeployAndStart(r.Context(), req)
	if !resp.Success {
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetProcessInstance handles GET /api/workflow/process-instance/{id}.
func (s *Server) GetProcessInstance(w http.ResponseWriter, r *http.Request) {
	details, err := s.Workflow.ProcessInstanceDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// CancelProcessInstance handles DELETE /api/workflow/process-instance/{id}.
func (s *Server) CancelProcessInstance(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("reason")
	if err := s.Workflow.CancelProcessInstance(r.Context(), chi.URLParam(r, "id"), reason); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAuditTrail handles GET /api/workflow/process-instance/{id}/audit.
func (s *Server) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	records, err := s.Workflow.AuditTrail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// GetActiveTasks handles GET /api/workflow/active-tasks/{processInstanceId}.
func (s *Server) GetActiveTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.Workflow.ActiveTasks(r.Context(), chi.URLParam(r, "processInstanceId"))
	if err != nil {
		s.logger.Error("Error retrieving active tasks", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// CompleteTask handles POST /api/workflow/tasks/{taskId}/complete.
func (s *Server) CompleteTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Variables domain.Variables `json:"variables"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body: "+err.Error()))
		return
	}
	if err := s.Workflow.CompleteTask(r.Context(), chi.URLParam(r, "taskId"), body.Variables); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AssignTask handles POST /api/workflow/tasks/{taskId}/assign.
func (s *Server) AssignTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Assignee string `json:"assignee"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body: "+err.Error()))
		return
	}
	if body.Assignee == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("assignee is required"))
		return
	}
	if err := s.Workflow.AssignTask(r.Context(), chi.URLParam(r, "taskId"), body.Assignee); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TaskEvent handles POST /api/events/task.
func (s *Server) TaskEvent(w http.ResponseWriter, r *http.Request) {
	var req bpmgate.TaskEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body: "+err.Error()))
		return
	}
	changes, err := s.Workflow.HandleTaskEvent(r.Context(), req)
	s.writeChanges(w, changes, err)
}

// ExecutionEvent handles POST /api/events/execution.
func (s *Server) ExecutionEvent(w http.ResponseWriter, r *http.Request) {
	var req bpmgate.ExecutionEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body: "+err.Error()))
		return
	}
	changes, err := s.Workflow.HandleExecutionEvent(r.Context(), req)
	s.writeChanges(w, changes, err)
}

// ProcessInstanceEvent handles POST /api/events/process-instance.
func (s *Server) ProcessInstanceEvent(w http.ResponseWriter, r *http.Request) {
	var req bpmgate.ProcessInstanceEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body: "+err.Error()))
		return
	}
	changes, err := s.Workflow.HandleProcessInstanceEvent(r.Context(), req)
	s.writeChanges(w, changes, err)
}

func (s *Server) writeChanges(w http.ResponseWriter, changes domain.Changes, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

// writeError maps domain errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrProcessInstanceNotFound),
		errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrDocumentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnknownEvent):
		status = http.StatusBadRequest
	default:
		s.logger.Error("Request failed", "error", err)
	}
	writeJSON(w, status, errorBody(err.Error()))
}
