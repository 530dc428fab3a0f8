package bpmgate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/bpmgate/pkg/audit"
	"github.com/aretw0/bpmgate/pkg/bpmn"
	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/variables"
)

var processKeyPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ErrNoProcessDefinition is reported when a deployment yields no usable definition.
var ErrNoProcessDefinition = errors.New("no process definition after deployment")

// MsgNoProcessDefinition is the response message for ErrNoProcessDefinition.
const MsgNoProcessDefinition = "Failed to retrieve process definition after deployment"

// DeploymentResponse is the outcome of DeployAndStart. Failures are reported in-band.
type DeploymentResponse struct {
	DeploymentID        string           `json:"deploymentId,omitempty"`
	ProcessInstanceID   string           `json:"processInstanceId,omitempty"`
	ProcessDefinitionID string           `json:"processDefinitionId,omitempty"`
	Success             bool             `json:"success"`
	ErrorMessage        string           `json:"errorMessage,omitempty"`
	ProcessVariables    domain.Variables `json:"processVariables,omitempty"`
}

// DeployAndStart deploys the BPMN document of req and, unless disabled, starts an instance
// with the merged request variables.
func (g *Gateway) DeployAndStart(ctx context.Context, req variables.WorkflowRequest) DeploymentResponse {
	var resp DeploymentResponse
	if strings.TrimSpace(req.BpmnXML) == "" {
		resp.ErrorMessage = domain.ErrEmptyBPMN.Error()
		return resp
	}

	err := g.deployAndStart(ctx, req, &resp)
	switch {
	case err == nil:
		resp.Success = true
	case errors.Is(err, ErrNoProcessDefinition):
		resp.ErrorMessage = MsgNoProcessDefinition
	default:
		g.logger.Error("Error deploying and starting process", "process_key", req.ProcessKey, "error", err)
		resp.ErrorMessage = "Deployment failed: " + err.Error()
	}
	return resp
}

func (g *Gateway) deployAndStart(ctx context.Context, req variables.WorkflowRequest, resp *DeploymentResponse) error {
	if req.ProcessKey != "" && !processKeyPattern.MatchString(req.ProcessKey) {
		return fmt.Errorf("invalid process key %q", req.ProcessKey)
	}

	vars, err := variables.ProcessVariables(req, g.logger)
	if err != nil {
		return err
	}
	if problems := variables.Validate(vars); len(problems) > 0 {
		return fmt.Errorf("invalid variables: %s", strings.Join(problems, "; "))
	}

	key := req.ProcessKey
	if key == "" {
		ids, err := bpmn.ProcessIDs([]byte(req.BpmnXML))
		if err != nil {
			return err
		}
		key = ids[0]
	}
	name := req.ProcessName
	if name == "" {
		name = key
	}

	dep, err := g.engine.Deploy(ctx, domain.DeploymentRequest{
		Name:         name,
		ResourceName: key + ".bpmn",
		BPMN:         []byte(req.BpmnXML),
		TenantID:     req.TenantID,
	})
	if err != nil {
		return err
	}
	resp.DeploymentID = dep.ID
	g.logger.Info("Process deployed successfully", "deployment_id", dep.ID, "process_key", key)

	def, ok := pickDefinition(dep.ProcessDefinitions, req.ProcessKey)
	if !ok {
		return ErrNoProcessDefinition
	}
	resp.ProcessDefinitionID = def.ID
	resp.ProcessVariables = vars

	if !req.ShouldStart() {
		return nil
	}

	pi, err := g.engine.StartProcessInstance(ctx, def.ID, req.BusinessKey, vars)
	if err != nil {
		return err
	}
	resp.ProcessInstanceID = pi.ID
	g.logger.Info("Process instance started", "process_instance_id", pi.ID, "process_definition_id", def.ID)
	return nil
}

// pickDefinition prefers the definition matching key, else the first one.
func pickDefinition(defs []domain.ProcessDefinition, key string) (domain.ProcessDefinition, bool) {
	if len(defs) == 0 {
		return domain.ProcessDefinition{}, false
	}
	for _, d := range defs {
		if d.Key == key {
			return d, true
		}
	}
	return defs[0], true
}

// ProcessInstanceDetails describes a running or ended instance with its variables.
// Variable read failures are reported under the "error" key.
func (g *Gateway) ProcessInstanceDetails(ctx context.Context, id string) (map[string]any, error) {
	details := map[string]any{}

	pi, err := g.engine.ProcessInstance(ctx, id)
	switch {
	case err == nil:
		details["id"] = pi.ID
		details["processDefinitionId"] = pi.ProcessDefinitionID
		details["businessKey"] = pi.BusinessKey
		details["isActive"] = true
		details["isSuspended"] = pi.Suspended
	case errors.Is(err, domain.ErrProcessInstanceNotFound):
		h, err := g.engine.HistoricProcessInstance(ctx, id)
		if err != nil {
			return nil, err
		}
		details["id"] = h.ID
		details["processDefinitionId"] = h.ProcessDefinitionID
		details["businessKey"] = h.BusinessKey
		details["isActive"] = false
		details["startTime"] = h.StartTime
		details["endTime"] = h.EndTime
		details["durationInMillis"] = h.DurationInMillis
	default:
		return nil, err
	}

	vars, err := g.engine.Variables(ctx, id)
	if err != nil {
		g.logger.Error("Error retrieving process variables", "process_instance_id", id, "error", err)
		details["error"] = err.Error()
		return details, nil
	}
	details["variables"] = vars
	return details, nil
}

// ActiveTasks lists the open tasks of an instance.
func (g *Gateway) ActiveTasks(ctx context.Context, processInstanceID string) ([]map[string]any, error) {
	tasks, err := g.engine.ActiveTasks(ctx, processInstanceID)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, map[string]any{
			"id":                t.ID,
			"name":              t.Name,
			"assignee":          t.Assignee,
			"createTime":        t.CreateTime,
			"dueDate":           t.DueDate,
			"priority":          t.Priority,
			"processInstanceId": t.ProcessInstanceID,
		})
	}
	return out, nil
}

// CompleteTask completes a task with optional variables.
func (g *Gateway) CompleteTask(ctx context.Context, taskID string, vars domain.Variables) error {
	return g.engine.CompleteTask(ctx, taskID, vars)
}

// AssignTask sets the assignee of a task.
func (g *Gateway) AssignTask(ctx context.Context, taskID, assignee string) error {
	return g.engine.UpdateTask(ctx, taskID, domain.TaskUpdate{Assignee: &assignee})
}

// CancelProcessInstance deletes a running instance.
func (g *Gateway) CancelProcessInstance(ctx context.Context, id, reason string) error {
	return g.engine.DeleteProcessInstance(ctx, id, reason)
}

// AuditTrail returns the audit records of an instance.
func (g *Gateway) AuditTrail(ctx context.Context, processInstanceID string) ([]audit.Record, error) {
	return g.audit.Trail(ctx, processInstanceID)
}
