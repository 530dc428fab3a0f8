package camunda

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"

	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/ports"
	"github.com/jellydator/ttlcache/v3"
)

var _ ports.ProcessEngine = (*Client)(nil)

type processDefinitionDTO struct {
	ID           string `json:"id"`
	Key          string `json:"key"`
	Name         string `json:"name"`
	Version      int    `json:"version"`
	DeploymentID string `json:"deploymentId"`
}

func (d processDefinitionDTO) toDomain() domain.ProcessDefinition {
	return domain.ProcessDefinition{ID: d.ID, Key: d.Key, Name: d.Name, Version: d.Version, DeploymentID: d.DeploymentID}
}

type deploymentDTO struct {
	ID                         string                          `json:"id"`
	Name                       string                          `json:"name"`
	DeploymentTime             engineTime                      `json:"deploymentTime"`
	DeployedProcessDefinitions map[string]processDefinitionDTO `json:"deployedProcessDefinitions"`
}

type processInstanceDTO struct {
	ID           string `json:"id"`
	DefinitionID string `json:"definitionId"`
	BusinessKey  string `json:"businessKey"`
	Suspended    bool   `json:"suspended"`
	Ended        bool   `json:"ended"`
}

type historicProcessInstanceDTO struct {
	ID                   string      `json:"id"`
	ProcessDefinitionID  string      `json:"processDefinitionId"`
	ProcessDefinitionKey string      `json:"processDefinitionKey"`
	BusinessKey          string      `json:"businessKey"`
	StartTime            engineTime  `json:"startTime"`
	EndTime              *engineTime `json:"endTime"`
	DurationInMillis     *int64      `json:"durationInMillis"`
	State                string      `json:"state"`
	DeleteReason         string      `json:"deleteReason"`
}

type taskDTO struct {
	ID                  string      `json:"id"`
	Name                string      `json:"name"`
	Description         string      `json:"description,omitempty"`
	Assignee            string      `json:"assignee"`
	Owner               string      `json:"owner,omitempty"`
	Created             engineTime  `json:"created"`
	Due                 *engineTime `json:"due"`
	Priority            int         `json:"priority"`
	ProcessInstanceID   string      `json:"processInstanceId"`
	ProcessDefinitionID string      `json:"processDefinitionId"`
	TaskDefinitionKey   string      `json:"taskDefinitionKey"`
}

func (t taskDTO) toDomain() domain.Task {
	return domain.Task{
		ID:                  t.ID,
		Name:                t.Name,
		Assignee:            t.Assignee,
		CreateTime:          t.Created.Time,
		DueDate:             t.Due.ptr(),
		Priority:            t.Priority,
		ProcessInstanceID:   t.ProcessInstanceID,
		ProcessDefinitionID: t.ProcessDefinitionID,
		TaskDefinitionKey:   t.TaskDefinitionKey,
	}
}

type historicVariableDTO struct {
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	Value     any            `json:"value"`
	ValueInfo map[string]any `json:"valueInfo"`
}

// Deploy uploads the BPMN resource with duplicate filtering disabled, so every
// call yields a new definition version.
func (c *Client) Deploy(ctx context.Context, req domain.DeploymentRequest) (*domain.Deployment, error) {
	if len(req.BPMN) == 0 {
		return nil, domain.ErrEmptyBPMN
	}
	resource := req.ResourceName
	if resource == "" {
		resource = "process.bpmn"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"deployment-name":            req.Name,
		"enable-duplicate-filtering": "false",
		"deploy-changed-only":        "false",
		"deployment-source":          "bpmgate",
	}
	if req.TenantID != "" {
		fields["tenant-id"] = req.TenantID
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("build deployment: %w", err)
		}
	}
	part, err := w.CreateFormFile(resource, resource)
	if err != nil {
		return nil, fmt.Errorf("build deployment: %w", err)
	}
	if _, err := part.Write(req.BPMN); err != nil {
		return nil, fmt.Errorf("build deployment: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("build deployment: %w", err)
	}

	var dto deploymentDTO
	err = c.do(ctx, request{
		op:          "deploy",
		method:      http.MethodPost,
		path:        "/deployment/create",
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
	}, &dto)
	if err != nil {
		return nil, err
	}

	dep := &domain.Deployment{ID: dto.ID, Name: dto.Name, DeploymentTime: dto.DeploymentTime.Time}
	for _, d := range dto.DeployedProcessDefinitions {
		def := d.toDomain()
		c.definitions.Set(def.ID, def, ttlcache.DefaultTTL)
		dep.ProcessDefinitions = append(dep.ProcessDefinitions, def)
	}
	sort.Slice(dep.ProcessDefinitions, func(i, j int) bool {
		return dep.ProcessDefinitions[i].Key < dep.ProcessDefinitions[j].Key
	})
	c.logger.Info("Deployed resource", "deployment_id", dep.ID, "resource", resource, "definitions", len(dep.ProcessDefinitions))
	return dep, nil
}

// ProcessDefinition returns a definition, served from the cache when possible.
func (c *Client) ProcessDefinition(ctx context.Context, id string) (domain.ProcessDefinition, error) {
	if item := c.definitions.Get(id); item != nil {
		return item.Value(), nil
	}
	var dto processDefinitionDTO
	err := c.do(ctx, request{
		op:       "process-definition.get",
		method:   http.MethodGet,
		path:     "/process-definition/" + url.PathEscape(id),
		notFound: domain.ErrProcessDefinitionNotFound,
	}, &dto)
	if err != nil {
		return domain.ProcessDefinition{}, err
	}
	def := dto.toDomain()
	c.definitions.Set(id, def, ttlcache.DefaultTTL)
	return def, nil
}

func (c *Client) definitionKey(ctx context.Context, definitionID string) string {
	def, err := c.ProcessDefinition(ctx, definitionID)
	if err != nil {
		c.logger.Debug("Process definition lookup failed", "definition_id", definitionID, "error", err)
		return ""
	}
	return def.Key
}

func (c *Client) StartProcessInstance(ctx context.Context, definitionID, businessKey string, vars domain.Variables) (*domain.ProcessInstance, error) {
	values, err := ToValues(vars)
	if err != nil {
		return nil, err
	}
	body, err := jsonBody(map[string]any{
		"variables":   values,
		"businessKey": businessKey,
	})
	if err != nil {
		return nil, err
	}

	var dto processInstanceDTO
	err = c.do(ctx, request{
		op:       "process-definition.start",
		method:   http.MethodPost,
		path:     "/process-definition/" + url.PathEscape(definitionID) + "/start",
		body:     body,
		notFound: domain.ErrProcessDefinitionNotFound,
	}, &dto)
	if err != nil {
		return nil, err
	}
	return c.instance(ctx, dto), nil
}

func (c *Client) instance(ctx context.Context, dto processInstanceDTO) *domain.ProcessInstance {
	return &domain.ProcessInstance{
		ID:                   dto.ID,
		ProcessDefinitionID:  dto.DefinitionID,
		ProcessDefinitionKey: c.definitionKey(ctx, dto.DefinitionID),
		BusinessKey:          dto.BusinessKey,
		Suspended:            dto.Suspended,
		Ended:                dto.Ended,
	}
}

func (c *Client) ProcessInstance(ctx context.Context, id string) (*domain.ProcessInstance, error) {
	var dto processInstanceDTO
	err := c.do(ctx, request{
		op:       "process-instance.get",
		method:   http.MethodGet,
		path:     "/process-instance/" + url.PathEscape(id),
		notFound: domain.ErrProcessInstanceNotFound,
	}, &dto)
	if err != nil {
		return nil, err
	}
	return c.instance(ctx, dto), nil
}

func (c *Client) HistoricProcessInstance(ctx context.Context, id string) (*domain.HistoricProcessInstance, error) {
	var dto historicProcessInstanceDTO
	err := c.do(ctx, request{
		op:       "history.process-instance.get",
		method:   http.MethodGet,
		path:     "/history/process-instance/" + url.PathEscape(id),
		notFound: domain.ErrProcessInstanceNotFound,
	}, &dto)
	if err != nil {
		return nil, err
	}
	return &domain.HistoricProcessInstance{
		ID:                   dto.ID,
		ProcessDefinitionID:  dto.ProcessDefinitionID,
		ProcessDefinitionKey: dto.ProcessDefinitionKey,
		BusinessKey:          dto.BusinessKey,
		StartTime:            dto.StartTime.Time,
		EndTime:              dto.EndTime.ptr(),
		DurationInMillis:     dto.DurationInMillis,
		State:                dto.State,
		DeleteReason:         dto.DeleteReason,
	}, nil
}

// Variables reads runtime variables, falling back to history for ended instances.
func (c *Client) Variables(ctx context.Context, processInstanceID string) (domain.Variables, error) {
	var values map[string]Value
	err := c.do(ctx, request{
		op:       "process-instance.variables",
		method:   http.MethodGet,
		path:     "/process-instance/" + url.PathEscape(processInstanceID) + "/variables",
		query:    url.Values{"deserializeValues": {"false"}},
		notFound: domain.ErrProcessInstanceNotFound,
	}, &values)
	if err == nil {
		return FromValues(values)
	}
	if !errors.Is(err, domain.ErrProcessInstanceNotFound) {
		return nil, err
	}
	return c.historicVariables(ctx, processInstanceID)
}

func (c *Client) historicVariables(ctx context.Context, processInstanceID string) (domain.Variables, error) {
	var list []historicVariableDTO
	err := c.do(ctx, request{
		op:     "history.variable-instance.list",
		method: http.MethodGet,
		path:   "/history/variable-instance",
		query: url.Values{
			"processInstanceId": {processInstanceID},
			"deserializeValues": {"false"},
		},
	}, &list)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		if _, err := c.HistoricProcessInstance(ctx, processInstanceID); err != nil {
			return nil, err
		}
	}

	vars := make(domain.Variables, len(list))
	for _, v := range list {
		val, err := FromValue(Value{Value: v.Value, Type: v.Type, ValueInfo: v.ValueInfo})
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", v.Name, err)
		}
		vars[v.Name] = val
	}
	return vars, nil
}

func (c *Client) SetVariables(ctx context.Context, processInstanceID string, vars domain.Variables) error {
	if len(vars) == 0 {
		return nil
	}
	values, err := ToValues(vars)
	if err != nil {
		return err
	}
	body, err := jsonBody(map[string]any{"modifications": values})
	if err != nil {
		return err
	}
	return c.do(ctx, request{
		op:         "process-instance.variables.modify",
		method:     http.MethodPost,
		path:       "/process-instance/" + url.PathEscape(processInstanceID) + "/variables",
		body:       body,
		notFound:   domain.ErrProcessInstanceNotFound,
		idempotent: true,
	}, nil)
}

func (c *Client) ActiveTasks(ctx context.Context, processInstanceID string) ([]domain.Task, error) {
	var list []taskDTO
	err := c.do(ctx, request{
		op:     "task.list",
		method: http.MethodGet,
		path:   "/task",
		query: url.Values{
			"processInstanceId": {processInstanceID},
			"active":            {"true"},
		},
	}, &list)
	if err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, 0, len(list))
	for _, t := range list {
		tasks = append(tasks, t.toDomain())
	}
	return tasks, nil
}

func (c *Client) task(ctx context.Context, taskID string) (*taskDTO, error) {
	var dto taskDTO
	err := c.do(ctx, request{
		op:       "task.get",
		method:   http.MethodGet,
		path:     "/task/" + url.PathEscape(taskID),
		notFound: domain.ErrTaskNotFound,
	}, &dto)
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

func (c *Client) Task(ctx context.Context, taskID string) (*domain.Task, error) {
	dto, err := c.task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	t := dto.toDomain()
	return &t, nil
}

// UpdateTask reads the task and writes it back with the requested changes,
// since the engine replaces every updatable field on PUT.
func (c *Client) UpdateTask(ctx context.Context, taskID string, update domain.TaskUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	current, err := c.task(ctx, taskID)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"name":        current.Name,
		"description": current.Description,
		"assignee":    current.Assignee,
		"owner":       current.Owner,
		"priority":    current.Priority,
		"due":         nil,
	}
	if current.Due != nil && !current.Due.IsZero() {
		payload["due"] = current.Due.Format(DateLayout)
	}
	if update.Assignee != nil {
		payload["assignee"] = *update.Assignee
	}
	if update.DueDate != nil {
		payload["due"] = update.DueDate.Format(DateLayout)
	}

	body, err := jsonBody(payload)
	if err != nil {
		return err
	}
	return c.do(ctx, request{
		op:       "task.update",
		method:   http.MethodPut,
		path:     "/task/" + url.PathEscape(taskID),
		body:     body,
		notFound: domain.ErrTaskNotFound,
	}, nil)
}

func (c *Client) CompleteTask(ctx context.Context, taskID string, vars domain.Variables) error {
	values, err := ToValues(vars)
	if err != nil {
		return err
	}
	body, err := jsonBody(map[string]any{"variables": values})
	if err != nil {
		return err
	}
	return c.do(ctx, request{
		op:       "task.complete",
		method:   http.MethodPost,
		path:     "/task/" + url.PathEscape(taskID) + "/complete",
		body:     body,
		notFound: domain.ErrTaskNotFound,
	}, nil)
}

// DeleteProcessInstance cancels an instance. The REST endpoint takes no reason,
// so it is only logged.
func (c *Client) DeleteProcessInstance(ctx context.Context, id, reason string) error {
	err := c.do(ctx, request{
		op:       "process-instance.delete",
		method:   http.MethodDelete,
		path:     "/process-instance/" + url.PathEscape(id),
		query:    url.Values{"skipCustomListeners": {"false"}},
		notFound: domain.ErrProcessInstanceNotFound,
	}, nil)
	if err != nil {
		return err
	}
	c.logger.Info("Deleted process instance", "process_instance_id", id, "reason", reason)
	return nil
}
