package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/bpmgate"
	apihttp "github.com/aretw0/bpmgate/internal/adapters/http"
	"github.com/aretw0/bpmgate/pkg/client"
	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/variables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leaveBPMN = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL"
    xmlns:camunda="http://camunda.org/schema/1.0/bpmn" id="defs">
  <bpmn:process id="leave" name="Leave Request" isExecutable="true">
    <bpmn:startEvent id="start" />
    <bpmn:sequenceFlow id="f1" sourceRef="start" targetRef="approve" />
    <bpmn:userTask id="approve" name="Approve Leave" camunda:assignee="${manager}" />
    <bpmn:sequenceFlow id="f2" sourceRef="approve" targetRef="done" />
    <bpmn:endEvent id="done" />
  </bpmn:process>
</bpmn:definitions>`

func newClient(t *testing.T) *client.Client {
	t.Helper()
	srv := httptest.NewServer(apihttp.NewHandler(bpmgate.New(), nil))
	t.Cleanup(srv.Close)
	return client.New(srv.URL + "/")
}

func TestClient_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	resp, err := c.DeployAndStart(ctx, variables.WorkflowRequest{
		BpmnXML:   leaveBPMN,
		Variables: map[string]any{"manager": "frank", "days": 3},
	})
	require.NoError(t, err)
	require.True(t, resp.Success)

	details, err := c.ProcessInstance(ctx, resp.ProcessInstanceID)
	require.NoError(t, err)
	assert.Equal(t, true, details["isActive"])

	tasks, err := c.ActiveTasks(ctx, resp.ProcessInstanceID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "frank", tasks[0]["assignee"])

	taskID := tasks[0]["id"].(string)
	require.NoError(t, c.AssignTask(ctx, taskID, "grace"))

	tasks, err = c.ActiveTasks(ctx, resp.ProcessInstanceID)
	require.NoError(t, err)
	assert.Equal(t, "grace", tasks[0]["assignee"])

	require.NoError(t, c.CompleteTask(ctx, taskID, map[string]any{"approved": true}))

	details, err = c.ProcessInstance(ctx, resp.ProcessInstanceID)
	require.NoError(t, err)
	assert.Equal(t, false, details["isActive"])

	trail, err := c.AuditTrail(ctx, resp.ProcessInstanceID)
	require.NoError(t, err)
	require.NotEmpty(t, trail)
	assert.Equal(t, domain.AuditProcessStarted, trail[0].Kind)
	assert.Equal(t, domain.AuditProcessEnded, trail[len(trail)-1].Kind)
}

func TestClient_DeployFailureCarriesResponse(t *testing.T) {
	c := newClient(t)

	resp, err := c.DeployAndStart(context.Background(), variables.WorkflowRequest{})

	var apiErr *client.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.False(t, resp.Success)
	assert.Equal(t, "BPMN XML cannot be empty", resp.ErrorMessage)
}

func TestClient_NotFound(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	_, err := c.ProcessInstance(ctx, "missing")
	var apiErr *client.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "process instance not found")

	err = c.CancelProcessInstance(ctx, "missing", "no longer needed")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}
