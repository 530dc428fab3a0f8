package bpmgate_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/bpmgate"
	"github.com/aretw0/bpmgate/pkg/adapters/camunda"
	"github.com/aretw0/bpmgate/pkg/adapters/memory"
	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/variables"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const approvalBPMN = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL"
    xmlns:camunda="http://camunda.org/schema/1.0/bpmn" id="defs">
  <bpmn:process id="approval" name="Approval" isExecutable="true">
    <bpmn:startEvent id="start" />
    <bpmn:sequenceFlow id="f1" sourceRef="start" targetRef="approvalTask" />
    <bpmn:userTask id="approvalTask" name="Approve" camunda:assignee="${approver}" />
    <bpmn:sequenceFlow id="f2" sourceRef="approvalTask" targetRef="decision" />
    <bpmn:exclusiveGateway id="decision" default="approvalRejected" />
    <bpmn:sequenceFlow id="approvalApproved" sourceRef="decision" targetRef="done">
      <bpmn:conditionExpression>${approved}</bpmn:conditionExpression>
    </bpmn:sequenceFlow>
    <bpmn:sequenceFlow id="approvalRejected" sourceRef="decision" targetRef="done" />
    <bpmn:endEvent id="done" />
  </bpmn:process>
</bpmn:definitions>`

type harness struct {
	gw    *bpmgate.Gateway
	clock *clock.Mock
	audit *memory.AuditStore
	sent  *memory.NotificationChannel
}

func newHarness() *harness {
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC))
	store := memory.NewAuditStore()
	sent := memory.NewNotificationChannel()
	gw := bpmgate.New(
		bpmgate.WithClock(mock),
		bpmgate.WithAuditStore(store),
		bpmgate.WithNotificationChannels(sent),
	)
	return &harness{gw: gw, clock: mock, audit: store, sent: sent}
}

func (h *harness) start(t *testing.T) bpmgate.DeploymentResponse {
	t.Helper()
	resp := h.gw.DeployAndStart(context.Background(), variables.WorkflowRequest{
		BpmnXML:     approvalBPMN,
		ProcessKey:  "approval",
		ProcessName: "Approval",
		BusinessKey: "PO-1",
		Variables:   map[string]any{"approver": "alice", "amount": 1200.0},
		TypedVariables: map[string]variables.TypedVariable{
			"requestedAt": variables.Date(time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)),
		},
	})
	require.True(t, resp.Success, resp.ErrorMessage)
	return resp
}

func TestDeployAndStart_Validation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	resp := h.gw.DeployAndStart(ctx, variables.WorkflowRequest{BpmnXML: "   "})
	assert.False(t, resp.Success)
	assert.Equal(t, "BPMN XML cannot be empty", resp.ErrorMessage)

	resp = h.gw.DeployAndStart(ctx, variables.WorkflowRequest{BpmnXML: approvalBPMN, ProcessKey: "1bad key"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "Deployment failed: invalid process key")

	resp = h.gw.DeployAndStart(ctx, variables.WorkflowRequest{BpmnXML: approvalBPMN, Variables: map[string]any{"": 1}})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "variable name cannot be empty")

	resp = h.gw.DeployAndStart(ctx, variables.WorkflowRequest{BpmnXML: "<not-bpmn/>"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "Deployment failed:")
}

func TestDeployAndStart_Success(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	resp := h.start(t)

	assert.NotEmpty(t, resp.DeploymentID)
	assert.Contains(t, resp.ProcessDefinitionID, "approval:1:")
	assert.NotEmpty(t, resp.ProcessInstanceID)
	assert.Equal(t, "alice", resp.ProcessVariables["approver"])
	assert.IsType(t, time.Time{}, resp.ProcessVariables["requestedAt"])

	tasks, err := h.gw.ActiveTasks(ctx, resp.ProcessInstanceID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Approve", tasks[0]["name"])
	assert.Equal(t, "alice", tasks[0]["assignee"])

	details, err := h.gw.ProcessInstanceDetails(ctx, resp.ProcessInstanceID)
	require.NoError(t, err)
	assert.Equal(t, true, details["isActive"])
	assert.Equal(t, "PO-1", details["businessKey"])
	vars := details["variables"].(domain.Variables)
	assert.Equal(t, "RUNNING", vars["processStatus"])
	assert.Equal(t, "ASSIGNED", vars["taskStatus"])
	assert.Equal(t, 1, vars["approvalLevel"])

	var kinds []domain.NotificationKind
	for _, n := range h.sent.Sent() {
		kinds = append(kinds, n.Kind)
	}
	assert.Contains(t, kinds, domain.NotifyProcessStarted)
	assert.Contains(t, kinds, domain.NotifyTaskAssigned)
}

func TestDeployAndStart_WithoutStart(t *testing.T) {
	h := newHarness()
	no := false
	resp := h.gw.DeployAndStart(context.Background(), variables.WorkflowRequest{
		BpmnXML:          approvalBPMN,
		StartImmediately: &no,
	})
	require.True(t, resp.Success, resp.ErrorMessage)
	assert.NotEmpty(t, resp.ProcessDefinitionID)
	assert.Empty(t, resp.ProcessInstanceID)
}

func TestCompleteTask_EndsInstance(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	resp := h.start(t)

	tasks, err := h.gw.ActiveTasks(ctx, resp.ProcessInstanceID)
	require.NoError(t, err)
	h.clock.Add(3 * time.Hour)
	require.NoError(t, h.gw.CompleteTask(ctx, tasks[0]["id"].(string), domain.Variables{"approved": true}))

	details, err := h.gw.ProcessInstanceDetails(ctx, resp.ProcessInstanceID)
	require.NoError(t, err)
	assert.Equal(t, false, details["isActive"])
	assert.NotNil(t, details["endTime"])
	vars := details["variables"].(domain.Variables)
	assert.Equal(t, "COMPLETED", vars["processStatus"])
	assert.Equal(t, int64(3), vars["taskDurationHours"])
	assert.Contains(t, vars, "approvalDate")

	trail, err := h.gw.AuditTrail(ctx, resp.ProcessInstanceID)
	require.NoError(t, err)
	require.NotEmpty(t, trail)
	assert.Equal(t, domain.AuditProcessStarted, trail[0].Kind)
	assert.Equal(t, domain.AuditProcessEnded, trail[len(trail)-1].Kind)

	var approvals int
	for _, n := range h.sent.Sent() {
		if n.Kind == domain.NotifyFinalApproval {
			approvals++
			assert.Equal(t, "alice", n.Approver)
		}
	}
	assert.Equal(t, 1, approvals)
}

func TestAssignAndCancel(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	resp := h.start(t)

	tasks, err := h.gw.ActiveTasks(ctx, resp.ProcessInstanceID)
	require.NoError(t, err)
	require.NoError(t, h.gw.AssignTask(ctx, tasks[0]["id"].(string), "bob"))

	tasks, err = h.gw.ActiveTasks(ctx, resp.ProcessInstanceID)
	require.NoError(t, err)
	assert.Equal(t, "bob", tasks[0]["assignee"])

	require.NoError(t, h.gw.CancelProcessInstance(ctx, resp.ProcessInstanceID, "withdrawn"))

	var cancelled []domain.Notification
	for _, n := range h.sent.Sent() {
		if n.Kind == domain.NotifyTaskCancelled {
			cancelled = append(cancelled, n)
		}
	}
	require.Len(t, cancelled, 1)
	assert.Equal(t, "bob", cancelled[0].Recipient)
	assert.Equal(t, "withdrawn", cancelled[0].Reason)

	details, err := h.gw.ProcessInstanceDetails(ctx, resp.ProcessInstanceID)
	require.NoError(t, err)
	assert.Equal(t, false, details["isActive"])
}

func TestProcessInstanceDetails_Unknown(t *testing.T) {
	h := newHarness()
	_, err := h.gw.ProcessInstanceDetails(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrProcessInstanceNotFound)
}

const parallelBPMN = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL" id="defs">
  <bpmn:process id="split" isExecutable="true">
    <bpmn:startEvent id="start" />
    <bpmn:sequenceFlow id="f0" sourceRef="start" targetRef="fork" />
    <bpmn:parallelGateway id="fork" />
    <bpmn:sequenceFlow id="f1" sourceRef="fork" targetRef="left" />
    <bpmn:sequenceFlow id="f2" sourceRef="fork" targetRef="right" />
    <bpmn:userTask id="left" />
    <bpmn:userTask id="right" />
    <bpmn:sequenceFlow id="f3" sourceRef="left" targetRef="join" />
    <bpmn:sequenceFlow id="f4" sourceRef="right" targetRef="join" />
    <bpmn:parallelGateway id="join" />
    <bpmn:sequenceFlow id="f5" sourceRef="join" targetRef="end" />
    <bpmn:endEvent id="end" />
  </bpmn:process>
</bpmn:definitions>`

func TestDeployAndStart_RemoteEngineAcceptsUnsupportedElements(t *testing.T) {
	var deploys atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /engine-rest/deployment/create", func(w http.ResponseWriter, r *http.Request) {
		deploys.Add(1)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, hdr, err := r.FormFile("split.bpmn")
		require.NoError(t, err)
		assert.Equal(t, "split.bpmn", hdr.Filename)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "dep-1",
			"deployedProcessDefinitions": map[string]any{
				"split:1:x": map[string]any{"id": "split:1:x", "key": "split", "version": 1},
			},
		})
	})
	mux.HandleFunc("POST /engine-rest/process-definition/{id}/start", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "pi-1", "definitionId": r.PathValue("id")})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	gw := bpmgate.New(bpmgate.WithEngine(camunda.New(srv.URL + "/engine-rest")))
	resp := gw.DeployAndStart(context.Background(), variables.WorkflowRequest{BpmnXML: parallelBPMN})
	require.True(t, resp.Success, resp.ErrorMessage)
	assert.Equal(t, "dep-1", resp.DeploymentID)
	assert.Equal(t, "split:1:x", resp.ProcessDefinitionID)
	assert.Equal(t, "pi-1", resp.ProcessInstanceID)
	assert.EqualValues(t, 1, deploys.Load())
}

func TestDeployAndStart_MemoryEngineRejectsUnsupportedElements(t *testing.T) {
	h := newHarness()
	resp := h.gw.DeployAndStart(context.Background(), variables.WorkflowRequest{BpmnXML: parallelBPMN})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "Deployment failed: ")
	assert.Contains(t, resp.ErrorMessage, `unknown target "fork"`)
}

// stubEngine overrides parts of the memory engine.
type stubEngine struct {
	*memory.Engine
	emptyDeployment bool
	variablesErr    error
}

func (s *stubEngine) Deploy(ctx context.Context, req domain.DeploymentRequest) (*domain.Deployment, error) {
	dep, err := s.Engine.Deploy(ctx, req)
	if err != nil || !s.emptyDeployment {
		return dep, err
	}
	dep.ProcessDefinitions = nil
	return dep, nil
}

func (s *stubEngine) Variables(ctx context.Context, processInstanceID string) (domain.Variables, error) {
	if s.variablesErr != nil {
		return nil, s.variablesErr
	}
	return s.Engine.Variables(ctx, processInstanceID)
}

func TestDeployAndStart_NoDefinition(t *testing.T) {
	gw := bpmgate.New(bpmgate.WithEngine(&stubEngine{Engine: memory.NewEngine(), emptyDeployment: true}))
	resp := gw.DeployAndStart(context.Background(), variables.WorkflowRequest{BpmnXML: approvalBPMN, ProcessKey: "approval"})
	assert.False(t, resp.Success)
	assert.Equal(t, bpmgate.MsgNoProcessDefinition, resp.ErrorMessage)
	assert.NotEmpty(t, resp.DeploymentID)
	assert.Equal(t, "no process definition after deployment", bpmgate.ErrNoProcessDefinition.Error())
}

func TestProcessInstanceDetails_VariableReadFailure(t *testing.T) {
	engine := &stubEngine{Engine: memory.NewEngine()}
	gw := bpmgate.New(bpmgate.WithEngine(engine))
	ctx := context.Background()
	resp := gw.DeployAndStart(ctx, variables.WorkflowRequest{
		BpmnXML:   approvalBPMN,
		Variables: map[string]any{"approver": "alice"},
	})
	require.True(t, resp.Success, resp.ErrorMessage)

	engine.variablesErr = errors.New("engine unavailable")
	details, err := gw.ProcessInstanceDetails(ctx, resp.ProcessInstanceID)
	require.NoError(t, err)
	assert.Equal(t, resp.ProcessInstanceID, details["id"])
	assert.Equal(t, true, details["isActive"])
	assert.Equal(t, "engine unavailable", details["error"])
	assert.NotContains(t, details, "variables")
}
