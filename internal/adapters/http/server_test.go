package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/bpmgate"
	"github.com/aretw0/bpmgate/pkg/adapters/memory"
	"github.com/aretw0/bpmgate/pkg/catalog"
	"github.com/aretw0/bpmgate/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reviewBPMN = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL"
    xmlns:camunda="http://camunda.org/schema/1.0/bpmn" id="defs">
  <bpmn:process id="review" name="Review" isExecutable="true">
    <bpmn:startEvent id="start" />
    <bpmn:sequenceFlow id="f1" sourceRef="start" targetRef="reviewTask" />
    <bpmn:userTask id="reviewTask" name="Review" camunda:assignee="${reviewer}" />
    <bpmn:sequenceFlow id="f2" sourceRef="reviewTask" targetRef="done" />
    <bpmn:endEvent id="done" />
  </bpmn:process>
</bpmn:definitions>`

type fixture struct {
	handler http.Handler
	metrics *observability.Metrics
}

func newFixture() *fixture {
	metrics := observability.NewMetrics()
	gw := bpmgate.New(bpmgate.WithMetrics(metrics))
	cat := catalog.NewService(memory.NewUserRepository(), memory.NewProductRepository())
	return &fixture{
		handler: NewHandler(gw, cat, WithMetrics(metrics), WithVersion("1.2.3")),
		metrics: metrics,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (f *fixture) deploy(t *testing.T) bpmgate.DeploymentResponse {
	t.Helper()
	rr := f.do(t, http.MethodPost, "/api/workflow/deploy-and-start", map[string]any{
		"bpmnXml":     reviewBPMN,
		"processKey":  "review",
		"businessKey": "DOC-7",
		"variables":   map[string]any{"reviewer": "carol"},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[bpmgate.DeploymentResponse](t, rr)
	require.True(t, resp.Success)
	return resp
}

func TestGetHealth(t *testing.T) {
	f := newFixture()
	rr := f.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rr)["status"])
}

func TestGetInfo(t *testing.T) {
	f := newFixture()
	rr := f.do(t, http.MethodGet, "/info", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decode[map[string]string](t, rr)
	assert.Equal(t, "bpmgate", resp["app"])
	assert.Equal(t, "1.2.3", resp["version"])
	assert.Equal(t, "1.0.0", resp["api_version"])
}

func TestOpenAPIDocument(t *testing.T) {
	f := newFixture()
	rr := f.do(t, http.MethodGet, "/openapi.yaml", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/api/workflow/deploy-and-start")
}

func TestDeployAndStart(t *testing.T) {
	f := newFixture()
	resp := f.deploy(t)

	assert.NotEmpty(t, resp.DeploymentID)
	assert.NotEmpty(t, resp.ProcessInstanceID)
	assert.NotEmpty(t, resp.ProcessDefinitionID)
	assert.Equal(t, "carol", resp.ProcessVariables["reviewer"])
}

func TestDeployAndStart_Failures(t *testing.T) {
	f := newFixture()

	t.Run("empty bpmn", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/workflow/deploy-and-start", map[string]any{"bpmnXml": ""})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decode[bpmgate.DeploymentResponse](t, rr)
		assert.False(t, resp.Success)
		assert.Equal(t, "BPMN XML cannot be empty", resp.ErrorMessage)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/workflow/deploy-and-start", strings.NewReader("{"))
		rr := httptest.NewRecorder()
		f.handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decode[bpmgate.DeploymentResponse](t, rr)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.ErrorMessage, "Invalid request body")
	})
}

func TestProcessInstanceAndTasks(t *testing.T) {
	f := newFixture()
	resp := f.deploy(t)

	rr := f.do(t, http.MethodGet, "/api/workflow/process-instance/"+resp.ProcessInstanceID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	details := decode[map[string]any](t, rr)
	assert.Equal(t, true, details["isActive"])
	assert.Equal(t, "DOC-7", details["businessKey"])

	rr = f.do(t, http.MethodGet, "/api/workflow/active-tasks/"+resp.ProcessInstanceID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	tasks := decode[[]map[string]any](t, rr)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Review", tasks[0]["name"])
	assert.Equal(t, "carol", tasks[0]["assignee"])

	taskID := tasks[0]["id"].(string)
	rr = f.do(t, http.MethodPost, "/api/workflow/tasks/"+taskID+"/assign", map[string]string{"assignee": "dave"})
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/workflow/tasks/"+taskID+"/complete", map[string]any{
		"variables": map[string]any{"approved": true},
	})
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/workflow/process-instance/"+resp.ProcessInstanceID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, decode[map[string]any](t, rr)["isActive"])

	rr = f.do(t, http.MethodGet, "/api/workflow/process-instance/"+resp.ProcessInstanceID+"/audit", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, decode[[]map[string]any](t, rr))
}

func TestProcessInstance_NotFound(t *testing.T) {
	f := newFixture()

	rr := f.do(t, http.MethodGet, "/api/workflow/process-instance/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodDelete, "/api/workflow/process-instance/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/workflow/tasks/missing/complete", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAssignTask_RequiresAssignee(t *testing.T) {
	f := newFixture()
	rr := f.do(t, http.MethodPost, "/api/workflow/tasks/any/assign", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "assignee is required", decode[map[string]any](t, rr)["errorMessage"])
}

func TestCancelProcessInstance(t *testing.T) {
	f := newFixture()
	resp := f.deploy(t)

	rr := f.do(t, http.MethodDelete, "/api/workflow/process-instance/"+resp.ProcessInstanceID+"?reason=duplicate", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/workflow/active-tasks/"+resp.ProcessInstanceID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]map[string]any](t, rr))
}

func TestTaskEvent(t *testing.T) {
	f := newFixture()
	resp := f.deploy(t)

	rr := f.do(t, http.MethodPost, "/api/events/task", map[string]any{
		"eventName": "assignment",
		"task": map[string]any{
			"id":                "external-task",
			"name":              "Review",
			"assignee":          "carol",
			"processInstanceId": resp.ProcessInstanceID,
		},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	changes := decode[map[string]any](t, rr)
	vars, ok := changes["variables"].(map[string]any)
	require.True(t, ok, rr.Body.String())
	assert.Equal(t, "ASSIGNED", vars["taskStatus"])
	assert.Equal(t, "system", vars["assignedBy"])
}

func TestEvents_UnknownEventName(t *testing.T) {
	f := newFixture()

	for _, path := range []string{"/api/events/task", "/api/events/execution", "/api/events/process-instance"} {
		rr := f.do(t, http.MethodPost, path, map[string]any{
			"eventName":         "teleport",
			"processInstanceId": "pi-1",
			"task":              map[string]any{"id": "t-1", "processInstanceId": "pi-1"},
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	f := newFixture()

	rr := f.do(t, http.MethodPost, "/api/users", map[string]string{"name": "Ana", "email": "ana@gmail.com"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.NotEmpty(t, decode[map[string]any](t, rr)["id"])
	f.do(t, http.MethodPost, "/api/users", map[string]string{"name": "Bruno", "email": "bruno@corp.io"})

	rr = f.do(t, http.MethodPost, "/api/users", map[string]string{"email": "nobody@gmail.com"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/users?name=Ana", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]any](t, rr), 1)

	rr = f.do(t, http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/users/gmail", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	gmail := decode[[]map[string]any](t, rr)
	require.Len(t, gmail, 1)
	assert.Equal(t, "Ana", gmail[0]["name"])

	for _, p := range []map[string]any{{"name": "Desk", "price": 250.0}, {"name": "Pen", "price": 2.5}} {
		rr = f.do(t, http.MethodPost, "/api/products", p)
		require.Equal(t, http.StatusCreated, rr.Code)
	}
	rr = f.do(t, http.MethodPost, "/api/products", map[string]any{"name": "Refund", "price": -1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/products/expensive", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]any](t, rr), 1)

	rr = f.do(t, http.MethodGet, "/api/products?minPrice=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]any](t, rr), 2)

	rr = f.do(t, http.MethodGet, "/api/products?minPrice=cheap", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCatalogRoutesAbsentWithoutCatalog(t *testing.T) {
	handler := NewHandler(bpmgate.New(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/users/gmail", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture()
	f.deploy(t)

	rr := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `bpmgate_http_requests_total{code="200",route="/api/workflow/deploy-and-start"} 1`)
	assert.Contains(t, body, "bpmgate_audit_records_total")
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture()
	rr := f.do(t, http.MethodOptions, "/api/workflow/deploy-and-start", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
