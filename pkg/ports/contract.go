package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ContractBPMN is a one-task process used by RunProcessEngineContract.
const ContractBPMN = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL"
    xmlns:camunda="http://camunda.org/schema/1.0/bpmn" id="contract" targetNamespace="http://bpmn.io/schema/bpmn">
  <bpmn:process id="contractProcess" name="Contract Process" isExecutable="true">
    <bpmn:startEvent id="start" />
    <bpmn:sequenceFlow id="toReview" sourceRef="start" targetRef="reviewTask" />
    <bpmn:userTask id="reviewTask" name="Review" />
    <bpmn:sequenceFlow id="toEnd" sourceRef="reviewTask" targetRef="end" />
    <bpmn:endEvent id="end" />
  </bpmn:process>
</bpmn:definitions>`

// RunProcessEngineContract runs a suite of tests to verify that a ProcessEngine implementation
// adheres to the defined interface contract.
func RunProcessEngineContract(t *testing.T, engine ProcessEngine) {
	ctx := context.Background()

	deployment, err := engine.Deploy(ctx, domain.DeploymentRequest{
		Name:         "contract",
		ResourceName: "contractProcess.bpmn",
		BPMN:         []byte(ContractBPMN),
	})
	require.NoError(t, err, "Deploy should not return error")
	require.Len(t, deployment.ProcessDefinitions, 1)
	definition := deployment.ProcessDefinitions[0]
	assert.Equal(t, "contractProcess", definition.Key)
	assert.Equal(t, deployment.ID, definition.DeploymentID)

	t.Run("Deploy Empty", func(t *testing.T) {
		_, err := engine.Deploy(ctx, domain.DeploymentRequest{Name: "empty"})
		assert.Error(t, err)
	})

	t.Run("Start and Complete", func(t *testing.T) {
		inst, err := engine.StartProcessInstance(ctx, definition.ID, "order-1", domain.Variables{"amount": 42.0})
		require.NoError(t, err)
		assert.Equal(t, definition.ID, inst.ProcessDefinitionID)
		assert.Equal(t, "order-1", inst.BusinessKey)

		running, err := engine.ProcessInstance(ctx, inst.ID)
		require.NoError(t, err)
		assert.False(t, running.Ended)

		vars, err := engine.Variables(ctx, inst.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 42.0, vars["amount"])

		require.NoError(t, engine.SetVariables(ctx, inst.ID, domain.Variables{"note": "ok"}))
		vars, err = engine.Variables(ctx, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, "ok", vars["note"])

		tasks, err := engine.ActiveTasks(ctx, inst.ID)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, "Review", tasks[0].Name)
		assert.Equal(t, inst.ID, tasks[0].ProcessInstanceID)

		assignee := "alice"
		due := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
		require.NoError(t, engine.UpdateTask(ctx, tasks[0].ID, domain.TaskUpdate{Assignee: &assignee, DueDate: &due}))
		task, err := engine.Task(ctx, tasks[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", task.Assignee)
		require.NotNil(t, task.DueDate)
		assert.True(t, due.Equal(*task.DueDate))

		require.NoError(t, engine.CompleteTask(ctx, tasks[0].ID, domain.Variables{"approved": true}))

		_, err = engine.ProcessInstance(ctx, inst.ID)
		assert.ErrorIs(t, err, domain.ErrProcessInstanceNotFound, "ended instances leave the runtime")

		hist, err := engine.HistoricProcessInstance(ctx, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.HistoricStateCompleted, hist.State)
		assert.NotNil(t, hist.EndTime)
		assert.NotNil(t, hist.DurationInMillis)
	})

	t.Run("Delete", func(t *testing.T) {
		inst, err := engine.StartProcessInstance(ctx, definition.ID, "", nil)
		require.NoError(t, err)

		require.NoError(t, engine.DeleteProcessInstance(ctx, inst.ID, "cancelled by contract"))

		hist, err := engine.HistoricProcessInstance(ctx, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.HistoricStateExternallyTerminated, hist.State)
		assert.Equal(t, "cancelled by contract", hist.DeleteReason)
	})

	t.Run("Unknown IDs", func(t *testing.T) {
		_, err := engine.ProcessInstance(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrProcessInstanceNotFound)
		_, err = engine.HistoricProcessInstance(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrProcessInstanceNotFound)
		_, err = engine.Task(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
		err = engine.CompleteTask(ctx, "missing", nil)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
		_, err = engine.StartProcessInstance(ctx, "missing:1:x", "", nil)
		assert.ErrorIs(t, err, domain.ErrProcessDefinitionNotFound)
	})
}

// RunAuditStoreContract verifies ordering and isolation of an AuditStore.
func RunAuditStoreContract(t *testing.T, store AuditStore) {
	ctx := context.Background()
	pid := "contract-" + time.Now().Format("20060102150405.000000000")
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("Append and List", func(t *testing.T) {
		first := domain.AuditRecord{ID: "r1", Kind: domain.AuditProcessStarted, Timestamp: at, ProcessInstanceID: pid, ProcessDefinitionKey: "invoice"}
		second := domain.AuditRecord{ID: "r2", Kind: domain.AuditTaskCreated, Timestamp: at.Add(time.Second), ProcessInstanceID: pid, TaskID: "t1", TaskName: "Approve"}
		other := domain.AuditRecord{ID: "r3", Kind: domain.AuditTaskCreated, Timestamp: at, ProcessInstanceID: pid + "-other"}

		require.NoError(t, store.Append(ctx, first))
		require.NoError(t, store.Append(ctx, other))
		require.NoError(t, store.Append(ctx, second))

		records, err := store.List(ctx, pid)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "r1", records[0].ID)
		assert.Equal(t, domain.AuditProcessStarted, records[0].Kind)
		assert.Equal(t, "invoice", records[0].ProcessDefinitionKey)
		assert.True(t, at.Equal(records[0].Timestamp))
		assert.Equal(t, "r2", records[1].ID)
		assert.Equal(t, "Approve", records[1].TaskName)
	})

	t.Run("List Unknown", func(t *testing.T) {
		records, err := store.List(ctx, "unknown-"+pid)
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

// RunUserRepositoryContract verifies a UserRepository implementation.
func RunUserRepositoryContract(t *testing.T, repo UserRepository) {
	ctx := context.Background()
	suffix := time.Now().Format("150405.000000")

	saved, err := repo.Save(ctx, domain.User{Name: "Ana " + suffix, Email: "ana@gmail.com"})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID, "Save assigns an ID")
	_, err = repo.Save(ctx, domain.User{Name: "Bob " + suffix, Email: "bob@example.com"})
	require.NoError(t, err)

	t.Run("FindByID", func(t *testing.T) {
		got, err := repo.FindByID(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, saved, got)

		_, err = repo.FindByID(ctx, "missing-"+suffix)
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})

	t.Run("FindByName", func(t *testing.T) {
		users, err := repo.FindByName(ctx, "Ana "+suffix)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, saved.ID, users[0].ID)
	})

	t.Run("FindByEmailPattern", func(t *testing.T) {
		users, err := repo.FindByEmailPattern(ctx, `@gmail\.com`)
		require.NoError(t, err)
		var ids []string
		for _, u := range users {
			ids = append(ids, u.ID)
			assert.Contains(t, u.Email, "@gmail.com")
		}
		assert.Contains(t, ids, saved.ID)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		saved.Email = "ana@example.org"
		_, err := repo.Save(ctx, saved)
		require.NoError(t, err)
		got, err := repo.FindByID(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, "ana@example.org", got.Email)
	})
}

// RunProductRepositoryContract verifies a ProductRepository implementation.
func RunProductRepositoryContract(t *testing.T, repo ProductRepository) {
	ctx := context.Background()

	cheap, err := repo.Save(ctx, domain.Product{Name: "Pen", Price: 2.5})
	require.NoError(t, err)
	require.NotEmpty(t, cheap.ID)
	pricey, err := repo.Save(ctx, domain.Product{Name: "Laptop", Price: 1500})
	require.NoError(t, err)

	t.Run("FindByID", func(t *testing.T) {
		got, err := repo.FindByID(ctx, pricey.ID)
		require.NoError(t, err)
		assert.Equal(t, pricey, got)

		_, err = repo.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})

	t.Run("FindByPriceGreaterThan", func(t *testing.T) {
		products, err := repo.FindByPriceGreaterThan(ctx, 100)
		require.NoError(t, err)
		var ids []string
		for _, p := range products {
			ids = append(ids, p.ID)
			assert.Greater(t, p.Price, 100.0)
		}
		assert.Contains(t, ids, pricey.ID)
		assert.NotContains(t, ids, cheap.ID)
	})
}
