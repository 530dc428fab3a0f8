package bpmgate_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/bpmgate"
	"github.com/aretw0/bpmgate/pkg/adapters/memory"
	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/ports"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// remoteEngine records the write-backs of event handling. Other methods are not used.
type remoteEngine struct {
	ports.ProcessEngine

	mu      sync.Mutex
	vars    map[string]domain.Variables
	updates map[string]domain.TaskUpdate
	ended   map[string]bool
}

func newRemoteEngine() *remoteEngine {
	return &remoteEngine{
		vars:    map[string]domain.Variables{},
		updates: map[string]domain.TaskUpdate{},
		ended:   map[string]bool{},
	}
}

func (r *remoteEngine) Variables(ctx context.Context, pid string) (domain.Variables, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vars[pid]
	if !ok {
		return nil, domain.ErrProcessInstanceNotFound
	}
	return v.Clone(), nil
}

func (r *remoteEngine) SetVariables(ctx context.Context, pid string, vars domain.Variables) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended[pid] {
		return domain.ErrProcessInstanceNotFound
	}
	if r.vars[pid] == nil {
		r.vars[pid] = domain.Variables{}
	}
	r.vars[pid].Merge(vars)
	return nil
}

func (r *remoteEngine) UpdateTask(ctx context.Context, taskID string, update domain.TaskUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates[taskID] = update
	return nil
}

func newRemoteGateway() (*bpmgate.Gateway, *remoteEngine, *memory.AuditStore, *clock.Mock) {
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC))
	engine := newRemoteEngine()
	store := memory.NewAuditStore()
	gw := bpmgate.New(
		bpmgate.WithEngine(engine),
		bpmgate.WithClock(mock),
		bpmgate.WithAuditStore(store),
		bpmgate.WithNotificationChannels(memory.NewNotificationChannel()),
	)
	return gw, engine, store, mock
}

func TestHandleTaskEvent_WritesBack(t *testing.T) {
	gw, engine, store, mock := newRemoteGateway()
	ctx := context.Background()

	changes, err := gw.HandleTaskEvent(ctx, bpmgate.TaskEventRequest{
		EventName: domain.TaskEventCreate,
		Task:      domain.Task{ID: "t1", Name: "Review", ProcessInstanceID: "p1"},
		Variables: domain.Variables{"department": "finance", "priority": "high"},
	})
	require.NoError(t, err)

	require.NotNil(t, changes.Assignee)
	assert.Equal(t, "finance.manager", *changes.Assignee)
	require.NotNil(t, changes.DueDate)
	assert.Equal(t, mock.Now().Add(24*time.Hour), *changes.DueDate)

	update := engine.updates["t1"]
	require.NotNil(t, update.Assignee)
	assert.Equal(t, "finance.manager", *update.Assignee)
	assert.Equal(t, "CREATED", engine.vars["p1"]["taskStatus"])

	records, err := store.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.AuditTaskCreated, records[0].Kind)
}

func TestHandleTaskEvent_CompletedTaskIsNotUpdated(t *testing.T) {
	gw, engine, _, _ := newRemoteGateway()

	_, err := gw.HandleTaskEvent(context.Background(), bpmgate.TaskEventRequest{
		EventName: domain.TaskEventComplete,
		Task:      domain.Task{ID: "t1", Name: "Review", Assignee: "bob", ProcessInstanceID: "p1"},
		Variables: domain.Variables{},
	})
	require.NoError(t, err)
	assert.Empty(t, engine.updates)
	assert.Equal(t, "COMPLETED", engine.vars["p1"]["taskStatus"])
}

func TestHandleExecutionEvent_ReadsVariablesFromEngine(t *testing.T) {
	gw, engine, _, mock := newRemoteGateway()
	ctx := context.Background()
	engine.vars["p1"] = domain.Variables{"rejectionCount": 2.0}

	changes, err := gw.HandleExecutionEvent(ctx, bpmgate.ExecutionEventRequest{
		EventName:         domain.ExecutionEventTake,
		ProcessInstanceID: "p1",
		ActivityID:        "decision",
		TransitionID:      "approvalRejected",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, changes.Variables["rejectionCount"])
	assert.Equal(t, 3, engine.vars["p1"]["rejectionCount"])

	_, err = gw.HandleExecutionEvent(ctx, bpmgate.ExecutionEventRequest{
		EventName:         domain.ExecutionEventStart,
		ProcessInstanceID: "p1",
		ActivityID:        "approvalTask",
	})
	require.NoError(t, err)
	assert.Equal(t, mock.Now().Add(72*time.Hour), engine.vars["p1"]["approvalDeadline"])
}

func TestHandleProcessInstanceEvent_EndedInstance(t *testing.T) {
	gw, engine, store, _ := newRemoteGateway()
	ctx := context.Background()
	engine.vars["p1"] = domain.Variables{}
	engine.ended["p1"] = true

	changes, err := gw.HandleProcessInstanceEvent(ctx, bpmgate.ProcessInstanceEventRequest{
		EventName:           domain.ProcessEventEnd,
		ProcessInstanceID:   "p1",
		ProcessDefinitionID: "invoice:1:abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", changes.Variables["processStatus"])

	records, err := store.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "invoice", records[0].ProcessDefinitionKey)
}

func TestHandleEvent_Unknown(t *testing.T) {
	gw, _, _, _ := newRemoteGateway()
	_, err := gw.HandleTaskEvent(context.Background(), bpmgate.TaskEventRequest{
		EventName: "timeout",
		Task:      domain.Task{ID: "t1", ProcessInstanceID: "p1"},
	})
	assert.ErrorIs(t, err, domain.ErrUnknownEvent)
}

func TestHandleEvent_SerialisedPerInstance(t *testing.T) {
	gw, engine, _, _ := newRemoteGateway()
	ctx := context.Background()
	engine.vars["p1"] = domain.Variables{}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gw.HandleExecutionEvent(ctx, bpmgate.ExecutionEventRequest{
				EventName:         domain.ExecutionEventTake,
				ProcessInstanceID: "p1",
				ActivityID:        "decision",
				TransitionID:      "approvalRejected",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, engine.vars["p1"]["rejectionCount"])
}
