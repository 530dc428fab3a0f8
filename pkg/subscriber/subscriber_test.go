package subscriber_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/bpmgate/pkg/adapters/memory"
	"github.com/aretw0/bpmgate/pkg/audit"
	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/notification"
	"github.com/aretw0/bpmgate/pkg/observability"
	"github.com/aretw0/bpmgate/pkg/ports"
	"github.com/aretw0/bpmgate/pkg/subscriber"
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	sub     *subscriber.Subscriber
	clock   *clock.Mock
	store   *memory.AuditStore
	sent    *memory.NotificationChannel
	metrics *observability.Metrics
}

func newFixture() *fixture {
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC))
	store := memory.NewAuditStore()
	sent := memory.NewNotificationChannel()
	metrics := observability.NewMetrics()
	sub := subscriber.New(
		audit.NewService(store, audit.WithClock(mock)),
		notification.NewService([]ports.NotificationChannel{sent}, notification.WithClock(mock)),
		subscriber.WithClock(mock),
		subscriber.WithMetrics(metrics),
	)
	return &fixture{sub: sub, clock: mock, store: store, sent: sent, metrics: metrics}
}

func (f *fixture) trail(t *testing.T, pid string) []domain.AuditRecord {
	t.Helper()
	records, err := f.store.List(context.Background(), pid)
	require.NoError(t, err)
	return records
}

func taskEvent(name string, snap *domain.TaskSnapshot, at time.Time) *domain.TaskEvent {
	return domain.NewTaskEvent(name, snap, at)
}

func TestTaskCreate_HighPriorityAndDepartment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, priority := range []string{"high", "important"} {
		snap := domain.NewTaskSnapshot(domain.Task{ID: "t1", Name: "Review", ProcessInstanceID: "p1"}, "",
			domain.Variables{"priority": priority, "department": "Finance"})

		require.NoError(t, f.sub.HandleTaskEvent(ctx, taskEvent(domain.TaskEventCreate, snap, f.clock.Now())))

		changes := snap.Changes()
		require.NotNil(t, changes.DueDate, priority)
		assert.Equal(t, f.clock.Now().Add(24*time.Hour), *changes.DueDate)
		require.NotNil(t, changes.Assignee)
		assert.Equal(t, "finance.manager", *changes.Assignee)
		assert.Equal(t, f.clock.Now(), changes.Variables["createdDate"])
		assert.Equal(t, "CREATED", changes.Variables["taskStatus"])
	}

	records := f.trail(t, "p1")
	require.Len(t, records, 2)
	assert.Equal(t, domain.AuditTaskCreated, records[0].Kind)
	assert.Equal(t, "Review", records[0].TaskName)
	expected := `
# HELP bpmgate_events_dispatched_total Lifecycle events dispatched to the subscriber
# TYPE bpmgate_events_dispatched_total counter
bpmgate_events_dispatched_total{event="create",family="task",outcome="handled"} 2
`
	require.NoError(t, testutil.GatherAndCompare(f.metrics.Registry, strings.NewReader(expected), "bpmgate_events_dispatched_total"))
}

func TestTaskCreate_KeepsExistingDueDateAndAssignee(t *testing.T) {
	f := newFixture()
	due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := domain.NewTaskSnapshot(domain.Task{ID: "t1", Assignee: "alice", DueDate: &due, ProcessInstanceID: "p1"}, "",
		domain.Variables{"priority": "high", "department": "hr"})

	require.NoError(t, f.sub.HandleTaskEvent(context.Background(), taskEvent(domain.TaskEventCreate, snap, f.clock.Now())))

	changes := snap.Changes()
	assert.Nil(t, changes.DueDate)
	assert.Nil(t, changes.Assignee)
}

func TestTaskCreate_LowPriorityNoDepartment(t *testing.T) {
	f := newFixture()
	snap := domain.NewTaskSnapshot(domain.Task{ID: "t1", ProcessInstanceID: "p1"}, "", domain.Variables{"priority": "low"})

	require.NoError(t, f.sub.HandleTaskEvent(context.Background(), taskEvent(domain.TaskEventCreate, snap, f.clock.Now())))

	changes := snap.Changes()
	assert.Nil(t, changes.DueDate)
	assert.Nil(t, changes.Assignee)
	assert.Equal(t, "CREATED", changes.Variables["taskStatus"])
}

func TestDefaultAssignee(t *testing.T) {
	assert.Equal(t, "hr.manager", subscriber.DefaultAssignee("HR"))
	assert.Equal(t, "finance.manager", subscriber.DefaultAssignee("finance"))
	assert.Equal(t, "it.manager", subscriber.DefaultAssignee("It"))
	assert.Equal(t, "legal.manager", subscriber.DefaultAssignee("legal"))
	assert.Equal(t, "default.manager", subscriber.DefaultAssignee("marketing"))
}

func TestTaskAssignment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	empty := domain.NewTaskSnapshot(domain.Task{ID: "t1", ProcessInstanceID: "p1"}, "", nil)
	require.NoError(t, f.sub.HandleTaskEvent(ctx, taskEvent(domain.TaskEventAssignment, empty, f.clock.Now())))
	assert.True(t, empty.Changes().IsEmpty())
	assert.Empty(t, f.sent.Sent())

	snap := domain.NewTaskSnapshot(domain.Task{ID: "t1", Name: "Review", Assignee: "bob", ProcessInstanceID: "p1"}, "", nil)
	require.NoError(t, f.sub.HandleTaskEvent(ctx, taskEvent(domain.TaskEventAssignment, snap, f.clock.Now())))

	vars := snap.Changes().Variables
	assert.Equal(t, f.clock.Now(), vars["assignedDate"])
	assert.Equal(t, "system", vars["assignedBy"])
	assert.Equal(t, "ASSIGNED", vars["taskStatus"])

	sent := f.sent.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.NotifyTaskAssigned, sent[0].Kind)
	assert.Equal(t, "bob", sent[0].Recipient)

	records := f.trail(t, "p1")
	require.Len(t, records, 1)
	assert.Equal(t, "bob", records[0].Assignee)
}

func TestTaskComplete(t *testing.T) {
	f := newFixture()
	assigned := f.clock.Now().Add(-5*time.Hour - 30*time.Minute)
	snap := domain.NewTaskSnapshot(domain.Task{ID: "t1", Name: "Review", Assignee: "bob", ProcessInstanceID: "p1"}, "",
		domain.Variables{"assignedDate": assigned, "processOwner": "owner"})

	require.NoError(t, f.sub.HandleTaskEvent(context.Background(), taskEvent(domain.TaskEventComplete, snap, f.clock.Now())))

	vars := snap.Changes().Variables
	assert.Equal(t, int64(5), vars["taskDurationHours"])
	assert.Equal(t, "COMPLETED", vars["taskStatus"])
	assert.Equal(t, f.clock.Now(), vars["completedDate"])

	sent := f.sent.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.NotifyTaskCompleted, sent[0].Kind)
	assert.Equal(t, "owner", sent[0].Recipient)
}

func TestTaskComplete_AssignedDateFromJSON(t *testing.T) {
	f := newFixture()
	assigned := f.clock.Now().Add(-2 * time.Hour).Format("2006-01-02T15:04:05.000-0700")
	snap := domain.NewTaskSnapshot(domain.Task{ID: "t1", ProcessInstanceID: "p1"}, "", domain.Variables{"assignedDate": assigned})

	require.NoError(t, f.sub.HandleTaskEvent(context.Background(), taskEvent(domain.TaskEventComplete, snap, f.clock.Now())))

	assert.Equal(t, int64(2), snap.Changes().Variables["taskDurationHours"])
	assert.Empty(t, f.sent.Sent(), "no process owner, no notification")
}

func TestTaskDelete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	done := domain.NewTaskSnapshot(domain.Task{ID: "t1", Assignee: "bob", ProcessInstanceID: "p1"}, "completed", nil)
	require.NoError(t, f.sub.HandleTaskEvent(ctx, taskEvent(domain.TaskEventDelete, done, f.clock.Now())))
	assert.Empty(t, f.sent.Sent())

	unassigned := domain.NewTaskSnapshot(domain.Task{ID: "t2", ProcessInstanceID: "p1"}, "withdrawn", nil)
	require.NoError(t, f.sub.HandleTaskEvent(ctx, taskEvent(domain.TaskEventDelete, unassigned, f.clock.Now())))
	assert.Empty(t, f.sent.Sent())

	cancelled := domain.NewTaskSnapshot(domain.Task{ID: "t3", Name: "Sign", Assignee: "bob", ProcessInstanceID: "p1"}, "withdrawn", nil)
	require.NoError(t, f.sub.HandleTaskEvent(ctx, taskEvent(domain.TaskEventDelete, cancelled, f.clock.Now())))
	sent := f.sent.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.NotifyTaskCancelled, sent[0].Kind)
	assert.Equal(t, "withdrawn", sent[0].Reason)

	records := f.trail(t, "p1")
	require.Len(t, records, 3)
	assert.Equal(t, "completed", records[0].Reason)
}

func execEvent(name string, snap *domain.ExecutionSnapshot, at time.Time) *domain.ExecutionEvent {
	return domain.NewExecutionEvent(name, snap, at)
}

func TestExecutionStart_SpecialActivities(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := f.clock.Now()

	approval := domain.NewExecutionSnapshot("p1", "approval:1:x", "approvalTask", "Approve", "", nil)
	require.NoError(t, f.sub.HandleExecutionEvent(ctx, execEvent(domain.ExecutionEventStart, approval, now)))
	vars := approval.Changes().Variables
	assert.Equal(t, now, vars["approvalTask_startTime"])
	assert.Equal(t, now.Add(72*time.Hour), vars["approvalDeadline"])
	assert.Equal(t, 1, vars["approvalLevel"])
	assert.Equal(t, true, vars["approvalStarted"])

	review := domain.NewExecutionSnapshot("p1", "approval:1:x", "reviewTask", "Review", "", nil)
	require.NoError(t, f.sub.HandleExecutionEvent(ctx, execEvent(domain.ExecutionEventStart, review, now)))
	vars = review.Changes().Variables
	assert.Equal(t, true, vars["reviewStarted"])
	assert.Equal(t, 0, vars["reviewerCount"])
	assert.Equal(t, now.Add(48*time.Hour), vars["reviewDeadline"])

	notify := domain.NewExecutionSnapshot("p1", "approval:1:x", "notificationTask", "", "", nil)
	require.NoError(t, f.sub.HandleExecutionEvent(ctx, execEvent(domain.ExecutionEventStart, notify, now)))
	vars = notify.Changes().Variables
	assert.Equal(t, false, vars["notificationSent"])
	assert.Equal(t, 0, vars["notificationAttempts"])

	plain := domain.NewExecutionSnapshot("p1", "approval:1:x", "archive", "", "", nil)
	require.NoError(t, f.sub.HandleExecutionEvent(ctx, execEvent(domain.ExecutionEventStart, plain, now)))
	assert.Equal(t, domain.Variables{"archive_startTime": now}, plain.Changes().Variables)

	assert.Len(t, f.trail(t, "p1"), 4)
}

func TestExecution_IgnoredWithoutActivity(t *testing.T) {
	f := newFixture()
	snap := domain.NewExecutionSnapshot("p1", "approval:1:x", "", "", "", nil)

	require.NoError(t, f.sub.HandleExecutionEvent(context.Background(), execEvent(domain.ExecutionEventStart, snap, f.clock.Now())))

	assert.True(t, snap.Changes().IsEmpty())
	assert.Empty(t, f.trail(t, "p1"))
}

func TestExecutionEnd_DurationAndApproval(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	started := f.clock.Now().Add(-1500 * time.Millisecond)

	approved := domain.NewExecutionSnapshot("p1", "approval:1:x", "approvalTask", "Approve", "",
		domain.Variables{"approvalTask_startTime": started, "approved": true, "approver": "carol"})
	require.NoError(t, f.sub.HandleExecutionEvent(ctx, execEvent(domain.ExecutionEventEnd, approved, f.clock.Now())))
	vars := approved.Changes().Variables
	assert.Equal(t, int64(1500), vars["approvalTask_duration"])
	assert.Equal(t, f.clock.Now(), vars["finalApprovalDate"])

	rejected := domain.NewExecutionSnapshot("p2", "approval:1:x", "approvalTask", "Approve", "",
		domain.Variables{"approver": "dave"})
	require.NoError(t, f.sub.HandleExecutionEvent(ctx, execEvent(domain.ExecutionEventEnd, rejected, f.clock.Now())))
	assert.NotContains(t, rejected.Changes().Variables, "finalApprovalDate")
	assert.NotContains(t, rejected.Changes().Variables, "approvalTask_duration")

	sent := f.sent.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, domain.NotifyFinalApproval, sent[0].Kind)
	assert.Equal(t, "carol", sent[0].Approver)
	assert.Equal(t, domain.NotifyRejection, sent[1].Kind)
	assert.Equal(t, "dave", sent[1].Approver)
}

func TestExecutionTake(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, tc := range []struct {
		existing any
		want     int
	}{
		{nil, 1},
		{2, 3},
		{float64(4), 5},
		{json.Number("6"), 7},
	} {
		vars := domain.Variables{}
		if tc.existing != nil {
			vars["rejectionCount"] = tc.existing
		}
		snap := domain.NewExecutionSnapshot("p1", "approval:1:x", "decision", "", "approvalRejected", vars)
		require.NoError(t, f.sub.HandleExecutionEvent(ctx, execEvent(domain.ExecutionEventTake, snap, f.clock.Now())))
		assert.Equal(t, tc.want, snap.Changes().Variables["rejectionCount"])
	}

	approved := domain.NewExecutionSnapshot("p1", "approval:1:x", "decision", "", "approvalApproved", nil)
	require.NoError(t, f.sub.HandleExecutionEvent(ctx, execEvent(domain.ExecutionEventTake, approved, f.clock.Now())))
	assert.Equal(t, f.clock.Now(), approved.Changes().Variables["approvalDate"])

	records := f.trail(t, "p1")
	require.Len(t, records, 5)
	assert.Equal(t, "approvalApproved", records[4].TransitionID)
}

func TestProcessLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	start := domain.NewExecutionSnapshot("p1", "invoice:3:abc", "start", "", "", nil)
	require.NoError(t, f.sub.HandleProcessInstanceEvent(ctx, domain.NewProcessInstanceEvent(domain.ProcessEventStart, "", start, f.clock.Now())))
	vars := start.Changes().Variables
	assert.Equal(t, "RUNNING", vars["processStatus"])
	assert.Equal(t, 0, vars["rejectionCount"])
	assert.Equal(t, f.clock.Now(), vars["processStartTime"])

	f.clock.Add(3 * time.Second)
	end := domain.NewExecutionSnapshot("p1", "invoice:3:abc", "end", "", "", vars)
	require.NoError(t, f.sub.HandleProcessInstanceEvent(ctx, domain.NewProcessInstanceEvent(domain.ProcessEventEnd, "", end, f.clock.Now())))
	endVars := end.Changes().Variables
	assert.Equal(t, int64(3000), endVars["processDuration"])
	assert.Equal(t, "COMPLETED", endVars["processStatus"])
	assert.Equal(t, f.clock.Now(), endVars["processEndTime"])

	records := f.trail(t, "p1")
	require.Len(t, records, 2)
	assert.Equal(t, "invoice", records[0].ProcessDefinitionKey, "key derived from definition id")
	assert.Equal(t, domain.AuditProcessEnded, records[1].Kind)

	sent := f.sent.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, domain.NotifyProcessStarted, sent[0].Kind)
	assert.Equal(t, "invoice", sent[0].ProcessDefinitionKey)
	assert.Equal(t, domain.NotifyProcessEnded, sent[1].Kind)
}

func TestUnknownEvent(t *testing.T) {
	f := newFixture()
	snap := domain.NewTaskSnapshot(domain.Task{ID: "t1"}, "", nil)

	err := f.sub.HandleTaskEvent(context.Background(), taskEvent("timeout", snap, f.clock.Now()))
	assert.ErrorIs(t, err, domain.ErrUnknownEvent)

	exec := domain.NewExecutionSnapshot("p1", "x:1:y", "a", "", "", nil)
	err = f.sub.HandleExecutionEvent(context.Background(), execEvent("suspend", exec, f.clock.Now()))
	assert.ErrorIs(t, err, domain.ErrUnknownEvent)

	err = f.sub.HandleProcessInstanceEvent(context.Background(), domain.NewProcessInstanceEvent("migrate", "", exec, f.clock.Now()))
	assert.ErrorIs(t, err, domain.ErrUnknownEvent)
}

func TestHooks_DriveMemoryEngine(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	engine := memory.NewEngine(memory.WithEngineClock(f.clock))
	engine.SetLifecycleHooks(f.sub.Hooks())

	dep, err := engine.Deploy(ctx, domain.DeploymentRequest{BPMN: []byte(ports.ContractBPMN)})
	require.NoError(t, err)
	inst, err := engine.StartProcessInstance(ctx, dep.ProcessDefinitions[0].ID, "", domain.Variables{"department": "legal"})
	require.NoError(t, err)

	tasks, err := engine.ActiveTasks(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "legal.manager", tasks[0].Assignee)

	vars, err := engine.Variables(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", vars["processStatus"])
	assert.Equal(t, "ASSIGNED", vars["taskStatus"], "auto-assignment on create fires the assignment event")
	assert.Equal(t, "system", vars["assignedBy"])
	assert.Contains(t, vars, "reviewTask_startTime")
}
