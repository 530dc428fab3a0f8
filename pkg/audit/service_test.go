package audit_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/bpmgate/internal/logging"
	"github.com/aretw0/bpmgate/pkg/adapters/memory"
	"github.com/aretw0/bpmgate/pkg/audit"
	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct{}

func (brokenStore) Append(context.Context, domain.AuditRecord) error { return errors.New("disk full") }
func (brokenStore) List(context.Context, string) ([]domain.AuditRecord, error) {
	return nil, errors.New("disk full")
}

func TestService_WritesTrail(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC))
	var buf bytes.Buffer
	svc := audit.NewService(memory.NewAuditStore(), audit.WithClock(mock), audit.WithLogger(logging.NewWithWriter(&buf, slog.LevelInfo)))

	require.NoError(t, svc.LogProcessStart(ctx, "p1", "invoice"))
	require.NoError(t, svc.LogActivityStart(ctx, "p1", "approvalTask", "Approve"))
	require.NoError(t, svc.LogTaskCreation(ctx, "p1", "t1", "Approve"))
	require.NoError(t, svc.LogTaskAssignment(ctx, "p1", "t1", "bob"))
	require.NoError(t, svc.LogTaskCompletion(ctx, "p1", "t1", "bob"))
	require.NoError(t, svc.LogActivityEnd(ctx, "p1", "approvalTask", "Approve"))
	require.NoError(t, svc.LogSequenceFlowTaken(ctx, "p1", "approvalApproved"))
	require.NoError(t, svc.LogTaskDeletion(ctx, "p2", "t9", "cancelled"))
	require.NoError(t, svc.LogProcessEnd(ctx, "p1", "invoice"))

	trail, err := svc.Trail(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, trail, 8)

	kinds := make([]domain.AuditKind, len(trail))
	for i, r := range trail {
		kinds[i] = r.Kind
		assert.NotEmpty(t, r.ID)
		assert.True(t, mock.Now().Equal(r.Timestamp))
	}
	assert.Equal(t, []domain.AuditKind{
		domain.AuditProcessStarted,
		domain.AuditActivityStarted,
		domain.AuditTaskCreated,
		domain.AuditTaskAssigned,
		domain.AuditTaskCompleted,
		domain.AuditActivityEnded,
		domain.AuditSequenceFlowTaken,
		domain.AuditProcessEnded,
	}, kinds)
	assert.Equal(t, "bob", trail[3].Assignee)
	assert.Equal(t, "approvalApproved", trail[6].TransitionID)

	other, err := svc.Trail(ctx, "p2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "cancelled", other[0].Reason)

	assert.Contains(t, buf.String(), "AUDIT: task_created")
	assert.Contains(t, buf.String(), "task_name=Approve")
}

func TestService_StoreFailure(t *testing.T) {
	svc := audit.NewService(brokenStore{})
	err := svc.LogProcessStart(context.Background(), "p1", "invoice")
	assert.ErrorContains(t, err, "disk full")
}

func TestService_NoStore(t *testing.T) {
	svc := audit.NewService(nil)
	require.NoError(t, svc.LogProcessStart(context.Background(), "p1", "invoice"))
	trail, err := svc.Trail(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, trail)
}
