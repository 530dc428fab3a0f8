package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/bpmgate/pkg/adapters/memory"
	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/persistence/middleware"
	"github.com/aretw0/bpmgate/pkg/ports"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewAuditStore()
	store := middleware.NewPIIMiddleware([]string{"^assignee$", "reason"})(underlying)

	ctx := context.Background()
	record := domain.AuditRecord{
		ID:                "r-1",
		Kind:              domain.AuditTaskDeleted,
		ProcessInstanceID: "pi-1",
		TaskID:            "task-1",
		TaskName:          "Approve",
		Assignee:          "jdoe",
		Reason:            "jdoe left the company",
	}
	if err := store.Append(ctx, record); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	stored, err := underlying.List(ctx, "pi-1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 record, got %d", len(stored))
	}
	got := stored[0]
	if got.Assignee != middleware.Mask || got.Reason != middleware.Mask {
		t.Errorf("assignee and reason should be masked, got %q / %q", got.Assignee, got.Reason)
	}
	if got.TaskName != "Approve" || got.ID != "r-1" || got.Kind != domain.AuditTaskDeleted {
		t.Errorf("unmatched fields changed: %+v", got)
	}
	if record.Assignee != "jdoe" {
		t.Error("middleware modified the caller's record")
	}
}

func TestPIIMiddleware_ProtectedFields(t *testing.T) {
	underlying := memory.NewAuditStore()
	store := middleware.NewPIIMiddleware([]string{".*"})(underlying)

	ctx := context.Background()
	if err := store.Append(ctx, domain.AuditRecord{ID: "r-1", Kind: domain.AuditProcessStarted, ProcessInstanceID: "pi-1"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	stored, _ := underlying.List(ctx, "pi-1")
	if len(stored) != 1 || stored[0].ID != "r-1" || stored[0].Kind != domain.AuditProcessStarted {
		t.Errorf("identifying fields must never be masked: %+v", stored)
	}
}

func TestChain_Contract(t *testing.T) {
	ports.RunAuditStoreContract(t, middleware.Chain(memory.NewAuditStore(), middleware.NewPIIMiddleware([]string{"^secret$"})))
}
