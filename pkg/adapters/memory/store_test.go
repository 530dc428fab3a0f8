package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/bpmgate/pkg/adapters/memory"
	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditStore_Contract(t *testing.T) {
	ports.RunAuditStoreContract(t, memory.NewAuditStore())
}

func TestUserRepository_Contract(t *testing.T) {
	ports.RunUserRepositoryContract(t, memory.NewUserRepository())
}

func TestProductRepository_Contract(t *testing.T) {
	ports.RunProductRepositoryContract(t, memory.NewProductRepository())
}

func TestNotificationChannel(t *testing.T) {
	ch := memory.NewNotificationChannel()
	assert.Equal(t, "memory", ch.Name())

	require.NoError(t, ch.Deliver(context.Background(), domain.Notification{Kind: domain.NotifyProcessStarted, ProcessInstanceID: "p1"}))
	sent := ch.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.NotifyProcessStarted, sent[0].Kind)

	sent[0].Kind = "tampered"
	assert.Equal(t, domain.NotifyProcessStarted, ch.Sent()[0].Kind)
}

func TestUserRepository_InvalidPattern(t *testing.T) {
	_, err := memory.NewUserRepository().FindByEmailPattern(context.Background(), "(")
	assert.Error(t, err)
}
