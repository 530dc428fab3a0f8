package ports

import (
	"context"

	"github.com/aretw0/bpmgate/pkg/domain"
)

// AuditStore persists audit records.
type AuditStore interface {
	// Append stores a record. The record ID is assigned by the caller.
	Append(ctx context.Context, record domain.AuditRecord) error

	// List returns the records of a process instance in insertion order.
	// An unknown instance yields an empty slice, not an error.
	List(ctx context.Context, processInstanceID string) ([]domain.AuditRecord, error)
}

// NotificationChannel delivers notifications to one medium.
type NotificationChannel interface {
	// Name identifies the channel in logs and metrics.
	Name() string
	Deliver(ctx context.Context, n domain.Notification) error
}

// UserRepository stores users on the primary datasource.
type UserRepository interface {
	Save(ctx context.Context, user domain.User) (domain.User, error)
	FindByID(ctx context.Context, id string) (domain.User, error)
	FindByName(ctx context.Context, name string) ([]domain.User, error)
	// FindByEmailPattern matches emails against a regular expression.
	FindByEmailPattern(ctx context.Context, pattern string) ([]domain.User, error)
}

// ProductRepository stores products on the secondary datasource.
type ProductRepository interface {
	Save(ctx context.Context, product domain.Product) (domain.Product, error)
	FindByID(ctx context.Context, id string) (domain.Product, error)
	FindByPriceGreaterThan(ctx context.Context, price float64) ([]domain.Product, error)
}
