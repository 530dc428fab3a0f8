// Package middleware wraps audit stores with masking and encryption of personal data.
package middleware

import "github.com/aretw0/bpmgate/pkg/ports"

// Middleware allows wrapping an AuditStore to add behavior.
type Middleware func(ports.AuditStore) ports.AuditStore

// Chain applies mws so that the first one sees records first.
func Chain(store ports.AuditStore, mws ...Middleware) ports.AuditStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
