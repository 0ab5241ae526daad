// Package tenant provides tenant context propagation for multi-tenant
// document processing.
//
// Every store and vector operation in docpipe is scoped to a tenant. The
// helpers here follow a fail-closed model: a missing tenant is an error,
// never an implicit "all tenants" query.
package tenant

import (
	"context"
	"errors"
)

var (
	// ErrMissingTenant is returned when tenant info is missing from context.
	// This triggers "fail closed" behavior - no empty results, just errors.
	ErrMissingTenant = errors.New("tenant info missing from context")

	// ErrInvalidTenant is returned when a tenant identifier is invalid.
	ErrInvalidTenant = errors.New("invalid tenant identifier")
)

// contextKey is the context key for Info.
type contextKey struct{}

// Info holds tenant context for filtering and isolation.
type Info struct {
	// TenantID is the accounting organization identifier (required).
	TenantID string
}

// Validate checks that required fields are present.
func (t *Info) Validate() error {
	if t.TenantID == "" {
		return ErrInvalidTenant
	}
	return nil
}

// NewContext adds tenant Info to a context.
func NewContext(ctx context.Context, info *Info) context.Context {
	return context.WithValue(ctx, contextKey{}, info)
}

// FromContext extracts tenant Info from a context.
// Returns ErrMissingTenant if not present - fail closed.
func FromContext(ctx context.Context) (*Info, error) {
	val := ctx.Value(contextKey{})
	if val == nil {
		return nil, ErrMissingTenant
	}
	info, ok := val.(*Info)
	if !ok || info == nil {
		return nil, ErrMissingTenant
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return info, nil
}

// Metadata returns tenant info as a metadata map for stored rows.
func (t *Info) Metadata() map[string]interface{} {
	return map[string]interface{}{
		"tenant_id": t.TenantID,
	}
}
