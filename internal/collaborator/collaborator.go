// Package collaborator defines the external capabilities a flow invokes.
//
// A collaborator is opaque: it receives an Invocation and returns a
// StructuredResponse. Roles come from the closed set in the domain package,
// so an unknown collaborator is rejected at registration instead of failing
// at dispatch.
package collaborator

import (
	"context"

	"github.com/mrz1836/cadence/internal/domain"
)

// Collaborator is one external role capable of handling invocations.
type Collaborator interface {
	// Role returns the role this collaborator fills.
	Role() domain.Role

	// Invoke runs the collaborator. Implementations must honor ctx cancellation.
	Invoke(ctx context.Context, inv domain.Invocation) (domain.StructuredResponse, error)
}

// InvokeFunc is the function signature wrapped by Func.
type InvokeFunc func(ctx context.Context, inv domain.Invocation) (domain.StructuredResponse, error)

// Func adapts a plain function to the Collaborator interface.
type Func struct {
	role domain.Role
	fn   InvokeFunc
}

// NewFunc creates a collaborator for role backed by fn.
func NewFunc(role domain.Role, fn InvokeFunc) *Func {
	return &Func{role: role, fn: fn}
}

// Role implements Collaborator.
func (f *Func) Role() domain.Role {
	return f.role
}

// Invoke implements Collaborator.
func (f *Func) Invoke(ctx context.Context, inv domain.Invocation) (domain.StructuredResponse, error) {
	return f.fn(ctx, inv)
}
