package collaborator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

// Registry holds one collaborator per role.
type Registry struct {
	mu            sync.RWMutex
	collaborators map[domain.Role]Collaborator
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		collaborators: make(map[domain.Role]Collaborator),
	}
}

// Register adds a collaborator. Roles outside the closed set are rejected
// with ErrUnknownRole, and a second registration for the same role fails
// with ErrCollaboratorExists.
func (r *Registry) Register(c Collaborator) error {
	if c == nil {
		return fmt.Errorf("register collaborator: %w", cadenceerrors.ErrEmptyValue)
	}
	role := c.Role()
	if !role.IsValid() {
		return fmt.Errorf("%w: %q", cadenceerrors.ErrUnknownRole, role)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.collaborators[role]; exists {
		return fmt.Errorf("%w: %s", cadenceerrors.ErrCollaboratorExists, role)
	}
	r.collaborators[role] = c
	return nil
}

// MustRegister registers every collaborator and panics on the first error.
// Intended for wiring fixed sets at startup and in tests.
func (r *Registry) MustRegister(cs ...Collaborator) *Registry {
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
	return r
}

// Get retrieves the collaborator for a role.
// Returns ErrCollaboratorUnavailable if none is registered.
func (r *Registry) Get(role domain.Role) (Collaborator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.collaborators[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", cadenceerrors.ErrCollaboratorUnavailable, role)
	}
	return c, nil
}

// Has checks if a collaborator is registered for the role.
func (r *Registry) Has(role domain.Role) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.collaborators[role]
	return ok
}

// Roles returns the registered roles in sorted order.
func (r *Registry) Roles() []domain.Role {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roles := make([]domain.Role, 0, len(r.collaborators))
	for role := range r.collaborators {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}
