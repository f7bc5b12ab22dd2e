package collaborator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

// Step is one scripted reply. When Fail is set the invocation returns an
// error with that message instead of the response.
type Step struct {
	Response domain.StructuredResponse `yaml:",inline"`
	Fail     string                    `yaml:"fail,omitempty"`
}

// Scripted replays a fixed list of replies in order. It backs dry-run
// simulations and tests. Safe for concurrent use.
type Scripted struct {
	role   domain.Role
	repeat bool

	mu    sync.Mutex
	steps []Step
	next  int
	calls []domain.Invocation
}

// ScriptedOption configures a Scripted collaborator.
type ScriptedOption func(*Scripted)

// WithRepeatLast keeps returning the final step once the script runs out.
func WithRepeatLast() ScriptedOption {
	return func(s *Scripted) {
		s.repeat = true
	}
}

// NewScripted creates a scripted collaborator for role.
func NewScripted(role domain.Role, steps []Step, opts ...ScriptedOption) *Scripted {
	s := &Scripted{role: role, steps: append([]Step(nil), steps...)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Respond is shorthand for a scripted collaborator that only returns responses.
func Respond(role domain.Role, responses ...domain.StructuredResponse) *Scripted {
	steps := make([]Step, len(responses))
	for i, r := range responses {
		steps[i] = Step{Response: r}
	}
	return NewScripted(role, steps)
}

// Role implements Collaborator.
func (s *Scripted) Role() domain.Role {
	return s.role
}

// Invoke implements Collaborator.
func (s *Scripted) Invoke(ctx context.Context, inv domain.Invocation) (domain.StructuredResponse, error) {
	select {
	case <-ctx.Done():
		return domain.StructuredResponse{}, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, inv)

	if s.next >= len(s.steps) {
		if !s.repeat || len(s.steps) == 0 {
			return domain.StructuredResponse{}, fmt.Errorf("%w: %s after %d calls",
				cadenceerrors.ErrScriptExhausted, s.role, len(s.calls)-1)
		}
		s.next = len(s.steps) - 1
	}

	step := s.steps[s.next]
	s.next++
	if step.Fail != "" {
		return domain.StructuredResponse{}, errors.New(step.Fail) //nolint:err113 // scripted failure text is data
	}
	return step.Response, nil
}

// Calls returns the invocations received so far.
func (s *Scripted) Calls() []domain.Invocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Invocation(nil), s.calls...)
}

// Remaining returns how many scripted steps were not consumed.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return max(len(s.steps)-s.next, 0)
}
