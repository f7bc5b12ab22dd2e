// Package scenario loads scripted flow simulations from YAML.
//
// A scenario names a task request, one script of collaborator responses per
// role, and the answers to give at each stop point. `cadence simulate` drives
// a complete flow from one, and tests use them as fixtures.
package scenario

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/cadence/internal/collaborator"
	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/execution"
	"github.com/mrz1836/cadence/internal/flow"
)

// File is the YAML shape of a scenario.
type File struct {
	Name           string                   `yaml:"name"`
	Request        domain.TaskRequest       `yaml:"request"`
	CommitStrategy constants.CommitStrategy `yaml:"commit_strategy,omitempty"`
	Approvals      []Approval               `yaml:"approvals,omitempty"`
	Collaborators  map[domain.Role]Script   `yaml:"collaborators"`

	// ImpactReport answers breadth threshold pauses. Empty escalates them.
	ImpactReport string `yaml:"impact_report,omitempty"`

	// RootCause answers repeated-error pauses. Empty escalates them.
	RootCause string `yaml:"root_cause,omitempty"`
}

// Script is the ordered list of replies for one role.
type Script struct {
	RepeatLast bool                `yaml:"repeat_last,omitempty"`
	Steps      []collaborator.Step `yaml:"steps"`
}

// Approval answers the next stop point of a phase. Gates without a scripted
// answer are approved.
type Approval struct {
	Phase   string                    `yaml:"phase"`
	Outcome constants.ApprovalOutcome `yaml:"outcome"`
	Reason  string                    `yaml:"reason,omitempty"`
}

// Load reads and validates a scenario file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the command line
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s does not exist", cadenceerrors.ErrScenarioInvalid, path)
		}
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates scenario YAML. Unknown keys are rejected so a
// typo in a response field does not silently change the simulation.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %w", cadenceerrors.ErrScenarioInvalid, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the request, roles, strategy and approvals.
func (f *File) Validate() error {
	if err := f.Request.Validate(); err != nil {
		return fmt.Errorf("%w: request: %w", cadenceerrors.ErrScenarioInvalid, err)
	}
	if len(f.Collaborators) == 0 {
		return fmt.Errorf("%w: no collaborators scripted", cadenceerrors.ErrScenarioInvalid)
	}
	for _, role := range f.Roles() {
		if !role.IsValid() {
			return fmt.Errorf("%w: %w: %q", cadenceerrors.ErrScenarioInvalid, cadenceerrors.ErrUnknownRole, role)
		}
		if len(f.Collaborators[role].Steps) == 0 {
			return fmt.Errorf("%w: %s has no steps", cadenceerrors.ErrScenarioInvalid, role)
		}
	}
	if f.CommitStrategy != "" {
		known := false
		for _, s := range constants.CommitStrategies() {
			known = known || s == f.CommitStrategy
		}
		if !known {
			return fmt.Errorf("%w: %w: %q", cadenceerrors.ErrScenarioInvalid, cadenceerrors.ErrInvalidCommitStrategy, f.CommitStrategy)
		}
	}
	for i, a := range f.Approvals {
		if a.Phase == "" {
			return fmt.Errorf("%w: approval %d has no phase", cadenceerrors.ErrScenarioInvalid, i+1)
		}
		if a.Outcome != constants.ApprovalApproved && a.Outcome != constants.ApprovalRejected {
			return fmt.Errorf("%w: approval %d outcome %q", cadenceerrors.ErrScenarioInvalid, i+1, a.Outcome)
		}
	}
	return nil
}

// Roles returns the scripted roles in sorted order.
func (f *File) Roles() []domain.Role {
	roles := make([]domain.Role, 0, len(f.Collaborators))
	for role := range f.Collaborators {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// Registry builds a registry with one scripted collaborator per role. The
// scripted collaborators are returned too so callers can inspect calls.
func (f *File) Registry() (*collaborator.Registry, map[domain.Role]*collaborator.Scripted, error) {
	reg := collaborator.NewRegistry()
	scripts := make(map[domain.Role]*collaborator.Scripted, len(f.Collaborators))
	for _, role := range f.Roles() {
		script := f.Collaborators[role]
		var opts []collaborator.ScriptedOption
		if script.RepeatLast {
			opts = append(opts, collaborator.WithRepeatLast())
		}
		s := collaborator.NewScripted(role, script.Steps, opts...)
		if err := reg.Register(s); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", cadenceerrors.ErrScenarioInvalid, err)
		}
		scripts[role] = s
	}
	return reg, scripts, nil
}

// Approver returns an approver that answers gates from the scripted
// approvals, in order per phase.
func (f *File) Approver() *Approver {
	queue := make(map[string][]Approval)
	for _, a := range f.Approvals {
		queue[a.Phase] = append(queue[a.Phase], a)
	}
	return &Approver{queue: queue}
}

// ImpactReporter returns the scripted impact reporter, or nil when the
// scenario leaves breadth pauses to a human.
func (f *File) ImpactReporter() execution.ImpactReporter {
	if f.ImpactReport == "" {
		return nil
	}
	report := f.ImpactReport
	return execution.ImpactReporterFunc(func(_ context.Context, t domain.Task, _ domain.EscalationEvent) (string, error) {
		return fmt.Sprintf("%s: %s", t.ID, report), nil
	})
}

// RootCauseAnalyst returns the scripted analyst, or nil.
func (f *File) RootCauseAnalyst() execution.RootCauseAnalyst {
	if f.RootCause == "" {
		return nil
	}
	cause := f.RootCause
	return execution.RootCauseAnalystFunc(func(context.Context, domain.Task, domain.EscalationEvent) (string, error) {
		return cause, nil
	})
}

// Approver resolves stop points from a script.
type Approver struct {
	mu    sync.Mutex
	queue map[string][]Approval
	seen  []string
}

// Approve implements flow.Approver.
func (a *Approver) Approve(_ context.Context, pending *flow.PendingApproval) error {
	a.mu.Lock()
	a.seen = append(a.seen, pending.Phase)
	decision := domain.Approve()
	if q := a.queue[pending.Phase]; len(q) > 0 {
		next := q[0]
		a.queue[pending.Phase] = q[1:]
		if next.Outcome == constants.ApprovalRejected {
			decision = domain.Reject(next.Reason)
		}
	}
	a.mu.Unlock()
	return pending.Resolve(decision)
}

// Seen returns the phases whose gates were answered, in order.
func (a *Approver) Seen() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.seen...)
}
