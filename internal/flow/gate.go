package flow

import (
	"context"
	"sync"
	"time"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

// PendingApproval is a stop point waiting for a human decision.
// Wait blocks until Resolve is called or the context ends; there is no
// timeout-based resume and no polling.
type PendingApproval struct {
	FlowID      string
	Phase       string
	Gate        constants.GateKind
	ArtifactRef string
	RequestedAt time.Time

	once     sync.Once
	done     chan struct{}
	decision domain.ApprovalDecision
}

// RequestApproval opens a pending approval for phase.
func RequestApproval(flowID string, phase Phase, artifactRef string) *PendingApproval {
	return &PendingApproval{
		FlowID:      flowID,
		Phase:       phase.Name,
		Gate:        phase.Gate,
		ArtifactRef: artifactRef,
		RequestedAt: time.Now().UTC(),
		done:        make(chan struct{}),
	}
}

// Resolve records the decision and wakes every waiter. Only the first call
// takes effect; later calls return ErrApprovalResolved.
func (p *PendingApproval) Resolve(decision domain.ApprovalDecision) error {
	resolved := false
	p.once.Do(func() {
		if decision.DecidedAt.IsZero() {
			decision.DecidedAt = time.Now().UTC()
		}
		p.decision = decision
		close(p.done)
		resolved = true
	})
	if !resolved {
		return cadenceerrors.ErrApprovalResolved
	}
	return nil
}

// Wait blocks until the approval is resolved or ctx is done.
func (p *PendingApproval) Wait(ctx context.Context) (domain.ApprovalDecision, error) {
	select {
	case <-p.done:
		return p.decision, nil
	case <-ctx.Done():
		return domain.ApprovalDecision{}, ctx.Err()
	}
}

// Done is closed once the approval is resolved.
func (p *PendingApproval) Done() <-chan struct{} {
	return p.done
}

// IsBatch reports whether this is the final batch approval.
func (p *PendingApproval) IsBatch() bool {
	return p.Gate == constants.GateBatch
}

// Approver obtains a decision for a pending approval. Implementations either
// resolve it before returning (interactive prompts) or hand it to something
// that resolves it later (channels, remote reviewers).
type Approver interface {
	Approve(ctx context.Context, pending *PendingApproval) error
}

// ApproverFunc adapts a function to the Approver interface.
type ApproverFunc func(ctx context.Context, pending *PendingApproval) error

// Approve implements Approver.
func (f ApproverFunc) Approve(ctx context.Context, pending *PendingApproval) error {
	return f(ctx, pending)
}

// AutoApprover approves every gate. Used for unattended dry runs.
type AutoApprover struct{}

// Approve implements Approver.
func (AutoApprover) Approve(_ context.Context, pending *PendingApproval) error {
	return pending.Resolve(domain.Approve())
}

// ChannelApprover publishes pending approvals on a channel for an external
// party to resolve.
type ChannelApprover struct {
	pending chan *PendingApproval
}

// NewChannelApprover creates a channel approver with the given buffer size.
func NewChannelApprover(buffer int) *ChannelApprover {
	return &ChannelApprover{pending: make(chan *PendingApproval, buffer)}
}

// Approve implements Approver.
func (c *ChannelApprover) Approve(ctx context.Context, pending *PendingApproval) error {
	select {
	case c.pending <- pending:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the channel approvals are published on.
func (c *ChannelApprover) Pending() <-chan *PendingApproval {
	return c.pending
}
