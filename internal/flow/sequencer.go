package flow

import (
	"fmt"
	"strings"
	"time"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

// Halt is the Next value of a Decision that ends the phase list.
const Halt = -1

// Decision describes what the sequencer did with a response.
type Decision struct {
	// Next is the phase index to run next, or Halt.
	Next int

	// GateReached is set when the phase is a stop point awaiting approval.
	// The phase index does not move until ResumeAfterApproval approves.
	GateReached bool

	// Revision is set when the flow looped back to a producing phase.
	Revision bool

	// Escalation is set when the flow must stop for a human.
	Escalation *domain.EscalationEvent
}

// Halted reports whether the phase list is exhausted.
func (d Decision) Halted() bool {
	return d.Next == Halt
}

// Sequencer walks a fixed phase list.
type Sequencer struct {
	phases       []Phase
	maxRevisions int
}

// SequencerOption configures a Sequencer.
type SequencerOption func(*Sequencer)

// WithMaxRevisions sets how many revision loops a phase may request before
// the flow escalates.
func WithMaxRevisions(n int) SequencerOption {
	return func(s *Sequencer) {
		s.maxRevisions = n
	}
}

// NewSequencer validates phases and builds a sequencer.
func NewSequencer(phases []Phase, opts ...SequencerOption) (*Sequencer, error) {
	if err := ValidatePhases(phases); err != nil {
		return nil, err
	}
	s := &Sequencer{
		phases:       append([]Phase(nil), phases...),
		maxRevisions: constants.MaxReviewIterations,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ForFlow builds a sequencer for the flow's variant.
func ForFlow(f domain.FlowInstance, opts ...SequencerOption) (*Sequencer, error) {
	phases, err := PhasesFor(f.Variant)
	if err != nil {
		return nil, err
	}
	return NewSequencer(phases, opts...)
}

// Phases returns a copy of the phase list.
func (s *Sequencer) Phases() []Phase {
	return append([]Phase(nil), s.phases...)
}

// MaxRevisions returns the revision bound.
func (s *Sequencer) MaxRevisions() int {
	return s.maxRevisions
}

// Current returns the phase at the flow's index.
func (s *Sequencer) Current(f domain.FlowInstance) (Phase, error) {
	if f.Halted {
		return Phase{}, cadenceerrors.ErrFlowHalted
	}
	if f.PhaseIndex < 0 || f.PhaseIndex >= len(s.phases) {
		return Phase{}, fmt.Errorf("%w: phase index %d out of range", cadenceerrors.ErrInvalidTransition, f.PhaseIndex)
	}
	return s.phases[f.PhaseIndex], nil
}

// Skipped names every phase whose guard excludes it from f.
func (s *Sequencer) Skipped(f domain.FlowInstance) []string {
	var names []string
	for _, p := range s.phases {
		if !p.Active(f) {
			names = append(names, p.Name)
		}
	}
	return names
}

// Active returns the phases that run for f, in order.
func (s *Sequencer) Active(f domain.FlowInstance) []Phase {
	var out []Phase
	for _, p := range s.phases {
		if p.Active(f) {
			out = append(out, p)
		}
	}
	return out
}

// Start returns f positioned at the first active phase.
func (s *Sequencer) Start(f domain.FlowInstance) domain.FlowInstance {
	next := f.Clone()
	next.PhaseIndex = s.nextActive(f, -1)
	next.PendingGate = ""
	next.Halted = next.PhaseIndex == Halt
	return next
}

// Advance applies a collaborator response to the current phase.
//
//   - escalation_needed and blocked stop the flow with an escalation.
//   - needs_revision loops back to the producing phase, bounded by MaxRevisions.
//   - approval at a stop point sets the pending gate and keeps the index.
//   - any other completion moves to the next active phase, or halts.
func (s *Sequencer) Advance(f domain.FlowInstance, resp domain.StructuredResponse) (domain.FlowInstance, Decision, error) {
	phase, err := s.Current(f)
	if err != nil {
		return f, Decision{}, err
	}
	if f.PendingGate != "" {
		return f, Decision{}, fmt.Errorf("%w: %s", cadenceerrors.ErrGatePending, f.PendingGate)
	}

	next := f.Clone()
	outcome := resp.Outcome()
	next.History = append(next.History, domain.PhaseRecord{
		Phase:      phase.Name,
		Role:       phase.Role,
		Outcome:    outcome,
		Iteration:  f.RevisionCount(s.counterKey(phase)),
		Response:   resp,
		RecordedAt: time.Now().UTC(),
	})
	next.UpdatedAt = time.Now().UTC()
	if resp.ArtifactPath != "" && !contains(next.Artifacts, resp.ArtifactPath) {
		next.Artifacts = append(next.Artifacts, resp.ArtifactPath)
	}
	if phase.Gate == constants.GateBatch && len(resp.Tasks) > 0 {
		next.Plan = append([]domain.PlannedTask(nil), resp.Tasks...)
	}

	switch outcome {
	case constants.ResponseEscalationNeeded:
		ev := s.escalation(next, phase, constants.EscalationExplicit,
			fmt.Sprintf("%s requested escalation", phase.Role), responseWhy(resp),
			orDefault(resp.NextStep, "Decide how to proceed with "+phase.Name+" and resume the flow"))
		return s.escalate(next, ev)

	case constants.ResponseBlocked:
		ev := s.escalation(next, phase, constants.EscalationBlocked,
			fmt.Sprintf("%s is blocked", phase.Name), responseWhy(resp),
			orDefault(resp.NextStep, "Resolve the missing precondition and resume the flow"))
		return s.escalate(next, ev)

	case constants.ResponseNeedsRevision, constants.ResponseRejected:
		return s.revise(next, phase, responseWhy(resp))

	default:
		if IsGate(phase) {
			next.PendingGate = phase.Name
			return next, Decision{Next: next.PhaseIndex, GateReached: true}, nil
		}
		return s.forward(next, phase)
	}
}

// ResumeAfterApproval resolves the pending stop point. Approval moves past
// the gate (recording batch approval on the final gate); rejection loops
// back to the producing phase under the same revision bound as Advance.
func (s *Sequencer) ResumeAfterApproval(f domain.FlowInstance, decision domain.ApprovalDecision) (domain.FlowInstance, Decision, error) {
	if f.PendingGate == "" {
		return f, Decision{}, cadenceerrors.ErrNoPendingGate
	}
	phase, err := s.Current(f)
	if err != nil {
		return f, Decision{}, err
	}
	if phase.Name != f.PendingGate {
		return f, Decision{}, fmt.Errorf("%w: pending gate %s is not the current phase %s",
			cadenceerrors.ErrInvalidTransition, f.PendingGate, phase.Name)
	}

	next := f.Clone()
	next.PendingGate = ""
	next.UpdatedAt = time.Now().UTC()

	if !decision.Approved() {
		return s.revise(next, phase, orDefault(decision.Reason, "rejected at "+phase.Name))
	}
	if phase.Gate == constants.GateBatch {
		next.BatchApproved = true
	}
	return s.forward(next, phase)
}

// revise loops back to the producer of phase, or escalates past the bound.
// Escalating clears the counter, so a flow resumed by a human gets a fresh
// bound; the event payload keeps the iteration count. next is already a
// private copy.
func (s *Sequencer) revise(next domain.FlowInstance, phase Phase, why string) (domain.FlowInstance, Decision, error) {
	key := s.counterKey(phase)
	if next.Revisions == nil {
		next.Revisions = make(map[string]int)
	}
	next.Revisions[key]++
	count := next.Revisions[key]

	if count > s.maxRevisions {
		ev := s.escalation(next, phase, constants.EscalationRevisionLimit,
			fmt.Sprintf("%s still needs revision after %d iterations", phase.Name, s.maxRevisions),
			why,
			"Review the outstanding issues and decide whether to accept, rewrite, or change the requirements").
			WithPayload("iterations", fmt.Sprint(count-1))
		delete(next.Revisions, key)
		return s.escalate(next, ev)
	}

	target := s.revisionTarget(next, next.PhaseIndex)
	next.PhaseIndex = target
	return next, Decision{Next: target, Revision: true}, nil
}

// forward moves past phase and clears its revision counter.
func (s *Sequencer) forward(next domain.FlowInstance, phase Phase) (domain.FlowInstance, Decision, error) {
	delete(next.Revisions, s.counterKey(phase))
	idx := s.nextActive(next, next.PhaseIndex)
	if idx == Halt {
		next.Halted = true
		return next, Decision{Next: Halt}, nil
	}
	next.PhaseIndex = idx
	return next, Decision{Next: idx}, nil
}

func (s *Sequencer) escalate(next domain.FlowInstance, ev domain.EscalationEvent) (domain.FlowInstance, Decision, error) {
	next.Escalations = append(next.Escalations, ev)
	return next, Decision{Next: next.PhaseIndex, Escalation: &ev}, nil
}

func (s *Sequencer) escalation(f domain.FlowInstance, phase Phase, kind constants.EscalationKind, what, why, nextStep string) domain.EscalationEvent {
	ev := domain.NewEscalation(kind, what, why, nextStep)
	ev.FlowID = f.ID
	ev.Phase = phase.Name
	return ev
}

// counterKey is the phase whose revision loop is counted. Review and gate
// rejections of the same phase share one counter.
func (s *Sequencer) counterKey(phase Phase) string {
	return phase.Name
}

// revisionTarget finds the producing phase for the phase at idx: the nearest
// earlier active phase producing the reviewed document. Phases that review
// nothing revise themselves.
func (s *Sequencer) revisionTarget(f domain.FlowInstance, idx int) int {
	kind := s.phases[idx].Reviews
	if kind == "" {
		return idx
	}
	for i := idx - 1; i >= 0; i-- {
		if s.phases[i].Produces == kind && s.phases[i].Active(f) {
			return i
		}
	}
	return idx
}

// nextActive returns the first active index after idx, or Halt.
func (s *Sequencer) nextActive(f domain.FlowInstance, idx int) int {
	for i := idx + 1; i < len(s.phases); i++ {
		if s.phases[i].Active(f) {
			return i
		}
	}
	return Halt
}

func responseWhy(resp domain.StructuredResponse) string {
	switch {
	case resp.Reason != "":
		return resp.Reason
	case len(resp.Issues) > 0:
		return strings.Join(resp.Issues, "; ")
	case len(resp.Conflicts) > 0:
		return fmt.Sprintf("%d conflicts: %s", max(resp.TotalConflicts, len(resp.Conflicts)), strings.Join(resp.Conflicts, "; "))
	case resp.Summary != "":
		return resp.Summary
	default:
		return fmt.Sprintf("collaborator reported %s without further detail", resp.Outcome())
	}
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
