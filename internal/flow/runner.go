package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cadence/internal/artifact"
	"github.com/mrz1836/cadence/internal/collaborator"
	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
)

// Observer receives flow events. Implementations must not block for long.
type Observer interface {
	OnEvent(ctx context.Context, ev domain.FlowEvent)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, ev domain.FlowEvent)

// OnEvent implements Observer.
func (f ObserverFunc) OnEvent(ctx context.Context, ev domain.FlowEvent) {
	f(ctx, ev)
}

type noopObserver struct{}

func (noopObserver) OnEvent(context.Context, domain.FlowEvent) {}

// Runner drives a flow through its phases: it invokes the collaborator for
// each phase, applies the response through the Sequencer, and waits at stop
// points for the Approver. Only one phase is ever in flight.
type Runner struct {
	sequencer     *Sequencer
	registry      *collaborator.Registry
	approver      Approver
	ownership     *artifact.Table
	observer      Observer
	logger        zerolog.Logger
	expertTimeout time.Duration
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithObserver sets the event observer.
func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithOwnership sets the artifact ownership table checked after each phase.
func WithOwnership(t *artifact.Table) RunnerOption {
	return func(r *Runner) {
		r.ownership = t
	}
}

// WithExpertTimeout bounds the expert-analysis join barrier.
func WithExpertTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.expertTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a runner. The default ownership table and expert
// timeout apply unless overridden.
func NewRunner(seq *Sequencer, registry *collaborator.Registry, approver Approver, opts ...RunnerOption) *Runner {
	r := &Runner{
		sequencer:     seq,
		registry:      registry,
		approver:      approver,
		ownership:     artifact.DefaultTable(),
		observer:      noopObserver{},
		logger:        zerolog.Nop(),
		expertTimeout: constants.DefaultExpertTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sequencer returns the runner's sequencer.
func (r *Runner) Sequencer() *Sequencer {
	return r.sequencer
}

// Run steps f until the phase list halts or the flow escalates. The last
// flow state is always returned, including on error.
func (r *Runner) Run(ctx context.Context, f domain.FlowInstance) (domain.FlowInstance, error) {
	for {
		next, d, err := r.Step(ctx, f)
		if err != nil {
			return next, err
		}
		f = next
		if d.Halted() {
			return f, nil
		}
	}
}

// Step performs one unit of progress: it resolves the pending gate if one
// is waiting, otherwise it runs the current phase. Escalations come back as
// an error wrapping ErrEscalated, with the flow recording the event.
func (r *Runner) Step(ctx context.Context, f domain.FlowInstance) (domain.FlowInstance, Decision, error) {
	select {
	case <-ctx.Done():
		return f, Decision{}, ctx.Err()
	default:
	}

	phase, err := r.sequencer.Current(f)
	if err != nil {
		return f, Decision{}, err
	}
	log := r.logger.With().Str("flow_id", f.ID).Str("phase", phase.Name).Logger()

	if f.PendingGate != "" {
		return r.awaitGate(ctx, f, phase, log)
	}

	r.emit(ctx, domain.FlowEvent{Type: constants.EventPhaseEntered, FlowID: f.ID, Phase: phase.Name, Role: phase.Role})
	log.Debug().Str("role", phase.Role.String()).Msg("phase entered")

	resp, ev, err := r.invoke(ctx, f, phase)
	if err != nil {
		return f, Decision{}, err
	}
	if ev != nil {
		next := f.Clone()
		next.Escalations = append(next.Escalations, *ev)
		r.escalated(ctx, *ev, log)
		return next, Decision{Next: f.PhaseIndex, Escalation: ev}, domain.Escalate(*ev)
	}

	next, d, err := r.sequencer.Advance(f, resp)
	if err != nil {
		return f, d, err
	}
	return next, d, r.report(ctx, next, phase, d, resp.Outcome().String(), log)
}

func (r *Runner) awaitGate(ctx context.Context, f domain.FlowInstance, phase Phase, log zerolog.Logger) (domain.FlowInstance, Decision, error) {
	pending := RequestApproval(f.ID, phase, lastArtifact(f))
	r.emit(ctx, domain.FlowEvent{Type: constants.EventGateRequested, FlowID: f.ID, Phase: phase.Name, Detail: phase.Gate.String()})
	log.Info().Str("gate", phase.Gate.String()).Str("artifact", pending.ArtifactRef).Msg("waiting for approval")

	if err := r.approver.Approve(ctx, pending); err != nil {
		return f, Decision{}, fmt.Errorf("request approval for %s: %w", phase.Name, err)
	}
	decision, err := pending.Wait(ctx)
	if err != nil {
		return f, Decision{}, err
	}

	detail := decision.Outcome.String()
	if decision.Reason != "" {
		detail += ": " + decision.Reason
	}
	r.emit(ctx, domain.FlowEvent{Type: constants.EventGateResolved, FlowID: f.ID, Phase: phase.Name, Detail: detail})
	log.Info().Str("outcome", decision.Outcome.String()).Msg("approval resolved")

	next, d, err := r.sequencer.ResumeAfterApproval(f, decision)
	if err != nil {
		return f, d, err
	}
	return next, d, r.report(ctx, next, phase, d, detail, log)
}

// report emits the events for a sequencing decision and converts an
// escalation into an error.
func (r *Runner) report(ctx context.Context, f domain.FlowInstance, phase Phase, d Decision, detail string, log zerolog.Logger) error {
	switch {
	case d.Escalation != nil:
		r.escalated(ctx, *d.Escalation, log)
		return domain.Escalate(*d.Escalation)
	case d.GateReached:
		// The gate is requested on the next Step, after the caller can persist the pause.
	case d.Revision:
		target := r.sequencer.phases[d.Next].Name
		r.emit(ctx, domain.FlowEvent{Type: constants.EventRevision, FlowID: f.ID, Phase: phase.Name, To: target, Detail: detail})
		log.Info().Str("target", target).Int("iteration", f.RevisionCount(phase.Name)).Msg("revision requested")
	default:
		r.emit(ctx, domain.FlowEvent{Type: constants.EventPhaseCompleted, FlowID: f.ID, Phase: phase.Name, Role: phase.Role, Detail: detail})
		if d.Halted() {
			r.emit(ctx, domain.FlowEvent{Type: constants.EventFlowHalted, FlowID: f.ID, Phase: phase.Name})
			log.Info().Bool("batch_approved", f.BatchApproved).Msg("phase list complete")
		}
	}
	return nil
}

// invoke runs the collaborator for phase. Conditions that need a human come
// back as an escalation event, cancellation as an error.
func (r *Runner) invoke(ctx context.Context, f domain.FlowInstance, phase Phase) (domain.StructuredResponse, *domain.EscalationEvent, error) {
	inv := r.invocation(f, phase)

	if phase.IsFanOut() {
		return r.invokeExperts(ctx, f, phase, inv)
	}

	c, err := r.registry.Get(phase.Role)
	if err != nil {
		ev := r.unavailable(f, phase, phase.Role, err)
		return domain.StructuredResponse{}, &ev, nil
	}
	if err := inv.Validate(); err != nil {
		return domain.StructuredResponse{}, nil, err
	}

	resp, err := c.Invoke(ctx, inv)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.StructuredResponse{}, nil, ctxErr
		}
		ev := phaseEscalation(f, phase, constants.EscalationCollaboratorFailure,
			fmt.Sprintf("%s failed during %s", phase.Role, phase.Name), err.Error(),
			"Inspect the collaborator failure and rerun the phase")
		return domain.StructuredResponse{}, &ev, nil
	}

	if resp.ArtifactPath != "" && r.ownership != nil {
		if err := r.ownership.CheckWrite(phase.Role, resp.ArtifactPath); err != nil {
			ev := phaseEscalation(f, phase, constants.EscalationOwnershipViolation,
				fmt.Sprintf("%s wrote %s", phase.Role, resp.ArtifactPath), err.Error(),
				"Discard the write and route the change through the owning collaborator").
				WithPayload("path", resp.ArtifactPath)
			return domain.StructuredResponse{}, &ev, nil
		}
	}
	return resp, nil, nil
}

func (r *Runner) invokeExperts(ctx context.Context, f domain.FlowInstance, phase Phase, inv domain.Invocation) (domain.StructuredResponse, *domain.EscalationEvent, error) {
	experts := make([]collaborator.Collaborator, 0, len(phase.Experts))
	for _, role := range phase.Experts {
		c, err := r.registry.Get(role)
		if err != nil {
			ev := r.unavailable(f, phase, role, err)
			return domain.StructuredResponse{}, &ev, nil
		}
		experts = append(experts, c)
	}

	inv.Role = phase.Experts[0]
	responses, err := FanOut(ctx, experts, inv, r.expertTimeout)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.StructuredResponse{}, nil, ctxErr
		}
		ev := phaseEscalation(f, phase, constants.EscalationExpertStalled,
			"expert analysis did not complete", err.Error(),
			"Check the stalled expert, then rerun expert analysis or skip it explicitly")
		return domain.StructuredResponse{}, &ev, nil
	}
	return Synthesize(responses), nil, nil
}

func (r *Runner) unavailable(f domain.FlowInstance, phase Phase, role domain.Role, err error) domain.EscalationEvent {
	return phaseEscalation(f, phase, constants.EscalationCollaboratorMissing,
		fmt.Sprintf("no collaborator for %s", role), err.Error(),
		fmt.Sprintf("Register a %s collaborator and resume the flow", role)).
		WithPayload("role", role.String())
}

func (r *Runner) invocation(f domain.FlowInstance, phase Phase) domain.Invocation {
	var docs []string
	for _, kind := range constants.DocumentKinds() {
		docs = append(docs, fmt.Sprintf("%s=%s", kind, f.Documents.Level(kind)))
	}
	prompt := fmt.Sprintf("%s\n\nScale: %s. Variant: %s. Documents: %s.",
		strings.TrimSpace(f.Request.Description), f.Scale, f.Variant, strings.Join(docs, ", "))

	constraints := []string{"Return a structured response with a status field"}
	if phase.Produces != "" {
		constraints = append(constraints, fmt.Sprintf("Write only %s artifacts owned by %s", phase.Produces, phase.Role))
	}
	if last, ok := lastRecord(f); ok && last.Outcome == constants.ResponseNeedsRevision {
		constraints = append(constraints, "Address review issues: "+responseWhy(last.Response))
	}

	return domain.Invocation{
		Role:        phase.Role,
		Description: phase.Description,
		Prompt:      prompt,
		Constraints: constraints,
		FlowID:      f.ID,
		Phase:       phase.Name,
	}
}

func (r *Runner) escalated(ctx context.Context, ev domain.EscalationEvent, log zerolog.Logger) {
	r.emit(ctx, domain.FlowEvent{Type: constants.EventEscalation, FlowID: ev.FlowID, Phase: ev.Phase, Detail: ev.Kind.String(), Escalation: &ev})
	log.Warn().Str("kind", ev.Kind.String()).Str("what", ev.What).Str("why", ev.Why).Msg("escalation raised")
}

func (r *Runner) emit(ctx context.Context, ev domain.FlowEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	r.observer.OnEvent(ctx, ev)
}

func phaseEscalation(f domain.FlowInstance, phase Phase, kind constants.EscalationKind, what, why, nextStep string) domain.EscalationEvent {
	ev := domain.NewEscalation(kind, what, why, nextStep)
	ev.FlowID = f.ID
	ev.Phase = phase.Name
	return ev
}

func lastArtifact(f domain.FlowInstance) string {
	if len(f.Artifacts) == 0 {
		return ""
	}
	return f.Artifacts[len(f.Artifacts)-1]
}

func lastRecord(f domain.FlowInstance) (domain.PhaseRecord, bool) {
	if len(f.History) == 0 {
		return domain.PhaseRecord{}, false
	}
	return f.History[len(f.History)-1], true
}
