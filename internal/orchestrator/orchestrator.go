// Package orchestrator drives a flow from task request to completion report.
//
// It runs the design phases through the flow runner, hands the approved plan
// to the execution loop, persists a snapshot after every step and fans every
// event out to the configured observers and escalation sinks.
//
// Import rules:
//   - CAN import: every internal package except cli and tui
//   - MUST NOT import: internal/cli, internal/tui
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cadence/internal/artifact"
	"github.com/mrz1836/cadence/internal/collaborator"
	"github.com/mrz1836/cadence/internal/config"
	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/escalation"
	"github.com/mrz1836/cadence/internal/execution"
	"github.com/mrz1836/cadence/internal/flow"
	"github.com/mrz1836/cadence/internal/planning"
	"github.com/mrz1836/cadence/internal/store"
)

// Observer receives every flow event of every phase and task.
type Observer interface {
	OnEvent(ctx context.Context, ev domain.FlowEvent)
}

// StrategyChooser picks the commit strategy once, before execution starts.
type StrategyChooser interface {
	ChooseStrategy(ctx context.Context, f domain.FlowInstance) (constants.CommitStrategy, error)
}

// StrategyChooserFunc adapts a function to StrategyChooser.
type StrategyChooserFunc func(ctx context.Context, f domain.FlowInstance) (constants.CommitStrategy, error)

// ChooseStrategy implements StrategyChooser.
func (fn StrategyChooserFunc) ChooseStrategy(ctx context.Context, f domain.FlowInstance) (constants.CommitStrategy, error) {
	return fn(ctx, f)
}

// Settings are the tunable bounds of one orchestrator.
type Settings struct {
	Classifier      planning.Classifier
	MaxRevisions    int
	ExpertTimeout   time.Duration
	Execution       execution.Limits
	Escalation      escalation.Limits
	DefaultStrategy constants.CommitStrategy
}

// DefaultSettings returns the built-in thresholds.
func DefaultSettings() Settings {
	return Settings{
		Classifier:    planning.DefaultClassifier(),
		MaxRevisions:  constants.MaxReviewIterations,
		ExpertTimeout: constants.DefaultExpertTimeout,
		Execution:     execution.DefaultLimits(),
		Escalation:    escalation.DefaultLimits(),
	}
}

// SettingsFromConfig maps a loaded configuration onto Settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Classifier:    planning.Classifier{SmallMax: cfg.Scale.SmallMax, MediumMax: cfg.Scale.MediumMax},
		MaxRevisions:  cfg.Flow.MaxRevisions,
		ExpertTimeout: cfg.Flow.ExpertTimeout,
		Execution: execution.Limits{
			MaxReviewIterations:   cfg.Flow.MaxReviewIterations,
			MaxQualityFixAttempts: cfg.Flow.MaxQualityFixAttempts,
		},
		Escalation: escalation.Limits{
			RepeatedError: cfg.Thresholds.RepeatedError,
			Breadth: escalation.BreadthLimits{
				FilesPerTask:    cfg.Thresholds.FilesPerTask,
				EditInvocations: cfg.Thresholds.EditInvocations,
				SameFileEdits:   cfg.Thresholds.SameFileEdits,
			},
		},
		DefaultStrategy: constants.CommitStrategy(cfg.Flow.CommitStrategy),
	}
}

// Result is the state a call left the flow in. Report is set once
// execution ran, or when a design-only flow finished.
type Result struct {
	Flow   domain.FlowInstance
	Report *domain.CompletionReport
}

// Orchestrator coordinates one or more flows. It is safe to call Stop from
// another goroutine while Start or Continue runs.
type Orchestrator struct {
	registry  *collaborator.Registry
	approver  flow.Approver
	store     store.Store
	committer execution.Committer
	chooser   StrategyChooser
	impact    execution.ImpactReporter
	rootCause execution.RootCauseAnalyst
	observers []Observer
	notifiers []escalation.Notifier
	settings  Settings
	logger    zerolog.Logger

	mu   sync.Mutex
	stop *escalation.UserStop
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStore persists a snapshot after every step.
func WithStore(s store.Store) Option {
	return func(o *Orchestrator) {
		o.store = s
	}
}

// WithCommitter sets the committer handed to the execution loop.
func WithCommitter(c execution.Committer) Option {
	return func(o *Orchestrator) {
		o.committer = c
	}
}

// WithStrategyChooser asks for the commit strategy when neither the flow
// nor the settings name one.
func WithStrategyChooser(c StrategyChooser) Option {
	return func(o *Orchestrator) {
		o.chooser = c
	}
}

// WithImpactReporter answers breadth threshold pauses.
func WithImpactReporter(r execution.ImpactReporter) Option {
	return func(o *Orchestrator) {
		o.impact = r
	}
}

// WithRootCauseAnalyst answers repeated-error pauses.
func WithRootCauseAnalyst(a execution.RootCauseAnalyst) Option {
	return func(o *Orchestrator) {
		o.rootCause = a
	}
}

// WithObserver adds a flow event sink.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithNotifier adds an escalation sink.
func WithNotifier(n escalation.Notifier) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifiers = append(o.notifiers, n)
		}
	}
}

// WithSettings replaces the default settings.
func WithSettings(s Settings) Option {
	return func(o *Orchestrator) {
		o.settings = s
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// New creates an orchestrator over registry. Stop points are resolved by approver.
func New(registry *collaborator.Registry, approver flow.Approver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		approver: approver,
		settings: DefaultSettings(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start creates a flow for req and runs it as far as it goes.
func (o *Orchestrator) Start(ctx context.Context, req domain.TaskRequest) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	f, err := flow.NewInstance(req, o.settings.Classifier)
	if err != nil {
		return Result{}, err
	}
	if o.store != nil {
		if err := o.store.Create(ctx, f); err != nil {
			return Result{Flow: f}, fmt.Errorf("failed to save flow: %w", err)
		}
	}

	o.logger.Info().
		Str("flow_id", f.ID).
		Str("scale", f.Scale.String()).
		Str("variant", f.Variant.String()).
		Str("mode", f.Request.Mode.String()).
		Msg("flow started")
	o.OnEvent(ctx, domain.FlowEvent{Type: constants.EventFlowStarted, FlowID: f.ID, Detail: f.Variant.String()})

	return o.Continue(ctx, f)
}

// Resume loads a stored flow and continues it.
func (o *Orchestrator) Resume(ctx context.Context, flowID string) (Result, error) {
	if o.store == nil {
		return Result{}, fmt.Errorf("resume %s: %w", flowID, cadenceerrors.ErrFlowNotFound)
	}
	f, err := o.store.Get(ctx, flowID)
	if err != nil {
		return Result{}, err
	}
	return o.Continue(ctx, f)
}

// Continue runs f from wherever it stopped: the remaining design phases,
// then autonomous execution unless the flow is design-only. An escalation
// comes back as an error wrapping ErrEscalated with the flow recording it.
func (o *Orchestrator) Continue(ctx context.Context, f domain.FlowInstance) (Result, error) {
	if f.SupersededBy != "" {
		return Result{Flow: f}, fmt.Errorf("%w: superseded by %s", cadenceerrors.ErrFlowHalted, f.SupersededBy)
	}

	stop := o.arm()
	defer o.disarm(stop)
	monitor := o.newMonitor(stop)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case <-stop.Stopped():
			cancel(fmt.Errorf("%w: %s", cadenceerrors.ErrUserStopped, stop.Reason()))
		case <-runCtx.Done():
		}
	}()

	if !f.Halted {
		next, err := o.design(runCtx, f, monitor)
		if err != nil {
			return Result{Flow: next}, err
		}
		f = next
	}

	if f.Request.Mode == constants.ModeDesignOnly {
		report := execution.Report(f)
		report.Halted = f.Halted
		o.logger.Info().Str("flow_id", f.ID).Int("documents", len(report.DocumentsProduced)).Msg("design-only flow complete")
		return Result{Flow: f, Report: report}, o.saveReport(ctx, report)
	}

	return o.execute(runCtx, f, monitor)
}

// Stop asks the running flow to halt. During design phases the current
// phase is abandoned; during execution the in-flight task is escalated.
// With nothing running Stop does nothing.
func (o *Orchestrator) Stop(reason string) {
	o.mu.Lock()
	stop := o.stop
	o.mu.Unlock()
	if stop != nil {
		stop.Stop(reason)
	}
}

// OnEvent fans ev out to every observer.
func (o *Orchestrator) OnEvent(ctx context.Context, ev domain.FlowEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	for _, obs := range o.observers {
		obs.OnEvent(ctx, ev)
	}
}

// ChangeRequirement checks input that arrived while f was running. When it
// changes the requirement, f is marked superseded and a fresh flow for the
// merged request is created at requirement analysis and returned. No change
// returns ok false and leaves f alone.
func (o *Orchestrator) ChangeRequirement(ctx context.Context, f domain.FlowInstance, input domain.RequirementInput) (next domain.FlowInstance, ok bool, err error) {
	monitor := o.newMonitor(escalation.NewUserStop())
	ev, err := monitor.CheckRequirement(ctx, f, input)
	if err != nil || ev == nil {
		return f, false, err
	}

	next, err = escalation.Reset(f, input, o.settings.Classifier)
	if err != nil {
		return f, false, err
	}

	old := f.Clone()
	*ev = ev.WithPayload("superseded_by", next.ID)
	old.Escalations = append(old.Escalations, *ev)
	old.SupersededBy = next.ID
	old.UpdatedAt = time.Now().UTC()
	if err := o.save(ctx, old); err != nil {
		return f, false, err
	}
	if o.store != nil {
		if err := o.store.Create(ctx, next); err != nil {
			return f, false, fmt.Errorf("failed to save flow: %w", err)
		}
	}

	o.OnEvent(ctx, domain.FlowEvent{Type: constants.EventEscalation, FlowID: old.ID, Detail: ev.Kind.String(), Escalation: ev})
	o.OnEvent(ctx, domain.FlowEvent{Type: constants.EventFlowSuperseded, FlowID: old.ID, To: next.ID, Detail: ev.Payload["category"]})
	o.OnEvent(ctx, domain.FlowEvent{Type: constants.EventFlowStarted, FlowID: next.ID, From: old.ID, Detail: next.Variant.String()})
	o.logger.Info().
		Str("flow_id", old.ID).
		Str("superseded_by", next.ID).
		Str("category", ev.Payload["category"]).
		Msg("flow superseded")
	return next, true, nil
}

// ResumeTask moves the escalated task taskID back to executing and
// continues the flow.
func (o *Orchestrator) ResumeTask(ctx context.Context, f domain.FlowInstance, taskID, reason string) (Result, error) {
	next := f.Clone()
	var task *domain.Task
	for i := range next.Tasks {
		if next.Tasks[i].ID == taskID {
			task = &next.Tasks[i]
			break
		}
	}
	if task == nil {
		return Result{Flow: f}, fmt.Errorf("%w: task %s not in flow %s", cadenceerrors.ErrNotResumable, taskID, f.ID)
	}
	if err := execution.Resume(task, orDefault(reason, "resumed by user")); err != nil {
		return Result{Flow: f}, err
	}
	o.OnEvent(ctx, domain.FlowEvent{
		Type:   constants.EventTaskTransition,
		FlowID: next.ID,
		Phase:  execution.ExecutionPhase,
		TaskID: taskID,
		From:   constants.TaskStatusEscalated.String(),
		To:     constants.TaskStatusExecuting.String(),
		Detail: reason,
	})
	if err := o.save(ctx, next); err != nil {
		return Result{Flow: next}, err
	}
	return o.Continue(ctx, next)
}

// CommitPending commits every quality-checked task of f in one commit. It is
// the commit signal of the manual strategy.
func (o *Orchestrator) CommitPending(ctx context.Context, f domain.FlowInstance) (domain.FlowInstance, []string, error) {
	stop := escalation.NewUserStop()
	next, ids, err := o.loop(o.newMonitor(stop)).CommitPending(ctx, f)
	if serr := o.save(ctx, next); serr != nil && err == nil {
		err = serr
	}
	return next, ids, err
}

func (o *Orchestrator) design(ctx context.Context, f domain.FlowInstance, monitor *escalation.Monitor) (domain.FlowInstance, error) {
	seq, err := flow.ForFlow(f, flow.WithMaxRevisions(o.settings.MaxRevisions))
	if err != nil {
		return f, err
	}
	runner := flow.NewRunner(seq, o.registry, o.approver,
		flow.WithObserver(o),
		flow.WithOwnership(artifact.DefaultTable()),
		flow.WithExpertTimeout(o.settings.ExpertTimeout),
		flow.WithLogger(o.logger),
	)

	for {
		if f.Request.Mode == constants.ModeDesignOnly {
			if phase, err := seq.Current(f); err == nil && planningPhase(phase.Name) {
				return o.haltDesign(ctx, f, phase.Name)
			}
		}
		next, d, stepErr := runner.Step(ctx, f)
		if stepErr != nil && ctx.Err() != nil {
			return o.stopped(ctx, next, seq, monitor)
		}
		if err := o.save(ctx, next); err != nil {
			return next, err
		}
		if stepErr != nil {
			return next, stepErr
		}
		f = next
		if d.Halted() {
			return f, nil
		}
	}
}

// planningPhase reports whether name belongs to the planning tail that a
// design-only flow never enters.
func planningPhase(name string) bool {
	switch name {
	case flow.PhaseAcceptanceTestGeneration, flow.PhaseWorkPlanning, flow.PhaseTaskDecomposition, flow.PhaseTaskPlanning:
		return true
	}
	return false
}

// haltDesign ends a design-only flow in front of its planning phases.
func (o *Orchestrator) haltDesign(ctx context.Context, f domain.FlowInstance, phase string) (domain.FlowInstance, error) {
	next := f.Clone()
	next.Halted = true
	next.UpdatedAt = time.Now().UTC()
	o.OnEvent(ctx, domain.FlowEvent{Type: constants.EventFlowHalted, FlowID: next.ID, Phase: phase, Detail: constants.ModeDesignOnly.String()})
	return next, o.save(ctx, next)
}

// stopped records a user stop that arrived during a design phase. The flow
// keeps its position, so Continue re-runs the interrupted phase.
func (o *Orchestrator) stopped(ctx context.Context, f domain.FlowInstance, seq *flow.Sequencer, monitor *escalation.Monitor) (domain.FlowInstance, error) {
	why := "flow was stopped"
	if cause := context.Cause(ctx); cause != nil {
		why = cause.Error()
	}
	ev := domain.NewEscalation(constants.EscalationUserStop, "flow stopped by user", why,
		"Continue the flow to re-run the interrupted phase")
	ev.FlowID = f.ID
	if phase, err := seq.Current(f); err == nil {
		ev.Phase = phase.Name
	}

	record := context.WithoutCancel(ctx)
	next := f.Clone()
	next.Escalations = append(next.Escalations, ev)
	if _, err := monitor.Raise(record, ev); err != nil {
		return next, err
	}
	o.OnEvent(record, domain.FlowEvent{Type: constants.EventEscalation, FlowID: ev.FlowID, Phase: ev.Phase, Detail: ev.Kind.String(), Escalation: &ev})
	if err := o.save(record, next); err != nil {
		return next, err
	}
	return next, domain.Escalate(ev)
}

func (o *Orchestrator) execute(ctx context.Context, f domain.FlowInstance, monitor *escalation.Monitor) (Result, error) {
	strategy, err := o.strategy(ctx, f)
	if err != nil {
		return Result{Flow: f}, err
	}
	if f.CommitStrategy == "" {
		f = f.Clone()
		f.CommitStrategy = strategy
	}

	next, report, runErr := o.loop(monitor).Run(ctx, f)

	record := context.WithoutCancel(ctx)
	if err := o.save(record, next); err != nil {
		return Result{Flow: next, Report: report}, err
	}
	if report != nil {
		if err := o.saveReport(record, report); err != nil {
			return Result{Flow: next, Report: report}, err
		}
	}
	return Result{Flow: next, Report: report}, runErr
}

// strategy resolves the commit strategy: the flow's own, then the
// configured default, then the chooser.
func (o *Orchestrator) strategy(ctx context.Context, f domain.FlowInstance) (constants.CommitStrategy, error) {
	switch {
	case f.CommitStrategy != "":
		return f.CommitStrategy, nil
	case o.settings.DefaultStrategy != "":
		return o.settings.DefaultStrategy, nil
	case o.chooser != nil:
		s, err := o.chooser.ChooseStrategy(ctx, f)
		if err != nil {
			return "", fmt.Errorf("choose commit strategy: %w", err)
		}
		return s, nil
	default:
		return constants.CommitPerTask, nil
	}
}

func (o *Orchestrator) loop(monitor *escalation.Monitor) *execution.Loop {
	opts := []execution.Option{
		execution.WithMonitor(monitor),
		execution.WithLimits(o.settings.Execution),
		execution.WithObserver(o),
		execution.WithLogger(o.logger),
	}
	if o.committer != nil {
		opts = append(opts, execution.WithCommitter(o.committer))
	}
	if o.impact != nil {
		opts = append(opts, execution.WithImpactReporter(o.impact))
	}
	if o.rootCause != nil {
		opts = append(opts, execution.WithRootCauseAnalyst(o.rootCause))
	}
	return execution.NewLoop(o.registry, opts...)
}

func (o *Orchestrator) newMonitor(stop *escalation.UserStop) *escalation.Monitor {
	opts := []escalation.MonitorOption{
		escalation.WithUserStop(stop),
		escalation.WithNotifier(escalation.LogNotifier{Logger: o.logger}),
	}
	for _, n := range o.notifiers {
		opts = append(opts, escalation.WithNotifier(n))
	}
	return escalation.NewMonitor(o.settings.Escalation, opts...)
}

// arm installs a fresh stop signal for one run.
func (o *Orchestrator) arm() *escalation.UserStop {
	stop := escalation.NewUserStop()
	o.mu.Lock()
	o.stop = stop
	o.mu.Unlock()
	return stop
}

func (o *Orchestrator) disarm(stop *escalation.UserStop) {
	o.mu.Lock()
	if o.stop == stop {
		o.stop = nil
	}
	o.mu.Unlock()
}

func (o *Orchestrator) save(ctx context.Context, f domain.FlowInstance) error {
	if o.store == nil {
		return nil
	}
	if err := o.store.Update(context.WithoutCancel(ctx), f); err != nil {
		return fmt.Errorf("failed to save flow: %w", err)
	}
	return nil
}

func (o *Orchestrator) saveReport(ctx context.Context, r *domain.CompletionReport) error {
	if o.store == nil || r == nil {
		return nil
	}
	if err := o.store.SaveReport(context.WithoutCancel(ctx), r); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
