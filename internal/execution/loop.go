package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cadence/internal/collaborator"
	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/escalation"
)

// ExecutionPhase is the phase name recorded on execution invocations and events.
const ExecutionPhase = "execution"

// Committer records finished work in version control and returns the
// commit reference.
type Committer interface {
	Commit(ctx context.Context, req domain.CommitRequest) (string, error)
}

// CommitterFunc adapts a function to the Committer interface.
type CommitterFunc func(ctx context.Context, req domain.CommitRequest) (string, error)

// Commit implements Committer.
func (f CommitterFunc) Commit(ctx context.Context, req domain.CommitRequest) (string, error) {
	return f(ctx, req)
}

// ImpactReporter writes the impact report a breadth firing waits for.
type ImpactReporter interface {
	ReportImpact(ctx context.Context, task domain.Task, ev domain.EscalationEvent) (string, error)
}

// ImpactReporterFunc adapts a function to the ImpactReporter interface.
type ImpactReporterFunc func(ctx context.Context, task domain.Task, ev domain.EscalationEvent) (string, error)

// ReportImpact implements ImpactReporter.
func (f ImpactReporterFunc) ReportImpact(ctx context.Context, task domain.Task, ev domain.EscalationEvent) (string, error) {
	return f(ctx, task, ev)
}

// RootCauseAnalyst writes the analysis artifact required after repeated errors.
type RootCauseAnalyst interface {
	AnalyzeRootCause(ctx context.Context, task domain.Task, ev domain.EscalationEvent) (string, error)
}

// RootCauseAnalystFunc adapts a function to the RootCauseAnalyst interface.
type RootCauseAnalystFunc func(ctx context.Context, task domain.Task, ev domain.EscalationEvent) (string, error)

// AnalyzeRootCause implements RootCauseAnalyst.
func (f RootCauseAnalystFunc) AnalyzeRootCause(ctx context.Context, task domain.Task, ev domain.EscalationEvent) (string, error) {
	return f(ctx, task, ev)
}

// Observer receives task transition and commit events.
type Observer interface {
	OnEvent(ctx context.Context, ev domain.FlowEvent)
}

type noopObserver struct{}

func (noopObserver) OnEvent(context.Context, domain.FlowEvent) {}

// Limits bound the retry loops inside one task.
type Limits struct {
	MaxReviewIterations   int
	MaxQualityFixAttempts int
}

// DefaultLimits returns two review rejections and three quality-fixer attempts.
func DefaultLimits() Limits {
	return Limits{
		MaxReviewIterations:   constants.MaxIntegrationReviewRejections,
		MaxQualityFixAttempts: constants.MaxQualityFixAttempts,
	}
}

// Loop runs the approved work plan of a flow without further human gates.
// Any escalation suspends it. Run may be called again once the escalation is
// resolved and the stopped task resumed.
type Loop struct {
	registry  *collaborator.Registry
	committer Committer
	strategy  constants.CommitStrategy
	monitor   *escalation.Monitor
	limits    Limits
	impact    ImpactReporter
	rootCause RootCauseAnalyst
	observer  Observer
	logger    zerolog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithCommitter sets the committer. Required unless the strategy is manual.
func WithCommitter(c Committer) Option {
	return func(l *Loop) {
		l.committer = c
	}
}

// WithStrategy sets the commit strategy used when the flow has none recorded.
func WithStrategy(s constants.CommitStrategy) Option {
	return func(l *Loop) {
		l.strategy = s
	}
}

// WithMonitor sets the escalation monitor.
func WithMonitor(m *escalation.Monitor) Option {
	return func(l *Loop) {
		if m != nil {
			l.monitor = m
		}
	}
}

// WithLimits sets the retry bounds. Zero fields keep their defaults.
func WithLimits(limits Limits) Option {
	return func(l *Loop) {
		if limits.MaxReviewIterations > 0 {
			l.limits.MaxReviewIterations = limits.MaxReviewIterations
		}
		if limits.MaxQualityFixAttempts > 0 {
			l.limits.MaxQualityFixAttempts = limits.MaxQualityFixAttempts
		}
	}
}

// WithImpactReporter sets who answers breadth firings.
func WithImpactReporter(r ImpactReporter) Option {
	return func(l *Loop) {
		l.impact = r
	}
}

// WithRootCauseAnalyst sets who answers repeated-error firings.
func WithRootCauseAnalyst(a RootCauseAnalyst) Option {
	return func(l *Loop) {
		l.rootCause = a
	}
}

// WithObserver sets the event observer.
func WithObserver(o Observer) Option {
	return func(l *Loop) {
		if o != nil {
			l.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// NewLoop creates an execution loop over the registry's collaborators.
func NewLoop(registry *collaborator.Registry, opts ...Option) *Loop {
	l := &Loop{
		registry: registry,
		strategy: constants.CommitPerTask,
		monitor:  escalation.NewMonitor(escalation.DefaultLimits()),
		limits:   DefaultLimits(),
		observer: noopObserver{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Monitor returns the loop's escalation monitor.
func (l *Loop) Monitor() *escalation.Monitor {
	return l.monitor
}

// Stop halts the loop. The in-flight task is recorded as escalated.
// The signal stays set, so a later Run needs a loop with a fresh monitor.
func (l *Loop) Stop(reason string) {
	l.monitor.Stop.Stop(reason)
}

// Run executes every unfinished task of f in dependency order and commits
// according to the flow's strategy. It returns the updated flow and the
// completion report. An escalation comes back as an error wrapping
// ErrEscalated; the report then describes the partial progress.
func (l *Loop) Run(ctx context.Context, f domain.FlowInstance) (domain.FlowInstance, *domain.CompletionReport, error) {
	next := f.Clone()
	if next.CommitStrategy == "" {
		next.CommitStrategy = l.strategy
	}
	if len(next.Tasks) == 0 {
		next.Tasks = TasksFromPlan(next.Plan)
	}
	if err := l.preconditions(next); err != nil {
		return f, nil, err
	}
	order, err := Order(next.Tasks)
	if err != nil {
		return f, nil, err
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case <-l.monitor.Stop.Stopped():
			cancel(fmt.Errorf("%w: %s", cadenceerrors.ErrUserStopped, l.monitor.Stop.Reason()))
		case <-runCtx.Done():
		}
	}()

	log := l.logger.With().Str("flow_id", next.ID).Logger()
	log.Info().
		Int("tasks", len(order)).
		Str("commit_strategy", next.CommitStrategy.String()).
		Msg("execution started")

	for _, idx := range order {
		t := &next.Tasks[idx]
		if IsDone(t.Status) {
			continue
		}
		if runCtx.Err() != nil {
			return l.suspend(runCtx, &next, nil, runCtx.Err())
		}
		if err := l.checkDependencies(next, t); err != nil {
			return l.suspend(runCtx, &next, nil, err)
		}

		started := time.Now()
		if err := l.runTask(runCtx, &next, t); err != nil {
			return l.suspend(runCtx, &next, t, err)
		}
		log.Info().Str("task_id", t.ID).Dur("duration", time.Since(started)).Msg("task quality checked")

		if err := l.commitReady(runCtx, &next, false); err != nil {
			return l.suspend(runCtx, &next, nil, err)
		}
	}
	if err := l.commitReady(runCtx, &next, true); err != nil {
		return l.suspend(runCtx, &next, nil, err)
	}

	report := Report(next)
	log.Info().
		Int("tasks_completed", len(report.TasksCompleted)).
		Int("commits", len(report.CommitsMade)).
		Int("pending_commits", len(report.PendingCommits)).
		Msg("execution complete")
	return next, report, nil
}

func (l *Loop) preconditions(f domain.FlowInstance) error {
	if !f.BatchApproved {
		return fmt.Errorf("%w: %w", cadenceerrors.ErrBlocked, cadenceerrors.ErrBatchApprovalMissing)
	}
	if !validStrategy(f.CommitStrategy) {
		return fmt.Errorf("%w: %q", cadenceerrors.ErrInvalidCommitStrategy, f.CommitStrategy)
	}
	if f.CommitStrategy != constants.CommitManual && l.committer == nil {
		return fmt.Errorf("%w: no committer configured for %s commits", cadenceerrors.ErrBlocked, f.CommitStrategy)
	}
	if len(f.Tasks) == 0 {
		return fmt.Errorf("%w: work plan has no tasks", cadenceerrors.ErrBlocked)
	}
	for _, t := range f.Tasks {
		if t.Status == constants.TaskStatusEscalated {
			return fmt.Errorf("%w: task %s is escalated, resume it first", cadenceerrors.ErrBlocked, t.ID)
		}
	}
	return nil
}

func (l *Loop) checkDependencies(f domain.FlowInstance, t *domain.Task) error {
	for _, dep := range t.DependsOn {
		for _, other := range f.Tasks {
			if other.ID == dep && !IsDone(other.Status) {
				return l.fail(f, t, constants.EscalationDependencyUnsatisfied,
					fmt.Sprintf("task %s cannot start before %s", t.ID, dep),
					fmt.Sprintf("dependency %s is %s", dep, other.Status),
					"Finish or resume the dependency, then run execution again")
			}
		}
	}
	return nil
}

// runTask takes t from pending (or a resumed executing) to quality_checked.
func (l *Loop) runTask(ctx context.Context, f *domain.FlowInstance, t *domain.Task) error {
	if t.Status == constants.TaskStatusPending {
		if err := l.transition(ctx, f, t, constants.TaskStatusExecuting, "task started"); err != nil {
			return err
		}
	}
	l.monitor.Breadth.Reset()

	var feedback []string
	for {
		resp, err := l.invoke(ctx, f, t, domain.RoleTaskExecutor, l.executorInvocation(*f, *t, feedback))
		if err != nil {
			return err
		}
		if err := l.stopOnOutcome(*f, t, domain.RoleTaskExecutor, resp); err != nil {
			return err
		}
		if !resp.IsReadyForQualityCheck() {
			return l.fail(*f, t, constants.EscalationNotReady,
				fmt.Sprintf("task-executor did not declare %s ready for quality checks", t.ID),
				orDefault(responseReason(resp), "readyForQualityCheck was missing or false"),
				"Inspect the executor output and decide whether to split or clarify the task")
		}
		t.FilesModified = append([]string(nil), resp.FilesModified...)
		t.TestsAdded = append([]string(nil), resp.TestsAdded...)

		if err := l.checkBreadth(ctx, f, t, resp); err != nil {
			return err
		}

		integration := integrationTests(resp.TestsAdded)
		if len(integration) == 0 {
			return l.qualityLoop(ctx, f, t, "ready for quality check")
		}

		if err := l.transition(ctx, f, t, constants.TaskStatusReviewNeeded, "integration tests added: "+strings.Join(integration, ", ")); err != nil {
			return err
		}
		review, err := l.invoke(ctx, f, t, domain.RoleIntegrationTestReviewer, l.reviewInvocation(*f, *t, integration))
		if err != nil {
			return err
		}
		if err := l.stopOnOutcome(*f, t, domain.RoleIntegrationTestReviewer, review); err != nil {
			return err
		}
		if review.Outcome() != constants.ResponseNeedsRevision {
			return l.qualityLoop(ctx, f, t, "integration tests approved")
		}

		t.ReviewRejections++
		if t.ReviewRejections > l.limits.MaxReviewIterations {
			return l.fail(*f, t, constants.EscalationReviewLimit,
				fmt.Sprintf("integration tests for %s were rejected %d times", t.ID, t.ReviewRejections),
				responseReason(review),
				"Review the rejected tests and decide how the task should be tested")
		}
		feedback = review.Issues
		if len(feedback) == 0 {
			feedback = []string{responseReason(review)}
		}
		if err := l.transition(ctx, f, t, constants.TaskStatusExecuting, "integration test review rejected"); err != nil {
			return err
		}
	}
}

// qualityLoop runs the quality fixer until it approves or the attempt bound
// is reached. Each retry records a quality_checking self transition.
func (l *Loop) qualityLoop(ctx context.Context, f *domain.FlowInstance, t *domain.Task, reason string) error {
	if err := l.transition(ctx, f, t, constants.TaskStatusQualityChecking, reason); err != nil {
		return err
	}
	for {
		t.QualityAttempts++
		resp, err := l.invoke(ctx, f, t, domain.RoleQualityFixer, l.qualityInvocation(*f, *t))
		if err != nil {
			return err
		}
		if err := l.stopOnOutcome(*f, t, domain.RoleQualityFixer, resp); err != nil {
			return err
		}
		if resp.IsApproved() {
			t.ChecksPassed = append([]string(nil), resp.ChecksPerformed...)
			return l.transition(ctx, f, t, constants.TaskStatusQualityChecked,
				fmt.Sprintf("quality checks passed after %d attempts", t.QualityAttempts))
		}
		if t.QualityAttempts >= l.limits.MaxQualityFixAttempts {
			return l.fail(*f, t, constants.EscalationQualityNotConverged,
				fmt.Sprintf("quality checks for %s did not pass after %d attempts", t.ID, t.QualityAttempts),
				orDefault(responseReason(resp), "quality-fixer never approved the task"),
				"Inspect the failing checks and fix them by hand or revise the task")
		}
		l.logger.Debug().
			Str("flow_id", f.ID).
			Str("task_id", t.ID).
			Int("attempt", t.QualityAttempts).
			Msg("quality checks not yet passing")
		if err := l.transition(ctx, f, t, constants.TaskStatusQualityChecking,
			fmt.Sprintf("quality fix attempt %d: %s", t.QualityAttempts+1,
				orDefault(responseReason(resp), "checks still failing"))); err != nil {
			return err
		}
	}
}

// invoke calls the collaborator for role. Collaborator failures feed the
// repeated-error watcher before they escalate.
func (l *Loop) invoke(ctx context.Context, f *domain.FlowInstance, t *domain.Task, role domain.Role, inv domain.Invocation) (domain.StructuredResponse, error) {
	c, err := l.registry.Get(role)
	if err != nil {
		return domain.StructuredResponse{}, l.fail(*f, t, constants.EscalationCollaboratorMissing,
			fmt.Sprintf("no collaborator for %s", role), err.Error(),
			fmt.Sprintf("Register a %s collaborator and resume the task", role))
	}
	if err := inv.Validate(); err != nil {
		return domain.StructuredResponse{}, err
	}

	resp, err := c.Invoke(ctx, inv)
	if err != nil {
		if ctx.Err() != nil {
			return domain.StructuredResponse{}, ctx.Err()
		}
		if rerr := l.observeError(ctx, f, t, err.Error()); rerr != nil {
			return domain.StructuredResponse{}, rerr
		}
		return domain.StructuredResponse{}, l.fail(*f, t, constants.EscalationCollaboratorFailure,
			fmt.Sprintf("%s failed on %s", role, t.ID), err.Error(),
			"Inspect the collaborator failure and resume the task")
	}
	if resp.Error != "" {
		if rerr := l.observeError(ctx, f, t, resp.Error); rerr != nil {
			return resp, rerr
		}
	}
	return resp, nil
}

// observeError feeds msg to the repeated-error watcher. At the threshold a
// root-cause analysis must be recorded before work may continue.
func (l *Loop) observeError(ctx context.Context, f *domain.FlowInstance, t *domain.Task, msg string) error {
	fired := l.monitor.Errors.Observe(msg)
	if fired == nil {
		return nil
	}
	ev := *fired
	ev.FlowID, ev.Phase, ev.TaskID = f.ID, ExecutionPhase, t.ID
	l.raise(ctx, ev)

	sig := ev.Payload["signature"]
	if l.rootCause == nil {
		return l.fail(*f, t, constants.EscalationRootCauseRequired, ev.What, ev.Why,
			"Write a root-cause analysis for the repeated error, then resume the task")
	}
	artifact, err := l.rootCause.AnalyzeRootCause(ctx, *t, ev)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return l.fail(*f, t, constants.EscalationRootCauseRequired, ev.What, err.Error(),
			"Write a root-cause analysis for the repeated error, then resume the task")
	}
	if err := l.monitor.Errors.RecordRootCause(sig, artifact); err != nil {
		return l.fail(*f, t, constants.EscalationRootCauseRequired, ev.What, err.Error(),
			"Write a root-cause analysis for the repeated error, then resume the task")
	}
	l.emit(ctx, domain.FlowEvent{Type: constants.EventRootCauseRecord, FlowID: f.ID, Phase: ExecutionPhase, TaskID: t.ID, Detail: artifact})
	return l.monitor.Errors.Allow(sig)
}

// checkBreadth feeds the breadth watcher. A firing waits for an impact
// report; without one it becomes a hard escalation.
func (l *Loop) checkBreadth(ctx context.Context, f *domain.FlowInstance, t *domain.Task, resp domain.StructuredResponse) error {
	fired := l.monitor.Breadth.ObserveFiles(resp.FilesModified)
	for _, p := range resp.Edits {
		if ev := l.monitor.Breadth.ObserveEdit(p); ev != nil && fired == nil {
			fired = ev
		}
	}
	if fired == nil {
		return nil
	}
	ev := *fired
	ev.FlowID, ev.Phase, ev.TaskID = f.ID, ExecutionPhase, t.ID
	l.raise(ctx, ev)

	if l.impact == nil {
		return l.fail(*f, t, constants.EscalationImpactReportMissing, ev.What, ev.Why,
			"Write an impact report for the change, then resume the task")
	}
	report, err := l.impact.ReportImpact(ctx, *t, ev)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return l.fail(*f, t, constants.EscalationImpactReportMissing, ev.What, err.Error(),
			"Write an impact report for the change, then resume the task")
	}
	if err := l.monitor.Breadth.AcknowledgeImpact(report); err != nil {
		return l.fail(*f, t, constants.EscalationImpactReportMissing, ev.What, err.Error(),
			"Write an impact report for the change, then resume the task")
	}
	l.emit(ctx, domain.FlowEvent{Type: constants.EventImpactReport, FlowID: f.ID, Phase: ExecutionPhase, TaskID: t.ID, Detail: report})
	return nil
}

func (l *Loop) stopOnOutcome(f domain.FlowInstance, t *domain.Task, role domain.Role, resp domain.StructuredResponse) error {
	switch resp.Outcome() {
	case constants.ResponseEscalationNeeded:
		return l.fail(f, t, constants.EscalationExplicit,
			fmt.Sprintf("%s requested escalation on %s", role, t.ID), responseReason(resp),
			orDefault(resp.NextStep, "Make the design decision the collaborator asked for, then resume the task"))
	case constants.ResponseBlocked:
		return l.fail(f, t, constants.EscalationBlocked,
			fmt.Sprintf("%s is blocked on %s", role, t.ID), responseReason(resp),
			orDefault(resp.NextStep, "Resolve the missing precondition, then resume the task"))
	default:
		return nil
	}
}

// suspend records why the loop stopped. Cancellation is a user stop and
// escalates the in-flight task so it can be resumed later.
func (l *Loop) suspend(ctx context.Context, f *domain.FlowInstance, t *domain.Task, err error) (domain.FlowInstance, *domain.CompletionReport, error) {
	ev, ok := domain.AsEscalation(err)
	if !ok {
		if ctx.Err() == nil {
			return *f, Report(*f), err
		}
		why := "execution was stopped"
		if cause := context.Cause(ctx); cause != nil {
			why = cause.Error()
		}
		ev = domain.NewEscalation(constants.EscalationUserStop, "execution stopped by user", why,
			"Resume the stopped task when ready")
		ev.FlowID, ev.Phase = f.ID, ExecutionPhase
	}

	record := context.WithoutCancel(ctx)
	if t != nil {
		ev.TaskID = t.ID
		if !IsTerminalStatus(t.Status) && t.Status != constants.TaskStatusPending {
			if terr := l.transition(record, f, t, constants.TaskStatusEscalated, ev.Kind.String()); terr != nil {
				return *f, Report(*f), errors.Join(terr, domain.Escalate(ev))
			}
			t.EscalationID = ev.ID
		}
	}
	f.Escalations = append(f.Escalations, ev)
	l.raise(record, ev)
	return *f, Report(*f), domain.Escalate(ev)
}

func (l *Loop) fail(f domain.FlowInstance, t *domain.Task, kind constants.EscalationKind, what, why, nextStep string) error {
	ev := domain.NewEscalation(kind, what, orDefault(why, what), nextStep)
	ev.FlowID, ev.Phase = f.ID, ExecutionPhase
	if t != nil {
		ev.TaskID = t.ID
	}
	return domain.Escalate(ev)
}

func (l *Loop) raise(ctx context.Context, ev domain.EscalationEvent) {
	if _, err := l.monitor.Raise(ctx, ev); err != nil {
		l.logger.Error().Err(err).Str("flow_id", ev.FlowID).Str("kind", ev.Kind.String()).Msg("invalid escalation")
	}
}

func (l *Loop) transition(ctx context.Context, f *domain.FlowInstance, t *domain.Task, to constants.TaskStatus, reason string) error {
	from := t.Status
	if err := Transition(ctx, t, to, reason); err != nil {
		return err
	}
	l.emit(ctx, domain.FlowEvent{
		Type:   constants.EventTaskTransition,
		FlowID: f.ID,
		Phase:  ExecutionPhase,
		TaskID: t.ID,
		From:   from.String(),
		To:     to.String(),
		Detail: reason,
	})
	return nil
}

func (l *Loop) emit(ctx context.Context, ev domain.FlowEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	l.observer.OnEvent(ctx, ev)
}

func (l *Loop) executorInvocation(f domain.FlowInstance, t domain.Task, feedback []string) domain.Invocation {
	var b strings.Builder
	fmt.Fprintf(&b, "Implement task %s: %s\n", t.ID, t.Title)
	if len(t.TargetFiles) > 0 {
		fmt.Fprintf(&b, "Target files: %s\n", strings.Join(t.TargetFiles, ", "))
	}
	if len(feedback) > 0 {
		fmt.Fprintf(&b, "Fix these review findings: %s\n", strings.Join(feedback, "; "))
	}
	return domain.Invocation{
		Role:        domain.RoleTaskExecutor,
		Description: "Implement planned task changes",
		Prompt:      b.String(),
		Constraints: []string{
			"Report filesModified, testsAdded and readyForQualityCheck",
			"Do not modify design documents under " + constants.DocsDir,
		},
		FlowID: f.ID,
		Phase:  ExecutionPhase,
		TaskID: t.ID,
	}
}

func (l *Loop) reviewInvocation(f domain.FlowInstance, t domain.Task, tests []string) domain.Invocation {
	return domain.Invocation{
		Role:        domain.RoleIntegrationTestReviewer,
		Description: "Review integration test quality",
		Prompt:      fmt.Sprintf("Review the integration tests added by %s: %s", t.ID, strings.Join(tests, ", ")),
		Constraints: []string{"Return decision approved or needs_revision with issues"},
		FlowID:      f.ID,
		Phase:       ExecutionPhase,
		TaskID:      t.ID,
	}
}

func (l *Loop) qualityInvocation(f domain.FlowInstance, t domain.Task) domain.Invocation {
	return domain.Invocation{
		Role:        domain.RoleQualityFixer,
		Description: "Run quality checks and fix",
		Prompt: fmt.Sprintf("Run every quality check for %s (attempt %d of %d). Files: %s",
			t.ID, t.QualityAttempts, l.limits.MaxQualityFixAttempts, strings.Join(t.FilesModified, ", ")),
		Constraints: []string{"Report approved: true only when every check passes"},
		FlowID:      f.ID,
		Phase:       ExecutionPhase,
		TaskID:      t.ID,
	}
}

func integrationTests(paths []string) []string {
	var out []string
	for _, p := range paths {
		if IsIntegrationTest(p) {
			out = append(out, p)
		}
	}
	return out
}

func responseReason(resp domain.StructuredResponse) string {
	switch {
	case resp.Reason != "":
		return resp.Reason
	case resp.Error != "":
		return resp.Error
	case len(resp.Issues) > 0:
		return strings.Join(resp.Issues, "; ")
	default:
		return resp.Summary
	}
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
