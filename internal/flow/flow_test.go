package flow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cadence/internal/collaborator"
	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/planning"
)

func newFlow(t *testing.T, req domain.TaskRequest) domain.FlowInstance {
	t.Helper()
	if req.Description == "" {
		req.Description = "Add a logout button"
	}
	f, err := NewInstance(req, planning.DefaultClassifier())
	require.NoError(t, err)
	return f
}

func seqFor(t *testing.T, f domain.FlowInstance) *Sequencer {
	t.Helper()
	s, err := ForFlow(f)
	require.NoError(t, err)
	return s
}

func indexOf(t *testing.T, s *Sequencer, name string) int {
	t.Helper()
	for i, p := range s.Phases() {
		if p.Name == name {
			return i
		}
	}
	t.Fatalf("phase %s not found", name)
	return -1
}

func activeNames(s *Sequencer, f domain.FlowInstance) []string {
	var names []string
	for _, p := range s.Active(f) {
		names = append(names, p.Name)
	}
	return names
}

func completed() domain.StructuredResponse {
	return domain.StructuredResponse{Status: constants.ResponseCompleted, Summary: "done"}
}

func needsRevision(issue string) domain.StructuredResponse {
	return domain.StructuredResponse{Decision: domain.DecisionNeedsRevision, Issues: []string{issue}}
}

type eventLog struct {
	mu     sync.Mutex
	events []domain.FlowEvent
}

func (l *eventLog) OnEvent(_ context.Context, ev domain.FlowEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) count(typ constants.EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func TestPhasesFor_AllVariantsValidate(t *testing.T) {
	for _, v := range []constants.FlowVariant{
		constants.FlowVariantSmall, constants.FlowVariantMedium,
		constants.FlowVariantLarge, constants.FlowVariantGame,
	} {
		t.Run(v.String(), func(t *testing.T) {
			phases, err := PhasesFor(v)
			require.NoError(t, err)
			require.NoError(t, ValidatePhases(phases))

			last := phases[len(phases)-1]
			assert.Equal(t, constants.GateBatch, last.Gate)
			assert.Equal(t, PhaseRequirementAnalysis, phases[0].Name)
			assert.Equal(t, constants.GateStop, phases[0].Gate)
		})
	}

	_, err := PhasesFor("huge")
	require.ErrorIs(t, err, cadenceerrors.ErrUnknownVariant)
}

func TestPhasesFor_InvocationsAreValid(t *testing.T) {
	r := NewRunner(nil, collaborator.NewRegistry(), AutoApprover{})
	f := newFlow(t, domain.TaskRequest{FileCountEstimate: 9})

	for _, v := range []constants.FlowVariant{
		constants.FlowVariantSmall, constants.FlowVariantMedium,
		constants.FlowVariantLarge, constants.FlowVariantGame,
	} {
		phases, err := PhasesFor(v)
		require.NoError(t, err)
		for _, p := range phases {
			if p.IsFanOut() {
				continue
			}
			assert.NoError(t, r.invocation(f, p).Validate(), "%s/%s", v, p.Name)
		}
	}
}

func TestPhasesFor_ReturnsFreshCopies(t *testing.T) {
	a, err := PhasesFor(constants.FlowVariantSmall)
	require.NoError(t, err)
	a[0].Name = "mutated"

	b, err := PhasesFor(constants.FlowVariantSmall)
	require.NoError(t, err)
	assert.Equal(t, PhaseRequirementAnalysis, b[0].Name)
}

func TestValidatePhases_Rejects(t *testing.T) {
	batch := Phase{Name: "plan", Role: domain.RoleWorkPlanner, Gate: constants.GateBatch, Description: "Plan the tasks"}
	ra := requirementAnalysis()

	tests := []struct {
		name   string
		phases []Phase
		err    error
	}{
		{"empty", nil, cadenceerrors.ErrInvalidPhaseList},
		{"no batch gate", []Phase{ra}, cadenceerrors.ErrInvalidPhaseList},
		{"duplicate name", []Phase{ra, ra, batch}, cadenceerrors.ErrInvalidPhaseList},
		{"batch gate not last", []Phase{batch, ra}, cadenceerrors.ErrInvalidPhaseList},
		{"two batch gates", []Phase{ra, {Name: "first", Role: domain.RoleWorkPlanner, Gate: constants.GateBatch}, batch}, cadenceerrors.ErrInvalidPhaseList},
		{"conditional batch gate", []Phase{ra, {Name: "plan", Role: domain.RoleWorkPlanner, Gate: constants.GateBatch, When: newProject}}, cadenceerrors.ErrInvalidPhaseList},
		{"review before producer", []Phase{ra, {Name: "review", Role: domain.RoleDocumentReviewer, Reviews: constants.DocumentPRD}, batch}, cadenceerrors.ErrInvalidPhaseList},
		{"unnamed phase", []Phase{{Role: domain.RoleWorkPlanner}, batch}, cadenceerrors.ErrInvalidPhaseList},
		{"unknown role", []Phase{{Name: "x", Role: "wizard"}, batch}, cadenceerrors.ErrUnknownRole},
		{"panel too small", []Phase{{Name: "x", Experts: []domain.Role{domain.RoleSecurityExpert, domain.RolePerformanceExpert}}, batch}, cadenceerrors.ErrFanOutSize},
		{"non-expert on panel", []Phase{{Name: "x", Experts: []domain.Role{domain.RoleSecurityExpert, domain.RolePerformanceExpert, domain.RoleWorkPlanner}}, batch}, cadenceerrors.ErrUnknownRole},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePhases(tc.phases)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestSelectVariant(t *testing.T) {
	tests := []struct {
		name  string
		req   domain.TaskRequest
		scale constants.Scale
		want  constants.FlowVariant
	}{
		{"small", domain.TaskRequest{}, constants.ScaleSmall, constants.FlowVariantSmall},
		{"medium", domain.TaskRequest{}, constants.ScaleMedium, constants.FlowVariantMedium},
		{"large", domain.TaskRequest{}, constants.ScaleLarge, constants.FlowVariantLarge},
		{"prototype forces small", domain.TaskRequest{Mode: constants.ModePrototype}, constants.ScaleLarge, constants.FlowVariantSmall},
		{"game wins", domain.TaskRequest{Game: true, Mode: constants.ModePrototype}, constants.ScaleSmall, constants.FlowVariantGame},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SelectVariant(tc.req, tc.scale))
		})
	}
}

func TestNewInstance(t *testing.T) {
	t.Run("rejects negative estimate", func(t *testing.T) {
		_, err := NewInstance(domain.TaskRequest{Description: "x", FileCountEstimate: -1}, planning.DefaultClassifier())
		require.ErrorIs(t, err, cadenceerrors.ErrInvalidEstimate)
	})

	t.Run("classifies and resolves", func(t *testing.T) {
		f := newFlow(t, domain.TaskRequest{FileCountEstimate: 4, Conditions: domain.Conditions{NewDependency: true}})
		assert.Regexp(t, `^flow-\d{8}-\d{6}-[0-9a-f]{6}$`, f.ID)
		assert.Equal(t, constants.ScaleMedium, f.Scale)
		assert.Equal(t, constants.FlowVariantMedium, f.Variant)
		assert.Equal(t, constants.RequirementRequired, f.Documents.Level(constants.DocumentADR))
		assert.Equal(t, []string{planning.TriggerNewDependency}, f.ADRTriggers)
		assert.Equal(t, 0, f.PhaseIndex)
		assert.Equal(t, constants.ModeFull, f.Request.Mode)
		assert.NotEmpty(t, f.Request.ID)
		assert.False(t, f.Halted)
	})
}

func TestSequencer_SkipsPhasesNotRequired(t *testing.T) {
	t.Run("small change", func(t *testing.T) {
		f := newFlow(t, domain.TaskRequest{FileCountEstimate: 1})
		s := seqFor(t, f)
		assert.Equal(t, []string{PhaseRequirementAnalysis, PhaseTaskPlanning}, activeNames(s, f))
		assert.Contains(t, s.Skipped(f), PhasePRDUpdate)
		assert.Contains(t, s.Skipped(f), PhaseADRCreation)
	})

	t.Run("small change with existing prd", func(t *testing.T) {
		f := newFlow(t, domain.TaskRequest{FileCountEstimate: 1, Conditions: domain.Conditions{ExistingPRD: true}})
		s := seqFor(t, f)
		assert.Equal(t, []string{PhaseRequirementAnalysis, PhasePRDUpdate, PhasePRDReview, PhaseTaskPlanning}, activeNames(s, f))
	})

	t.Run("medium flow without ui", func(t *testing.T) {
		f := newFlow(t, domain.TaskRequest{FileCountEstimate: 3})
		s := seqFor(t, f)
		assert.Equal(t, []string{
			PhaseRequirementAnalysis,
			PhaseDesignDocCreation, PhaseDesignDocReview, PhaseDesignSync,
			PhaseAcceptanceTestGeneration, PhaseWorkPlanning, PhaseTaskDecomposition,
		}, activeNames(s, f))
	})

	t.Run("large new project with ui and experts", func(t *testing.T) {
		f := newFlow(t, domain.TaskRequest{
			FileCountEstimate: 12, ExpertAnalysis: true,
			Conditions: domain.Conditions{UIInvolved: true, ArchitectureChange: true},
		})
		s := seqFor(t, f)
		names := activeNames(s, f)
		assert.Equal(t, []string{
			PhaseRequirementAnalysis, PhaseMarketAnalysis, PhaseExpertAnalysis,
			PhasePRDCreation, PhasePRDReview,
			PhaseUXRDCreation, PhaseUXRDReview,
			PhaseADRCreation, PhaseADRReview,
			PhaseDesignDocCreation, PhaseDesignDocReview, PhaseDesignSync,
			PhaseAcceptanceTestGeneration, PhaseWorkPlanning, PhaseTaskDecomposition,
		}, names)
	})

	t.Run("existing project skips market analysis", func(t *testing.T) {
		f := newFlow(t, domain.TaskRequest{FileCountEstimate: 12, Scenario: constants.ScenarioExisting})
		s := seqFor(t, f)
		assert.Contains(t, s.Skipped(f), PhaseMarketAnalysis)
		assert.Contains(t, s.Skipped(f), PhaseExpertAnalysis)
	})

	t.Run("game polish feature", func(t *testing.T) {
		f := newFlow(t, domain.TaskRequest{FileCountEstimate: 3, Game: true, FeatureType: constants.FeatureTypePolish})
		s := seqFor(t, f)
		names := activeNames(s, f)
		assert.Contains(t, names, PhasePolishPlanning)
		assert.NotContains(t, names, PhaseArtDirection)
		assert.Contains(t, names, PhaseGameDesign)
	})

	t.Run("small change with ui", func(t *testing.T) {
		f := newFlow(t, domain.TaskRequest{FileCountEstimate: 2, Conditions: domain.Conditions{UIInvolved: true}})
		require.Equal(t, constants.FlowVariantSmall, f.Variant)
		require.True(t, f.Documents.Requires(constants.DocumentUXRD))

		s := seqFor(t, f)
		assert.Equal(t, []string{
			PhaseRequirementAnalysis, PhaseUXRDCreation, PhaseUXRDReview, PhaseTaskPlanning,
		}, activeNames(s, f))
	})

	t.Run("prototype of a large change", func(t *testing.T) {
		f := newFlow(t, domain.TaskRequest{FileCountEstimate: 12, Mode: constants.ModePrototype})
		require.Equal(t, constants.FlowVariantSmall, f.Variant)

		s := seqFor(t, f)
		assert.Equal(t, []string{
			PhaseRequirementAnalysis, PhasePRDCreation, PhasePRDReview,
			PhaseDesignDocCreation, PhaseDesignDocReview, PhaseDesignSync,
			PhaseWorkPlanning, PhaseTaskPlanning,
		}, activeNames(s, f))
	})
}

func TestNewInstance_ProducesEveryRequiredDocument(t *testing.T) {
	conds := []domain.Conditions{
		{},
		{UIInvolved: true},
		{ExistingPRD: true},
		{NewDependency: true},
		{UIInvolved: true, ArchitectureChange: true, ExistingPRD: true},
	}
	for _, mode := range []constants.Mode{constants.ModeFull, constants.ModePrototype} {
		for _, game := range []bool{false, true} {
			for _, estimate := range []int{0, 1, 4, 12} {
				for _, c := range conds {
					f := newFlow(t, domain.TaskRequest{FileCountEstimate: estimate, Mode: mode, Game: game, Conditions: c})
					s := seqFor(t, f)
					assert.Empty(t, Uncovered(s.Phases(), f),
						"mode=%s game=%v estimate=%d conds=%+v", mode, game, estimate, c)
				}
			}
		}
	}
}

func TestUncovered(t *testing.T) {
	f := newFlow(t, domain.TaskRequest{FileCountEstimate: 2, Conditions: domain.Conditions{UIInvolved: true}})

	withoutUXRD := []Phase{requirementAnalysis(), {Name: PhaseTaskPlanning, Role: domain.RoleWorkPlanner, Gate: constants.GateBatch}}
	assert.Equal(t, []constants.DocumentKind{constants.DocumentUXRD}, Uncovered(withoutUXRD, f))

	s := seqFor(t, f)
	assert.Empty(t, Uncovered(s.Phases(), f))

	ev := uncoveredEscalation(f, Uncovered(withoutUXRD, f))
	require.NoError(t, ev.Validate())
	assert.Equal(t, constants.EscalationDocumentUncovered, ev.Kind)
	assert.Equal(t, f.ID, ev.FlowID)
	assert.Equal(t, "uxrd", ev.Payload["documents"])
	assert.Contains(t, ev.What, "uxrd")
}

func TestAdvance_StopPointDoesNotAdvance(t *testing.T) {
	f := newFlow(t, domain.TaskRequest{FileCountEstimate: 1})
	s := seqFor(t, f)

	next, d, err := s.Advance(f, completed())
	require.NoError(t, err)
	assert.True(t, d.GateReached)
	assert.Equal(t, 0, next.PhaseIndex)
	assert.Equal(t, PhaseRequirementAnalysis, next.PendingGate)
	require.Len(t, next.History, 1)

	_, _, err = s.Advance(next, completed())
	require.ErrorIs(t, err, cadenceerrors.ErrGatePending)

	resumed, d, err := s.ResumeAfterApproval(next, domain.Approve())
	require.NoError(t, err)
	assert.Empty(t, resumed.PendingGate)
	assert.Equal(t, indexOf(t, s, PhaseTaskPlanning), d.Next)
	assert.Equal(t, d.Next, resumed.PhaseIndex)
	assert.False(t, resumed.BatchApproved)
}

func TestAdvance_DoesNotChangeInput(t *testing.T) {
	f := newFlow(t, domain.TaskRequest{FileCountEstimate: 1})
	s := seqFor(t, f)
	before := f.Clone()

	_, _, err := s.Advance(f, domain.StructuredResponse{Status: constants.ResponseCompleted, ArtifactPath: "docs/notes.md"})
	require.NoError(t, err)
	assert.Equal(t, before, f)
}

func TestAdvance_EscalatesOnEscalationAndBlocked(t *testing.T) {
	tests := []struct {
		name string
		resp domain.StructuredResponse
		kind constants.EscalationKind
	}{
		{"escalation needed", domain.StructuredResponse{Status: constants.ResponseEscalationNeeded, Reason: "scope unclear"}, constants.EscalationExplicit},
		{"blocked", domain.StructuredResponse{Status: constants.ResponseBlocked, Reason: "missing api key"}, constants.EscalationBlocked},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFlow(t, domain.TaskRequest{FileCountEstimate: 1})
			s := seqFor(t, f)

			next, d, err := s.Advance(f, tc.resp)
			require.NoError(t, err)
			require.NotNil(t, d.Escalation)
			assert.Equal(t, tc.kind, d.Escalation.Kind)
			assert.Equal(t, tc.resp.Reason, d.Escalation.Why)
			require.NoError(t, d.Escalation.Validate())
			assert.Equal(t, f.PhaseIndex, next.PhaseIndex)
			assert.Empty(t, next.PendingGate)
			require.Len(t, next.Escalations, 1)
		})
	}
}

func TestAdvance_ReviewRevisionIsBounded(t *testing.T) {
	f := newFlow(t, domain.TaskRequest{FileCountEstimate: 3})
	s := seqFor(t, f)
	creation := indexOf(t, s, PhaseDesignDocCreation)
	review := indexOf(t, s, PhaseDesignDocReview)
	f.PhaseIndex = creation

	for i := 1; i <= constants.MaxReviewIterations; i++ {
		var d Decision
		var err error
		f, d, err = s.Advance(f, completed())
		require.NoError(t, err)
		require.Equal(t, review, d.Next)

		f, d, err = s.Advance(f, needsRevision("missing error handling"))
		require.NoError(t, err)
		assert.True(t, d.Revision)
		assert.Equal(t, creation, d.Next)
		assert.Equal(t, i, f.RevisionCount(PhaseDesignDocReview))
	}

	f, d, err := s.Advance(f, completed())
	require.NoError(t, err)
	require.Equal(t, review, d.Next)

	f, d, err = s.Advance(f, needsRevision("still missing error handling"))
	require.NoError(t, err)
	require.NotNil(t, d.Escalation)
	assert.Equal(t, constants.EscalationRevisionLimit, d.Escalation.Kind)
	assert.Equal(t, review, f.PhaseIndex)
	assert.Equal(t, "still missing error handling", d.Escalation.Why)
	assert.Equal(t, fmt.Sprint(constants.MaxReviewIterations), d.Escalation.Payload["iterations"])

	// A human resolved the escalation and resumed: the review loop is bounded afresh.
	assert.Zero(t, f.RevisionCount(PhaseDesignDocReview))
	f, d, err = s.Advance(f, needsRevision("one more case"))
	require.NoError(t, err)
	assert.Nil(t, d.Escalation)
	assert.True(t, d.Revision)
	assert.Equal(t, creation, d.Next)
	assert.Equal(t, 1, f.RevisionCount(PhaseDesignDocReview))
}

func TestAdvance_ApprovalResetsRevisionCounter(t *testing.T) {
	f := newFlow(t, domain.TaskRequest{FileCountEstimate: 3})
	s := seqFor(t, f)
	f.PhaseIndex = indexOf(t, s, PhaseDesignDocReview)

	f, _, err := s.Advance(f, needsRevision("typo"))
	require.NoError(t, err)
	require.Equal(t, 1, f.RevisionCount(PhaseDesignDocReview))

	f, _, err = s.Advance(f, completed())
	require.NoError(t, err)
	f, d, err := s.Advance(f, domain.StructuredResponse{Decision: domain.DecisionApproved})
	require.NoError(t, err)
	assert.Equal(t, indexOf(t, s, PhaseDesignSync), d.Next)
	assert.Equal(t, 0, f.RevisionCount(PhaseDesignDocReview))
}

func TestAdvance_DesignSyncConflictsLoopToDesignDoc(t *testing.T) {
	f := newFlow(t, domain.TaskRequest{FileCountEstimate: 3})
	s := seqFor(t, f)
	f.PhaseIndex = indexOf(t, s, PhaseDesignSync)

	_, d, err := s.Advance(f, domain.StructuredResponse{
		SyncStatus: constants.SyncConflictsFound, TotalConflicts: 1, Conflicts: []string{"port differs"},
	})
	require.NoError(t, err)
	assert.True(t, d.Revision)
	assert.Equal(t, indexOf(t, s, PhaseDesignDocCreation), d.Next)
}

func TestResumeAfterApproval_RejectionLoopsAndEscalates(t *testing.T) {
	f := newFlow(t, domain.TaskRequest{FileCountEstimate: 1, Conditions: domain.Conditions{ExistingPRD: true}})
	s := seqFor(t, f)
	update := indexOf(t, s, PhasePRDUpdate)
	f.PhaseIndex = update

	var d Decision
	var err error
	for i := 0; i <= constants.MaxReviewIterations; i++ {
		f, _, err = s.Advance(f, completed())
		require.NoError(t, err)
		f, d, err = s.Advance(f, domain.StructuredResponse{Decision: domain.DecisionApproved})
		require.NoError(t, err)
		require.True(t, d.GateReached)

		f, d, err = s.ResumeAfterApproval(f, domain.Reject("wrong persona"))
		require.NoError(t, err)
		if i < constants.MaxReviewIterations {
			assert.True(t, d.Revision)
			assert.Equal(t, update, f.PhaseIndex)
		}
	}
	require.NotNil(t, d.Escalation)
	assert.Equal(t, constants.EscalationRevisionLimit, d.Escalation.Kind)
	assert.Equal(t, "wrong persona", d.Escalation.Why)
}

func TestResumeAfterApproval_BatchGate(t *testing.T) {
	f := newFlow(t, domain.TaskRequest{FileCountEstimate: 1})
	s := seqFor(t, f)
	f.PhaseIndex = indexOf(t, s, PhaseTaskPlanning)

	_, _, err := s.ResumeAfterApproval(f, domain.Approve())
	require.ErrorIs(t, err, cadenceerrors.ErrNoPendingGate)

	plan := []domain.PlannedTask{{ID: "task-01", Title: "Add button"}}
	f, d, err := s.Advance(f, domain.StructuredResponse{Status: constants.ResponseCompleted, Tasks: plan})
	require.NoError(t, err)
	require.True(t, d.GateReached)
	assert.Equal(t, plan, f.Plan)
	assert.False(t, f.BatchApproved)

	done, d, err := s.ResumeAfterApproval(f, domain.Approve())
	require.NoError(t, err)
	assert.True(t, d.Halted())
	assert.True(t, done.Halted)
	assert.True(t, done.BatchApproved)

	_, _, err = s.Advance(done, completed())
	require.ErrorIs(t, err, cadenceerrors.ErrFlowHalted)

	rejected, d, err := s.ResumeAfterApproval(f, domain.Reject("split task"))
	require.NoError(t, err)
	assert.True(t, d.Revision)
	assert.False(t, rejected.BatchApproved)
	assert.Equal(t, f.PhaseIndex, rejected.PhaseIndex)
}

func TestPendingApproval_ResolvesOnce(t *testing.T) {
	p := RequestApproval("flow-1", requirementAnalysis(), "docs/prd/x.md")
	assert.False(t, p.IsBatch())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, p.Resolve(domain.Reject("no")))
	require.ErrorIs(t, p.Resolve(domain.Approve()), cadenceerrors.ErrApprovalResolved)

	d, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, d.Approved())
	assert.Equal(t, "no", d.Reason)
	assert.False(t, d.DecidedAt.IsZero())
}

func TestChannelApprover(t *testing.T) {
	ca := NewChannelApprover(1)
	p := RequestApproval("flow-1", requirementAnalysis(), "")

	require.NoError(t, ca.Approve(context.Background(), p))
	got := <-ca.Pending()
	require.NoError(t, got.Resolve(domain.Approve()))

	d, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, d.Approved())
}

func smallRegistry(plan []domain.PlannedTask) *collaborator.Registry {
	return collaborator.NewRegistry().MustRegister(
		collaborator.NewScripted(domain.RoleRequirementAnalyzer, []collaborator.Step{{Response: completed()}}, collaborator.WithRepeatLast()),
		collaborator.Respond(domain.RoleWorkPlanner, domain.StructuredResponse{Status: constants.ResponseCompleted, Tasks: plan}),
	)
}

func TestRunner_RunToBatchApproval(t *testing.T) {
	f := newFlow(t, domain.TaskRequest{FileCountEstimate: 1})
	plan := []domain.PlannedTask{{ID: "task-01", Title: "Add button"}}
	events := &eventLog{}
	r := NewRunner(seqFor(t, f), smallRegistry(plan), AutoApprover{}, WithObserver(events))

	done, err := r.Run(context.Background(), f)
	require.NoError(t, err)
	assert.True(t, done.Halted)
	assert.True(t, done.BatchApproved)
	assert.Equal(t, plan, done.Plan)

	assert.Equal(t, 2, events.count(constants.EventGateRequested))
	assert.Equal(t, 2, events.count(constants.EventGateResolved))
	assert.Equal(t, 2, events.count(constants.EventPhaseEntered))
	assert.Equal(t, 1, events.count(constants.EventFlowHalted))
}

func TestRunner_StepStopsAtGate(t *testing.T) {
	f := newFlow(t, domain.TaskRequest{FileCountEstimate: 1})
	r := NewRunner(seqFor(t, f), smallRegistry(nil), AutoApprover{})

	next, d, err := r.Step(context.Background(), f)
	require.NoError(t, err)
	assert.True(t, d.GateReached)
	assert.Equal(t, PhaseRequirementAnalysis, next.PendingGate)
	assert.Equal(t, 0, next.PhaseIndex)
}

func TestRunner_ApproverRejectionRerunsPhase(t *testing.T) {
	f := newFlow(t, domain.TaskRequest{FileCountEstimate: 1})
	analyzer := collaborator.NewScripted(domain.RoleRequirementAnalyzer, []collaborator.Step{{Response: completed()}}, collaborator.WithRepeatLast())
	reg := collaborator.NewRegistry().MustRegister(analyzer,
		collaborator.Respond(domain.RoleWorkPlanner, completed()))

	var calls int
	approver := ApproverFunc(func(_ context.Context, p *PendingApproval) error {
		calls++
		if calls == 1 {
			return p.Resolve(domain.Reject("scale looks wrong"))
		}
		return p.Resolve(domain.Approve())
	})

	done, err := NewRunner(seqFor(t, f), reg, approver).Run(context.Background(), f)
	require.NoError(t, err)
	assert.True(t, done.BatchApproved)
	assert.Len(t, analyzer.Calls(), 2)
}

func TestRunner_RevisionLimitStopsInvocations(t *testing.T) {
	f := newFlow(t, domain.TaskRequest{FileCountEstimate: 3})
	reviewer := collaborator.Respond(domain.RoleDocumentReviewer,
		needsRevision("a"), needsRevision("b"), needsRevision("c"))
	designer := collaborator.NewScripted(domain.RoleTechnicalDesigner,
		[]collaborator.Step{{Response: domain.StructuredResponse{Status: constants.ResponseCompleted, ArtifactPath: "docs/design/logout.md"}}},
		collaborator.WithRepeatLast())
	reg := collaborator.NewRegistry().MustRegister(
		collaborator.Respond(domain.RoleRequirementAnalyzer, completed()), reviewer, designer)
	events := &eventLog{}

	last, err := NewRunner(seqFor(t, f), reg, AutoApprover{}, WithObserver(events)).Run(context.Background(), f)
	require.ErrorIs(t, err, cadenceerrors.ErrEscalated)

	ev, ok := domain.AsEscalation(err)
	require.True(t, ok)
	assert.Equal(t, constants.EscalationRevisionLimit, ev.Kind)
	assert.Len(t, reviewer.Calls(), 3)
	assert.Len(t, designer.Calls(), 3)
	assert.Equal(t, 2, events.count(constants.EventRevision))
	assert.Equal(t, 1, events.count(constants.EventEscalation))
	assert.Equal(t, []string{"docs/design/logout.md"}, last.Artifacts)
	require.Len(t, last.Escalations, 1)
}

func TestRunner_RevisionPromptCarriesIssues(t *testing.T) {
	f := newFlow(t, domain.TaskRequest{FileCountEstimate: 3})
	s := seqFor(t, f)
	f.PhaseIndex = indexOf(t, s, PhaseDesignDocReview)
	f, _, err := s.Advance(f, needsRevision("handle timeouts"))
	require.NoError(t, err)

	phase, err := s.Current(f)
	require.NoError(t, err)
	inv := NewRunner(s, collaborator.NewRegistry(), AutoApprover{}).invocation(f, phase)
	assert.Contains(t, inv.Constraints, "Address review issues: handle timeouts")
	assert.Equal(t, f.ID, inv.FlowID)
}

func TestRunner_EscalatesWithoutInvoking(t *testing.T) {
	tests := []struct {
		name string
		reg  *collaborator.Registry
		kind constants.EscalationKind
	}{
		{
			name: "missing collaborator",
			reg:  collaborator.NewRegistry(),
			kind: constants.EscalationCollaboratorMissing,
		},
		{
			name: "collaborator failure",
			reg: collaborator.NewRegistry().MustRegister(collaborator.NewScripted(domain.RoleRequirementAnalyzer,
				[]collaborator.Step{{Fail: "model overloaded"}})),
			kind: constants.EscalationCollaboratorFailure,
		},
		{
			name: "ownership violation",
			reg: collaborator.NewRegistry().MustRegister(collaborator.Respond(domain.RoleRequirementAnalyzer,
				domain.StructuredResponse{Status: constants.ResponseCompleted, ArtifactPath: "docs/prd/logout.md"})),
			kind: constants.EscalationOwnershipViolation,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFlow(t, domain.TaskRequest{FileCountEstimate: 1})
			next, d, err := NewRunner(seqFor(t, f), tc.reg, AutoApprover{}).Step(context.Background(), f)
			require.ErrorIs(t, err, cadenceerrors.ErrEscalated)
			require.NotNil(t, d.Escalation)
			assert.Equal(t, tc.kind, d.Escalation.Kind)
			assert.Equal(t, f.PhaseIndex, next.PhaseIndex)
			assert.Empty(t, next.History)
			require.Len(t, next.Escalations, 1)
			require.NoError(t, next.Escalations[0].Validate())
		})
	}
}

func TestRunner_ContextCanceled(t *testing.T) {
	f := newFlow(t, domain.TaskRequest{FileCountEstimate: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	next, _, err := NewRunner(seqFor(t, f), smallRegistry(nil), AutoApprover{}).Step(ctx, f)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, f, next)
}

func TestRunner_ExpertAnalysis(t *testing.T) {
	req := domain.TaskRequest{FileCountEstimate: 10, ExpertAnalysis: true}

	t.Run("joins panel", func(t *testing.T) {
		f := newFlow(t, req)
		s := seqFor(t, f)
		f.PhaseIndex = indexOf(t, s, PhaseExpertAnalysis)
		reg := collaborator.NewRegistry()
		for _, role := range defaultExperts() {
			reg.MustRegister(collaborator.Respond(role, domain.StructuredResponse{Status: constants.ResponseCompleted, Summary: role.String()}))
		}

		next, d, err := NewRunner(s, reg, AutoApprover{}).Step(context.Background(), f)
		require.NoError(t, err)
		assert.Equal(t, indexOf(t, s, PhasePRDCreation), d.Next)
		require.Len(t, next.History, 1)
		assert.Contains(t, next.History[0].Response.Summary, "3 experts")
	})

	t.Run("stalled expert escalates", func(t *testing.T) {
		f := newFlow(t, req)
		s := seqFor(t, f)
		f.PhaseIndex = indexOf(t, s, PhaseExpertAnalysis)
		release := make(chan struct{})
		defer close(release)

		reg := collaborator.NewRegistry().MustRegister(
			collaborator.Respond(domain.RoleSecurityExpert, completed()),
			collaborator.Respond(domain.RolePerformanceExpert, completed()),
			collaborator.NewFunc(domain.RoleMaintainabilityExpert, func(context.Context, domain.Invocation) (domain.StructuredResponse, error) {
				<-release
				return completed(), nil
			}),
		)

		next, d, err := NewRunner(s, reg, AutoApprover{}, WithExpertTimeout(20*time.Millisecond)).Step(context.Background(), f)
		require.ErrorIs(t, err, cadenceerrors.ErrEscalated)
		require.NotNil(t, d.Escalation)
		assert.Equal(t, constants.EscalationExpertStalled, d.Escalation.Kind)
		assert.Empty(t, next.History)
	})
}

func TestFanOut(t *testing.T) {
	inv := domain.Invocation{Description: "Gather expert analysis perspectives", Prompt: "p"}
	panel := func() []collaborator.Collaborator {
		var out []collaborator.Collaborator
		for _, role := range defaultExperts() {
			out = append(out, collaborator.Respond(role, domain.StructuredResponse{Status: constants.ResponseCompleted, Summary: role.String()}))
		}
		return out
	}

	t.Run("returns responses in expert order", func(t *testing.T) {
		got, err := FanOut(context.Background(), panel(), inv, time.Second)
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i, role := range defaultExperts() {
			assert.Equal(t, role.String(), got[i].Summary)
		}
	})

	t.Run("each expert is invoked with its own role", func(t *testing.T) {
		experts := panel()
		_, err := FanOut(context.Background(), experts, inv, time.Second)
		require.NoError(t, err)
		for _, c := range experts {
			calls := c.(*collaborator.Scripted).Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, c.Role(), calls[0].Role)
		}
	})

	t.Run("rejects panel size", func(t *testing.T) {
		_, err := FanOut(context.Background(), panel()[:2], inv, time.Second)
		require.ErrorIs(t, err, cadenceerrors.ErrFanOutSize)
	})

	t.Run("any failure returns no results", func(t *testing.T) {
		experts := panel()
		experts[1] = collaborator.NewScripted(domain.RolePerformanceExpert, []collaborator.Step{{Fail: "boom"}})
		got, err := FanOut(context.Background(), experts, inv, time.Second)
		require.Error(t, err)
		assert.Nil(t, got)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		experts := panel()
		experts[0] = collaborator.NewFunc(domain.RoleSecurityExpert, func(context.Context, domain.Invocation) (domain.StructuredResponse, error) {
			<-release
			return completed(), nil
		})

		start := time.Now()
		got, err := FanOut(context.Background(), experts, inv, 20*time.Millisecond)
		require.ErrorIs(t, err, cadenceerrors.ErrExpertTimeout)
		assert.Nil(t, got)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestSynthesize(t *testing.T) {
	t.Run("completed panel", func(t *testing.T) {
		got := Synthesize([]domain.StructuredResponse{completed(), completed(), completed()})
		assert.Equal(t, constants.ResponseCompleted, got.Outcome())
		assert.Contains(t, got.Summary, "3 experts")
	})

	t.Run("escalation wins over block and revision", func(t *testing.T) {
		got := Synthesize([]domain.StructuredResponse{
			needsRevision("x"),
			{Status: constants.ResponseBlocked, Reason: "blocked"},
			{Status: constants.ResponseEscalationNeeded, Reason: "legal review"},
		})
		assert.Equal(t, constants.ResponseEscalationNeeded, got.Outcome())
		assert.Equal(t, "blocked", got.Reason)
		assert.Equal(t, []string{"x"}, got.Issues)
	})

	t.Run("revision wins over completion", func(t *testing.T) {
		got := Synthesize([]domain.StructuredResponse{completed(), needsRevision("y"), completed()})
		assert.Equal(t, constants.ResponseNeedsRevision, got.Outcome())
	})
}
