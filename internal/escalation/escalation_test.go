package escalation

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/flow"
	"github.com/mrz1836/cadence/internal/planning"
)

func TestRequirementChangeDetector_Detect(t *testing.T) {
	t.Parallel()

	d := NewRequirementChangeDetector()
	tests := []struct {
		text string
		want constants.ChangeCategory
		ok   bool
	}{
		{"Could you also add CSV export?", constants.ChangeNewFeature, true},
		{"We need a new feature for audit logs", constants.ChangeNewFeature, true},
		{"It must never store passwords in plain text", constants.ChangeNewConstraint, true},
		{"Responses have to be served within 200 ms", constants.ChangeNewConstraint, true},
		{"Please do it without external dependencies", constants.ChangeNewConstraint, true},
		{"Switch to PostgreSQL for the session store", constants.ChangeTechnicalRequirement, true},
		{"Use gRPC instead of REST", constants.ChangeTechnicalRequirement, true},
		{"Looks good, thanks", "", false},
		{"   ", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			t.Parallel()
			got, ok := d.Detect(tc.text)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got.Category)
			if ok {
				assert.NotEmpty(t, got.Match)
			}
		})
	}
}

func TestSignature_NormalizesVolatileParts(t *testing.T) {
	t.Parallel()

	a := Signature("store_test.go:42: expected 3, got 4")
	b := Signature("store_test.go:57:3:  expected 5,   got 6")
	assert.Equal(t, a, b)
	assert.Equal(t, Signature("panic at 0xc000123456"), Signature("panic at 0xc000abcdef"))
	assert.NotEqual(t, Signature("timeout"), Signature("permission denied"))
	assert.Empty(t, Signature("   "))
}

func TestRepeatedErrorWatcher(t *testing.T) {
	t.Parallel()

	w := NewRepeatedErrorWatcher(3)
	msg := "handler_test.go:12: nil pointer dereference"
	sig := Signature(msg)

	assert.Nil(t, w.Observe(msg))
	assert.Nil(t, w.Observe("handler_test.go:19: nil pointer dereference"))
	require.NoError(t, w.Allow(sig))

	ev := w.Observe(msg)
	require.NotNil(t, ev)
	assert.Equal(t, constants.EscalationRepeatedError, ev.Kind)
	assert.Equal(t, sig, ev.Payload["signature"])
	assert.Equal(t, "3", ev.Payload["occurrences"])
	require.NoError(t, ev.Validate())

	require.ErrorIs(t, w.Allow(sig), cadenceerrors.ErrRootCauseRequired)

	err := w.RecordRootCause(sig, "  ")
	require.ErrorIs(t, err, cadenceerrors.ErrRootCauseRequired)
	require.ErrorIs(t, err, cadenceerrors.ErrEmptyValue)
	require.ErrorIs(t, w.Allow(sig), cadenceerrors.ErrRootCauseRequired)

	require.NoError(t, w.RecordRootCause(sig, "docs/analysis/nil-handler.md"))
	require.NoError(t, w.Allow(sig))
	assert.Equal(t, 0, w.Count(msg))
	artifact, ok := w.RootCause(sig)
	assert.True(t, ok)
	assert.Equal(t, "docs/analysis/nil-handler.md", artifact)

	assert.Nil(t, w.Observe("different failure"))
}

func TestBreadthWatcher_Thresholds(t *testing.T) {
	t.Parallel()

	t.Run("files per task", func(t *testing.T) {
		t.Parallel()
		w := NewBreadthWatcher(BreadthLimits{})
		assert.Nil(t, w.ObserveFiles([]string{"a.go", "b.go", "./a.go"}))
		assert.Nil(t, w.ObserveFiles([]string{"c.go", "d.go"}))
		ev := w.ObserveFiles([]string{"e.go"})
		require.NotNil(t, ev)
		assert.Equal(t, constants.EscalationFileThreshold, ev.Kind)
		assert.True(t, ev.Kind.IsSoft())
		assert.Equal(t, "a.go,b.go,c.go,d.go,e.go", ev.Payload["files"])
		assert.Equal(t, ev, w.Pending())
	})

	t.Run("same file edits", func(t *testing.T) {
		t.Parallel()
		w := NewBreadthWatcher(BreadthLimits{})
		assert.Nil(t, w.ObserveEdit("a.go"))
		assert.Nil(t, w.ObserveEdit("a.go"))
		ev := w.ObserveEdit("a.go")
		require.NotNil(t, ev)
		assert.Equal(t, constants.EscalationSameFileThreshold, ev.Kind)
	})

	t.Run("edit invocations", func(t *testing.T) {
		t.Parallel()
		w := NewBreadthWatcher(BreadthLimits{})
		for _, f := range []string{"a.go", "b.go", "c.go", "d.go"} {
			assert.Nil(t, w.ObserveEdit(f))
		}
		ev := w.ObserveEdit("e.go")
		require.NotNil(t, ev)
		assert.Equal(t, constants.EscalationEditThreshold, ev.Kind)
	})

	t.Run("acknowledge requires report and resets", func(t *testing.T) {
		t.Parallel()
		w := NewBreadthWatcher(BreadthLimits{SameFileEdits: 2})
		assert.Nil(t, w.ObserveEdit("a.go"))
		require.NotNil(t, w.ObserveEdit("a.go"))

		require.ErrorIs(t, w.AcknowledgeImpact(""), cadenceerrors.ErrImpactReportRequired)
		require.NotNil(t, w.Pending())

		require.NoError(t, w.AcknowledgeImpact("only the session package is affected"))
		assert.Nil(t, w.Pending())
		assert.Nil(t, w.ObserveEdit("a.go"))
		assert.Equal(t, []string{"only the session package is affected"}, w.Reports())
	})
}

func TestUserStop(t *testing.T) {
	t.Parallel()

	s := NewUserStop()
	assert.False(t, s.IsStopped())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Stop("ctrl+c")
		}()
	}
	wg.Wait()

	<-s.Stopped()
	assert.True(t, s.IsStopped())
	assert.Equal(t, "ctrl+c", s.Reason())
}

func TestMonitor_RaiseNotifiesAndRecords(t *testing.T) {
	t.Parallel()

	var got []domain.EscalationEvent
	m := NewMonitor(DefaultLimits(), WithNotifier(NotifierFunc(func(_ context.Context, ev domain.EscalationEvent) {
		got = append(got, ev)
	})))

	_, err := m.Raise(context.Background(), domain.EscalationEvent{Kind: constants.EscalationExplicit})
	require.ErrorIs(t, err, cadenceerrors.ErrInvalidEscalation)
	assert.Empty(t, m.Raised())

	ev := domain.NewEscalation(constants.EscalationUserStop, "stopped", "user pressed ctrl+c", "Resume when ready")
	_, err = m.Raise(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, []domain.EscalationEvent{ev}, got)
	assert.Equal(t, []domain.EscalationEvent{ev}, m.Raised())
}

func TestMonitor_CheckRequirement(t *testing.T) {
	t.Parallel()

	m := NewMonitor(DefaultLimits())
	f := domain.FlowInstance{ID: "flow-1"}

	ev, err := m.CheckRequirement(context.Background(), f, domain.RequirementInput{Text: "thanks!"})
	require.NoError(t, err)
	assert.Nil(t, ev)

	ev, err = m.CheckRequirement(context.Background(), f, domain.RequirementInput{Text: "Can we also support SSO?"})
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, constants.EscalationRequirementChange, ev.Kind)
	assert.Equal(t, "flow-1", ev.FlowID)
	assert.Equal(t, constants.ChangeNewFeature.String(), ev.Payload["category"])
	assert.Len(t, m.Raised(), 1)
}

func TestReset_ReplansFromTheTop(t *testing.T) {
	t.Parallel()

	old, err := flow.NewInstance(domain.TaskRequest{Description: "Fix typo in footer", FileCountEstimate: 1}, planning.DefaultClassifier())
	require.NoError(t, err)
	old.PhaseIndex = 4
	old.BatchApproved = true
	before := old.Clone()

	next, err := Reset(old, domain.RequirementInput{
		Text:              "Also add a settings page with a new theme picker",
		FileCountEstimate: 7,
		Conditions:        domain.Conditions{UIInvolved: true},
	}, planning.DefaultClassifier())
	require.NoError(t, err)

	assert.Equal(t, before, old)
	assert.NotEqual(t, old.ID, next.ID)
	assert.Equal(t, old.Request.ID, next.Request.Supersedes)
	assert.Equal(t, 0, next.PhaseIndex)
	assert.False(t, next.BatchApproved)
	assert.Equal(t, constants.ScaleLarge, next.Scale)
	assert.Equal(t, constants.FlowVariantLarge, next.Variant)
	assert.Equal(t, constants.RequirementRequired, next.Documents.Level(constants.DocumentUXRD))
	assert.Equal(t, "Fix typo in footer\n\nAlso add a settings page with a new theme picker", next.Request.Description)
}
