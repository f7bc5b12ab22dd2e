package planning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
)

func TestClassify_Thresholds(t *testing.T) {
	tests := []struct {
		n        int
		expected constants.Scale
	}{
		{0, constants.ScaleSmall},
		{1, constants.ScaleSmall},
		{2, constants.ScaleSmall},
		{3, constants.ScaleMedium},
		{4, constants.ScaleMedium},
		{5, constants.ScaleMedium},
		{6, constants.ScaleLarge},
		{10, constants.ScaleLarge},
		{1 << 30, constants.ScaleLarge},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, Classify(tc.n), "n=%d", tc.n)
	}
}

func TestClassify_MonotonicAndPure(t *testing.T) {
	rank := map[constants.Scale]int{
		constants.ScaleSmall:  0,
		constants.ScaleMedium: 1,
		constants.ScaleLarge:  2,
	}

	prev := Classify(0)
	for n := 1; n <= 200; n++ {
		got := Classify(n)
		assert.Equal(t, got, Classify(n), "classify must be deterministic for n=%d", n)
		assert.GreaterOrEqual(t, rank[got], rank[prev], "classify must be monotonic at n=%d", n)
		prev = got
	}
}

func TestClassifier_CustomThresholds(t *testing.T) {
	c := Classifier{SmallMax: 1, MediumMax: 10}

	assert.Equal(t, constants.ScaleSmall, c.Classify(1))
	assert.Equal(t, constants.ScaleMedium, c.Classify(2))
	assert.Equal(t, constants.ScaleMedium, c.Classify(10))
	assert.Equal(t, constants.ScaleLarge, c.Classify(11))
}

func TestResolve_MediumWithUI(t *testing.T) {
	scale := Classify(4)
	require.Equal(t, constants.ScaleMedium, scale)

	set := Resolve(scale, domain.Conditions{UIInvolved: true, ArchitectureChange: false})

	assert.Equal(t, constants.RequirementUpdateIfExists, set.Level(constants.DocumentPRD))
	assert.Equal(t, constants.RequirementRequired, set.Level(constants.DocumentUXRD))
	assert.Equal(t, constants.RequirementNotNeeded, set.Level(constants.DocumentADR))
	assert.Equal(t, constants.RequirementRequired, set.Level(constants.DocumentDesignDoc))
	assert.Equal(t, constants.RequirementRequired, set.Level(constants.DocumentWorkPlan))
}

func TestResolve_LargeWithArchitectureChange(t *testing.T) {
	scale := Classify(10)
	require.Equal(t, constants.ScaleLarge, scale)

	set := Resolve(scale, domain.Conditions{ArchitectureChange: true, ExistingPRD: false})

	assert.Equal(t, constants.RequirementRequired, set.Level(constants.DocumentPRD))
	assert.Equal(t, constants.RequirementRequired, set.Level(constants.DocumentADR))
	assert.Equal(t, constants.RequirementRequired, set.Level(constants.DocumentDesignDoc))
	assert.Equal(t, constants.RequirementRequired, set.Level(constants.DocumentWorkPlan))
	assert.Equal(t, constants.RequirementNotNeeded, set.Level(constants.DocumentUXRD))
}

func TestResolve_LargeWithExistingPRD(t *testing.T) {
	set := Resolve(constants.ScaleLarge, domain.Conditions{ExistingPRD: true})
	assert.Equal(t, constants.RequirementUpdateIfExists, set.Level(constants.DocumentPRD))
}

func TestResolve_ADROverrideAtEveryScale(t *testing.T) {
	triggers := []struct {
		name  string
		conds domain.Conditions
	}{
		{"architecture change", domain.Conditions{ArchitectureChange: true}},
		{"new dependency", domain.Conditions{NewDependency: true}},
		{"data flow change", domain.Conditions{DataFlowChange: true}},
		{"nested contracts", domain.Conditions{NestedContractDepth: 3}},
		{"multi location", domain.Conditions{MultiLocationContractChange: 3}},
		{"processing reorder", domain.Conditions{ProcessingReorderSteps: 3}},
		{"concurrent states", domain.Conditions{ConcurrentStates: 3}},
		{"async ops", domain.Conditions{ConcurrentAsyncOps: 5}},
	}
	scales := []constants.Scale{constants.ScaleSmall, constants.ScaleMedium, constants.ScaleLarge}

	for _, tc := range triggers {
		for _, scale := range scales {
			t.Run(tc.name+"/"+scale.String(), func(t *testing.T) {
				set := Resolve(scale, tc.conds)
				assert.Equal(t, constants.RequirementRequired, set.Level(constants.DocumentADR))
			})
		}
	}
}

func TestResolve_BelowThresholdsNoADR(t *testing.T) {
	conds := domain.Conditions{
		NestedContractDepth:         2,
		MultiLocationContractChange: 2,
		ProcessingReorderSteps:      2,
		ConcurrentStates:            2,
		ConcurrentAsyncOps:          4,
	}

	assert.Empty(t, ADRTriggers(conds))
	assert.Equal(t, constants.RequirementNotNeeded, Resolve(constants.ScaleMedium, conds).Level(constants.DocumentADR))
}

func TestResolve_SmallBase(t *testing.T) {
	set := Resolve(constants.ScaleSmall, domain.Conditions{})

	assert.Equal(t, constants.RequirementUpdateIfExists, set.Level(constants.DocumentPRD))
	for _, kind := range []constants.DocumentKind{constants.DocumentUXRD, constants.DocumentADR, constants.DocumentDesignDoc, constants.DocumentWorkPlan} {
		assert.Equal(t, constants.RequirementNotNeeded, set.Level(kind), kind.String())
	}
}

func TestResolve_Idempotent(t *testing.T) {
	conds := domain.Conditions{UIInvolved: true, NewDependency: true, ConcurrentStates: 4}

	for _, scale := range []constants.Scale{constants.ScaleSmall, constants.ScaleMedium, constants.ScaleLarge} {
		first := Resolve(scale, conds)
		second := Resolve(scale, conds)
		assert.Equal(t, first, second)
	}
}

func TestResolve_NoConditionalLeft(t *testing.T) {
	for _, scale := range []constants.Scale{constants.ScaleSmall, constants.ScaleMedium, constants.ScaleLarge} {
		for _, level := range Resolve(scale, domain.Conditions{}) {
			assert.NotEqual(t, constants.RequirementConditional, level)
		}
	}
}

func TestADRTriggers_Order(t *testing.T) {
	got := ADRTriggers(domain.Conditions{DataFlowChange: true, ArchitectureChange: true, ConcurrentAsyncOps: 9})
	assert.Equal(t, []string{TriggerArchitectureChange, TriggerDataFlowChange, TriggerConcurrentAsyncOps}, got)
}

func TestSupersede(t *testing.T) {
	old := domain.TaskRequest{
		ID:                "req-old",
		Description:       "Add a settings page",
		FileCountEstimate: 2,
		Conditions:        domain.Conditions{UIInvolved: true},
	}

	next := Supersede(old, domain.RequirementInput{
		Text:              "Also add OAuth login with a new provider library",
		FileCountEstimate: 7,
		Conditions:        domain.Conditions{NewDependency: true},
	}, "req-new")

	assert.Equal(t, "req-new", next.ID)
	assert.Equal(t, "req-old", next.Supersedes)
	assert.Equal(t, "Add a settings page\n\nAlso add OAuth login with a new provider library", next.Description)
	assert.Equal(t, 7, next.FileCountEstimate)
	assert.True(t, next.Conditions.UIInvolved)
	assert.True(t, next.Conditions.NewDependency)

	assert.Equal(t, "req-old", old.ID)
	assert.Equal(t, "Add a settings page", old.Description)
}

func TestSupersede_KeepsLargerEstimate(t *testing.T) {
	old := domain.TaskRequest{ID: "a", Description: "x", FileCountEstimate: 8}
	next := Supersede(old, domain.RequirementInput{Text: "y", FileCountEstimate: 3}, "b")
	assert.Equal(t, 8, next.FileCountEstimate)
}
