package metrics

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
)

func TestMetrics_OnEvent(t *testing.T) {
	ctx := context.Background()
	m := New(prometheus.NewRegistry())

	m.OnEvent(ctx, domain.FlowEvent{Type: constants.EventFlowStarted, Detail: "standard"})
	m.OnEvent(ctx, domain.FlowEvent{Type: constants.EventPhaseCompleted, Phase: "analysis"})
	m.OnEvent(ctx, domain.FlowEvent{Type: constants.EventPhaseCompleted, Phase: "analysis"})
	m.OnEvent(ctx, domain.FlowEvent{Type: constants.EventRevision, Phase: "prd-review"})
	m.OnEvent(ctx, domain.FlowEvent{Type: constants.EventGateResolved, Detail: "rejected: too vague"})
	m.OnEvent(ctx, domain.FlowEvent{Type: constants.EventGateResolved, Detail: "approved"})
	m.OnEvent(ctx, domain.FlowEvent{Type: constants.EventCommit})

	assert.InDelta(t, 1, testutil.ToFloat64(m.FlowsStarted.WithLabelValues("standard")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.PhasesCompleted.WithLabelValues("analysis")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Revisions.WithLabelValues("prd-review")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GatesResolved.WithLabelValues("rejected")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GatesResolved.WithLabelValues("approved")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Commits), 0)
}

func TestMetrics_EscalationsCountedOnce(t *testing.T) {
	ctx := context.Background()
	m := New(prometheus.NewRegistry())
	ev := domain.NewEscalation(constants.EscalationReviewLimit, "rejected 3 times", "flaky", "Decide")

	m.Notify(ctx, ev)
	m.OnEvent(ctx, domain.FlowEvent{Type: constants.EventEscalation, Escalation: &ev})
	m.Notify(ctx, domain.NewEscalation(constants.EscalationReviewLimit, "again", "flaky", "Decide"))

	assert.InDelta(t, 2, testutil.ToFloat64(m.Escalations.WithLabelValues("review_limit")), 0)
}

func TestMetrics_TaskDuration(t *testing.T) {
	ctx := context.Background()
	m := New(prometheus.NewRegistry())
	start := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	transition := func(task, to string, at time.Time) {
		m.OnEvent(ctx, domain.FlowEvent{Type: constants.EventTaskTransition, FlowID: "f", TaskID: task, To: to, At: at})
	}
	transition("t1", "executing", start)
	transition("t1", "executing", start.Add(time.Minute))
	transition("t1", "quality_checked", start.Add(2*time.Minute))
	transition("t2", "escalated", start)

	assert.Equal(t, 1, testutil.CollectAndCount(m.TaskDuration))
	assert.InDelta(t, 2, testutil.ToFloat64(m.TaskTransitions.WithLabelValues("executing")), 0)
	assert.Empty(t, m.started)
}

func TestWriteText(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := New(reg)
	start := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	m.OnEvent(ctx, domain.FlowEvent{Type: constants.EventTaskTransition, FlowID: "f", TaskID: "t1", To: "executing", At: start})
	m.OnEvent(ctx, domain.FlowEvent{Type: constants.EventTaskTransition, FlowID: "f", TaskID: "t1", To: "quality_checked", At: start.Add(3 * time.Second)})
	m.OnEvent(ctx, domain.FlowEvent{Type: constants.EventCommit})

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, reg))
	text := buf.String()

	assert.Contains(t, text, "# HELP cadence_commits_total Total number of commits recorded by the execution loop")
	assert.Contains(t, text, "# TYPE cadence_commits_total counter")
	assert.Contains(t, text, "cadence_commits_total 1\n")
	assert.Contains(t, text, "# TYPE cadence_task_duration_seconds histogram")
	assert.Contains(t, text, `cadence_task_duration_seconds_bucket{outcome="quality_checked",le="2"} 0`)
	assert.Contains(t, text, `cadence_task_duration_seconds_bucket{outcome="quality_checked",le="4"} 1`)
	assert.Contains(t, text, `cadence_task_duration_seconds_bucket{outcome="quality_checked",le="+Inf"} 1`)
	assert.Contains(t, text, `cadence_task_duration_seconds_sum{outcome="quality_checked"} 3`)
	assert.Contains(t, text, `cadence_task_duration_seconds_count{outcome="quality_checked"} 1`)
	assert.Contains(t, text, `cadence_task_transitions_total{to="executing"} 1`)
}
