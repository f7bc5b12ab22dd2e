package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/flow"
	"github.com/mrz1836/cadence/internal/planning"
)

func smallFlow(t *testing.T) (domain.FlowInstance, *flow.Sequencer) {
	t.Helper()
	f, err := flow.NewInstance(domain.TaskRequest{Description: "Add a logout button", FileCountEstimate: 1}, planning.DefaultClassifier())
	require.NoError(t, err)
	seq, err := flow.ForFlow(f)
	require.NoError(t, err)
	return f, seq
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "Quality Not Converged", Humanize("quality_not_converged"))
	assert.Equal(t, "Per Task", Humanize("per-task"))
	assert.Empty(t, Humanize(""))
}

func TestTaskStatusIcon(t *testing.T) {
	statuses := []constants.TaskStatus{
		constants.TaskStatusPending,
		constants.TaskStatusExecuting,
		constants.TaskStatusReviewNeeded,
		constants.TaskStatusQualityChecking,
		constants.TaskStatusQualityChecked,
		constants.TaskStatusCommitted,
		constants.TaskStatusEscalated,
	}
	seen := make(map[string]bool)
	for _, s := range statuses {
		icon := TaskStatusIcon(s)
		assert.NotEqual(t, "?", icon, s)
		assert.False(t, seen[icon], "icon %s reused for %s", icon, s)
		seen[icon] = true
	}
	assert.Equal(t, "?", TaskStatusIcon("bogus"))
	assert.Equal(t, ColorError, TaskStatusColor(constants.TaskStatusEscalated))
	assert.Equal(t, ColorSuccess, TaskStatusColor(constants.TaskStatusCommitted))
}

func TestRenderTaskStatus_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, "◆ committed", RenderTaskStatus(constants.TaskStatusCommitted))
}

func TestTTYOutput(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	out := NewOutput(&buf, FormatText)

	out.Success("flow complete")
	out.Warning("stop point")
	out.Info("phase entered")
	out.Error(fmt.Errorf("resume: %w", cadenceerrors.ErrFlowNotFound))

	text := buf.String()
	assert.Contains(t, text, "✓ flow complete")
	assert.Contains(t, text, "⚠ stop point")
	assert.Contains(t, text, "ℹ phase entered")
	assert.Contains(t, text, "✗ resume: ")
}

func TestTTYOutput_Table(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	out := NewTTYOutput(&buf)

	out.Table([]string{"ID", "TITLE"}, [][]string{{"T01", "Add button"}, {"T02-long", "Wire handler"}})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Equal(t, strings.Index(lines[0], "TITLE"), strings.Index(lines[1], "Add button"))
	assert.Equal(t, strings.Index(lines[1], "Add button"), strings.Index(lines[2], "Wire handler"))
}

func TestTTYOutput_TableNoHeaders(t *testing.T) {
	var buf bytes.Buffer
	NewTTYOutput(&buf).Table(nil, [][]string{{"x"}})
	assert.Empty(t, buf.String())
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(&buf, FormatJSON)

	out.Success("done")
	out.Table([]string{"ID", "STATUS"}, [][]string{{"T01", "committed"}, {"T02"}})
	out.Error(errors.New("boom"))

	dec := json.NewDecoder(&buf)

	var msg map[string]string
	require.NoError(t, dec.Decode(&msg))
	assert.Equal(t, map[string]string{"type": "success", "message": "done"}, msg)

	var table struct {
		Type    string              `json:"type"`
		Headers []string            `json:"headers"`
		Rows    []map[string]string `json:"rows"`
	}
	require.NoError(t, dec.Decode(&table))
	assert.Equal(t, "table", table.Type)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "committed", table.Rows[0]["STATUS"])
	assert.NotContains(t, table.Rows[1], "STATUS")

	var errOut map[string]string
	require.NoError(t, dec.Decode(&errOut))
	assert.Equal(t, "error", errOut["type"])
	assert.Equal(t, "boom", errOut["message"])
}

func TestEscalationMarkdown(t *testing.T) {
	ev := domain.NewEscalation(constants.EscalationRepeatedError, "same error three times", "lint keeps failing", "record a root cause").
		WithPayload("signature", "E001")
	ev.Phase = "execution"
	ev.TaskID = "T02"

	md := EscalationMarkdown(ev)

	assert.Contains(t, md, "## Escalation: Repeated Error")
	assert.Contains(t, md, "phase `execution`, task `T02`")
	assert.Contains(t, md, "**What:** same error three times")
	assert.Contains(t, md, "**Why:** lint keeps failing")
	assert.Contains(t, md, "**Next step:** record a root cause")
	assert.Contains(t, md, "- signature: E001")
}

func TestReportMarkdown(t *testing.T) {
	r := &domain.CompletionReport{
		FlowID:            "flow-1",
		Scale:             constants.ScaleSmall,
		Variant:           constants.FlowVariantSmall,
		CommitStrategy:    constants.CommitPerTask,
		DocumentsProduced: []string{"work-plan"},
		TasksCompleted:    []string{"T01"},
		CommitsMade:       []string{"c001"},
		Halted:            true,
	}

	md := ReportMarkdown(r)
	assert.Contains(t, md, "# Flow flow-1 complete")
	assert.Contains(t, md, "per-task commits")
	assert.Contains(t, md, "## Commits\n\n- c001")
	assert.NotContains(t, md, "## Checks passed")
	assert.NotContains(t, md, "## Escalations")

	r.Halted = false
	r.Escalations = []domain.EscalationEvent{domain.NewEscalation(constants.EscalationUserStop, "stopped by user", "", "")}
	md = ReportMarkdown(r)
	assert.Contains(t, md, "# Flow flow-1 stopped")
	assert.Contains(t, md, "- **user_stop**: stopped by user")
}

func TestRenderMarkdown_FallsBackToText(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	out := RenderMarkdown("plain words", 40)
	assert.Contains(t, out, "plain words")
}

func TestPhaseRows_FreshFlow(t *testing.T) {
	f, seq := smallFlow(t)
	rows := PhaseRows(seq, f)
	phases := seq.Phases()
	require.Len(t, rows, len(phases))

	for i, p := range phases {
		switch {
		case !p.Active(f):
			assert.Equal(t, PhaseSkipped, rows[i].State, p.Name)
		case i == f.PhaseIndex:
			assert.Equal(t, PhaseCurrent, rows[i].State, p.Name)
		default:
			assert.Equal(t, PhasePending, rows[i].State, p.Name)
		}
	}
	assert.Equal(t, flow.PhaseRequirementAnalysis, rows[f.PhaseIndex].Name)
	assert.Equal(t, constants.GateStop.String(), rows[f.PhaseIndex].Gate)
}

func TestPhaseRows_PendingGate(t *testing.T) {
	f, seq := smallFlow(t)
	f.PendingGate = seq.Phases()[f.PhaseIndex].Name

	rows := PhaseRows(seq, f)
	assert.Equal(t, PhaseWaiting, rows[f.PhaseIndex].State)
}

func TestPhaseRows_Halted(t *testing.T) {
	f, seq := smallFlow(t)
	active := seq.Active(f)
	require.GreaterOrEqual(t, len(active), 2)

	// Halted in front of the last active phase.
	last := active[len(active)-1].Name
	for i, p := range seq.Phases() {
		if p.Name == last {
			f.PhaseIndex = i
		}
	}
	f.Halted = true

	for _, r := range PhaseRows(seq, f) {
		if r.Name == last {
			assert.Equal(t, PhaseSkipped, r.State)
		}
		if r.Name == flow.PhaseRequirementAnalysis {
			assert.Equal(t, PhaseDone, r.State)
		}
	}

	f.BatchApproved = true
	for _, r := range PhaseRows(seq, f) {
		if r.Name == last {
			assert.Equal(t, PhaseDone, r.State)
		}
	}
}

func TestRenderPhases(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	f, seq := smallFlow(t)
	var buf bytes.Buffer
	require.NoError(t, RenderPhases(&buf, seq, f))

	text := buf.String()
	assert.Contains(t, text, "● "+flow.PhaseRequirementAnalysis)
	assert.Contains(t, text, fmt.Sprintf("0/%d phases", len(seq.Active(f))))
}

func TestTaskRows(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	f := domain.FlowInstance{Tasks: []domain.Task{
		{ID: "T01", Title: "Add button", Status: constants.TaskStatusCommitted, CommitRef: "c001"},
		{ID: "T02", Title: "Wire handler", Status: constants.TaskStatusPending, DependsOn: []string{"T01"}},
	}}

	rows := TaskRows(f)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"T01", "Add button", "◆ committed", "", "c001"}, rows[0])
	assert.Equal(t, "T01", rows[1][3])
	assert.Len(t, TaskHeaders(), len(rows[0]))
	assert.Contains(t, TaskProgress(f, 20), "1/2 tasks")
	assert.Empty(t, TaskProgress(domain.FlowInstance{}, 20))
}

func TestProgressBar_Clamps(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	pb := NewProgressBar(10)
	assert.Equal(t, pb.Render(1), pb.Render(2))
	assert.Equal(t, pb.Render(0), pb.Render(-1))
}

func TestSelect_RequiresOptions(t *testing.T) {
	_, err := Select(context.Background(), "pick", nil, nil)
	require.ErrorIs(t, err, cadenceerrors.ErrEmptyValue)
}

func TestPrompts_NonInteractive(t *testing.T) {
	if IsInteractive() {
		t.Skip("needs a non-interactive terminal")
	}
	ctx := context.Background()

	_, err := Select(ctx, "pick", StrategyOptions(), nil)
	require.ErrorIs(t, err, cadenceerrors.ErrInteractiveRequired)

	_, err = Confirm(ctx, "sure?", true, nil)
	require.ErrorIs(t, err, cadenceerrors.ErrInteractiveRequired)

	_, err = StrategyPrompt{}.ChooseStrategy(ctx, domain.FlowInstance{})
	require.ErrorIs(t, err, cadenceerrors.ErrInteractiveRequired)

	f, seq := smallFlow(t)
	pending := flow.RequestApproval(f.ID, seq.Phases()[f.PhaseIndex], "")
	var buf bytes.Buffer
	err = GateApprover{Out: &buf}.Approve(ctx, pending)
	require.ErrorIs(t, err, cadenceerrors.ErrInteractiveRequired)
	assert.Contains(t, buf.String(), "Stop point: "+flow.PhaseRequirementAnalysis)
}

func TestStrategyOptions(t *testing.T) {
	opts := StrategyOptions()
	known := constants.CommitStrategies()
	require.Len(t, opts, len(known))
	for i, o := range opts {
		assert.Equal(t, known[i].String(), o.Value)
	}
}

func TestEventPrinter(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	p := NewEventPrinter(&buf)
	ctx := context.Background()
	esc := domain.NewEscalation(constants.EscalationUserStop, "stopped", "", "")

	p.OnEvent(ctx, domain.FlowEvent{Type: constants.EventFlowStarted, FlowID: "f1", Detail: "small"})
	p.OnEvent(ctx, domain.FlowEvent{Type: constants.EventGateRequested, Phase: flow.PhaseRequirementAnalysis, Detail: "stop"})
	p.OnEvent(ctx, domain.FlowEvent{Type: constants.EventCommit, TaskID: "T01", Detail: "c001"})
	p.OnEvent(ctx, domain.FlowEvent{Type: constants.EventEscalation, Escalation: &esc})
	p.OnEvent(ctx, domain.FlowEvent{Type: constants.EventEscalation})
	p.OnEvent(ctx, domain.FlowEvent{Type: constants.EventPhaseSkipped, Phase: "prd"})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "flow f1 started (small)")
	assert.Contains(t, lines[1], "waits for approval")
	assert.Contains(t, lines[2], "commit c001 (T01)")
	assert.Contains(t, lines[3], "user_stop: stopped")
}
