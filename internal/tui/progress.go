package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/execution"
	"github.com/mrz1836/cadence/internal/flow"
)

// ProgressBar wraps the bubbles progress bar with cadence styling.
type ProgressBar struct {
	bar progress.Model
}

// NewProgressBar creates a static progress bar. Colors follow ColorPrimary,
// NO_COLOR terminals get a solid gray fill.
func NewProgressBar(width int) *ProgressBar {
	opts := []progress.Option{progress.WithWidth(width), progress.WithoutPercentage()}
	if HasColorSupport() {
		opts = append(opts, progress.WithScaledGradient("#0087AF", "#00D7FF"))
	} else {
		opts = append(opts, progress.WithSolidFill("#808080"))
	}
	return &ProgressBar{bar: progress.New(opts...)}
}

// Render returns the bar filled to percent, clamped to 0..1.
func (pb *ProgressBar) Render(percent float64) string {
	return pb.bar.ViewAs(min(max(percent, 0), 1))
}

// PhaseState is where a phase stands relative to the flow position.
type PhaseState string

// Phase states.
const (
	PhaseDone    PhaseState = "done"
	PhaseCurrent PhaseState = "current"
	PhaseWaiting PhaseState = "waiting"
	PhaseSkipped PhaseState = "skipped"
	PhasePending PhaseState = "pending"
)

// PhaseRow is one line of the phase overview.
type PhaseRow struct {
	Name  string
	Role  string
	Gate  string
	State PhaseState
}

// PhaseRows places every phase of seq relative to f.
func PhaseRows(seq *flow.Sequencer, f domain.FlowInstance) []PhaseRow {
	phases := seq.Phases()
	rows := make([]PhaseRow, 0, len(phases))
	for i, p := range phases {
		row := PhaseRow{Name: p.Name, Role: p.Role.String()}
		if p.Gate != constants.GateNone && p.Gate != "" {
			row.Gate = p.Gate.String()
		}
		if p.IsFanOut() {
			row.Role = fmt.Sprintf("%d experts", len(p.Experts))
		}
		switch {
		case !p.Active(f):
			row.State = PhaseSkipped
		case i < f.PhaseIndex || (f.Halted && f.BatchApproved):
			row.State = PhaseDone
		case f.Halted:
			// A design-only flow halts in front of its planning phases.
			row.State = PhaseSkipped
		case i == f.PhaseIndex && f.PendingGate == p.Name:
			row.State = PhaseWaiting
		case i == f.PhaseIndex:
			row.State = PhaseCurrent
		default:
			row.State = PhasePending
		}
		rows = append(rows, row)
	}
	return rows
}

// phaseIcon keeps icon and text redundant with color.
func phaseIcon(s PhaseState) (string, lipgloss.AdaptiveColor) {
	switch s {
	case PhaseDone:
		return "✓", ColorSuccess
	case PhaseCurrent:
		return "●", ColorPrimary
	case PhaseWaiting:
		return "⏸", ColorWarning
	case PhaseSkipped:
		return "–", ColorMuted
	default:
		return "○", ColorMuted
	}
}

// RenderPhases writes the phase overview of f with a completion bar.
func RenderPhases(w io.Writer, seq *flow.Sequencer, f domain.FlowInstance) error {
	rows := PhaseRows(seq, f)
	done, active := 0, 0
	for _, r := range rows {
		if r.State == PhaseSkipped {
			continue
		}
		active++
		if r.State == PhaseDone {
			done++
		}
	}

	var b strings.Builder
	for _, r := range rows {
		icon, color := phaseIcon(r.State)
		line := fmt.Sprintf("%s %-28s %-28s %s", icon, r.Name, r.Role, r.State)
		if r.Gate != "" {
			line += StyleDim.Render("  [" + r.Gate + "]")
		}
		if HasColorSupport() {
			line = lipgloss.NewStyle().Foreground(color).Render(line)
		}
		b.WriteString(line + "\n")
	}
	if active > 0 {
		fmt.Fprintf(&b, "\n%s %d/%d phases\n", NewProgressBar(30).Render(float64(done)/float64(active)), done, active)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// TaskRows returns table rows for the tasks of f in plan order.
func TaskRows(f domain.FlowInstance) [][]string {
	tasks := f.Tasks
	if len(tasks) == 0 {
		tasks = execution.TasksFromPlan(f.Plan)
	}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			t.ID,
			t.Title,
			RenderTaskStatus(t.Status),
			strings.Join(t.DependsOn, ","),
			t.CommitRef,
		})
	}
	return rows
}

// TaskHeaders are the column names for TaskRows.
func TaskHeaders() []string {
	return []string{"ID", "TITLE", "STATUS", "DEPENDS ON", "COMMIT"}
}

// TaskProgress renders the share of finished tasks as a bar with a count.
func TaskProgress(f domain.FlowInstance, width int) string {
	if len(f.Tasks) == 0 {
		return ""
	}
	done := 0
	for _, t := range f.Tasks {
		if execution.IsDone(t.Status) {
			done++
		}
	}
	return fmt.Sprintf("%s %d/%d tasks", NewProgressBar(width).Render(float64(done)/float64(len(f.Tasks))), done, len(f.Tasks))
}
