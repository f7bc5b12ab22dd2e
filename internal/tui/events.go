package tui

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
)

// EventPrinter writes a one-line summary of each flow event as it happens.
// It satisfies orchestrator.Observer. Safe for concurrent use.
type EventPrinter struct {
	mu     sync.Mutex
	w      io.Writer
	styles *OutputStyles
}

// NewEventPrinter creates a printer writing to w.
func NewEventPrinter(w io.Writer) *EventPrinter {
	CheckNoColor()
	return &EventPrinter{w: w, styles: NewOutputStyles()}
}

// OnEvent implements the flow and execution observers.
func (p *EventPrinter) OnEvent(_ context.Context, ev domain.FlowEvent) {
	line := p.format(ev)
	if line == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.w, line)
}

func (p *EventPrinter) format(ev domain.FlowEvent) string {
	switch ev.Type {
	case constants.EventFlowStarted:
		return p.styles.Info.Render(fmt.Sprintf("▶ flow %s started (%s)", ev.FlowID, ev.Detail))
	case constants.EventPhaseEntered:
		return fmt.Sprintf("  ● %s → %s", ev.Phase, ev.Role)
	case constants.EventPhaseCompleted:
		return p.styles.Success.Render(fmt.Sprintf("  ✓ %s %s", ev.Phase, ev.Detail))
	case constants.EventRevision:
		return p.styles.Warning.Render(fmt.Sprintf("  ↺ %s revises %s: %s", ev.Phase, ev.To, ev.Detail))
	case constants.EventGateRequested:
		return p.styles.Warning.Render(fmt.Sprintf("  ⏸ %s waits for approval (%s)", ev.Phase, ev.Detail))
	case constants.EventGateResolved:
		return fmt.Sprintf("  ⏵ %s %s", ev.Phase, ev.Detail)
	case constants.EventTaskTransition:
		return fmt.Sprintf("    %s %s → %s", ev.TaskID, ev.From, RenderTaskStatus(constants.TaskStatus(ev.To)))
	case constants.EventCommit:
		return p.styles.Success.Render(fmt.Sprintf("    ◆ commit %s (%s)", ev.Detail, ev.TaskID))
	case constants.EventImpactReport:
		return p.styles.Dim.Render(fmt.Sprintf("    impact report for %s: %s", ev.TaskID, ev.Detail))
	case constants.EventRootCauseRecord:
		return p.styles.Dim.Render(fmt.Sprintf("    root cause for %s: %s", ev.TaskID, ev.Detail))
	case constants.EventEscalation:
		if ev.Escalation == nil {
			return ""
		}
		return EscalationStyle(ev.Escalation.Kind).Render(fmt.Sprintf("  ⚠ %s: %s", ev.Escalation.Kind, ev.Escalation.What))
	case constants.EventFlowSuperseded:
		return p.styles.Warning.Render(fmt.Sprintf("↪ flow %s superseded by %s", ev.FlowID, ev.To))
	case constants.EventFlowHalted:
		return p.styles.Info.Render(fmt.Sprintf("■ flow %s finished its phases", ev.FlowID))
	default:
		return ""
	}
}
