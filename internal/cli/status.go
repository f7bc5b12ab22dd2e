package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/execution"
	"github.com/mrz1836/cadence/internal/flow"
	"github.com/mrz1836/cadence/internal/tui"
)

// FlowLister lists and loads stored flows.
// Used for dependency injection in tests.
type FlowLister interface {
	List(ctx context.Context) ([]domain.FlowInstance, error)
	Get(ctx context.Context, id string) (domain.FlowInstance, error)
}

// Flow states shown by the status command.
const (
	stateSuperseded       = "superseded"
	stateAwaitingApproval = "awaiting approval"
	stateDesigned         = "designed"
	stateComplete         = "complete"
	stateAwaitingCommit   = "awaiting commit"
	stateEscalated        = "escalated"
	stateStopped          = "stopped"
	stateInProgress       = "in progress"
)

// AddStatusCommand adds the status command to the root command.
func AddStatusCommand(parent *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "status [flow-id]",
		Short: "Show stored flows, or the phases and tasks of one flow",
		Long: `Without an argument, list every stored flow, newest first.
With a flow ID, show where that flow stands: its phases, its stop point,
its tasks and the escalations it raised.

Examples:
  cadence status
  cadence status flow-20260101-120000-abc123
  cadence status --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := openFlowStore(a.config())
			if err != nil {
				return fmt.Errorf("failed to open flow store: %w", err)
			}
			if len(args) == 0 {
				return runStatusList(cmd.Context(), cmd.OutOrStdout(), a.flags.Output, fs)
			}
			return runStatusFlow(cmd.Context(), cmd.OutOrStdout(), a.flags.Output, fs, args[0])
		},
	}
	parent.AddCommand(cmd)
}

// flowState summarizes where f stands.
func flowState(f domain.FlowInstance) string {
	switch {
	case f.SupersededBy != "":
		return stateSuperseded
	case f.PendingGate != "":
		return stateAwaitingApproval
	case f.Halted && !f.BatchApproved:
		return stateDesigned
	}

	if len(f.Tasks) > 0 {
		done, pending := 0, 0
		for _, t := range f.Tasks {
			switch {
			case t.Status == constants.TaskStatusEscalated:
				return stateEscalated
			case t.Status == constants.TaskStatusQualityChecked:
				pending++
				done++
			case execution.IsDone(t.Status):
				done++
			}
		}
		if done == len(f.Tasks) {
			if pending > 0 {
				return stateAwaitingCommit
			}
			return stateComplete
		}
	}

	if n := len(f.Escalations); n > 0 && f.Escalations[n-1].Kind == constants.EscalationUserStop {
		return stateStopped
	}
	return stateInProgress
}

// flowPhase names the phase f is at, or the execution phase once designed.
func flowPhase(f domain.FlowInstance) string {
	if f.BatchApproved {
		return execution.ExecutionPhase
	}
	if f.Halted {
		return "-"
	}
	seq, err := flow.ForFlow(f)
	if err != nil {
		return ""
	}
	p, err := seq.Current(f)
	if err != nil {
		return ""
	}
	return p.Name
}

type statusRow struct {
	ID      string                `json:"id"`
	Variant constants.FlowVariant `json:"variant"`
	Scale   constants.Scale       `json:"scale"`
	Phase   string                `json:"phase"`
	State   string                `json:"state"`
	Updated time.Time             `json:"updated_at"`
}

func runStatusList(ctx context.Context, w io.Writer, output string, flows FlowLister) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	tui.CheckNoColor()

	list, err := flows.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list flows: %w", err)
	}

	rows := make([]statusRow, 0, len(list))
	for _, f := range list {
		rows = append(rows, statusRow{
			ID:      f.ID,
			Variant: f.Variant,
			Scale:   f.Scale,
			Phase:   flowPhase(f),
			State:   flowState(f),
			Updated: f.UpdatedAt,
		})
	}

	if output == OutputJSON {
		return tui.NewJSONOutput(w).JSON(rows)
	}
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "No flows. Run 'cadence simulate <scenario.yaml>' to start one.")
		return nil
	}

	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		table = append(table, []string{r.ID, r.Variant.String(), r.Scale.String(), r.Phase, r.State, r.Updated.Local().Format(time.DateTime)})
	}
	tui.NewTTYOutput(w).Table([]string{"FLOW", "VARIANT", "SCALE", "PHASE", "STATE", "UPDATED"}, table)
	return nil
}

type flowStatusJSON struct {
	Flow  domain.FlowInstance `json:"flow"`
	State string              `json:"state"`
	Phase string              `json:"phase"`
}

func runStatusFlow(ctx context.Context, w io.Writer, output string, flows FlowLister, id string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	tui.CheckNoColor()

	f, err := flows.Get(ctx, id)
	if err != nil {
		return err
	}

	if output == OutputJSON {
		return tui.NewJSONOutput(w).JSON(flowStatusJSON{Flow: f, State: flowState(f), Phase: flowPhase(f)})
	}

	out := tui.NewTTYOutput(w)
	out.Info(fmt.Sprintf("%s: %s scale, %s flow, %s", f.ID, f.Scale, f.Variant, flowState(f)))
	_, _ = fmt.Fprintf(w, "%s\n\n", f.Request.Description)

	seq, err := flow.ForFlow(f)
	if err != nil {
		return err
	}
	if err := tui.RenderPhases(w, seq, f); err != nil {
		return err
	}

	if f.PendingGate != "" {
		out.Warning("Waiting for approval at " + f.PendingGate)
	}
	if f.SupersededBy != "" {
		out.Warning("Superseded by " + f.SupersededBy)
	}

	if rows := tui.TaskRows(f); len(rows) > 0 {
		_, _ = fmt.Fprintln(w)
		out.Table(tui.TaskHeaders(), rows)
		if bar := tui.TaskProgress(f, 30); bar != "" {
			_, _ = fmt.Fprintln(w, bar)
		}
	}

	for _, ev := range f.Escalations {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprint(w, tui.RenderEscalation(ev))
	}
	return nil
}
