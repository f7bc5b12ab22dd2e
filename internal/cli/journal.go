package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/journal"
	"github.com/mrz1836/cadence/internal/tui"
)

// EventReader reads journaled events and escalations.
// Used for dependency injection in tests.
type EventReader interface {
	Events(ctx context.Context, flowID string, sinceSeq int64) ([]journal.Entry, error)
	Escalations(ctx context.Context, flowID string) ([]domain.EscalationEvent, error)
}

type journalFlags struct {
	since       int64
	escalations bool
}

// AddJournalCommand adds the journal command to the root command.
func AddJournalCommand(parent *cobra.Command, a *app) {
	jf := &journalFlags{}
	cmd := &cobra.Command{
		Use:   "journal [flow-id]",
		Short: "Show the event journal of a flow",
		Long: `Print every journaled event of a flow in order: phase entries and
completions, revisions, stop points, task transitions, commits and
escalations.

With --escalations, print the escalations instead. Leaving out the flow ID
with --escalations lists the escalations of every flow.

Examples:
  cadence journal flow-20260101-120000-abc123
  cadence journal flow-20260101-120000-abc123 --since 12
  cadence journal --escalations --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flowID := ""
			if len(args) == 1 {
				flowID = args[0]
			}
			if flowID == "" && !jf.escalations {
				return errors.NewExitCode2Error(fmt.Errorf("%w: a flow ID is required unless --escalations is set", errors.ErrInvalidArgument))
			}
			j, err := openJournal(a.config(), GetLogger())
			if err != nil {
				return err
			}
			defer func() { _ = j.Close() }()
			return runJournal(cmd.Context(), cmd.OutOrStdout(), a.flags.Output, j, flowID, jf)
		},
	}
	cmd.Flags().Int64Var(&jf.since, "since", 0, "only events after this sequence number")
	cmd.Flags().BoolVar(&jf.escalations, "escalations", false, "list escalations instead of events")
	parent.AddCommand(cmd)
}

func runJournal(ctx context.Context, w io.Writer, output string, r EventReader, flowID string, jf *journalFlags) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	tui.CheckNoColor()

	if jf.escalations {
		return writeEscalations(ctx, w, output, r, flowID)
	}

	entries, err := r.Events(ctx, flowID, jf.since)
	if err != nil {
		return err
	}
	out := tui.NewOutput(w, output)
	if output == OutputJSON {
		return out.JSON(entriesJSON(entries))
	}
	if len(entries) == 0 {
		out.Info("No events journaled for " + flowID)
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(e.Seq, 10),
			e.Event.At.Local().Format(time.TimeOnly),
			e.Event.Type.String(),
			e.Event.Phase,
			e.Event.TaskID,
			eventSummary(e.Event),
		})
	}
	out.Table([]string{"SEQ", "AT", "EVENT", "PHASE", "TASK", "DETAIL"}, rows)
	return nil
}

func writeEscalations(ctx context.Context, w io.Writer, output string, r EventReader, flowID string) error {
	evs, err := r.Escalations(ctx, flowID)
	if err != nil {
		return err
	}
	out := tui.NewOutput(w, output)
	if output == OutputJSON {
		if evs == nil {
			evs = []domain.EscalationEvent{}
		}
		return out.JSON(evs)
	}
	if len(evs) == 0 {
		out.Success("No escalations")
		return nil
	}
	rows := make([][]string, 0, len(evs))
	for _, ev := range evs {
		rows = append(rows, []string{ev.FlowID, ev.Kind.String(), ev.Phase, ev.TaskID, ev.What})
	}
	out.Table([]string{"FLOW", "KIND", "PHASE", "TASK", "WHAT"}, rows)
	return nil
}

type entryJSON struct {
	Seq   int64            `json:"seq"`
	Event domain.FlowEvent `json:"event"`
}

func entriesJSON(entries []journal.Entry) []entryJSON {
	out := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryJSON{Seq: e.Seq, Event: e.Event})
	}
	return out
}

// eventSummary is the detail column of one journaled event.
func eventSummary(ev domain.FlowEvent) string {
	switch {
	case ev.Escalation != nil:
		return ev.Escalation.Kind.String() + ": " + ev.Escalation.What
	case ev.From != "" || ev.To != "":
		s := ev.From + " → " + ev.To
		if ev.Detail != "" {
			s += " (" + ev.Detail + ")"
		}
		return s
	default:
		return ev.Detail
	}
}
