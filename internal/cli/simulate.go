package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/execution"
	"github.com/mrz1836/cadence/internal/flow"
	"github.com/mrz1836/cadence/internal/git"
	"github.com/mrz1836/cadence/internal/orchestrator"
	"github.com/mrz1836/cadence/internal/scenario"
	"github.com/mrz1836/cadence/internal/signal"
	"github.com/mrz1836/cadence/internal/tui"
)

// simulateFlags holds the flags of the simulate command.
type simulateFlags struct {
	interactive bool
	repo        string
	strategy    string
	metrics     bool
}

// AddSimulateCommand adds the simulate command to the root command.
func AddSimulateCommand(parent *cobra.Command, a *app) {
	sf := &simulateFlags{}
	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Run a complete flow against scripted collaborators",
		Long: `Drive a flow from task request to completion report using the scripted
collaborator replies and stop-point answers of a scenario file.

The flow snapshot is saved after every step and every event is journaled,
so a stopped or escalated flow can be inspected with 'cadence status' and
'cadence journal' and continued with 'cadence resume'.

Commits are simulated unless --repo points at a git repository.
Press Ctrl+C once to stop after the current step, twice to exit at once.

Examples:
  cadence simulate scenarios/small.yaml
  cadence simulate scenarios/small.yaml --strategy manual
  cadence simulate scenarios/small.yaml --interactive --repo .`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.Context(), cmd.OutOrStdout(), a, sf, args[0])
		},
	}
	cmd.Flags().BoolVarP(&sf.interactive, "interactive", "i", false, "answer stop points and the commit strategy yourself")
	cmd.Flags().StringVar(&sf.repo, "repo", "", "git repository to commit into (default: simulated commits)")
	cmd.Flags().StringVar(&sf.strategy, "strategy", "", "commit strategy (per-task|per-phase|per-feature|manual)")
	cmd.Flags().BoolVar(&sf.metrics, "metrics", false, "print flow metrics when the run ends")
	parent.AddCommand(cmd)
}

func runSimulate(ctx context.Context, w io.Writer, a *app, sf *simulateFlags, path string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	file, err := scenario.Load(path)
	if err != nil {
		return errors.NewExitCode2Error(err)
	}
	if sf.strategy != "" {
		file.CommitStrategy = constants.CommitStrategy(sf.strategy)
	}

	logger := GetLogger()
	svc, err := openServices(a.config(), logger)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	o, err := newScenarioOrchestrator(a, svc, file, sf, w)
	if err != nil {
		return err
	}

	h := signal.NewHandler(ctx, o.Stop)
	defer h.Stop()

	logger.Info().Str("scenario", file.Name).Str("path", path).Msg("starting simulation")
	res, runErr := o.Start(h.Context(), file.Request)

	if err := writeResult(w, a, res, runErr); err != nil {
		return err
	}
	if sf.metrics && a.flags.Output == OutputText {
		if err := svc.writeMetrics(w); err != nil {
			return err
		}
	}
	return runErr
}

// newScenarioOrchestrator wires the scripted collaborators of file, the
// persistent services and the terminal into one orchestrator.
func newScenarioOrchestrator(a *app, svc *services, file *scenario.File, sf *simulateFlags, w io.Writer) (*orchestrator.Orchestrator, error) {
	registry, _, err := file.Registry()
	if err != nil {
		return nil, errors.NewExitCode2Error(err)
	}

	settings := orchestrator.SettingsFromConfig(a.config())
	if file.CommitStrategy != "" {
		settings.DefaultStrategy = file.CommitStrategy
	}

	var approver flow.Approver = file.Approver()
	opts := svc.options(settings)
	if sf.interactive {
		approver = tui.GateApprover{Out: w}
		opts = append(opts, orchestrator.WithStrategyChooser(tui.StrategyPrompt{}))
	}
	opts = append(opts,
		orchestrator.WithCommitter(newCommitter(sf.repo, svc)),
		orchestrator.WithImpactReporter(file.ImpactReporter()),
		orchestrator.WithRootCauseAnalyst(file.RootCauseAnalyst()),
	)
	if a.flags.Output == OutputText && !a.flags.Quiet {
		opts = append(opts, orchestrator.WithObserver(tui.NewEventPrinter(w)))
	}
	return orchestrator.New(registry, approver, opts...), nil
}

// newCommitter returns a git committer for repo, or a simulated one.
func newCommitter(repo string, svc *services) execution.Committer {
	if repo != "" {
		return git.NewCommitter(repo, git.WithLogger(svc.logger))
	}
	return &simulatedCommitter{}
}

// simulatedCommitter hands out sequential commit references without
// touching a repository.
type simulatedCommitter struct {
	mu sync.Mutex
	n  int
}

// Commit implements execution.Committer.
func (c *simulatedCommitter) Commit(ctx context.Context, req domain.CommitRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return fmt.Sprintf("sim%04d", c.n), nil
}

// resultJSON is the machine-readable outcome of a flow command.
type resultJSON struct {
	Flow       domain.FlowInstance      `json:"flow"`
	Report     *domain.CompletionReport `json:"report,omitempty"`
	Escalation *domain.EscalationEvent  `json:"escalation,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

// writeResult prints the outcome of a flow command: the completion report,
// or the escalation the flow stopped on.
func writeResult(w io.Writer, a *app, res orchestrator.Result, runErr error) error {
	ev, escalated := domain.AsEscalation(runErr)

	if a.flags.Output == OutputJSON {
		out := resultJSON{Flow: res.Flow, Report: res.Report}
		if escalated {
			out.Escalation = &ev
		}
		if runErr != nil {
			out.Error = runErr.Error()
		}
		return tui.NewJSONOutput(w).JSON(out)
	}

	out := tui.NewTTYOutput(w)
	switch {
	case escalated:
		_, _ = fmt.Fprint(w, tui.RenderEscalation(ev))
		out.Info(fmt.Sprintf("Flow %s saved. Resume with 'cadence resume %s'.", res.Flow.ID, res.Flow.ID))
	case res.Report != nil:
		_, _ = fmt.Fprint(w, tui.RenderReport(res.Report))
		if len(res.Report.PendingCommits) > 0 {
			out.Info(fmt.Sprintf("Commit the pending tasks with 'cadence commit %s'.", res.Flow.ID))
		}
	case runErr == nil && res.Flow.ID != "":
		out.Success("Flow " + res.Flow.ID + " saved")
	}
	return nil
}
