package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/orchestrator"
	"github.com/mrz1836/cadence/internal/scenario"
	"github.com/mrz1836/cadence/internal/signal"
)

type resumeFlags struct {
	simulateFlags

	scenario string
	task     string
	reason   string
}

// AddResumeCommand adds the resume command to the root command.
func AddResumeCommand(parent *cobra.Command, a *app) {
	rf := &resumeFlags{}
	cmd := &cobra.Command{
		Use:   "resume <flow-id>",
		Short: "Continue a stopped or escalated flow",
		Long: `Load a stored flow and continue it from where it stopped, using the
collaborators of a scenario file.

A flow waiting at a stop point asks for that approval again. With --task,
the escalated task is moved back to executing first, so the loop picks
it up after the user resolved the escalation.

Examples:
  cadence resume flow-20260101-120000-abc123 --scenario scenarios/small.yaml
  cadence resume flow-20260101-120000-abc123 --scenario s.yaml --task task-02 --reason "dependency approved"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(cmd.Context(), cmd.OutOrStdout(), a, rf, args[0])
		},
	}
	cmd.Flags().StringVarP(&rf.scenario, "scenario", "s", "", "scenario file with the collaborators to continue with")
	cmd.Flags().StringVar(&rf.task, "task", "", "escalated task to resume")
	cmd.Flags().StringVar(&rf.reason, "reason", "", "how the escalation was resolved")
	cmd.Flags().BoolVarP(&rf.interactive, "interactive", "i", false, "answer stop points and the commit strategy yourself")
	cmd.Flags().StringVar(&rf.repo, "repo", "", "git repository to commit into (default: simulated commits)")
	cmd.Flags().StringVar(&rf.strategy, "strategy", "", "commit strategy (per-task|per-phase|per-feature|manual)")
	cmd.Flags().BoolVar(&rf.metrics, "metrics", false, "print flow metrics when the run ends")
	_ = cmd.MarkFlagRequired("scenario")
	cmd.MarkFlagsRequiredTogether("task", "reason")
	parent.AddCommand(cmd)
}

func runResume(ctx context.Context, w io.Writer, a *app, rf *resumeFlags, flowID string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	file, err := scenario.Load(rf.scenario)
	if err != nil {
		return errors.NewExitCode2Error(err)
	}
	if rf.strategy != "" {
		file.CommitStrategy = constants.CommitStrategy(rf.strategy)
	}

	logger := GetLogger()
	svc, err := openServices(a.config(), logger)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	o, err := newScenarioOrchestrator(a, svc, file, &rf.simulateFlags, w)
	if err != nil {
		return err
	}

	h := signal.NewHandler(ctx, o.Stop)
	defer h.Stop()

	var (
		res    orchestrator.Result
		runErr error
	)
	if rf.task != "" {
		f, err := svc.store.Get(ctx, flowID)
		if err != nil {
			return err
		}
		logger.Info().Str("flow_id", flowID).Str("task_id", rf.task).Msg("resuming task")
		res, runErr = o.ResumeTask(h.Context(), f, rf.task, rf.reason)
	} else {
		logger.Info().Str("flow_id", flowID).Msg("resuming flow")
		res, runErr = o.Resume(h.Context(), flowID)
	}

	if err := writeResult(w, a, res, runErr); err != nil {
		return err
	}
	if rf.metrics && a.flags.Output == OutputText {
		if err := svc.writeMetrics(w); err != nil {
			return err
		}
	}
	return runErr
}
