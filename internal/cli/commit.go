package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/cadence/internal/collaborator"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/flow"
	"github.com/mrz1836/cadence/internal/orchestrator"
	"github.com/mrz1836/cadence/internal/tui"
)

// AddCommitCommand adds the commit command to the root command.
func AddCommitCommand(parent *cobra.Command, a *app) {
	var repo string
	cmd := &cobra.Command{
		Use:   "commit <flow-id>",
		Short: "Commit the quality-checked tasks of a flow",
		Long: `Send the commit signal for a flow: every task that passed its quality
check but is not committed yet goes into one commit.

This is how work is committed under the manual strategy. Commits are
simulated unless --repo points at a git repository.

Examples:
  cadence commit flow-20260101-120000-abc123
  cadence commit flow-20260101-120000-abc123 --repo .`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommit(cmd.Context(), cmd.OutOrStdout(), a, repo, args[0])
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "git repository to commit into (default: simulated commits)")
	parent.AddCommand(cmd)
}

type commitResult struct {
	FlowID string   `json:"flow_id"`
	Tasks  []string `json:"tasks"`
}

func runCommit(ctx context.Context, w io.Writer, a *app, repo, flowID string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	tui.CheckNoColor()

	svc, err := openServices(a.config(), GetLogger())
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	f, err := svc.store.Get(ctx, flowID)
	if err != nil {
		return err
	}

	// Committing needs no collaborator and no stop point.
	opts := append(svc.options(orchestrator.SettingsFromConfig(a.config())),
		orchestrator.WithCommitter(newCommitter(repo, svc)))
	o := orchestrator.New(collaborator.NewRegistry(), flow.AutoApprover{}, opts...)

	next, ids, err := o.CommitPending(ctx, f)
	out := tui.NewOutput(w, a.flags.Output)
	if stderrors.Is(err, errors.ErrNothingToCommit) {
		if a.flags.Output == OutputJSON {
			return out.JSON(commitResult{FlowID: f.ID, Tasks: []string{}})
		}
		out.Info("Nothing to commit in " + f.ID)
		return nil
	}
	if err != nil {
		return err
	}

	if a.flags.Output == OutputJSON {
		return out.JSON(commitResult{FlowID: next.ID, Tasks: ids})
	}
	out.Success(fmt.Sprintf("Committed %d task(s) in %s: %s", len(ids), next.ID, strings.Join(ids, ", ")))
	if ref := commitRef(next, ids); ref != "" {
		out.Info("Commit " + ref)
	}
	return nil
}

// commitRef returns the commit reference recorded on the first of ids.
func commitRef(f domain.FlowInstance, ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	for _, t := range f.Tasks {
		if t.ID == ids[0] {
			return t.CommitRef
		}
	}
	return ""
}
