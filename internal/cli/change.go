package cli

import (
	"context"
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

type changeFlags struct {
	text  string
	files int
	conds domain.Conditions
}

// AddChangeCommand adds the change command to the root command.
func AddChangeCommand(parent *cobra.Command, a *app) {
	cf := &changeFlags{}
	cmd := &cobra.Command{
		Use:   "change <flow-id>",
		Short: "Report a requirement change for a running flow",
		Long: `Check new input against a flow. When it changes the requirement, because
the scale moves, a dependency appears, or the reach of the change grows,
the flow is superseded and a fresh flow starts again at requirement
analysis with the merged request.

Input that does not change the requirement leaves the flow alone.

Examples:
  cadence change flow-20260101-120000-abc123 --text "also cover the admin view" --files 7
  cadence change flow-20260101-120000-abc123 --text "use the new queue" --new-dependency`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChange(cmd.Context(), cmd.OutOrStdout(), a, cf, args[0])
		},
	}
	cmd.Flags().StringVar(&cf.text, "text", "", "the new input")
	cmd.Flags().IntVarP(&cf.files, "files", "n", 0, "revised estimate of affected files (0 keeps the current one)")
	addConditionFlags(cmd, &cf.conds)
	_ = cmd.MarkFlagRequired("text")
	parent.AddCommand(cmd)
}

type changeResult struct {
	FlowID       string `json:"flow_id"`
	Changed      bool   `json:"changed"`
	SupersededBy string `json:"superseded_by,omitempty"`
}

func runChange(ctx context.Context, w io.Writer, a *app, cf *changeFlags, flowID string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	tui.CheckNoColor()
	if strings.TrimSpace(cf.text) == "" {
		return errors.NewExitCode2Error(fmt.Errorf("--text: %w", errors.ErrEmptyValue))
	}
	if cf.files < 0 {
		return errors.NewExitCode2Error(fmt.Errorf("%w: %d", errors.ErrInvalidEstimate, cf.files))
	}

	svc, err := openServices(a.config(), GetLogger())
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	f, err := svc.store.Get(ctx, flowID)
	if err != nil {
		return err
	}

	o := orchestrator.New(collaborator.NewRegistry(), flow.AutoApprover{},
		svc.options(orchestrator.SettingsFromConfig(a.config()))...)
	next, changed, err := o.ChangeRequirement(ctx, f, domain.RequirementInput{
		Text:              cf.text,
		FileCountEstimate: cf.files,
		Conditions:        cf.conds,
	})
	if err != nil {
		return err
	}

	res := changeResult{FlowID: f.ID, Changed: changed}
	if changed {
		res.SupersededBy = next.ID
	}

	out := tui.NewOutput(w, a.flags.Output)
	if a.flags.Output == OutputJSON {
		return out.JSON(res)
	}
	if !changed {
		out.Info("No requirement change. " + f.ID + " continues as is.")
		return nil
	}
	out.Warning(fmt.Sprintf("Requirement changed: %s is superseded by %s", f.ID, next.ID))
	out.Info(fmt.Sprintf("Continue the new flow with 'cadence resume %s --scenario <file>'.", next.ID))
	return nil
}
