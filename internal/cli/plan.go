package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/flow"
	"github.com/mrz1836/cadence/internal/orchestrator"
	"github.com/mrz1836/cadence/internal/planning"
	"github.com/mrz1836/cadence/internal/tui"
)

// AddClassifyCommand adds the classify command to the root command.
func AddClassifyCommand(parent *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "classify <file-count>",
		Short: "Classify a change by its estimated file count",
		Long: `Map an estimated number of affected files to a scale class.

Scale classes (defaults, see scale.small_max and scale.medium_max):
  • small  - 1 to 2 files
  • medium - 3 to 5 files
  • large  - 6 or more files

Examples:
  cadence classify 4
  cadence classify 12 --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd.Context(), cmd.OutOrStdout(), a, args[0])
		},
	}
	parent.AddCommand(cmd)
}

type classifyResult struct {
	FileCountEstimate int             `json:"file_count_estimate"`
	Scale             constants.Scale `json:"scale"`
}

func runClassify(ctx context.Context, w io.Writer, a *app, arg string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	n, err := parseEstimate(arg)
	if err != nil {
		return err
	}

	classifier := orchestrator.SettingsFromConfig(a.config()).Classifier
	res := classifyResult{FileCountEstimate: n, Scale: classifier.Classify(n)}

	out := tui.NewOutput(w, a.flags.Output)
	if a.flags.Output == OutputJSON {
		return out.JSON(res)
	}
	out.Info(tui.Humanize(res.Scale.String()) + " scale")
	return nil
}

// AddResolveCommand adds the resolve command to the root command.
func AddResolveCommand(parent *cobra.Command, a *app) {
	rf := &requestFlags{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve which design documents a change requires",
		Long: `Resolve the document requirement set for a change from its scale and the
detected conditions. Any ADR trigger forces an ADR at every scale, and UI
involvement forces a UXRD.

Examples:
  cadence resolve --files 2
  cadence resolve --files 8 --ui --existing-prd
  cadence resolve --files 1 --new-dependency --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runResolve(cmd.Context(), cmd.OutOrStdout(), a, rf)
		},
	}
	addRequestFlags(cmd, rf)
	parent.AddCommand(cmd)
}

type resolveResult struct {
	Scale       constants.Scale               `json:"scale"`
	Variant     constants.FlowVariant         `json:"variant"`
	Documents   domain.DocumentRequirementSet `json:"documents"`
	ADRTriggers []string                      `json:"adr_triggers,omitempty"`
}

func runResolve(ctx context.Context, w io.Writer, a *app, rf *requestFlags) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	cfg := a.config()
	req, err := rf.request("", cfg.Flow.Mode)
	if err != nil {
		return err
	}

	scale := orchestrator.SettingsFromConfig(cfg).Classifier.Classify(req.FileCountEstimate)
	res := resolveResult{
		Scale:       scale,
		Variant:     flow.SelectVariant(req, scale),
		Documents:   planning.Resolve(scale, req.Conditions),
		ADRTriggers: planning.ADRTriggers(req.Conditions),
	}

	out := tui.NewOutput(w, a.flags.Output)
	if a.flags.Output == OutputJSON {
		return out.JSON(res)
	}

	out.Info(tui.Humanize(scale.String()) + " scale, " + res.Variant.String() + " flow")
	rows := make([][]string, 0, len(constants.DocumentKinds()))
	for _, kind := range constants.DocumentKinds() {
		rows = append(rows, []string{kind.String(), res.Documents.Level(kind).String()})
	}
	out.Table([]string{"DOCUMENT", "REQUIREMENT"}, rows)
	for _, t := range res.ADRTriggers {
		out.Warning("ADR triggered by " + t)
	}
	return nil
}

// AddPhasesCommand adds the phases command to the root command.
func AddPhasesCommand(parent *cobra.Command, a *app) {
	rf := &requestFlags{}
	cmd := &cobra.Command{
		Use:   "phases [description]",
		Short: "Preview the phases a change would run through",
		Long: `Show the phase sequence for a change: which collaborator runs each phase,
where the stop points are, and which phases are skipped for this request.

Examples:
  cadence phases --files 4 --ui
  cadence phases "Rewrite the renderer" --files 9 --expert-analysis
  cadence phases --game --feature-type polish`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description := ""
			if len(args) == 1 {
				description = args[0]
			}
			return runPhases(cmd.Context(), cmd.OutOrStdout(), a, rf, description)
		},
	}
	addRequestFlags(cmd, rf)
	parent.AddCommand(cmd)
}

type phaseJSON struct {
	Name  string         `json:"name"`
	Role  string         `json:"role"`
	Gate  string         `json:"gate,omitempty"`
	State tui.PhaseState `json:"state"`
}

func runPhases(ctx context.Context, w io.Writer, a *app, rf *requestFlags, description string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	cfg := a.config()
	req, err := rf.request(description, cfg.Flow.Mode)
	if err != nil {
		return err
	}

	settings := orchestrator.SettingsFromConfig(cfg)
	f, err := flow.NewInstance(req, settings.Classifier)
	if err != nil {
		return err
	}
	seq, err := flow.ForFlow(f, flow.WithMaxRevisions(settings.MaxRevisions))
	if err != nil {
		return err
	}

	if a.flags.Output == OutputJSON {
		rows := tui.PhaseRows(seq, f)
		out := make([]phaseJSON, 0, len(rows))
		for _, r := range rows {
			out = append(out, phaseJSON(r))
		}
		return tui.NewJSONOutput(w).JSON(out)
	}

	tui.NewTTYOutput(w).Info(tui.Humanize(f.Scale.String()) + " scale, " + f.Variant.String() + " flow")
	return tui.RenderPhases(w, seq, f)
}
