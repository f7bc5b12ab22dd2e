package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
)

// requestFlags collects the task request fields shared by the planning commands.
type requestFlags struct {
	files          int
	mode           string
	scenario       string
	game           bool
	featureType    string
	expertAnalysis bool
	conds          domain.Conditions
}

// addRequestFlags registers the task request flags on cmd.
func addRequestFlags(cmd *cobra.Command, rf *requestFlags) {
	f := cmd.Flags()
	f.IntVarP(&rf.files, "files", "n", 1, "estimated number of affected files")
	f.StringVar(&rf.mode, "mode", "", "flow mode (full|design_only|prototype)")
	f.StringVar(&rf.scenario, "scenario", "", "project scenario (new|existing)")
	f.BoolVar(&rf.game, "game", false, "use the game flow")
	f.StringVar(&rf.featureType, "feature-type", "", "game feature type (polish|art|ui|analytics|code_only)")
	f.BoolVar(&rf.expertAnalysis, "expert-analysis", false, "run the expert panel fan-out")
	addConditionFlags(cmd, &rf.conds)
}

// addConditionFlags registers the detected-condition flags on cmd.
func addConditionFlags(cmd *cobra.Command, c *domain.Conditions) {
	f := cmd.Flags()
	f.BoolVar(&c.ArchitectureChange, "architecture-change", false, "the change alters the architecture")
	f.BoolVar(&c.NewDependency, "new-dependency", false, "the change adds a dependency")
	f.BoolVar(&c.DataFlowChange, "data-flow-change", false, "the change alters data flow")
	f.BoolVar(&c.UIInvolved, "ui", false, "the change involves UI")
	f.BoolVar(&c.ExistingPRD, "existing-prd", false, "a PRD already exists")
	f.IntVar(&c.NestedContractDepth, "nested-contracts", 0, "depth of nested contract changes")
	f.IntVar(&c.MultiLocationContractChange, "multi-location", 0, "locations sharing a changed contract")
	f.IntVar(&c.ProcessingReorderSteps, "reorder-steps", 0, "processing steps being reordered")
	f.IntVar(&c.ConcurrentStates, "concurrent-states", 0, "concurrent states involved")
	f.IntVar(&c.ConcurrentAsyncOps, "async-ops", 0, "concurrent async operations involved")
}

// request builds a validated task request. defaultMode fills an unset --mode.
func (rf *requestFlags) request(description, defaultMode string) (domain.TaskRequest, error) {
	if strings.TrimSpace(description) == "" {
		description = "preview"
	}
	mode := rf.mode
	if mode == "" {
		mode = defaultMode
	}
	req := domain.TaskRequest{
		Description:       description,
		FileCountEstimate: rf.files,
		Mode:              constants.Mode(mode),
		Scenario:          constants.Scenario(rf.scenario),
		Game:              rf.game,
		FeatureType:       constants.FeatureType(rf.featureType),
		ExpertAnalysis:    rf.expertAnalysis,
		Conditions:        rf.conds,
	}
	if err := req.Validate(); err != nil {
		return domain.TaskRequest{}, errors.NewExitCode2Error(err)
	}
	return req, nil
}

// parseEstimate reads a file-count argument.
func parseEstimate(arg string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, errors.NewExitCode2Error(fmt.Errorf("%w: %q is not a number", errors.ErrInvalidEstimate, arg))
	}
	if n < 0 {
		return 0, errors.NewExitCode2Error(fmt.Errorf("%w: %d", errors.ErrInvalidEstimate, n))
	}
	return n, nil
}
