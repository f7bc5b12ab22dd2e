// Package flow sequences the design phases of a flow instance.
//
// A variant is an ordered phase list. Phases carry guard predicates that skip
// documents the resolver marked not needed, gate kinds for human stop points,
// and the document they produce or review so revision loops can find the
// producing phase. Sequencing functions take a FlowInstance value and return
// a new one; the argument is never changed.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors,
//     internal/planning, internal/collaborator, internal/artifact
//   - MUST NOT import: internal/execution, internal/orchestrator, internal/cli
package flow

import (
	"fmt"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

// Phase names.
const (
	PhaseRequirementAnalysis      = "requirement-analysis"
	PhaseMarketAnalysis           = "market-analysis"
	PhaseExpertAnalysis           = "expert-analysis"
	PhasePRDCreation              = "prd-creation"
	PhasePRDUpdate                = "prd-update"
	PhasePRDReview                = "prd-review"
	PhaseUXRDCreation             = "uxrd-creation"
	PhaseUXRDReview               = "uxrd-review"
	PhaseADRCreation              = "adr-creation"
	PhaseADRReview                = "adr-review"
	PhaseDesignDocCreation        = "design-doc-creation"
	PhaseDesignDocReview          = "design-doc-review"
	PhaseDesignSync               = "design-sync"
	PhaseAcceptanceTestGeneration = "acceptance-test-generation"
	PhaseWorkPlanning             = "work-planning"
	PhaseTaskDecomposition        = "task-decomposition"
	PhaseTaskPlanning             = "task-planning"
	PhaseGameDesign               = "game-design"
	PhaseArtDirection             = "art-direction"
	PhaseUIDesign                 = "ui-design"
	PhaseAnalyticsPlanning        = "analytics-planning"
	PhasePolishPlanning           = "polish-planning"
)

// Guard decides whether a phase runs for a flow. A nil guard always runs.
type Guard func(f domain.FlowInstance) bool

// Phase is one named step of a flow variant.
type Phase struct {
	// Name identifies the phase within its variant.
	Name string

	// Role is the collaborator invoked for the phase. Fan-out phases leave it
	// empty and list Experts instead.
	Role domain.Role

	// Experts are dispatched concurrently and joined before the phase completes.
	Experts []domain.Role

	// Gate marks the phase as a stop point.
	Gate constants.GateKind

	// Produces is the document kind this phase writes, if any.
	Produces constants.DocumentKind

	// Reviews is the document kind this phase checks. A revision request
	// loops back to the nearest earlier active phase producing it.
	Reviews constants.DocumentKind

	// Description is the three to five word invocation summary.
	Description string

	// When skips the phase when it returns false.
	When Guard
}

// IsGate reports whether the phase is a stop point of any kind.
func IsGate(p Phase) bool {
	return p.Gate == constants.GateStop || p.Gate == constants.GateBatch
}

// Active reports whether the phase runs for f.
func (p Phase) Active(f domain.FlowInstance) bool {
	return p.When == nil || p.When(f)
}

// IsFanOut reports whether the phase dispatches an expert panel.
func (p Phase) IsFanOut() bool {
	return len(p.Experts) > 0
}

func requires(kind constants.DocumentKind) Guard {
	return func(f domain.FlowInstance) bool {
		return f.Documents.Requires(kind)
	}
}

func prdUpdate(f domain.FlowInstance) bool {
	return f.Documents.Level(constants.DocumentPRD) == constants.RequirementUpdateIfExists &&
		f.Request.Conditions.ExistingPRD
}

func prdTouched(f domain.FlowInstance) bool {
	return f.Documents.Requires(constants.DocumentPRD) || prdUpdate(f)
}

func newProject(f domain.FlowInstance) bool {
	return f.Request.Scenario != constants.ScenarioExisting
}

func expertsRequested(f domain.FlowInstance) bool {
	return f.Request.ExpertAnalysis
}

func feature(ft constants.FeatureType) Guard {
	return func(f domain.FlowInstance) bool {
		return f.Request.FeatureType == ft
	}
}

// defaultExperts is the panel dispatched by expert analysis.
func defaultExperts() []domain.Role {
	return []domain.Role{domain.RoleSecurityExpert, domain.RolePerformanceExpert, domain.RoleMaintainabilityExpert}
}

func requirementAnalysis() Phase {
	return Phase{Name: PhaseRequirementAnalysis, Role: domain.RoleRequirementAnalyzer, Gate: constants.GateStop,
		Description: "Analyze requirements and scale"}
}

func prdPhases(allowCreate bool) []Phase {
	var phases []Phase
	if allowCreate {
		phases = append(phases, Phase{Name: PhasePRDCreation, Role: domain.RolePRDCreator, Produces: constants.DocumentPRD,
			Description: "Create product requirements document", When: requires(constants.DocumentPRD)})
	}
	guard := prdUpdate
	if allowCreate {
		guard = prdTouched
	}
	return append(phases,
		Phase{Name: PhasePRDUpdate, Role: domain.RolePRDCreator, Produces: constants.DocumentPRD,
			Description: "Update existing product requirements", When: prdUpdate},
		Phase{Name: PhasePRDReview, Role: domain.RoleDocumentReviewer, Reviews: constants.DocumentPRD, Gate: constants.GateStop,
			Description: "Review product requirements document", When: guard},
	)
}

func uxrdPhases() []Phase {
	return []Phase{
		{Name: PhaseUXRDCreation, Role: domain.RoleUXDesigner, Produces: constants.DocumentUXRD,
			Description: "Create UX requirements document", When: requires(constants.DocumentUXRD)},
		{Name: PhaseUXRDReview, Role: domain.RoleDocumentReviewer, Reviews: constants.DocumentUXRD, Gate: constants.GateStop,
			Description: "Review UX requirements document", When: requires(constants.DocumentUXRD)},
	}
}

func adrPhases() []Phase {
	return []Phase{
		{Name: PhaseADRCreation, Role: domain.RoleTechnicalDesigner, Produces: constants.DocumentADR,
			Description: "Create architecture decision record", When: requires(constants.DocumentADR)},
		{Name: PhaseADRReview, Role: domain.RoleDocumentReviewer, Reviews: constants.DocumentADR, Gate: constants.GateStop,
			Description: "Review architecture decision record", When: requires(constants.DocumentADR)},
	}
}

func designPhases() []Phase {
	return []Phase{
		{Name: PhaseDesignDocCreation, Role: domain.RoleTechnicalDesigner, Produces: constants.DocumentDesignDoc,
			Description: "Create technical design document", When: requires(constants.DocumentDesignDoc)},
		{Name: PhaseDesignDocReview, Role: domain.RoleDocumentReviewer, Reviews: constants.DocumentDesignDoc,
			Description: "Review technical design document", When: requires(constants.DocumentDesignDoc)},
		{Name: PhaseDesignSync, Role: domain.RoleDesignSync, Reviews: constants.DocumentDesignDoc, Gate: constants.GateStop,
			Description: "Check cross-document design consistency", When: requires(constants.DocumentDesignDoc)},
	}
}

func planningTail() []Phase {
	return []Phase{
		{Name: PhaseAcceptanceTestGeneration, Role: domain.RoleAcceptanceTestGenerator,
			Description: "Generate acceptance test skeletons"},
		{Name: PhaseWorkPlanning, Role: domain.RoleWorkPlanner, Produces: constants.DocumentWorkPlan,
			Description: "Create implementation work plan", When: requires(constants.DocumentWorkPlan)},
		{Name: PhaseTaskDecomposition, Role: domain.RoleTaskDecomposer, Gate: constants.GateBatch,
			Description: "Decompose plan into tasks"},
	}
}

func largePhases() []Phase {
	phases := []Phase{
		requirementAnalysis(),
		{Name: PhaseMarketAnalysis, Role: domain.RoleMarketAnalyst, Description: "Analyze market and competitors", When: newProject},
		{Name: PhaseExpertAnalysis, Experts: defaultExperts(), Description: "Gather expert analysis perspectives", When: expertsRequested},
	}
	phases = append(phases, prdPhases(true)...)
	phases = append(phases, uxrdPhases()...)
	phases = append(phases, adrPhases()...)
	phases = append(phases, designPhases()...)
	return append(phases, planningTail()...)
}

func mediumPhases() []Phase {
	phases := []Phase{requirementAnalysis()}
	phases = append(phases, prdPhases(false)...)
	phases = append(phases, uxrdPhases()...)
	phases = append(phases, adrPhases()...)
	phases = append(phases, designPhases()...)
	return append(phases, planningTail()...)
}

// smallPhases carries a guarded producer for every document kind. Small
// changes skip most of them, but UI work and prototypes of larger scope
// still reach the documents the resolver marked required.
func smallPhases() []Phase {
	phases := []Phase{requirementAnalysis()}
	phases = append(phases, prdPhases(true)...)
	phases = append(phases, uxrdPhases()...)
	phases = append(phases, adrPhases()...)
	phases = append(phases, designPhases()...)
	return append(phases,
		Phase{Name: PhaseWorkPlanning, Role: domain.RoleWorkPlanner, Produces: constants.DocumentWorkPlan,
			Description: "Create implementation work plan", When: requires(constants.DocumentWorkPlan)},
		Phase{Name: PhaseTaskPlanning, Role: domain.RoleWorkPlanner, Gate: constants.GateBatch,
			Description: "Plan small change tasks"},
	)
}

func gamePhases() []Phase {
	phases := []Phase{
		requirementAnalysis(),
		{Name: PhaseGameDesign, Role: domain.RoleGameDesigner, Description: "Define core game design"},
		{Name: PhaseMarketAnalysis, Role: domain.RoleMarketAnalyst, Description: "Analyze market and competitors", When: newProject},
		{Name: PhaseExpertAnalysis, Experts: defaultExperts(), Description: "Gather expert analysis perspectives", When: expertsRequested},
	}
	phases = append(phases, prdPhases(true)...)
	phases = append(phases,
		Phase{Name: PhaseArtDirection, Role: domain.RoleArtDirector, Description: "Define art direction guidelines",
			When: feature(constants.FeatureTypeArt)},
		Phase{Name: PhaseUIDesign, Role: domain.RoleUISpecialist, Description: "Design game user interface",
			When: feature(constants.FeatureTypeUI)},
	)
	phases = append(phases, uxrdPhases()...)
	phases = append(phases, adrPhases()...)
	phases = append(phases,
		Phase{Name: PhaseAnalyticsPlanning, Role: domain.RoleAnalyticsSpecialist, Description: "Plan gameplay analytics events",
			When: feature(constants.FeatureTypeAnalytics)},
		Phase{Name: PhasePolishPlanning, Role: domain.RolePolishSpecialist, Description: "Plan game feel polish",
			When: feature(constants.FeatureTypePolish)},
	)
	phases = append(phases, designPhases()...)
	return append(phases, planningTail()...)
}

// PhasesFor returns a fresh copy of the variant's phase list.
func PhasesFor(variant constants.FlowVariant) ([]Phase, error) {
	switch variant {
	case constants.FlowVariantLarge:
		return largePhases(), nil
	case constants.FlowVariantMedium:
		return mediumPhases(), nil
	case constants.FlowVariantSmall:
		return smallPhases(), nil
	case constants.FlowVariantGame:
		return gamePhases(), nil
	default:
		return nil, fmt.Errorf("%w: %q", cadenceerrors.ErrUnknownVariant, variant)
	}
}

// SelectVariant picks the phase table for a request at the given scale.
// Game projects use the game table; prototypes always use the small table,
// which keeps a producer for every required document.
func SelectVariant(req domain.TaskRequest, scale constants.Scale) constants.FlowVariant {
	switch {
	case req.Game:
		return constants.FlowVariantGame
	case req.Mode == constants.ModePrototype:
		return constants.FlowVariantSmall
	case scale == constants.ScaleLarge:
		return constants.FlowVariantLarge
	case scale == constants.ScaleMedium:
		return constants.FlowVariantMedium
	default:
		return constants.FlowVariantSmall
	}
}

// ValidatePhases checks a phase list is sequenceable: names are unique,
// collaborators are known, every review has an earlier producer, and exactly
// one unguarded batch gate closes the list.
func ValidatePhases(phases []Phase) error {
	if len(phases) == 0 {
		return fmt.Errorf("%w: no phases", cadenceerrors.ErrInvalidPhaseList)
	}

	seen := make(map[string]bool, len(phases))
	produced := make(map[constants.DocumentKind]bool)
	batchGates := 0

	for i, p := range phases {
		if p.Name == "" {
			return fmt.Errorf("%w: phase %d has no name", cadenceerrors.ErrInvalidPhaseList, i)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate phase %s", cadenceerrors.ErrInvalidPhaseList, p.Name)
		}
		seen[p.Name] = true

		if err := validateCollaborators(p); err != nil {
			return err
		}

		if p.Reviews != "" && !produced[p.Reviews] {
			return fmt.Errorf("%w: %s reviews %s before any phase produces it",
				cadenceerrors.ErrInvalidPhaseList, p.Name, p.Reviews)
		}
		if p.Produces != "" {
			produced[p.Produces] = true
		}

		if p.Gate == constants.GateBatch {
			batchGates++
			if i != len(phases)-1 {
				return fmt.Errorf("%w: batch gate %s must be the final phase", cadenceerrors.ErrInvalidPhaseList, p.Name)
			}
			if p.When != nil {
				return fmt.Errorf("%w: batch gate %s cannot be conditional", cadenceerrors.ErrInvalidPhaseList, p.Name)
			}
		}
	}

	if batchGates != 1 {
		return fmt.Errorf("%w: want exactly one batch gate, found %d", cadenceerrors.ErrInvalidPhaseList, batchGates)
	}
	return nil
}

// Uncovered lists the documents f requires that no active phase produces,
// in DocumentKinds order.
func Uncovered(phases []Phase, f domain.FlowInstance) []constants.DocumentKind {
	produced := make(map[constants.DocumentKind]bool)
	for _, p := range phases {
		if p.Produces != "" && p.Active(f) {
			produced[p.Produces] = true
		}
	}
	var missing []constants.DocumentKind
	for _, kind := range constants.DocumentKinds() {
		if f.Documents.Requires(kind) && !produced[kind] {
			missing = append(missing, kind)
		}
	}
	return missing
}

func validateCollaborators(p Phase) error {
	if !p.IsFanOut() {
		if !p.Role.IsValid() {
			return fmt.Errorf("%w: phase %s: %q", cadenceerrors.ErrUnknownRole, p.Name, p.Role)
		}
		return nil
	}
	if len(p.Experts) < constants.MinExperts || len(p.Experts) > constants.MaxExperts {
		return fmt.Errorf("%w: phase %s has %d experts", cadenceerrors.ErrFanOutSize, p.Name, len(p.Experts))
	}
	for _, r := range p.Experts {
		if !r.IsExpert() {
			return fmt.Errorf("%w: phase %s: %q is not an expert role", cadenceerrors.ErrUnknownRole, p.Name, r)
		}
	}
	return nil
}
