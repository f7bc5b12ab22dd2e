package planning

import (
	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
)

// ADR trigger names reported by ADRTriggers.
const (
	TriggerArchitectureChange  = "architecture_change"
	TriggerNewDependency       = "new_dependency"
	TriggerDataFlowChange      = "data_flow_change"
	TriggerNestedContracts     = "nested_contract_depth"
	TriggerMultiLocationChange = "multi_location_contract_change"
	TriggerProcessingReorder   = "processing_reorder"
	TriggerConcurrentStates    = "concurrent_states"
	TriggerConcurrentAsyncOps  = "concurrent_async_operations"
)

// BaseTable returns the scale's starting requirement levels before any
// condition is applied. Conditional entries are still unresolved here.
func BaseTable(scale constants.Scale) domain.DocumentRequirementSet {
	switch scale {
	case constants.ScaleLarge:
		return domain.DocumentRequirementSet{
			constants.DocumentPRD:       constants.RequirementRequired,
			constants.DocumentUXRD:      constants.RequirementConditional,
			constants.DocumentADR:       constants.RequirementConditional,
			constants.DocumentDesignDoc: constants.RequirementRequired,
			constants.DocumentWorkPlan:  constants.RequirementRequired,
		}
	case constants.ScaleMedium:
		return domain.DocumentRequirementSet{
			constants.DocumentPRD:       constants.RequirementUpdateIfExists,
			constants.DocumentUXRD:      constants.RequirementConditional,
			constants.DocumentADR:       constants.RequirementConditional,
			constants.DocumentDesignDoc: constants.RequirementRequired,
			constants.DocumentWorkPlan:  constants.RequirementRequired,
		}
	default:
		return domain.DocumentRequirementSet{
			constants.DocumentPRD:       constants.RequirementUpdateIfExists,
			constants.DocumentUXRD:      constants.RequirementNotNeeded,
			constants.DocumentADR:       constants.RequirementNotNeeded,
			constants.DocumentDesignDoc: constants.RequirementNotNeeded,
			constants.DocumentWorkPlan:  constants.RequirementNotNeeded,
		}
	}
}

// Resolve computes the document requirement set for a scale and the detected
// conditions. The ADR override and the UXRD rule apply at every scale, and
// any conditional left without a trigger collapses to not_needed.
func Resolve(scale constants.Scale, conds domain.Conditions) domain.DocumentRequirementSet {
	set := BaseTable(scale)

	if scale == constants.ScaleLarge && conds.ExistingPRD {
		set[constants.DocumentPRD] = constants.RequirementUpdateIfExists
	}

	if len(ADRTriggers(conds)) > 0 {
		set[constants.DocumentADR] = constants.RequirementRequired
	}

	if conds.UIInvolved {
		set[constants.DocumentUXRD] = constants.RequirementRequired
	} else {
		set[constants.DocumentUXRD] = constants.RequirementNotNeeded
	}

	for kind, level := range set {
		if level == constants.RequirementConditional {
			set[kind] = constants.RequirementNotNeeded
		}
	}
	return set
}

// ADRTriggers names every condition that forces an ADR, in a stable order.
func ADRTriggers(conds domain.Conditions) []string {
	var triggers []string
	if conds.ArchitectureChange {
		triggers = append(triggers, TriggerArchitectureChange)
	}
	if conds.NewDependency {
		triggers = append(triggers, TriggerNewDependency)
	}
	if conds.DataFlowChange {
		triggers = append(triggers, TriggerDataFlowChange)
	}
	if conds.NestedContractDepth >= constants.ADRNestedContractDepth {
		triggers = append(triggers, TriggerNestedContracts)
	}
	if conds.MultiLocationContractChange >= constants.ADRMultiLocationChanges {
		triggers = append(triggers, TriggerMultiLocationChange)
	}
	if conds.ProcessingReorderSteps >= constants.ADRProcessingReorderSteps {
		triggers = append(triggers, TriggerProcessingReorder)
	}
	if conds.ConcurrentStates >= constants.ADRConcurrentStates {
		triggers = append(triggers, TriggerConcurrentStates)
	}
	if conds.ConcurrentAsyncOps >= constants.ADRConcurrentAsyncOperations {
		triggers = append(triggers, TriggerConcurrentAsyncOps)
	}
	return triggers
}
