// Package domain provides shared domain types for the cadence flow orchestrator.
// These types are used across all internal packages to ensure consistent data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/errors, standard library, uuid
//   - MUST NOT import: any other internal packages
//
// JSON field names follow the collaborator contract: camelCase for
// collaborator responses, snake_case for cadence-owned state.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrz1836/cadence/internal/constants"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

// TaskRequest is the inbound unit of work that starts a flow.
// A request is immutable once its scale and documents are resolved. A change
// mid-flow produces a new request whose Supersedes field names this one.
type TaskRequest struct {
	// ID is the unique identifier for the request.
	ID string `json:"id" yaml:"id"`

	// Description is the free-text change request.
	Description string `json:"description" yaml:"description"`

	// FileCountEstimate is the estimated number of affected files.
	FileCountEstimate int `json:"file_count_estimate" yaml:"file_count_estimate"`

	// Mode selects full, design-only or prototype runs.
	Mode constants.Mode `json:"mode" yaml:"mode"`

	// Scenario distinguishes new projects from existing ones.
	Scenario constants.Scenario `json:"scenario" yaml:"scenario"`

	// Conditions are the detected facts the document resolver uses.
	Conditions Conditions `json:"conditions" yaml:"conditions"`

	// Game marks a game project, selecting the game flow variant.
	Game bool `json:"game,omitempty" yaml:"game,omitempty"`

	// FeatureType enables game specialist phases.
	FeatureType constants.FeatureType `json:"feature_type,omitempty" yaml:"feature_type,omitempty"`

	// ExpertAnalysis requests the expert-analysis fan-out phase.
	ExpertAnalysis bool `json:"expert_analysis,omitempty" yaml:"expert_analysis,omitempty"`

	// Supersedes is the ID of the request this one replaced.
	Supersedes string `json:"supersedes,omitempty" yaml:"supersedes,omitempty"`

	// CreatedAt is when the request was created.
	CreatedAt time.Time `json:"created_at" yaml:"created_at,omitempty"`
}

// Validate checks the request can be classified and sequenced.
// Empty mode and scenario are filled with their defaults.
func (r *TaskRequest) Validate() error {
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("task request description %w", cadenceerrors.ErrEmptyValue)
	}
	if r.FileCountEstimate < 0 {
		return fmt.Errorf("%w: %d", cadenceerrors.ErrInvalidEstimate, r.FileCountEstimate)
	}
	if r.Mode == "" {
		r.Mode = constants.ModeFull
	}
	switch r.Mode {
	case constants.ModeFull, constants.ModeDesignOnly, constants.ModePrototype:
	default:
		return fmt.Errorf("%w: %s", cadenceerrors.ErrUnknownMode, r.Mode)
	}
	if r.Scenario == "" {
		r.Scenario = constants.ScenarioNew
	}
	return nil
}

// Conditions are the detected facts about a change. Boolean triggers and
// counts feed the document requirement resolver and phase guards.
type Conditions struct {
	ArchitectureChange          bool `json:"architecture_change,omitempty" yaml:"architecture_change,omitempty"`
	NewDependency               bool `json:"new_dependency,omitempty" yaml:"new_dependency,omitempty"`
	DataFlowChange              bool `json:"data_flow_change,omitempty" yaml:"data_flow_change,omitempty"`
	UIInvolved                  bool `json:"ui_involved,omitempty" yaml:"ui_involved,omitempty"`
	ExistingPRD                 bool `json:"existing_prd,omitempty" yaml:"existing_prd,omitempty"`
	NestedContractDepth         int  `json:"nested_contract_depth,omitempty" yaml:"nested_contract_depth,omitempty"`
	MultiLocationContractChange int  `json:"multi_location_contract_change,omitempty" yaml:"multi_location_contract_change,omitempty"`
	ProcessingReorderSteps      int  `json:"processing_reorder_steps,omitempty" yaml:"processing_reorder_steps,omitempty"`
	ConcurrentStates            int  `json:"concurrent_states,omitempty" yaml:"concurrent_states,omitempty"`
	ConcurrentAsyncOps          int  `json:"concurrent_async_ops,omitempty" yaml:"concurrent_async_ops,omitempty"`
}

// Merge ORs boolean triggers and keeps the larger of each count.
func (c Conditions) Merge(other Conditions) Conditions {
	return Conditions{
		ArchitectureChange:          c.ArchitectureChange || other.ArchitectureChange,
		NewDependency:               c.NewDependency || other.NewDependency,
		DataFlowChange:              c.DataFlowChange || other.DataFlowChange,
		UIInvolved:                  c.UIInvolved || other.UIInvolved,
		ExistingPRD:                 c.ExistingPRD || other.ExistingPRD,
		NestedContractDepth:         max(c.NestedContractDepth, other.NestedContractDepth),
		MultiLocationContractChange: max(c.MultiLocationContractChange, other.MultiLocationContractChange),
		ProcessingReorderSteps:      max(c.ProcessingReorderSteps, other.ProcessingReorderSteps),
		ConcurrentStates:            max(c.ConcurrentStates, other.ConcurrentStates),
		ConcurrentAsyncOps:          max(c.ConcurrentAsyncOps, other.ConcurrentAsyncOps),
	}
}

// RequirementInput is new user input arriving while a flow is running.
type RequirementInput struct {
	Text              string     `json:"text" yaml:"text"`
	FileCountEstimate int        `json:"file_count_estimate,omitempty" yaml:"file_count_estimate,omitempty"`
	Conditions        Conditions `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// NewRequestID returns a unique task request identifier.
func NewRequestID() string {
	return "req-" + uuid.NewString()[:8]
}
