package domain

import "github.com/mrz1836/cadence/internal/constants"

// Review decisions reported by document and test reviewers.
const (
	DecisionApproved      = "approved"
	DecisionNeedsRevision = "needs_revision"
	DecisionRejected      = "rejected"
)

// StructuredResponse is the result a collaborator returns for one invocation.
// The shape varies per collaborator; every shape normalizes through Outcome.
// A response is archived as produced and never mutated afterwards.
type StructuredResponse struct {
	// Status is the generic status field most collaborators report.
	Status constants.ResponseStatus `json:"status,omitempty" yaml:"status,omitempty"`

	// Summary is a short human-readable description of the result.
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`

	// Reason explains an escalation or block.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// NextStep is the collaborator's proposed next step for an escalation.
	NextStep string `json:"nextStep,omitempty" yaml:"nextStep,omitempty"`

	// Error carries a collaborator-side failure message for the repeated-error watcher.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// Implementation collaborator fields.
	FilesModified        []string `json:"filesModified,omitempty" yaml:"filesModified,omitempty"`
	TestsAdded           []string `json:"testsAdded,omitempty" yaml:"testsAdded,omitempty"`
	ReadyForQualityCheck *bool    `json:"readyForQualityCheck,omitempty" yaml:"readyForQualityCheck,omitempty"`
	Edits                []string `json:"edits,omitempty" yaml:"edits,omitempty"`

	// Quality-check collaborator fields.
	ChecksPerformed []string `json:"checksPerformed,omitempty" yaml:"checksPerformed,omitempty"`
	FixesApplied    []string `json:"fixesApplied,omitempty" yaml:"fixesApplied,omitempty"`
	Approved        *bool    `json:"approved,omitempty" yaml:"approved,omitempty"`

	// Review collaborator fields.
	Decision      string   `json:"decision,omitempty" yaml:"decision,omitempty"`
	RevisionAgent Role     `json:"revision_agent,omitempty" yaml:"revision_agent,omitempty"`
	Issues        []string `json:"issues,omitempty" yaml:"issues,omitempty"`
	ApprovalReady *bool    `json:"approvalReady,omitempty" yaml:"approvalReady,omitempty"`

	// Consistency-check collaborator fields.
	SyncStatus     constants.SyncStatus `json:"sync_status,omitempty" yaml:"sync_status,omitempty"`
	TotalConflicts int                  `json:"total_conflicts,omitempty" yaml:"total_conflicts,omitempty"`
	Conflicts      []string             `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`

	// Planning collaborator fields.
	Tasks []PlannedTask `json:"tasks,omitempty" yaml:"tasks,omitempty"`

	// ArtifactPath is the document written by a document-producing collaborator.
	ArtifactPath string `json:"artifactPath,omitempty" yaml:"artifactPath,omitempty"`
}

// Outcome normalizes the collaborator-specific fields into one status.
// Explicit escalation and block always win. Review decisions, sync results and
// quality approval come next, then the plain status. A response with none of
// these is treated as completed.
func (r StructuredResponse) Outcome() constants.ResponseStatus {
	switch r.Status {
	case constants.ResponseEscalationNeeded, constants.ResponseBlocked, constants.ResponseNeedsRevision:
		return r.Status
	}

	switch r.Decision {
	case DecisionApproved:
		return constants.ResponseApproved
	case DecisionNeedsRevision, DecisionRejected:
		return constants.ResponseNeedsRevision
	}

	switch r.SyncStatus {
	case constants.SyncConflictsFound:
		return constants.ResponseNeedsRevision
	case constants.SyncNoConflicts:
		return constants.ResponseApproved
	}

	if r.Approved != nil {
		if *r.Approved {
			return constants.ResponseApproved
		}
		return constants.ResponseNeedsRevision
	}

	if r.Status != "" {
		return r.Status
	}
	return constants.ResponseCompleted
}

// IsReadyForQualityCheck reports whether the executor explicitly declared readiness.
func (r StructuredResponse) IsReadyForQualityCheck() bool {
	return r.ReadyForQualityCheck != nil && *r.ReadyForQualityCheck
}

// IsApproved reports whether a quality check explicitly approved the work.
func (r StructuredResponse) IsApproved() bool {
	return r.Approved != nil && *r.Approved
}

// PlannedTask is one task produced by decomposition.
type PlannedTask struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Phase       string   `json:"phase,omitempty" yaml:"phase,omitempty"`
	DependsOn   []string `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	TargetFiles []string `json:"targetFiles,omitempty" yaml:"targetFiles,omitempty"`
}

// Bool returns a pointer to b, for building responses in code.
func Bool(b bool) *bool {
	return &b
}
