package constants

// Scale is the size class a task request is sorted into by its estimated
// number of affected files. Scale selects the flow variant and the base
// document requirements.
type Scale string

// Scale constants.
const (
	// ScaleSmall covers estimates of one or two files.
	ScaleSmall Scale = "small"

	// ScaleMedium covers estimates of three to five files.
	ScaleMedium Scale = "medium"

	// ScaleLarge covers estimates of six or more files.
	ScaleLarge Scale = "large"
)

// String returns the string representation of the Scale.
func (s Scale) String() string {
	return string(s)
}

// FlowVariant names a phase table. Small, medium and large follow the scale,
// game is selected explicitly for game projects.
type FlowVariant string

// Flow variant constants.
const (
	FlowVariantSmall  FlowVariant = "small"
	FlowVariantMedium FlowVariant = "medium"
	FlowVariantLarge  FlowVariant = "large"
	FlowVariantGame   FlowVariant = "game"
)

// String returns the string representation of the FlowVariant.
func (v FlowVariant) String() string {
	return string(v)
}

// Mode selects how much of a flow runs.
type Mode string

// Mode constants.
const (
	// ModeFull runs every phase of the variant and then the execution loop.
	ModeFull Mode = "full"

	// ModeDesignOnly stops after design synchronization. No tasks are executed.
	ModeDesignOnly Mode = "design_only"

	// ModePrototype runs the small phase table regardless of scale.
	ModePrototype Mode = "prototype"
)

// String returns the string representation of the Mode.
func (m Mode) String() string {
	return string(m)
}

// Scenario distinguishes greenfield work from changes to an existing project.
type Scenario string

// Scenario constants.
const (
	ScenarioNew      Scenario = "new"
	ScenarioExisting Scenario = "existing"
)

// String returns the string representation of the Scenario.
func (s Scenario) String() string {
	return string(s)
}

// FeatureType tags game work so specialist phases can be enabled.
type FeatureType string

// Feature type constants.
const (
	FeatureTypeNone      FeatureType = ""
	FeatureTypePolish    FeatureType = "polish"
	FeatureTypeArt       FeatureType = "art"
	FeatureTypeUI        FeatureType = "ui"
	FeatureTypeAnalytics FeatureType = "analytics"
	FeatureTypeCodeOnly  FeatureType = "code_only"
)

// String returns the string representation of the FeatureType.
func (f FeatureType) String() string {
	return string(f)
}

// DocumentKind identifies one of the design documents a flow may produce.
type DocumentKind string

// Document kind constants.
const (
	DocumentPRD       DocumentKind = "prd"
	DocumentUXRD      DocumentKind = "uxrd"
	DocumentADR       DocumentKind = "adr"
	DocumentDesignDoc DocumentKind = "design_doc"
	DocumentWorkPlan  DocumentKind = "work_plan"
)

// String returns the string representation of the DocumentKind.
func (d DocumentKind) String() string {
	return string(d)
}

// DocumentKinds returns every document kind in presentation order.
func DocumentKinds() []DocumentKind {
	return []DocumentKind{DocumentPRD, DocumentUXRD, DocumentADR, DocumentDesignDoc, DocumentWorkPlan}
}

// RequirementLevel says whether a document must be produced for a flow.
type RequirementLevel string

// Requirement level constants.
const (
	// RequirementRequired means the document must be produced.
	RequirementRequired RequirementLevel = "required"

	// RequirementConditional means the document is produced only when one of
	// its triggers holds. Resolution collapses it to required or not_needed.
	RequirementConditional RequirementLevel = "conditional"

	// RequirementNotNeeded means no document of this kind is produced.
	RequirementNotNeeded RequirementLevel = "not_needed"

	// RequirementUpdateIfExists means an existing document is updated, and
	// nothing is created when there is none.
	RequirementUpdateIfExists RequirementLevel = "update_if_exists"
)

// String returns the string representation of the RequirementLevel.
func (r RequirementLevel) String() string {
	return string(r)
}

// ResponseStatus is the normalized outcome of a collaborator response.
type ResponseStatus string

// Response status constants.
const (
	ResponseApproved         ResponseStatus = "approved"
	ResponseCompleted        ResponseStatus = "completed"
	ResponseNeedsRevision    ResponseStatus = "needs_revision"
	ResponseEscalationNeeded ResponseStatus = "escalation_needed"
	ResponseBlocked          ResponseStatus = "blocked"
	ResponseRejected         ResponseStatus = "rejected"
)

// String returns the string representation of the ResponseStatus.
func (s ResponseStatus) String() string {
	return string(s)
}

// SyncStatus is the status field reported by design synchronization.
type SyncStatus string

// Sync status constants.
const (
	SyncNoConflicts    SyncStatus = "NO_CONFLICTS"
	SyncConflictsFound SyncStatus = "CONFLICTS_FOUND"
)

// TaskStatus represents the state of a work-plan task in the execution loop.
// Status values use snake_case for JSON serialization compatibility.
type TaskStatus string

// Task status constants define the valid states a task can be in.
// These follow the execution state machine:
//
//	Pending → Executing
//	Executing → ReviewNeeded, QualityChecking, Escalated
//	ReviewNeeded → QualityChecking, Executing, Escalated
//	QualityChecking → QualityChecked, Escalated
//	QualityChecked → Committed, Escalated
//	Escalated → Executing (explicit resume only)
const (
	// TaskStatusPending indicates a task is planned but not yet started.
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusExecuting indicates the task executor is working on the task.
	TaskStatusExecuting TaskStatus = "executing"

	// TaskStatusReviewNeeded indicates integration or E2E tests were added and
	// must be reviewed before quality checks.
	TaskStatusReviewNeeded TaskStatus = "review_needed"

	// TaskStatusQualityChecking indicates the quality fixer is running checks.
	TaskStatusQualityChecking TaskStatus = "quality_checking"

	// TaskStatusQualityChecked indicates quality checks approved the task.
	// This is the only state a commit may follow.
	TaskStatusQualityChecked TaskStatus = "quality_checked"

	// TaskStatusCommitted indicates the task's changes were committed.
	TaskStatusCommitted TaskStatus = "committed"

	// TaskStatusEscalated indicates execution stopped for human attention.
	// The task can be resumed (→ Executing) once the escalation is resolved.
	TaskStatusEscalated TaskStatus = "escalated"
)

// String returns the string representation of the TaskStatus.
// This implements fmt.Stringer for convenient logging and debugging.
func (s TaskStatus) String() string {
	return string(s)
}

// CommitStrategy controls when quality-checked tasks are committed.
type CommitStrategy string

// Commit strategy constants.
const (
	// CommitPerTask commits each task as soon as it is quality checked.
	CommitPerTask CommitStrategy = "per-task"

	// CommitPerPhase commits once every task sharing a phase label is quality checked.
	CommitPerPhase CommitStrategy = "per-phase"

	// CommitPerFeature commits everything once at the end of the flow.
	CommitPerFeature CommitStrategy = "per-feature"

	// CommitManual never commits on its own and waits for an explicit signal.
	CommitManual CommitStrategy = "manual"
)

// String returns the string representation of the CommitStrategy.
func (c CommitStrategy) String() string {
	return string(c)
}

// CommitStrategies returns every commit strategy in presentation order.
func CommitStrategies() []CommitStrategy {
	return []CommitStrategy{CommitPerTask, CommitPerPhase, CommitPerFeature, CommitManual}
}

// GateKind classifies a phase as a stop point.
type GateKind string

// Gate kind constants.
const (
	// GateNone marks a phase that advances without human approval.
	GateNone GateKind = "none"

	// GateStop marks a phase that waits for an explicit approval.
	GateStop GateKind = "stop"

	// GateBatch marks the single final gate that hands control to autonomous execution.
	GateBatch GateKind = "batch"
)

// String returns the string representation of the GateKind.
func (g GateKind) String() string {
	return string(g)
}

// ApprovalOutcome is the human's decision at a stop point.
type ApprovalOutcome string

// Approval outcome constants.
const (
	ApprovalApproved ApprovalOutcome = "approved"
	ApprovalRejected ApprovalOutcome = "rejected"
)

// String returns the string representation of the ApprovalOutcome.
func (a ApprovalOutcome) String() string {
	return string(a)
}

// EscalationKind names the condition that raised an escalation.
type EscalationKind string

// Escalation kind constants.
const (
	EscalationExplicit              EscalationKind = "explicit"
	EscalationBlocked               EscalationKind = "blocked"
	EscalationRevisionLimit         EscalationKind = "revision_limit"
	EscalationCollaboratorMissing   EscalationKind = "collaborator_unavailable"
	EscalationOwnershipViolation    EscalationKind = "ownership_violation"
	EscalationExpertStalled         EscalationKind = "expert_stalled"
	EscalationNotReady              EscalationKind = "not_ready_for_quality"
	EscalationReviewLimit           EscalationKind = "review_limit"
	EscalationQualityNotConverged   EscalationKind = "quality_not_converged"
	EscalationRepeatedError         EscalationKind = "repeated_error"
	EscalationFileThreshold         EscalationKind = "file_threshold"
	EscalationEditThreshold         EscalationKind = "edit_threshold"
	EscalationSameFileThreshold     EscalationKind = "same_file_threshold"
	EscalationImpactReportMissing   EscalationKind = "impact_report_missing"
	EscalationRequirementChange     EscalationKind = "requirement_change"
	EscalationUserStop              EscalationKind = "user_stop"
	EscalationCommitFailed          EscalationKind = "commit_failed"
	EscalationCollaboratorFailure   EscalationKind = "collaborator_failure"
	EscalationRootCauseRequired     EscalationKind = "root_cause_required"
	EscalationDependencyUnsatisfied EscalationKind = "dependency_unsatisfied"
	EscalationDocumentUncovered     EscalationKind = "document_uncovered"
)

// String returns the string representation of the EscalationKind.
func (k EscalationKind) String() string {
	return string(k)
}

// IsSoft reports whether the escalation pauses only for an impact report
// instead of stopping for a human.
func (k EscalationKind) IsSoft() bool {
	switch k {
	case EscalationFileThreshold, EscalationEditThreshold, EscalationSameFileThreshold:
		return true
	default:
		return false
	}
}

// ChangeCategory classifies a detected requirement change.
type ChangeCategory string

// Change category constants.
const (
	ChangeNewFeature           ChangeCategory = "new_feature"
	ChangeNewConstraint        ChangeCategory = "new_constraint"
	ChangeTechnicalRequirement ChangeCategory = "changed_technical_requirement"
)

// String returns the string representation of the ChangeCategory.
func (c ChangeCategory) String() string {
	return string(c)
}

// EventType names a journal entry.
type EventType string

// Journal event types.
const (
	EventFlowStarted     EventType = "flow_started"
	EventPhaseEntered    EventType = "phase_entered"
	EventPhaseCompleted  EventType = "phase_completed"
	EventPhaseSkipped    EventType = "phase_skipped"
	EventRevision        EventType = "revision"
	EventGateRequested   EventType = "gate_requested"
	EventGateResolved    EventType = "gate_resolved"
	EventEscalation      EventType = "escalation"
	EventTaskTransition  EventType = "task_transition"
	EventCommit          EventType = "commit"
	EventFlowSuperseded  EventType = "flow_superseded"
	EventFlowHalted      EventType = "flow_halted"
	EventImpactReport    EventType = "impact_report"
	EventRootCauseRecord EventType = "root_cause_recorded"
)

// String returns the string representation of the EventType.
func (e EventType) String() string {
	return string(e)
}
