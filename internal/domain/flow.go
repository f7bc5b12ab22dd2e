package domain

import (
	"time"

	"github.com/mrz1836/cadence/internal/constants"
)

// FlowInstance is one end-to-end run for a single task request.
// Operations that advance a flow take a FlowInstance value and return a new
// one. Use Clone before changing anything reachable through a map or slice.
type FlowInstance struct {
	// ID is the unique identifier for the flow.
	// Format: flow-YYYYMMDD-HHMMSS-<short uuid>
	ID string `json:"id"`

	// Request is the task request that started this flow.
	Request TaskRequest `json:"request"`

	// Scale and Documents are frozen at creation and only change through supersession.
	Scale       constants.Scale        `json:"scale"`
	Variant     constants.FlowVariant  `json:"variant"`
	Documents   DocumentRequirementSet `json:"documents"`
	ADRTriggers []string               `json:"adr_triggers,omitempty"`

	// PhaseIndex is the position in the variant's phase list.
	PhaseIndex int `json:"phase_index"`

	// PendingGate is the name of the phase waiting for approval, if any.
	PendingGate string `json:"pending_gate,omitempty"`

	// Revisions counts revision loops per producing phase.
	Revisions map[string]int `json:"revisions,omitempty"`

	// BatchApproved is set once the final batch gate is approved.
	BatchApproved bool `json:"batch_approved"`

	// CommitStrategy is chosen once before execution.
	CommitStrategy constants.CommitStrategy `json:"commit_strategy,omitempty"`

	// Plan is the task list produced by decomposition.
	Plan []PlannedTask `json:"plan,omitempty"`

	// Tasks is the latest state of every task the execution loop touched.
	Tasks []Task `json:"tasks,omitempty"`

	// Documents produced so far, by artifact path.
	Artifacts []string `json:"artifacts,omitempty"`

	// Escalations raised during the flow, oldest first.
	Escalations []EscalationEvent `json:"escalations,omitempty"`

	// History archives every collaborator response.
	History []PhaseRecord `json:"history,omitempty"`

	// Halted is set when the phase list is exhausted.
	Halted bool `json:"halted"`

	// SupersededBy names the flow that replaced this one after a requirement change.
	SupersededBy string `json:"superseded_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// SchemaVersion enables forward-compatible schema migrations.
	SchemaVersion string `json:"schema_version"`
}

// PhaseRecord archives one collaborator response.
type PhaseRecord struct {
	Phase      string                   `json:"phase"`
	Role       Role                     `json:"role"`
	Outcome    constants.ResponseStatus `json:"outcome"`
	Iteration  int                      `json:"iteration"`
	Response   StructuredResponse       `json:"response"`
	RecordedAt time.Time                `json:"recorded_at"`
}

// ApprovalDecision resolves a pending stop point.
type ApprovalDecision struct {
	Outcome   constants.ApprovalOutcome `json:"outcome"`
	Reason    string                    `json:"reason,omitempty"`
	DecidedAt time.Time                 `json:"decided_at"`
}

// Approve builds an approving decision.
func Approve() ApprovalDecision {
	return ApprovalDecision{Outcome: constants.ApprovalApproved, DecidedAt: time.Now().UTC()}
}

// Reject builds a rejecting decision with the reviewer's reason.
func Reject(reason string) ApprovalDecision {
	return ApprovalDecision{Outcome: constants.ApprovalRejected, Reason: reason, DecidedAt: time.Now().UTC()}
}

// Approved reports whether the decision approves the artifact.
func (d ApprovalDecision) Approved() bool {
	return d.Outcome == constants.ApprovalApproved
}

// Clone returns a deep copy, so the receiver is never changed by callers of
// sequencing functions.
func (f FlowInstance) Clone() FlowInstance {
	c := f
	c.Documents = f.Documents.Clone()
	c.ADRTriggers = append([]string(nil), f.ADRTriggers...)
	if f.Revisions != nil {
		c.Revisions = make(map[string]int, len(f.Revisions))
		for k, v := range f.Revisions {
			c.Revisions[k] = v
		}
	}
	if f.Plan != nil {
		c.Plan = make([]PlannedTask, len(f.Plan))
		for i, p := range f.Plan {
			p.DependsOn = append([]string(nil), p.DependsOn...)
			p.TargetFiles = append([]string(nil), p.TargetFiles...)
			c.Plan[i] = p
		}
	}
	if f.Tasks != nil {
		c.Tasks = make([]Task, len(f.Tasks))
		for i := range f.Tasks {
			c.Tasks[i] = *f.Tasks[i].Clone()
		}
	}
	c.Artifacts = append([]string(nil), f.Artifacts...)
	c.Escalations = append([]EscalationEvent(nil), f.Escalations...)
	c.History = append([]PhaseRecord(nil), f.History...)
	return c
}

// RevisionCount returns how many revisions phase has requested so far.
func (f FlowInstance) RevisionCount(phase string) int {
	return f.Revisions[phase]
}
