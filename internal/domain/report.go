package domain

import "github.com/mrz1836/cadence/internal/constants"

// CompletionReport is the final summary presented to the human.
type CompletionReport struct {
	FlowID            string                   `json:"flow_id"`
	Scale             constants.Scale          `json:"scale"`
	Variant           constants.FlowVariant    `json:"variant"`
	CommitStrategy    constants.CommitStrategy `json:"commit_strategy,omitempty"`
	DocumentsProduced []string                 `json:"documents_produced"`
	TasksCompleted    []string                 `json:"tasks_completed"`
	CommitsMade       []string                 `json:"commits_made"`
	ChecksPassed      []string                 `json:"checks_passed"`
	PendingCommits    []string                 `json:"pending_commits,omitempty"`
	Escalations       []EscalationEvent        `json:"escalations,omitempty"`
	Halted            bool                     `json:"halted"`
}
