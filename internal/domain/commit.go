package domain

import "github.com/mrz1836/cadence/internal/constants"

// CommitRequest asks a committer to record the work of one or more tasks.
type CommitRequest struct {
	FlowID   string                   `json:"flow_id"`
	Strategy constants.CommitStrategy `json:"strategy"`
	TaskIDs  []string                 `json:"task_ids"`
	Files    []string                 `json:"files,omitempty"`
	Message  string                   `json:"message"`
}
