package domain

import (
	"time"

	"github.com/mrz1836/cadence/internal/constants"
)

// Task is one implementation unit inside the execution loop.
// Tasks are created from the decomposition plan and move strictly forward
// through the per-task cycle. Committed and escalated end the cycle.
//
// Example JSON representation:
//
//	{
//	    "id": "task-01",
//	    "title": "Add session store",
//	    "phase": "phase-1",
//	    "depends_on": [],
//	    "status": "quality_checked",
//	    "transitions": [...]
//	}
type Task struct {
	// ID is the identifier assigned by decomposition.
	ID string `json:"id"`

	// Title is a short human-readable summary.
	Title string `json:"title"`

	// Phase groups tasks for the per-phase commit strategy.
	Phase string `json:"phase,omitempty"`

	// DependsOn lists task IDs that must finish first.
	DependsOn []string `json:"depends_on,omitempty"`

	// TargetFiles are the files the plan expects the task to touch.
	TargetFiles []string `json:"target_files,omitempty"`

	// Status is the current state in the task cycle.
	Status constants.TaskStatus `json:"status"`

	// FilesModified and TestsAdded are the executor's latest report.
	FilesModified []string `json:"files_modified,omitempty"`
	TestsAdded    []string `json:"tests_added,omitempty"`

	// ChecksPassed lists quality checks that passed on the approving run.
	ChecksPassed []string `json:"checks_passed,omitempty"`

	// ReviewRejections counts integration test review rejections.
	ReviewRejections int `json:"review_rejections,omitempty"`

	// QualityAttempts counts quality-fixer runs.
	QualityAttempts int `json:"quality_attempts,omitempty"`

	// CommitRef is the commit that includes this task, once committed.
	CommitRef string `json:"commit_ref,omitempty"`

	// EscalationID links the event that stopped this task.
	EscalationID string `json:"escalation_id,omitempty"`

	// Transitions is the ordered audit trail of status changes.
	Transitions []TaskTransition `json:"transitions,omitempty"`

	// UpdatedAt is when the task last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskTransition records a single status change.
type TaskTransition struct {
	FromStatus constants.TaskStatus `json:"from_status"`
	ToStatus   constants.TaskStatus `json:"to_status"`
	Timestamp  time.Time            `json:"timestamp"`
	Reason     string               `json:"reason,omitempty"`
}

// NewTask creates a pending task from a planned task.
func NewTask(planned PlannedTask) *Task {
	return &Task{
		ID:          planned.ID,
		Title:       planned.Title,
		Phase:       planned.Phase,
		DependsOn:   append([]string(nil), planned.DependsOn...),
		TargetFiles: append([]string(nil), planned.TargetFiles...),
		Status:      constants.TaskStatusPending,
		UpdatedAt:   time.Now().UTC(),
	}
}

// Clone returns an independent copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.DependsOn = append([]string(nil), t.DependsOn...)
	c.TargetFiles = append([]string(nil), t.TargetFiles...)
	c.FilesModified = append([]string(nil), t.FilesModified...)
	c.TestsAdded = append([]string(nil), t.TestsAdded...)
	c.ChecksPassed = append([]string(nil), t.ChecksPassed...)
	c.Transitions = append([]TaskTransition(nil), t.Transitions...)
	return &c
}
