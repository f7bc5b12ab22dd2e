// Package execution runs approved work plans task by task.
//
// This file implements the task state machine, which enforces the per-task
// cycle and keeps an audit trail of every status change. Commit is only
// reachable from quality_checked, so no commit can precede quality approval.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors,
//     internal/collaborator, internal/escalation, std lib
//   - MUST NOT import: internal/flow, internal/orchestrator, internal/cli
package execution

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

// ValidTransitions defines all allowed state transitions in the task cycle.
// Format: from_status -> []to_statuses
//
//	Pending → Executing
//	Executing → ReviewNeeded, QualityChecking, Escalated
//	ReviewNeeded → QualityChecking, Executing, Escalated
//	QualityChecking → QualityChecking (fix retry), QualityChecked, Escalated
//	QualityChecked → Committed, Escalated
//
// Escalated leaves the cycle. Only Resume moves it back to Executing.
//
//nolint:gochecknoglobals // Exported for testing and read-only lookup table
var ValidTransitions = map[constants.TaskStatus][]constants.TaskStatus{
	constants.TaskStatusPending: {constants.TaskStatusExecuting},
	constants.TaskStatusExecuting: {
		constants.TaskStatusReviewNeeded,
		constants.TaskStatusQualityChecking,
		constants.TaskStatusEscalated,
	},
	constants.TaskStatusReviewNeeded: {
		constants.TaskStatusQualityChecking,
		constants.TaskStatusExecuting, // review rejected, fix and retry
		constants.TaskStatusEscalated,
	},
	constants.TaskStatusQualityChecking: {
		constants.TaskStatusQualityChecking, // another quality-fixer attempt
		constants.TaskStatusQualityChecked,
		constants.TaskStatusEscalated,
	},
	constants.TaskStatusQualityChecked:  {constants.TaskStatusCommitted, constants.TaskStatusEscalated},
}

// terminalStatuses defines states where no further transitions are allowed.
// MAINTENANCE: When adding new statuses, update both ValidTransitions and this map.
//
//nolint:gochecknoglobals // Read-only lookup table for terminal state checks
var terminalStatuses = map[constants.TaskStatus]bool{
	constants.TaskStatusCommitted: true,
	constants.TaskStatusEscalated: true,
}

// IsValidTransition checks if a transition from one status to another is allowed.
// Returns false for transitions from terminal states. The only self transition
// is a quality-fixer retry.
func IsValidTransition(from, to constants.TaskStatus) bool {
	validTargets, exists := ValidTransitions[from]
	if !exists {
		return false
	}
	for _, target := range validTargets {
		if target == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus returns true for committed and escalated tasks.
func IsTerminalStatus(status constants.TaskStatus) bool {
	return terminalStatuses[status]
}

// IsDone reports whether a task satisfies dependents: it is committed or
// has passed quality checks and waits for its commit.
func IsDone(status constants.TaskStatus) bool {
	return status == constants.TaskStatusCommitted || status == constants.TaskStatusQualityChecked
}

// GetValidTargetStatuses returns all valid target statuses for a given status.
// Returns nil for terminal states or unknown statuses.
func GetValidTargetStatuses(from constants.TaskStatus) []constants.TaskStatus {
	targets, exists := ValidTransitions[from]
	if !exists {
		return nil
	}
	result := make([]constants.TaskStatus, len(targets))
	copy(result, targets)
	return result
}

// Transition validates and applies a state transition to the task.
// It records the transition in the task's history and updates timestamps.
// Moving to committed additionally requires a recorded quality approval.
//
// Returns an error if:
//   - ctx is canceled
//   - task is nil
//   - The transition is invalid (returns wrapped ErrInvalidTransition)
//   - The task is committed without quality approval (ErrCommitBeforeQuality)
func Transition(ctx context.Context, task *domain.Task, to constants.TaskStatus, reason string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if task == nil {
		return fmt.Errorf("%w: task is nil", cadenceerrors.ErrInvalidTransition)
	}

	from := task.Status
	if !IsValidTransition(from, to) {
		return fmt.Errorf("%w: cannot transition task %s from %s to %s",
			cadenceerrors.ErrInvalidTransition, task.ID, from, to)
	}
	if to == constants.TaskStatusCommitted && !QualityApproved(task) {
		return fmt.Errorf("%w: task %s", cadenceerrors.ErrCommitBeforeQuality, task.ID)
	}

	record(task, from, to, reason)
	return nil
}

// Resume moves an escalated task back to executing once a human resolved
// the escalation. Review and quality counters start over.
func Resume(task *domain.Task, reason string) error {
	if task == nil || task.Status != constants.TaskStatusEscalated {
		status := constants.TaskStatus("")
		id := ""
		if task != nil {
			status, id = task.Status, task.ID
		}
		return fmt.Errorf("%w: task %s is %s", cadenceerrors.ErrNotResumable, id, status)
	}
	record(task, task.Status, constants.TaskStatusExecuting, reason)
	task.ReviewRejections = 0
	task.QualityAttempts = 0
	task.EscalationID = ""
	return nil
}

func record(task *domain.Task, from, to constants.TaskStatus, reason string) {
	now := time.Now().UTC()
	task.Transitions = append(task.Transitions, domain.TaskTransition{
		FromStatus: from,
		ToStatus:   to,
		Timestamp:  now,
		Reason:     reason,
	})
	task.Status = to
	task.UpdatedAt = now
}

// QualityApproved reports whether the task's history holds a quality approval
// that was not undone by a later return to executing.
func QualityApproved(task *domain.Task) bool {
	if task == nil {
		return false
	}
	approved := false
	for _, tr := range task.Transitions {
		switch {
		case tr.FromStatus == constants.TaskStatusQualityChecking && tr.ToStatus == constants.TaskStatusQualityChecked:
			approved = true
		case tr.ToStatus == constants.TaskStatusExecuting:
			approved = false
		}
	}
	return approved
}

//nolint:gochecknoglobals // Compiled once
var integrationTestPattern = regexp.MustCompile(`(^|/)(integration|e2e)/|\.int\.test\.|\.e2e\.|_integration_test\.go$|_e2e_test\.go$`)

// IsIntegrationTest reports whether path names an integration or end-to-end
// test, which needs the integration test reviewer before quality checks.
func IsIntegrationTest(path string) bool {
	return integrationTestPattern.MatchString(path)
}
