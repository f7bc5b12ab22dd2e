// Package errors provides centralized error handling for cadence.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrInvalidEstimate indicates a file-count estimate that cannot be classified.
	ErrInvalidEstimate = errors.New("invalid file count estimate")

	// ErrInvalidTransition indicates a task or flow state change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidPhaseList indicates a phase table that breaks the gate or revision rules.
	ErrInvalidPhaseList = errors.New("invalid phase list")

	// ErrUnknownVariant indicates a flow variant with no phase table.
	ErrUnknownVariant = errors.New("unknown flow variant")

	// ErrUnknownMode indicates a flow mode that is not supported.
	ErrUnknownMode = errors.New("unknown flow mode")

	// ErrUnknownRole indicates a collaborator role outside the closed role set.
	ErrUnknownRole = errors.New("unknown collaborator role")

	// ErrCollaboratorUnavailable indicates no collaborator is registered for a role.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

	// ErrCollaboratorExists indicates a role already has a registered collaborator.
	ErrCollaboratorExists = errors.New("collaborator already registered")

	// ErrInvalidResponse indicates a collaborator response missing required fields.
	ErrInvalidResponse = errors.New("invalid collaborator response")

	// ErrInvalidInvocation indicates an invocation that does not meet the contract.
	ErrInvalidInvocation = errors.New("invalid invocation")

	// ErrScriptExhausted indicates a scripted collaborator has no responses left.
	ErrScriptExhausted = errors.New("scripted responses exhausted")

	// ErrEscalated indicates work stopped and needs a human decision.
	// The concrete event is available through errors.As on *domain.EscalationError.
	ErrEscalated = errors.New("escalated to user")

	// ErrInvalidEscalation indicates an escalation that lacks what, why or next step.
	ErrInvalidEscalation = errors.New("invalid escalation")

	// ErrFlowHalted indicates an operation on a flow that already finished.
	ErrFlowHalted = errors.New("flow halted")

	// ErrGatePending indicates the flow is waiting at a stop point.
	ErrGatePending = errors.New("approval pending")

	// ErrNoPendingGate indicates an approval was supplied with no gate waiting.
	ErrNoPendingGate = errors.New("no pending approval")

	// ErrApprovalResolved indicates a stop point was resolved more than once.
	ErrApprovalResolved = errors.New("approval already resolved")

	// ErrBatchApprovalMissing indicates execution was requested before batch approval.
	ErrBatchApprovalMissing = errors.New("batch approval not recorded")

	// ErrBlocked indicates a precondition for autonomous execution is missing.
	ErrBlocked = errors.New("execution blocked")

	// ErrInvalidPlan indicates a task list with unknown dependencies or cycles.
	ErrInvalidPlan = errors.New("invalid work plan")

	// ErrCommitBeforeQuality indicates a commit attempted before quality approval.
	ErrCommitBeforeQuality = errors.New("commit requires quality approval")

	// ErrInvalidCommitStrategy indicates an unknown commit strategy.
	ErrInvalidCommitStrategy = errors.New("invalid commit strategy")

	// ErrNothingToCommit indicates a manual commit signal with no pending tasks.
	ErrNothingToCommit = errors.New("nothing to commit")

	// ErrOwnershipViolation indicates a collaborator wrote an artifact it does not own.
	ErrOwnershipViolation = errors.New("artifact ownership violation")

	// ErrFanOutSize indicates an expert panel outside the supported size.
	ErrFanOutSize = errors.New("invalid expert panel size")

	// ErrExpertTimeout indicates an expert fan-out did not join in time.
	ErrExpertTimeout = errors.New("expert analysis timed out")

	// ErrRootCauseRequired indicates fixes are suspended until a root-cause analysis exists.
	ErrRootCauseRequired = errors.New("root cause analysis required")

	// ErrImpactReportRequired indicates a breadth threshold fired without an impact report.
	ErrImpactReportRequired = errors.New("impact report required")

	// ErrUserStopped indicates the user halted execution.
	ErrUserStopped = errors.New("stopped by user")

	// ErrNotResumable indicates a resume request for a task that is not escalated.
	ErrNotResumable = errors.New("task is not resumable")

	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigNotFound indicates that the configuration file was not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrValueOutOfRange indicates a configuration value outside its allowed range.
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrInvalidArgument indicates a malformed command argument.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflictingFlags indicates mutually exclusive flags were combined.
	ErrConflictingFlags = errors.New("conflicting flags specified")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrFlowNotFound indicates a flow snapshot does not exist.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrFlowExists indicates a flow snapshot with the same ID already exists.
	ErrFlowExists = errors.New("flow already exists")

	// ErrLockTimeout indicates a file lock could not be acquired in time.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrJournal indicates the event journal could not be read or written.
	ErrJournal = errors.New("journal operation failed")

	// ErrGitOperation indicates that a git command failed.
	ErrGitOperation = errors.New("git operation failed")

	// ErrScenarioInvalid indicates a simulation scenario file that cannot be used.
	ErrScenarioInvalid = errors.New("invalid scenario")

	// ErrMenuCanceled indicates the user canceled an interactive prompt.
	ErrMenuCanceled = errors.New("menu canceled by user")

	// ErrInteractiveRequired indicates a prompt was needed in non-interactive mode.
	ErrInteractiveRequired = errors.New("interactive prompt required")

	// ErrJSONErrorOutput indicates the error was already written as JSON.
	ErrJSONErrorOutput = errors.New("error output as JSON")
)

// ExitCode2Error wraps an error to indicate exit code 2 should be used.
type ExitCode2Error struct {
	Err error
}

// NewExitCode2Error wraps an error to indicate exit code 2.
func NewExitCode2Error(err error) *ExitCode2Error {
	return &ExitCode2Error{Err: err}
}

// Error implements the error interface.
func (e *ExitCode2Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitCode2Error) Unwrap() error {
	return e.Err
}

// IsExitCode2Error checks if an error should result in exit code 2.
func IsExitCode2Error(err error) bool {
	var e *ExitCode2Error
	return errors.As(err, &e)
}
