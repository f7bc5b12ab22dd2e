package errors

import "errors"

// ErrorInfo holds user-facing message and suggested action for an error.
type ErrorInfo struct {
	// Message is the user-friendly error description.
	Message string
	// Action is a suggested action to resolve the issue (empty if none).
	Action string
}

// errorEntry pairs a sentinel error with its user-facing info.
type errorEntry struct {
	err  error
	info ErrorInfo
}

// errorInfoEntries maps sentinel errors to their user-facing messages.
// A slice keeps errors.Is() traversal order deterministic.
//
//nolint:gochecknoglobals // Pre-built mapping for efficiency
var errorInfoEntries = []errorEntry{
	// ===================
	// Flow control
	// ===================
	{
		err: ErrEscalated,
		info: ErrorInfo{
			Message: "The flow stopped and needs your decision.",
			Action:  "Read the escalation above, resolve it, then resume the flow.",
		},
	},
	{
		err: ErrGatePending,
		info: ErrorInfo{
			Message: "The flow is waiting at a stop point.",
			Action:  "Approve or reject the pending artifact to continue.",
		},
	},
	{
		err: ErrBatchApprovalMissing,
		info: ErrorInfo{
			Message: "Autonomous execution needs batch approval of the work plan.",
			Action:  "Approve the task decomposition before starting execution.",
		},
	},
	{
		err: ErrBlocked,
		info: ErrorInfo{
			Message: "Execution cannot start because a precondition is missing.",
			Action:  "Check that a committer is configured or choose the manual commit strategy.",
		},
	},
	{
		err: ErrUserStopped,
		info: ErrorInfo{
			Message: "Execution was stopped. The in-flight task is recorded as escalated.",
			Action:  "Resume the flow when you are ready to continue.",
		},
	},
	{
		err: ErrInvalidPhaseList,
		info: ErrorInfo{
			Message: "The phase table is invalid.",
			Action:  "Make sure exactly one batch gate exists and it is the final phase.",
		},
	},

	// ===================
	// Collaborators
	// ===================
	{
		err: ErrCollaboratorUnavailable,
		info: ErrorInfo{
			Message: "A required collaborator is not registered.",
			Action:  "Register a collaborator for the role named in the error.",
		},
	},
	{
		err: ErrUnknownRole,
		info: ErrorInfo{
			Message: "The collaborator role is not one of the known roles.",
			Action:  "Run 'cadence phases' to list the roles each phase uses.",
		},
	},
	{
		err: ErrScriptExhausted,
		info: ErrorInfo{
			Message: "The scenario ran out of scripted responses.",
			Action:  "Add responses for the role named in the error to the scenario file.",
		},
	},
	{
		err: ErrOwnershipViolation,
		info: ErrorInfo{
			Message: "A collaborator wrote a document it does not own.",
			Action:  "Route the change through the owning collaborator.",
		},
	},

	// ===================
	// Configuration & input
	// ===================
	{
		err: ErrInvalidEstimate,
		info: ErrorInfo{
			Message: "The file count estimate must be a non-negative integer.",
		},
	},
	{
		err: ErrInvalidCommitStrategy,
		info: ErrorInfo{
			Message: "Unknown commit strategy.",
			Action:  "Use one of: per-task, per-phase, per-feature, manual.",
		},
	},
	{
		err: ErrScenarioInvalid,
		info: ErrorInfo{
			Message: "The scenario file is invalid.",
			Action:  "Check the scenario YAML against the documented format.",
		},
	},
	{
		err: ErrConfigNotFound,
		info: ErrorInfo{
			Message: "Configuration file not found.",
			Action:  "Create ~/.cadence/config.yaml or rely on the defaults.",
		},
	},
	{
		err: ErrValueOutOfRange,
		info: ErrorInfo{
			Message: "A configuration value is out of range.",
			Action:  "Check the flow and thresholds sections of your config.",
		},
	},

	// ===================
	// Storage
	// ===================
	{
		err: ErrFlowNotFound,
		info: ErrorInfo{
			Message: "Flow not found.",
			Action:  "Run 'cadence status' to list stored flows.",
		},
	},
	{
		err: ErrLockTimeout,
		info: ErrorInfo{
			Message: "Another cadence process holds the flow lock.",
			Action:  "Wait for the other process to finish and retry.",
		},
	},
	{
		err: ErrJournal,
		info: ErrorInfo{
			Message: "The event journal could not be accessed.",
			Action:  "Check permissions on the journal file under ~/.cadence.",
		},
	},
	{
		err: ErrGitOperation,
		info: ErrorInfo{
			Message: "A git command failed.",
			Action:  "Check the repository state and your git configuration.",
		},
	},
}

// errorInfoMap provides O(1) lookup for direct sentinel error matches.
//
//nolint:gochecknoglobals // Pre-built mapping for O(1) lookup performance
var errorInfoMap = buildErrorInfoMap()

func buildErrorInfoMap() map[error]ErrorInfo {
	m := make(map[error]ErrorInfo, len(errorInfoEntries))
	for _, entry := range errorInfoEntries {
		m[entry.err] = entry.info
	}
	return m
}

// getErrorInfo looks up the ErrorInfo for a given error.
// Direct sentinel matches hit the map, wrapped errors fall back to errors.Is().
func getErrorInfo(err error) ErrorInfo {
	if info, ok := errorInfoMap[err]; ok {
		return info
	}

	for _, entry := range errorInfoEntries {
		if errors.Is(err, entry.err) {
			return entry.info
		}
	}

	return ErrorInfo{Message: err.Error()}
}

// UserMessage returns a user-friendly message for common errors.
// For unrecognized errors, it returns the error's original message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return getErrorInfo(err).Message
}

// Actionable returns a user-friendly error message along with a suggested
// action the user can take to resolve or work around the issue.
func Actionable(err error) (message, action string) {
	if err == nil {
		return "", ""
	}
	info := getErrorInfo(err)
	return info.Message, info.Action
}
