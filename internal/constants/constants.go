// Package constants provides centralized constant values used throughout cadence.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// File names used by cadence for state persistence.
const (
	// FlowFileName is the name of the JSON file that stores a flow snapshot.
	FlowFileName = "flow.json"

	// JournalFileName is the default name of the SQLite event journal.
	JournalFileName = "journal.db"
)

// Directory names and paths used by cadence for organizing data.
const (
	// CadenceHome is the hidden directory name where cadence stores all its data.
	// This directory is created in the user's home directory.
	CadenceHome = ".cadence"

	// FlowsDir is the directory name where flow snapshots are stored.
	FlowsDir = "flows"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"
)

// Scale thresholds used by the classifier.
// An estimate at or below SmallMaxFiles is small, at or below MediumMaxFiles
// is medium, anything larger is large.
const (
	SmallMaxFiles  = 2
	MediumMaxFiles = 5
)

// Loop bounds for revision and fix cycles.
const (
	// MaxReviewIterations is the number of revisions a review phase may request
	// before the flow escalates. A third consecutive needs_revision escalates.
	MaxReviewIterations = 2

	// MaxIntegrationReviewRejections bounds how often the integration test
	// reviewer may send a task back to the executor.
	MaxIntegrationReviewRejections = 2

	// MaxQualityFixAttempts bounds the quality-fixer loop per task.
	MaxQualityFixAttempts = 3
)

// Escalation thresholds watched during autonomous execution.
const (
	// RepeatedErrorThreshold is how many identical errors trigger root-cause analysis.
	RepeatedErrorThreshold = 3

	// FilesPerTaskThreshold is the file count per task that pauses for an impact report.
	FilesPerTaskThreshold = 5

	// EditInvocationThreshold is the number of edit invocations that pauses for an impact report.
	EditInvocationThreshold = 5

	// SameFileEditThreshold is the number of edits to one file that pauses for an impact report.
	SameFileEditThreshold = 3
)

// ADR trigger thresholds. Reaching any of these forces an ADR regardless of scale.
const (
	ADRNestedContractDepth       = 3
	ADRMultiLocationChanges      = 3
	ADRProcessingReorderSteps    = 3
	ADRConcurrentStates          = 3
	ADRConcurrentAsyncOperations = 5
)

// Expert fan-out bounds.
const (
	// MinExperts is the smallest expert panel a fan-out accepts.
	MinExperts = 3

	// MaxExperts is the largest expert panel a fan-out accepts.
	MaxExperts = 5

	// DefaultExpertTimeout bounds the join barrier of an expert fan-out.
	DefaultExpertTimeout = 10 * time.Minute
)

// Schema version constants for data migration support.
const (
	// FlowSchemaVersion is the current version of the flow snapshot JSON schema.
	FlowSchemaVersion = "1.0"
)
