package constants

// Log file names.
const (
	// CLILogFileName is the name of the global CLI log file.
	// This file is located in ~/.cadence/logs/cadence.log
	CLILogFileName = "cadence.log"
)

// Configuration file names.
const (
	// GlobalConfigName is the name of the cadence configuration file.
	// The global copy lives in ~/.cadence, the project copy in .cadence.
	GlobalConfigName = "config.yaml"
)

// Artifact directories, relative to the project root.
const (
	DocsDir      = "docs"
	PRDDir       = "docs/prd"
	UXRDDir      = "docs/uxrd"
	ADRDir       = "docs/adr"
	DesignDir    = "docs/design"
	PlansDir     = "docs/plans"
	TaskFilesDir = "docs/plans/tasks"
)
