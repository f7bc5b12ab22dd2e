// Package config provides configuration management for cadence with layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. CLI flags (passed via LoadWithOverrides)
//  2. Environment variables (CADENCE_* prefix)
//  3. Project config (.cadence/config.yaml)
//  4. Global config (~/.cadence/config.yaml)
//  5. Built-in defaults
//
// Each higher level completely overrides the lower level for the same key.
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import internal/domain or other internal packages.
package config

import "time"

// Config is the root configuration structure for cadence.
type Config struct {
	// Flow contains settings for phase sequencing and autonomous execution.
	Flow FlowConfig `yaml:"flow" mapstructure:"flow"`

	// Thresholds contains the escalation watcher thresholds.
	Thresholds ThresholdsConfig `yaml:"thresholds" mapstructure:"thresholds"`

	// Scale contains the file-count boundaries of the scale classes.
	Scale ScaleConfig `yaml:"scale" mapstructure:"scale"`

	// Storage contains settings for flow snapshots and the event journal.
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Logging contains settings for the CLI log file.
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Metrics contains settings for flow metrics.
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// FlowConfig controls how a flow moves through its phases and tasks.
type FlowConfig struct {
	// Mode is the default flow mode ("full", "design_only" or "prototype").
	// Default: "full"
	Mode string `yaml:"mode" mapstructure:"mode"`

	// CommitStrategy is used when the user is not asked to choose one.
	// Empty means ask at execution start.
	// Default: ""
	CommitStrategy string `yaml:"commit_strategy" mapstructure:"commit_strategy"`

	// MaxRevisions bounds the revise-and-re-review loop of a design phase.
	// Default: 2
	MaxRevisions int `yaml:"max_revisions" mapstructure:"max_revisions"`

	// MaxReviewIterations bounds integration-test review rejections per task.
	// Default: 2
	MaxReviewIterations int `yaml:"max_review_iterations" mapstructure:"max_review_iterations"`

	// MaxQualityFixAttempts bounds quality-fixer invocations per task.
	// Default: 3
	MaxQualityFixAttempts int `yaml:"max_quality_fix_attempts" mapstructure:"max_quality_fix_attempts"`

	// ExpertTimeout bounds the expert-analysis join barrier.
	// Default: 10m
	ExpertTimeout time.Duration `yaml:"expert_timeout" mapstructure:"expert_timeout"`
}

// ThresholdsConfig holds the escalation detector thresholds.
type ThresholdsConfig struct {
	// RepeatedError is how many times one error may be seen before fixes stop.
	// Default: 3
	RepeatedError int `yaml:"repeated_error" mapstructure:"repeated_error"`

	// FilesPerTask is the number of files one task may touch.
	// Default: 5
	FilesPerTask int `yaml:"files_per_task" mapstructure:"files_per_task"`

	// EditInvocations is the number of edit calls one task may make.
	// Default: 5
	EditInvocations int `yaml:"edit_invocations" mapstructure:"edit_invocations"`

	// SameFileEdits is the number of edits one file may receive within a task.
	// Default: 3
	SameFileEdits int `yaml:"same_file_edits" mapstructure:"same_file_edits"`
}

// ScaleConfig holds the scale classifier boundaries.
type ScaleConfig struct {
	// SmallMax is the largest estimate classified as small.
	// Default: 2
	SmallMax int `yaml:"small_max" mapstructure:"small_max"`

	// MediumMax is the largest estimate classified as medium.
	// Default: 5
	MediumMax int `yaml:"medium_max" mapstructure:"medium_max"`
}

// StorageConfig locates persisted state.
type StorageConfig struct {
	// Home is the directory holding .cadence. Empty means the user's home directory.
	Home string `yaml:"home" mapstructure:"home"`

	// JournalFile is the journal database file name under the cadence home.
	// Default: "journal.db"
	JournalFile string `yaml:"journal_file" mapstructure:"journal_file"`
}

// LoggingConfig controls the rotating CLI log file.
type LoggingConfig struct {
	// Level is the minimum level written to the log file.
	// Default: "info"
	Level string `yaml:"level" mapstructure:"level"`

	// MaxSizeMB is the size at which the log file rotates.
	// Default: 10
	MaxSizeMB int `yaml:"max_size_mb" mapstructure:"max_size_mb"`

	// MaxBackups is the number of rotated files kept.
	// Default: 3
	MaxBackups int `yaml:"max_backups" mapstructure:"max_backups"`
}

// MetricsConfig controls flow metrics.
type MetricsConfig struct {
	// Enabled turns on the prometheus collectors.
	// Default: true
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}
