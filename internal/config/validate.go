package config

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/errors"
)

// Bounds for configurable values.
const (
	maxLoopBound     = 10
	minExpertTimeout = time.Second
	maxExpertTimeout = 2 * time.Hour
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - flow.mode must be full, design_only or prototype
//   - flow.commit_strategy must be empty or a known strategy
//   - revision, review and quality-fix bounds must be between 1 and 10
//   - flow.expert_timeout must be between 1 second and 2 hours
//   - every threshold must be at least 1
//   - scale.small_max must be non-negative and below scale.medium_max
//   - storage.journal_file must not be empty
//   - logging.level must parse as a zerolog level
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}

	if err := validateFlowConfig(&cfg.Flow); err != nil {
		return err
	}

	if err := validateThresholds(&cfg.Thresholds); err != nil {
		return err
	}

	if cfg.Scale.SmallMax < 0 || cfg.Scale.MediumMax <= cfg.Scale.SmallMax {
		return errors.Wrapf(errors.ErrValueOutOfRange,
			"scale.small_max (%d) must be non-negative and below scale.medium_max (%d)",
			cfg.Scale.SmallMax, cfg.Scale.MediumMax)
	}

	if cfg.Storage.JournalFile == "" {
		return errors.Wrap(errors.ErrEmptyValue, "storage.journal_file must not be empty")
	}

	if _, err := zerolog.ParseLevel(cfg.Logging.Level); err != nil {
		return errors.Wrapf(errors.ErrValueOutOfRange,
			"logging.level %q is not a log level", cfg.Logging.Level)
	}

	return nil
}

// validateFlowConfig checks flow-specific configuration values.
func validateFlowConfig(cfg *FlowConfig) error {
	switch constants.Mode(cfg.Mode) {
	case constants.ModeFull, constants.ModeDesignOnly, constants.ModePrototype:
	default:
		return errors.Wrapf(errors.ErrUnknownMode, "flow.mode %q", cfg.Mode)
	}

	if cfg.CommitStrategy != "" && !knownStrategy(cfg.CommitStrategy) {
		return errors.Wrapf(errors.ErrInvalidCommitStrategy,
			"flow.commit_strategy %q", cfg.CommitStrategy)
	}

	bounds := []struct {
		key   string
		value int
	}{
		{"flow.max_revisions", cfg.MaxRevisions},
		{"flow.max_review_iterations", cfg.MaxReviewIterations},
		{"flow.max_quality_fix_attempts", cfg.MaxQualityFixAttempts},
	}
	for _, b := range bounds {
		if b.value < 1 || b.value > maxLoopBound {
			return errors.Wrapf(errors.ErrValueOutOfRange,
				"%s must be between 1 and %d, got %d", b.key, maxLoopBound, b.value)
		}
	}

	if cfg.ExpertTimeout < minExpertTimeout || cfg.ExpertTimeout > maxExpertTimeout {
		return errors.Wrapf(errors.ErrValueOutOfRange,
			"flow.expert_timeout must be between %s and %s, got %s",
			minExpertTimeout, maxExpertTimeout, cfg.ExpertTimeout)
	}

	return nil
}

// validateThresholds checks the escalation thresholds.
func validateThresholds(cfg *ThresholdsConfig) error {
	thresholds := []struct {
		key   string
		value int
	}{
		{"thresholds.repeated_error", cfg.RepeatedError},
		{"thresholds.files_per_task", cfg.FilesPerTask},
		{"thresholds.edit_invocations", cfg.EditInvocations},
		{"thresholds.same_file_edits", cfg.SameFileEdits},
	}
	for _, th := range thresholds {
		if th.value < 1 {
			return errors.Wrapf(errors.ErrValueOutOfRange,
				"%s must be at least 1, got %d", th.key, th.value)
		}
	}
	return nil
}

func knownStrategy(s string) bool {
	for _, known := range constants.CommitStrategies() {
		if string(known) == s {
			return true
		}
	}
	return false
}
