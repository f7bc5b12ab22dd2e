package config

import "github.com/mrz1836/cadence/internal/constants"

// Default log file settings.
const (
	defaultLogLevel   = "info"
	defaultLogSizeMB  = 10
	defaultLogBackups = 3
)

// DefaultConfig returns a new Config with the built-in defaults.
// These are the base layer that config files, environment variables and CLI
// flags override.
func DefaultConfig() *Config {
	return &Config{
		Flow: FlowConfig{
			Mode: string(constants.ModeFull),

			// CommitStrategy: empty means the user picks one when execution starts.
			CommitStrategy: "",

			MaxRevisions:          constants.MaxReviewIterations,
			MaxReviewIterations:   constants.MaxIntegrationReviewRejections,
			MaxQualityFixAttempts: constants.MaxQualityFixAttempts,
			ExpertTimeout:         constants.DefaultExpertTimeout,
		},
		Thresholds: ThresholdsConfig{
			RepeatedError:   constants.RepeatedErrorThreshold,
			FilesPerTask:    constants.FilesPerTaskThreshold,
			EditInvocations: constants.EditInvocationThreshold,
			SameFileEdits:   constants.SameFileEditThreshold,
		},
		Scale: ScaleConfig{
			SmallMax:  constants.SmallMaxFiles,
			MediumMax: constants.MediumMaxFiles,
		},
		Storage: StorageConfig{
			// Home: empty resolves to the user's home directory.
			Home:        "",
			JournalFile: constants.JournalFileName,
		},
		Logging: LoggingConfig{
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogSizeMB,
			MaxBackups: defaultLogBackups,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}
