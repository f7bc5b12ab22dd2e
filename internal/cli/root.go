// Package cli provides the command-line interface for cadence.
package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mrz1836/cadence/internal/config"
	"github.com/mrz1836/cadence/internal/errors"
)

// BuildInfo contains version information set at build time via ldflags.
type BuildInfo struct {
	// Version is the semantic version (e.g., "1.0.0").
	Version string
	// Commit is the git commit hash.
	Commit string
	// Date is the build date.
	Date string
}

// globalLogger stores the initialized logger for use by subcommands.
// It is set during PersistentPreRunE and should be accessed via GetLogger.
var (
	globalLogger   zerolog.Logger //nolint:gochecknoglobals // CLI logger requires global access
	globalLoggerMu sync.RWMutex   //nolint:gochecknoglobals // Protects globalLogger
)

// GetLogger returns the initialized logger for use by subcommands.
//
// It MUST only be called after the root command's PersistentPreRunE has
// executed. Before that it returns a zero-value logger that discards output.
// Safe for concurrent use.
func GetLogger() zerolog.Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

// app carries what every subcommand needs once the root command ran its
// pre-run: the parsed global flags and the loaded configuration.
type app struct {
	flags *GlobalFlags
	cfg   *config.Config
}

// config returns the loaded configuration, or the defaults before pre-run.
func (a *app) config() *config.Config {
	if a.cfg == nil {
		return config.DefaultConfig()
	}
	return a.cfg
}

// newRootCmd creates and returns the root command for the cadence CLI.
func newRootCmd(flags *GlobalFlags, info BuildInfo) *cobra.Command {
	v := viper.New()
	a := &app{flags: flags}

	cmd := &cobra.Command{
		Use:   "cadence",
		Short: "cadence - phase orchestration for multi-agent design and implementation",
		Long: `cadence sequences specialist collaborators through requirement analysis,
design documents, planning and autonomous task execution.

Features:
  • Scale classification and document requirement resolution
  • Phase sequencing with bounded revision loops
  • Stop points for human approval before execution
  • Autonomous execution with review, quality fixing and commits
  • Escalation on blockers, runaway edits and requirement changes`,
		Version: formatVersion(info),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := BindGlobalFlags(v, cmd); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}
			applyBoundFlags(v, cmd, flags)

			if !IsValidOutputFormat(flags.Output) {
				return fmt.Errorf("%w: %q must be one of %v", errors.ErrInvalidOutputFormat, flags.Output, ValidOutputFormats())
			}

			var overrides *config.Config
			if flags.Home != "" {
				overrides = &config.Config{Storage: config.StorageConfig{Home: flags.Home}}
			}
			cfg, err := config.LoadWithOverrides(cmd.Context(), overrides)
			if err != nil {
				return err
			}
			a.cfg = cfg

			globalLoggerMu.Lock()
			globalLogger = InitLogger(flags.Verbose, flags.Quiet, cfg)
			globalLoggerMu.Unlock()

			return nil
		},
		// We print our own error messages.
		SilenceUsage: true,
	}

	AddGlobalFlags(cmd, flags)

	AddClassifyCommand(cmd, a)
	AddResolveCommand(cmd, a)
	AddPhasesCommand(cmd, a)
	AddSimulateCommand(cmd, a)
	AddStatusCommand(cmd, a)
	AddJournalCommand(cmd, a)
	AddCommitCommand(cmd, a)
	AddResumeCommand(cmd, a)
	AddChangeCommand(cmd, a)

	return cmd
}

// formatVersion creates the version string from build info.
func formatVersion(info BuildInfo) string {
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "none"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.Date)
}

// Execute runs the root command with the provided context and build info.
func Execute(ctx context.Context, info BuildInfo) error {
	flags := &GlobalFlags{}
	//nolint:contextcheck // Cobra command pattern uses cmd.Context() internally
	cmd := newRootCmd(flags, info)
	defer CloseLogFile()
	return cmd.ExecuteContext(ctx)
}
