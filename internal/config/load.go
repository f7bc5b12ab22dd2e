package config

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mrz1836/cadence/internal/errors"
)

// EnvPrefix is the environment variable prefix, e.g. CADENCE_FLOW_MODE.
const EnvPrefix = "CADENCE"

// newViperInstance creates a Viper instance with the cadence defaults,
// environment prefix and key replacer.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// isConfigNotFoundError returns true if the error is a viper config file not found error.
func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var configNotFoundErr viper.ConfigFileNotFoundError
	return stderrors.As(err, &configNotFoundErr)
}

// unmarshalAndValidate unmarshals viper config into Config and validates it.
func unmarshalAndValidate(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// Load reads configuration from all available sources with proper precedence.
// Configuration is loaded in the following order (highest precedence first):
//  1. Environment variables (CADENCE_* prefix)
//  2. Project config (.cadence/config.yaml)
//  3. Global config (~/.cadence/config.yaml)
//  4. Built-in defaults
//
// For CLI flag overrides, use LoadWithOverrides instead.
// Missing config files are not an error.
func Load(ctx context.Context) (*Config, error) {
	v := newViperInstance()

	if err := loadGlobalConfig(v); err != nil {
		return nil, err
	}
	if err := loadProjectConfig(v); err != nil {
		return nil, err
	}

	cfg, err := unmarshalAndValidate(v)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx).With().Str("component", "config").Logger()
	logger.Debug().
		Str("flow.mode", cfg.Flow.Mode).
		Str("flow.commit_strategy", cfg.Flow.CommitStrategy).
		Dur("flow.expert_timeout", cfg.Flow.ExpertTimeout).
		Msg("configuration loaded")

	return cfg, nil
}

// loadGlobalConfig attempts to load ~/.cadence/config.yaml.
// Returns nil if the file doesn't exist or the home directory cannot be determined.
func loadGlobalConfig(v *viper.Viper) error {
	path, err := GlobalConfigPath()
	if err != nil || !fileExists(path) {
		return nil //nolint:nilerr // a missing home directory means no global config
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read global config file")
	}
	return nil
}

// loadProjectConfig attempts to load .cadence/config.yaml from the working directory.
func loadProjectConfig(v *viper.Viper) error {
	path := ProjectConfigPath()
	if !fileExists(path) {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read project config file")
	}
	return nil
}

// fileExists returns true if the file at path exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadWithOverrides loads configuration and applies CLI flag overrides.
// Only non-zero values in overrides are applied.
func LoadWithOverrides(ctx context.Context, overrides *Config) (*Config, error) {
	cfg, err := Load(ctx)
	if err != nil {
		return nil, err
	}

	if overrides != nil {
		applyOverrides(cfg, overrides)
	}

	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration after overrides")
	}
	return cfg, nil
}

// LoadFromPaths loads configuration from specific file paths.
// Either path can be empty to skip that level. The project file merges over
// the global one.
func LoadFromPaths(_ context.Context, projectConfigPath, globalConfigPath string) (*Config, error) {
	v := newViperInstance()

	if globalConfigPath != "" {
		v.SetConfigFile(globalConfigPath)
		if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read global config: %s", globalConfigPath)
		}
	}

	if projectConfigPath != "" {
		v.SetConfigFile(projectConfigPath)
		if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read project config: %s", projectConfigPath)
		}
	}

	return unmarshalAndValidate(v)
}

// LoadFromDir loads the project config found under dir/.cadence on top of
// the global config.
func LoadFromDir(ctx context.Context, dir string) (*Config, error) {
	global, err := GlobalConfigPath()
	if err != nil {
		global = ""
	}
	return LoadFromPaths(ctx, filepath.Join(dir, ProjectConfigPath()), global)
}

// setDefaults configures all default values on the Viper instance.
// Keys must match the mapstructure tag names exactly.
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("flow.mode", def.Flow.Mode)
	v.SetDefault("flow.commit_strategy", def.Flow.CommitStrategy)
	v.SetDefault("flow.max_revisions", def.Flow.MaxRevisions)
	v.SetDefault("flow.max_review_iterations", def.Flow.MaxReviewIterations)
	v.SetDefault("flow.max_quality_fix_attempts", def.Flow.MaxQualityFixAttempts)
	v.SetDefault("flow.expert_timeout", def.Flow.ExpertTimeout.String())

	v.SetDefault("thresholds.repeated_error", def.Thresholds.RepeatedError)
	v.SetDefault("thresholds.files_per_task", def.Thresholds.FilesPerTask)
	v.SetDefault("thresholds.edit_invocations", def.Thresholds.EditInvocations)
	v.SetDefault("thresholds.same_file_edits", def.Thresholds.SameFileEdits)

	v.SetDefault("scale.small_max", def.Scale.SmallMax)
	v.SetDefault("scale.medium_max", def.Scale.MediumMax)

	v.SetDefault("storage.home", def.Storage.Home)
	v.SetDefault("storage.journal_file", def.Storage.JournalFile)

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.max_size_mb", def.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", def.Logging.MaxBackups)

	v.SetDefault("metrics.enabled", def.Metrics.Enabled)
}

// applyOverrides merges non-zero override values into the config.
//
// IMPORTANT: Metrics.Enabled cannot be overridden to false here because the
// zero value is indistinguishable from "not set". CLI code handles bool
// flags with cmd.Flags().Changed.
func applyOverrides(cfg, overrides *Config) {
	applyFlowOverrides(cfg, overrides)

	if overrides.Storage.Home != "" {
		cfg.Storage.Home = overrides.Storage.Home
	}
	if overrides.Storage.JournalFile != "" {
		cfg.Storage.JournalFile = overrides.Storage.JournalFile
	}
	if overrides.Logging.Level != "" {
		cfg.Logging.Level = overrides.Logging.Level
	}
}

// applyFlowOverrides applies flow-related overrides to the config.
func applyFlowOverrides(cfg, overrides *Config) {
	if overrides.Flow.Mode != "" {
		cfg.Flow.Mode = overrides.Flow.Mode
	}
	if overrides.Flow.CommitStrategy != "" {
		cfg.Flow.CommitStrategy = overrides.Flow.CommitStrategy
	}
	if overrides.Flow.MaxRevisions != 0 {
		cfg.Flow.MaxRevisions = overrides.Flow.MaxRevisions
	}
	if overrides.Flow.MaxReviewIterations != 0 {
		cfg.Flow.MaxReviewIterations = overrides.Flow.MaxReviewIterations
	}
	if overrides.Flow.MaxQualityFixAttempts != 0 {
		cfg.Flow.MaxQualityFixAttempts = overrides.Flow.MaxQualityFixAttempts
	}
	if overrides.Flow.ExpertTimeout != 0 {
		cfg.Flow.ExpertTimeout = overrides.Flow.ExpertTimeout
	}
}

// viperDecoderOption decodes "10m"-style strings into time.Duration fields.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	)
}
