package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cadence/internal/constants"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

// isolate points HOME and the working directory at fresh temp dirs so that no
// real config file leaks into a test.
func isolate(t *testing.T) (home, project string) {
	t.Helper()
	home = t.TempDir()
	project = t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(project)
	return home, project
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	cfgDir := filepath.Join(dir, constants.CadenceHome)
	require.NoError(t, os.MkdirAll(cfgDir, 0o750))
	path := filepath.Join(cfgDir, constants.GlobalConfigName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ReturnsDefaultsWhenNoConfigFile(t *testing.T) {
	isolate(t)

	cfg, err := Load(context.Background())
	require.NoError(t, err, "Load should not fail when no config file exists")

	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "full", cfg.Flow.Mode)
	assert.Equal(t, 10*time.Minute, cfg.Flow.ExpertTimeout)
	assert.Equal(t, 3, cfg.Flow.MaxQualityFixAttempts)
}

func TestLoad_ProjectConfigOverridesGlobal(t *testing.T) {
	home, project := isolate(t)

	writeConfig(t, home, `
flow:
  commit_strategy: per-phase
  max_quality_fix_attempts: 4
thresholds:
  repeated_error: 5
`)
	writeConfig(t, project, `
flow:
  commit_strategy: per-feature
`)

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "per-feature", cfg.Flow.CommitStrategy, "project config wins")
	assert.Equal(t, 4, cfg.Flow.MaxQualityFixAttempts, "global value survives the merge")
	assert.Equal(t, 5, cfg.Thresholds.RepeatedError)
	assert.Equal(t, constants.FilesPerTaskThreshold, cfg.Thresholds.FilesPerTask)
}

func TestLoad_EnvVarOverridesConfigFile(t *testing.T) {
	_, project := isolate(t)
	writeConfig(t, project, `
flow:
  mode: design_only
  expert_timeout: 5m
`)

	t.Setenv("CADENCE_FLOW_MODE", "prototype")
	t.Setenv("CADENCE_FLOW_EXPERT_TIMEOUT", "90s")
	t.Setenv("CADENCE_THRESHOLDS_SAME_FILE_EDITS", "4")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "prototype", cfg.Flow.Mode)
	assert.Equal(t, 90*time.Second, cfg.Flow.ExpertTimeout)
	assert.Equal(t, 4, cfg.Thresholds.SameFileEdits)
}

func TestLoad_InvalidProjectConfig(t *testing.T) {
	_, project := isolate(t)
	writeConfig(t, project, "flow:\n  mode: sideways\n")

	_, err := Load(context.Background())
	require.ErrorIs(t, err, cadenceerrors.ErrUnknownMode)
}

func TestLoadFromPaths(t *testing.T) {
	isolate(t)
	ctx := context.Background()

	t.Run("duration parsing", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, "flow:\n  expert_timeout: 45m\n")

		cfg, err := LoadFromPaths(ctx, path, "")
		require.NoError(t, err)
		assert.Equal(t, 45*time.Minute, cfg.Flow.ExpertTimeout)
	})

	t.Run("missing files fall back to defaults", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "nope.yaml")

		cfg, err := LoadFromPaths(ctx, missing, missing)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, "flow: [unclosed\n")

		_, err := LoadFromPaths(ctx, path, "")
		require.Error(t, err)
	})

	t.Run("validation failure", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, "scale:\n  small_max: 6\n  medium_max: 4\n")

		_, err := LoadFromPaths(ctx, path, "")
		require.ErrorIs(t, err, cadenceerrors.ErrValueOutOfRange)
	})
}

func TestLoadFromDir(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeConfig(t, dir, "scale:\n  small_max: 1\n  medium_max: 8\n")

	cfg, err := LoadFromDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, ScaleConfig{SmallMax: 1, MediumMax: 8}, cfg.Scale)
}

func TestLoadWithOverrides(t *testing.T) {
	_, project := isolate(t)
	writeConfig(t, project, "flow:\n  commit_strategy: per-phase\n")

	t.Run("applies non-zero overrides", func(t *testing.T) {
		cfg, err := LoadWithOverrides(context.Background(), &Config{
			Flow:    FlowConfig{CommitStrategy: "manual", MaxRevisions: 3},
			Storage: StorageConfig{Home: "/tmp/cadence-home"},
		})
		require.NoError(t, err)

		assert.Equal(t, "manual", cfg.Flow.CommitStrategy)
		assert.Equal(t, 3, cfg.Flow.MaxRevisions)
		assert.Equal(t, constants.MaxQualityFixAttempts, cfg.Flow.MaxQualityFixAttempts)
		assert.Equal(t, "/tmp/cadence-home", cfg.Storage.Home)
	})

	t.Run("nil overrides", func(t *testing.T) {
		cfg, err := LoadWithOverrides(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "per-phase", cfg.Flow.CommitStrategy)
	})

	t.Run("invalid override is rejected", func(t *testing.T) {
		_, err := LoadWithOverrides(context.Background(), &Config{
			Flow: FlowConfig{CommitStrategy: "per-sprint"},
		})
		require.ErrorIs(t, err, cadenceerrors.ErrInvalidCommitStrategy)
	})
}

func TestPaths(t *testing.T) {
	home, _ := isolate(t)

	dir, err := GlobalConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".cadence"), dir)

	path, err := GlobalConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".cadence", "config.yaml"), path)

	assert.Equal(t, filepath.Join(".cadence", "config.yaml"), ProjectConfigPath())

	cfg := DefaultConfig()
	journal, err := cfg.JournalPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".cadence", "journal.db"), journal)

	cfg.Storage.Home = "/srv/cadence"
	logPath, err := cfg.LogPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/cadence", ".cadence", "logs", "cadence.log"), logPath)
}
