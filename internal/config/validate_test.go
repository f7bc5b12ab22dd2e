package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

func TestValidate_NilConfig(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, Validate(nil), cadenceerrors.ErrConfigNil)
}

func TestValidate_DefaultConfig(t *testing.T) {
	t.Parallel()

	require.NoError(t, Validate(DefaultConfig()))
}

func TestValidate_Rules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
		wantMsg string
	}{
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Flow.Mode = "turbo" },
			wantErr: cadenceerrors.ErrUnknownMode,
		},
		{
			name:    "unknown commit strategy",
			mutate:  func(c *Config) { c.Flow.CommitStrategy = "per_task" },
			wantErr: cadenceerrors.ErrInvalidCommitStrategy,
		},
		{
			name:    "zero quality attempts",
			mutate:  func(c *Config) { c.Flow.MaxQualityFixAttempts = 0 },
			wantErr: cadenceerrors.ErrValueOutOfRange,
			wantMsg: "flow.max_quality_fix_attempts",
		},
		{
			name:    "too many revisions",
			mutate:  func(c *Config) { c.Flow.MaxRevisions = 11 },
			wantErr: cadenceerrors.ErrValueOutOfRange,
			wantMsg: "flow.max_revisions",
		},
		{
			name:    "expert timeout too short",
			mutate:  func(c *Config) { c.Flow.ExpertTimeout = time.Millisecond },
			wantErr: cadenceerrors.ErrValueOutOfRange,
			wantMsg: "flow.expert_timeout",
		},
		{
			name:    "zero repeated error threshold",
			mutate:  func(c *Config) { c.Thresholds.RepeatedError = 0 },
			wantErr: cadenceerrors.ErrValueOutOfRange,
			wantMsg: "thresholds.repeated_error",
		},
		{
			name:    "scale bounds inverted",
			mutate:  func(c *Config) { c.Scale.MediumMax = c.Scale.SmallMax },
			wantErr: cadenceerrors.ErrValueOutOfRange,
			wantMsg: "scale.small_max",
		},
		{
			name:    "empty journal file",
			mutate:  func(c *Config) { c.Storage.JournalFile = "" },
			wantErr: cadenceerrors.ErrEmptyValue,
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: cadenceerrors.ErrValueOutOfRange,
			wantMsg: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.ErrorIs(t, err, tt.wantErr)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidate_BoundaryValues(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Flow.CommitStrategy = "manual"
	cfg.Flow.MaxRevisions = 1
	cfg.Flow.MaxReviewIterations = 10
	cfg.Flow.ExpertTimeout = time.Second
	cfg.Scale.SmallMax = 0
	cfg.Scale.MediumMax = 1
	cfg.Logging.Level = "debug"

	require.NoError(t, Validate(cfg))
}
