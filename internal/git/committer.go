package git

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

// Committer stages the files of a commit request and commits them in a
// working tree. It satisfies execution.Committer.
type Committer struct {
	workDir    string
	logger     zerolog.Logger
	retry      LockRetryConfig
	allowEmpty bool
}

// CommitterOption configures a Committer.
type CommitterOption func(*Committer)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) CommitterOption {
	return func(c *Committer) {
		c.logger = logger
	}
}

// WithLockRetry overrides the lock file retry policy.
func WithLockRetry(cfg LockRetryConfig) CommitterOption {
	return func(c *Committer) {
		c.retry = cfg
	}
}

// WithAllowEmpty lets a request with nothing staged still produce a commit.
func WithAllowEmpty(allow bool) CommitterOption {
	return func(c *Committer) {
		c.allowEmpty = allow
	}
}

// NewCommitter creates a committer for the repository at workDir.
func NewCommitter(workDir string, opts ...CommitterOption) *Committer {
	c := &Committer{
		workDir: workDir,
		logger:  zerolog.Nop(),
		retry:   DefaultLockRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Commit stages req.Files (or every change when the list is empty), commits
// with a generated message and returns the short hash of the new commit.
func (c *Committer) Commit(ctx context.Context, req domain.CommitRequest) (string, error) {
	if req.Message == "" {
		return "", fmt.Errorf("%w: commit message", cadenceerrors.ErrEmptyValue)
	}

	addArgs := []string{"add", "-A"}
	if len(req.Files) > 0 {
		addArgs = append(addArgs, "--")
		for _, f := range req.Files {
			addArgs = append(addArgs, filepath.ToSlash(f))
		}
	}
	if _, err := RunWithLockRetry(ctx, c.retry, c.logger, func(ctx context.Context) (string, error) {
		return RunCommand(ctx, c.workDir, addArgs...)
	}); err != nil {
		return "", err
	}

	commitArgs := []string{"commit", "-m", FormatMessage(req)}
	if c.allowEmpty {
		commitArgs = append(commitArgs, "--allow-empty")
	}
	if _, err := RunWithLockRetry(ctx, c.retry, c.logger, func(ctx context.Context) (string, error) {
		return RunCommand(ctx, c.workDir, commitArgs...)
	}); err != nil {
		return "", err
	}

	ref, err := RunCommand(ctx, c.workDir, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", err
	}

	c.logger.Info().
		Str("flow_id", req.FlowID).
		Str("commit", ref).
		Strs("tasks", req.TaskIDs).
		Int("files", len(req.Files)).
		Msg("git commit created")
	return ref, nil
}

// HeadMessage returns the full message of the HEAD commit.
func HeadMessage(ctx context.Context, workDir string) (string, error) {
	return RunCommand(ctx, workDir, "log", "-1", "--format=%B")
}
