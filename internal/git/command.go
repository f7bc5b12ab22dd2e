// Package git records finished cadence tasks as git commits.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

// RunCommand runs git with args in workDir and returns its trimmed stdout.
// Failures wrap ErrGitOperation and carry git's own message.
func RunCommand(ctx context.Context, workDir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...) //#nosec G204 -- args are built by this package
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		if detail == "" {
			detail = err.Error()
		}
		return "", fmt.Errorf("git %s failed: %s: %w", args[0], detail, cadenceerrors.ErrGitOperation)
	}
	return strings.TrimSpace(stdout.String()), nil
}
