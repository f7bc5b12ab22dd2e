package git

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LockRetryConfig is the backoff used while another git process holds a lock.
type LockRetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultLockRetryConfig waits 100ms, doubling up to 2s, for five attempts.
func DefaultLockRetryConfig() LockRetryConfig {
	return LockRetryConfig{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
	}
}

// delay returns the wait before attempt n+1, counting from 1.
func (c LockRetryConfig) delay(n int) time.Duration {
	d := c.InitialDelay
	for range n - 1 {
		d = time.Duration(float64(d) * c.Multiplier)
		if d >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	return min(d, c.MaxDelay)
}

// lockMarkers are lowercase fragments of git's lock contention messages.
var lockMarkers = []string{ //nolint:gochecknoglobals // read-only table
	"index.lock",
	"another git process seems to be running",
	"cannot lock ref",
}

// MatchesLockFileError reports whether errStr describes a held git lock.
func MatchesLockFileError(errStr string) bool {
	lower := strings.ToLower(errStr)
	for _, m := range lockMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return strings.Contains(lower, "unable to create") && strings.Contains(lower, ".lock")
}

// RunWithLockRetry runs op, retrying with backoff while it fails on a git
// lock. Any other error ends the retries at once.
func RunWithLockRetry[R any](ctx context.Context, cfg LockRetryConfig, logger zerolog.Logger, op func(ctx context.Context) (R, error)) (R, error) {
	var zero R
	attempts := max(cfg.MaxAttempts, 1)

	var err error
	for n := 1; n <= attempts; n++ {
		if cerr := ctx.Err(); cerr != nil {
			return zero, cerr
		}

		var res R
		if res, err = op(ctx); err == nil {
			return res, nil
		}
		if !MatchesLockFileError(err.Error()) {
			return zero, err
		}
		if n == attempts {
			break
		}

		wait := cfg.delay(n)
		logger.Debug().Int("attempt", n).Dur("wait", wait).Err(err).Msg("git lock held; retrying")
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	logger.Warn().Int("attempts", attempts).Err(err).Msg("git lock still held; giving up")
	return zero, err
}
