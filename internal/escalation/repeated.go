package escalation

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

//nolint:gochecknoglobals // Compiled once
var (
	hexRun     = regexp.MustCompile(`\b(0x)?[0-9a-f]{7,}\b`)
	lineColumn = regexp.MustCompile(`:\d+(:\d+)?\b`)
	digits     = regexp.MustCompile(`\d+`)
	spaces     = regexp.MustCompile(`\s+`)
)

// Signature normalizes an error message so occurrences that differ only in
// line numbers, addresses, counts or spacing compare equal.
func Signature(msg string) string {
	s := strings.ToLower(strings.TrimSpace(msg))
	s = hexRun.ReplaceAllString(s, "<hex>")
	s = lineColumn.ReplaceAllString(s, ":<pos>")
	s = digits.ReplaceAllString(s, "<n>")
	return spaces.ReplaceAllString(s, " ")
}

// RepeatedErrorWatcher counts identical failures. When a signature reaches
// the threshold, further fix attempts for it are refused until a root-cause
// analysis artifact is recorded. Safe for concurrent use.
type RepeatedErrorWatcher struct {
	threshold int

	mu         sync.Mutex
	counts     map[string]int
	rootCauses map[string]string
}

// NewRepeatedErrorWatcher creates a watcher. A threshold below one uses the default.
func NewRepeatedErrorWatcher(threshold int) *RepeatedErrorWatcher {
	if threshold < 1 {
		threshold = constants.RepeatedErrorThreshold
	}
	return &RepeatedErrorWatcher{
		threshold:  threshold,
		counts:     make(map[string]int),
		rootCauses: make(map[string]string),
	}
}

// Observe records one occurrence of msg. At the threshold it returns a
// repeated_error event carrying the signature in its payload.
func (w *RepeatedErrorWatcher) Observe(msg string) *domain.EscalationEvent {
	sig := Signature(msg)
	if sig == "" {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.counts[sig]++
	count := w.counts[sig]
	if count < w.threshold {
		return nil
	}
	delete(w.rootCauses, sig)

	ev := domain.NewEscalation(constants.EscalationRepeatedError,
		fmt.Sprintf("the same error occurred %d times", count),
		strings.TrimSpace(msg),
		"Produce a root-cause analysis before any further fix attempt").
		WithPayload("signature", sig).
		WithPayload("occurrences", fmt.Sprint(count))
	return &ev
}

// Count returns how often the signature of msg was observed since the last
// recorded root cause.
func (w *RepeatedErrorWatcher) Count(msg string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counts[Signature(msg)]
}

// Allow returns ErrRootCauseRequired while sig is at the threshold without
// a recorded root cause.
func (w *RepeatedErrorWatcher) Allow(sig string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.counts[sig] >= w.threshold {
		if _, ok := w.rootCauses[sig]; !ok {
			return fmt.Errorf("%w: %s", cadenceerrors.ErrRootCauseRequired, sig)
		}
	}
	return nil
}

// RecordRootCause stores the analysis artifact for sig and restarts its count.
func (w *RepeatedErrorWatcher) RecordRootCause(sig, artifact string) error {
	if strings.TrimSpace(artifact) == "" {
		return fmt.Errorf("%w: root cause artifact %w", cadenceerrors.ErrRootCauseRequired, cadenceerrors.ErrEmptyValue)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rootCauses[sig] = artifact
	w.counts[sig] = 0
	return nil
}

// RootCause returns the artifact recorded for sig.
func (w *RepeatedErrorWatcher) RootCause(sig string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.rootCauses[sig]
	return a, ok
}
