package escalation

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

// BreadthLimits are the edit breadth thresholds for one task.
type BreadthLimits struct {
	FilesPerTask    int `mapstructure:"files_per_task" yaml:"files_per_task"`
	EditInvocations int `mapstructure:"edit_invocations" yaml:"edit_invocations"`
	SameFileEdits   int `mapstructure:"same_file_edits" yaml:"same_file_edits"`
}

// DefaultBreadthLimits returns five files, five edits and three edits to one file.
func DefaultBreadthLimits() BreadthLimits {
	return BreadthLimits{
		FilesPerTask:    constants.FilesPerTaskThreshold,
		EditInvocations: constants.EditInvocationThreshold,
		SameFileEdits:   constants.SameFileEditThreshold,
	}
}

// BreadthWatcher counts files touched and edits made by the current task.
// A firing is a soft gate: work pauses until an impact report is
// acknowledged, without needing human approval. Safe for concurrent use.
type BreadthWatcher struct {
	limits BreadthLimits

	mu      sync.Mutex
	files   map[string]bool
	edits   int
	perFile map[string]int
	pending *domain.EscalationEvent
	reports []string
}

// NewBreadthWatcher creates a watcher. Zero limits use the defaults.
func NewBreadthWatcher(limits BreadthLimits) *BreadthWatcher {
	def := DefaultBreadthLimits()
	if limits.FilesPerTask <= 0 {
		limits.FilesPerTask = def.FilesPerTask
	}
	if limits.EditInvocations <= 0 {
		limits.EditInvocations = def.EditInvocations
	}
	if limits.SameFileEdits <= 0 {
		limits.SameFileEdits = def.SameFileEdits
	}
	w := &BreadthWatcher{limits: limits}
	w.Reset()
	return w
}

// Reset clears the counters for the next task.
func (w *BreadthWatcher) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files = make(map[string]bool)
	w.perFile = make(map[string]int)
	w.edits = 0
	w.pending = nil
}

// ObserveFiles records files changed by the task. It fires once the task
// has touched FilesPerTask distinct files.
func (w *BreadthWatcher) ObserveFiles(paths []string) *domain.EscalationEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range paths {
		if p = clean(p); p != "" {
			w.files[p] = true
		}
	}
	if len(w.files) < w.limits.FilesPerTask {
		return nil
	}
	return w.fire(constants.EscalationFileThreshold,
		fmt.Sprintf("task changed %d files", len(w.files)),
		fmt.Sprintf("changes touching %d or more files need an impact report", w.limits.FilesPerTask),
		"files", strings.Join(w.sortedFiles(), ","))
}

// ObserveEdit records one edit invocation on p.
func (w *BreadthWatcher) ObserveEdit(p string) *domain.EscalationEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	p = clean(p)
	w.edits++
	if p != "" {
		w.perFile[p]++
		if w.perFile[p] >= w.limits.SameFileEdits {
			return w.fire(constants.EscalationSameFileThreshold,
				fmt.Sprintf("%s was edited %d times", p, w.perFile[p]),
				fmt.Sprintf("%d or more edits to one file suggest the approach is not converging", w.limits.SameFileEdits),
				"file", p)
		}
	}
	if w.edits >= w.limits.EditInvocations {
		return w.fire(constants.EscalationEditThreshold,
			fmt.Sprintf("task made %d edits", w.edits),
			fmt.Sprintf("%d or more edit invocations need an impact report", w.limits.EditInvocations),
			"edits", fmt.Sprint(w.edits))
	}
	return nil
}

// Pending returns the firing that still waits for an impact report.
func (w *BreadthWatcher) Pending() *domain.EscalationEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

// AcknowledgeImpact accepts an impact report for the pending firing and
// restarts the counters. An empty report is refused.
func (w *BreadthWatcher) AcknowledgeImpact(report string) error {
	if strings.TrimSpace(report) == "" {
		return fmt.Errorf("%w: impact report %w", cadenceerrors.ErrImpactReportRequired, cadenceerrors.ErrEmptyValue)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reports = append(w.reports, report)
	w.files = make(map[string]bool)
	w.perFile = make(map[string]int)
	w.edits = 0
	w.pending = nil
	return nil
}

// Reports returns the acknowledged impact reports.
func (w *BreadthWatcher) Reports() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.reports...)
}

func (w *BreadthWatcher) fire(kind constants.EscalationKind, what, why, key, value string) *domain.EscalationEvent {
	ev := domain.NewEscalation(kind, what, why, "Write an impact report covering every affected area, then continue").
		WithPayload(key, value)
	w.pending = &ev
	return &ev
}

func (w *BreadthWatcher) sortedFiles() []string {
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func clean(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean(filepath.ToSlash(p)), "./")
}
