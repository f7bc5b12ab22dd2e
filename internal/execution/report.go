package execution

import (
	"sort"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
)

// Report summarizes a flow for the human. It is safe to call on a flow that
// stopped partway, in which case Halted is false.
func Report(f domain.FlowInstance) *domain.CompletionReport {
	r := &domain.CompletionReport{
		FlowID:            f.ID,
		Scale:             f.Scale,
		Variant:           f.Variant,
		CommitStrategy:    f.CommitStrategy,
		DocumentsProduced: append([]string{}, f.Artifacts...),
		TasksCompleted:    []string{},
		CommitsMade:       []string{},
		ChecksPassed:      []string{},
		Escalations:       append([]domain.EscalationEvent(nil), f.Escalations...),
	}

	seenCommit := make(map[string]bool)
	checks := make(map[string]bool)
	done := len(f.Tasks) > 0
	for _, t := range f.Tasks {
		if !IsDone(t.Status) {
			done = false
			continue
		}
		r.TasksCompleted = append(r.TasksCompleted, t.ID)
		if t.Status == constants.TaskStatusQualityChecked {
			r.PendingCommits = append(r.PendingCommits, t.ID)
		}
		if t.CommitRef != "" && !seenCommit[t.CommitRef] {
			seenCommit[t.CommitRef] = true
			r.CommitsMade = append(r.CommitsMade, t.CommitRef)
		}
		for _, c := range t.ChecksPassed {
			checks[c] = true
		}
	}
	for c := range checks {
		r.ChecksPassed = append(r.ChecksPassed, c)
	}
	sort.Strings(r.ChecksPassed)
	r.Halted = done
	return r
}
