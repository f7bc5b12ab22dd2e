package execution

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

func validStrategy(s constants.CommitStrategy) bool {
	for _, known := range constants.CommitStrategies() {
		if s == known {
			return true
		}
	}
	return false
}

// commitReady commits every group the strategy considers finished.
// final is set once every task has been run.
func (l *Loop) commitReady(ctx context.Context, f *domain.FlowInstance, final bool) error {
	for _, group := range commitGroups(*f, final) {
		if err := l.commit(ctx, f, group, groupMessage(*f, group)); err != nil {
			return err
		}
	}
	return nil
}

// commitGroups returns the task indexes to commit together, in plan order.
// Only quality-checked tasks are ever included.
func commitGroups(f domain.FlowInstance, final bool) [][]int {
	checked := func(idx []int) []int {
		var out []int
		for _, i := range idx {
			if f.Tasks[i].Status == constants.TaskStatusQualityChecked {
				out = append(out, i)
			}
		}
		return out
	}

	switch f.CommitStrategy {
	case constants.CommitPerTask:
		var groups [][]int
		for i := range f.Tasks {
			if f.Tasks[i].Status == constants.TaskStatusQualityChecked {
				groups = append(groups, []int{i})
			}
		}
		return groups

	case constants.CommitPerPhase:
		var order []string
		byPhase := make(map[string][]int)
		for i, t := range f.Tasks {
			if _, ok := byPhase[t.Phase]; !ok {
				order = append(order, t.Phase)
			}
			byPhase[t.Phase] = append(byPhase[t.Phase], i)
		}
		var groups [][]int
		for _, phase := range order {
			idx := byPhase[phase]
			if !allDone(f, idx) {
				continue
			}
			if ready := checked(idx); len(ready) > 0 {
				groups = append(groups, ready)
			}
		}
		return groups

	case constants.CommitPerFeature:
		all := make([]int, len(f.Tasks))
		for i := range f.Tasks {
			all[i] = i
		}
		if !final || !allDone(f, all) {
			return nil
		}
		if ready := checked(all); len(ready) > 0 {
			return [][]int{ready}
		}
		return nil

	default:
		return nil
	}
}

func allDone(f domain.FlowInstance, idx []int) bool {
	for _, i := range idx {
		if !IsDone(f.Tasks[i].Status) {
			return false
		}
	}
	return true
}

// commit records one commit for the tasks at idx. A committer failure
// escalates and leaves the tasks quality_checked.
func (l *Loop) commit(ctx context.Context, f *domain.FlowInstance, idx []int, message string) error {
	req := domain.CommitRequest{
		FlowID:   f.ID,
		Strategy: f.CommitStrategy,
		Message:  message,
	}
	files := make(map[string]struct{})
	for _, i := range idx {
		t := &f.Tasks[i]
		if !QualityApproved(t) {
			return fmt.Errorf("%w: task %s", cadenceerrors.ErrCommitBeforeQuality, t.ID)
		}
		req.TaskIDs = append(req.TaskIDs, t.ID)
		for _, p := range t.FilesModified {
			files[p] = struct{}{}
		}
		for _, p := range t.TestsAdded {
			files[p] = struct{}{}
		}
	}
	for p := range files {
		req.Files = append(req.Files, p)
	}
	sort.Strings(req.Files)

	ref, err := l.committer.Commit(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return l.fail(*f, nil, constants.EscalationCommitFailed,
			fmt.Sprintf("commit of %s failed", strings.Join(req.TaskIDs, ", ")), err.Error(),
			"Fix the repository state and commit the pending tasks manually")
	}

	// The commit exists in the repository now, so a stop arriving after it
	// must not leave the tasks looking uncommitted.
	record := context.WithoutCancel(ctx)
	for _, i := range idx {
		t := &f.Tasks[i]
		if err := l.transition(record, f, t, constants.TaskStatusCommitted, "committed as "+ref); err != nil {
			return err
		}
		t.CommitRef = ref
	}
	l.emit(record, domain.FlowEvent{
		Type:   constants.EventCommit,
		FlowID: f.ID,
		Phase:  ExecutionPhase,
		TaskID: strings.Join(req.TaskIDs, ","),
		Detail: ref,
	})
	l.logger.Info().
		Str("flow_id", f.ID).
		Str("commit", ref).
		Strs("tasks", req.TaskIDs).
		Int("files", len(req.Files)).
		Msg("tasks committed")
	return nil
}

// CommitPending commits every quality-checked task in one commit. It is the
// user's commit signal under the manual strategy, and also collects tasks
// left uncommitted by an escalated phase group.
func (l *Loop) CommitPending(ctx context.Context, f domain.FlowInstance) (domain.FlowInstance, []string, error) {
	if l.committer == nil {
		return f, nil, fmt.Errorf("%w: no committer configured", cadenceerrors.ErrBlocked)
	}
	next := f.Clone()
	var idx []int
	for i := range next.Tasks {
		if next.Tasks[i].Status == constants.TaskStatusQualityChecked {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return f, nil, cadenceerrors.ErrNothingToCommit
	}
	if err := l.commit(ctx, &next, idx, groupMessage(next, idx)); err != nil {
		if ev, ok := domain.AsEscalation(err); ok {
			next.Escalations = append(next.Escalations, ev)
			l.raise(context.WithoutCancel(ctx), ev)
			return next, nil, err
		}
		return f, nil, err
	}
	ids := make([]string, len(idx))
	for n, i := range idx {
		ids[n] = next.Tasks[i].ID
	}
	return next, ids, nil
}

// groupMessage builds the commit subject for the tasks at idx.
func groupMessage(f domain.FlowInstance, idx []int) string {
	if len(idx) == 1 {
		t := f.Tasks[idx[0]]
		return fmt.Sprintf("%s (%s)", orDefault(t.Title, t.ID), t.ID)
	}

	ids := make([]string, len(idx))
	for n, i := range idx {
		ids[n] = f.Tasks[i].ID
	}
	subject := firstLine(f.Request.Description)
	if f.CommitStrategy == constants.CommitPerPhase {
		if phase := f.Tasks[idx[0]].Phase; phase != "" {
			subject = phase
		}
	}
	return fmt.Sprintf("%s (%s)", orDefault(subject, "cadence changes"), strings.Join(ids, ", "))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const maxSubject = 60
	if len(s) > maxSubject {
		s = strings.TrimSpace(s[:maxSubject])
	}
	return s
}
