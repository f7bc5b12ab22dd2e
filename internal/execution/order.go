package execution

import (
	"fmt"

	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

// Order returns task indices so that every task follows its dependencies.
// Independent tasks keep their plan order. Unknown dependencies, duplicate
// IDs and cycles are rejected with ErrInvalidPlan.
func Order(tasks []domain.Task) ([]int, error) {
	index := make(map[string]int, len(tasks))
	for i, t := range tasks {
		if t.ID == "" {
			return nil, fmt.Errorf("%w: task %d has no id", cadenceerrors.ErrInvalidPlan, i)
		}
		if _, dup := index[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate task id %s", cadenceerrors.ErrInvalidPlan, t.ID)
		}
		index[t.ID] = i
	}

	indegree := make([]int, len(tasks))
	dependents := make([][]int, len(tasks))
	for i, t := range tasks {
		for _, dep := range t.DependsOn {
			j, ok := index[dep]
			if !ok {
				return nil, fmt.Errorf("%w: task %s depends on unknown task %s", cadenceerrors.ErrInvalidPlan, t.ID, dep)
			}
			if j == i {
				return nil, fmt.Errorf("%w: task %s depends on itself", cadenceerrors.ErrInvalidPlan, t.ID)
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	order := make([]int, 0, len(tasks))
	placed := make([]bool, len(tasks))
	for len(order) < len(tasks) {
		next := -1
		for i := range tasks {
			if !placed[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			return nil, fmt.Errorf("%w: dependency cycle among %s", cadenceerrors.ErrInvalidPlan, unplaced(tasks, placed))
		}
		placed[next] = true
		order = append(order, next)
		for _, d := range dependents[next] {
			indegree[d]--
		}
	}
	return order, nil
}

func unplaced(tasks []domain.Task, placed []bool) []string {
	var ids []string
	for i, t := range tasks {
		if !placed[i] {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// TasksFromPlan creates pending tasks for a decomposition plan. Tasks
// without an ID are numbered by position.
func TasksFromPlan(plan []domain.PlannedTask) []domain.Task {
	tasks := make([]domain.Task, 0, len(plan))
	for i, p := range plan {
		if p.ID == "" {
			p.ID = fmt.Sprintf("task-%02d", i+1)
		}
		tasks = append(tasks, *domain.NewTask(p))
	}
	return tasks
}
