package planning

import (
	"strings"
	"time"

	"github.com/mrz1836/cadence/internal/domain"
)

// Supersede builds the request that replaces old after a requirement change.
// The description is the original text followed by the new input. Conditions
// are merged, and the estimate is the larger of the two since a change never
// shrinks the work already identified. The old request is not modified.
func Supersede(old domain.TaskRequest, input domain.RequirementInput, newID string) domain.TaskRequest {
	next := old
	next.ID = newID
	next.Supersedes = old.ID
	next.CreatedAt = time.Now().UTC()

	text := strings.TrimSpace(input.Text)
	if text != "" {
		next.Description = strings.TrimSpace(old.Description) + "\n\n" + text
	}
	next.FileCountEstimate = max(old.FileCountEstimate, input.FileCountEstimate)
	next.Conditions = old.Conditions.Merge(input.Conditions)
	return next
}
