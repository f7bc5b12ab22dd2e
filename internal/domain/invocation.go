package domain

import (
	"fmt"
	"strings"

	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

// Description length bounds for an invocation, counted in words.
const (
	minDescriptionWords = 3
	maxDescriptionWords = 5
)

// Invocation is the descriptor handed to a collaborator.
type Invocation struct {
	Role        Role     `json:"role"`
	Description string   `json:"description"`
	Prompt      string   `json:"prompt"`
	Constraints []string `json:"constraints,omitempty"`

	// Correlation fields, used for logging and the journal.
	FlowID string `json:"flow_id,omitempty"`
	Phase  string `json:"phase,omitempty"`
	TaskID string `json:"task_id,omitempty"`
}

// Validate checks the role is known and the description is three to five words.
func (i Invocation) Validate() error {
	if !i.Role.IsValid() {
		return fmt.Errorf("%w: %q", cadenceerrors.ErrUnknownRole, i.Role)
	}
	words := len(strings.Fields(i.Description))
	if words < minDescriptionWords || words > maxDescriptionWords {
		return fmt.Errorf("%w: description %q must be %d-%d words, got %d",
			cadenceerrors.ErrInvalidInvocation, i.Description, minDescriptionWords, maxDescriptionWords, words)
	}
	return nil
}
