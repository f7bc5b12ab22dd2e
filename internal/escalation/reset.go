package escalation

import (
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/flow"
	"github.com/mrz1836/cadence/internal/planning"
)

// Reset replaces f after a requirement change. The merged request is
// reclassified and its documents re-resolved, and the new flow starts at
// requirement analysis. f itself is not modified.
func Reset(f domain.FlowInstance, input domain.RequirementInput, classifier planning.Classifier) (domain.FlowInstance, error) {
	req := planning.Supersede(f.Request, input, domain.NewRequestID())
	return flow.NewInstance(req, classifier)
}
