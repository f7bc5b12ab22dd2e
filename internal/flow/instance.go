package flow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/planning"
)

// GenerateFlowID returns an ID in the form flow-YYYYMMDD-HHMMSS-xxxxxx.
// The random suffix keeps IDs created in the same second distinct.
func GenerateFlowID() string {
	return fmt.Sprintf("flow-%s-%s", time.Now().UTC().Format("20060102-150405"), uuid.NewString()[:6])
}

// NewInstance classifies and resolves req and returns a flow positioned at
// its first active phase. The request is validated and defaults filled in.
func NewInstance(req domain.TaskRequest, classifier planning.Classifier) (domain.FlowInstance, error) {
	if err := req.Validate(); err != nil {
		return domain.FlowInstance{}, err
	}
	if req.ID == "" {
		req.ID = domain.NewRequestID()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	scale := classifier.Classify(req.FileCountEstimate)
	now := time.Now().UTC()
	f := domain.FlowInstance{
		ID:            GenerateFlowID(),
		Request:       req,
		Scale:         scale,
		Variant:       SelectVariant(req, scale),
		Documents:     planning.Resolve(scale, req.Conditions),
		ADRTriggers:   planning.ADRTriggers(req.Conditions),
		CreatedAt:     now,
		UpdatedAt:     now,
		SchemaVersion: constants.FlowSchemaVersion,
	}

	seq, err := ForFlow(f)
	if err != nil {
		return domain.FlowInstance{}, err
	}
	if missing := Uncovered(seq.Phases(), f); len(missing) > 0 {
		return domain.FlowInstance{}, domain.Escalate(uncoveredEscalation(f, missing))
	}
	return seq.Start(f), nil
}

func uncoveredEscalation(f domain.FlowInstance, missing []constants.DocumentKind) domain.EscalationEvent {
	names := make([]string, 0, len(missing))
	for _, kind := range missing {
		names = append(names, kind.String())
	}
	ev := domain.NewEscalation(constants.EscalationDocumentUncovered,
		fmt.Sprintf("the %s flow cannot produce required documents: %s", f.Variant, strings.Join(names, ", ")),
		"every required document needs an active phase that writes it",
		"Choose a larger scale or another mode for this request")
	ev.FlowID = f.ID
	return ev.WithPayload("documents", strings.Join(names, ","))
}
