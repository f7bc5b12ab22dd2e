package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrz1836/cadence/internal/constants"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

// EscalationEvent is raised by a collaborator or a watcher whenever work must
// stop for a human. Every event carries what happened, why, and a proposed
// next step. Events are never resolved automatically.
type EscalationEvent struct {
	ID       string                   `json:"id"`
	Kind     constants.EscalationKind `json:"kind"`
	FlowID   string                   `json:"flow_id,omitempty"`
	Phase    string                   `json:"phase,omitempty"`
	TaskID   string                   `json:"task_id,omitempty"`
	What     string                   `json:"what"`
	Why      string                   `json:"why"`
	NextStep string                   `json:"next_step"`
	Payload  map[string]string        `json:"payload,omitempty"`
	RaisedAt time.Time                `json:"raised_at"`
}

// NewEscalation builds an event with a fresh ID and timestamp.
func NewEscalation(kind constants.EscalationKind, what, why, nextStep string) EscalationEvent {
	return EscalationEvent{
		ID:       uuid.NewString(),
		Kind:     kind,
		What:     what,
		Why:      why,
		NextStep: nextStep,
		RaisedAt: time.Now().UTC(),
	}
}

// WithPayload returns a copy of the event with key set to value in its payload.
func (e EscalationEvent) WithPayload(key, value string) EscalationEvent {
	payload := make(map[string]string, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value
	e.Payload = payload
	return e
}

// Validate rejects bare events. An escalation without context is not actionable.
func (e EscalationEvent) Validate() error {
	if e.Kind == "" {
		return fmt.Errorf("%w: kind is required", cadenceerrors.ErrInvalidEscalation)
	}
	var missing []string
	if strings.TrimSpace(e.What) == "" {
		missing = append(missing, "what")
	}
	if strings.TrimSpace(e.Why) == "" {
		missing = append(missing, "why")
	}
	if strings.TrimSpace(e.NextStep) == "" {
		missing = append(missing, "next step")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s escalation missing %s",
			cadenceerrors.ErrInvalidEscalation, e.Kind, strings.Join(missing, ", "))
	}
	return nil
}

// EscalationError carries an escalation through error returns.
// It matches cadenceerrors.ErrEscalated with errors.Is.
type EscalationError struct {
	Event EscalationEvent
}

// Error implements the error interface.
func (e *EscalationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", cadenceerrors.ErrEscalated, e.Event.Kind, e.Event.What)
}

// Unwrap returns ErrEscalated so callers can test with errors.Is.
func (e *EscalationError) Unwrap() error {
	return cadenceerrors.ErrEscalated
}

// Escalate wraps event as an error.
func Escalate(event EscalationEvent) error {
	return &EscalationError{Event: event}
}

// AsEscalation extracts the escalation event from err, if any.
func AsEscalation(err error) (EscalationEvent, bool) {
	var escErr *EscalationError
	if errors.As(err, &escErr) {
		return escErr.Event, true
	}
	return EscalationEvent{}, false
}
