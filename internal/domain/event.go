package domain

import (
	"time"

	"github.com/mrz1836/cadence/internal/constants"
)

// FlowEvent is one observable step of a flow: a phase transition, a gate,
// a task transition, a commit, or an escalation. Events feed the journal,
// metrics, and logs; observers never change flow or task state.
type FlowEvent struct {
	Type       constants.EventType `json:"type"`
	FlowID     string              `json:"flow_id"`
	Phase      string              `json:"phase,omitempty"`
	Role       Role                `json:"role,omitempty"`
	TaskID     string              `json:"task_id,omitempty"`
	From       string              `json:"from,omitempty"`
	To         string              `json:"to,omitempty"`
	Detail     string              `json:"detail,omitempty"`
	Escalation *EscalationEvent    `json:"escalation,omitempty"`
	At         time.Time           `json:"at"`
}
