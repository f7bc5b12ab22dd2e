package escalation

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
)

// Notifier receives every escalation the monitor raises.
type Notifier interface {
	Notify(ctx context.Context, ev domain.EscalationEvent)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, ev domain.EscalationEvent)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, ev domain.EscalationEvent) {
	f(ctx, ev)
}

// LogNotifier writes escalations to a zerolog logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, ev domain.EscalationEvent) {
	event := n.Logger.Warn()
	if ev.Kind.IsSoft() {
		event = n.Logger.Info()
	}
	event.
		Str("escalation_id", ev.ID).
		Str("kind", ev.Kind.String()).
		Str("flow_id", ev.FlowID).
		Str("phase", ev.Phase).
		Str("task_id", ev.TaskID).
		Str("what", ev.What).
		Str("why", ev.Why).
		Str("next_step", ev.NextStep).
		Msg("escalation")
}

// Limits configures the monitor's watchers.
type Limits struct {
	RepeatedError int           `mapstructure:"repeated_error" yaml:"repeated_error"`
	Breadth       BreadthLimits `mapstructure:",squash" yaml:",inline"`
}

// DefaultLimits returns the default watcher thresholds.
func DefaultLimits() Limits {
	return Limits{RepeatedError: constants.RepeatedErrorThreshold, Breadth: DefaultBreadthLimits()}
}

// Monitor bundles the watchers of one flow and fans raised escalations out
// to the notifiers. It never resolves anything on its own.
type Monitor struct {
	Changes *RequirementChangeDetector
	Errors  *RepeatedErrorWatcher
	Breadth *BreadthWatcher
	Stop    *UserStop

	notifiers []Notifier

	mu     sync.Mutex
	raised []domain.EscalationEvent
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithNotifier adds a notifier sink.
func WithNotifier(n Notifier) MonitorOption {
	return func(m *Monitor) {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
}

// WithUserStop shares a stop signal, for example one wired to SIGINT.
func WithUserStop(s *UserStop) MonitorOption {
	return func(m *Monitor) {
		if s != nil {
			m.Stop = s
		}
	}
}

// NewMonitor creates a monitor with fresh watchers.
func NewMonitor(limits Limits, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		Changes: NewRequirementChangeDetector(),
		Errors:  NewRepeatedErrorWatcher(limits.RepeatedError),
		Breadth: NewBreadthWatcher(limits.Breadth),
		Stop:    NewUserStop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Raise validates ev, records it and notifies every sink.
func (m *Monitor) Raise(ctx context.Context, ev domain.EscalationEvent) (domain.EscalationEvent, error) {
	if err := ev.Validate(); err != nil {
		return ev, err
	}
	m.mu.Lock()
	m.raised = append(m.raised, ev)
	notifiers := append([]Notifier(nil), m.notifiers...)
	m.mu.Unlock()

	for _, n := range notifiers {
		n.Notify(ctx, ev)
	}
	return ev, nil
}

// Raised returns every escalation raised so far, in order.
func (m *Monitor) Raised() []domain.EscalationEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.EscalationEvent(nil), m.raised...)
}

// CheckRequirement classifies input arriving during flow f. A detected change
// raises a requirement_change escalation; the caller resets the flow.
func (m *Monitor) CheckRequirement(ctx context.Context, f domain.FlowInstance, input domain.RequirementInput) (*domain.EscalationEvent, error) {
	change, ok := m.Changes.Detect(input.Text)
	if !ok {
		return nil, nil //nolint:nilnil // no change is not an error
	}
	ev := domain.NewEscalation(constants.EscalationRequirementChange,
		fmt.Sprintf("requirement change detected: %s", change.Category),
		fmt.Sprintf("input %q matches %q", input.Text, change.Match),
		"Re-plan from requirement analysis with the merged request").
		WithPayload("category", change.Category.String())
	ev.FlowID = f.ID
	ev, err := m.Raise(ctx, ev)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}
