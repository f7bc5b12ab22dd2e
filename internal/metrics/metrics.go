// Package metrics exposes flow and execution activity as Prometheus metrics.
// Metrics is fed the same events as the journal, so it can be attached as
// an observer and an escalation notifier without touching the state machines.
package metrics

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
)

// Namespace prefixes every cadence metric.
const Namespace = "cadence"

// Metrics holds the cadence collectors. Safe for concurrent use.
//
// Metrics:
//   - cadence_flows_started_total{variant}
//   - cadence_phases_completed_total{phase}
//   - cadence_revisions_total{phase}
//   - cadence_gates_resolved_total{outcome}
//   - cadence_escalations_total{kind}
//   - cadence_task_transitions_total{to}
//   - cadence_commits_total
//   - cadence_task_duration_seconds{outcome}
type Metrics struct {
	FlowsStarted    *prometheus.CounterVec
	PhasesCompleted *prometheus.CounterVec
	Revisions       *prometheus.CounterVec
	GatesResolved   *prometheus.CounterVec
	Escalations     *prometheus.CounterVec
	TaskTransitions *prometheus.CounterVec
	Commits         prometheus.Counter
	TaskDuration    *prometheus.HistogramVec

	mu      sync.Mutex
	started map[string]time.Time
	seen    map[string]bool
}

// New creates the collectors and registers them with reg. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FlowsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "flows_started_total",
			Help:      "Total number of flows started, by variant",
		}, []string{"variant"}),

		PhasesCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "phases_completed_total",
			Help:      "Total number of phases completed",
		}, []string{"phase"}),

		Revisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "revisions_total",
			Help:      "Total number of revision loops, by requesting phase",
		}, []string{"phase"}),

		GatesResolved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "gates_resolved_total",
			Help:      "Total number of stop points resolved, by outcome",
		}, []string{"outcome"}),

		Escalations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "escalations_total",
			Help:      "Total number of escalations raised, by kind",
		}, []string{"kind"}),

		TaskTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "task_transitions_total",
			Help:      "Total number of task status changes, by target status",
		}, []string{"to"}),

		Commits: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "commits_total",
			Help:      "Total number of commits recorded by the execution loop",
		}),

		TaskDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "task_duration_seconds",
			Help:      "Time from a task starting to quality approval or escalation",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1h
		}, []string{"outcome"}),

		started: make(map[string]time.Time),
		seen:    make(map[string]bool),
	}
}

// OnEvent implements the flow and execution observers.
func (m *Metrics) OnEvent(_ context.Context, ev domain.FlowEvent) {
	switch ev.Type {
	case constants.EventFlowStarted:
		m.FlowsStarted.WithLabelValues(ev.Detail).Inc()
	case constants.EventPhaseCompleted:
		m.PhasesCompleted.WithLabelValues(ev.Phase).Inc()
	case constants.EventRevision:
		m.Revisions.WithLabelValues(ev.Phase).Inc()
	case constants.EventGateResolved:
		outcome, _, _ := strings.Cut(ev.Detail, ":")
		m.GatesResolved.WithLabelValues(outcome).Inc()
	case constants.EventEscalation:
		if ev.Escalation != nil {
			m.escalation(*ev.Escalation)
		}
	case constants.EventTaskTransition:
		m.TaskTransitions.WithLabelValues(ev.To).Inc()
		m.taskTiming(ev)
	case constants.EventCommit:
		m.Commits.Inc()
	}
}

// Notify implements escalation.Notifier.
func (m *Metrics) Notify(_ context.Context, ev domain.EscalationEvent) {
	m.escalation(ev)
}

// escalation counts each escalation ID once, however many sinks report it.
func (m *Metrics) escalation(ev domain.EscalationEvent) {
	m.mu.Lock()
	if ev.ID != "" && m.seen[ev.ID] {
		m.mu.Unlock()
		return
	}
	m.seen[ev.ID] = true
	m.mu.Unlock()
	m.Escalations.WithLabelValues(ev.Kind.String()).Inc()
}

func (m *Metrics) taskTiming(ev domain.FlowEvent) {
	key := ev.FlowID + "/" + ev.TaskID
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch constants.TaskStatus(ev.To) {
	case constants.TaskStatusExecuting:
		if _, ok := m.started[key]; !ok {
			m.started[key] = at
		}
	case constants.TaskStatusQualityChecked, constants.TaskStatusEscalated:
		start, ok := m.started[key]
		if !ok {
			return
		}
		delete(m.started, key)
		m.TaskDuration.WithLabelValues(ev.To).Observe(at.Sub(start).Seconds())
	}
}
