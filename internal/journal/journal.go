// Package journal keeps an append-only SQLite record of flow events and
// escalations. It is the audit trail behind `cadence journal` and survives
// flow snapshots being overwritten.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/logging"
)

const schemaV1 = `
CREATE TABLE IF NOT EXISTS flow_events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	flow_id      TEXT NOT NULL,
	seq_no       INTEGER NOT NULL,
	phase        TEXT NOT NULL DEFAULT '',
	task_id      TEXT NOT NULL DEFAULT '',
	event_type   TEXT NOT NULL,
	payload_json TEXT NOT NULL DEFAULT '{}',
	created_at   INTEGER NOT NULL,
	UNIQUE(flow_id, seq_no)
);
CREATE INDEX IF NOT EXISTS idx_flow_events_flow_seq ON flow_events(flow_id, seq_no);

CREATE TABLE IF NOT EXISTS escalations (
	escalation_id TEXT PRIMARY KEY,
	flow_id       TEXT NOT NULL DEFAULT '',
	kind          TEXT NOT NULL,
	phase         TEXT NOT NULL DEFAULT '',
	task_id       TEXT NOT NULL DEFAULT '',
	what          TEXT NOT NULL,
	why           TEXT NOT NULL,
	next_step     TEXT NOT NULL,
	payload_json  TEXT NOT NULL DEFAULT '{}',
	raised_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_escalations_flow ON escalations(flow_id, raised_at);
`

// Entry is one journaled flow event with its per-flow sequence number.
type Entry struct {
	Seq   int64
	Event domain.FlowEvent
}

// Journal is safe for concurrent use. It satisfies flow.Observer,
// execution.Observer and escalation.Notifier.
type Journal struct {
	db     *sql.DB
	logger zerolog.Logger
	mu     sync.Mutex
}

// Option configures a Journal.
type Option func(*Journal)

// WithLogger sets the logger used for write failures inside observer callbacks.
func WithLogger(logger zerolog.Logger) Option {
	return func(j *Journal) {
		j.logger = logger
	}
}

// Open opens the SQLite journal at path and migrates the schema.
// Use ":memory:" for a throwaway journal.
func Open(path string, opts ...Option) (*Journal, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", cadenceerrors.ErrJournal, err)
	}

	// WAL allows concurrent reads but a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), schemaV1); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate schema: %w", cadenceerrors.ErrJournal, err)
	}

	j := &Journal{db: db, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append stores ev at the next sequence number of its flow and returns it.
// An embedded escalation is recorded in the escalations table as well.
func (j *Journal) Append(ctx context.Context, ev domain.FlowEvent) (int64, error) {
	if ev.FlowID == "" {
		return 0, fmt.Errorf("%w: flow ID %w", cadenceerrors.ErrJournal, cadenceerrors.ErrEmptyValue)
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	ev.Detail = logging.Redact(ev.Detail)
	if ev.Escalation != nil {
		esc := scrubEscalation(*ev.Escalation)
		ev.Escalation = &esc
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("%w: encode event: %w", cadenceerrors.ErrJournal, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %w", cadenceerrors.ErrJournal, err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq_no), 0) + 1 FROM flow_events WHERE flow_id = ?`, ev.FlowID,
	).Scan(&seq); err != nil {
		return 0, fmt.Errorf("%w: next sequence: %w", cadenceerrors.ErrJournal, err)
	}

	const q = `INSERT INTO flow_events (flow_id, seq_no, phase, task_id, event_type, payload_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q,
		ev.FlowID, seq, ev.Phase, ev.TaskID, ev.Type.String(), string(payload), ev.At.UnixMilli(),
	); err != nil {
		return 0, fmt.Errorf("%w: append event: %w", cadenceerrors.ErrJournal, err)
	}

	if ev.Escalation != nil {
		if err := insertEscalation(ctx, tx, *ev.Escalation); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %w", cadenceerrors.ErrJournal, err)
	}
	return seq, nil
}

// RecordEscalation stores ev once. Recording the same escalation ID again is a no-op.
func (j *Journal) RecordEscalation(ctx context.Context, ev domain.EscalationEvent) error {
	ev = scrubEscalation(ev)

	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", cadenceerrors.ErrJournal, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertEscalation(ctx, tx, ev); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", cadenceerrors.ErrJournal, err)
	}
	return nil
}

// scrubEscalation redacts secrets an agent may have echoed into the free-text fields.
func scrubEscalation(ev domain.EscalationEvent) domain.EscalationEvent {
	ev.What = logging.Redact(ev.What)
	ev.Why = logging.Redact(ev.Why)
	ev.NextStep = logging.Redact(ev.NextStep)
	ev.Payload = logging.RedactPayload(ev.Payload)
	return ev
}

func insertEscalation(ctx context.Context, tx *sql.Tx, ev domain.EscalationEvent) error {
	if ev.ID == "" {
		return fmt.Errorf("%w: escalation ID %w", cadenceerrors.ErrJournal, cadenceerrors.ErrEmptyValue)
	}
	payload := []byte("{}")
	if len(ev.Payload) > 0 {
		var err error
		if payload, err = json.Marshal(ev.Payload); err != nil {
			return fmt.Errorf("%w: encode payload: %w", cadenceerrors.ErrJournal, err)
		}
	}
	raised := ev.RaisedAt
	if raised.IsZero() {
		raised = time.Now().UTC()
	}

	const q = `INSERT OR IGNORE INTO escalations
(escalation_id, flow_id, kind, phase, task_id, what, why, next_step, payload_json, raised_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q,
		ev.ID, ev.FlowID, ev.Kind.String(), ev.Phase, ev.TaskID, ev.What, ev.Why, ev.NextStep,
		string(payload), raised.UnixMilli(),
	); err != nil {
		return fmt.Errorf("%w: record escalation: %w", cadenceerrors.ErrJournal, err)
	}
	return nil
}

// Events returns the events of flowID with sequence numbers greater than
// sinceSeq, in order.
func (j *Journal) Events(ctx context.Context, flowID string, sinceSeq int64) ([]Entry, error) {
	const q = `SELECT seq_no, payload_json
FROM flow_events
WHERE flow_id = ? AND seq_no > ?
ORDER BY seq_no ASC`

	rows, err := j.db.QueryContext(ctx, q, flowID, sinceSeq)
	if err != nil {
		return nil, fmt.Errorf("%w: list events: %w", cadenceerrors.ErrJournal, err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var payload string
		if err := rows.Scan(&e.Seq, &payload); err != nil {
			return nil, fmt.Errorf("%w: scan event: %w", cadenceerrors.ErrJournal, err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Event); err != nil {
			return nil, fmt.Errorf("%w: decode event %d: %w", cadenceerrors.ErrJournal, e.Seq, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Escalations returns every escalation recorded for flowID, oldest first.
// An empty flowID returns escalations of all flows.
func (j *Journal) Escalations(ctx context.Context, flowID string) ([]domain.EscalationEvent, error) {
	const q = `SELECT escalation_id, flow_id, kind, phase, task_id, what, why, next_step, payload_json, raised_at
FROM escalations
WHERE (? = '' OR flow_id = ?)
ORDER BY raised_at ASC, escalation_id ASC`

	rows, err := j.db.QueryContext(ctx, q, flowID, flowID)
	if err != nil {
		return nil, fmt.Errorf("%w: list escalations: %w", cadenceerrors.ErrJournal, err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.EscalationEvent
	for rows.Next() {
		var ev domain.EscalationEvent
		var kind, payload string
		var raised int64
		if err := rows.Scan(&ev.ID, &ev.FlowID, &kind, &ev.Phase, &ev.TaskID,
			&ev.What, &ev.Why, &ev.NextStep, &payload, &raised); err != nil {
			return nil, fmt.Errorf("%w: scan escalation: %w", cadenceerrors.ErrJournal, err)
		}
		ev.Kind = constants.EscalationKind(kind)
		ev.RaisedAt = time.UnixMilli(raised).UTC()
		if payload != "{}" {
			if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
				return nil, fmt.Errorf("%w: decode payload: %w", cadenceerrors.ErrJournal, err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// OnEvent implements the flow and execution observers. Write failures are
// logged, not returned.
func (j *Journal) OnEvent(ctx context.Context, ev domain.FlowEvent) {
	if _, err := j.Append(ctx, ev); err != nil {
		j.logger.Error().Err(err).
			Str("flow_id", ev.FlowID).
			Str("event_type", ev.Type.String()).
			Msg("failed to journal event")
	}
}

// Notify implements escalation.Notifier.
func (j *Journal) Notify(ctx context.Context, ev domain.EscalationEvent) {
	if err := j.RecordEscalation(ctx, ev); err != nil {
		j.logger.Error().Err(err).
			Str("flow_id", ev.FlowID).
			Str("escalation_id", ev.ID).
			Msg("failed to journal escalation")
	}
}
