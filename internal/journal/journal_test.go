package journal

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), constants.JournalFileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_AppendAndEvents(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	for _, typ := range []constants.EventType{constants.EventFlowStarted, constants.EventPhaseEntered, constants.EventPhaseCompleted} {
		_, err := j.Append(ctx, domain.FlowEvent{Type: typ, FlowID: "flow-a", Phase: "analysis"})
		require.NoError(t, err)
	}
	seq, err := j.Append(ctx, domain.FlowEvent{Type: constants.EventFlowStarted, FlowID: "flow-b"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq, "sequence numbers are per flow")

	all, err := j.Events(ctx, "flow-a", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(1), all[0].Seq)
	assert.Equal(t, constants.EventPhaseCompleted, all[2].Event.Type)
	assert.Equal(t, "analysis", all[2].Event.Phase)
	assert.False(t, all[2].Event.At.IsZero())

	since, err := j.Events(ctx, "flow-a", 2)
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, int64(3), since[0].Seq)

	_, err = j.Append(ctx, domain.FlowEvent{Type: constants.EventFlowStarted})
	require.ErrorIs(t, err, cadenceerrors.ErrEmptyValue)
}

func TestJournal_Escalations(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	ev := domain.NewEscalation(constants.EscalationRepeatedError, "same error 3 times", "lint failed", "Write a root cause").
		WithPayload("signature", "lint failed")
	ev.FlowID = "flow-a"

	j.Notify(ctx, ev)
	j.OnEvent(ctx, domain.FlowEvent{Type: constants.EventEscalation, FlowID: "flow-a", Escalation: &ev})

	other := domain.NewEscalation(constants.EscalationUserStop, "stopped", "user", "Resume")
	other.FlowID = "flow-b"
	j.Notify(ctx, other)

	got, err := j.Escalations(ctx, "flow-a")
	require.NoError(t, err)
	require.Len(t, got, 1, "the same escalation is recorded once")
	assert.Equal(t, ev.ID, got[0].ID)
	assert.Equal(t, constants.EscalationRepeatedError, got[0].Kind)
	assert.Equal(t, "lint failed", got[0].Payload["signature"])
	assert.WithinDuration(t, ev.RaisedAt, got[0].RaisedAt, time.Millisecond)

	all, err := j.Escalations(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	events, err := j.Events(ctx, "flow-a", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Event.Escalation)
	assert.Equal(t, ev.ID, events[0].Event.Escalation.ID)
}

func TestJournal_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.OnEvent(ctx, domain.FlowEvent{Type: constants.EventTaskTransition, FlowID: "flow-a"})
		}()
	}
	wg.Wait()

	events, err := j.Events(ctx, "flow-a", 0)
	require.NoError(t, err)
	require.Len(t, events, 20)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Seq)
	}
}

func TestJournal_RedactsSecrets(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	key := "sk-" + "ant-api03-test-key-do-not-use"
	ev := domain.NewEscalation(constants.EscalationCollaboratorFailure, "executor failed", "auth rejected "+key, "Rotate the key").
		WithPayload("api_key", key)
	ev.FlowID = "flow-a"

	_, err := j.Append(ctx, domain.FlowEvent{Type: constants.EventEscalation, FlowID: "flow-a", Detail: key, Escalation: &ev})
	require.NoError(t, err)

	got, err := j.Escalations(ctx, "flow-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "auth rejected [REDACTED]", got[0].Why)
	assert.Equal(t, "[REDACTED]", got[0].Payload["api_key"])

	events, err := j.Events(ctx, "flow-a", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "[REDACTED]", events[0].Event.Detail)
	assert.Equal(t, key, ev.Payload["api_key"], "caller's event is untouched")
}
