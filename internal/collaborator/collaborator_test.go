package collaborator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	c := Respond(domain.RolePRDCreator, domain.StructuredResponse{Status: constants.ResponseCompleted})

	require.NoError(t, r.Register(c))
	assert.True(t, r.Has(domain.RolePRDCreator))

	got, err := r.Get(domain.RolePRDCreator)
	require.NoError(t, err)
	assert.Same(t, c, got)
	assert.Equal(t, []domain.Role{domain.RolePRDCreator}, r.Roles())
}

func TestRegistry_RejectsUnknownRole(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Respond(domain.Role("freestyle-agent")))
	require.ErrorIs(t, err, cadenceerrors.ErrUnknownRole)
}

func TestRegistry_RejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Respond(domain.RoleWorkPlanner)))
	require.ErrorIs(t, r.Register(Respond(domain.RoleWorkPlanner)), cadenceerrors.ErrCollaboratorExists)
}

func TestRegistry_GetMissing(t *testing.T) {
	_, err := NewRegistry().Get(domain.RoleQualityFixer)
	require.ErrorIs(t, err, cadenceerrors.ErrCollaboratorUnavailable)
	assert.Contains(t, err.Error(), "quality-fixer")
}

func TestRegistry_RegisterNil(t *testing.T) {
	require.ErrorIs(t, NewRegistry().Register(nil), cadenceerrors.ErrEmptyValue)
}

func TestRegistry_MustRegisterPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewRegistry().MustRegister(Respond("bogus"))
	})
}

func TestScripted_ReplaysInOrder(t *testing.T) {
	ctx := context.Background()
	s := NewScripted(domain.RoleTaskExecutor, []Step{
		{Response: domain.StructuredResponse{Summary: "first"}},
		{Fail: "compile error in foo.go"},
		{Response: domain.StructuredResponse{Summary: "third"}},
	})

	resp, err := s.Invoke(ctx, domain.Invocation{Description: "one"})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Summary)

	_, err = s.Invoke(ctx, domain.Invocation{Description: "two"})
	require.EqualError(t, err, "compile error in foo.go")

	resp, err = s.Invoke(ctx, domain.Invocation{Description: "three"})
	require.NoError(t, err)
	assert.Equal(t, "third", resp.Summary)
	assert.Equal(t, 0, s.Remaining())

	_, err = s.Invoke(ctx, domain.Invocation{})
	require.ErrorIs(t, err, cadenceerrors.ErrScriptExhausted)
	assert.Len(t, s.Calls(), 4)
}

func TestScripted_RepeatLast(t *testing.T) {
	s := NewScripted(domain.RoleQualityFixer, []Step{
		{Response: domain.StructuredResponse{Approved: domain.Bool(false)}},
	}, WithRepeatLast())

	for i := 0; i < 5; i++ {
		resp, err := s.Invoke(context.Background(), domain.Invocation{})
		require.NoError(t, err)
		assert.False(t, resp.IsApproved())
	}
}

func TestScripted_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Respond(domain.RoleDesignSync, domain.StructuredResponse{}).Invoke(ctx, domain.Invocation{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestScripted_ConcurrentUse(t *testing.T) {
	s := NewScripted(domain.RoleSecurityExpert, []Step{{}}, WithRepeatLast())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Invoke(context.Background(), domain.Invocation{})
		}()
	}
	wg.Wait()

	assert.Len(t, s.Calls(), 10)
}

func TestFunc(t *testing.T) {
	f := NewFunc(domain.RoleDocumentReviewer, func(_ context.Context, inv domain.Invocation) (domain.StructuredResponse, error) {
		return domain.StructuredResponse{Summary: inv.Phase}, nil
	})

	assert.Equal(t, domain.RoleDocumentReviewer, f.Role())
	resp, err := f.Invoke(context.Background(), domain.Invocation{Phase: "prd-review"})
	require.NoError(t, err)
	assert.Equal(t, "prd-review", resp.Summary)
}
