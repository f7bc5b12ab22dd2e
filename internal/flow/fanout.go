package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/cadence/internal/collaborator"
	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

// FanOut dispatches inv to every expert concurrently and waits for all of
// them. It is a join barrier: either every expert returns and the responses
// come back in expert order, or an error is returned and no response is.
// An expert that ignores cancellation cannot hold the barrier past timeout.
func FanOut(ctx context.Context, experts []collaborator.Collaborator, inv domain.Invocation, timeout time.Duration) ([]domain.StructuredResponse, error) {
	if len(experts) < constants.MinExperts || len(experts) > constants.MaxExperts {
		return nil, fmt.Errorf("%w: got %d, want %d-%d",
			cadenceerrors.ErrFanOutSize, len(experts), constants.MinExperts, constants.MaxExperts)
	}
	if timeout <= 0 {
		timeout = constants.DefaultExpertTimeout
	}

	joinCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(joinCtx)
	responses := make([]domain.StructuredResponse, len(experts))

	for i, expert := range experts {
		g.Go(func() error {
			expertInv := inv
			expertInv.Role = expert.Role()
			resp, err := expert.Invoke(gctx, expertInv)
			if err != nil {
				return fmt.Errorf("%s: %w", expert.Role(), err)
			}
			responses[i] = resp
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, fmt.Errorf("%w after %s: %w", cadenceerrors.ErrExpertTimeout, timeout, err)
			}
			return nil, err
		}
		return responses, nil
	case <-joinCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w after %s", cadenceerrors.ErrExpertTimeout, timeout)
	}
}

// Synthesize merges expert responses into one phase response. Any escalation
// or block wins, then any revision request, otherwise the panel completed.
func Synthesize(responses []domain.StructuredResponse) domain.StructuredResponse {
	out := domain.StructuredResponse{Status: constants.ResponseCompleted}
	summaries := make([]string, 0, len(responses))

	for _, r := range responses {
		switch r.Outcome() {
		case constants.ResponseEscalationNeeded:
			out.Status = constants.ResponseEscalationNeeded
			out.Reason = orDefault(out.Reason, r.Reason)
		case constants.ResponseBlocked:
			if out.Status != constants.ResponseEscalationNeeded {
				out.Status = constants.ResponseBlocked
			}
			out.Reason = orDefault(out.Reason, r.Reason)
		case constants.ResponseNeedsRevision, constants.ResponseRejected:
			if out.Status == constants.ResponseCompleted {
				out.Status = constants.ResponseNeedsRevision
			}
		}
		out.Issues = append(out.Issues, r.Issues...)
		if r.Summary != "" {
			summaries = append(summaries, r.Summary)
		}
	}

	out.Summary = fmt.Sprintf("%d experts: %s", len(responses), strings.Join(summaries, " | "))
	return out
}
