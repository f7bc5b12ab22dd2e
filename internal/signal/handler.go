// Package signal turns terminal interrupts into cadence user stops.
//
// The first SIGINT or SIGTERM asks the running flow to stop after recording
// its in-flight task. A second one cancels the context outright.
//
// Import rules:
//   - CAN import: std lib only
//   - MUST NOT import: internal packages (to avoid circular dependencies)
package signal

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// StopReason is passed to the stop callback on the first interrupt.
const StopReason = "interrupted from the terminal"

// ErrForcedExit is the context cause after a second interrupt.
var ErrForcedExit = errors.New("interrupted twice, exiting") //nolint:gochecknoglobals // sentinel

// StopFunc requests a graceful stop with a human-readable reason.
type StopFunc func(reason string)

// Handler listens for interrupt signals for the lifetime of one command.
type Handler struct {
	ctx         context.Context //nolint:containedctx // handler owns the command context lifecycle
	cancel      context.CancelCauseFunc
	stop        StopFunc
	interrupted chan struct{}
	done        chan struct{}
	sigChan     chan os.Signal

	mu       sync.Mutex
	count    int
	stopOnce sync.Once
}

// NewHandler creates a handler bound to parent. On the first signal stop is
// called and Interrupted closes. When stop is nil the first signal cancels
// the context directly.
//
// Usage:
//
//	h := signal.NewHandler(ctx, loop.Stop)
//	defer h.Stop()
//	ctx = h.Context()
func NewHandler(parent context.Context, stop StopFunc) *Handler {
	ctx, cancel := context.WithCancelCause(parent)
	h := &Handler{
		ctx:         ctx,
		cancel:      cancel,
		stop:        stop,
		interrupted: make(chan struct{}),
		done:        make(chan struct{}),
		// Buffer of 1 so signal.Notify never drops a signal while we are busy.
		sigChan: make(chan os.Signal, 1),
	}

	signal.Notify(h.sigChan, syscall.SIGINT, syscall.SIGTERM)
	go h.listen()

	return h
}

// Context returns the command context. It is canceled by a second
// interrupt, by Stop, or when the parent is done.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Interrupted closes on the first signal.
func (h *Handler) Interrupted() <-chan struct{} {
	return h.interrupted
}

// Interrupts returns how many signals have been received.
func (h *Handler) Interrupts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Stop stops listening and cancels the context. It is idempotent.
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		signal.Stop(h.sigChan)
		close(h.done)
		h.cancel(context.Canceled)
	})
}

func (h *Handler) handleSignal() {
	h.mu.Lock()
	h.count++
	n := h.count
	h.mu.Unlock()

	switch {
	case n == 1 && h.stop != nil:
		close(h.interrupted)
		h.stop(StopReason)
	case n == 1:
		close(h.interrupted)
		h.cancel(ErrForcedExit)
	case n == 2:
		h.cancel(ErrForcedExit)
	}
}

// listen handles signals until Stop is called or the context ends.
// Signals past the second are drained and ignored.
func (h *Handler) listen() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-h.done:
			return
		case <-h.sigChan:
			h.handleSignal()
		}
	}
}
