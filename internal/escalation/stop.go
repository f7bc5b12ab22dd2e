package escalation

import "sync"

// UserStop is the explicit user halt signal. Stop may be called any number
// of times from any goroutine; only the first reason is kept.
type UserStop struct {
	once   sync.Once
	ch     chan struct{}
	mu     sync.Mutex
	reason string
}

// NewUserStop creates an armed stop signal.
func NewUserStop() *UserStop {
	return &UserStop{ch: make(chan struct{})}
}

// Stop halts execution.
func (s *UserStop) Stop(reason string) {
	s.once.Do(func() {
		s.mu.Lock()
		s.reason = reason
		s.mu.Unlock()
		close(s.ch)
	})
}

// Stopped is closed once Stop is called.
func (s *UserStop) Stopped() <-chan struct{} {
	return s.ch
}

// IsStopped reports whether Stop was called.
func (s *UserStop) IsStopped() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Reason returns the reason given to the first Stop call.
func (s *UserStop) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}
