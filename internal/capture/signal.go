package capture

import (
	"context"
	"sync"
	"sync/atomic"
)

// Signal is a one-shot completion notification between the sign-in server
// and the caller waiting for it. Firing before anyone waits is not lost.
type Signal struct {
	once    sync.Once
	done    chan struct{}
	waiting atomic.Bool
}

// NewSignal returns an unfired signal.
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Fire marks the signal complete. Only the first call returns true.
func (s *Signal) Fire() bool {
	fired := false
	s.once.Do(func() {
		close(s.done)
		fired = true
	})
	return fired
}

// Fired reports whether Fire has been called.
func (s *Signal) Fired() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the signal fires.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the signal fires or ctx is done. A signal has a single
// waiter; other callers get ErrSignalAwaited.
func (s *Signal) Wait(ctx context.Context) error {
	if !s.waiting.CompareAndSwap(false, true) {
		return ErrSignalAwaited
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
