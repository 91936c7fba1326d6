// Package signal provides a one-shot, goroutine-safe waitable flag.
//
// A Signal starts unset and is set at most once. Any number of goroutines
// may wait for it; all of them are released when it is set. Waiting never
// polls: the flag is a channel that is closed on Set.
package signal

import (
	"context"
	"sync"
	"time"
)

// Signal is a single-use handshake between a setter and its waiters.
type Signal struct {
	once sync.Once
	ch   chan struct{}
}

// New creates an unset Signal.
func New() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Set transitions the signal to set and wakes every waiter.
// Calling Set again is a no-op.
func (s *Signal) Set() {
	s.once.Do(func() {
		close(s.ch)
	})
}

// IsSet reports whether Set has been called.
func (s *Signal) IsSet() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed once the signal is set.
func (s *Signal) Done() <-chan struct{} {
	return s.ch
}

// Wait blocks until the signal is set or timeout elapses.
// Returns false on timeout. A non-positive timeout reports the current
// state without blocking.
func (s *Signal) Wait(timeout time.Duration) bool {
	if timeout <= 0 {
		return s.IsSet()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.ch:
		return true
	case <-timer.C:
		// a Set racing the timer still counts
		return s.IsSet()
	}
}

// WaitForever blocks until the signal is set.
func (s *Signal) WaitForever() {
	<-s.ch
}

// WaitContext blocks until the signal is set or ctx is done.
func (s *Signal) WaitContext(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		if s.IsSet() {
			return nil
		}
		return ctx.Err()
	}
}
