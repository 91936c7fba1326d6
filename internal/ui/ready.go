package ui

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/affinity/internal/signal"
)

// ReadyEvent is a one-shot event with explicit state. Observers that
// arrive after it was raised are served immediately.
//
// Thread-safety: safe for concurrent use.
type ReadyEvent struct {
	mu       sync.Mutex
	ready    bool
	handlers []func()
	sig      *signal.Signal
}

// NewReadyEvent creates an event that has not been raised.
func NewReadyEvent() *ReadyEvent {
	return &ReadyEvent{sig: signal.New()}
}

// IsReady reports whether the event has been raised.
func (e *ReadyEvent) IsReady() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// OnReady runs fn when the event is raised, on the raising goroutine. If
// the event was already raised, fn runs now on the calling goroutine.
func (e *ReadyEvent) OnReady(fn func()) {
	e.mu.Lock()
	if e.ready {
		e.mu.Unlock()
		fn()
		return
	}
	e.handlers = append(e.handlers, fn)
	e.mu.Unlock()
}

// Raise marks the event ready and runs pending handlers. It returns false
// if the event had already been raised.
func (e *ReadyEvent) Raise() bool {
	e.mu.Lock()
	if e.ready {
		e.mu.Unlock()
		return false
	}
	e.ready = true
	handlers := e.handlers
	e.handlers = nil
	e.mu.Unlock()

	e.sig.Set()
	for _, h := range handlers {
		h()
	}
	return true
}

// Done returns a channel closed once the event is raised.
func (e *ReadyEvent) Done() <-chan struct{} {
	return e.sig.Done()
}

// Wait blocks until the event is raised or ctx is done.
func (e *ReadyEvent) Wait(ctx context.Context) error {
	return e.sig.WaitContext(ctx)
}

// WaitTimeout blocks until the event is raised or timeout elapses. A
// non-positive timeout waits without bound.
func (e *ReadyEvent) WaitTimeout(timeout time.Duration) bool {
	if timeout <= 0 {
		e.sig.WaitForever()
		return true
	}
	return e.sig.Wait(timeout)
}
