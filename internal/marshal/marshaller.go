// Package marshal is the only sanctioned way to touch loop-owned state from
// another goroutine.
//
// Post wraps an action, Query wraps a value-returning function. Both
// enqueue the work on the loop and hand back a completion the caller can
// wait on. Errors and panics raised on the loop travel back to the waiter;
// they never stop the loop.
package marshal

import (
	"log/slog"
	"runtime/debug"

	"github.com/roach88/affinity/internal/failure"
	"github.com/roach88/affinity/internal/loop"
)

// Poster accepts work for the loop. *loop.Loop implements it.
type Poster interface {
	Submit(w loop.Work) (int64, error)
}

// Marshaller posts work to one loop.
//
// Thread-safety: safe for concurrent use. Work submitted back-to-back by
// one goroutine runs in submission order; no order is promised across
// goroutines beyond "one at a time".
type Marshaller struct {
	poster Poster
	logger *slog.Logger
}

// Option configures a Marshaller.
type Option func(*Marshaller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Marshaller) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a marshaller bound to poster.
func New(poster Poster, opts ...Option) *Marshaller {
	m := &Marshaller{
		poster: poster,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Post enqueues action on the loop. The returned completion resolves after
// action has run, carrying its error.
func (m *Marshaller) Post(label string, action func() error) *Completion {
	c := newCompletion()
	m.submit(label, c, action)
	return c
}

// Query enqueues query on the loop. The future's value is written before
// the future resolves, so a waiter never sees an unset result.
func Query[R any](m *Marshaller, label string, query func() (R, error)) *Future[R] {
	f := &Future[R]{Completion: newCompletion()}
	m.submit(label, f.Completion, func() error {
		v, err := query()
		if err == nil {
			f.value = v
		}
		return err
	})
	return f
}

func (m *Marshaller) submit(label string, c *Completion, fn func() error) {
	_, err := m.poster.Submit(loop.Work{
		Label: label,
		Fn: func() (err error) {
			// the loop would recover too, but the waiter must see the
			// panic, so resolve here
			defer func() {
				if r := recover(); r != nil {
					err = &failure.PanicError{Label: label, Value: r, Stack: debug.Stack()}
				}
				c.resolve(err)
			}()
			return fn()
		},
		Abandon: c.resolve,
		Stamped: c.seq.Store,
	})
	if err != nil {
		m.logger.Debug("work rejected", "label", label, "error", err)
		c.resolve(err)
	}
}
