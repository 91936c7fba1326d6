package loop

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/roach88/affinity/internal/failure"
)

// Observer is notified around every work item the loop executes.
// Both methods are called on the loop goroutine.
type Observer interface {
	WorkStarted(w Work)
	WorkFinished(w Work, elapsed time.Duration, err error)
}

// Loop is a single-consumer cooperative event loop.
//
// Work is executed one item at a time, in submission order, on whichever
// goroutine calls Run. All state owned by the loop must only be touched
// from inside work items.
//
// Thread-safety model:
//   - Enqueue(): safe from any goroutine
//   - Run(): exactly one goroutine at a time
//   - Stop(): safe from any goroutine, idempotent
type Loop struct {
	queue     *workQueue
	clock     *Clock
	logger    *slog.Logger
	observers []Observer

	running  atomic.Bool
	executed atomic.Int64
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for work failures and lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) {
		if l != nil {
			lp.logger = l
		}
	}
}

// WithObserver registers an observer notified around every work item.
func WithObserver(o Observer) Option {
	return func(lp *Loop) {
		if o != nil {
			lp.observers = append(lp.observers, o)
		}
	}
}

// WithClock sets the logical clock used to stamp work items.
func WithClock(c *Clock) Option {
	return func(lp *Loop) {
		if c != nil {
			lp.clock = c
		}
	}
}

// New creates a loop. It does nothing until Run is called.
func New(opts ...Option) *Loop {
	l := &Loop{
		queue:  newWorkQueue(),
		clock:  NewClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Enqueue submits fn for execution on the loop and returns its sequence
// number. Items submitted by one goroutine run in the order submitted.
// Returns a LOOP_CLOSED error once the loop is stopped.
func (l *Loop) Enqueue(label string, fn func() error) (int64, error) {
	return l.Submit(Work{Label: label, Fn: fn})
}

// Submit is Enqueue for a fully described work item. The Seq field is
// assigned by the loop.
func (l *Loop) Submit(w Work) (int64, error) {
	if w.Fn == nil {
		return 0, fmt.Errorf("enqueue %q: nil work function", w.Label)
	}
	seq, ok := l.queue.enqueue(w, l.clock.Next)
	if !ok {
		return 0, failure.LoopClosed("enqueue")
	}
	return seq, nil
}

// Run executes queued work until Stop is called or ctx is done.
//
// A failing or panicking item is logged and the loop carries on with the
// next one. After Stop, items that were already queued still run before
// Run returns nil. On context cancellation the remaining items are
// abandoned and Run returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return failure.LoopAlreadyRunning()
	}
	defer l.running.Store(false)

	l.logger.Debug("loop starting")

	for {
		if ctx.Err() != nil {
			return l.abandon(ctx)
		}

		if w, ok := l.queue.tryDequeue(); ok {
			l.execute(w)
			continue
		}

		select {
		case <-ctx.Done():
			return l.abandon(ctx)

		case <-l.queue.wait():
			// the signal channel is closed on Stop, so an empty closed
			// queue means we are done
			if l.queue.isClosed() && l.queue.len() == 0 {
				l.logger.Debug("loop stopping: queue closed")
				return nil
			}
		}
	}
}

// abandon closes the queue and fails every pending item.
func (l *Loop) abandon(ctx context.Context) error {
	l.queue.close()
	dropped := l.queue.drain()
	for _, w := range dropped {
		if w.Abandon != nil {
			w.Abandon(failure.LoopClosed("run"))
		}
	}
	l.logger.Info("loop stopping: context cancelled", "dropped", len(dropped))
	return ctx.Err()
}

// execute runs one item. CRITICAL: called only from the Run goroutine.
func (l *Loop) execute(w Work) {
	for _, o := range l.observers {
		o.WorkStarted(w)
	}

	start := time.Now()
	err := l.invoke(w)
	elapsed := time.Since(start)
	l.executed.Add(1)

	if err != nil {
		l.logger.Warn("work item failed",
			"seq", w.Seq,
			"label", w.Label,
			"error", err,
		)
	} else {
		l.logger.Debug("work item done",
			"seq", w.Seq,
			"label", w.Label,
			"elapsed", elapsed,
		)
	}

	for _, o := range l.observers {
		o.WorkFinished(w, elapsed, err)
	}
}

func (l *Loop) invoke(w Work) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &failure.PanicError{Label: w.Label, Value: r, Stack: debug.Stack()}
		}
	}()
	return w.Fn()
}

// Stop closes the queue. Items already queued still run; later Enqueue
// calls fail with LOOP_CLOSED.
func (l *Loop) Stop() {
	l.queue.close()
}

// Running reports whether a goroutine is currently inside Run.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Pending returns the number of queued, not yet started items.
func (l *Loop) Pending() int {
	return l.queue.len()
}

// Executed returns the number of items run so far.
func (l *Loop) Executed() int64 {
	return l.executed.Load()
}

// LastSeq returns the sequence number of the most recently queued item.
func (l *Loop) LastSeq() int64 {
	return l.clock.Current()
}
