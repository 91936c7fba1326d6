package marshal

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/roach88/affinity/internal/signal"
)

// Completion resolves once posted work has run (or was rejected).
type Completion struct {
	once sync.Once
	done *signal.Signal
	err  error
	seq  atomic.Int64
}

func newCompletion() *Completion {
	return &Completion{done: signal.New()}
}

// resolve records err and releases waiters. Only the first call counts.
func (c *Completion) resolve(err error) {
	c.once.Do(func() {
		c.err = err
		c.done.Set()
	})
}

// Done returns a channel closed when the work has completed.
func (c *Completion) Done() <-chan struct{} {
	return c.done.Done()
}

// Wait blocks until the work has completed and returns its error.
//
// If ctx is done first, Wait returns ctx.Err(); the work itself is not
// retracted and still runs on the loop.
func (c *Completion) Wait(ctx context.Context) error {
	if err := c.done.WaitContext(ctx); err != nil {
		return err
	}
	return c.err
}

// Err returns the work's error once completed, nil before.
func (c *Completion) Err() error {
	if !c.done.IsSet() {
		return nil
	}
	return c.err
}

// Completed reports whether the work has completed.
func (c *Completion) Completed() bool {
	return c.done.IsSet()
}

// Seq returns the loop sequence number assigned to the work, 0 if it was
// rejected.
func (c *Completion) Seq() int64 {
	return c.seq.Load()
}

// Future is a Completion carrying the value produced by a query.
type Future[R any] struct {
	*Completion
	value R
}

// Get waits for the query and returns its value. On error the zero value
// is returned together with the error.
func (f *Future[R]) Get(ctx context.Context) (R, error) {
	if err := f.Wait(ctx); err != nil {
		var zero R
		return zero, err
	}
	return f.value, nil
}
