package loop

import (
	"sync"
)

// Work is a unit of work submitted to the loop.
type Work struct {
	// Seq is the logical sequence number assigned at enqueue time.
	Seq int64

	// Label names the work for logs and the journal.
	Label string

	// Fn runs on the loop goroutine. A returned error is reported to
	// observers; it does not stop the loop.
	Fn func() error

	// Abandon, if set, is called instead of Fn when the item is discarded
	// without running (the loop's context was cancelled).
	Abandon func(err error)

	// Stamped, if set, receives Seq under the queue lock, before the item
	// can be dequeued.
	Stamped func(seq int64)
}

// workQueue is a thread-safe FIFO queue for work items.
//
// Many goroutines enqueue; only the loop dequeues. The queue is unbounded
// so a caller never blocks on submission.
//
// The signal channel (buffered, size 1) lets the loop wait for work with
// select, so it also observes context cancellation.
type workQueue struct {
	mu     sync.Mutex
	items  []Work
	closed bool
	signal chan struct{}
}

func newWorkQueue() *workQueue {
	return &workQueue{
		items:  make([]Work, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// enqueue appends w, stamping it with a sequence number from next while
// holding the lock so seq order equals queue order.
// Returns false if the queue is closed.
func (q *workQueue) enqueue(w Work, next func() int64) (int64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, false
	}

	w.Seq = next()
	if w.Stamped != nil {
		w.Stamped(w.Seq)
	}
	q.items = append(q.items, w)

	// non-blocking: the size-1 buffer coalesces wake-ups
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return w.Seq, true
}

// tryDequeue removes and returns the front item without blocking.
func (q *workQueue) tryDequeue() (Work, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Work{}, false
	}

	w := q.items[0]

	// release the closure so the GC can collect captured state
	q.items[0] = Work{}

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	return w, true
}

// wait returns a channel that signals when items may be available.
// It is closed when the queue is closed.
func (q *workQueue) wait() <-chan struct{} {
	return q.signal
}

func (q *workQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *workQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// close rejects further enqueues and wakes the consumer.
func (q *workQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// drain removes every pending item and returns them in FIFO order.
func (q *workQueue) drain() []Work {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]Work, len(q.items))
	copy(items, q.items)
	for i := range q.items {
		q.items[i] = Work{}
	}
	q.items = q.items[:0]
	return items
}
