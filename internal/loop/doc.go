// Package loop implements the single-threaded cooperative event loop that
// owns the node under test.
//
// ARCHITECTURE:
//
// Single-Consumer Work Queue:
// Any goroutine may Enqueue work. Exactly one goroutine, the owner thread,
// calls Run and executes the items one at a time. This gives:
//   - mutual exclusion on loop-owned state without locks
//   - per-submitter FIFO ordering
//   - a single place where failures are observed and logged
//
// Work Processing Flow:
//  1. Enqueue stamps the item with a seq from the logical Clock and appends
//     it to the FIFO queue under the queue lock.
//  2. Run dequeues items one at a time.
//  3. Observers are told before and after each item (the journal uses this).
//  4. A failing or panicking item is logged; the loop keeps going.
//
// The loop does not know about results or waiters; that is the job of
// package marshal, which wraps work in completions.
package loop
