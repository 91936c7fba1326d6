// Package testutil holds deterministic stand-ins for time and identity so
// scenario traces and journal contents are byte-for-byte repeatable.
package testutil

import (
	"sync"
	"time"
)

// DeterministicClock numbers scenario steps.
//
// Unlike loop.Clock it can be reset, so one scenario can be replayed with
// identical seq values.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock returns a clock whose first Next is 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next advances the clock and returns the new value.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last value handed out, 0 before the first Next.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds to 0.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}

// SteppedTime is a fake wall clock. Each Now returns the previous reading
// plus step, starting at base.
type SteppedTime struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// NewSteppedTime returns a fake clock starting at base.
func NewSteppedTime(base time.Time, step time.Duration) *SteppedTime {
	return &SteppedTime{next: base, step: step}
}

// Now returns the current fake time and advances it.
func (s *SteppedTime) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.next
	s.next = s.next.Add(s.step)
	return now
}
