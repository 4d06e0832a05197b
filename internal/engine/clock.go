package engine

import "sync/atomic"

// Clock is a monotonic logical clock numbering evaluation passes.
//
// Pass numbers order passes without wall-clock time, so recorded pass logs
// and golden traces are reproducible.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming after a known pass number, e.g. the
// last pass recorded in a store.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next pass number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued pass number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
