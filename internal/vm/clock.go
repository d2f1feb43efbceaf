package vm

import "sync/atomic"

// Clock stamps compilations and deoptimizations with a strictly increasing
// seq. A compilation's seq doubles as its compile id, so ids are unique per
// clock and never reused after a deopt.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first tick is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new seq.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Last returns the most recent seq, or 0 before the first tick.
func (c *Clock) Last() int64 {
	return c.seq.Load()
}
