// Package accounting tracks the bytes of live memory the backend has handed
// out, as measured by the OS region query.
package accounting

import "sync/atomic"

// Counter is a lock-free live-bytes counter. The zero value is ready to use.
type Counter struct {
	live atomic.Int64
	peak atomic.Int64
}

// Live is the process-wide counter.
var Live = New()

// New returns an independent counter.
func New() *Counter { return &Counter{} }

// Add records n newly committed bytes. Negative sizes, including the region
// mapper's Unknown sentinel, are skipped.
func (c *Counter) Add(n int64) {
	if n < 0 {
		return
	}
	v := c.live.Add(n)
	for {
		p := c.peak.Load()
		if v <= p || c.peak.CompareAndSwap(p, v) {
			return
		}
	}
}

// Subtract records n released bytes, with the same guard as Add.
func (c *Counter) Subtract(n int64) {
	if n < 0 {
		return
	}
	c.live.Add(-n)
}

// Read returns the current live total. A negative value means a release was
// recorded without the matching Add.
func (c *Counter) Read() int64 { return c.live.Load() }

// Peak returns the highest live total observed by Add.
func (c *Counter) Peak() int64 { return c.peak.Load() }

// TotalCommitted returns the live total.
func (c *Counter) TotalCommitted() int64 { return c.Read() }

// TotalReserved returns the live total; the backend commits everything it
// reserves.
func (c *Counter) TotalReserved() int64 { return c.Read() }

// Reset zeroes the counter. Only meant for counters from New.
func (c *Counter) Reset() {
	c.live.Store(0)
	c.peak.Store(0)
}
