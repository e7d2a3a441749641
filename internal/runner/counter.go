package runner

import "sync/atomic"

// Counter counts finished jobs out of a known total.
//
// Counter is safe for concurrent use.
type Counter struct {
	done  atomic.Int64
	total int
}

// NewCounter returns a counter of total jobs starting at zero.
func NewCounter(total int) *Counter {
	return &Counter{total: total}
}

// Next records one finished job and returns the number finished so far.
// Concurrent calls return distinct values.
func (c *Counter) Next() int {
	return int(c.done.Add(1))
}

// Done returns the number of finished jobs.
func (c *Counter) Done() int {
	return int(c.done.Load())
}

// Total returns the number of jobs.
func (c *Counter) Total() int { return c.total }
