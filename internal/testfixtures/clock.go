package testfixtures

import (
	"sync/atomic"
	"time"
)

// Clock is a manually driven time source. Now keeps returning the same
// instant until a test moves it, so stored timestamps can be compared exactly.
type Clock struct {
	nanos atomic.Int64
}

// NewClock starts the clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	c := &Clock{}
	c.nanos.Store(start.UnixNano())
	return c
}

// Now returns the current instant in UTC.
func (c *Clock) Now() time.Time {
	return time.Unix(0, c.nanos.Load()).UTC()
}

// Current is Now, for assertions that read better without implying a tick.
func (c *Clock) Current() time.Time {
	return c.Now()
}

// NowFunc adapts the clock to the now func services take. A nil clock
// yields the wall clock.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Advance moves the clock forward by d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	return time.Unix(0, c.nanos.Add(int64(d))).UTC()
}

// MoveToDate jumps to midnight UTC of a YYYY-MM-DD date. It panics on a
// malformed date since that is a broken test.
func (c *Clock) MoveToDate(date string) time.Time {
	day, err := time.Parse(time.DateOnly, date)
	if err != nil {
		panic("testfixtures: bad date " + date)
	}
	c.nanos.Store(day.UnixNano())
	return day
}
