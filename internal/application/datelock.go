package application

import "sync"

// dateLocks serializes work per calendar date. Entries are reference counted
// and removed once the last holder releases them.
type dateLocks struct {
	mu    sync.Mutex
	locks map[string]*dateLock
}

type dateLock struct {
	mu   sync.Mutex
	refs int
}

func newDateLocks() *dateLocks {
	return &dateLocks{locks: make(map[string]*dateLock)}
}

// lock blocks until the caller holds every listed date and returns the
// release function. Dates are locked in sorted order so two callers spanning
// the same pair of dates cannot deadlock.
func (d *dateLocks) lock(dates ...string) func() {
	dates = sortStrings(uniqueStrings(dates))
	held := make([]*dateLock, 0, len(dates))
	for _, date := range dates {
		d.mu.Lock()
		l, ok := d.locks[date]
		if !ok {
			l = &dateLock{}
			d.locks[date] = l
		}
		l.refs++
		d.mu.Unlock()

		l.mu.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			l := held[i]
			l.mu.Unlock()

			d.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(d.locks, dates[i])
			}
			d.mu.Unlock()
		}
	}
}

// size reports how many dates currently have holders or waiters.
func (d *dateLocks) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.locks)
}
