// Package clock provides a mock for time package.
package clock

import (
	"sync"
	"time"
)

// C is the time source of the plotter loop: debounce timers, the AIS expiry
// ticker and marker timestamps all read it.
type C interface {
	Now() time.Time
	// After behaves like time.After; the timer is dropped when stop is called.
	After(d time.Duration) (ch <-chan time.Time, stop func())
}

type Real struct{}

func (c *Real) Now() time.Time {
	return time.Now()
}

func (c *Real) After(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTimer(d)
	return t.C, func() { t.Stop() }
}

// Mock only moves when Advance or Set is called. Timers created with After
// fire, in deadline order, once the mock time reaches their deadline.
type Mock struct {
	mu      sync.Mutex
	MockNow time.Time
	timers  []*mockTimer
}

type mockTimer struct {
	deadline time.Time
	ch       chan time.Time
	stopped  bool
}

func (c *Mock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.MockNow
}

func (c *Mock) After(d time.Duration) (<-chan time.Time, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &mockTimer{deadline: c.MockNow.Add(d), ch: make(chan time.Time, 1)}
	if d <= 0 {
		t.ch <- c.MockNow
		return t.ch, func() {}
	}
	c.timers = append(c.timers, t)
	return t.ch, func() {
		c.mu.Lock()
		t.stopped = true
		c.mu.Unlock()
	}
}

// Advance moves the mock time forward by d and fires due timers.
func (c *Mock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

// Set moves the mock time to now and fires due timers.
func (c *Mock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MockNow = now
	pending := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case !t.deadline.After(now):
			t.ch <- now
		default:
			pending = append(pending, t)
		}
	}
	c.timers = pending
}

// Pending reports the number of armed timers.
func (c *Mock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}
