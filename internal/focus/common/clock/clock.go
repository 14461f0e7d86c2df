package clock

import (
	"sort"
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

// Timer is a pending callback created by AfterFunc.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call
	// stopped the timer (false if it already fired or was stopped).
	Stop() bool
}

// TimerClock is a Clock that can also schedule callbacks.
type TimerClock interface {
	Clock
	AfterFunc(d time.Duration, f func()) Timer
}

type RealClock struct{}

func (c RealClock) Now() time.Time {
	return time.Now()
}

func (c RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// MockClock is a manually advanced clock. Callbacks registered with
// AfterFunc run synchronously inside Advance once their deadline is reached.
type MockClock struct {
	mu          sync.Mutex
	CurrentTime time.Time
	timers      []*mockTimer
}

type mockTimer struct {
	clock   *MockClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CurrentTime
}

// Set moves the clock to t without firing timers.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	c.CurrentTime = t
	c.mu.Unlock()
}

func (c *MockClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	t := &mockTimer{clock: c, at: c.CurrentTime.Add(d), f: f}
	c.timers = append(c.timers, t)
	c.mu.Unlock()
	return t
}

// Advance moves the clock forward by d and fires every timer that became due,
// in deadline order.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.CurrentTime = c.CurrentTime.Add(d)
	now := c.CurrentTime
	var due []*mockTimer
	pending := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case !t.at.After(now):
			t.fired = true
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (c *MockClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (t *mockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}
