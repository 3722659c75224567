package engine

import (
	"sync"
	"time"
)

// Clock abstracts the wall clock so timer expiry is testable without
// sleeping. The real implementation delegates to the time package; tests
// inject a ManualClock and advance it explicitly.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) TimerHandle
}

// TimerHandle cancels a pending AfterFunc callback. Stop reports whether
// the callback was cancelled before it ran.
type TimerHandle interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) TimerHandle {
	return time.AfterFunc(d, f)
}

// NewRealClock returns a Clock backed by the system wall clock.
func NewRealClock() Clock { return realClock{} }

// ManualClock is a deterministic Clock for tests. Time only moves when
// Advance is called; due callbacks run synchronously on the advancing
// goroutine, in due order.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*manualTimer
}

type manualTimer struct {
	clock   *ManualClock
	due     time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) TimerHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, due: c.now.Add(d), f: f}
	c.pending = append(c.pending, t)
	return t
}

// Advance moves the clock forward and fires every pending callback that
// comes due, earliest first.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()

	for {
		t := c.nextDue()
		if t == nil {
			return
		}
		t.f()
	}
}

func (c *ManualClock) nextDue() *manualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	var next *manualTimer
	for _, t := range c.pending {
		if t.stopped || t.fired || t.due.After(c.now) {
			continue
		}
		if next == nil || t.due.Before(next.due) {
			next = t
		}
	}
	if next != nil {
		next.fired = true
	}
	return next
}
