package engine

import (
	"sync"
	"time"
)

type TimerMode string

const (
	ModeCountdown TimerMode = "countdown"
	ModeStopwatch TimerMode = "stopwatch"
)

type TimerState string

const (
	TimerIdle    TimerState = "idle"
	TimerRunning TimerState = "running"
	TimerPaused  TimerState = "paused"
	TimerStopped TimerState = "stopped"
)

// Timer is the one component that proceeds autonomously between user
// actions. It measures real wall-clock time through the injected Clock, so
// a backgrounded client reconciles to actual elapsed time instead of a
// stale in-memory counter. In countdown mode the expiry callback fires
// exactly once when the remaining time reaches zero; stopping or resetting
// first suppresses it, which is how a manual completion in the same time
// step wins over expiry.
type Timer struct {
	mu       sync.Mutex
	clock    Clock
	onExpire func()

	mode  TimerMode
	state TimerState

	remaining  time.Duration // countdown: time left as of resumeMark
	elapsed    time.Duration // stopwatch: time accumulated as of resumeMark
	resumeMark time.Time     // instant the timer last entered running

	handle  TimerHandle
	gen     int // invalidates callbacks armed before a cancel
	expired bool
}

// NewTimer creates an idle timer. onExpire may be nil for stopwatch use.
func NewTimer(clock Clock, onExpire func()) *Timer {
	return &Timer{clock: clock, state: TimerIdle, onExpire: onExpire}
}

// Start arms a countdown for the given duration. Only valid from idle.
func (t *Timer) Start(duration time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TimerIdle {
		return ErrTimerState
	}
	t.mode = ModeCountdown
	t.remaining = duration
	t.run()
	return nil
}

// StartStopwatch begins counting up without bound. Only valid from idle.
func (t *Timer) StartStopwatch() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TimerIdle {
		return ErrTimerState
	}
	t.mode = ModeStopwatch
	t.elapsed = 0
	t.run()
	return nil
}

func (t *Timer) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TimerRunning {
		return ErrTimerState
	}
	t.fold()
	t.cancel()
	t.state = TimerPaused
	return nil
}

func (t *Timer) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TimerPaused {
		return ErrTimerState
	}
	t.run()
	return nil
}

// Reset returns the timer to idle from any state. A pending expiry is
// cancelled and will not re-fire.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancel()
	t.state = TimerIdle
	t.remaining = 0
	t.elapsed = 0
	t.expired = false
}

// Stop ends the timer without firing expiry. Remaining time is frozen so
// it can be persisted with the completed module.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TimerRunning {
		t.fold()
	}
	t.cancel()
	t.state = TimerStopped
}

func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// Remaining returns the live countdown balance, floored at zero.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	rem := t.remaining
	if t.state == TimerRunning && t.mode == ModeCountdown {
		rem -= t.clock.Now().Sub(t.resumeMark)
	}
	if rem < 0 {
		rem = 0
	}
	return rem
}

// Elapsed returns the live stopwatch total.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	elapsed := t.elapsed
	if t.state == TimerRunning && t.mode == ModeStopwatch {
		elapsed += t.clock.Now().Sub(t.resumeMark)
	}
	return elapsed
}

// run transitions to running and, in countdown mode, arms the expiry
// callback. Callers hold t.mu.
func (t *Timer) run() {
	t.state = TimerRunning
	t.resumeMark = t.clock.Now()
	if t.mode != ModeCountdown {
		return
	}
	gen := t.gen
	t.handle = t.clock.AfterFunc(t.remaining, func() {
		t.fire(gen)
	})
}

// fold accumulates wall time into the stored counters. Callers hold t.mu.
func (t *Timer) fold() {
	delta := t.clock.Now().Sub(t.resumeMark)
	if t.mode == ModeCountdown {
		t.remaining -= delta
		if t.remaining < 0 {
			t.remaining = 0
		}
	} else {
		t.elapsed += delta
	}
}

// cancel invalidates any armed callback. Callers hold t.mu.
func (t *Timer) cancel() {
	t.gen++
	if t.handle != nil {
		t.handle.Stop()
		t.handle = nil
	}
}

func (t *Timer) fire(gen int) {
	t.mu.Lock()
	if gen != t.gen || t.state != TimerRunning || t.expired {
		t.mu.Unlock()
		return
	}
	t.remaining = 0
	t.state = TimerStopped
	t.expired = true
	cb := t.onExpire
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
}
