package timectrl

import (
	"sort"
	"sync"
	"time"
)

// Clock is the time source for deferred work. Components depend on it
// rather than on the time package so tests can drive timers by hand.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// AfterFunc arranges for fn to run once d has elapsed.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop prevents the call from running. It reports whether the call was
	// still pending.
	Stop() bool
}

// Wall returns a Clock backed by the system clock.
func Wall() Clock { return wallClock{} }

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// TimeController is a manually advanced Clock. Timers fire synchronously,
// in deadline order, from Advance or SetTime.
type TimeController struct {
	mu        sync.Mutex
	now       time.Time
	seq       uint64
	timers    map[uint64]*manualTimer
	listeners []func(time.Time)
}

// NewTimeController constructs a controller starting at start.
func NewTimeController(start time.Time) *TimeController {
	return &TimeController{
		now:    start,
		timers: make(map[uint64]*manualTimer),
	}
}

// Now returns the controller's current time. Implements Clock.
func (tc *TimeController) Now() time.Time {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.now
}

// AfterFunc registers fn to run once the controller reaches now+d.
// Implements Clock.
func (tc *TimeController) AfterFunc(d time.Duration, fn func()) Timer {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.seq++
	t := &manualTimer{tc: tc, id: tc.seq, at: tc.now.Add(d), fn: fn}
	tc.timers[t.id] = t
	return t
}

// AddListener registers a callback invoked whenever time moves.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Advance moves time forward by d and fires every timer that came due.
func (tc *TimeController) Advance(d time.Duration) {
	tc.SetTime(tc.Now().Add(d))
}

// SetTime moves the controller to t. Timers due at or before t fire in
// deadline order; timers registered by a firing callback are considered
// as well.
func (tc *TimeController) SetTime(t time.Time) {
	for {
		tc.mu.Lock()
		next := tc.nextDueLocked(t)
		if next == nil {
			tc.now = t
			listeners := append([]func(time.Time){}, tc.listeners...)
			tc.mu.Unlock()
			for _, fn := range listeners {
				fn(t)
			}
			return
		}
		delete(tc.timers, next.id)
		if next.at.After(tc.now) {
			tc.now = next.at
		}
		tc.mu.Unlock()

		next.fn()
	}
}

// Pending returns the number of timers that have not fired or been stopped.
func (tc *TimeController) Pending() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.timers)
}

func (tc *TimeController) nextDueLocked(limit time.Time) *manualTimer {
	due := make([]*manualTimer, 0, len(tc.timers))
	for _, t := range tc.timers {
		if !t.at.After(limit) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].id < due[j].id
		}
		return due[i].at.Before(due[j].at)
	})
	return due[0]
}

type manualTimer struct {
	tc *TimeController
	id uint64
	at time.Time
	fn func()
}

func (t *manualTimer) Stop() bool {
	t.tc.mu.Lock()
	defer t.tc.mu.Unlock()
	if _, ok := t.tc.timers[t.id]; !ok {
		return false
	}
	delete(t.tc.timers, t.id)
	return true
}
