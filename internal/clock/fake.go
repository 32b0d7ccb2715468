package clock

import (
	"sync"
	"time"
)

// Fake is a Clock whose time only moves when Advance is called. Timers fire
// synchronously inside Advance once their deadline is reached.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) NewTimer(d time.Duration) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	timer := &fakeTimer{
		ch:       make(chan time.Time, 1),
		deadline: f.now.Add(d),
	}
	if d <= 0 {
		timer.fired = true
		timer.ch <- f.now
		return timer
	}
	f.timers = append(f.timers, timer)
	return timer
}

// Advance moves the clock forward and fires every armed timer whose deadline
// has passed.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	remaining := f.timers[:0]
	for _, timer := range f.timers {
		timer.mu.Lock()
		due := !timer.stopped && !timer.deadline.After(f.now)
		if due {
			timer.fired = true
			timer.ch <- f.now
		}
		done := timer.stopped || timer.fired
		timer.mu.Unlock()
		if !done {
			remaining = append(remaining, timer)
		}
	}
	f.timers = remaining
}

// ArmedTimers reports how many timers are waiting to fire. Tests use it to
// wait for a goroutine to re-arm before advancing again.
func (f *Fake) ArmedTimers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, timer := range f.timers {
		timer.mu.Lock()
		if !timer.stopped && !timer.fired {
			count++
		}
		timer.mu.Unlock()
	}
	return count
}

type fakeTimer struct {
	mu       sync.Mutex
	ch       chan time.Time
	deadline time.Time
	fired    bool
	stopped  bool
}

func (t *fakeTimer) C() <-chan time.Time {
	return t.ch
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}
