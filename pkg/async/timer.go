package async

import (
	"sync"
	"time"
)

// Timer is a cancelable wait for a duration, wrapping time.AfterFunc with
// a Cancel that is safe to call even after the timer has already fired
// (mirroring the steady_timer cancel semantics the response cache's expiry
// callbacks rely on).
type Timer struct {
	mu    sync.Mutex
	t     *time.Timer
	fired bool
}

// AfterFunc schedules fn to run after d elapses and returns a Timer that
// can cancel it beforehand.
func AfterFunc(d time.Duration, fn func()) *Timer {
	tm := &Timer{}
	tm.t = time.AfterFunc(d, func() {
		tm.mu.Lock()
		tm.fired = true
		tm.mu.Unlock()
		fn()
	})
	return tm
}

// Cancel stops the timer if it hasn't fired yet. Returns true if the
// cancellation prevented fn from running.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired {
		return false
	}
	return t.t.Stop()
}

// Reset reschedules the timer to fire after d from now, as if freshly
// created.
func (t *Timer) Reset(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fired = false
	t.t.Reset(d)
}
