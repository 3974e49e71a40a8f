// Package alarm provides one-shot wake-ups at wall-clock instants.
package alarm

import (
	"sync"
	"time"
)

// Clock fires callbacks at wall-clock times. Go timers measure monotonic
// time, which stops while the host is suspended, so each expiry re-checks
// the wall clock and re-arms for the remainder.
type Clock struct {
	now func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

func (c *Clock) ScheduleOneShot(at time.Time, fire func()) (cancel func() bool) {
	a := &oneShot{clock: c, at: at.Round(0), fire: fire}
	a.mu.Lock()
	a.arm()
	a.mu.Unlock()
	return a.cancel
}

type oneShot struct {
	clock *Clock
	at    time.Time
	fire  func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// arm must be called with mu held.
func (a *oneShot) arm() {
	d := a.at.Sub(a.clock.now().Round(0))
	if d < 0 {
		d = 0
	}
	a.timer = time.AfterFunc(d, a.expire)
}

func (a *oneShot) expire() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	if a.clock.now().Round(0).Before(a.at) {
		a.arm()
		a.mu.Unlock()
		return
	}
	a.stopped = true
	a.mu.Unlock()

	a.fire()
}

func (a *oneShot) cancel() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return false
	}
	a.stopped = true
	a.timer.Stop()
	return true
}
