package clock

import (
	"sync"
	"time"
)

// Cond is a sync.Cond variant whose Wait accepts a Deadline instead of
// blocking unconditionally. Callers must hold L when calling WaitUntil,
// exactly like sync.Cond.Wait.
type Cond struct {
	L sync.Locker
	c *sync.Cond

	// mu is not used by any Cond method; waiters synchronize on L.
	mu sync.Mutex
}

// NewCond returns a Cond backed by the given locker.
func NewCond(l sync.Locker) *Cond {
	return &Cond{L: l, c: sync.NewCond(l)}
}

// Signal wakes one waiter, per sync.Cond.Signal.
func (c *Cond) Signal() { c.c.Signal() }

// Broadcast wakes all waiters, per sync.Cond.Broadcast.
func (c *Cond) Broadcast() { c.c.Broadcast() }

// WaitUntil blocks until woken or the deadline passes. Returns true if it
// returned because the deadline expired rather than a wakeup. L must be
// held on entry and is held again on return, matching sync.Cond.Wait.
func (c *Cond) WaitUntil(deadline Deadline) (timedOut bool) {
	if deadline.IsNow() {
		return true
	}
	if deadline.IsInfinite() {
		c.c.Wait()
		return false
	}

	now := Now()
	if deadline.Expired(now) {
		return true
	}
	remaining := time.Duration(int64(deadline) - now)

	done := make(chan struct{})
	timer := time.AfterFunc(remaining, func() {
		close(done)
		// Wake every waiter on this condvar so our own goroutine re-checks
		// its predicate against the deadline and returns; spurious wakeups
		// for other waiters are harmless since Wait callers always loop on
		// a predicate.
		c.c.L.Lock()
		c.c.Broadcast()
		c.c.L.Unlock()
	})
	defer timer.Stop()

	c.c.Wait()

	select {
	case <-done:
		return true
	default:
		return false
	}
}
