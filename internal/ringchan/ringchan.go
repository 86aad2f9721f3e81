// Package ringchan implements a bounded multi-producer multi-consumer
// channel backed by a growable ring buffer, with deadline-based send and
// receive instead of the unconditional blocking of a native Go channel.
package ringchan

import (
	"sync"

	"sve2/internal/clock"
)

// Channel is a generic bounded MPMC ring channel.
type Channel[T any] struct {
	mu         sync.Mutex
	notEmpty   *clock.Cond
	notFull    *clock.Cond
	buf        []T
	first      int
	count      int
	growFactor float64
	closed     bool
}

// New creates a channel with the given initial capacity. growFactor <= 0
// makes the channel strictly bounded at initialCap; otherwise, on overflow
// the backing array grows to max(count+1, cap*growFactor).
func New[T any](initialCap int, growFactor float64) *Channel[T] {
	if initialCap < 1 {
		initialCap = 1
	}
	c := &Channel[T]{
		buf:        make([]T, initialCap),
		growFactor: growFactor,
	}
	c.notEmpty = clock.NewCond(&c.mu)
	c.notFull = clock.NewCond(&c.mu)
	return c
}

func (c *Channel[T]) canGrow() bool { return c.growFactor > 0 }

// grow expands the backing array to hold at least one more element,
// rotating the live window back to index 0.
func (c *Channel[T]) grow() {
	newCap := int(float64(len(c.buf)) * c.growFactor)
	if newCap <= len(c.buf) {
		newCap = len(c.buf) + 1
	}
	nb := make([]T, newCap)
	for i := 0; i < c.count; i++ {
		nb[i] = c.buf[(c.first+i)%len(c.buf)]
	}
	c.buf = nb
	c.first = 0
}

// Send enqueues v, waiting until there is room or the deadline expires.
// Returns false if the channel was or became closed, or the deadline
// expired before room was available.
func (c *Channel[T]) Send(v T, deadline clock.Deadline) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.count == len(c.buf) && !c.closed {
		if c.canGrow() {
			c.grow()
			break
		}
		if c.notFull.WaitUntil(deadline) {
			if c.count == len(c.buf) {
				return false
			}
			break
		}
	}
	if c.closed {
		return false
	}

	idx := (c.first + c.count) % len(c.buf)
	c.buf[idx] = v
	c.count++
	c.notEmpty.Signal()
	return true
}

// Recv dequeues the oldest item, waiting until one is available or the
// deadline expires. ok is false both when the deadline expires and when
// the channel is closed and drained.
func (c *Channel[T]) Recv(deadline clock.Deadline) (v T, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.count == 0 {
		if c.closed {
			return v, false
		}
		if c.notEmpty.WaitUntil(deadline) {
			if c.count == 0 {
				return v, false
			}
			break
		}
	}

	v = c.buf[c.first]
	var zero T
	c.buf[c.first] = zero
	c.first = (c.first + 1) % len(c.buf)
	c.count--
	c.notFull.Signal()
	return v, true
}

// Len returns the number of items currently queued.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Close marks the channel closed and wakes every waiter. Idempotent.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.notEmpty.Broadcast()
	c.notFull.Broadcast()
}
