// Package clock provides the monotonic time base and deadline encoding
// shared by the bounded channel, demuxer, and decoder.
package clock

import (
	"math"
	"time"

	"golang.org/x/sys/unix"
)

// NSPerSec is the number of nanoseconds in a second.
const NSPerSec int64 = 1_000_000_000

// Now returns the current monotonic time in nanoseconds.
func Now() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return time.Now().UnixNano()
	}
	return ts.Nano()
}

// Deadline is an absolute monotonic nanosecond timestamp, or one of the
// two sentinels below.
type Deadline int64

const (
	// DeadlineNow means "don't block, just poll".
	DeadlineNow Deadline = 0
	// DeadlineInfinite means "block until satisfied".
	DeadlineInfinite Deadline = math.MaxInt64
)

// After converts a relative duration from the current time into a Deadline.
func After(d time.Duration) Deadline {
	return Deadline(Now() + d.Nanoseconds())
}

// Expired reports whether the deadline has passed as of now.
func (d Deadline) Expired(now int64) bool {
	if d == DeadlineInfinite {
		return false
	}
	return now >= int64(d)
}

// IsNow reports the non-blocking poll sentinel.
func (d Deadline) IsNow() bool { return d == DeadlineNow }

// IsInfinite reports the block-forever sentinel.
func (d Deadline) IsInfinite() bool { return d == DeadlineInfinite }
