package ringchan

import (
	"testing"

	"pgregory.net/rapid"

	"sve2/internal/clock"
)

// TestPrefixInvariant checks testable property 1: for any sequence of
// sends followed by one recv per accepted send, the recv order is exactly
// the order of the accepted sends. The test is single-threaded, so sends
// use a now deadline: a full strictly bounded channel rejects the value
// instead of blocking forever.
func TestPrefixInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initCap := rapid.IntRange(1, 8).Draw(t, "initCap")
		grow := rapid.SampledFrom([]float64{-1, 1.5, 2.0}).Draw(t, "grow")
		values := rapid.SliceOfN(rapid.Int(), 0, 64).Draw(t, "values")

		c := New[int](initCap, grow)
		sent := make([]int, 0, len(values))
		for _, v := range values {
			if c.Send(v, clock.DeadlineNow) {
				sent = append(sent, v)
			}
		}
		for _, want := range sent {
			got, ok := c.Recv(clock.DeadlineNow)
			if !ok {
				t.Fatalf("expected value %d, channel empty", want)
			}
			if got != want {
				t.Fatalf("FIFO violated: got %d, want %d", got, want)
			}
		}
		if _, ok := c.Recv(clock.DeadlineNow); ok {
			t.Fatal("channel should be empty after draining all sent values")
		}
	})
}

func TestLenNeverExceedsCapacityWhenBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initCap := rapid.IntRange(1, 8).Draw(t, "initCap")
		c := New[int](initCap, -1)
		n := rapid.IntRange(0, 32).Draw(t, "n")
		for i := 0; i < n; i++ {
			c.Send(i, clock.DeadlineNow)
			if c.Len() > initCap {
				t.Fatalf("Len() = %d exceeds strict bound %d", c.Len(), initCap)
			}
		}
	})
}
