package ringchan

import (
	"testing"
	"time"

	"sve2/internal/clock"
)

func TestFIFOOrder(t *testing.T) {
	c := New[int](4, -1)
	for i := 0; i < 4; i++ {
		if !c.Send(i, clock.DeadlineNow) {
			t.Fatalf("send %d failed", i)
		}
	}
	for i := 0; i < 4; i++ {
		v, ok := c.Recv(clock.DeadlineNow)
		if !ok || v != i {
			t.Fatalf("recv %d: got %d,%v", i, v, ok)
		}
	}
}

func TestBoundedSendDeadlineNow(t *testing.T) {
	c := New[int](1, -1)
	if !c.Send(1, clock.DeadlineNow) {
		t.Fatal("first send should succeed")
	}
	if c.Send(2, clock.DeadlineNow) {
		t.Fatal("second send should fail: channel full, deadline=now")
	}
}

func TestRecvDeadlineNowEmpty(t *testing.T) {
	c := New[int](1, -1)
	if _, ok := c.Recv(clock.DeadlineNow); ok {
		t.Fatal("recv on empty channel with deadline=now should fail")
	}
}

func TestGrowAllowsOverflow(t *testing.T) {
	c := New[int](1, 1.5)
	for i := 0; i < 10; i++ {
		if !c.Send(i, clock.DeadlineNow) {
			t.Fatalf("send %d should succeed: channel can grow", i)
		}
	}
	if c.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", c.Len())
	}
	for i := 0; i < 10; i++ {
		v, ok := c.Recv(clock.DeadlineNow)
		if !ok || v != i {
			t.Fatalf("recv %d: got %d,%v", i, v, ok)
		}
	}
}

func TestCloseDrainsThenFails(t *testing.T) {
	c := New[int](4, -1)
	c.Send(1, clock.DeadlineNow)
	c.Send(2, clock.DeadlineNow)
	c.Close()

	v, ok := c.Recv(clock.DeadlineInfinite)
	if !ok || v != 1 {
		t.Fatalf("first recv after close: got %d,%v", v, ok)
	}
	v, ok = c.Recv(clock.DeadlineInfinite)
	if !ok || v != 2 {
		t.Fatalf("second recv after close: got %d,%v", v, ok)
	}
	if _, ok := c.Recv(clock.DeadlineInfinite); ok {
		t.Fatal("recv after drain should fail")
	}
}

func TestCloseWakesBlockedSend(t *testing.T) {
	c := New[int](1, -1)
	c.Send(1, clock.DeadlineNow)

	done := make(chan bool, 1)
	go func() {
		done <- c.Send(2, clock.DeadlineInfinite)
	}()

	time.Sleep(20 * time.Millisecond)
	c.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("send should fail once channel is closed")
		}
	case <-time.After(time.Second):
		t.Fatal("blocked send was not woken by Close")
	}
}

func TestCrossGoroutineHandoff(t *testing.T) {
	c := New[int](2, -1)
	const n = 100
	go func() {
		for i := 0; i < n; i++ {
			c.Send(i, clock.DeadlineInfinite)
		}
	}()
	for i := 0; i < n; i++ {
		v, ok := c.Recv(clock.DeadlineInfinite)
		if !ok || v != i {
			t.Fatalf("recv %d: got %d,%v", i, v, ok)
		}
	}
}
