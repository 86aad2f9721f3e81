package demux

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	astiav "github.com/asticode/go-astiav"

	"sve2/internal/clock"
	"sve2/internal/ringchan"
)

// fakeContainer is a Container that serves packets from a fixed script
// instead of a real demuxed file, so the worker's state machine can be
// exercised without FFmpeg I/O.
type fakeContainer struct {
	mu       sync.Mutex
	streams  []int // stream index to stamp on each scripted packet, in order
	cursor   int
	seekErr  error
	seekCall func(streamIndex int, ts int64, flags astiav.SeekFlags)
	eofAfter bool
}

func (f *fakeContainer) ReadFrame(pkt *astiav.Packet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cursor >= len(f.streams) {
		return io.EOF
	}
	si := f.streams[f.cursor]
	f.cursor++
	pkt.SetStreamIndex(si)
	return nil
}

func (f *fakeContainer) SeekFrame(streamIndex int, ts int64, flags astiav.SeekFlags) error {
	if f.seekCall != nil {
		f.seekCall(streamIndex, ts, flags)
	}
	return f.seekErr
}

func waitRecv(t *testing.T, ch *ringchan.Channel[PacketMsg], timeout time.Duration) PacketMsg {
	t.Helper()
	v, ok := ch.Recv(clock.After(timeout))
	if !ok {
		t.Fatal("timed out waiting for message")
	}
	return v
}

func TestEOFIsStickyAndBroadcast(t *testing.T) {
	fc := &fakeContainer{streams: []int{0}}
	ch := ringchan.New[PacketMsg](8, -1)
	w := Start(fc, []Selected{{AbsoluteIndex: 0, Channel: ch}}, 4)
	defer w.Exit()

	msg := waitRecv(t, ch, time.Second)
	if !msg.IsRegular() {
		t.Fatal("expected the one scripted packet first")
	}
	msg = waitRecv(t, ch, time.Second)
	if !msg.IsTerminal() {
		t.Fatal("expected a terminal marker after the container is exhausted")
	}

	if err := w.Join(); err != nil {
		t.Fatalf("Join() = %v, want nil on clean EOF", err)
	}
}

func TestReadErrorIsSticky(t *testing.T) {
	boom := errors.New("boom")
	fc := &errContainer{err: boom}
	ch := ringchan.New[PacketMsg](8, -1)
	w := Start(fc, []Selected{{AbsoluteIndex: 0, Channel: ch}}, 4)

	msg := waitRecv(t, ch, time.Second)
	if !msg.IsTerminal() {
		t.Fatal("expected an error terminal marker")
	}
	if err := w.Join(); !errors.Is(err, boom) {
		t.Fatalf("Join() = %v, want %v", err, boom)
	}
}

type errContainer struct{ err error }

func (e *errContainer) ReadFrame(*astiav.Packet) error { return e.err }
func (e *errContainer) SeekFrame(int, int64, astiav.SeekFlags) error {
	return nil
}

func TestSeekEmitsExactlyOneMarkerPerStream(t *testing.T) {
	fc := &fakeContainer{streams: []int{0, 1, 0, 1}}
	chV := ringchan.New[PacketMsg](8, -1)
	chA := ringchan.New[PacketMsg](8, -1)
	w := Start(fc, []Selected{
		{AbsoluteIndex: 0, Channel: chV},
		{AbsoluteIndex: 1, Channel: chA},
	}, 1)
	defer w.Exit()

	// drain the first regular packet on each stream so we know the worker
	// is running before issuing the seek.
	waitRecv(t, chV, time.Second)
	waitRecv(t, chA, time.Second)

	w.Seek(0, 12345, astiav.NewSeekFlags(astiav.SeekFlagBackward))

	mV := waitRecv(t, chV, time.Second)
	if !mV.IsSeekMarker() {
		t.Fatal("video channel should see a seek marker")
	}
	mA := waitRecv(t, chA, time.Second)
	if !mA.IsSeekMarker() {
		t.Fatal("audio channel should see a seek marker")
	}
}

func TestLatePacketBypassesWatermark(t *testing.T) {
	fc := &fakeContainer{streams: []int{0, 0, 0}}
	ch := ringchan.New[PacketMsg](8, -1)
	// bufferedPackets=0 means a held packet is never dispatchable on its own.
	w := Start(fc, []Selected{{AbsoluteIndex: 0, Channel: ch}}, 0)
	defer w.Exit()

	time.Sleep(30 * time.Millisecond)
	if ch.Len() != 0 {
		t.Fatalf("expected no dispatch without LatePacket, got Len()=%d", ch.Len())
	}

	w.LatePacket()
	msg := waitRecv(t, ch, time.Second)
	if !msg.IsRegular() {
		t.Fatal("expected the held packet to be dispatched after LatePacket")
	}
}
