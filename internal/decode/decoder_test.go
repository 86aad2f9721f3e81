package decode

import (
	"testing"

	astiav "github.com/asticode/go-astiav"

	"sve2/internal/clock"
	"sve2/internal/demux"
	"sve2/internal/ringchan"
)

// openTestDecoder opens a real rawvideo codec context so Decode/WaitForSeek
// exercise their actual SendPacket/ReceiveFrame/FlushBuffers calls; these
// tests care about the sticky-state and flush-on-seek control flow, not
// about decoding real pixel data.
func openTestDecoder(t *testing.T) (*Decoder, *ringchan.Channel[demux.PacketMsg]) {
	t.Helper()
	codec := astiav.FindDecoder(astiav.CodecIDRawvideo)
	if codec == nil {
		t.Skip("rawvideo decoder not available in this FFmpeg build")
	}
	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		t.Fatal("AllocCodecContext: nil")
	}
	cc.SetWidth(16)
	cc.SetHeight(16)
	cc.SetPixelFormat(astiav.PixelFormatYuv420P)
	cc.SetTimeBase(astiav.NewRational(1, 25))
	if err := cc.Open(codec, nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	ch := ringchan.New[demux.PacketMsg](16, -1)
	return &Decoder{cc: cc, ch: ch}, ch
}

func TestDecodeStickyEOF(t *testing.T) {
	d, ch := openTestDecoder(t)
	defer d.Close()

	ch.Send(demux.EOF(), clock.DeadlineInfinite)

	frame := astiav.AllocFrame()
	defer frame.Free()

	res, err := d.Decode(frame, clock.DeadlineInfinite)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if res != ResultEOF {
		t.Fatalf("res = %v, want ResultEOF", res)
	}

	// Sticky: a second call observes EOF again without blocking on the
	// (now empty) channel.
	res, err = d.Decode(frame, clock.DeadlineNow)
	if err != nil || res != ResultEOF {
		t.Fatalf("sticky Decode: res=%v err=%v, want ResultEOF/nil", res, err)
	}
}

func TestDecodeStickyError(t *testing.T) {
	d, ch := openTestDecoder(t)
	defer d.Close()

	ch.Send(demux.Err(), clock.DeadlineInfinite)

	frame := astiav.AllocFrame()
	defer frame.Free()

	res, err := d.Decode(frame, clock.DeadlineInfinite)
	if err == nil {
		t.Fatal("Decode after Err() marker returned nil error")
	}
	if res != ResultError {
		t.Fatalf("res = %v, want ResultError", res)
	}

	// Sticky: the error persists without re-reading the channel.
	res, err = d.Decode(frame, clock.DeadlineNow)
	if err == nil || res != ResultError {
		t.Fatalf("sticky Decode: res=%v err=%v, want ResultError/non-nil", res, err)
	}
}

func TestWaitForSeekClearsStickyEOF(t *testing.T) {
	d, ch := openTestDecoder(t)
	defer d.Close()

	ch.Send(demux.EOF(), clock.DeadlineInfinite)
	frame := astiav.AllocFrame()
	defer frame.Free()
	if res, err := d.Decode(frame, clock.DeadlineInfinite); err != nil || res != ResultEOF {
		t.Fatalf("precondition: Decode = %v/%v, want ResultEOF/nil", res, err)
	}

	ch.Send(demux.SeekMarker(), clock.DeadlineInfinite)
	if !d.WaitForSeek(clock.DeadlineInfinite) {
		t.Fatal("WaitForSeek returned false on a channel carrying a seek marker")
	}
	if d.eof {
		t.Error("WaitForSeek did not clear sticky eof state")
	}
	if d.errored {
		t.Error("WaitForSeek left errored set")
	}
}

func TestWaitForSeekDiscardsPacketsUntilMarker(t *testing.T) {
	d, ch := openTestDecoder(t)
	defer d.Close()

	ch.Send(demux.Regular(astiav.AllocPacket()), clock.DeadlineInfinite)
	ch.Send(demux.Regular(astiav.AllocPacket()), clock.DeadlineInfinite)
	ch.Send(demux.SeekMarker(), clock.DeadlineInfinite)

	if !d.WaitForSeek(clock.DeadlineInfinite) {
		t.Fatal("WaitForSeek returned false")
	}
}

func TestWaitForSeekReturnsFalseOnTerminalBeforeMarker(t *testing.T) {
	d, ch := openTestDecoder(t)
	defer d.Close()

	ch.Send(demux.EOF(), clock.DeadlineInfinite)

	if d.WaitForSeek(clock.DeadlineInfinite) {
		t.Fatal("WaitForSeek returned true when a terminal marker preceded any seek marker")
	}
	if !d.eof {
		t.Error("WaitForSeek should still record the terminal eof it observed")
	}
}
