// Package demux runs one container's packet-reading loop on a dedicated
// goroutine, fanning demuxed packets out to per-stream bounded channels.
package demux

import (
	"errors"
	"io"
	"time"

	astiav "github.com/asticode/go-astiav"

	"sve2/internal/clock"
	"sve2/internal/ringchan"
)

// Selected names one stream this worker delivers packets for.
type Selected struct {
	AbsoluteIndex int
	Channel       *ringchan.Channel[PacketMsg]
}

// Container is the subset of *astiav.FormatContext the worker needs. It
// exists so tests can drive the state machine with a fake container
// instead of a real demuxed file.
type Container interface {
	ReadFrame(pkt *astiav.Packet) error
	SeekFrame(streamIndex int, timestamp int64, flags astiav.SeekFlags) error
}

type cmdKind int

const (
	cmdExit cmdKind = iota
	cmdLatePacket
	cmdSeek
)

type command struct {
	kind      cmdKind
	seekAbs   int
	seekTS    int64
	seekFlags astiav.SeekFlags
}

// backoff is how long the worker sleeps between eligibility checks while
// holding a packet it cannot yet dispatch because its target channel is
// at its buffered-packet watermark.
const backoff = 10 * time.Millisecond

// Worker owns the demuxing goroutine for one container.
type Worker struct {
	fc              Container
	selected        []Selected
	bufferedPackets int

	cmd  *ringchan.Channel[command]
	done chan struct{}
	err  error

	held          *astiav.Packet
	lateRequested bool
}

// Start launches the worker goroutine. fc must already have had
// FindStreamInfo called on it. bufferedPackets is the per-stream watermark
// below which a held packet is eligible for immediate dispatch.
func Start(fc Container, selected []Selected, bufferedPackets int) *Worker {
	w := &Worker{
		fc:              fc,
		selected:        selected,
		bufferedPackets: bufferedPackets,
		cmd:             ringchan.New[command](8, -1),
		done:            make(chan struct{}),
	}
	go w.run()
	return w
}

// Exit requests the worker terminate. The container is not closed; that
// stays with whoever opened it.
func (w *Worker) Exit() {
	w.cmd.Send(command{kind: cmdExit}, clock.DeadlineInfinite)
}

// LatePacket asks the worker to dispatch its currently held packet (if
// any) immediately, bypassing the per-stream buffered-packet watermark.
// Used when a consumer has stalled and needs to be unblocked.
func (w *Worker) LatePacket() {
	w.cmd.Send(command{kind: cmdLatePacket}, clock.DeadlineInfinite)
}

// Seek requests a container seek to ts (stream time base) on the stream at
// absoluteIndex. On success every selected stream's channel receives
// exactly one SeekMarker before the next regular packet.
func (w *Worker) Seek(absoluteIndex int, ts int64, flags astiav.SeekFlags) {
	w.cmd.Send(command{kind: cmdSeek, seekAbs: absoluteIndex, seekTS: ts, seekFlags: flags}, clock.DeadlineInfinite)
}

// Join blocks until the worker goroutine has exited and returns the
// terminal read error, if any (nil on a clean EOF or explicit Exit).
func (w *Worker) Join() error {
	<-w.done
	return w.err
}

func (w *Worker) findSelected(absoluteIndex int) *Selected {
	for i := range w.selected {
		if w.selected[i].AbsoluteIndex == absoluteIndex {
			return &w.selected[i]
		}
	}
	return nil
}

func (w *Worker) dropHeld() {
	if w.held != nil {
		w.held.Unref()
		w.held.Free()
		w.held = nil
	}
}

func (w *Worker) broadcastTerminal(msg PacketMsg) {
	for _, s := range w.selected {
		s.Channel.Send(msg, clock.DeadlineInfinite)
	}
}

func (w *Worker) handleSeek(c command) {
	if err := w.fc.SeekFrame(c.seekAbs, c.seekTS, c.seekFlags); err != nil {
		return
	}
	w.dropHeld()
	for _, s := range w.selected {
		s.Channel.Send(SeekMarker(), clock.DeadlineInfinite)
	}
}

// heldDispatchable reports whether the currently held packet may be
// pushed to its target channel right now.
func (w *Worker) heldDispatchable() bool {
	target := w.findSelected(w.held.StreamIndex())
	if target == nil {
		return true
	}
	return w.lateRequested || target.Channel.Len() < w.bufferedPackets
}

// dispatchHeld pushes the held packet if eligible, returning true if it
// cleared w.held (dispatched, or dropped because unselected).
func (w *Worker) dispatchHeld() bool {
	target := w.findSelected(w.held.StreamIndex())
	if target == nil {
		w.dropHeld()
		return true
	}
	if !(w.lateRequested || target.Channel.Len() < w.bufferedPackets) {
		return false
	}
	target.Channel.Send(Regular(w.held), clock.DeadlineInfinite)
	w.held = nil
	w.lateRequested = false
	return true
}

// drainCmds processes every command already queued (deadline applies only
// to the first Recv; subsequent ones are polled with DeadlineNow so a
// burst of commands does not each pay the backoff). Returns true if an
// exit command was processed.
func (w *Worker) drainCmds(first clock.Deadline) bool {
	deadline := first
	for {
		c, ok := w.cmd.Recv(deadline)
		if !ok {
			return false
		}
		switch c.kind {
		case cmdExit:
			return true
		case cmdLatePacket:
			w.lateRequested = true
		case cmdSeek:
			w.handleSeek(c)
		}
		deadline = clock.DeadlineNow
	}
}

func (w *Worker) run() {
	defer close(w.done)

	for {
		deadline := clock.DeadlineNow
		if w.held != nil && !w.heldDispatchable() {
			deadline = clock.After(backoff)
		}
		if w.drainCmds(deadline) {
			w.dropHeld()
			return
		}

		if w.held != nil {
			w.dispatchHeld()
			continue
		}

		pkt := astiav.AllocPacket()
		if err := w.fc.ReadFrame(pkt); err != nil {
			pkt.Free()
			if errors.Is(err, io.EOF) {
				w.broadcastTerminal(EOF())
			} else {
				w.err = err
				w.broadcastTerminal(Err())
			}
			return
		}

		if w.findSelected(pkt.StreamIndex()) == nil {
			pkt.Unref()
			pkt.Free()
			continue
		}
		w.held = pkt
	}
}
