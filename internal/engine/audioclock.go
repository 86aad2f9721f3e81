package engine

import (
	"io"
	"log"
	"sync"

	astiav "github.com/asticode/go-astiav"

	"sve2/internal/clock"
	"sve2/internal/decode"
)

// byteFifo is the preview audio path's producer/consumer queue between
// unmap_audio (the caller thread) and the device callback goroutine that
// feeds the oto pipe. It is the Go-native stand-in for the original's
// AVAudioFifo: unbounded, growable, and read in full on every drain since
// Go has no direct binding for libavutil's audio FIFO in this pack.
type byteFifo struct {
	mu     sync.Mutex
	cond   *clock.Cond
	buf    []byte
	closed bool
}

func newByteFifo() *byteFifo {
	f := &byteFifo{}
	f.cond = clock.NewCond(&f.mu)
	return f
}

func (f *byteFifo) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buf)
}

func (f *byteFifo) push(b []byte) {
	if len(b) == 0 {
		return
	}
	f.mu.Lock()
	f.buf = append(f.buf, b...)
	f.mu.Unlock()
	f.cond.Signal()
}

func (f *byteFifo) reset() {
	f.mu.Lock()
	f.buf = f.buf[:0]
	f.mu.Unlock()
}

func (f *byteFifo) close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.cond.Broadcast()
}

// feed is the device-callback stand-in: it drains whatever is queued into
// w (the oto pipe), blocking when the FIFO is empty. Writing less than
// requested is not possible through an io.Pipe (every Write blocks until
// fully read), so underrun silence is left to oto's own buffering rather
// than synthesized here.
func (f *byteFifo) feed(w io.Writer) {
	for {
		f.mu.Lock()
		for len(f.buf) == 0 && !f.closed {
			f.cond.WaitUntil(clock.DeadlineInfinite)
		}
		if len(f.buf) == 0 && f.closed {
			f.mu.Unlock()
			return
		}
		chunk := f.buf
		f.buf = nil
		f.mu.Unlock()

		if _, err := w.Write(chunk); err != nil {
			return
		}
	}
}

// SetAudioTimer rebases the audio clock to t and clears the
// since-seek sample counter; per the decided flush-on-seek behavior, the
// preview FIFO is also emptied so stale pre-seek audio is never played
// against the new timeline.
func (e *Engine) SetAudioTimer(t int64) {
	e.audioMu.Lock()
	e.audioTimerOffset = t
	e.samplesSinceSeek = 0
	e.audioMu.Unlock()

	if e.fifo != nil {
		e.fifo.reset()
	}
}

// AudioTimer returns the current playback time in nanoseconds: in preview
// mode, samples already queued to the FIFO but not yet consumed by the
// device are future audio and are subtracted out; in render mode the
// clock is exactly the submitted sample count.
func (e *Engine) AudioTimer() int64 {
	e.audioMu.Lock()
	defer e.audioMu.Unlock()

	buffered := int64(0)
	if e.mode == ModePreview && e.fifo != nil {
		buffered = int64(e.fifo.len()) / int64(e.bytesPerFrame)
	}
	return e.audioTimerOffset + (e.samplesSinceSeek-buffered)*decode.NSPerSec/int64(e.params.SampleRate)
}

// MapAudio exposes a buffer for the caller to fill with up to count
// sample-frames of audio before calling UnmapAudio. In preview it is the
// fixed staging buffer sized to the FIFO's buffered-ahead threshold; in
// render it is a freshly allocated encoder frame sized to what remains of
// this video frame's audio budget. ok is false if there is no room (the
// preview FIFO is already at its threshold, or render's per-frame budget
// is already met).
func (e *Engine) MapAudio() (buf []byte, count int, ok bool) {
	e.audioMu.Lock()
	defer e.audioMu.Unlock()

	if e.mode == ModeRender {
		remaining := e.audioFrameTarget - e.totalSamples
		if remaining <= 0 {
			return nil, 0, false
		}
		framesThisFrame := int(remaining)
		frame := astiav.AllocFrame()
		frame.SetSampleFormat(e.params.SampleFormat)
		frame.SetChannelLayout(e.params.ChannelLayout)
		frame.SetSampleRate(e.params.SampleRate)
		frame.SetNbSamples(framesThisFrame)
		if err := frame.AllocBuffer(0); err != nil {
			frame.Free()
			return nil, 0, false
		}
		data, err := frame.Data().Bytes(0)
		if err != nil {
			frame.Free()
			return nil, 0, false
		}
		e.pendingAudio = frame
		return data, framesThisFrame, true
	}

	thresholdFrames := len(e.staging) / e.bytesPerFrame
	freeFrames := thresholdFrames - e.fifo.len()/e.bytesPerFrame
	if freeFrames <= 0 {
		return nil, 0, false
	}
	return e.staging, freeFrames, true
}

// UnmapAudio commits n sample-frames written into the buffer MapAudio
// returned: in preview it queues them to the FIFO; in render it finalizes
// and submits the pending encoder frame. Either way the three sample
// counters advance by n.
func (e *Engine) UnmapAudio(n int) {
	e.audioMu.Lock()

	var (
		pendingFrame *astiav.Frame
		fifoChunk    []byte
	)
	if e.mode == ModeRender {
		if e.pendingAudio != nil {
			e.pendingAudio.SetNbSamples(n)
			e.pendingAudio.SetPts(e.totalSamples)
			pendingFrame = e.pendingAudio
			e.pendingAudio = nil
		}
	} else {
		nBytes := n * e.bytesPerFrame
		if nBytes > len(e.staging) {
			nBytes = len(e.staging)
		}
		fifoChunk = append([]byte(nil), e.staging[:nBytes]...)
	}

	e.samplesThisFrame += int64(n)
	e.samplesSinceSeek += int64(n)
	e.totalSamples += int64(n)
	e.audioMu.Unlock()

	if pendingFrame != nil {
		if err := e.muxer.Submit(pendingFrame, e.audioStreamIdx); err != nil {
			log.Printf("engine: UnmapAudio: Submit: %v", err)
		}
		pendingFrame.Free()
	}
	if fifoChunk != nil {
		e.fifo.push(fifoChunk)
	}
}
