// Package decode implements the pull-model decoder: packets are only
// pulled from a demuxer's channel when the codec reports it needs one,
// and seek markers trigger a codec flush rather than being handed back to
// the caller.
package decode

import (
	"errors"
	"fmt"

	astiav "github.com/asticode/go-astiav"

	"sve2/internal/clock"
	"sve2/internal/demux"
	"sve2/internal/ringchan"
)

// Result classifies the outcome of a Decode call.
type Result int

const (
	ResultSuccess Result = iota
	ResultTimeout
	ResultEOF
	ResultError
)

// Decoder pulls packets from a demuxer's per-stream channel and feeds a
// codec context, implementing the send/receive loop FFmpeg's decode API
// requires.
type Decoder struct {
	cc       *astiav.CodecContext
	ch       *ringchan.Channel[demux.PacketMsg]
	hwDevice *astiav.HardwareDeviceContext

	eof     bool
	errored bool
}

// New opens a decoder for stream.AbsoluteIndex in fc. When hardware is
// true, a VAAPI hardware device context is attached and the codec's
// pixel-format negotiation prefers the matching hardware format.
func New(fc *astiav.FormatContext, stream demux.Selected, hardware bool) (*Decoder, error) {
	streams := fc.Streams()
	if stream.AbsoluteIndex < 0 || stream.AbsoluteIndex >= len(streams) {
		return nil, fmt.Errorf("decode: stream index %d out of range", stream.AbsoluteIndex)
	}
	par := streams[stream.AbsoluteIndex].CodecParameters()

	dec := astiav.FindDecoder(par.CodecID())
	if dec == nil {
		return nil, fmt.Errorf("decode: FindDecoder(%s): no decoder", par.CodecID())
	}
	cc := astiav.AllocCodecContext(dec)
	if cc == nil {
		return nil, errors.New("decode: AllocCodecContext: nil")
	}
	if err := par.ToCodecContext(cc); err != nil {
		cc.Free()
		return nil, fmt.Errorf("decode: ToCodecContext: %w", err)
	}

	d := &Decoder{cc: cc, ch: stream.Channel}

	if hardware && par.MediaType() == astiav.MediaTypeVideo {
		hwDevice, err := astiav.AllocHardwareDeviceContext(astiav.HardwareDeviceTypeVaapi)
		if err != nil {
			cc.Free()
			return nil, fmt.Errorf("decode: AllocHardwareDeviceContext(vaapi): %w", err)
		}
		cc.SetHardwareDeviceContext(hwDevice)
		d.hwDevice = hwDevice
	}

	if err := cc.Open(dec, nil); err != nil {
		d.Close()
		return nil, fmt.Errorf("decode: Open: %w", err)
	}

	return d, nil
}

// Decode fills out with the next decoded frame, pulling packets from the
// demuxer channel as the codec requires them. A seek marker observed on
// the channel triggers a flush and is never surfaced to the caller.
func (d *Decoder) Decode(out *astiav.Frame, deadline clock.Deadline) (Result, error) {
	for {
		err := d.cc.ReceiveFrame(out)
		if err == nil {
			return ResultSuccess, nil
		}
		if !errors.Is(err, astiav.ErrEagain) && !errors.Is(err, astiav.ErrEof) {
			return ResultError, err
		}
		if d.errored {
			return ResultError, errors.New("decode: upstream demuxer error")
		}
		if d.eof {
			return ResultEOF, nil
		}

		msg, ok := d.ch.Recv(deadline)
		if !ok {
			return ResultTimeout, nil
		}

		var sendErr error
		msg.Switch(
			func(p *astiav.Packet) {
				sendErr = d.cc.SendPacket(p)
				p.Unref()
				p.Free()
			},
			func() {
				d.cc.FlushBuffers()
			},
			func() {
				d.eof = true
				sendErr = d.cc.SendPacket(nil)
			},
			func() {
				d.errored = true
			},
		)
		if sendErr != nil && !errors.Is(sendErr, astiav.ErrEagain) {
			return ResultError, sendErr
		}
	}
}

// WaitForSeek discards packets until it observes a seek marker, flushing
// the codec and clearing any prior EOF/error state, then returns true. It
// returns false if a terminal marker arrives first or the deadline
// expires.
func (d *Decoder) WaitForSeek(deadline clock.Deadline) bool {
	for {
		msg, ok := d.ch.Recv(deadline)
		if !ok {
			return false
		}

		sawSeek := false
		terminal := false
		msg.Switch(
			func(p *astiav.Packet) {
				p.Unref()
				p.Free()
			},
			func() { sawSeek = true },
			func() { d.eof = true; terminal = true },
			func() { d.errored = true; terminal = true },
		)
		if sawSeek {
			d.cc.FlushBuffers()
			d.eof = false
			d.errored = false
			return true
		}
		if terminal {
			return false
		}
	}
}

// SWFormat returns the codec context's pixel format. For a software
// decoder that is the format frames arrive in; for a hardware decoder it
// is the codec's own (hardware surface) format, not the surface's
// underlying software format.
func (d *Decoder) SWFormat() astiav.PixelFormat {
	return d.cc.PixelFormat()
}

// Close releases the codec context and any hardware device it owns.
func (d *Decoder) Close() {
	if d.cc != nil {
		d.cc.Free()
		d.cc = nil
	}
	if d.hwDevice != nil {
		d.hwDevice.Free()
		d.hwDevice = nil
	}
}
