// Package encode implements the encoder and muxer: per-stream codec
// contexts feeding one interleaved-writer output file. Each frame is sent
// once and the encoder is then drained until it reports EAGAIN or EOF;
// a send that itself returns EAGAIN is not retried.
package encode

import (
	"errors"
	"fmt"

	astiav "github.com/asticode/go-astiav"
)

// Params describes the stream this encoder produces.
type Params struct {
	Width, Height int
	FPS           int
	SampleRate    int
	ChannelLayout astiav.ChannelLayout
}

// ConfigFunc customizes a codec context beyond this package's defaults,
// e.g. to set a CRF/quality option a particular encoder wants.
type ConfigFunc func(cc *astiav.CodecContext)

// Encoder wraps one stream's codec context plus an optional hardware
// frames pool for VAAPI video encoding.
type Encoder struct {
	cc          *astiav.CodecContext
	hwFramesCtx *astiav.HardwareFramesContext
}

// hwFramePoolSize is the number of buffered frames kept in a VAAPI hardware
// frames pool: one beyond the encoder's own internal reference frame, plus
// one for the in-flight render-to-encode transfer.
const hwFramePoolSize = 4

// NewEncoder opens codec with a default configuration derived from p
// (video: NV12/VAAPI, bitrate w*h*fps; audio: context sample rate/layout,
// 320kbit/s), then applies cfg if non-nil.
func NewEncoder(p Params, codec *astiav.Codec, hardware bool, globalHeader bool, cfg ConfigFunc) (*Encoder, error) {
	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return nil, errors.New("encode: AllocCodecContext: nil")
	}

	e := &Encoder{cc: cc}

	switch codec.MediaType() {
	case astiav.MediaTypeVideo:
		cc.SetWidth(p.Width)
		cc.SetHeight(p.Height)
		cc.SetTimeBase(astiav.NewRational(1, p.FPS))
		cc.SetFramerate(astiav.NewRational(p.FPS, 1))
		cc.SetSampleAspectRatio(astiav.NewRational(1, 1))
		cc.SetBitRate(int64(float64(p.Width) * float64(p.Height) * float64(p.FPS)))
		cc.SetMaxBFrames(0)
		if hardware {
			hwCtx, err := astiav.AllocHardwareDeviceContext(astiav.HardwareDeviceTypeVaapi)
			if err != nil {
				cc.Free()
				return nil, fmt.Errorf("encode: AllocHardwareDeviceContext(vaapi): %w", err)
			}
			framesCtx, err := astiav.AllocHardwareFramesContext(hwCtx)
			if err != nil {
				cc.Free()
				return nil, fmt.Errorf("encode: AllocHardwareFramesContext: %w", err)
			}
			framesCtx.SetWidth(p.Width)
			framesCtx.SetHeight(p.Height)
			framesCtx.SetSoftwarePixelFormat(astiav.PixelFormatNv12)
			framesCtx.SetPixelFormat(astiav.PixelFormatVaapi)
			framesCtx.SetInitialPoolSize(hwFramePoolSize)
			if err := framesCtx.Initialize(); err != nil {
				cc.Free()
				return nil, fmt.Errorf("encode: hw frames context Initialize: %w", err)
			}
			cc.SetHardwareFramesContext(framesCtx)
			cc.SetPixelFormat(astiav.PixelFormatVaapi)
			e.hwFramesCtx = framesCtx
		} else {
			cc.SetPixelFormat(astiav.PixelFormatNv12)
		}
	case astiav.MediaTypeAudio:
		sr := p.SampleRate
		if sr <= 0 {
			sr = 48000
		}
		cc.SetSampleRate(sr)
		cc.SetTimeBase(astiav.NewRational(1, sr))
		cc.SetChannelLayout(p.ChannelLayout)
		cc.SetBitRate(320000)
		if sfs := codec.SampleFormats(); len(sfs) > 0 {
			cc.SetSampleFormat(sfs[0])
		}
	}

	if globalHeader {
		cc.SetFlags(cc.Flags() | astiav.CodecContextFlagGlobalHeader)
	}
	if cfg != nil {
		cfg(cc)
	}

	if err := cc.Open(codec, nil); err != nil {
		e.Close()
		return nil, fmt.Errorf("encode: Open: %w", err)
	}
	return e, nil
}

// SubmitFrame sends a frame to the encoder. Pass nil to begin draining at
// end of stream.
func (e *Encoder) SubmitFrame(f *astiav.Frame) error {
	if err := e.cc.SendFrame(f); err != nil && !errors.Is(err, astiav.ErrEagain) {
		return fmt.Errorf("encode: SendFrame: %w", err)
	}
	return nil
}

// ReceivePacket fills pkt with the next encoded packet and returns nil, or
// returns astiav.ErrEagain if the encoder needs another frame, or
// astiav.ErrEof once fully drained after a nil SubmitFrame.
func (e *Encoder) ReceivePacket(pkt *astiav.Packet) error {
	return e.cc.ReceivePacket(pkt)
}

// TimeBase returns the encoder's stream time base, for packet rescaling.
func (e *Encoder) TimeBase() astiav.Rational { return e.cc.TimeBase() }

// ToCodecParameters copies this encoder's negotiated parameters into dst,
// for registering the output stream.
func (e *Encoder) ToCodecParameters(dst *astiav.CodecParameters) error {
	return e.cc.ToCodecParameters(dst)
}

// Close releases the codec context and hardware frames pool.
func (e *Encoder) Close() {
	if e.hwFramesCtx != nil {
		e.hwFramesCtx.Free()
		e.hwFramesCtx = nil
	}
	if e.cc != nil {
		e.cc.Free()
		e.cc = nil
	}
}
