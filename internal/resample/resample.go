// Package resample wraps libswresample for converting decoded audio
// frames into the packed PCM format the audio clock and preview FIFO
// expect.
package resample

import (
	"errors"
	"fmt"

	astiav "github.com/asticode/go-astiav"
)

// Params describes one side (input or output) of a conversion.
type Params struct {
	SampleRate    int
	ChannelLayout astiav.ChannelLayout
	SampleFormat  astiav.SampleFormat
}

// Resampler wraps a *astiav.SoftwareResampleContext configured for one
// fixed input/output pair, generalized from the teacher's single
// decoder-to-AAC-encoder conversion in its recorder path.
type Resampler struct {
	swr *astiav.SoftwareResampleContext
	out Params
}

// New allocates a resampler that will convert into out's format. Like the
// teacher's own recorder path, the context is left unconfigured at alloc
// time; libswresample infers the input side from the first frame handed
// to Convert and the output side from the dst frame's fields, which
// Convert sets from out on every call. out.SampleFormat must not be
// planar: every consumer in this engine (the preview FIFO and the
// render-mode audio submit path) wants a single packed buffer.
func New(out Params) (*Resampler, error) {
	if out.SampleFormat.IsPlanar() {
		return nil, fmt.Errorf("resample: output format %s is planar, want packed", out.SampleFormat)
	}

	swr := astiav.AllocSoftwareResampleContext()
	if swr == nil {
		return nil, errors.New("resample: AllocSoftwareResampleContext: nil")
	}

	return &Resampler{swr: swr, out: out}, nil
}

// Convert sets dst's sample format, channel layout and sample rate from
// the output Params and converts in into dst via ConvertFrame. It returns
// only an error; the number of converted samples is dst's NbSamples.
func (r *Resampler) Convert(in *astiav.Frame, dst *astiav.Frame) error {
	dst.SetSampleFormat(r.out.SampleFormat)
	dst.SetChannelLayout(r.out.ChannelLayout)
	dst.SetSampleRate(r.out.SampleRate)
	if err := r.swr.ConvertFrame(in, dst); err != nil {
		return fmt.Errorf("resample: ConvertFrame: %w", err)
	}
	return nil
}

// DropOutput discards the next n output samples the resampler would
// otherwise produce, without writing them anywhere. Seek uses this to
// land exactly on a requested timestamp: call DropOutput for the portion
// of the next frame that falls before the target before converting that
// frame, the same swr_drop_output step the original engine's seek path
// performs.
func (r *Resampler) DropOutput(n int) error {
	if n <= 0 {
		return nil
	}
	if err := r.swr.DropOutput(n); err != nil {
		return fmt.Errorf("resample: DropOutput: %w", err)
	}
	return nil
}

// Flush drains any samples buffered inside the resampler (e.g. from rate
// conversion) by converting with a nil input frame.
func (r *Resampler) Flush(dst *astiav.Frame) error {
	if err := r.swr.ConvertFrame(nil, dst); err != nil {
		return fmt.Errorf("resample: Flush: %w", err)
	}
	return nil
}

// Close releases the underlying resample context.
func (r *Resampler) Close() {
	if r.swr != nil {
		r.swr.Free()
		r.swr = nil
	}
}
