package encode

import (
	"errors"
	"fmt"

	astiav "github.com/asticode/go-astiav"
)

type muxedStream struct {
	enc    *Encoder
	stream *astiav.Stream
}

// Muxer owns the output container and every encoder feeding it, grounded
// on the teacher's recorder block (AllocOutputFormatContext/OpenIOContext/
// WriteHeader/WriteInterleavedFrame/WriteTrailer) generalized from one
// fixed video+AAC-audio pair to an arbitrary stream set.
type Muxer struct {
	oc      *astiav.FormatContext
	pb      *astiav.IOContext
	streams []muxedStream
	started bool
}

// NewMuxer allocates an output container for path, inferring the muxer
// from its extension the way astiav.AllocOutputFormatContext(nil, "", path)
// does.
func NewMuxer(path string) (*Muxer, error) {
	oc, err := astiav.AllocOutputFormatContext(nil, "", path)
	if err != nil || oc == nil {
		return nil, fmt.Errorf("encode: AllocOutputFormatContext: %w", err)
	}
	return &Muxer{oc: oc}, nil
}

// GlobalHeaderRequired reports whether this muxer's container format wants
// AV_CODEC_FLAG_GLOBAL_HEADER set on every encoder (mp4/mov/mkv do; most
// others don't), so NewStream can pass it through to NewEncoder.
func (m *Muxer) GlobalHeaderRequired() bool {
	return m.oc.OutputFormat().Flags()&astiav.IOFormatFlagGlobalHeader != 0
}

// NewStream opens an encoder for codec and registers a matching output
// stream, returning an index for later Submit calls.
func (m *Muxer) NewStream(p Params, codec *astiav.Codec, hardware bool, cfg ConfigFunc) (int, error) {
	enc, err := NewEncoder(p, codec, hardware, m.GlobalHeaderRequired(), cfg)
	if err != nil {
		return 0, err
	}

	os := m.oc.NewStream(codec)
	if os == nil {
		enc.Close()
		return 0, errors.New("encode: NewStream: nil")
	}
	if err := enc.ToCodecParameters(os.CodecParameters()); err != nil {
		enc.Close()
		return 0, fmt.Errorf("encode: ToCodecParameters: %w", err)
	}
	os.SetTimeBase(enc.TimeBase())

	m.streams = append(m.streams, muxedStream{enc: enc, stream: os})
	return len(m.streams) - 1, nil
}

// Begin opens the output IO context and writes the container header. Call
// once after every NewStream call.
func (m *Muxer) Begin() error {
	flags := astiav.NewIOContextFlags(astiav.IOContextFlagWrite)
	pb, err := astiav.OpenIOContext(m.oc.URL(), flags, nil, nil)
	if err != nil {
		return fmt.Errorf("encode: OpenIOContext: %w", err)
	}
	m.oc.SetPb(pb)
	m.pb = pb

	if err := m.oc.WriteHeader(nil); err != nil {
		return fmt.Errorf("encode: WriteHeader: %w", err)
	}
	m.started = true
	return nil
}

// Submit feeds frame to the encoder for streamIndex and writes out every
// packet the encoder has ready, rescaling each to the output stream's time
// base. Pass a nil frame to begin draining at end of stream.
func (m *Muxer) Submit(frame *astiav.Frame, streamIndex int) error {
	if streamIndex < 0 || streamIndex >= len(m.streams) {
		return fmt.Errorf("encode: Submit: stream index %d out of range", streamIndex)
	}
	ms := m.streams[streamIndex]

	if err := ms.enc.SubmitFrame(frame); err != nil {
		return err
	}

	for {
		pkt := astiav.AllocPacket()
		err := ms.enc.ReceivePacket(pkt)
		if err != nil {
			pkt.Free()
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return nil
			}
			return fmt.Errorf("encode: ReceivePacket: %w", err)
		}

		pkt.SetStreamIndex(ms.stream.Index())
		pkt.RescaleTs(ms.enc.TimeBase(), ms.stream.TimeBase())
		werr := m.oc.WriteInterleavedFrame(pkt)
		pkt.Unref()
		pkt.Free()
		if werr != nil && !errors.Is(werr, astiav.ErrEagain) {
			return fmt.Errorf("encode: WriteInterleavedFrame: %w", werr)
		}
	}
}

// End flushes every encoder (submitting nil) and writes the trailer.
func (m *Muxer) End() error {
	for i := range m.streams {
		if err := m.Submit(nil, i); err != nil {
			return fmt.Errorf("encode: End: flush stream %d: %w", i, err)
		}
	}
	if m.started {
		if err := m.oc.WriteTrailer(); err != nil {
			return fmt.Errorf("encode: WriteTrailer: %w", err)
		}
	}
	return nil
}

// Close releases every encoder, the IO context, and the output container.
func (m *Muxer) Close() error {
	for _, s := range m.streams {
		s.enc.Close()
	}
	if m.pb != nil {
		_ = m.pb.Close()
		m.pb.Free()
		m.pb = nil
	}
	if m.oc != nil {
		m.oc.Free()
		m.oc = nil
	}
	return nil
}
