// Package source implements the two media source variants consumers pull
// video textures and audio samples from: Streamed (demux+decode on
// demand) and Preloaded (fully decoded up front).
package source

import (
	astiav "github.com/asticode/go-astiav"

	"sve2/internal/hwbridge"
)

// TextureKind distinguishes the two ways a video texture can be backed,
// replacing a negative-array-index sentinel with a real sum type.
type TextureKind int

const (
	// KindPlanarPlanes is a Streamed source's just-decoded frame, mapped
	// directly via the hardware bridge.
	KindPlanarPlanes TextureKind = iota
	// KindLayeredArray is a Preloaded source's texture array slot.
	KindLayeredArray
	// KindCPUFrame is a software-decoded frame scaled to a packed BGRA
	// buffer the caller uploads itself (glTexSubImage2D or equivalent),
	// the teacher's own software-only decode path generalized from a
	// fixed on-screen texture to this package's Source interface.
	KindCPUFrame
)

// VideoTexture is the handle a caller uses to sample the current frame,
// whichever variant produced it.
type VideoTexture struct {
	Kind     TextureKind
	Planes   hwbridge.Texture
	SWFormat astiav.PixelFormat

	Array uint32
	Index int32

	// Pixels, Width, Height are set only for KindCPUFrame: a tightly
	// packed BGRA buffer valid until the next VideoTextureAt call.
	Pixels        []byte
	Width, Height int
}

// Source is the shared surface both variants implement.
type Source interface {
	Close() error
	Seek(ts int64) error
	VideoTextureAt(ts int64) (VideoTexture, error)
	AudioSamples(out []byte, want int) (n int, err error)
}

// Params describes the output audio format a Source converts into.
type Params struct {
	SampleRate    int
	ChannelLayout astiav.ChannelLayout
	SampleFormat  astiav.SampleFormat
}
