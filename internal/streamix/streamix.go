// Package streamix resolves typed (media-kind, ordinal) stream references
// against a demuxed container's stream list, and encodes the absolute
// integer form the rest of the engine uses on the fast path.
package streamix

import (
	"fmt"

	astiav "github.com/asticode/go-astiav"
)

// Kind identifies how a Ref selects a stream.
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
	KindSubtitle
	KindAbsolute
)

// Ref names a stream either by absolute container index, or by the
// ordinal-th stream of a given media kind (0-based).
type Ref struct {
	Kind    Kind
	Ordinal int
}

// Video returns a Ref selecting the ordinal-th video stream.
func Video(ordinal int) Ref { return Ref{Kind: KindVideo, Ordinal: ordinal} }

// Audio returns a Ref selecting the ordinal-th audio stream.
func Audio(ordinal int) Ref { return Ref{Kind: KindAudio, Ordinal: ordinal} }

// Absolute returns a Ref selecting a stream by its container index.
func Absolute(index int) Ref { return Ref{Kind: KindAbsolute, Ordinal: index} }

func (k Kind) mediaType() astiav.MediaType {
	switch k {
	case KindVideo:
		return astiav.MediaTypeVideo
	case KindAudio:
		return astiav.MediaTypeAudio
	case KindSubtitle:
		return astiav.MediaTypeSubtitle
	default:
		return astiav.MediaTypeUnknown
	}
}

// Resolve scans fc's streams and returns the absolute container index the
// ref names, or ok=false if no such stream exists.
func (r Ref) Resolve(fc *astiav.FormatContext) (absolute int, ok bool) {
	if r.Kind == KindAbsolute {
		streams := fc.Streams()
		if r.Ordinal < 0 || r.Ordinal >= len(streams) {
			return 0, false
		}
		return r.Ordinal, true
	}

	want := r.Kind.mediaType()
	seen := 0
	for i, s := range fc.Streams() {
		if s.CodecParameters().MediaType() != want {
			continue
		}
		if seen == r.Ordinal {
			return i, true
		}
		seen++
	}
	return 0, false
}

// String renders the canonical "v:0" / "a:1" / ":3" form.
func (r Ref) String() string {
	switch r.Kind {
	case KindVideo:
		return fmt.Sprintf("v:%d", r.Ordinal)
	case KindAudio:
		return fmt.Sprintf("a:%d", r.Ordinal)
	case KindSubtitle:
		return fmt.Sprintf("s:%d", r.Ordinal)
	default:
		return fmt.Sprintf(":%d", r.Ordinal)
	}
}
