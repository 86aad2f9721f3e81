package demux

import astiav "github.com/asticode/go-astiav"

type packetKind int

const (
	packetRegular packetKind = iota
	packetSeekMarker
	packetEOF
	packetErr
)

// PacketMsg is the tagged union pushed through a stream's packet channel:
// a regular demuxed packet, a seek barrier, or a sticky terminal marker.
type PacketMsg struct {
	kind   packetKind
	Packet *astiav.Packet
}

// Regular wraps a demuxed packet for delivery to a decoder.
func Regular(p *astiav.Packet) PacketMsg { return PacketMsg{kind: packetRegular, Packet: p} }

// SeekMarker is interposed between the acceptance of a seek and the next
// regular packet on every selected stream's channel.
func SeekMarker() PacketMsg { return PacketMsg{kind: packetSeekMarker} }

// EOF is the sticky marker sent once the container is exhausted.
func EOF() PacketMsg { return PacketMsg{kind: packetEOF} }

// Err is the sticky marker sent once the container read loop fails.
func Err() PacketMsg { return PacketMsg{kind: packetErr} }

// Switch dispatches to exactly one of the four callbacks for this message.
// A nil callback for the matching variant is simply skipped.
func (m PacketMsg) Switch(onRegular func(*astiav.Packet), onSeek, onEOF, onErr func()) {
	switch m.kind {
	case packetRegular:
		if onRegular != nil {
			onRegular(m.Packet)
		}
	case packetSeekMarker:
		if onSeek != nil {
			onSeek()
		}
	case packetEOF:
		if onEOF != nil {
			onEOF()
		}
	case packetErr:
		if onErr != nil {
			onErr()
		}
	}
}

// IsSeekMarker reports whether m is the seek barrier variant.
func (m PacketMsg) IsSeekMarker() bool { return m.kind == packetSeekMarker }

// IsTerminal reports whether m is the sticky EOF or error variant.
func (m PacketMsg) IsTerminal() bool { return m.kind == packetEOF || m.kind == packetErr }

// IsRegular reports whether m carries a live packet.
func (m PacketMsg) IsRegular() bool { return m.kind == packetRegular }
