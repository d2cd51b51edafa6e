// Package mpegts reads and writes MPEG transport streams. The Reader
// discovers programs through PAT/PMT and reassembles PES packets with their
// timestamps; the Writer produces the same structures and is used to build
// test media.
package mpegts

// Stream types carried in the PMT that the player understands.
const (
	StreamTypeAAC  uint8 = 0x0F
	StreamTypeH264 uint8 = 0x1B
	StreamTypeH265 uint8 = 0x24
)

// PES stream ids for the first video and audio elementary stream.
const (
	StreamIDVideo uint8 = 0xE0
	StreamIDAudio uint8 = 0xC0
)

// ClockRate is the frequency of PES timestamps.
const ClockRate = 90000

// Packet is a parsed 188-byte transport stream packet.
type Packet struct {
	PID               uint16
	ContinuityCounter uint8
	HasPayload        bool
	HasAdaptation     bool
	UnitStart         bool
	TransportError    bool
	Discontinuity     bool
	Payload           []byte
}

// Unit is one logical item produced by the Reader. Exactly one of PAT, PMT
// or PES is set.
type Unit struct {
	PID uint16
	PAT *PAT
	PMT *PMT
	PES *PES
}

// PAT is a Program Association Table.
type PAT struct {
	TransportStreamID uint16
	Programs          []Program
}

// Program maps a program number to the PID carrying its PMT.
type Program struct {
	Number uint16
	PMTPID uint16
}

// PMT is a Program Map Table.
type PMT struct {
	ProgramNumber uint16
	PCRPID        uint16
	Streams       []ElementaryStream
}

// ElementaryStream is one entry of a PMT.
type ElementaryStream struct {
	PID  uint16
	Type uint8
}

// PES is a reassembled Packetized Elementary Stream packet. PTS and DTS are
// in 90 kHz ticks and only meaningful when the matching Has flag is set.
type PES struct {
	StreamID uint8
	PTS      int64
	DTS      int64
	HasPTS   bool
	HasDTS   bool
	Data     []byte
}
