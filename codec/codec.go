// Package codec defines the contract between the playback core and a
// container/decoder library. Two backends implement it: the pure-Go MPEG-TS
// backend in package demux and the FFmpeg backend in package ffmpeg.
package codec

import (
	"context"
	"errors"

	"github.com/zsiec/framepace/media"
)

// ErrAgain is returned by Decoder.ReceiveFrame when the decoder needs more
// input, and by Decoder.SendPacket when pending output must be received
// first.
var ErrAgain = errors.New("codec: resource temporarily unavailable")

// Backend opens media sources.
type Backend interface {
	Name() string
	Open(ctx context.Context, path string) (Container, error)
}

// Container is an opened source. Streams is complete once Open returns.
type Container interface {
	Streams() []media.StreamInfo

	// ReadPacket returns the next compressed packet in file order, or
	// io.EOF when the source is exhausted.
	ReadPacket() (media.Packet, error)

	// NewDecoder opens a decoder for one of the container's streams.
	NewDecoder(info media.StreamInfo) (Decoder, error)

	Close() error
}

// Decoder follows the send/receive model: every SendPacket is followed by
// ReceiveFrame calls until ErrAgain. SendPacket(nil) enters draining, after
// which ReceiveFrame returns the remaining frames and then io.EOF.
type Decoder interface {
	SendPacket(pkt *media.Packet) error
	ReceiveFrame() (*RawFrame, error)
	Close() error
}

// RawFrame is a decoded frame still owned by its Decoder. Data and Captions
// are only valid until the next call on that Decoder; callers copy what they
// keep.
type RawFrame struct {
	Kind     media.Kind
	PTS      int64
	Format   string
	Keyframe bool

	Width  int
	Height int

	SampleRate int
	Channels   int
	Samples    int

	Data     []byte
	Captions []string
}
