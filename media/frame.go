// Package media defines the frame, stream and queue message types that flow
// through the framepace playback pipeline, from decoding through delivery.
package media

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Default queue depths between the decode worker and the dispatch loops:
// about 2s of 30 fps video and 2.5s of 48 kHz AAC.
const (
	VideoQueueSize = 60
	AudioQueueSize = 120
)

// NoPTS marks a frame or stream whose presentation timestamp is unknown. It
// has the same value as FFmpeg's AV_NOPTS_VALUE.
const NoPTS int64 = math.MinInt64

// Kind identifies the elementary stream a frame belongs to.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindVideo
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Rational is a time base: one tick lasts Num/Den seconds.
type Rational struct {
	Num int64
	Den int64
}

// Valid reports whether both terms are positive.
func (r Rational) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Duration converts a tick count to wall-clock time with microsecond
// precision. The tick count is split on Den before scaling so that large
// 90 kHz offsets do not overflow.
func (r Rational) Duration(ticks int64) time.Duration {
	if !r.Valid() {
		return 0
	}
	whole := ticks / r.Den
	rem := ticks % r.Den
	us := whole*r.Num*1_000_000 + rem*r.Num*1_000_000/r.Den
	return time.Duration(us) * time.Microsecond
}

// StreamInfo describes one elementary stream discovered in a container.
type StreamInfo struct {
	Index    int
	Kind     Kind
	Codec    string
	TimeBase Rational

	// StartPTS is the stream's first presentation timestamp, or NoPTS when
	// the container does not report one.
	StartPTS int64

	Width  int
	Height int

	SampleRate int
	Channels   int
}

// ZeroPTS returns the timestamp that maps to the start of playback.
func (s StreamInfo) ZeroPTS() int64 {
	if s.StartPTS == NoPTS {
		return 0
	}
	return s.StartPTS
}

// Packet is one compressed unit read from a container.
type Packet struct {
	StreamIndex int
	PTS         int64
	DTS         int64
	Keyframe    bool
	Data        []byte
}

// Frame is a decoded picture or block of audio samples. The frame owns Data,
// which comes from a shared buffer pool: whoever holds the frame last calls
// Release to return it.
type Frame struct {
	Kind     Kind
	PTS      int64
	TimeBase Rational
	Format   string
	Keyframe bool

	Width  int
	Height int

	SampleRate int
	Channels   int
	Samples    int

	Data []byte

	// Captions holds CEA-608 text decoded alongside a video frame.
	Captions []string

	buf      *[]byte
	released atomic.Bool
}

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 64*1024)
		return &b
	},
}

// NewFrame returns a frame whose Data has length size, backed by a pooled
// buffer.
func NewFrame(kind Kind, size int) *Frame {
	bp := bufPool.Get().(*[]byte)
	if cap(*bp) < size {
		*bp = make([]byte, size)
	}
	*bp = (*bp)[:size]
	return &Frame{Kind: kind, PTS: NoPTS, Data: *bp, buf: bp}
}

// Release returns the frame's buffer to the pool. It is safe to call more
// than once; Data must not be used afterwards.
func (f *Frame) Release() {
	if f == nil || !f.released.CompareAndSwap(false, true) {
		return
	}
	f.Data = nil
	if f.buf != nil {
		bufPool.Put(f.buf)
		f.buf = nil
	}
}

// Released reports whether Release has been called.
func (f *Frame) Released() bool {
	return f.released.Load()
}
