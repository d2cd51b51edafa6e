// Package audioout adapts delivered audio frames to the pull-based io.Reader
// an oto player consumes.
package audioout

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"sync/atomic"

	"github.com/zsiec/framepace/internal/queue"
	"github.com/zsiec/framepace/media"
)

// BytesPerSample is the size of one signed 16-bit little-endian sample.
const BytesPerSample = 2

// Reader buffers interleaved s16le PCM between a playback listener and the
// audio device. Read never blocks: when nothing is buffered it returns
// silence so the device clock keeps running.
//
// Push must be called from a single goroutine.
type Reader struct {
	q       *queue.Queue[[]byte]
	pending []byte
	closed  atomic.Bool

	pushed  atomic.Int64
	dropped atomic.Int64
	silent  atomic.Int64
}

// NewReader returns a Reader holding at most capacity chunks.
func NewReader(capacity int) (*Reader, error) {
	q, err := queue.New[[]byte](capacity)
	if err != nil {
		return nil, err
	}
	return &Reader{q: q}, nil
}

// Push converts f to interleaved s16le PCM and buffers it. The frame is not
// retained. Packed "s16" and "flt" and planar "s16p" and "fltp" samples are
// converted; any other format, including compressed audio, becomes silence
// of the same duration. When the buffer is full the oldest chunk is
// discarded.
func (r *Reader) Push(f *media.Frame) {
	if r.closed.Load() || f == nil {
		return
	}
	pcm := toS16(f)
	if len(pcm) == 0 {
		return
	}
	for r.q.Len() >= r.q.Cap() {
		if _, ok := r.q.PopOrEmpty(); ok {
			r.dropped.Add(1)
		}
	}
	// Single producer: the loop above leaves room, so Push cannot block.
	r.q.Push(context.Background(), pcm)
	r.pushed.Add(1)
}

func toS16(f *media.Frame) []byte {
	switch f.Format {
	case "s16":
		return append([]byte(nil), f.Data...)
	case "flt":
		out := make([]byte, len(f.Data)/4*BytesPerSample)
		for i := range len(out) / BytesPerSample {
			putFloat(out[i*BytesPerSample:], f.Data[i*4:])
		}
		return out
	case "s16p", "fltp":
		return interleave(f)
	default:
		return make([]byte, f.Samples*f.Channels*BytesPerSample)
	}
}

// interleave merges planar samples into one s16le stream. Planes follow
// each other in Data, each holding f.Samples samples of one channel.
func interleave(f *media.Frame) []byte {
	width := BytesPerSample
	if f.Format == "fltp" {
		width = 4
	}
	ch := max(f.Channels, 1)
	samples := f.Samples
	if samples <= 0 || samples*width*ch > len(f.Data) {
		samples = len(f.Data) / (width * ch)
	}
	plane := samples * width

	out := make([]byte, samples*ch*BytesPerSample)
	for c := range ch {
		src := f.Data[c*plane : (c+1)*plane]
		for i := range samples {
			dst := out[(i*ch+c)*BytesPerSample:]
			if width == 4 {
				putFloat(dst, src[i*4:])
			} else {
				copy(dst[:BytesPerSample], src[i*BytesPerSample:])
			}
		}
	}
	return out
}

// putFloat writes the little-endian float32 at src to dst as s16le,
// clamping to [-1, 1].
func putFloat(dst, src []byte) {
	v := math.Float32frombits(binary.LittleEndian.Uint32(src))
	v = max(-1, min(1, v))
	binary.LittleEndian.PutUint16(dst, uint16(int16(v*math.MaxInt16)))
}

// Read fills p with buffered PCM and pads the remainder with zeros. After
// Close it returns io.EOF.
func (r *Reader) Read(p []byte) (int, error) {
	if r.closed.Load() {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) {
		if len(r.pending) == 0 {
			chunk, ok := r.q.PopOrEmpty()
			if !ok {
				break
			}
			r.pending = chunk
		}
		c := copy(p[n:], r.pending)
		r.pending = r.pending[c:]
		n += c
	}
	if n < len(p) {
		clear(p[n:])
		r.silent.Add(int64(len(p) - n))
	}
	return len(p), nil
}

// Close makes subsequent reads return io.EOF and discards buffered audio.
func (r *Reader) Close() error {
	if r.closed.CompareAndSwap(false, true) {
		r.q.Replace(nil)
	}
	return nil
}

// Stats reports chunks accepted and discarded by Push, and bytes of
// silence inserted by Read.
func (r *Reader) Stats() (pushed, dropped, silentBytes int64) {
	return r.pushed.Load(), r.dropped.Load(), r.silent.Load()
}

// Buffered returns the number of queued chunks.
func (r *Reader) Buffered() int { return r.q.Len() }
