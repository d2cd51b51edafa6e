package player

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/zsiec/framepace/codec"
	"github.com/zsiec/framepace/media"
)

var (
	msTimeBase  = media.Rational{Num: 1, Den: 1000}
	secTimeBase = media.Rational{Num: 1, Den: 1}

	testVideo = media.StreamInfo{
		Index:    0,
		Kind:     media.KindVideo,
		Codec:    "fake",
		TimeBase: msTimeBase,
		Width:    64,
		Height:   48,
	}
	testAudio = media.StreamInfo{
		Index:      1,
		Kind:       media.KindAudio,
		Codec:      "fake",
		TimeBase:   msTimeBase,
		SampleRate: 48000,
		Channels:   2,
	}
)

// fakeBackend serves a scripted container.
type fakeBackend struct {
	streams    []media.StreamInfo
	packets    []media.Packet
	openErr    error
	decoderErr map[int]error
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Open(ctx context.Context, path string) (codec.Container, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	return &fakeContainer{b: b, packets: append([]media.Packet(nil), b.packets...)}, nil
}

type fakeContainer struct {
	b       *fakeBackend
	packets []media.Packet
}

func (c *fakeContainer) Streams() []media.StreamInfo { return c.b.streams }

func (c *fakeContainer) ReadPacket() (media.Packet, error) {
	if len(c.packets) == 0 {
		return media.Packet{}, io.EOF
	}
	pkt := c.packets[0]
	c.packets = c.packets[1:]
	return pkt, nil
}

func (c *fakeContainer) NewDecoder(info media.StreamInfo) (codec.Decoder, error) {
	if err := c.b.decoderErr[info.Index]; err != nil {
		return nil, err
	}
	return &fakeDecoder{info: info}, nil
}

func (c *fakeContainer) Close() error { return nil }

// fakeDecoder emits one frame per packet, reusing its output buffer like a
// real decoder does.
type fakeDecoder struct {
	info     media.StreamInfo
	buf      []byte
	frame    codec.RawFrame
	pending  bool
	draining bool
}

func (d *fakeDecoder) SendPacket(pkt *media.Packet) error {
	if d.pending {
		return codec.ErrAgain
	}
	if pkt == nil {
		d.draining = true
		return nil
	}
	d.buf = append(d.buf[:0], pkt.Data...)
	d.frame = codec.RawFrame{
		Kind:       d.info.Kind,
		PTS:        pkt.PTS,
		Format:     "raw",
		Keyframe:   pkt.Keyframe,
		Width:      d.info.Width,
		Height:     d.info.Height,
		SampleRate: d.info.SampleRate,
		Channels:   d.info.Channels,
		Data:       d.buf,
	}
	d.pending = true
	return nil
}

func (d *fakeDecoder) ReceiveFrame() (*codec.RawFrame, error) {
	if d.pending {
		d.pending = false
		return &d.frame, nil
	}
	if d.draining {
		return nil, io.EOF
	}
	return nil, codec.ErrAgain
}

func (d *fakeDecoder) Close() error { return nil }

// packets returns n packets for stream idx with PTS start, start+step, ...
// and a payload whose first byte is the packet number.
func packets(idx, n int, start, step int64) []media.Packet {
	out := make([]media.Packet, n)
	for i := range out {
		out[i] = media.Packet{
			StreamIndex: idx,
			PTS:         start + int64(i)*step,
			DTS:         start + int64(i)*step,
			Keyframe:    i == 0,
			Data:        []byte{byte(i), 0xAB, 0xCD},
		}
	}
	return out
}

// interleave merges packet lists alternately.
func interleave(lists ...[]media.Packet) []media.Packet {
	var out []media.Packet
	for i := 0; ; i++ {
		added := false
		for _, l := range lists {
			if i < len(l) {
				out = append(out, l[i])
				added = true
			}
		}
		if !added {
			return out
		}
	}
}

// recorder is a Listener that keeps everything it is given.
type recorder struct {
	mu    sync.Mutex
	video []*media.Frame
	audio []*media.Frame

	errs chan error
	eos  chan media.Kind
}

func newRecorder() *recorder {
	return &recorder{
		errs: make(chan error, 4),
		eos:  make(chan media.Kind, 4),
	}
}

func (r *recorder) OnVideoFrame(f *media.Frame) {
	r.mu.Lock()
	r.video = append(r.video, f)
	r.mu.Unlock()
}

func (r *recorder) OnAudioFrame(f *media.Frame) {
	r.mu.Lock()
	r.audio = append(r.audio, f)
	r.mu.Unlock()
}

func (r *recorder) OnMediaError(err error) { r.errs <- err }

func (r *recorder) OnEndOfStream(kind media.Kind) { r.eos <- kind }

func (r *recorder) frames(kind media.Kind) []*media.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	if kind == media.KindVideo {
		return append([]*media.Frame(nil), r.video...)
	}
	return append([]*media.Frame(nil), r.audio...)
}

func (r *recorder) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.video {
		f.Release()
	}
	for _, f := range r.audio {
		f.Release()
	}
}

// waitEOS waits for an end-of-stream notification for each kind.
func (r *recorder) waitEOS(t *testing.T, kinds ...media.Kind) {
	t.Helper()
	want := map[media.Kind]bool{}
	for _, k := range kinds {
		want[k] = true
	}
	timeout := time.After(5 * time.Second)
	for len(want) > 0 {
		select {
		case k := <-r.eos:
			delete(want, k)
		case <-timeout:
			t.Fatalf("timed out waiting for end of stream, still missing %v", want)
		}
	}
}

func (r *recorder) waitErr(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.errs:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for media error")
		return nil
	}
}

func newTestSession(t *testing.T, b codec.Backend, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	s := New(b, opts...)
	t.Cleanup(s.Stop)
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for worker to finish")
	}
}
