package demux

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/zsiec/framepace/codec"
	"github.com/zsiec/framepace/media"
	"github.com/zsiec/framepace/test/tools/tsutil"
)

func TestVideoDecoder(t *testing.T) {
	t.Parallel()
	dec := newVideoDecoder(media.StreamInfo{Codec: "h264", TimeBase: timeBase90k})

	if _, err := dec.ReceiveFrame(); !errors.Is(err, codec.ErrAgain) {
		t.Fatalf("ReceiveFrame before any packet: got %v, want ErrAgain", err)
	}

	key := tsutil.AccessUnit(0, true)
	if err := dec.SendPacket(&media.Packet{PTS: 9000, Data: key}); err != nil {
		t.Fatalf("SendPacket: %v", err)
	}
	if err := dec.SendPacket(&media.Packet{PTS: 12000, Data: key}); !errors.Is(err, codec.ErrAgain) {
		t.Fatalf("SendPacket with frame pending: got %v, want ErrAgain", err)
	}

	f, err := dec.ReceiveFrame()
	if err != nil {
		t.Fatalf("ReceiveFrame: %v", err)
	}
	if f.Kind != media.KindVideo || f.PTS != 9000 || !f.Keyframe {
		t.Errorf("got kind=%v pts=%d key=%v, want video/9000/true", f.Kind, f.PTS, f.Keyframe)
	}
	if f.Width != 1280 || f.Height != 720 {
		t.Errorf("size: got %dx%d, want 1280x720", f.Width, f.Height)
	}
	if !bytes.Equal(f.Data, key) {
		t.Error("frame data differs from access unit")
	}

	// Dimensions carry over to frames without an SPS.
	if err := dec.SendPacket(&media.Packet{PTS: 12000, Data: tsutil.AccessUnit(1, false)}); err != nil {
		t.Fatalf("SendPacket: %v", err)
	}
	f, err = dec.ReceiveFrame()
	if err != nil {
		t.Fatalf("ReceiveFrame: %v", err)
	}
	if f.Keyframe || f.Width != 1280 {
		t.Errorf("delta frame: key=%v width=%d, want false/1280", f.Keyframe, f.Width)
	}

	if err := dec.SendPacket(nil); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if _, err := dec.ReceiveFrame(); !errors.Is(err, io.EOF) {
		t.Fatalf("ReceiveFrame after drain: got %v, want io.EOF", err)
	}
}

func TestVideoDecoderRejectsGarbage(t *testing.T) {
	t.Parallel()
	dec := newVideoDecoder(media.StreamInfo{Codec: "h264"})
	if err := dec.SendPacket(&media.Packet{Data: []byte{0xde, 0xad}}); err == nil {
		t.Fatal("expected error for packet without start codes")
	}
	if _, err := dec.ReceiveFrame(); !errors.Is(err, codec.ErrAgain) {
		t.Fatalf("got %v, want ErrAgain", err)
	}
}

func TestAudioDecoder(t *testing.T) {
	t.Parallel()
	dec := newAudioDecoder(media.StreamInfo{Codec: "aac", TimeBase: timeBase90k})

	pes := append(mustADTS(t, 48000, 2, []byte{1}), mustADTS(t, 48000, 2, []byte{2})...)
	if err := dec.SendPacket(&media.Packet{PTS: 90000, Data: pes}); err != nil {
		t.Fatalf("SendPacket: %v", err)
	}
	if err := dec.SendPacket(&media.Packet{PTS: 93840, Data: pes}); !errors.Is(err, codec.ErrAgain) {
		t.Fatalf("SendPacket with frames pending: got %v, want ErrAgain", err)
	}

	// 1024 samples at 48 kHz is 1920 ticks at 90 kHz.
	for i, wantPTS := range []int64{90000, 91920} {
		f, err := dec.ReceiveFrame()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if f.PTS != wantPTS {
			t.Errorf("frame %d: pts %d, want %d", i, f.PTS, wantPTS)
		}
		if f.SampleRate != 48000 || f.Channels != 2 || f.Samples != AACSamplesPerFrame {
			t.Errorf("frame %d: got %d Hz/%d ch/%d samples", i, f.SampleRate, f.Channels, f.Samples)
		}
		if len(f.Data) != 1 || f.Data[0] != byte(i+1) {
			t.Errorf("frame %d: payload %x", i, f.Data)
		}
	}
	if _, err := dec.ReceiveFrame(); !errors.Is(err, codec.ErrAgain) {
		t.Fatalf("got %v, want ErrAgain", err)
	}

	if err := dec.SendPacket(nil); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if _, err := dec.ReceiveFrame(); !errors.Is(err, io.EOF) {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

func TestAudioDecoderNoPTS(t *testing.T) {
	t.Parallel()
	dec := newAudioDecoder(media.StreamInfo{Codec: "aac", TimeBase: timeBase90k})
	pes := append(mustADTS(t, 48000, 2, []byte{1}), mustADTS(t, 48000, 2, []byte{2})...)
	if err := dec.SendPacket(&media.Packet{PTS: media.NoPTS, Data: pes}); err != nil {
		t.Fatalf("SendPacket: %v", err)
	}
	for range 2 {
		f, err := dec.ReceiveFrame()
		if err != nil {
			t.Fatal(err)
		}
		if f.PTS != media.NoPTS {
			t.Errorf("pts %d, want NoPTS", f.PTS)
		}
	}
}
