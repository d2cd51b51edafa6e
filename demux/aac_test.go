package demux

import (
	"bytes"
	"errors"
	"testing"

	"github.com/zsiec/framepace/test/tools/tsutil"
)

func mustADTS(t *testing.T, rate, channels int, payload []byte) []byte {
	t.Helper()
	frame, err := tsutil.ADTSFrame(rate, channels, payload)
	if err != nil {
		t.Fatalf("ADTSFrame: %v", err)
	}
	return frame
}

func TestParseADTS(t *testing.T) {
	t.Parallel()
	var data []byte
	data = append(data, 0x12, 0x34) // junk before the first sync word
	data = append(data, mustADTS(t, 48000, 2, []byte{1, 2, 3})...)
	data = append(data, mustADTS(t, 44100, 1, []byte{4, 5})...)

	frames, err := ParseADTS(data)
	if err != nil {
		t.Fatalf("ParseADTS: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}

	tests := []struct {
		rate, channels int
		payload        []byte
	}{
		{48000, 2, []byte{1, 2, 3}},
		{44100, 1, []byte{4, 5}},
	}
	for i, want := range tests {
		got := frames[i]
		if got.SampleRate != want.rate || got.Channels != want.channels {
			t.Errorf("frame %d: got %d Hz/%d ch, want %d Hz/%d ch", i, got.SampleRate, got.Channels, want.rate, want.channels)
		}
		if got.Profile != 1 {
			t.Errorf("frame %d: profile %d, want 1 (LC)", i, got.Profile)
		}
		if !bytes.Equal(got.Payload, want.payload) {
			t.Errorf("frame %d: payload %x, want %x", i, got.Payload, want.payload)
		}
	}
}

func TestParseADTSTruncated(t *testing.T) {
	t.Parallel()
	full := mustADTS(t, 48000, 2, []byte{1, 2, 3, 4, 5, 6})
	data := append(mustADTS(t, 48000, 2, []byte{9}), full[:len(full)-2]...)

	frames, err := ParseADTS(data)
	if err != nil {
		t.Fatalf("ParseADTS: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
}

func TestParseADTSBadRate(t *testing.T) {
	t.Parallel()
	frame := mustADTS(t, 48000, 2, []byte{1})
	frame[2] |= 0x0F << 2 // sampling index 15 is reserved

	_, err := ParseADTS(frame)
	if !errors.Is(err, ErrInvalidADTS) {
		t.Fatalf("got %v, want %v", err, ErrInvalidADTS)
	}
}
