// Package tsutil builds synthetic MPEG-TS files with H.264 video and AAC
// audio for tests and the gen-ts tool. The elementary streams are
// syntactically valid (Annex B access units with a real SPS, ADTS frames)
// but carry no decodable pictures or sound.
package tsutil

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/zsiec/framepace/internal/mpegts"
)

// TSPacketSize is the fixed size of an MPEG-TS packet.
const TSPacketSize = 188

// PIDs used by generated streams.
const (
	PMTPID   uint16 = 0x1000
	VideoPID uint16 = 0x100
	AudioPID uint16 = 0x101
)

// SPS720p is an H.264 High profile SPS for 1280x720.
var SPS720p = []byte{
	0x67, 0x64, 0x00, 0x1f, 0xac, 0xd9, 0x40, 0x50,
	0x05, 0xbb, 0xff, 0x00, 0x03, 0x00, 0x04, 0x6a,
	0x02, 0x02, 0x02, 0x80, 0x00, 0x01, 0xf4, 0x80,
	0x00, 0x5d, 0xc0, 0x07, 0x8c, 0x18, 0xcb,
}

// PPS is a minimal H.264 PPS.
var PPS = []byte{0x68, 0xee, 0x3c, 0x80}

var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// Fixture describes a generated stream.
type Fixture struct {
	VideoFrames int
	FrameRate   int // frames per second
	GOP         int // frames per keyframe interval

	AudioFrames int
	SampleRate  int
	Channels    int

	// StartPTS offsets every timestamp, in 90 kHz ticks.
	StartPTS int64
}

// Default returns one second of 30 fps video with 48 kHz stereo audio.
func Default() Fixture {
	return Fixture{
		VideoFrames: 30,
		FrameRate:   30,
		GOP:         30,
		AudioFrames: 47,
		SampleRate:  48000,
		Channels:    2,
		StartPTS:    126000,
	}
}

type unit struct {
	pid      uint16
	streamID uint8
	pts      int64
	data     []byte
}

// Build returns the transport stream for f. Video and audio PES packets are
// interleaved in timestamp order.
func Build(f Fixture) ([]byte, error) {
	var streams []mpegts.WriterStream
	var units []unit

	if f.VideoFrames > 0 {
		if f.FrameRate <= 0 {
			return nil, fmt.Errorf("tsutil: frame rate must be positive")
		}
		streams = append(streams, mpegts.WriterStream{PID: VideoPID, Type: mpegts.StreamTypeH264})
		for i := range f.VideoFrames {
			units = append(units, unit{
				pid:      VideoPID,
				streamID: mpegts.StreamIDVideo,
				pts:      f.StartPTS + int64(i)*mpegts.ClockRate/int64(f.FrameRate),
				data:     AccessUnit(i, f.GOP <= 0 || i%f.GOP == 0),
			})
		}
	}

	if f.AudioFrames > 0 {
		if f.SampleRate <= 0 {
			return nil, fmt.Errorf("tsutil: sample rate must be positive")
		}
		streams = append(streams, mpegts.WriterStream{PID: AudioPID, Type: mpegts.StreamTypeAAC})
		for i := range f.AudioFrames {
			frame, err := ADTSFrame(f.SampleRate, f.Channels, []byte{0x21, 0x10, 0x04, byte(i)})
			if err != nil {
				return nil, err
			}
			units = append(units, unit{
				pid:      AudioPID,
				streamID: mpegts.StreamIDAudio,
				pts:      f.StartPTS + int64(i)*1024*mpegts.ClockRate/int64(f.SampleRate),
				data:     frame,
			})
		}
	}

	sort.SliceStable(units, func(a, b int) bool { return units[a].pts < units[b].pts })

	var buf bytes.Buffer
	w := mpegts.NewWriter(&buf, PMTPID, streams...)
	if err := w.WriteTables(); err != nil {
		return nil, err
	}
	for _, u := range units {
		if err := w.WritePES(u.pid, u.streamID, u.pts, u.data); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// WriteFile builds f and writes it to path.
func WriteFile(path string, f Fixture) error {
	data, err := Build(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// AccessUnit returns an Annex B access unit for frame n: AUD, then SPS, PPS
// and an IDR slice for keyframes or a non-IDR slice otherwise.
func AccessUnit(n int, keyframe bool) []byte {
	var au []byte
	au = append(au, startCode...)
	au = append(au, 0x09, 0xf0)
	if keyframe {
		au = append(au, startCode...)
		au = append(au, SPS720p...)
		au = append(au, startCode...)
		au = append(au, PPS...)
		au = append(au, startCode...)
		au = append(au, 0x65, 0x88, 0x84, 0x21, byte(n%251+1))
		return au
	}
	au = append(au, startCode...)
	au = append(au, 0x41, 0x9a, 0x21, byte(n%251+1))
	return au
}

var sampleRates = [...]int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 7350,
}

// ADTSFrame wraps payload in a 7-byte AAC-LC ADTS header.
func ADTSFrame(sampleRate, channels int, payload []byte) ([]byte, error) {
	idx := -1
	for i, r := range sampleRates {
		if r == sampleRate {
			idx = i
		}
	}
	n := 7 + len(payload)
	if idx < 0 || channels < 1 || channels > 7 || n > 0x1FFF {
		return nil, fmt.Errorf("tsutil: cannot build ADTS header for %d Hz, %d channels", sampleRate, channels)
	}
	hdr := []byte{
		0xFF,
		0xF1,
		1<<6 | byte(idx)<<2 | byte(channels>>2),
		byte(channels&0x03)<<6 | byte(n>>11),
		byte(n >> 3),
		byte(n&0x07)<<5 | 0x1F,
		0xFC,
	}
	return append(hdr, payload...), nil
}
