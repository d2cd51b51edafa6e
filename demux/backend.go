package demux

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/zsiec/framepace/codec"
	"github.com/zsiec/framepace/internal/mpegts"
	"github.com/zsiec/framepace/media"
)

// ErrNoProgram is returned by Open when no PMT is found within the probe
// window.
var ErrNoProgram = errors.New("demux: no program map table found")

const (
	// maxProbeUnits bounds how many PSI/PES units Open reads while
	// discovering streams.
	maxProbeUnits = 4096
	// probePackets is how many PES packets per stream are inspected for
	// the start timestamp before discovery ends.
	probePackets = 8
)

var timeBase90k = media.Rational{Num: 1, Den: mpegts.ClockRate}

// Backend opens MPEG-TS files.
type Backend struct {
	log *slog.Logger
}

// NewBackend returns a Backend. If log is nil, slog.Default() is used.
func NewBackend(log *slog.Logger) *Backend {
	if log == nil {
		log = slog.Default()
	}
	return &Backend{log: log.With("component", "demux")}
}

func (b *Backend) Name() string { return "mpegts" }

// Open reads the file up to the first PMT plus a few PES packets per
// stream, so that Streams reports codecs, dimensions and start timestamps.
// Probed packets are replayed by ReadPacket.
func (b *Backend) Open(ctx context.Context, path string) (codec.Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	c := &container{
		log:    b.log.With("path", path),
		f:      f,
		rd:     mpegts.NewReader(ctx, bufio.NewReaderSize(f, 64*1024)),
		byPID:  make(map[uint16]int),
		probed: make(map[int]int),
	}
	if err := c.probe(); err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

type container struct {
	log     *slog.Logger
	f       *os.File
	rd      *mpegts.Reader
	streams []media.StreamInfo
	byPID   map[uint16]int
	probed  map[int]int
	pending []media.Packet
}

func (c *container) probe() error {
	for range maxProbeUnits {
		u, err := c.rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		if u.PMT != nil && c.streams == nil {
			c.addStreams(u.PMT)
			continue
		}
		if u.PES == nil {
			continue
		}
		idx, ok := c.byPID[u.PID]
		if !ok {
			continue
		}
		c.inspect(idx, u.PES)
		c.pending = append(c.pending, packetFor(idx, u.PES))
		if c.discovered() {
			break
		}
	}

	if c.streams == nil {
		return ErrNoProgram
	}
	for _, s := range c.streams {
		c.log.Info("stream discovered", "index", s.Index, "kind", s.Kind, "codec", s.Codec,
			"startPTS", s.StartPTS, "width", s.Width, "height", s.Height,
			"sampleRate", s.SampleRate, "channels", s.Channels)
	}
	return nil
}

func (c *container) addStreams(pmt *mpegts.PMT) {
	c.streams = []media.StreamInfo{}
	for _, es := range pmt.Streams {
		info := media.StreamInfo{
			Index:    len(c.streams),
			TimeBase: timeBase90k,
			StartPTS: media.NoPTS,
		}
		switch es.Type {
		case mpegts.StreamTypeH264:
			info.Kind, info.Codec = media.KindVideo, "h264"
		case mpegts.StreamTypeH265:
			info.Kind, info.Codec = media.KindVideo, "hevc"
		case mpegts.StreamTypeAAC:
			info.Kind, info.Codec = media.KindAudio, "aac"
		default:
			c.log.Debug("ignoring elementary stream", "pid", es.PID, "type", fmt.Sprintf("0x%02X", es.Type))
			continue
		}
		c.byPID[es.PID] = info.Index
		c.streams = append(c.streams, info)
	}
}

// inspect records the earliest PTS and the codec parameters found in a
// probed PES.
func (c *container) inspect(idx int, pes *mpegts.PES) {
	s := &c.streams[idx]
	c.probed[idx]++
	if pes.HasPTS && (s.StartPTS == media.NoPTS || pes.PTS < s.StartPTS) {
		s.StartPTS = pes.PTS
	}

	switch {
	case s.Kind == media.KindAudio && s.SampleRate == 0:
		if frames, _ := ParseADTS(pes.Data); len(frames) > 0 {
			s.SampleRate, s.Channels = frames[0].SampleRate, frames[0].Channels
		}
	case s.Codec == "h264" && s.Width == 0:
		for _, nal := range ParseAnnexB(pes.Data) {
			if nal.Type == NALTypeSPS {
				if sps, err := ParseSPS(nal.Data); err == nil {
					s.Width, s.Height = sps.Width, sps.Height
				}
			}
		}
	case s.Codec == "hevc" && s.Width == 0:
		for _, nal := range ParseAnnexBHEVC(pes.Data) {
			if nal.Type == HEVCNALSPS {
				if sps, err := ParseHEVCSPS(nal.Data); err == nil {
					s.Width, s.Height = sps.Width, sps.Height
				}
			}
		}
	}
}

func (c *container) discovered() bool {
	for i := range c.streams {
		if c.probed[i] < probePackets {
			return false
		}
	}
	return true
}

func packetFor(idx int, pes *mpegts.PES) media.Packet {
	pkt := media.Packet{StreamIndex: idx, PTS: media.NoPTS, DTS: media.NoPTS, Data: pes.Data}
	if pes.HasPTS {
		pkt.PTS, pkt.DTS = pes.PTS, pes.PTS
	}
	if pes.HasDTS {
		pkt.DTS = pes.DTS
	}
	return pkt
}

func (c *container) Streams() []media.StreamInfo {
	return c.streams
}

func (c *container) ReadPacket() (media.Packet, error) {
	if len(c.pending) > 0 {
		pkt := c.pending[0]
		c.pending = c.pending[1:]
		return pkt, nil
	}
	for {
		u, err := c.rd.Next()
		if err != nil {
			return media.Packet{}, err
		}
		if u.PES == nil {
			continue
		}
		if idx, ok := c.byPID[u.PID]; ok {
			return packetFor(idx, u.PES), nil
		}
	}
}

func (c *container) NewDecoder(info media.StreamInfo) (codec.Decoder, error) {
	switch info.Codec {
	case "h264", "hevc":
		return newVideoDecoder(info), nil
	case "aac":
		return newAudioDecoder(info), nil
	default:
		return nil, fmt.Errorf("demux: unsupported codec %q", info.Codec)
	}
}

func (c *container) Close() error {
	return c.f.Close()
}
