// Package ffmpeg is a codec.Backend on top of libavformat and libavcodec
// (through go-astiav). It opens anything FFmpeg can demux and produces
// decoded pictures and samples.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/asticode/go-astiav"

	"github.com/zsiec/framepace/codec"
	"github.com/zsiec/framepace/media"
)

var logOnce sync.Once

// Backend opens media with FFmpeg.
type Backend struct {
	log *slog.Logger
}

// NewBackend returns a Backend. FFmpeg's own log output is routed to log at
// debug level; if log is nil, slog.Default() is used.
func NewBackend(log *slog.Logger) *Backend {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "ffmpeg")
	logOnce.Do(func() {
		astiav.SetLogLevel(astiav.LogLevelWarning)
		astiav.SetLogCallback(func(_ astiav.Classer, l astiav.LogLevel, _, msg string) {
			log.Debug(strings.TrimSpace(msg), "avLevel", int(l))
		})
	})
	return &Backend{log: log}
}

func (b *Backend) Name() string { return "ffmpeg" }

// Open opens path and probes its streams. Cancelling ctx interrupts any
// blocking I/O inside FFmpeg for the lifetime of the container.
func (b *Backend) Open(ctx context.Context, path string) (codec.Container, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, errors.New("ffmpeg: allocating format context failed")
	}
	ii := fc.SetInterruptCallback()
	stop := context.AfterFunc(ctx, ii.Interrupt)

	if err := fc.OpenInput(path, nil, nil); err != nil {
		stop()
		fc.Free()
		return nil, fmt.Errorf("ffmpeg: opening input failed: %w", err)
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		stop()
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("ffmpeg: finding stream info failed: %w", err)
	}

	c := &container{
		log:  b.log.With("path", path),
		fc:   fc,
		stop: stop,
		pkt:  astiav.AllocPacket(),
	}
	for _, s := range fc.Streams() {
		info := streamInfo(s)
		c.streams = append(c.streams, info)
		c.log.Info("stream discovered", "index", info.Index, "kind", info.Kind, "codec", info.Codec,
			"timeBase", info.TimeBase, "startPTS", info.StartPTS)
	}
	return c, nil
}

func streamInfo(s *astiav.Stream) media.StreamInfo {
	par := s.CodecParameters()
	tb := s.TimeBase()
	info := media.StreamInfo{
		Index:    s.Index(),
		Codec:    par.CodecID().String(),
		TimeBase: media.Rational{Num: int64(tb.Num()), Den: int64(tb.Den())},
		StartPTS: fromAV(s.StartTime()),
	}
	switch par.MediaType() {
	case astiav.MediaTypeVideo:
		info.Kind = media.KindVideo
		info.Width, info.Height = par.Width(), par.Height()
	case astiav.MediaTypeAudio:
		info.Kind = media.KindAudio
		info.SampleRate = par.SampleRate()
		info.Channels = par.ChannelLayout().Channels()
	}
	return info
}

func fromAV(ts int64) int64 {
	if ts == astiav.NoPtsValue {
		return media.NoPTS
	}
	return ts
}

func toAV(ts int64) int64 {
	if ts == media.NoPTS {
		return astiav.NoPtsValue
	}
	return ts
}

type container struct {
	log     *slog.Logger
	fc      *astiav.FormatContext
	stop    func() bool
	pkt     *astiav.Packet
	streams []media.StreamInfo
}

func (c *container) Streams() []media.StreamInfo {
	return c.streams
}

func (c *container) ReadPacket() (media.Packet, error) {
	defer c.pkt.Unref()
	if err := c.fc.ReadFrame(c.pkt); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			return media.Packet{}, io.EOF
		}
		return media.Packet{}, fmt.Errorf("ffmpeg: reading frame failed: %w", err)
	}
	return media.Packet{
		StreamIndex: c.pkt.StreamIndex(),
		PTS:         fromAV(c.pkt.Pts()),
		DTS:         fromAV(c.pkt.Dts()),
		Data:        bytes.Clone(c.pkt.Data()),
	}, nil
}

func (c *container) NewDecoder(info media.StreamInfo) (codec.Decoder, error) {
	for _, s := range c.fc.Streams() {
		if s.Index() == info.Index {
			return newDecoder(s.CodecParameters(), info)
		}
	}
	return nil, fmt.Errorf("ffmpeg: no stream with index %d", info.Index)
}

func (c *container) Close() error {
	c.stop()
	c.pkt.Free()
	c.fc.CloseInput()
	c.fc.Free()
	return nil
}
