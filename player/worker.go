package player

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zsiec/framepace/codec"
	"github.com/zsiec/framepace/media"
)

// track pairs a selected stream's decoder with the lane it feeds.
type track struct {
	lane *lane
	info media.StreamInfo
	dec  codec.Decoder
}

// decode is the worker goroutine: open, discover, decode until end of
// stream or Stop. Fatal media errors go to the listener and end the worker;
// the returned error is informational.
func (s *Session) decode(r *run) error {
	ctx, span := s.tracer.Start(r.ctx, "player.decode", trace.WithAttributes(
		attribute.String("player.session", r.id),
		attribute.String("player.source", r.source),
	))
	defer span.End()
	// Dispatch loops must never wait on a gate nobody will open.
	defer r.openGate()

	r.setState(StateOpening)
	c, err := s.backend.Open(ctx, r.source)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return s.fail(r, span, &OpenError{Path: r.source, Err: err})
	}
	defer c.Close()

	r.setState(StateStreamDiscovery)
	tracks, err := s.selectTracks(r, c)
	for _, t := range tracks {
		defer t.dec.Close()
	}
	if err != nil {
		return s.fail(r, span, err)
	}

	byIndex := make(map[int]*track, len(tracks))
	for _, t := range tracks {
		t.lane.info = t.info
		t.lane.present = true
		byIndex[t.info.Index] = t
		r.log.Info("stream selected", "kind", t.info.Kind, "index", t.info.Index,
			"codec", t.info.Codec, "timeBase", t.info.TimeBase, "startPTS", t.info.StartPTS)
	}
	r.openGate()

	r.setState(StateDecoding)
	for {
		if ctx.Err() != nil {
			return nil
		}
		pkt, err := c.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return s.fail(r, span, fmt.Errorf("player: read packet: %w", err))
		}

		t, ok := byIndex[pkt.StreamIndex]
		if !ok {
			continue
		}
		if err := s.feed(ctx, r, t, &pkt); err != nil {
			return nil
		}
	}

	r.setState(StateDraining)
	for _, t := range tracks {
		if err := s.feed(ctx, r, t, nil); err != nil {
			return nil
		}
		if err := t.lane.q.Push(ctx, media.EndOfStream()); err != nil {
			return nil
		}
	}
	span.SetAttributes(
		attribute.Int64("player.video.decoded", r.video.decoded.Load()),
		attribute.Int64("player.audio.decoded", r.audio.decoded.Load()),
	)
	r.log.Info("end of stream", "videoDecoded", r.video.decoded.Load(), "audioDecoded", r.audio.decoded.Load())
	return nil
}

// selectTracks picks the first video and first audio stream and opens a
// decoder for each. Decoders opened before a failure are still returned so
// the caller can close them.
func (s *Session) selectTracks(r *run, c codec.Container) ([]*track, error) {
	var video, audio *media.StreamInfo
	streams := c.Streams()
	for i := range streams {
		switch {
		case streams[i].Kind == media.KindVideo && video == nil:
			video = &streams[i]
		case streams[i].Kind == media.KindAudio && audio == nil:
			audio = &streams[i]
		}
	}
	if video == nil {
		return nil, ErrNoVideoStream
	}

	var tracks []*track
	for _, sel := range []struct {
		info *media.StreamInfo
		lane *lane
	}{{video, r.video}, {audio, r.audio}} {
		if sel.info == nil {
			continue
		}
		dec, err := c.NewDecoder(*sel.info)
		if err != nil {
			return tracks, &CodecError{Stream: *sel.info, Err: err}
		}
		tracks = append(tracks, &track{lane: sel.lane, info: *sel.info, dec: dec})
	}
	return tracks, nil
}

// feed sends pkt to the track's decoder, or drains it when pkt is nil, and
// queues every frame that comes out. It fails only when ctx ends.
func (s *Session) feed(ctx context.Context, r *run, t *track, pkt *media.Packet) error {
	err := t.dec.SendPacket(pkt)
	if errors.Is(err, codec.ErrAgain) {
		if err := s.receive(ctx, r, t); err != nil {
			return err
		}
		err = t.dec.SendPacket(pkt)
	}
	if err != nil {
		t.lane.decodeErrors.Add(1)
		r.log.Debug("send packet", "kind", t.info.Kind, "error", err)
		if pkt != nil {
			return nil
		}
	}
	return s.receive(ctx, r, t)
}

func (s *Session) receive(ctx context.Context, r *run, t *track) error {
	for {
		raw, err := t.dec.ReceiveFrame()
		if errors.Is(err, codec.ErrAgain) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			t.lane.decodeErrors.Add(1)
			r.log.Debug("receive frame", "kind", t.info.Kind, "error", err)
			return nil
		}

		f := copyFrame(raw, t.info)
		if f == nil {
			t.lane.corrupt.Add(1)
			r.log.Debug("discarding corrupt frame", "kind", t.info.Kind, "pts", raw.PTS)
			continue
		}
		t.lane.decoded.Add(1)
		if err := t.lane.q.Push(ctx, media.FrameMessage(f)); err != nil {
			f.Release()
			return err
		}
	}
}

// copyFrame copies a decoder-owned frame into a pooled media.Frame. It
// returns nil for frames that cannot be presented.
func copyFrame(raw *codec.RawFrame, info media.StreamInfo) *media.Frame {
	if len(raw.Data) == 0 {
		return nil
	}
	if info.Kind == media.KindVideo && (raw.Width <= 0 || raw.Height <= 0) {
		return nil
	}

	f := media.NewFrame(info.Kind, len(raw.Data))
	copy(f.Data, raw.Data)
	f.PTS = raw.PTS
	f.TimeBase = info.TimeBase
	f.Format = raw.Format
	f.Keyframe = raw.Keyframe
	f.Width, f.Height = raw.Width, raw.Height
	f.SampleRate, f.Channels, f.Samples = raw.SampleRate, raw.Channels, raw.Samples
	if len(raw.Captions) > 0 {
		f.Captions = append([]string(nil), raw.Captions...)
	}
	return f
}

// fail records a fatal media error and reports it to the listener.
func (s *Session) fail(r *run, span trace.Span, err error) error {
	r.setState(StateError)
	r.setErr(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	r.log.Error("playback failed", "error", err)
	s.notifyError(err)
	return err
}
