package demux

import (
	"fmt"
	"io"

	"github.com/zsiec/framepace/codec"
	"github.com/zsiec/framepace/media"
)

// videoDecoder turns each PES access unit into one frame. Output storage
// is reused between frames.
type videoDecoder struct {
	hevc     bool
	width    int
	height   int
	captions *captionDecoder

	frame    codec.RawFrame
	scratch  []byte
	ready    bool
	draining bool
}

func newVideoDecoder(info media.StreamInfo) *videoDecoder {
	d := &videoDecoder{
		hevc:   info.Codec == "hevc",
		width:  info.Width,
		height: info.Height,
	}
	if !d.hevc {
		d.captions = newCaptionDecoder()
	}
	return d
}

func (d *videoDecoder) SendPacket(pkt *media.Packet) error {
	if d.ready {
		return codec.ErrAgain
	}
	if pkt == nil {
		d.draining = true
		return nil
	}
	if d.draining {
		return fmt.Errorf("demux: packet sent after drain")
	}

	var nalus []NALUnit
	if d.hevc {
		nalus = ParseAnnexBHEVC(pkt.Data)
	} else {
		nalus = ParseAnnexB(pkt.Data)
	}
	if len(nalus) == 0 {
		return fmt.Errorf("demux: no NAL units in %d-byte access unit", len(pkt.Data))
	}

	keyframe := false
	captions := d.frame.Captions[:0]
	if d.captions != nil {
		d.captions.nextFrame()
	}
	for _, nal := range nalus {
		if d.hevc {
			switch {
			case nal.Type == HEVCNALSPS:
				if info, err := ParseHEVCSPS(nal.Data); err == nil {
					d.width, d.height = info.Width, info.Height
				}
			case IsHEVCKeyframe(nal.Type):
				keyframe = true
			}
			continue
		}
		switch nal.Type {
		case NALTypeSPS:
			if info, err := ParseSPS(nal.Data); err == nil {
				d.width, d.height = info.Width, info.Height
			}
		case NALTypeIDR:
			keyframe = true
		case NALTypeSEI:
			captions = d.captions.decode(nal.Data, captions)
		}
	}

	d.scratch = append(d.scratch[:0], pkt.Data...)
	format := "h264"
	if d.hevc {
		format = "hevc"
	}
	d.frame = codec.RawFrame{
		Kind:     media.KindVideo,
		PTS:      pkt.PTS,
		Format:   format,
		Keyframe: keyframe || pkt.Keyframe,
		Width:    d.width,
		Height:   d.height,
		Data:     d.scratch,
		Captions: captions,
	}
	d.ready = true
	return nil
}

func (d *videoDecoder) ReceiveFrame() (*codec.RawFrame, error) {
	if d.ready {
		d.ready = false
		return &d.frame, nil
	}
	if d.draining {
		return nil, io.EOF
	}
	return nil, codec.ErrAgain
}

func (d *videoDecoder) Close() error { return nil }

// audioDecoder splits each PES into its ADTS frames. Timestamps of the
// second and later frames are extrapolated from the PES PTS.
type audioDecoder struct {
	timeBase media.Rational

	frames   []AACFrame
	pts      int64
	next     int
	scratch  []byte
	frame    codec.RawFrame
	draining bool
}

func newAudioDecoder(info media.StreamInfo) *audioDecoder {
	return &audioDecoder{timeBase: info.TimeBase}
}

func (d *audioDecoder) SendPacket(pkt *media.Packet) error {
	if d.next < len(d.frames) {
		return codec.ErrAgain
	}
	if pkt == nil {
		d.draining = true
		return nil
	}

	// Parse a private copy so payloads outlive the packet.
	d.scratch = append(d.scratch[:0], pkt.Data...)
	frames, err := ParseADTS(d.scratch)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("demux: no ADTS frames in %d-byte packet", len(pkt.Data))
	}
	d.frames = frames
	d.next = 0
	d.pts = pkt.PTS
	return nil
}

func (d *audioDecoder) ReceiveFrame() (*codec.RawFrame, error) {
	if d.next >= len(d.frames) {
		if d.draining {
			return nil, io.EOF
		}
		return nil, codec.ErrAgain
	}

	f := d.frames[d.next]
	pts := d.pts
	if pts != media.NoPTS && f.SampleRate > 0 && d.timeBase.Valid() {
		// n blocks of 1024 samples, expressed in the stream time base.
		samples := int64(d.next) * AACSamplesPerFrame
		pts += samples * d.timeBase.Den / (int64(f.SampleRate) * d.timeBase.Num)
	}
	d.next++

	d.frame = codec.RawFrame{
		Kind:       media.KindAudio,
		PTS:        pts,
		Format:     "aac",
		SampleRate: f.SampleRate,
		Channels:   f.Channels,
		Samples:    AACSamplesPerFrame,
		Data:       f.Payload,
	}
	return &d.frame, nil
}

func (d *audioDecoder) Close() error { return nil }
