package ffmpeg

import (
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"

	"github.com/zsiec/framepace/codec"
	"github.com/zsiec/framepace/media"
)

type decoder struct {
	info  media.StreamInfo
	cc    *astiav.CodecContext
	pkt   *astiav.Packet
	frame *astiav.Frame
	raw   codec.RawFrame
}

func newDecoder(par *astiav.CodecParameters, info media.StreamInfo) (*decoder, error) {
	dec := astiav.FindDecoder(par.CodecID())
	if dec == nil {
		return nil, fmt.Errorf("ffmpeg: no decoder for %s", par.CodecID())
	}
	cc := astiav.AllocCodecContext(dec)
	if cc == nil {
		return nil, errors.New("ffmpeg: allocating codec context failed")
	}
	if err := par.ToCodecContext(cc); err != nil {
		cc.Free()
		return nil, fmt.Errorf("ffmpeg: copying codec parameters failed: %w", err)
	}
	if err := cc.Open(dec, nil); err != nil {
		cc.Free()
		return nil, fmt.Errorf("ffmpeg: opening %s decoder failed: %w", dec.Name(), err)
	}
	return &decoder{
		info:  info,
		cc:    cc,
		pkt:   astiav.AllocPacket(),
		frame: astiav.AllocFrame(),
	}, nil
}

// mapErr translates FFmpeg's EAGAIN and EOF into the codec contract.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, astiav.ErrEagain):
		return codec.ErrAgain
	case errors.Is(err, astiav.ErrEof):
		return io.EOF
	default:
		return err
	}
}

func (d *decoder) SendPacket(pkt *media.Packet) error {
	if pkt == nil {
		return mapErr(d.cc.SendPacket(nil))
	}

	d.pkt.Unref()
	if err := d.pkt.FromData(pkt.Data); err != nil {
		return fmt.Errorf("ffmpeg: packet from data: %w", err)
	}
	d.pkt.SetPts(toAV(pkt.PTS))
	d.pkt.SetDts(toAV(pkt.DTS))
	d.pkt.SetStreamIndex(pkt.StreamIndex)
	return mapErr(d.cc.SendPacket(d.pkt))
}

func (d *decoder) ReceiveFrame() (*codec.RawFrame, error) {
	d.frame.Unref()
	if err := d.cc.ReceiveFrame(d.frame); err != nil {
		return nil, mapErr(err)
	}

	data, err := d.frame.Data().Bytes(1)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: frame data: %w", err)
	}

	d.raw = codec.RawFrame{
		Kind: d.info.Kind,
		PTS:  fromAV(d.frame.Pts()),
		Data: data,
	}
	switch d.info.Kind {
	case media.KindVideo:
		d.raw.Format = d.frame.PixelFormat().String()
		d.raw.Width, d.raw.Height = d.frame.Width(), d.frame.Height()
		d.raw.Keyframe = d.frame.PictureType() == astiav.PictureTypeI
	case media.KindAudio:
		d.raw.Format = d.frame.SampleFormat().String()
		d.raw.SampleRate = d.frame.SampleRate()
		d.raw.Channels = d.frame.ChannelLayout().Channels()
		d.raw.Samples = d.frame.NbSamples()
	}
	return &d.raw, nil
}

func (d *decoder) Close() error {
	d.frame.Free()
	d.pkt.Free()
	d.cc.Free()
	return nil
}
