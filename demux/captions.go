package demux

import "github.com/zsiec/ccx"

// captionDecoder turns CEA-608 byte pairs carried in H.264 SEI into display
// text, one decoder per caption channel (CC1-CC4).
type captionDecoder struct {
	channels map[int]*ccx.CEA608Decoder

	// Control codes are transmitted twice; the repeat is dropped when it
	// arrives within two frames of the original on the same field.
	lastCtrl      [2][2]byte
	lastWasCtrl   [2]bool
	lastCtrlFrame [2]int64
	frame         int64
}

func newCaptionDecoder() *captionDecoder {
	return &captionDecoder{
		channels: map[int]*ccx.CEA608Decoder{
			1: ccx.NewCEA608Decoder(),
			2: ccx.NewCEA608Decoder(),
			3: ccx.NewCEA608Decoder(),
			4: ccx.NewCEA608Decoder(),
		},
	}
}

// nextFrame marks the start of a new video frame for repeat detection.
func (c *captionDecoder) nextFrame() { c.frame++ }

// decode appends any caption text completed by the SEI NAL unit to out.
func (c *captionDecoder) decode(sei []byte, out []string) []string {
	cd := ccx.ExtractCaptions(sei)
	if cd == nil {
		return out
	}

	for _, pair := range cd.CC608Pairs {
		cc1, cc2 := pair.Data[0], pair.Data[1]
		f := pair.Field
		if f < 0 || f > 1 {
			continue
		}

		if cc1 >= 0x10 && cc1 <= 0x1F {
			code := [2]byte{cc1, cc2}
			if c.lastWasCtrl[f] && c.lastCtrl[f] == code && c.frame-c.lastCtrlFrame[f] <= 2 {
				c.lastWasCtrl[f] = false
				continue
			}
			c.lastCtrl[f] = code
			c.lastWasCtrl[f] = true
			c.lastCtrlFrame[f] = c.frame
		} else {
			c.lastWasCtrl[f] = false
		}

		dec := c.channels[pair.Channel]
		if dec == nil {
			continue
		}
		if text := dec.Decode(cc1, cc2); text != "" {
			out = append(out, text)
		}
	}
	return out
}
