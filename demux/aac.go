package demux

import "errors"

// ErrInvalidADTS is returned when an ADTS header is malformed.
var ErrInvalidADTS = errors.New("demux: invalid ADTS header")

// AACSamplesPerFrame is the sample count of one AAC-LC raw data block.
const AACSamplesPerFrame = 1024

// AAC sampling frequency table (ISO 14496-3).
var aacSampleRates = [...]int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 7350,
}

// AACFrame is one ADTS frame split into header fields and raw payload.
type AACFrame struct {
	Profile    int // audio object type minus one
	SampleRate int
	Channels   int
	Payload    []byte // raw_data_block, ADTS header stripped
}

// ParseADTS splits an ADTS byte stream into frames. Bytes before a sync
// word are skipped; a truncated trailing frame is ignored. Payloads alias
// data.
func ParseADTS(data []byte) ([]AACFrame, error) {
	var frames []AACFrame
	for off := 0; len(data)-off >= 7; {
		h := data[off:]
		if h[0] != 0xFF || h[1]&0xF0 != 0xF0 {
			off++
			continue
		}

		headerLen := 7
		if h[1]&0x01 == 0 {
			headerLen = 9 // CRC present
		}
		rateIdx := int(h[2] >> 2 & 0x0F)
		if rateIdx >= len(aacSampleRates) {
			return frames, ErrInvalidADTS
		}
		frameLen := int(h[3]&0x03)<<11 | int(h[4])<<3 | int(h[5]>>5)
		if frameLen < headerLen || frameLen > len(h) {
			break
		}

		frames = append(frames, AACFrame{
			Profile:    int(h[2] >> 6),
			SampleRate: aacSampleRates[rateIdx],
			Channels:   int(h[2]&0x01)<<2 | int(h[3]>>6),
			Payload:    h[headerLen:frameLen],
		})
		off += frameLen
	}
	return frames, nil
}
