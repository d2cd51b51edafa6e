package demux

import "errors"

var (
	errShortNAL   = errors.New("demux: NAL unit too short")
	errExpGolomb  = errors.New("demux: exp-Golomb code too long")
)

// bitReader reads MSB-first bit fields from an RBSP. The first failure is
// sticky: later reads return zero and err keeps the original cause, so
// parsers check err once per logical section.
type bitReader struct {
	data []byte
	pos  int
	err  error
}

func (br *bitReader) bits(n int) uint {
	var v uint
	for range n {
		if br.err != nil {
			return 0
		}
		i := br.pos >> 3
		if i >= len(br.data) {
			br.err = errShortNAL
			return 0
		}
		v = v<<1 | uint(br.data[i]>>(7-br.pos&7)&1)
		br.pos++
	}
	return v
}

func (br *bitReader) skip(n int) { br.bits(n) }

func (br *bitReader) flag() bool { return br.bits(1) == 1 }

// ue reads an unsigned exp-Golomb value.
func (br *bitReader) ue() uint {
	zeros := 0
	for br.bits(1) == 0 {
		if br.err != nil {
			return 0
		}
		if zeros++; zeros > 31 {
			br.err = errExpGolomb
			return 0
		}
	}
	if zeros == 0 {
		return 0
	}
	return 1<<zeros - 1 + br.bits(zeros)
}

// se reads a signed exp-Golomb value.
func (br *bitReader) se() int {
	v := br.ue()
	if v%2 == 0 {
		return -int(v / 2)
	}
	return int(v/2) + 1
}

// unescapeRBSP strips emulation prevention bytes (00 00 03 -> 00 00).
func unescapeRBSP(data []byte) []byte {
	out := make([]byte, 0, len(data))
	zeros := 0
	for _, b := range data {
		if zeros >= 2 && b == 0x03 {
			zeros = 0
			continue
		}
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, b)
	}
	return out
}

// NALUnit is one NAL unit from an Annex B stream.
type NALUnit struct {
	Type byte   // 5-bit H.264 or 6-bit H.265 type
	Data []byte // NAL header and payload, without start code
}

// splitAnnexB returns the NAL units between 3- or 4-byte start codes. The
// returned slices alias data.
func splitAnnexB(data []byte, headerLen int, nalType func([]byte) byte) []NALUnit {
	var starts, ends []int
	for i := 0; i+2 < len(data); {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			end := i
			if end > 0 && data[end-1] == 0 {
				end--
			}
			if len(starts) > 0 {
				ends = append(ends, end)
			}
			starts = append(starts, i+3)
			i += 3
			continue
		}
		i++
	}
	ends = append(ends, len(data))

	var units []NALUnit
	for k, s := range starts {
		nal := data[s:ends[k]]
		if len(nal) < headerLen {
			continue
		}
		units = append(units, NALUnit{Type: nalType(nal), Data: nal})
	}
	return units
}
