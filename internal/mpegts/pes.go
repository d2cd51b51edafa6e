package mpegts

import "fmt"

func hasStartCode(b []byte) bool {
	return len(b) >= 3 && b[0] == 0x00 && b[1] == 0x00 && b[2] == 0x01
}

// hasOptionalHeader reports whether a PES stream id carries the optional
// header with timestamp flags.
func hasOptionalHeader(streamID uint8) bool {
	switch streamID {
	case 0xBC, 0xBE, 0xBF, 0xF0, 0xF1, 0xF2, 0xF8, 0xFF:
		return false
	}
	return true
}

func parsePES(payload []byte) (*PES, error) {
	if len(payload) < 6 {
		return nil, fmt.Errorf("mpegts: PES packet too short (%d bytes)", len(payload))
	}
	if !hasStartCode(payload) {
		return nil, fmt.Errorf("mpegts: invalid PES start code")
	}

	pes := &PES{StreamID: payload[3]}
	end := len(payload)
	if n := int(be16(payload[4:])); n > 0 && 6+n < end {
		end = 6 + n
	}

	if !hasOptionalHeader(pes.StreamID) {
		pes.Data = payload[6:end]
		return pes, nil
	}
	if len(payload) < 9 {
		return nil, fmt.Errorf("mpegts: PES optional header too short")
	}

	flags := payload[7] >> 6
	start := min(9+int(payload[8]), end)

	if flags&0x2 != 0 && len(payload) >= 14 {
		pes.PTS, pes.HasPTS = decodeTimestamp(payload[9:14]), true
	}
	if flags == 0x3 && len(payload) >= 19 {
		pes.DTS, pes.HasDTS = decodeTimestamp(payload[14:19]), true
	}

	pes.Data = payload[start:end]
	return pes, nil
}

// decodeTimestamp unpacks a 33-bit PTS/DTS from its 5-byte marker-bit form.
func decodeTimestamp(b []byte) int64 {
	return int64(b[0]>>1&0x07)<<30 |
		int64(b[1])<<22 |
		int64(b[2]>>1)<<15 |
		int64(b[3])<<7 |
		int64(b[4]>>1)
}

// encodeTimestamp packs ts into the 5-byte form with the given 4-bit
// prefix (0x2 for PTS only, 0x3/0x1 for PTS/DTS pairs).
func encodeTimestamp(prefix byte, ts int64) []byte {
	return []byte{
		prefix<<4 | byte(ts>>29)&0x0E | 1,
		byte(ts >> 22),
		byte(ts>>14)&0xFE | 1,
		byte(ts >> 7),
		byte(ts<<1) | 1,
	}
}
