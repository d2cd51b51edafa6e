package mpegts

import "fmt"

const (
	packetSize  = 188
	syncByte    = 0x47
	pidPAT      = 0x0000
	pidNull     = 0x1FFF
	maxCC uint8 = 0x0F
)

// parsePacket decodes one transport packet. The payload is copied, so buf
// can be reused by the caller.
func parsePacket(buf []byte) (*Packet, error) {
	if len(buf) != packetSize {
		return nil, fmt.Errorf("mpegts: packet size %d, expected %d", len(buf), packetSize)
	}
	if buf[0] != syncByte {
		return nil, fmt.Errorf("mpegts: invalid sync byte 0x%02X", buf[0])
	}

	p := &Packet{
		TransportError:    buf[1]&0x80 != 0,
		UnitStart:         buf[1]&0x40 != 0,
		PID:               uint16(buf[1]&0x1F)<<8 | uint16(buf[2]),
		HasAdaptation:     buf[3]&0x20 != 0,
		HasPayload:        buf[3]&0x10 != 0,
		ContinuityCounter: buf[3] & maxCC,
	}

	start := 4
	if p.HasAdaptation {
		afLen := int(buf[4])
		if afLen > 0 {
			p.Discontinuity = buf[5]&0x80 != 0
		}
		start = min(5+afLen, packetSize)
	}

	if p.HasPayload && start < packetSize {
		p.Payload = append([]byte(nil), buf[start:]...)
	}
	return p, nil
}
