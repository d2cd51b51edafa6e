package mpegts

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriterStream declares one elementary stream for a Writer's PMT.
type WriterStream struct {
	PID  uint16
	Type uint8
}

// Writer muxes PES packets into a single-program transport stream. The
// first stream carries the PCR. Writer is not safe for concurrent use.
type Writer struct {
	w       io.Writer
	pmtPID  uint16
	streams []WriterStream
	cc      map[uint16]uint8
	pkt     [packetSize]byte
}

// NewWriter returns a Writer for program 1 with its PMT on pmtPID.
func NewWriter(w io.Writer, pmtPID uint16, streams ...WriterStream) *Writer {
	return &Writer{
		w:       w,
		pmtPID:  pmtPID,
		streams: streams,
		cc:      make(map[uint16]uint8),
	}
}

// WriteTables writes one PAT and one PMT.
func (w *Writer) WriteTables() error {
	if err := w.writeSection(pidPAT, w.patSection()); err != nil {
		return err
	}
	return w.writeSection(w.pmtPID, w.pmtSection())
}

func (w *Writer) patSection() []byte {
	s := []byte{tableIDPAT, 0, 0, 0x00, 0x01, 0xC1, 0x00, 0x00}
	s = binary.BigEndian.AppendUint16(s, 1)
	s = binary.BigEndian.AppendUint16(s, 0xE000|w.pmtPID)
	return finishSection(s)
}

func (w *Writer) pmtSection() []byte {
	var pcrPID uint16 = pidNull
	if len(w.streams) > 0 {
		pcrPID = w.streams[0].PID
	}
	s := []byte{tableIDPMT, 0, 0, 0x00, 0x01, 0xC1, 0x00, 0x00}
	s = binary.BigEndian.AppendUint16(s, 0xE000|pcrPID)
	s = binary.BigEndian.AppendUint16(s, 0xF000)
	for _, st := range w.streams {
		s = append(s, st.Type)
		s = binary.BigEndian.AppendUint16(s, 0xE000|st.PID)
		s = binary.BigEndian.AppendUint16(s, 0xF000)
	}
	return finishSection(s)
}

// finishSection fills in section_length and appends the CRC.
func finishSection(s []byte) []byte {
	n := len(s) - 3 + 4
	s[1] = 0xB0 | byte(n>>8)&0x0F
	s[2] = byte(n)
	return binary.BigEndian.AppendUint32(s, crc32MPEG(s))
}

func (w *Writer) writeSection(pid uint16, section []byte) error {
	payload := append([]byte{0x00}, section...)
	if len(payload) > packetSize-4 {
		return fmt.Errorf("mpegts: section of %d bytes does not fit one packet", len(section))
	}
	w.header(pid, true, false)
	n := copy(w.pkt[4:], payload)
	for i := 4 + n; i < packetSize; i++ {
		w.pkt[i] = 0xFF
	}
	_, err := w.w.Write(w.pkt[:])
	return err
}

// WritePES writes data as one PES packet on pid. pts < 0 omits the
// timestamp.
func (w *Writer) WritePES(pid uint16, streamID uint8, pts int64, data []byte) error {
	hdr := []byte{0x00, 0x00, 0x01, streamID, 0, 0, 0x80, 0x00, 0x00}
	if pts >= 0 {
		hdr[7] = 0x80
		hdr[8] = 5
		hdr = append(hdr, encodeTimestamp(0x2, pts)...)
	}
	if n := len(hdr) - 6 + len(data); n <= 0xFFFF && streamID != StreamIDVideo {
		binary.BigEndian.PutUint16(hdr[4:], uint16(n))
	}

	payload := append(hdr, data...)
	first := true
	for len(payload) > 0 {
		n := w.packetize(pid, first, payload)
		if _, err := w.w.Write(w.pkt[:]); err != nil {
			return err
		}
		payload = payload[n:]
		first = false
	}
	return nil
}

// packetize fills w.pkt with as much of payload as fits, padding the last
// packet with adaptation-field stuffing. It returns the bytes consumed.
func (w *Writer) packetize(pid uint16, unitStart bool, payload []byte) int {
	const room = packetSize - 4
	if len(payload) >= room {
		w.header(pid, unitStart, false)
		return copy(w.pkt[4:], payload[:room])
	}

	w.header(pid, unitStart, true)
	afLen := room - 1 - len(payload)
	w.pkt[4] = byte(afLen)
	if afLen > 0 {
		w.pkt[5] = 0x00
		for i := 6; i < 5+afLen; i++ {
			w.pkt[i] = 0xFF
		}
	}
	return copy(w.pkt[5+afLen:], payload)
}

func (w *Writer) header(pid uint16, unitStart, adaptation bool) {
	cc := w.cc[pid]
	w.cc[pid] = (cc + 1) & maxCC

	w.pkt[0] = syncByte
	w.pkt[1] = byte(pid>>8) & 0x1F
	if unitStart {
		w.pkt[1] |= 0x40
	}
	w.pkt[2] = byte(pid)
	w.pkt[3] = 0x10 | cc
	if adaptation {
		w.pkt[3] |= 0x20
	}
}
