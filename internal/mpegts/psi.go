package mpegts

import (
	"errors"
	"fmt"
)

const (
	tableIDPAT = 0x00
	tableIDPMT = 0x02
)

var (
	errShortSection = errors.New("mpegts: section too short")
	errCRC          = errors.New("mpegts: CRC32 mismatch")
)

// parseSections walks a PSI payload (pointer field first) and returns one
// Unit per PAT or PMT section. Other tables are skipped.
func parseSections(pid uint16, payload []byte) ([]*Unit, error) {
	if len(payload) == 0 {
		return nil, errShortSection
	}
	off := 1 + int(payload[0])
	if off >= len(payload) {
		return nil, fmt.Errorf("mpegts: pointer field %d out of range", payload[0])
	}

	var units []*Unit
	for off+3 <= len(payload) {
		if payload[off] == 0xFF || payload[off+1]&0x80 == 0 {
			break
		}
		end := off + 3 + sectionLength(payload[off:])
		if end > len(payload) {
			break
		}
		section := payload[off:end]
		off = end

		switch section[0] {
		case tableIDPAT:
			pat, err := parsePAT(section)
			if err != nil {
				return units, err
			}
			units = append(units, &Unit{PID: pid, PAT: pat})
		case tableIDPMT:
			pmt, err := parsePMT(section)
			if err != nil {
				return units, err
			}
			units = append(units, &Unit{PID: pid, PMT: pmt})
		}
	}
	return units, nil
}

// parsePAT decodes a complete PAT section, CRC included. Program 0 points
// at the network PID and is skipped.
func parsePAT(section []byte) (*PAT, error) {
	if len(section) < 12 {
		return nil, fmt.Errorf("PAT: %w", errShortSection)
	}
	if crc32MPEG(section) != 0 {
		return nil, fmt.Errorf("PAT: %w", errCRC)
	}

	pat := &PAT{TransportStreamID: be16(section[3:])}
	entries := section[8 : len(section)-4]
	for i := 0; i+4 <= len(entries); i += 4 {
		num := be16(entries[i:])
		if num == 0 {
			continue
		}
		pat.Programs = append(pat.Programs, Program{
			Number: num,
			PMTPID: be16(entries[i+2:]) & 0x1FFF,
		})
	}
	return pat, nil
}

// parsePMT decodes a complete PMT section, CRC included.
func parsePMT(section []byte) (*PMT, error) {
	if len(section) < 16 {
		return nil, fmt.Errorf("PMT: %w", errShortSection)
	}
	if crc32MPEG(section) != 0 {
		return nil, fmt.Errorf("PMT: %w", errCRC)
	}

	pmt := &PMT{
		ProgramNumber: be16(section[3:]),
		PCRPID:        be16(section[8:]) & 0x1FFF,
	}
	end := len(section) - 4
	off := 12 + int(be16(section[10:])&0x0FFF)
	for off+5 <= end {
		pmt.Streams = append(pmt.Streams, ElementaryStream{
			Type: section[off],
			PID:  be16(section[off+1:]) & 0x1FFF,
		})
		off += 5 + int(be16(section[off+3:])&0x0FFF)
	}
	return pmt, nil
}

func be16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}
