package mpegts

import (
	"context"
	"errors"
	"io"
)

// Reader produces PAT, PMT and PES units from a transport stream. Corrupt
// packets and sections are skipped; Next only fails on read errors and
// context cancellation.
type Reader struct {
	ctx     context.Context
	r       io.Reader
	buf     []byte
	asm     *assemblers
	pmtPIDs map[uint16]bool
	pending []*Unit
	eof     bool

	skipped int64
}

// NewReader returns a Reader consuming r. ctx bounds every Next call.
func NewReader(ctx context.Context, r io.Reader) *Reader {
	rd := &Reader{
		ctx:     ctx,
		r:       r,
		buf:     make([]byte, packetSize),
		pmtPIDs: make(map[uint16]bool),
	}
	rd.asm = newAssemblers(rd.isPSI)
	return rd
}

func (rd *Reader) isPSI(pid uint16) bool {
	return pid == pidPAT || rd.pmtPIDs[pid]
}

// Skipped returns how many packets or units were discarded as corrupt.
func (rd *Reader) Skipped() int64 {
	return rd.skipped
}

// Next returns the next unit, or io.EOF once the stream and every partially
// assembled unit have been consumed.
func (rd *Reader) Next() (*Unit, error) {
	for {
		if len(rd.pending) > 0 {
			u := rd.pending[0]
			rd.pending = rd.pending[1:]
			return u, nil
		}
		if rd.eof {
			return nil, io.EOF
		}
		if err := rd.ctx.Err(); err != nil {
			return nil, err
		}

		if _, err := io.ReadFull(rd.r, rd.buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				rd.eof = true
				for _, packets := range rd.asm.flushAll() {
					rd.emit(packets)
				}
				continue
			}
			return nil, err
		}

		p, err := parsePacket(rd.buf)
		if err != nil {
			rd.skipped++
			continue
		}
		if p.PID == pidNull {
			continue
		}
		if packets := rd.asm.add(p); packets != nil {
			rd.emit(packets)
		}
	}
}

// emit parses a completed unit and queues the results.
func (rd *Reader) emit(packets []*Packet) {
	pid := packets[0].PID
	payload := joinPayloads(packets)
	if len(payload) == 0 {
		return
	}

	if rd.isPSI(pid) {
		units, err := parseSections(pid, payload)
		if err != nil {
			rd.skipped++
		}
		for _, u := range units {
			if u.PAT != nil {
				for _, prog := range u.PAT.Programs {
					rd.pmtPIDs[prog.PMTPID] = true
				}
			}
		}
		rd.pending = append(rd.pending, units...)
		return
	}

	if !hasStartCode(payload) {
		return
	}
	pes, err := parsePES(payload)
	if err != nil {
		rd.skipped++
		return
	}
	rd.pending = append(rd.pending, &Unit{PID: pid, PES: pes})
}
