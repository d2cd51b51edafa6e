package mpegts

import "sort"

// pidAssembler collects the packets of one PID until a unit is complete:
// a new unit start for PES, or a full section for PSI.
type pidAssembler struct {
	pid     uint16
	psi     func(pid uint16) bool
	packets []*Packet
}

// add buffers p and returns the packets of a completed unit, if any.
func (a *pidAssembler) add(p *Packet) []*Packet {
	if p.TransportError {
		a.packets = nil
		return nil
	}
	if !p.HasPayload {
		return nil
	}

	if n := len(a.packets); n > 0 && !p.Discontinuity {
		prev := a.packets[n-1].ContinuityCounter
		switch p.ContinuityCounter {
		case (prev + 1) & maxCC:
		case prev:
			return nil // retransmitted packet
		default:
			a.packets = nil
		}
	}

	var done []*Packet
	if p.UnitStart && len(a.packets) > 0 {
		done = a.packets
		a.packets = nil
	}

	// A unit must begin at a unit start; orphaned continuations are dropped.
	if !p.UnitStart && len(a.packets) == 0 {
		return done
	}
	a.packets = append(a.packets, p)

	if done == nil && a.psi(a.pid) && sectionsComplete(joinPayloads(a.packets)) {
		done = a.packets
		a.packets = nil
	}
	return done
}

func (a *pidAssembler) flush() []*Packet {
	done := a.packets
	a.packets = nil
	return done
}

func joinPayloads(packets []*Packet) []byte {
	n := 0
	for _, p := range packets {
		n += len(p.Payload)
	}
	out := make([]byte, 0, n)
	for _, p := range packets {
		out = append(out, p.Payload...)
	}
	return out
}

// sectionsComplete reports whether a PSI payload (pointer field first)
// holds every section it announces.
func sectionsComplete(payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	off := 1 + int(payload[0])
	if off >= len(payload) {
		return false
	}
	for off < len(payload) {
		if payload[off] == 0xFF {
			return true
		}
		if off+3 > len(payload) {
			return false
		}
		if payload[off+1]&0x80 == 0 {
			return true
		}
		off += 3 + sectionLength(payload[off:])
		if off > len(payload) {
			return false
		}
	}
	return true
}

func sectionLength(section []byte) int {
	return int(section[1]&0x0F)<<8 | int(section[2])
}

// assemblers holds one pidAssembler per PID seen.
type assemblers struct {
	byPID map[uint16]*pidAssembler
	psi   func(pid uint16) bool
}

func newAssemblers(psi func(pid uint16) bool) *assemblers {
	return &assemblers{byPID: make(map[uint16]*pidAssembler), psi: psi}
}

func (as *assemblers) add(p *Packet) []*Packet {
	a, ok := as.byPID[p.PID]
	if !ok {
		a = &pidAssembler{pid: p.PID, psi: as.psi}
		as.byPID[p.PID] = a
	}
	return a.add(p)
}

// flushAll returns every partially assembled unit, PAT first and then in
// PID order.
func (as *assemblers) flushAll() [][]*Packet {
	pids := make([]int, 0, len(as.byPID))
	for pid := range as.byPID {
		pids = append(pids, int(pid))
	}
	sort.Ints(pids)

	var out [][]*Packet
	for _, pid := range pids {
		if packets := as.byPID[uint16(pid)].flush(); len(packets) > 0 {
			out = append(out, packets)
		}
	}
	return out
}
