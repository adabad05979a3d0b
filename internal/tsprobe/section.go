package tsprobe

// section reassembles one PSI section across packets.
type section struct {
	buf     []byte
	started bool
}

func (s *section) reset() {
	s.buf = s.buf[:0]
	s.started = false
}

// push adds a packet payload and returns the complete section once
// 3+section_length bytes have arrived.
func (s *section) push(payload []byte, pusi bool) []byte {
	if pusi {
		if len(payload) == 0 {
			s.reset()
			return nil
		}
		pointer := int(payload[0])
		if 1+pointer >= len(payload) {
			s.reset()
			return nil
		}
		s.buf = append(s.buf[:0], payload[1+pointer:]...)
		s.started = true
	} else {
		if !s.started {
			return nil
		}
		s.buf = append(s.buf, payload...)
	}
	if len(s.buf) < 3 {
		return nil
	}
	need := 3 + (int(s.buf[1]&0x0f)<<8 | int(s.buf[2]))
	if len(s.buf) < need {
		return nil
	}
	return s.buf[:need]
}

// parsePAT returns the PMT PID of the first program with a non-zero
// number, or -1.
func parsePAT(sec []byte) int {
	if len(sec) < 12 || sec[0] != 0x00 {
		return -1
	}
	end := len(sec) - 4
	for i := 8; i+4 <= end; i += 4 {
		program := int(sec[i])<<8 | int(sec[i+1])
		if program == 0 {
			continue
		}
		return int(sec[i+2]&0x1f)<<8 | int(sec[i+3])
	}
	return -1
}

// parsePMT lists the elementary stream types of a PMT section.
func parsePMT(sec []byte) ([]byte, bool) {
	if len(sec) < 16 || sec[0] != 0x02 {
		return nil, false
	}
	programInfo := int(sec[10]&0x0f)<<8 | int(sec[11])
	end := len(sec) - 4
	var types []byte
	for i := 12 + programInfo; i+5 <= end; {
		types = append(types, sec[i])
		esInfo := int(sec[i+3]&0x0f)<<8 | int(sec[i+4])
		i += 5 + esInfo
	}
	return types, true
}
