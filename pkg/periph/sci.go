// Package periph models the on-chip HC11F1 peripherals the Delco PCM code
// touches: the SCI used for ALDL serial, the A/D converter, the free-running
// timer with output compares, and the parallel ports. Each model registers
// its registers as memory-mapped I/O and is advanced by the core through
// Update.
package periph

import (
	"github.com/oisee/hc11emu/pkg/cpu"
	"github.com/oisee/hc11emu/pkg/mem"
)

// Mapper is the part of the memory bus a peripheral needs.
type Mapper interface {
	MapIO(start, end uint16, onRead mem.ReadFunc, onWrite mem.WriteFunc)
}

// SCI register addresses.
const (
	BAUD  uint16 = 0x102B
	SCCR1 uint16 = 0x102C
	SCCR2 uint16 = 0x102D
	SCSR  uint16 = 0x102E
	SCDR  uint16 = 0x102F
)

// SCCR2 bits.
const (
	SCITIE uint8 = 0x80
	SCIRIE uint8 = 0x20
	SCITE  uint8 = 0x08
	SCIRE  uint8 = 0x04
)

// SCSR bits.
const (
	SCITDRE uint8 = 0x80
	SCIRDRF uint8 = 0x20
)

// SCI is the serial interface. Transmission is instant: TDRE reads set
// whenever the transmitter is enabled. Received bytes come from a queue
// filled by Inject.
type SCI struct {
	baud, sccr1, sccr2 uint8

	rx     []byte // pending bytes after rxData
	rxData uint8
	rdrf   bool
	tx     []byte
}

// NewSCI returns an SCI in its reset state.
func NewSCI() *SCI {
	return &SCI{}
}

// Register maps BAUD through SCDR onto m.
func (s *SCI) Register(m Mapper) {
	m.MapIO(BAUD, SCDR, s.read, s.write)
}

func (s *SCI) read(addr uint16) uint8 {
	switch addr {
	case BAUD:
		return s.baud
	case SCCR1:
		return s.sccr1
	case SCCR2:
		return s.sccr2
	case SCSR:
		return s.status()
	default:
		return s.readData()
	}
}

func (s *SCI) write(addr uint16, v uint8) {
	switch addr {
	case BAUD:
		s.baud = v
	case SCCR1:
		s.sccr1 = v
	case SCCR2:
		s.sccr2 = v
	case SCDR:
		if s.sccr2&SCITE != 0 {
			s.tx = append(s.tx, v)
		}
	}
}

func (s *SCI) status() uint8 {
	var st uint8
	if s.sccr2&SCITE != 0 {
		st |= SCITDRE
	}
	if s.rdrf {
		st |= SCIRDRF
	}
	return st
}

// readData returns the current receive byte and preloads the next one.
func (s *SCI) readData() uint8 {
	v := s.rxData
	s.rdrf = false
	if len(s.rx) > 0 {
		s.rxData, s.rx = s.rx[0], s.rx[1:]
		s.rdrf = true
	}
	return v
}

// Inject queues bytes as if they arrived on the receive line.
func (s *SCI) Inject(data []byte) {
	s.rx = append(s.rx, data...)
	if !s.rdrf && len(s.rx) > 0 {
		s.rxData, s.rx = s.rx[0], s.rx[1:]
		s.rdrf = true
	}
}

// Pending reports the number of received bytes not yet read by the program.
func (s *SCI) Pending() int {
	n := len(s.rx)
	if s.rdrf {
		n++
	}
	return n
}

// Output returns every byte transmitted since reset.
func (s *SCI) Output() []byte { return s.tx }

// SetOutput replaces the transmit buffer, used when restoring a checkpoint.
func (s *SCI) SetOutput(b []byte) { s.tx = append(s.tx[:0], b...) }

// ClearOutput drops the transmit buffer.
func (s *SCI) ClearOutput() { s.tx = s.tx[:0] }

// Update is a no-op; transfers complete instantly.
func (s *SCI) Update(int) {}

// PendingInterrupt requests the SCI vector for an enabled receive or
// transmit condition.
func (s *SCI) PendingInterrupt() (uint16, bool) {
	if s.sccr2&SCIRIE != 0 && s.rdrf {
		return cpu.VectorSCI, true
	}
	if s.sccr2&SCITIE != 0 && s.sccr2&SCITE != 0 {
		return cpu.VectorSCI, true
	}
	return 0, false
}

// Reset clears registers and both queues.
func (s *SCI) Reset() {
	*s = SCI{}
}
