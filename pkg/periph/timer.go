package periph

import "github.com/oisee/hc11emu/pkg/cpu"

// Timer register addresses.
const (
	TCNT  uint16 = 0x100E
	TOC1  uint16 = 0x1016
	TMSK1 uint16 = 0x1022
	TFLG1 uint16 = 0x1023
	TMSK2 uint16 = 0x1024
	TFLG2 uint16 = 0x1025
	PACTL uint16 = 0x1026
	PACNT uint16 = 0x1027
)

// TFLG2/TMSK2 overflow bit.
const TOF uint8 = 0x80

var prescalers = [4]int{1, 4, 8, 16}

// outputCompare is one TOCx register pair. Its flag is the TFLG1 bit the
// match sets; OC1 uses bit 7 down to OC5 at bit 3.
type outputCompare struct {
	value uint16
	flag  uint8
	vec   uint16
}

func (oc *outputCompare) read(addr uint16) uint8 {
	if addr&1 == 0 {
		return uint8(oc.value >> 8)
	}
	return uint8(oc.value)
}

func (oc *outputCompare) write(addr uint16, v uint8) {
	if addr&1 == 0 {
		oc.value = uint16(v)<<8 | oc.value&0x00FF
	} else {
		oc.value = oc.value&0xFF00 | uint16(v)
	}
}

// Timer is the free-running 16-bit counter with five output compares.
type Timer struct {
	tcnt     uint16
	oc       [5]outputCompare
	tmsk1    uint8
	tflg1    uint8
	tmsk2    uint8
	tflg2    uint8
	pactl    uint8
	pacnt    uint8
	residual int // E-clocks not yet worth a tick
}

var ocVectors = [5]uint16{cpu.VectorTOC1, cpu.VectorTOC2, cpu.VectorTOC3, cpu.VectorTOC4, cpu.VectorTOC5}

// NewTimer returns a timer in its reset state.
func NewTimer() *Timer {
	t := &Timer{}
	t.Reset()
	return t
}

// Register maps TCNT, TOC1-5 and the control registers onto m.
func (t *Timer) Register(m Mapper) {
	m.MapIO(TCNT, TCNT+1, t.readCount, nil)
	for i := range t.oc {
		oc := &t.oc[i]
		base := TOC1 + uint16(2*i)
		m.MapIO(base, base+1, oc.read, oc.write)
	}
	m.MapIO(TMSK1, PACNT, t.readControl, t.writeControl)
}

func (t *Timer) readCount(addr uint16) uint8 {
	if addr == TCNT {
		return uint8(t.tcnt >> 8)
	}
	return uint8(t.tcnt)
}

func (t *Timer) readControl(addr uint16) uint8 {
	switch addr {
	case TMSK1:
		return t.tmsk1
	case TFLG1:
		return t.tflg1
	case TMSK2:
		return t.tmsk2
	case TFLG2:
		return t.tflg2
	case PACTL:
		return t.pactl
	default:
		return t.pacnt
	}
}

func (t *Timer) writeControl(addr uint16, v uint8) {
	switch addr {
	case TMSK1:
		t.tmsk1 = v
	case TFLG1:
		t.tflg1 &^= v
	case TMSK2:
		t.tmsk2 = v
	case TFLG2:
		t.tflg2 &^= v
	case PACTL:
		t.pactl = v
	case PACNT:
		t.pacnt = v
	}
}

// Count returns TCNT.
func (t *Timer) Count() uint16 { return t.tcnt }

// Flags returns TFLG1 and TFLG2.
func (t *Timer) Flags() (tflg1, tflg2 uint8) { return t.tflg1, t.tflg2 }

// Prescale is the number of E-clocks per TCNT tick selected by TMSK2.
func (t *Timer) Prescale() int { return prescalers[t.tmsk2&0x03] }

// Update advances TCNT by the elapsed E-clocks, setting compare and
// overflow flags on every tick that hits them.
func (t *Timer) Update(cycles int) {
	t.residual += cycles
	div := t.Prescale()
	ticks := t.residual / div
	t.residual %= div
	for range ticks {
		t.tcnt++
		if t.tcnt == 0 {
			t.tflg2 |= TOF
		}
		for i := range t.oc {
			if t.tcnt == t.oc[i].value {
				t.tflg1 |= t.oc[i].flag
			}
		}
	}
}

// PendingInterrupt returns the highest priority enabled timer interrupt.
// Output compares outrank overflow, OC1 first.
func (t *Timer) PendingInterrupt() (uint16, bool) {
	if hit := t.tflg1 & t.tmsk1; hit != 0 {
		for i := range t.oc {
			if hit&t.oc[i].flag != 0 {
				return t.oc[i].vec, true
			}
		}
	}
	if t.tflg2&t.tmsk2&TOF != 0 {
		return cpu.VectorTOF, true
	}
	return 0, false
}

// Reset restores power-on state; compares read $FFFF.
func (t *Timer) Reset() {
	*t = Timer{}
	for i := range t.oc {
		t.oc[i] = outputCompare{value: 0xFFFF, flag: 0x80 >> i, vec: ocVectors[i]}
	}
}
