package cpu

import "fmt"

// Reset values.
const (
	ResetSP uint16 = 0x01FF
	ResetCC uint8  = FlagS | FlagX | FlagI
)

// Bus is the memory the core executes against. Read16 and Write16 are
// big-endian.
type Bus interface {
	Read8(addr uint16) uint8
	Write8(addr uint16, v uint8)
	Read16(addr uint16) uint16
	Write16(addr uint16, v uint16)
}

// Registers is the programmer-visible HC11 register file plus the running
// E-clock cycle count. D is not stored; it is always A:B.
// Plain value type, cheap to copy for traces and checkpoints.
type Registers struct {
	A, B   uint8
	X, Y   uint16
	SP, PC uint16
	CC     uint8
	Cycles uint64
}

// NewRegisters returns the power-on register state.
func NewRegisters() Registers {
	return Registers{SP: ResetSP, CC: ResetCC}
}

// Reset restores power-on values. PC is left for the caller to load.
func (r *Registers) Reset() {
	*r = NewRegisters()
}

// D returns the 16-bit accumulator A:B.
func (r *Registers) D() uint16 {
	return uint16(r.A)<<8 | uint16(r.B)
}

// SetD splits v into A (high) and B (low).
func (r *Registers) SetD(v uint16) {
	r.A = uint8(v >> 8)
	r.B = uint8(v)
}

// Flag returns true if the given CCR bit is set.
func (r *Registers) Flag(f uint8) bool {
	return r.CC&f != 0
}

// SetCCR replaces the whole condition code register the way TAP and RTI do:
// every bit is taken from v except X, which software may clear but never set.
func (r *Registers) SetCCR(v uint8) {
	r.CC = v&^FlagX | v&r.CC&FlagX
}

// The group setters copy only their named bits from f into CC.

func (r *Registers) SetHNZVC(f uint8) { r.CC = r.CC&^maskHNZVC | f&maskHNZVC }
func (r *Registers) SetNZVC(f uint8)  { r.CC = r.CC&^maskNZVC | f&maskNZVC }
func (r *Registers) SetNZV(f uint8)   { r.CC = r.CC&^maskNZV | f&maskNZV }
func (r *Registers) SetZVC(f uint8)   { r.CC = r.CC&^maskZVC | f&maskZVC }
func (r *Registers) SetC(f uint8)     { r.CC = r.CC&^FlagC | f&FlagC }
func (r *Registers) SetV(f uint8)     { r.CC = r.CC&^FlagV | f&FlagV }
func (r *Registers) SetZ(f uint8)     { r.CC = r.CC&^FlagZ | f&FlagZ }
func (r *Registers) SetI(f uint8)     { r.CC = r.CC&^FlagI | f&FlagI }

// Push8 stores v at SP, then decrements SP.
func (r *Registers) Push8(bus Bus, v uint8) {
	bus.Write8(r.SP, v)
	r.SP--
}

// Push16 stores the low byte at SP and the high byte at SP-1, so the value
// reads back big-endian from the new SP+1.
func (r *Registers) Push16(bus Bus, v uint16) {
	r.Push8(bus, uint8(v))
	r.Push8(bus, uint8(v>>8))
}

// Pull8 increments SP, then loads from it.
func (r *Registers) Pull8(bus Bus) uint8 {
	r.SP++
	return bus.Read8(r.SP)
}

// Pull16 is the inverse of Push16.
func (r *Registers) Pull16(bus Bus) uint16 {
	hi := r.Pull8(bus)
	lo := r.Pull8(bus)
	return uint16(hi)<<8 | uint16(lo)
}

func (r Registers) String() string {
	return fmt.Sprintf("PC=%04X A=%02X B=%02X D=%04X X=%04X Y=%04X SP=%04X CCR=%02X [%s]",
		r.PC, r.A, r.B, r.D(), r.X, r.Y, r.SP, r.CC, FormatCCR(r.CC))
}
