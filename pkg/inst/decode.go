package inst

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalOpcode matches any *IllegalOpcodeError via errors.Is.
	ErrIllegalOpcode = errors.New("illegal opcode")
	// ErrTruncated is returned when a byte buffer ends inside an operand.
	ErrTruncated = errors.New("truncated instruction")
)

// IllegalOpcodeError reports an undefined opcode or prebyte pair.
type IllegalOpcodeError struct {
	PC     uint16
	Prefix Prefix
	Opcode uint8
	// Truncated is set when a prebyte was the last available byte.
	Truncated bool
}

func (e *IllegalOpcodeError) Error() string {
	switch {
	case e.Truncated:
		return fmt.Sprintf("illegal opcode: prebyte $%02X at $%04X has no second byte", uint8(e.Prefix), e.PC)
	case e.Prefix != NoPrefix:
		return fmt.Sprintf("illegal opcode $%02X $%02X at $%04X", uint8(e.Prefix), e.Opcode, e.PC)
	}
	return fmt.Sprintf("illegal opcode $%02X at $%04X", e.Opcode, e.PC)
}

func (e *IllegalOpcodeError) Unwrap() error { return ErrIllegalOpcode }

// Reader is the byte source the decoder fetches from.
type Reader interface {
	Read8(addr uint16) uint8
}

// Bounded is implemented by readers that cover only part of the address
// space. The decoder reports a prebyte or operand that runs past the
// covered range instead of reading beyond it.
type Bounded interface {
	Reader
	Contains(addr uint16) bool
}

// DecodeOpcode fetches the opcode (and prebyte, if any) at pc. It returns the
// opcode description and the address of the first operand byte.
// Operands are not consumed.
func (s *Set) DecodeOpcode(r Reader, pc uint16) (Info, uint16, error) {
	b := r.Read8(pc)
	next := pc + 1
	if IsPrefix(b) {
		p := Prefix(b)
		if b, ok := r.(Bounded); ok && !b.Contains(next) {
			return Info{}, next, &IllegalOpcodeError{PC: pc, Prefix: p, Truncated: true}
		}
		op := r.Read8(next)
		next++
		info, ok := s.Lookup(p, op)
		if !ok {
			return Info{}, next, &IllegalOpcodeError{PC: pc, Prefix: p, Opcode: op}
		}
		return info, next, nil
	}
	info, ok := s.Lookup(NoPrefix, b)
	if !ok {
		return Info{}, next, &IllegalOpcodeError{PC: pc, Opcode: b}
	}
	return info, next, nil
}

// Decode fetches a complete instruction at pc, operands included.
// Branch targets are resolved relative to the end of the instruction.
func (s *Set) Decode(r Reader, pc uint16) (Instruction, error) {
	info, next, err := s.DecodeOpcode(r, pc)
	if err != nil {
		return Instruction{}, err
	}
	in := Instruction{Info: info, Addr: pc}
	end := pc + uint16(info.Len())
	if b, ok := r.(Bounded); ok && !b.Contains(end-1) {
		return in, fmt.Errorf("%s at $%04X: %w", info.Mnemonic, pc, ErrTruncated)
	}
	switch info.Mode {
	case INH:
	case IMM8, DIR, INDX, INDY:
		in.Operand = uint16(r.Read8(next))
	case IMM16, EXT:
		in.Operand = uint16(r.Read8(next))<<8 | uint16(r.Read8(next+1))
	case REL:
		in.Target = end + uint16(int8(r.Read8(next)))
	case BIT2DIR, BIT2INDX, BIT2INDY:
		in.Operand = uint16(r.Read8(next))
		in.Mask = r.Read8(next + 1)
	case BIT3DIR, BIT3INDX, BIT3INDY:
		in.Operand = uint16(r.Read8(next))
		in.Mask = r.Read8(next + 1)
		in.Target = end + uint16(int8(r.Read8(next+2)))
	}
	return in, nil
}

// DecodeBytes decodes the instruction at the start of code, which is taken
// to be located at addr.
func (s *Set) DecodeBytes(code []byte, addr uint16) (Instruction, error) {
	if len(code) == 0 {
		return Instruction{}, fmt.Errorf("empty buffer at $%04X: %w", addr, ErrTruncated)
	}
	return s.Decode(&sliceReader{base: addr, data: code}, addr)
}

// sliceReader maps a byte slice at base. Reads past the end return 0.
type sliceReader struct {
	base uint16
	data []byte
}

func (r *sliceReader) Contains(addr uint16) bool {
	return int(addr-r.base) < len(r.data)
}

func (r *sliceReader) Read8(addr uint16) uint8 {
	if !r.Contains(addr) {
		return 0
	}
	return r.data[addr-r.base]
}

// Decode decodes one instruction from code using the default set.
func Decode(code []byte, addr uint16) (Instruction, error) {
	return defaultSet.DecodeBytes(code, addr)
}
