package inst

import (
	"errors"
	"fmt"
	"strings"
)

// String renders in using Motorola assembler syntax.
func (in Instruction) String() string {
	m := in.Mnemonic.String()
	switch in.Mode {
	case INH:
		return m
	case IMM8:
		return fmt.Sprintf("%s #$%02X", m, in.Operand)
	case IMM16:
		return fmt.Sprintf("%s #$%04X", m, in.Operand)
	case DIR:
		return fmt.Sprintf("%s $%02X", m, in.Operand)
	case EXT:
		return fmt.Sprintf("%s $%04X", m, in.Operand)
	case INDX:
		return fmt.Sprintf("%s $%02X,X", m, in.Operand)
	case INDY:
		return fmt.Sprintf("%s $%02X,Y", m, in.Operand)
	case REL:
		return fmt.Sprintf("%s $%04X", m, in.Target)
	case BIT2DIR:
		return fmt.Sprintf("%s $%02X #$%02X", m, in.Operand, in.Mask)
	case BIT2INDX:
		return fmt.Sprintf("%s $%02X,X #$%02X", m, in.Operand, in.Mask)
	case BIT2INDY:
		return fmt.Sprintf("%s $%02X,Y #$%02X", m, in.Operand, in.Mask)
	case BIT3DIR:
		return fmt.Sprintf("%s $%02X #$%02X $%04X", m, in.Operand, in.Mask, in.Target)
	case BIT3INDX:
		return fmt.Sprintf("%s $%02X,X #$%02X $%04X", m, in.Operand, in.Mask, in.Target)
	case BIT3INDY:
		return fmt.Sprintf("%s $%02X,Y #$%02X $%04X", m, in.Operand, in.Mask, in.Target)
	}
	return m + " ?"
}

// Line is one row of a disassembly listing.
type Line struct {
	Addr  uint16
	Bytes []byte
	Text  string
	Inst  Instruction
	Valid bool // false for FCB data lines
}

func (l Line) String() string {
	var hex strings.Builder
	for i, b := range l.Bytes {
		if i > 0 {
			hex.WriteByte(' ')
		}
		fmt.Fprintf(&hex, "%02X", b)
	}
	return fmt.Sprintf("%04X  %-12s %s", l.Addr, hex.String(), l.Text)
}

// Disassemble lists the instructions in [start, end] read from r.
// Undefined opcodes are emitted as single FCB bytes and decoding resumes at
// the next byte.
func (s *Set) Disassemble(r Reader, start, end uint16) []Line {
	var lines []Line
	for a := int(start); a <= int(end); {
		addr := uint16(a)
		in, err := s.Decode(r, addr)
		if err != nil || a+in.Len()-1 > int(end) {
			b := r.Read8(addr)
			lines = append(lines, Line{Addr: addr, Bytes: []byte{b}, Text: fmt.Sprintf("FCB $%02X", b)})
			a++
			continue
		}
		raw := make([]byte, in.Len())
		for i := range raw {
			raw[i] = r.Read8(addr + uint16(i))
		}
		lines = append(lines, Line{Addr: addr, Bytes: raw, Text: in.String(), Inst: in, Valid: true})
		a += in.Len()
	}
	return lines
}

// DisassembleBytes lists code as if loaded at base.
func (s *Set) DisassembleBytes(code []byte, base uint16) []Line {
	if len(code) == 0 {
		return nil
	}
	r := &sliceReader{base: base, data: code}
	return s.Disassemble(r, base, base+uint16(len(code)-1))
}

// IsIllegal reports whether err came from an undefined opcode.
func IsIllegal(err error) bool {
	return errors.Is(err, ErrIllegalOpcode)
}
