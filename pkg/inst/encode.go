package inst

import "fmt"

// Encode assembles in into machine code. Mnemonic and Mode select the
// opcode; the remaining Info fields are ignored. For relative modes the
// displacement is computed from Addr and Target.
func (s *Set) Encode(in Instruction) ([]byte, error) {
	info, ok := s.Find(in.Mnemonic, in.Mode)
	if !ok {
		return nil, fmt.Errorf("%s has no %s form", in.Mnemonic, in.Mode)
	}
	code := make([]byte, 0, info.Len())
	if info.Prefix != NoPrefix {
		code = append(code, uint8(info.Prefix))
	}
	code = append(code, info.Opcode)

	end := in.Addr + uint16(info.Len())
	switch info.Mode {
	case INH:
	case IMM8, DIR, INDX, INDY:
		if in.Operand > 0xFF {
			return nil, fmt.Errorf("%s %s: operand $%04X exceeds 8 bits", in.Mnemonic, in.Mode, in.Operand)
		}
		code = append(code, uint8(in.Operand))
	case IMM16, EXT:
		code = append(code, uint8(in.Operand>>8), uint8(in.Operand))
	case REL:
		d, err := displacement(in, end)
		if err != nil {
			return nil, err
		}
		code = append(code, d)
	case BIT2DIR, BIT2INDX, BIT2INDY:
		if in.Operand > 0xFF {
			return nil, fmt.Errorf("%s %s: operand $%04X exceeds 8 bits", in.Mnemonic, in.Mode, in.Operand)
		}
		code = append(code, uint8(in.Operand), in.Mask)
	case BIT3DIR, BIT3INDX, BIT3INDY:
		if in.Operand > 0xFF {
			return nil, fmt.Errorf("%s %s: operand $%04X exceeds 8 bits", in.Mnemonic, in.Mode, in.Operand)
		}
		d, err := displacement(in, end)
		if err != nil {
			return nil, err
		}
		code = append(code, uint8(in.Operand), in.Mask, d)
	}
	return code, nil
}

func displacement(in Instruction, end uint16) (uint8, error) {
	d := int16(in.Target - end)
	if d < -128 || d > 127 {
		return 0, fmt.Errorf("%s at $%04X: target $%04X out of branch range", in.Mnemonic, in.Addr, in.Target)
	}
	return uint8(int8(d)), nil
}

// Encode assembles in using the default set.
func Encode(in Instruction) ([]byte, error) {
	return defaultSet.Encode(in)
}

// EncodeSeq assembles a sequence laid out back to back from base.
// Each instruction's Addr is overwritten with its placed address.
func (s *Set) EncodeSeq(seq []Instruction, base uint16) ([]byte, error) {
	var out []byte
	addr := base
	for i := range seq {
		seq[i].Addr = addr
		code, err := s.Encode(seq[i])
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		out = append(out, code...)
		addr += uint16(len(code))
	}
	return out, nil
}
