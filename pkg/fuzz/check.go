package fuzz

import (
	"fmt"
	"strings"

	"github.com/oisee/hc11emu/pkg/cpu"
	"github.com/oisee/hc11emu/pkg/inst"
	"github.com/oisee/hc11emu/pkg/mem"
)

// Base is where sequences are placed. It lies in ROM so stores made by the
// sequence cannot patch its own code.
const Base uint16 = 0x8000

// Kind classifies a violation.
type Kind string

const (
	KindEncode    Kind = "encode"    // a generated instruction did not assemble
	KindRoundTrip Kind = "roundtrip" // decode(encode(in)) != in
	KindIllegal   Kind = "illegal"   // a table instruction stopped as ILLEGAL
	KindError     Kind = "error"     // a step failed other than DAA
	KindXBit      Kind = "xbit"      // a step set the X mask
	KindPC        Kind = "pc"        // straight-line code did not fall through
	KindCycles    Kind = "cycles"    // cycle counter moved by the wrong amount
)

// Violation is one broken property.
type Violation struct {
	Seq    []inst.Instruction
	Index  int
	Kind   Kind
	Detail string
}

func (v Violation) String() string {
	parts := make([]string, len(v.Seq))
	for i, in := range v.Seq {
		parts[i] = in.String()
	}
	return fmt.Sprintf("%s at #%d: %s [%s]", v.Kind, v.Index, v.Detail, strings.Join(parts, " : "))
}

// Check places seq at Base, verifies it survives an encode/decode round
// trip, then executes it on a fresh core started from init. Execution stops
// when control leaves the sequence or a step stops. It returns the number
// of steps taken and every violation found.
func Check(set *inst.Set, seq []inst.Instruction, init cpu.Registers) (int, []Violation) {
	seq = copySeq(seq)
	Relocate(seq, Base)

	var vs []Violation
	fail := func(i int, k Kind, format string, args ...any) {
		vs = append(vs, Violation{Seq: seq, Index: i, Kind: k, Detail: fmt.Sprintf(format, args...)})
	}

	code, err := set.EncodeSeq(seq, Base)
	if err != nil {
		fail(-1, KindEncode, "%v", err)
		return 0, vs
	}
	for i, in := range seq {
		off := int(in.Addr - Base)
		got, err := set.DecodeBytes(code[off:], in.Addr)
		if err != nil {
			fail(i, KindRoundTrip, "%v", err)
			continue
		}
		if got != in {
			fail(i, KindRoundTrip, "decoded %s, want %s", got, in)
		}
	}
	if len(vs) > 0 {
		return 0, vs
	}

	m := mem.New()
	m.LoadBinary(code, Base)
	c := cpu.New(m)
	c.Regs = init
	c.Regs.PC = Base

	steps := 0
	for i, in := range seq {
		if c.Regs.PC != in.Addr {
			break
		}
		before := c.Regs
		r := c.Step()
		steps++

		if before.CC&cpu.FlagX == 0 && c.Regs.CC&cpu.FlagX != 0 {
			fail(i, KindXBit, "CCR %s -> %s", cpu.FormatCCR(before.CC), cpu.FormatCCR(c.Regs.CC))
		}
		switch r {
		case cpu.StopNone:
		case cpu.StopIllegal:
			fail(i, KindIllegal, "%v", c.Err())
			return steps, vs
		case cpu.StopError:
			if in.Mnemonic != inst.DAA {
				fail(i, KindError, "%v", c.Err())
			}
			return steps, vs
		default:
			return steps, vs
		}

		if d := c.Regs.Cycles - before.Cycles; d != uint64(in.Cycles) {
			fail(i, KindCycles, "charged %d, table says %d", d, in.Cycles)
		}
		if !inst.ChangesFlow(in.Mnemonic) && c.Regs.PC != in.Next() {
			fail(i, KindPC, "PC=$%04X, want $%04X", c.Regs.PC, in.Next())
		}
	}
	return steps, vs
}
