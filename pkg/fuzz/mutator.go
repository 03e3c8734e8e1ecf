// Package fuzz generates random HC11 instruction sequences, runs them on
// fresh cores and checks properties every retired instruction must keep.
package fuzz

import (
	"math/rand/v2"

	"github.com/oisee/hc11emu/pkg/inst"
)

// Mutator builds and mutates instruction sequences from the opcode tables.
// Generated instructions are placed at address 0; Relocate moves a
// sequence while keeping its branch displacements.
type Mutator struct {
	rng    *rand.Rand
	all    []inst.Info
	maxLen int
}

// NewMutator creates a Mutator over every descriptor in set.
func NewMutator(rng *rand.Rand, set *inst.Set, maxLen int) *Mutator {
	if maxLen < 1 {
		maxLen = 1
	}
	return &Mutator{rng: rng, all: set.All(), maxLen: maxLen}
}

// Random returns a sequence of 1 to maxLen random instructions.
func (m *Mutator) Random() []inst.Instruction {
	n := 1 + m.rng.IntN(m.maxLen)
	seq := make([]inst.Instruction, n)
	for i := range seq {
		seq[i] = m.randomInstruction()
	}
	return seq
}

// Mutate applies a random mutation to seq and returns the new sequence.
// The input slice is not modified.
func (m *Mutator) Mutate(seq []inst.Instruction) []inst.Instruction {
	// 40% replace, 20% swap, 20% delete, 10% insert, 10% change operand
	r := m.rng.IntN(100)
	switch {
	case r < 40:
		return m.ReplaceInstruction(seq)
	case r < 60:
		return m.SwapInstructions(seq)
	case r < 80:
		return m.DeleteInstruction(seq)
	case r < 90:
		return m.InsertInstruction(seq)
	default:
		return m.ChangeOperand(seq)
	}
}

// ReplaceInstruction swaps one instruction for a random one.
func (m *Mutator) ReplaceInstruction(seq []inst.Instruction) []inst.Instruction {
	out := copySeq(seq)
	if len(out) == 0 {
		return append(out, m.randomInstruction())
	}
	out[m.rng.IntN(len(out))] = m.randomInstruction()
	return out
}

// SwapInstructions swaps two adjacent instructions.
func (m *Mutator) SwapInstructions(seq []inst.Instruction) []inst.Instruction {
	out := copySeq(seq)
	if len(out) < 2 {
		return out
	}
	pos := m.rng.IntN(len(out) - 1)
	out[pos], out[pos+1] = out[pos+1], out[pos]
	return out
}

// DeleteInstruction removes one instruction (if len > 1).
func (m *Mutator) DeleteInstruction(seq []inst.Instruction) []inst.Instruction {
	if len(seq) <= 1 {
		return copySeq(seq)
	}
	pos := m.rng.IntN(len(seq))
	out := make([]inst.Instruction, 0, len(seq)-1)
	out = append(out, seq[:pos]...)
	return append(out, seq[pos+1:]...)
}

// InsertInstruction adds a random instruction at a random position.
func (m *Mutator) InsertInstruction(seq []inst.Instruction) []inst.Instruction {
	if len(seq) >= m.maxLen {
		return m.ReplaceInstruction(seq)
	}
	pos := m.rng.IntN(len(seq) + 1)
	out := make([]inst.Instruction, 0, len(seq)+1)
	out = append(out, seq[:pos]...)
	out = append(out, m.randomInstruction())
	return append(out, seq[pos:]...)
}

// ChangeOperand re-rolls the operand bytes of one instruction, keeping its
// opcode. Inherent instructions are replaced instead.
func (m *Mutator) ChangeOperand(seq []inst.Instruction) []inst.Instruction {
	var withOps []int
	for i := range seq {
		if seq[i].Mode != inst.INH {
			withOps = append(withOps, i)
		}
	}
	if len(withOps) == 0 {
		return m.ReplaceInstruction(seq)
	}
	out := copySeq(seq)
	pos := withOps[m.rng.IntN(len(withOps))]
	addr := out[pos].Addr
	out[pos] = m.withOperand(out[pos].Info)
	out[pos].Relocate(addr)
	return out
}

func (m *Mutator) randomInstruction() inst.Instruction {
	return m.withOperand(m.all[m.rng.IntN(len(m.all))])
}

// withOperand fills the operand fields info's mode uses, placed at 0.
func (m *Mutator) withOperand(info inst.Info) inst.Instruction {
	in := inst.Instruction{Info: info}
	byte8 := func() uint16 { return uint16(m.rng.IntN(256)) }
	disp := func() uint16 { return uint16(info.Len()) + uint16(int8(m.rng.IntN(256))) }
	switch info.Mode {
	case inst.IMM8, inst.DIR, inst.INDX, inst.INDY:
		in.Operand = byte8()
	case inst.IMM16, inst.EXT:
		in.Operand = uint16(m.rng.IntN(65536))
	case inst.REL:
		in.Target = disp()
	case inst.BIT2DIR, inst.BIT2INDX, inst.BIT2INDY:
		in.Operand = byte8()
		in.Mask = uint8(byte8())
	case inst.BIT3DIR, inst.BIT3INDX, inst.BIT3INDY:
		in.Operand = byte8()
		in.Mask = uint8(byte8())
		in.Target = disp()
	}
	return in
}

// Relocate lays seq out back to back from base, moving branch targets
// with their instructions.
func Relocate(seq []inst.Instruction, base uint16) {
	addr := base
	for i := range seq {
		seq[i].Relocate(addr)
		addr = seq[i].Next()
	}
}

func copySeq(seq []inst.Instruction) []inst.Instruction {
	out := make([]inst.Instruction, len(seq))
	copy(out, seq)
	return out
}
