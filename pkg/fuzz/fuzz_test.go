package fuzz

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/oisee/hc11emu/pkg/cpu"
	"github.com/oisee/hc11emu/pkg/inst"
)

func TestRunFindsNoViolations(t *testing.T) {
	logger, _ := test.NewNullLogger()
	rep, err := Run(context.Background(), Config{Seed: 1, Sequences: 3000, MaxLen: 6, Workers: 4, Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Sequences != 3000 || rep.Steps == 0 {
		t.Errorf("sequences = %d steps = %d", rep.Sequences, rep.Steps)
	}
	for _, v := range rep.Violations {
		t.Error(v)
	}
}

func TestRunDeterministic(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := Config{Seed: 42, Sequences: 200, MaxLen: 4, Workers: 1, Logger: logger}
	a, _ := Run(context.Background(), cfg)
	b, _ := Run(context.Background(), cfg)
	if a.Steps != b.Steps {
		t.Errorf("steps %d vs %d", a.Steps, b.Steps)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	logger, _ := test.NewNullLogger()
	if _, err := Run(ctx, Config{Sequences: 10, Logger: logger}); err == nil {
		t.Error("expected cancellation error")
	}
}

func TestMutatorKeepsBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 0))
	m := NewMutator(rng, inst.Default(), 5)
	seq := m.Random()
	for range 1000 {
		seq = m.Mutate(seq)
		if len(seq) < 1 || len(seq) > 5 {
			t.Fatalf("length %d out of bounds", len(seq))
		}
	}
}

func TestRelocateKeepsDisplacement(t *testing.T) {
	bra, _ := inst.Default().Find(inst.BRA, inst.REL)
	nop, _ := inst.Default().Find(inst.NOP, inst.INH)
	seq := []inst.Instruction{
		{Info: nop},
		{Info: bra, Addr: 1, Target: 1}, // BRA to itself
	}
	Relocate(seq, 0x9000)
	if seq[1].Addr != 0x9001 || seq[1].Target != 0x9001 {
		t.Errorf("BRA at %04X -> %04X", seq[1].Addr, seq[1].Target)
	}
	code, err := inst.Default().EncodeSeq(seq, 0x9000)
	if err != nil {
		t.Fatal(err)
	}
	if len(code) != 3 || code[2] != 0xFE {
		t.Errorf("code = % X", code)
	}
}

func TestCheckRejectsDoctoredDescriptor(t *testing.T) {
	ldaa, _ := inst.Default().Find(inst.LDAA, inst.IMM8)
	ldaa.Cycles = 7
	seq := []inst.Instruction{{Info: ldaa, Operand: 0x42}}
	_, vs := Check(inst.Default(), seq, cpu.NewRegisters())
	if len(vs) == 0 || vs[0].Kind != KindRoundTrip {
		t.Errorf("violations = %v", vs)
	}
}

func TestCheckStraightLine(t *testing.T) {
	set := inst.Default()
	find := func(m inst.Mnemonic, mode inst.Mode) inst.Info {
		t.Helper()
		info, ok := set.Find(m, mode)
		if !ok {
			t.Fatalf("%s %s missing", m, mode)
		}
		return info
	}
	seq := []inst.Instruction{
		{Info: find(inst.LDAA, inst.IMM8), Operand: 0x10},
		{Info: find(inst.TAP, inst.INH)},
		{Info: find(inst.LDX, inst.IMM16), Operand: 0x0040},
		{Info: find(inst.BSET, inst.BIT2INDX), Operand: 0x02, Mask: 0x81},
		{Info: find(inst.WAI, inst.INH)},
		{Info: find(inst.NOP, inst.INH)},
	}
	init := cpu.NewRegisters()
	init.CC = 0x00 // X clear, TAP of $10 must not set it
	steps, vs := Check(set, seq, init)
	if steps != 5 {
		t.Errorf("steps = %d, want 5 (stop at WAI)", steps)
	}
	for _, v := range vs {
		t.Error(v)
	}
}
