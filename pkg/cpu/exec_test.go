package cpu

import (
	"errors"
	"strings"
	"testing"

	"github.com/oisee/hc11emu/pkg/inst"
)

func newTestCPU(code ...byte) (*CPU, *ram) {
	m := &ram{}
	copy(m[0x8000:], code)
	c := New(m)
	c.Regs.PC = 0x8000
	return c, m
}

func stepN(t *testing.T, c *CPU, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if r := c.Step(); r != StopNone {
			t.Fatalf("step %d at %04X: %s (%v)", i, c.Regs.PC, r, c.Err())
		}
	}
}

func TestLoadImmediate(t *testing.T) {
	c, _ := newTestCPU(0x86, 0x42)
	stepN(t, c, 1)
	if c.Regs.A != 0x42 || c.Regs.PC != 0x8002 || c.Regs.Cycles != 2 {
		t.Errorf("LDAA #$42: %s cycles=%d", c.Regs, c.Regs.Cycles)
	}
	if c.Regs.CC&(FlagN|FlagZ|FlagV) != 0 {
		t.Errorf("LDAA #$42 flags [%s]", FormatCCR(c.Regs.CC))
	}
}

func TestAddOverflowToZero(t *testing.T) {
	c, _ := newTestCPU(0x86, 0xFF, 0x8B, 0x01)
	stepN(t, c, 2)
	if c.Regs.A != 0 {
		t.Errorf("A=%02X, want 00", c.Regs.A)
	}
	if !c.Regs.Flag(FlagC) || !c.Regs.Flag(FlagZ) || !c.Regs.Flag(FlagH) {
		t.Errorf("flags [%s], want H Z C", FormatCCR(c.Regs.CC))
	}
	if c.Regs.Flag(FlagN) || c.Regs.Flag(FlagV) {
		t.Errorf("flags [%s], N and V should be clear", FormatCCR(c.Regs.CC))
	}
}

func TestJSRRTS(t *testing.T) {
	c, m := newTestCPU(0xBD, 0x80, 0x10) // JSR $8010
	copy(m[0x8010:], []byte{0x86, 0xAA, 0x39})
	stepN(t, c, 1)
	if c.Regs.PC != 0x8010 || c.Regs.SP != 0x01FD {
		t.Fatalf("after JSR: %s", c.Regs)
	}
	if m[0x01FE] != 0x80 || m[0x01FF] != 0x03 {
		t.Errorf("return address stacked as %02X %02X", m[0x01FE], m[0x01FF])
	}
	stepN(t, c, 2)
	if c.Regs.PC != 0x8003 || c.Regs.A != 0xAA || c.Regs.SP != 0x01FF {
		t.Errorf("after RTS: %s", c.Regs)
	}
	if c.Regs.Cycles != 6+2+5 {
		t.Errorf("cycles = %d, want 13", c.Regs.Cycles)
	}
}

func TestBranches(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		cc   uint8
		pc   uint16
	}{
		{"BRA self", []byte{0x20, 0xFE}, 0, 0x8000},
		{"BRA fwd", []byte{0x20, 0x10}, 0, 0x8012},
		{"BEQ taken", []byte{0x27, 0x02}, FlagZ, 0x8004},
		{"BEQ not taken", []byte{0x27, 0x02}, 0, 0x8002},
		{"BNE back", []byte{0x26, 0x80}, 0, 0x7F82},
		{"BRN", []byte{0x21, 0x10}, 0, 0x8002},
		{"BHI", []byte{0x22, 0x04}, 0, 0x8006},
		{"BHI C", []byte{0x22, 0x04}, FlagC, 0x8002},
		{"BLS Z", []byte{0x23, 0x04}, FlagZ, 0x8006},
		{"BCC", []byte{0x24, 0x04}, 0, 0x8006},
		{"BCS", []byte{0x25, 0x04}, FlagC, 0x8006},
		{"BVC", []byte{0x28, 0x04}, FlagV, 0x8002},
		{"BVS", []byte{0x29, 0x04}, FlagV, 0x8006},
		{"BPL", []byte{0x2A, 0x04}, FlagN, 0x8002},
		{"BMI", []byte{0x2B, 0x04}, FlagN, 0x8006},
		{"BGE N=V", []byte{0x2C, 0x04}, FlagN | FlagV, 0x8006},
		{"BLT N!=V", []byte{0x2D, 0x04}, FlagN, 0x8006},
		{"BGT Z", []byte{0x2E, 0x04}, FlagZ, 0x8002},
		{"BLE Z", []byte{0x2F, 0x04}, FlagZ, 0x8006},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCPU(tt.code...)
			c.Regs.CC = tt.cc
			stepN(t, c, 1)
			if c.Regs.PC != tt.pc {
				t.Errorf("PC=%04X, want %04X", c.Regs.PC, tt.pc)
			}
			if c.Regs.Cycles != 3 {
				t.Errorf("cycles=%d, want 3", c.Regs.Cycles)
			}
		})
	}
}

func TestBSR(t *testing.T) {
	c, m := newTestCPU(0x8D, 0x10)
	stepN(t, c, 1)
	if c.Regs.PC != 0x8012 {
		t.Errorf("PC=%04X, want 8012", c.Regs.PC)
	}
	if m.Read16(c.Regs.SP+1) != 0x8002 {
		t.Errorf("stacked %04X, want 8002", m.Read16(c.Regs.SP+1))
	}
}

func TestBitBranches(t *testing.T) {
	// BRSET $10 #$81 +4
	c, m := newTestCPU(0x12, 0x10, 0x81, 0x04)
	m[0x0010] = 0x83
	stepN(t, c, 1)
	if c.Regs.PC != 0x8008 {
		t.Errorf("BRSET taken: PC=%04X, want 8008", c.Regs.PC)
	}
	c, m = newTestCPU(0x12, 0x10, 0x81, 0x04)
	m[0x0010] = 0x80
	stepN(t, c, 1)
	if c.Regs.PC != 0x8004 {
		t.Errorf("BRSET not taken: PC=%04X, want 8004", c.Regs.PC)
	}
	c, m = newTestCPU(0x18, 0x1F, 0x05, 0x02, 0xFB)
	c.Regs.Y = 0x0020
	m[0x0025] = 0xFD
	stepN(t, c, 1)
	if c.Regs.PC != 0x8000 {
		t.Errorf("BRCLR ,Y taken: PC=%04X, want 8000", c.Regs.PC)
	}
}

func TestBitSetClear(t *testing.T) {
	c, m := newTestCPU(0x14, 0x2D, 0x08, 0x1D, 0x00, 0x80)
	c.Regs.X = 0x0030
	m[0x2D] = 0x01
	m[0x30] = 0x81
	stepN(t, c, 2)
	if m[0x2D] != 0x09 || m[0x30] != 0x01 {
		t.Errorf("BSET/BCLR: [2D]=%02X [30]=%02X", m[0x2D], m[0x30])
	}
	if c.Regs.Cycles != 6+7 {
		t.Errorf("cycles=%d", c.Regs.Cycles)
	}
}

func TestTAPClearsXOnly(t *testing.T) {
	// LDAA #0; TAP; LDAA #$FF; TAP
	c, _ := newTestCPU(0x86, 0x00, 0x06, 0x86, 0xFF, 0x06)
	stepN(t, c, 2)
	if c.Regs.CC != 0x00 {
		t.Fatalf("TAP 00: CC=%02X", c.Regs.CC)
	}
	stepN(t, c, 2)
	if c.Regs.CC != 0xBF {
		t.Errorf("TAP FF after clear: CC=%02X, want BF", c.Regs.CC)
	}
}

func TestTPA(t *testing.T) {
	c, _ := newTestCPU(0x07)
	stepN(t, c, 1)
	if c.Regs.A != 0xD0 {
		t.Errorf("TPA: A=%02X", c.Regs.A)
	}
}

func TestSWIRTI(t *testing.T) {
	c, m := newTestCPU(0x3F) // SWI
	m.Write16(VectorSWI, 0x9000)
	m[0x9000] = 0x3B // RTI
	c.Regs.A, c.Regs.B, c.Regs.X, c.Regs.Y = 0x11, 0x22, 0x3344, 0x5566
	c.Regs.CC = 0x00
	stepN(t, c, 1)
	if c.Regs.PC != 0x9000 || c.Regs.SP != 0x01FF-9 || !c.Regs.Flag(FlagI) {
		t.Fatalf("after SWI: %s", c.Regs)
	}
	frame := m[0x01F7:0x0200]
	want := []byte{0x00, 0x22, 0x11, 0x33, 0x44, 0x55, 0x66, 0x80, 0x01}
	if string(frame) != string(want) {
		t.Errorf("stack frame % X, want % X", frame, want)
	}
	c.Regs.A, c.Regs.X = 0, 0
	stepN(t, c, 1)
	if c.Regs.PC != 0x8001 || c.Regs.A != 0x11 || c.Regs.X != 0x3344 || c.Regs.CC != 0x00 || c.Regs.SP != 0x01FF {
		t.Errorf("after RTI: %s", c.Regs)
	}
}

// TestRTIKeepsXClear stacks a CCR with X set and checks RTI cannot set X
// once software has cleared it.
func TestRTIKeepsXClear(t *testing.T) {
	c, m := newTestCPU(0x3B)
	c.Regs.CC = 0x00
	c.Regs.SP = 0x01F6
	copy(m[0x01F7:], []byte{0xFF, 0, 0, 0, 0, 0, 0, 0x90, 0x00})
	stepN(t, c, 1)
	if c.Regs.CC != 0xBF {
		t.Errorf("CC=%02X, want BF", c.Regs.CC)
	}
	if c.Regs.PC != 0x9000 {
		t.Errorf("PC=%04X", c.Regs.PC)
	}
}

func TestIndexOps(t *testing.T) {
	// LDX #$00FF; INX; DEX; XGDX; TSX; TXS
	c, _ := newTestCPU(0xCE, 0x00, 0xFF, 0x08, 0x09, 0x8F, 0x30, 0x35)
	stepN(t, c, 2)
	if c.Regs.X != 0x0100 || c.Regs.Flag(FlagZ) {
		t.Errorf("INX: X=%04X", c.Regs.X)
	}
	stepN(t, c, 2)
	if c.Regs.D() != 0x00FF || c.Regs.X != 0x0000 {
		t.Errorf("XGDX: D=%04X X=%04X", c.Regs.D(), c.Regs.X)
	}
	stepN(t, c, 1)
	if c.Regs.X != 0x0200 {
		t.Errorf("TSX: X=%04X, want 0200", c.Regs.X)
	}
	stepN(t, c, 1)
	if c.Regs.SP != 0x01FF {
		t.Errorf("TXS: SP=%04X", c.Regs.SP)
	}
}

func TestINXSetsZOnly(t *testing.T) {
	c, _ := newTestCPU(0x08)
	c.Regs.X = 0xFFFF
	c.Regs.CC = FlagN | FlagC
	stepN(t, c, 1)
	if c.Regs.X != 0 || c.Regs.CC != FlagN|FlagC|FlagZ {
		t.Errorf("INX wrap: X=%04X CC=%02X", c.Regs.X, c.Regs.CC)
	}
}

func TestPushPull(t *testing.T) {
	// PSHA; PSHB; PSHX; PULY; PULA; PULB  (A/B swap through the stack)
	c, _ := newTestCPU(0x36, 0x37, 0x3C, 0x18, 0x38, 0x32, 0x33)
	c.Regs.A, c.Regs.B, c.Regs.X = 0x12, 0x34, 0xBEEF
	stepN(t, c, 6)
	if c.Regs.Y != 0xBEEF || c.Regs.A != 0x34 || c.Regs.B != 0x12 || c.Regs.SP != 0x01FF {
		t.Errorf("push/pull: %s", c.Regs)
	}
}

func TestMUL(t *testing.T) {
	c, _ := newTestCPU(0x3D)
	c.Regs.A, c.Regs.B = 12, 11
	stepN(t, c, 1)
	if c.Regs.D() != 132 || !c.Regs.Flag(FlagC) {
		t.Errorf("MUL 12*11: D=%d C=%v", c.Regs.D(), c.Regs.Flag(FlagC))
	}
	if c.Regs.Cycles != 10 {
		t.Errorf("cycles=%d", c.Regs.Cycles)
	}
}

func TestDivide(t *testing.T) {
	tests := []struct {
		name  string
		op    byte
		d, x  uint16
		wantX uint16
		wantD uint16
		flags uint8
	}{
		{"IDIV", 0x02, 7, 2, 3, 1, 0},
		{"IDIV small", 0x02, 1, 2, 0, 1, FlagZ},
		{"IDIV by zero", 0x02, 0x1234, 0, 0xFFFF, 0, FlagC},
		{"FDIV half", 0x03, 1, 2, 0x8000, 0, 0},
		{"FDIV third", 0x03, 1, 3, 0x5555, 1, 0},
		{"FDIV overflow", 0x03, 5, 5, 0xFFFF, 0, FlagV},
		{"FDIV by zero", 0x03, 5, 0, 0xFFFF, 0, FlagV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCPU(tt.op)
			c.Regs.SetD(tt.d)
			c.Regs.X = tt.x
			c.Regs.CC = FlagN
			stepN(t, c, 1)
			if c.Regs.X != tt.wantX || c.Regs.D() != tt.wantD {
				t.Errorf("X=%04X D=%04X, want X=%04X D=%04X", c.Regs.X, c.Regs.D(), tt.wantX, tt.wantD)
			}
			if c.Regs.CC != FlagN|tt.flags {
				t.Errorf("CC=%02X [%s], want %02X", c.Regs.CC, FormatCCR(c.Regs.CC), FlagN|tt.flags)
			}
			if c.Regs.Cycles != 41 {
				t.Errorf("cycles=%d", c.Regs.Cycles)
			}
		})
	}
}

func TestMemoryRMW(t *testing.T) {
	// INC $0040,X ; NEG $1000 ; CLR ,Y ; TST $0041
	c, m := newTestCPU(0x6C, 0x00, 0x70, 0x10, 0x00, 0x18, 0x6F, 0x00, 0x7D, 0x00, 0x41)
	c.Regs.X = 0x0040
	c.Regs.Y = 0x0041
	m[0x0040] = 0x7F
	m[0x1000] = 0x01
	m[0x0041] = 0x55
	stepN(t, c, 1)
	if m[0x0040] != 0x80 || !c.Regs.Flag(FlagV) || !c.Regs.Flag(FlagN) {
		t.Errorf("INC 7F: %02X [%s]", m[0x0040], FormatCCR(c.Regs.CC))
	}
	stepN(t, c, 1)
	if m[0x1000] != 0xFF || !c.Regs.Flag(FlagC) {
		t.Errorf("NEG 01: %02X [%s]", m[0x1000], FormatCCR(c.Regs.CC))
	}
	stepN(t, c, 2)
	if m[0x0041] != 0 || c.Regs.CC&0x0F != FlagZ {
		t.Errorf("CLR/TST: %02X [%s]", m[0x0041], FormatCCR(c.Regs.CC))
	}
}

func TestAccumulator16(t *testing.T) {
	// LDD #$7FFF; ADDD #1; SUBD #$8000; CPD #0; LSLD; LSRD
	c, _ := newTestCPU(0xCC, 0x7F, 0xFF, 0xC3, 0x00, 0x01, 0x83, 0x80, 0x00, 0x1A, 0x83, 0x00, 0x00, 0x05, 0x04)
	stepN(t, c, 2)
	if c.Regs.D() != 0x8000 || !c.Regs.Flag(FlagV) {
		t.Errorf("ADDD: D=%04X [%s]", c.Regs.D(), FormatCCR(c.Regs.CC))
	}
	stepN(t, c, 2)
	if c.Regs.D() != 0 || !c.Regs.Flag(FlagZ) {
		t.Errorf("SUBD/CPD: D=%04X [%s]", c.Regs.D(), FormatCCR(c.Regs.CC))
	}
	c.Regs.SetD(0x4001)
	stepN(t, c, 1)
	if c.Regs.D() != 0x8002 || !c.Regs.Flag(FlagV) || c.Regs.Flag(FlagC) {
		t.Errorf("LSLD: D=%04X [%s]", c.Regs.D(), FormatCCR(c.Regs.CC))
	}
	stepN(t, c, 1)
	if c.Regs.D() != 0x4001 || c.Regs.Flag(FlagN) {
		t.Errorf("LSRD: D=%04X [%s]", c.Regs.D(), FormatCCR(c.Regs.CC))
	}
}

func TestStopReasons(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		want StopReason
	}{
		{"TEST", []byte{0x00}, StopHalt},
		{"WAI", []byte{0x3E}, StopHalt},
		{"STOP", []byte{0xCF}, StopStop},
		{"illegal", []byte{0x41}, StopIllegal},
		{"illegal page2", []byte{0x18, 0x00}, StopIllegal},
		{"DAA", []byte{0x19}, StopError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCPU(tt.code...)
			if got := c.Step(); got != tt.want {
				t.Errorf("Step = %s, want %s", got, tt.want)
			}
			if c.Regs.Cycles != 0 {
				t.Errorf("cycles charged: %d", c.Regs.Cycles)
			}
		})
	}
}

func TestStepErrors(t *testing.T) {
	c, _ := newTestCPU(0x41)
	c.Step()
	if !errors.Is(c.Err(), inst.ErrIllegalOpcode) {
		t.Errorf("Err = %v, want illegal opcode", c.Err())
	}
	c, _ = newTestCPU(0x19)
	c.Step()
	if !errors.Is(c.Err(), ErrUnimplemented) {
		t.Errorf("Err = %v, want ErrUnimplemented", c.Err())
	}
}

func TestBreakpointResume(t *testing.T) {
	c, _ := newTestCPU(0x01, 0x01, 0x01)
	c.AddBreakpoint(0x8001)
	stepN(t, c, 1)
	if r := c.Step(); r != StopBreak || c.Regs.PC != 0x8001 {
		t.Fatalf("Step = %s at %04X, want BREAK at 8001", r, c.Regs.PC)
	}
	stepN(t, c, 1)
	if c.Regs.PC != 0x8002 {
		t.Errorf("resume: PC=%04X", c.Regs.PC)
	}
	if got := c.Breakpoints(); len(got) != 1 || got[0] != 0x8001 {
		t.Errorf("Breakpoints = %v", got)
	}
	c.RemoveBreakpoint(0x8001)
	if len(c.Breakpoints()) != 0 {
		t.Error("RemoveBreakpoint")
	}
}

type bufOut struct{ b []byte }

func (o *bufOut) Output() []byte { return o.b }

type writeTap struct {
	*ram
	out *bufOut
}

func (w writeTap) Write8(a uint16, v uint8) {
	if a == 0x102F {
		w.out.b = append(w.out.b, v)
	}
	w.ram.Write8(a, v)
}

func TestRunUntilOutput(t *testing.T) {
	m := &ram{}
	out := &bufOut{}
	// loop: LDAA #'O'; STAA $102F; LDAA #'K'; STAA $102F; BRA loop
	copy(m[0x8000:], []byte{0x86, 'O', 0xB7, 0x10, 0x2F, 0x86, 'K', 0xB7, 0x10, 0x2F, 0x20, 0xF4})
	c := New(writeTap{m, out})
	c.Regs.PC = 0x8000
	c.SetOutput(out)
	if r := c.Run(1000, []byte("OK")); r != StopDone {
		t.Fatalf("Run = %s, want DONE", r)
	}
	if c.Regs.PC != 0x800A {
		t.Errorf("PC=%04X, want 800A", c.Regs.PC)
	}
	if r := c.Run(1000, []byte("never")); r != StopTimeout {
		t.Errorf("Run = %s, want TIMEOUT", r)
	}
	if c.Regs.Cycles < 1000 {
		t.Errorf("cycles=%d", c.Regs.Cycles)
	}
}

func TestTrace(t *testing.T) {
	c, _ := newTestCPU(0x86, 0x01, 0x4C)
	c.SetTrace(true)
	stepN(t, c, 2)
	tr := c.Trace()
	if len(tr) != 2 || tr[0].PC != 0x8000 || tr[1].Inst.Mnemonic != inst.INCA {
		t.Fatalf("trace = %v", tr)
	}
	if tr[0].Regs.PC != 0x8002 {
		t.Errorf("trace regs recorded at PC=%04X, want after operand fetch", tr[0].Regs.PC)
	}
	if got := tr[0].String(); !strings.HasPrefix(got, "$8000: LDAA   PC=8002 A=00") {
		t.Errorf("trace line = %q", got)
	}
	c.ClearTrace()
	if len(c.Trace()) != 0 {
		t.Error("ClearTrace")
	}
}

type tick struct{ total int }

func (p *tick) Update(cycles int) { p.total += cycles }

type pending struct{ vec uint16 }

func (p *pending) PendingInterrupt() (uint16, bool) { return p.vec, p.vec != 0 }

func TestPeripheralsAndInterrupts(t *testing.T) {
	c, m := newTestCPU(0x0E, 0x01) // CLI; NOP
	m.Write16(VectorTOF, 0x9000)
	p := &tick{}
	src := &pending{}
	c.AddPeripheral(p)
	c.AddInterruptSource(src)
	src.vec = VectorTOF
	c.Regs.CC = 0xD0
	// I is set until CLI retires, so the interrupt is taken right after it.
	stepN(t, c, 1)
	if p.total != 2+interruptCycles || uint64(p.total) != c.Regs.Cycles {
		t.Errorf("peripheral saw %d cycles, core %d", p.total, c.Regs.Cycles)
	}
	if c.Regs.PC != 0x9000 || !c.Regs.Flag(FlagI) {
		t.Errorf("interrupt not taken: %s", c.Regs)
	}
	if c.Regs.Cycles != 2+interruptCycles {
		t.Errorf("cycles=%d", c.Regs.Cycles)
	}
	if m.Read16(c.Regs.SP+8) != 0x8001 {
		t.Errorf("stacked PC = %04X", m.Read16(c.Regs.SP+8))
	}
}

func TestInterruptMasked(t *testing.T) {
	c, _ := newTestCPU()
	if c.Interrupt(VectorIRQ) {
		t.Error("Interrupt taken with I set")
	}
	if c.XIRQ() {
		t.Error("XIRQ taken with X set")
	}
	c.Regs.CC = 0
	if !c.XIRQ() || c.Regs.CC&(FlagX|FlagI) != FlagX|FlagI {
		t.Errorf("XIRQ: CC=%02X", c.Regs.CC)
	}
}

// TestEveryOpcodeExecutes runs each opcode once with a zero operand and
// checks it retires with the table cycle count and falls through.
func TestEveryOpcodeExecutes(t *testing.T) {
	for _, info := range inst.Default().All() {
		code := make([]byte, 0, 5)
		if info.Prefix != inst.NoPrefix {
			code = append(code, uint8(info.Prefix))
		}
		code = append(code, info.Opcode)
		for i := 0; i < info.OperandLen(); i++ {
			code = append(code, 0)
		}
		c, m := newTestCPU(code...)
		m.Write16(VectorSWI, 0x9000)
		c.Regs.X, c.Regs.Y = 0x0100, 0x0100
		c.Regs.SP = 0x01F0
		c.Regs.SetD(0x0001)

		want := StopNone
		switch info.Mnemonic {
		case inst.WAI, inst.TEST:
			want = StopHalt
		case inst.STOP:
			want = StopStop
		case inst.DAA:
			want = StopError
		}
		got := c.Step()
		if got != want {
			t.Errorf("%s: Step = %s (%v), want %s", info, got, c.Err(), want)
			continue
		}
		if want != StopNone {
			continue
		}
		if c.Regs.Cycles != uint64(info.Cycles) {
			t.Errorf("%s: cycles=%d, want %d", info, c.Regs.Cycles, info.Cycles)
		}
		switch info.Mnemonic {
		case inst.JMP, inst.JSR, inst.RTS, inst.RTI, inst.SWI:
			continue
		}
		if end := uint16(0x8000 + info.Len()); c.Regs.PC != end {
			t.Errorf("%s: PC=%04X, want %04X", info, c.Regs.PC, end)
		}
	}
}
