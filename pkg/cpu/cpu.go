package cpu

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/oisee/hc11emu/pkg/inst"
)

// Interrupt vector addresses.
const (
	VectorSCI     uint16 = 0xFFD6
	VectorSPI     uint16 = 0xFFD8
	VectorPAI     uint16 = 0xFFDA
	VectorPAOV    uint16 = 0xFFDC
	VectorTOF     uint16 = 0xFFDE
	VectorTOC5    uint16 = 0xFFE0
	VectorTOC4    uint16 = 0xFFE2
	VectorTOC3    uint16 = 0xFFE4
	VectorTOC2    uint16 = 0xFFE6
	VectorTOC1    uint16 = 0xFFE8
	VectorRTI     uint16 = 0xFFF0
	VectorIRQ     uint16 = 0xFFF2
	VectorXIRQ    uint16 = 0xFFF4
	VectorSWI     uint16 = 0xFFF6
	VectorIllegal uint16 = 0xFFF8
	VectorCOP     uint16 = 0xFFFA
	VectorClock   uint16 = 0xFFFC
	VectorReset   uint16 = 0xFFFE
)

// interruptCycles is the cost of stacking the machine state and fetching a
// vector for a hardware interrupt, the same sequence SWI runs.
const interruptCycles = 14

// ErrUnimplemented is returned for opcodes that decode but have no
// execution semantics (DAA).
var ErrUnimplemented = errors.New("instruction not implemented")

// StopReason says why Step or Run returned.
type StopReason int

const (
	StopNone    StopReason = iota // instruction retired normally
	StopTimeout                   // cycle budget exhausted
	StopBreak                     // PC hit a breakpoint
	StopHalt                      // WAI or TEST
	StopStop                      // STOP
	StopDone                      // expected output observed
	StopIllegal                   // undefined opcode
	StopError                     // operand or execution failure
)

var stopNames = [...]string{"NONE", "TIMEOUT", "BREAK", "HALT", "STOP", "DONE", "ILLEGAL", "ERROR"}

func (s StopReason) String() string {
	if s >= 0 && int(s) < len(stopNames) {
		return stopNames[s]
	}
	return fmt.Sprintf("StopReason(%d)", int(s))
}

// Peripheral is advanced by the core after every retired instruction.
// Implementations must not call back into the core.
type Peripheral interface {
	Update(cycles int)
}

// InterruptSource reports a pending maskable interrupt. It is polled after
// each retired instruction while the I bit is clear.
type InterruptSource interface {
	PendingInterrupt() (vector uint16, ok bool)
}

// Output is the side channel Run watches for expected bytes.
type Output interface {
	Output() []byte
}

// TraceEntry is one executed instruction as seen after operand fetch.
type TraceEntry struct {
	PC   uint16
	Inst inst.Info
	Regs Registers
}

func (e TraceEntry) String() string {
	return fmt.Sprintf("$%04X: %-6s %s", e.PC, e.Inst.Mnemonic, e.Regs)
}

// CPU is the fetch/decode/execute core. It owns its registers and holds
// a reference to the memory bus. Not safe for concurrent use.
type CPU struct {
	Regs Registers

	bus         Bus
	set         *inst.Set
	breakpoints map[uint16]struct{}
	resumeAt    int32 // PC whose breakpoint is skipped once, -1 for none
	tracing     bool
	trace       []TraceEntry
	peripherals []Peripheral
	irqSources  []InterruptSource
	output      Output
	err         error
}

// New creates a core attached to bus with power-on registers.
func New(bus Bus) *CPU {
	return &CPU{
		Regs:        NewRegisters(),
		bus:         bus,
		set:         inst.Default(),
		breakpoints: make(map[uint16]struct{}),
		resumeAt:    -1,
	}
}

// Bus returns the memory the core is attached to.
func (c *CPU) Bus() Bus { return c.bus }

// Reset restores power-on registers and clears the trace and last error.
// Breakpoints and attached peripherals are kept.
func (c *CPU) Reset() {
	c.Regs.Reset()
	c.trace = c.trace[:0]
	c.err = nil
	c.resumeAt = -1
}

// LoadResetVector sets PC from the reset vector at $FFFE.
func (c *CPU) LoadResetVector() {
	c.Regs.PC = c.bus.Read16(VectorReset)
}

// Err returns the error behind the last StopIllegal or StopError.
func (c *CPU) Err() error { return c.err }

// AddPeripheral registers p to be updated after each instruction.
func (c *CPU) AddPeripheral(p Peripheral) {
	c.peripherals = append(c.peripherals, p)
}

// AddInterruptSource registers s to be polled for pending interrupts.
func (c *CPU) AddInterruptSource(s InterruptSource) {
	c.irqSources = append(c.irqSources, s)
}

// SetOutput sets the buffer Run scans for its expected output.
func (c *CPU) SetOutput(o Output) { c.output = o }

// AddBreakpoint stops execution before the instruction at addr.
func (c *CPU) AddBreakpoint(addr uint16) {
	c.breakpoints[addr] = struct{}{}
}

// RemoveBreakpoint deletes the breakpoint at addr, if any.
func (c *CPU) RemoveBreakpoint(addr uint16) {
	delete(c.breakpoints, addr)
}

// ClearBreakpoints removes every breakpoint.
func (c *CPU) ClearBreakpoints() {
	clear(c.breakpoints)
	c.resumeAt = -1
}

// Breakpoints returns the breakpoint addresses in ascending order.
func (c *CPU) Breakpoints() []uint16 {
	out := make([]uint16, 0, len(c.breakpoints))
	for a := range c.breakpoints {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetTrace turns instruction tracing on or off.
func (c *CPU) SetTrace(on bool) { c.tracing = on }

// Trace returns the recorded trace entries.
func (c *CPU) Trace() []TraceEntry { return c.trace }

// ClearTrace drops recorded entries.
func (c *CPU) ClearTrace() { c.trace = c.trace[:0] }

// Step executes one instruction.
//
// A breakpoint at PC returns StopBreak without fetching. Calling Step again
// at the same PC executes the instruction, so a stopped program can be
// resumed. Cycles are only charged for instructions that retire.
func (c *CPU) Step() StopReason {
	pc := c.Regs.PC
	if _, ok := c.breakpoints[pc]; ok && c.resumeAt != int32(pc) {
		c.resumeAt = int32(pc)
		return StopBreak
	}
	c.resumeAt = -1

	info, next, err := c.set.DecodeOpcode(c.bus, pc)
	if err != nil {
		c.err = err
		return StopIllegal
	}
	c.Regs.PC = next

	op, err := c.fetchOperand(info)
	if err != nil {
		c.err = fmt.Errorf("%s at $%04X: %w", info.Mnemonic, pc, err)
		return StopError
	}

	if c.tracing {
		c.trace = append(c.trace, TraceEntry{PC: pc, Inst: info, Regs: c.Regs})
	}

	switch sig, err := c.exec(info, op); {
	case err != nil:
		c.err = fmt.Errorf("%s at $%04X: %w", info.Mnemonic, pc, err)
		return StopError
	case sig == sigHalt:
		return StopHalt
	case sig == sigStop:
		return StopStop
	}

	c.charge(info.Cycles)
	c.pollInterrupts()
	return StopNone
}

// Run steps until the cycle counter reaches maxCycles, a step stops, or
// expected appears in the output buffer. maxCycles is compared against the
// absolute counter in Regs.Cycles. An empty expected never matches.
func (c *CPU) Run(maxCycles uint64, expected []byte) StopReason {
	for c.Regs.Cycles < maxCycles {
		if r := c.Step(); r != StopNone {
			return r
		}
		if len(expected) > 0 && c.output != nil && bytes.Contains(c.output.Output(), expected) {
			return StopDone
		}
	}
	return StopTimeout
}

// charge advances the cycle counter and every peripheral by n cycles.
func (c *CPU) charge(n int) {
	c.Regs.Cycles += uint64(n)
	for _, p := range c.peripherals {
		p.Update(n)
	}
}

func (c *CPU) stackAll() {
	c.Regs.Push16(c.bus, c.Regs.PC)
	c.Regs.Push16(c.bus, c.Regs.Y)
	c.Regs.Push16(c.bus, c.Regs.X)
	c.Regs.Push8(c.bus, c.Regs.A)
	c.Regs.Push8(c.bus, c.Regs.B)
	c.Regs.Push8(c.bus, c.Regs.CC)
}

// Interrupt services a maskable interrupt through vector. It returns false,
// doing nothing, while the I bit is set.
func (c *CPU) Interrupt(vector uint16) bool {
	if c.Regs.Flag(FlagI) {
		return false
	}
	c.stackAll()
	c.Regs.CC |= FlagI
	c.Regs.PC = c.bus.Read16(vector)
	c.charge(interruptCycles)
	return true
}

// XIRQ services the non-maskable XIRQ. It is ignored while X is set.
func (c *CPU) XIRQ() bool {
	if c.Regs.Flag(FlagX) {
		return false
	}
	c.stackAll()
	c.Regs.CC |= FlagX | FlagI
	c.Regs.PC = c.bus.Read16(VectorXIRQ)
	c.charge(interruptCycles)
	return true
}

func (c *CPU) pollInterrupts() {
	if c.Regs.Flag(FlagI) {
		return
	}
	for _, s := range c.irqSources {
		if vec, ok := s.PendingInterrupt(); ok {
			c.Interrupt(vec)
			return
		}
	}
}
