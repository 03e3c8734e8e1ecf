// Package script drives a machine from Lua. Test scenarios load an image,
// inject sensor and serial input, run to a condition and inspect RAM and
// SCI output without recompiling the harness.
package script

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/oisee/hc11emu/pkg/cpu"
	"github.com/oisee/hc11emu/pkg/emu"
	"github.com/oisee/hc11emu/pkg/inst"
)

// Script is a Lua state bound to one machine. Not safe for concurrent use.
type Script struct {
	L   *lua.LState
	m   *emu.Machine
	out io.Writer
}

// New creates a Lua state exposing m. print writes to out.
func New(m *emu.Machine, out io.Writer) *Script {
	if out == nil {
		out = os.Stdout
	}
	s := &Script{L: lua.NewState(), m: m, out: out}
	for name, fn := range map[string]lua.LGFunction{
		"load_binary":  s.loadBinary,
		"load_s19":     s.loadS19,
		"poke":         s.poke,
		"peek":         s.peek,
		"peek16":       s.peek16,
		"step":         s.step,
		"run":          s.run,
		"reset":        s.reset,
		"reg":          s.reg,
		"set_reg":      s.setReg,
		"sci_inject":   s.sciInject,
		"sci_output":   s.sciOutput,
		"adc":          s.adc,
		"port":         s.port,
		"breakpoint":   s.addBreak,
		"unbreakpoint": s.removeBreak,
		"cycles":       s.cycles,
		"disasm":       s.disasm,
		"print":        s.print,
	} {
		s.L.SetGlobal(name, s.L.NewFunction(fn))
	}
	return s
}

// Close releases the Lua state.
func (s *Script) Close() { s.L.Close() }

// DoString runs Lua source.
func (s *Script) DoString(ctx context.Context, src string) error {
	s.L.SetContext(ctx)
	if err := s.L.DoString(src); err != nil {
		return fmt.Errorf("lua: %w", err)
	}
	return nil
}

// DoFile runs a Lua file.
func (s *Script) DoFile(ctx context.Context, path string) error {
	s.L.SetContext(ctx)
	if err := s.L.DoFile(path); err != nil {
		return fmt.Errorf("lua %s: %w", path, err)
	}
	return nil
}

// Run executes src against m and closes the state.
func Run(ctx context.Context, m *emu.Machine, src string, out io.Writer) error {
	s := New(m, out)
	defer s.Close()
	return s.DoString(ctx, src)
}

func (s *Script) addr(n int) uint16 {
	v := s.L.CheckInt(n)
	if v < 0 || v > 0xFFFF {
		s.L.ArgError(n, "address out of range")
	}
	return uint16(v)
}

// load_binary(path [, base]) -> bytes loaded
func (s *Script) loadBinary(L *lua.LState) int {
	path := L.CheckString(1)
	data, err := os.ReadFile(path)
	if err != nil {
		L.RaiseError("load_binary: %v", err)
		return 0
	}
	if L.GetTop() >= 2 {
		base := s.addr(2)
		s.m.Mem.LoadBinary(data, base)
		s.m.SetEntry(base)
	} else {
		s.m.LoadBinary(data)
	}
	L.Push(lua.LNumber(len(data)))
	return 1
}

// load_s19(path) -> entry address
func (s *Script) loadS19(L *lua.LState) int {
	f, err := os.Open(L.CheckString(1))
	if err != nil {
		L.RaiseError("load_s19: %v", err)
		return 0
	}
	defer f.Close()
	if _, err := s.m.LoadS19(f); err != nil {
		L.RaiseError("load_s19: %v", err)
		return 0
	}
	L.Push(lua.LNumber(s.m.Entry()))
	return 1
}

// poke(addr, value) writes through the bus, so I/O handlers run.
func (s *Script) poke(L *lua.LState) int {
	s.m.Mem.Write8(s.addr(1), uint8(L.CheckInt(2)))
	return 0
}

// peek(addr) -> byte
func (s *Script) peek(L *lua.LState) int {
	L.Push(lua.LNumber(s.m.Mem.Read8(s.addr(1))))
	return 1
}

// peek16(addr) -> big-endian word
func (s *Script) peek16(L *lua.LState) int {
	L.Push(lua.LNumber(s.m.Mem.Read16(s.addr(1))))
	return 1
}

// step([n]) -> stop reason of the last step
func (s *Script) step(L *lua.LState) int {
	n := L.OptInt(1, 1)
	reason := "NONE"
	for range n {
		if r := s.m.CPU.Step(); r != cpu.StopNone {
			reason = r.String()
			break
		}
	}
	L.Push(lua.LString(reason))
	return 1
}

// run() -> stop reason, running on from the current state
func (s *Script) run(L *lua.LState) int {
	rep := s.m.Continue("script")
	L.Push(lua.LString(rep.Reason.String()))
	return 1
}

// reset() restarts the core at the entry point
func (s *Script) reset(L *lua.LState) int {
	s.m.Start()
	return 0
}

// reg(name) -> value
func (s *Script) reg(L *lua.LState) int {
	r := &s.m.CPU.Regs
	var v uint64
	switch strings.ToLower(L.CheckString(1)) {
	case "a":
		v = uint64(r.A)
	case "b":
		v = uint64(r.B)
	case "d":
		v = uint64(r.D())
	case "x":
		v = uint64(r.X)
	case "y":
		v = uint64(r.Y)
	case "sp":
		v = uint64(r.SP)
	case "pc":
		v = uint64(r.PC)
	case "cc", "ccr":
		v = uint64(r.CC)
	case "cycles":
		v = r.Cycles
	default:
		L.ArgError(1, "unknown register")
	}
	L.Push(lua.LNumber(v))
	return 1
}

// set_reg(name, value)
func (s *Script) setReg(L *lua.LState) int {
	r := &s.m.CPU.Regs
	v := L.CheckInt(2)
	switch strings.ToLower(L.CheckString(1)) {
	case "a":
		r.A = uint8(v)
	case "b":
		r.B = uint8(v)
	case "d":
		r.SetD(uint16(v))
	case "x":
		r.X = uint16(v)
	case "y":
		r.Y = uint16(v)
	case "sp":
		r.SP = uint16(v)
	case "pc":
		r.PC = uint16(v)
	case "cc", "ccr":
		r.SetCCR(uint8(v))
	default:
		L.ArgError(1, "unknown register")
	}
	return 0
}

// sci_inject(str) queues bytes on the SCI receiver
func (s *Script) sciInject(L *lua.LState) int {
	s.m.SCI.Inject([]byte(L.CheckString(1)))
	return 0
}

// sci_output() -> everything the program transmitted
func (s *Script) sciOutput(L *lua.LState) int {
	L.Push(lua.LString(s.m.SCI.Output()))
	return 1
}

// adc(channel, value) injects a sensor reading
func (s *Script) adc(L *lua.LState) int {
	s.m.ADC.SetChannel(L.CheckInt(1), uint8(L.CheckInt(2)))
	return 0
}

// port(addr) -> port register value
func (s *Script) port(L *lua.LState) int {
	L.Push(lua.LNumber(s.m.Ports.Get(s.addr(1))))
	return 1
}

func (s *Script) addBreak(L *lua.LState) int {
	s.m.CPU.AddBreakpoint(s.addr(1))
	return 0
}

func (s *Script) removeBreak(L *lua.LState) int {
	s.m.CPU.RemoveBreakpoint(s.addr(1))
	return 0
}

func (s *Script) cycles(L *lua.LState) int {
	L.Push(lua.LNumber(s.m.CPU.Regs.Cycles))
	return 1
}

// disasm(addr [, count]) -> listing text
func (s *Script) disasm(L *lua.LState) int {
	pc := s.addr(1)
	n := L.OptInt(2, 1)
	end := min(int(pc)+5*n-1, 0xFFFF) // longest instruction is 5 bytes
	lines := inst.Default().Disassemble(s.m.Mem, pc, uint16(end))
	if len(lines) > n {
		lines = lines[:n]
	}
	text := make([]string, len(lines))
	for i, l := range lines {
		text[i] = l.String()
	}
	L.Push(lua.LString(strings.Join(text, "\n")))
	return 1
}

// print(...) writes its arguments tab separated to the script output.
func (s *Script) print(L *lua.LState) int {
	top := L.GetTop()
	parts := make([]string, top)
	for i := 1; i <= top; i++ {
		parts[i-1] = L.ToStringMeta(L.Get(i)).String()
	}
	fmt.Fprintln(s.out, strings.Join(parts, "\t"))
	return 0
}
