// Package emu wires the core, memory and peripherals into a runnable
// Delco PCM machine.
package emu

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oisee/hc11emu/pkg/cpu"
	"github.com/oisee/hc11emu/pkg/inst"
	"github.com/oisee/hc11emu/pkg/mem"
	"github.com/oisee/hc11emu/pkg/periph"
	"github.com/oisee/hc11emu/pkg/result"
)

// Machine is one emulated PCM. Machines share nothing and may run in
// parallel; a single Machine is not safe for concurrent use.
type Machine struct {
	CPU   *cpu.CPU
	Mem   *mem.Memory
	SCI   *periph.SCI
	ADC   *periph.ADC
	Timer *periph.Timer
	Ports *periph.Ports
	Log   *logrus.Logger

	cfg   Config
	entry uint16
}

// New builds a machine from cfg. Peripherals are registered, sensor and
// SCI inputs injected and breakpoints set; no image is loaded yet.
func New(cfg Config) *Machine {
	cfg = cfg.withDefaults()
	m := &Machine{
		Mem:   mem.New(),
		SCI:   periph.NewSCI(),
		ADC:   periph.NewADC(),
		Timer: periph.NewTimer(),
		Ports: periph.NewPorts(),
		Log:   cfg.Logger,
		cfg:   cfg,
		entry: cfg.BaseAddr,
	}
	m.SCI.Register(m.Mem)
	m.ADC.Register(m.Mem)
	m.Timer.Register(m.Mem)
	m.Ports.Register(m.Mem)

	m.CPU = cpu.New(m.Mem)
	m.CPU.AddPeripheral(m.SCI)
	m.CPU.AddPeripheral(m.ADC)
	m.CPU.AddPeripheral(m.Timer)
	m.CPU.AddPeripheral(m.Ports)
	m.CPU.AddInterruptSource(m.Timer)
	m.CPU.AddInterruptSource(m.SCI)
	m.CPU.SetOutput(m.SCI)
	if m.Log.IsLevelEnabled(logrus.DebugLevel) {
		m.CPU.AddPeripheral(&stepLogger{m: m})
	}

	if cfg.SensorsNormal {
		m.ADC.SetSensorsNormal()
	}
	for ch, v := range cfg.ADCChannels {
		m.ADC.SetChannel(ch, v)
	}
	if len(cfg.SCIInput) > 0 {
		m.SCI.Inject(cfg.SCIInput)
	}
	for _, bp := range cfg.Breakpoints {
		m.CPU.AddBreakpoint(bp)
	}
	m.CPU.SetTrace(cfg.Trace)
	for _, a := range cfg.Watch {
		m.Mem.AddWatchpoint(a, m.logWrite)
	}
	m.Ports.OnChange(periph.PORTB, func(_ uint16, old, v uint8) {
		m.Log.WithFields(logrus.Fields{
			"old": fmt.Sprintf("%08b", old),
			"new": fmt.Sprintf("%08b", v),
		}).Info("PORTB changed")
	})
	return m
}

// Config returns the effective configuration.
func (m *Machine) Config() Config { return m.cfg }

// Entry is the PC Start uses when the reset vector is not selected.
func (m *Machine) Entry() uint16 { return m.entry }

// SetEntry overrides the start PC.
func (m *Machine) SetEntry(pc uint16) { m.entry = pc }

func (m *Machine) logWrite(addr uint16, old, v uint8, _ bool) {
	m.Log.WithFields(logrus.Fields{
		"addr": fmt.Sprintf("$%04X", addr),
		"old":  fmt.Sprintf("%02X", old),
		"new":  fmt.Sprintf("%02X", v),
		"pc":   fmt.Sprintf("$%04X", m.CPU.Regs.PC),
	}).Info("watched write")
}

// stepLogger logs every retired instruction at debug level.
type stepLogger struct{ m *Machine }

func (s *stepLogger) Update(cycles int) {
	r := s.m.CPU.Regs
	s.m.Log.WithFields(logrus.Fields{
		"pc":     fmt.Sprintf("$%04X", r.PC),
		"cycles": cycles,
		"regs":   r.String(),
	}).Debug("cpu step")
}

// Start resets the registers and sets PC from the reset vector or the
// entry address.
func (m *Machine) Start() {
	m.CPU.Reset()
	if m.cfg.UseResetVector {
		m.CPU.LoadResetVector()
	} else {
		m.CPU.Regs.PC = m.entry
	}
}

// Reset returns memory and every peripheral to power-on state and
// restarts the core. Loaded images are lost.
func (m *Machine) Reset() {
	m.Mem.Reset()
	m.SCI.Reset()
	m.ADC.Reset()
	m.Timer.Reset()
	m.Ports.Reset()
	m.Start()
}

// Run starts the machine and runs it until a stop condition, returning a
// report. When EEPROMPath is set the EEPROM is saved afterwards.
func (m *Machine) Run(name string) result.Report {
	m.Start()
	return m.Continue(name)
}

// Continue runs from the current state without resetting registers.
func (m *Machine) Continue(name string) result.Report {
	start := time.Now()
	reason := m.CPU.Run(m.cfg.MaxCycles, m.cfg.ExpectedOutput)
	rep := result.Report{
		Name:     name,
		Reason:   reason,
		Cycles:   m.CPU.Regs.Cycles,
		Regs:     m.CPU.Regs,
		Output:   append([]byte(nil), m.SCI.Output()...),
		Duration: time.Since(start),
	}
	fields := logrus.Fields{
		"name":   name,
		"reason": reason.String(),
		"pc":     fmt.Sprintf("$%04X", m.CPU.Regs.PC),
		"cycles": m.CPU.Regs.Cycles,
	}
	switch reason {
	case cpu.StopIllegal, cpu.StopError:
		err := m.CPU.Err()
		if err == nil {
			err = errors.New(reason.String())
		}
		rep.Err = err.Error()
		var ill *inst.IllegalOpcodeError
		if errors.As(err, &ill) {
			fields["opcode"] = fmt.Sprintf("%02X", ill.Opcode)
		}
		m.Log.WithFields(fields).WithError(err).Warn("run stopped on fault")
	default:
		m.Log.WithFields(fields).Info("run stopped")
	}
	if m.cfg.EEPROMPath != "" {
		if err := m.Mem.SaveEEPROM(m.cfg.EEPROMPath); err != nil {
			m.Log.WithError(err).Error("eeprom not saved")
			if rep.Err == "" {
				rep.Err = err.Error()
			}
		}
	}
	return rep
}

// Checkpoint captures the machine state.
func (m *Machine) Checkpoint() *result.Checkpoint {
	return &result.Checkpoint{
		Regs:        m.CPU.Regs,
		Memory:      m.Mem.Image(),
		SCIOutput:   append([]byte(nil), m.SCI.Output()...),
		Breakpoints: m.CPU.Breakpoints(),
	}
}

// Restore loads a checkpoint. Peripheral registers other than the SCI
// transmit buffer return to their reset state.
func (m *Machine) Restore(ck *result.Checkpoint) error {
	if err := m.Mem.Restore(ck.Memory); err != nil {
		return fmt.Errorf("restore checkpoint: %w", err)
	}
	m.SCI.Reset()
	m.SCI.SetOutput(ck.SCIOutput)
	m.ADC.Reset()
	m.Timer.Reset()
	m.Ports.Reset()
	m.CPU.Regs = ck.Regs
	m.CPU.ClearBreakpoints()
	for _, bp := range ck.Breakpoints {
		m.CPU.AddBreakpoint(bp)
	}
	return nil
}
