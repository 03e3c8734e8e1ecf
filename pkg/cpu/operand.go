package cpu

import (
	"fmt"

	"github.com/oisee/hc11emu/pkg/inst"
)

// operand is a resolved instruction operand. Which fields are meaningful
// depends on the addressing mode.
type operand struct {
	value  uint16 // immediate
	addr   uint16 // effective address
	mask   uint8  // bit-manipulation mask
	target uint16 // branch destination
}

// fetchOperand consumes operand bytes at PC and resolves them against the
// current registers. Branch targets are relative to the PC after the whole
// instruction.
func (c *CPU) fetchOperand(info inst.Info) (operand, error) {
	pc := c.Regs.PC
	var op operand
	switch info.Mode {
	case inst.INH:
	case inst.IMM8:
		op.value = uint16(c.bus.Read8(pc))
		pc++
	case inst.IMM16:
		op.value = c.bus.Read16(pc)
		pc += 2
	case inst.DIR:
		op.addr = uint16(c.bus.Read8(pc))
		pc++
	case inst.EXT:
		op.addr = c.bus.Read16(pc)
		pc += 2
	case inst.INDX:
		op.addr = c.Regs.X + uint16(c.bus.Read8(pc))
		pc++
	case inst.INDY:
		op.addr = c.Regs.Y + uint16(c.bus.Read8(pc))
		pc++
	case inst.REL:
		d := c.bus.Read8(pc)
		pc++
		op.target = pc + uint16(int8(d))
	case inst.BIT2DIR, inst.BIT3DIR:
		op.addr = uint16(c.bus.Read8(pc))
		op.mask = c.bus.Read8(pc + 1)
		pc += 2
	case inst.BIT2INDX, inst.BIT3INDX:
		op.addr = c.Regs.X + uint16(c.bus.Read8(pc))
		op.mask = c.bus.Read8(pc + 1)
		pc += 2
	case inst.BIT2INDY, inst.BIT3INDY:
		op.addr = c.Regs.Y + uint16(c.bus.Read8(pc))
		op.mask = c.bus.Read8(pc + 1)
		pc += 2
	default:
		return op, fmt.Errorf("unsupported addressing mode %s", info.Mode)
	}
	switch info.Mode {
	case inst.BIT3DIR, inst.BIT3INDX, inst.BIT3INDY:
		d := c.bus.Read8(pc)
		pc++
		op.target = pc + uint16(int8(d))
	}
	c.Regs.PC = pc
	return op, nil
}

func (c *CPU) load8(info inst.Info, op operand) uint8 {
	if info.Mode == inst.IMM8 {
		return uint8(op.value)
	}
	return c.bus.Read8(op.addr)
}

func (c *CPU) load16(info inst.Info, op operand) uint16 {
	if info.Mode == inst.IMM16 {
		return op.value
	}
	return c.bus.Read16(op.addr)
}
