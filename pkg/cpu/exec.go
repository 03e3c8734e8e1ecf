package cpu

import (
	"fmt"

	"github.com/oisee/hc11emu/pkg/inst"
)

type signal uint8

const (
	sigNone signal = iota
	sigHalt
	sigStop
)

// exec runs one decoded instruction whose operand has already been resolved
// and PC advanced past it.
func (c *CPU) exec(info inst.Info, op operand) (signal, error) {
	r := &c.Regs
	switch m := info.Mnemonic; m {
	// === loads and stores ===
	case inst.LDAA:
		r.A = c.load8(info, op)
		r.SetNZV(TestNZ8(r.A))
	case inst.LDAB:
		r.B = c.load8(info, op)
		r.SetNZV(TestNZ8(r.B))
	case inst.LDD:
		r.SetD(c.load16(info, op))
		r.SetNZV(TestNZ16(r.D()))
	case inst.LDX:
		r.X = c.load16(info, op)
		r.SetNZV(TestNZ16(r.X))
	case inst.LDY:
		r.Y = c.load16(info, op)
		r.SetNZV(TestNZ16(r.Y))
	case inst.LDS:
		r.SP = c.load16(info, op)
		r.SetNZV(TestNZ16(r.SP))
	case inst.STAA:
		c.bus.Write8(op.addr, r.A)
		r.SetNZV(TestNZ8(r.A))
	case inst.STAB:
		c.bus.Write8(op.addr, r.B)
		r.SetNZV(TestNZ8(r.B))
	case inst.STD:
		c.bus.Write16(op.addr, r.D())
		r.SetNZV(TestNZ16(r.D()))
	case inst.STX:
		c.bus.Write16(op.addr, r.X)
		r.SetNZV(TestNZ16(r.X))
	case inst.STY:
		c.bus.Write16(op.addr, r.Y)
		r.SetNZV(TestNZ16(r.Y))
	case inst.STS:
		c.bus.Write16(op.addr, r.SP)
		r.SetNZV(TestNZ16(r.SP))

	// === 8-bit arithmetic ===
	case inst.ADDA:
		var f uint8
		r.A, f = Add8(r.A, c.load8(info, op))
		r.SetHNZVC(f)
	case inst.ADDB:
		var f uint8
		r.B, f = Add8(r.B, c.load8(info, op))
		r.SetHNZVC(f)
	case inst.ADCA:
		var f uint8
		r.A, f = Adc8(r.A, c.load8(info, op), r.CC&FlagC)
		r.SetHNZVC(f)
	case inst.ADCB:
		var f uint8
		r.B, f = Adc8(r.B, c.load8(info, op), r.CC&FlagC)
		r.SetHNZVC(f)
	case inst.ABA:
		var f uint8
		r.A, f = Add8(r.A, r.B)
		r.SetHNZVC(f)
	case inst.SUBA:
		var f uint8
		r.A, f = Sub8(r.A, c.load8(info, op))
		r.SetNZVC(f)
	case inst.SUBB:
		var f uint8
		r.B, f = Sub8(r.B, c.load8(info, op))
		r.SetNZVC(f)
	case inst.SBCA:
		var f uint8
		r.A, f = Sbc8(r.A, c.load8(info, op), r.CC&FlagC)
		r.SetNZVC(f)
	case inst.SBCB:
		var f uint8
		r.B, f = Sbc8(r.B, c.load8(info, op), r.CC&FlagC)
		r.SetNZVC(f)
	case inst.SBA:
		var f uint8
		r.A, f = Sub8(r.A, r.B)
		r.SetNZVC(f)
	case inst.CMPA:
		_, f := Sub8(r.A, c.load8(info, op))
		r.SetNZVC(f)
	case inst.CMPB:
		_, f := Sub8(r.B, c.load8(info, op))
		r.SetNZVC(f)
	case inst.CBA:
		_, f := Sub8(r.A, r.B)
		r.SetNZVC(f)

	// === logic ===
	case inst.ANDA:
		var f uint8
		r.A, f = And8(r.A, c.load8(info, op))
		r.SetNZV(f)
	case inst.ANDB:
		var f uint8
		r.B, f = And8(r.B, c.load8(info, op))
		r.SetNZV(f)
	case inst.ORAA:
		var f uint8
		r.A, f = Or8(r.A, c.load8(info, op))
		r.SetNZV(f)
	case inst.ORAB:
		var f uint8
		r.B, f = Or8(r.B, c.load8(info, op))
		r.SetNZV(f)
	case inst.EORA:
		var f uint8
		r.A, f = Eor8(r.A, c.load8(info, op))
		r.SetNZV(f)
	case inst.EORB:
		var f uint8
		r.B, f = Eor8(r.B, c.load8(info, op))
		r.SetNZV(f)
	case inst.BITA:
		_, f := And8(r.A, c.load8(info, op))
		r.SetNZV(f)
	case inst.BITB:
		_, f := And8(r.B, c.load8(info, op))
		r.SetNZV(f)

	// === 16-bit arithmetic ===
	case inst.ADDD:
		d, f := Add16(r.D(), c.load16(info, op))
		r.SetD(d)
		r.SetNZVC(f)
	case inst.SUBD:
		d, f := Sub16(r.D(), c.load16(info, op))
		r.SetD(d)
		r.SetNZVC(f)
	case inst.CPD:
		_, f := Sub16(r.D(), c.load16(info, op))
		r.SetNZVC(f)
	case inst.CPX:
		_, f := Sub16(r.X, c.load16(info, op))
		r.SetNZVC(f)
	case inst.CPY:
		_, f := Sub16(r.Y, c.load16(info, op))
		r.SetNZVC(f)
	case inst.LSLD:
		d, f := Asl16(r.D())
		r.SetD(d)
		r.SetNZVC(f)
	case inst.LSRD:
		d, f := Lsr16(r.D())
		r.SetD(d)
		r.SetNZVC(f)
	case inst.ABX:
		r.X += uint16(r.B)
	case inst.ABY:
		r.Y += uint16(r.B)

	// === read-modify-write, accumulator and memory forms ===
	case inst.NEGA, inst.NEGB, inst.NEG:
		c.modify(m, op, Neg8, r.SetNZVC)
	case inst.COMA, inst.COMB, inst.COM:
		c.modify(m, op, Com8, r.SetNZVC)
	case inst.ASLA, inst.ASLB, inst.ASL:
		c.modify(m, op, Asl8, r.SetNZVC)
	case inst.ASRA, inst.ASRB, inst.ASR:
		c.modify(m, op, Asr8, r.SetNZVC)
	case inst.LSRA, inst.LSRB, inst.LSR:
		c.modify(m, op, Lsr8, r.SetNZVC)
	case inst.ROLA, inst.ROLB, inst.ROL:
		cin := r.CC & FlagC
		c.modify(m, op, func(v uint8) (uint8, uint8) { return Rol8(v, cin) }, r.SetNZVC)
	case inst.RORA, inst.RORB, inst.ROR:
		cin := r.CC & FlagC
		c.modify(m, op, func(v uint8) (uint8, uint8) { return Ror8(v, cin) }, r.SetNZVC)
	case inst.INCA, inst.INCB, inst.INC:
		c.modify(m, op, func(v uint8) (uint8, uint8) { return Add8(v, 1) }, r.SetNZV)
	case inst.DECA, inst.DECB, inst.DEC:
		c.modify(m, op, func(v uint8) (uint8, uint8) { return Sub8(v, 1) }, r.SetNZV)
	case inst.CLRA, inst.CLRB, inst.CLR:
		c.modify(m, op, func(uint8) (uint8, uint8) { return 0, FlagZ }, r.SetNZVC)
	case inst.TSTA, inst.TSTB, inst.TST:
		var v uint8
		switch m {
		case inst.TSTA:
			v = r.A
		case inst.TSTB:
			v = r.B
		default:
			v = c.bus.Read8(op.addr)
		}
		r.SetNZVC(TestNZ8(v))

	// === index and stack pointer ===
	case inst.INX:
		r.X++
		r.SetZ(bsel(r.X == 0, FlagZ))
	case inst.DEX:
		r.X--
		r.SetZ(bsel(r.X == 0, FlagZ))
	case inst.INY:
		r.Y++
		r.SetZ(bsel(r.Y == 0, FlagZ))
	case inst.DEY:
		r.Y--
		r.SetZ(bsel(r.Y == 0, FlagZ))
	case inst.INS:
		r.SP++
	case inst.DES:
		r.SP--
	case inst.TSX:
		r.X = r.SP + 1
	case inst.TSY:
		r.Y = r.SP + 1
	case inst.TXS:
		r.SP = r.X - 1
	case inst.TYS:
		r.SP = r.Y - 1
	case inst.XGDX:
		d := r.D()
		r.SetD(r.X)
		r.X = d
	case inst.XGDY:
		d := r.D()
		r.SetD(r.Y)
		r.Y = d
	case inst.PSHA:
		r.Push8(c.bus, r.A)
	case inst.PSHB:
		r.Push8(c.bus, r.B)
	case inst.PSHX:
		r.Push16(c.bus, r.X)
	case inst.PSHY:
		r.Push16(c.bus, r.Y)
	case inst.PULA:
		r.A = r.Pull8(c.bus)
	case inst.PULB:
		r.B = r.Pull8(c.bus)
	case inst.PULX:
		r.X = r.Pull16(c.bus)
	case inst.PULY:
		r.Y = r.Pull16(c.bus)

	// === transfers ===
	case inst.TAB:
		r.B = r.A
		r.SetNZV(TestNZ8(r.B))
	case inst.TBA:
		r.A = r.B
		r.SetNZV(TestNZ8(r.A))
	case inst.TAP:
		r.SetCCR(r.A)
	case inst.TPA:
		r.A = r.CC

	// === condition codes ===
	case inst.CLC:
		r.CC &^= FlagC
	case inst.SEC:
		r.CC |= FlagC
	case inst.CLV:
		r.CC &^= FlagV
	case inst.SEV:
		r.CC |= FlagV
	case inst.CLI:
		r.CC &^= FlagI
	case inst.SEI:
		r.CC |= FlagI

	// === multiply and divide ===
	case inst.MUL:
		d := uint16(r.A) * uint16(r.B)
		r.SetD(d)
		r.SetC(bsel(d&0x0080 != 0, FlagC))
	case inst.IDIV:
		c.idiv()
	case inst.FDIV:
		c.fdiv()

	// === bit manipulation ===
	case inst.BSET:
		v := c.bus.Read8(op.addr) | op.mask
		c.bus.Write8(op.addr, v)
		r.SetNZV(TestNZ8(v))
	case inst.BCLR:
		v := c.bus.Read8(op.addr) &^ op.mask
		c.bus.Write8(op.addr, v)
		r.SetNZV(TestNZ8(v))
	case inst.BRSET:
		if c.bus.Read8(op.addr)&op.mask == op.mask {
			r.PC = op.target
		}
	case inst.BRCLR:
		if c.bus.Read8(op.addr)&op.mask == 0 {
			r.PC = op.target
		}

	// === flow control ===
	case inst.BRA, inst.BRN, inst.BHI, inst.BLS, inst.BCC, inst.BCS, inst.BNE, inst.BEQ,
		inst.BVC, inst.BVS, inst.BPL, inst.BMI, inst.BGE, inst.BLT, inst.BGT, inst.BLE:
		if branchTaken(m, r.CC) {
			r.PC = op.target
		}
	case inst.BSR:
		r.Push16(c.bus, r.PC)
		r.PC = op.target
	case inst.JMP:
		r.PC = op.addr
	case inst.JSR:
		r.Push16(c.bus, r.PC)
		r.PC = op.addr
	case inst.RTS:
		r.PC = r.Pull16(c.bus)
	case inst.RTI:
		cc := r.Pull8(c.bus)
		r.B = r.Pull8(c.bus)
		r.A = r.Pull8(c.bus)
		r.X = r.Pull16(c.bus)
		r.Y = r.Pull16(c.bus)
		r.PC = r.Pull16(c.bus)
		r.SetCCR(cc)
	case inst.SWI:
		c.stackAll()
		r.CC |= FlagI
		r.PC = c.bus.Read16(VectorSWI)

	// === misc ===
	case inst.NOP:
	case inst.WAI, inst.TEST:
		return sigHalt, nil
	case inst.STOP:
		return sigStop, nil
	case inst.DAA:
		return sigNone, ErrUnimplemented

	default:
		return sigNone, fmt.Errorf("no handler for %s", m)
	}
	return sigNone, nil
}

// modify applies fn to A, B or the memory byte at op.addr depending on
// which form of the mnemonic m is, and hands the produced flags to set.
func (c *CPU) modify(m inst.Mnemonic, op operand, fn func(uint8) (uint8, uint8), set func(uint8)) {
	var f uint8
	switch m {
	case inst.NEGA, inst.COMA, inst.ASLA, inst.ASRA, inst.LSRA, inst.ROLA, inst.RORA,
		inst.INCA, inst.DECA, inst.CLRA:
		c.Regs.A, f = fn(c.Regs.A)
	case inst.NEGB, inst.COMB, inst.ASLB, inst.ASRB, inst.LSRB, inst.ROLB, inst.RORB,
		inst.INCB, inst.DECB, inst.CLRB:
		c.Regs.B, f = fn(c.Regs.B)
	default:
		var v uint8
		v, f = fn(c.bus.Read8(op.addr))
		c.bus.Write8(op.addr, v)
	}
	set(f)
}

// branchTaken evaluates a conditional branch against cc.
func branchTaken(m inst.Mnemonic, cc uint8) bool {
	c := cc&FlagC != 0
	z := cc&FlagZ != 0
	n := cc&FlagN != 0
	v := cc&FlagV != 0
	switch m {
	case inst.BRA:
		return true
	case inst.BRN:
		return false
	case inst.BHI:
		return !c && !z
	case inst.BLS:
		return c || z
	case inst.BCC:
		return !c
	case inst.BCS:
		return c
	case inst.BNE:
		return !z
	case inst.BEQ:
		return z
	case inst.BVC:
		return !v
	case inst.BVS:
		return v
	case inst.BPL:
		return !n
	case inst.BMI:
		return n
	case inst.BGE:
		return n == v
	case inst.BLT:
		return n != v
	case inst.BGT:
		return !z && n == v
	case inst.BLE:
		return z || n != v
	}
	return false
}

// idiv is D/X unsigned: quotient to X, remainder to D. Division by zero
// leaves X=$FFFF, D=0 and sets C.
func (c *CPU) idiv() {
	r := &c.Regs
	d, x := r.D(), r.X
	if x == 0 {
		r.X = 0xFFFF
		r.SetD(0)
		r.SetZVC(FlagC)
		return
	}
	q := d / x
	r.X = q
	r.SetD(d % x)
	r.SetZVC(bsel(q == 0, FlagZ))
}

// fdiv is the fractional divide (D<<16)/X. The divisor must be greater than
// D; otherwise X=$FFFF, D=0 and only V is set, a zero divisor included.
func (c *CPU) fdiv() {
	r := &c.Regs
	d, x := r.D(), r.X
	if x == 0 || x <= d {
		r.X = 0xFFFF
		r.SetD(0)
		r.SetZVC(FlagV)
		return
	}
	num := uint32(d) << 16
	q := uint16(num / uint32(x))
	r.X = q
	r.SetD(uint16(num % uint32(x)))
	r.SetZVC(bsel(q == 0, FlagZ))
}
