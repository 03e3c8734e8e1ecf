package cpu

// ALU primitives. Each returns the result together with the flag bits it
// produced; callers choose which group of those bits reaches the CCR.

// TestNZ8 returns N and Z for v. V is always clear.
func TestNZ8(v uint8) uint8 {
	return nzTable[v]
}

// TestNZ16 returns N and Z for a 16-bit value. V is always clear.
func TestNZ16(v uint16) uint8 {
	var f uint8
	if v&0x8000 != 0 {
		f |= FlagN
	}
	if v == 0 {
		f |= FlagZ
	}
	return f
}

func bsel(cond bool, f uint8) uint8 {
	if cond {
		return f
	}
	return 0
}

func addFlags8(a, b, r uint8, carry bool) uint8 {
	f := nzTable[r] | bsel(carry, FlagC)
	f |= bsel((a&b|a&^r|b&^r)&0x08 != 0, FlagH)
	f |= bsel((a&b&^r|^a&^b&r)&0x80 != 0, FlagV)
	return f
}

func subFlags8(a, b, r uint8, borrow bool) uint8 {
	f := nzTable[r] | bsel(borrow, FlagC)
	f |= bsel((a&^b&^r|^a&b&r)&0x80 != 0, FlagV)
	return f
}

// Add8 returns a+b with H N Z V C.
func Add8(a, b uint8) (uint8, uint8) {
	sum := uint16(a) + uint16(b)
	r := uint8(sum)
	return r, addFlags8(a, b, r, sum > 0xFF)
}

// Adc8 returns a+b+c with H N Z V C; c is 0 or 1.
func Adc8(a, b, c uint8) (uint8, uint8) {
	sum := uint16(a) + uint16(b) + uint16(c&1)
	r := uint8(sum)
	return r, addFlags8(a, b, r, sum > 0xFF)
}

// Sub8 returns a-b with N Z V C.
func Sub8(a, b uint8) (uint8, uint8) {
	r := a - b
	return r, subFlags8(a, b, r, b > a)
}

// Sbc8 returns a-b-c with N Z V C; c is 0 or 1.
func Sbc8(a, b, c uint8) (uint8, uint8) {
	c &= 1
	r := a - b - c
	return r, subFlags8(a, b, r, uint16(b)+uint16(c) > uint16(a))
}

// And8, Or8 and Eor8 return N Z with V clear.
func And8(a, b uint8) (uint8, uint8) { r := a & b; return r, nzTable[r] }
func Or8(a, b uint8) (uint8, uint8)  { r := a | b; return r, nzTable[r] }
func Eor8(a, b uint8) (uint8, uint8) { r := a ^ b; return r, nzTable[r] }

// Neg8 returns 0-v. V is set only for $80, C whenever the result is non-zero.
func Neg8(v uint8) (uint8, uint8) {
	r := -v
	return r, nzTable[r] | bsel(r == 0x80, FlagV) | bsel(r != 0, FlagC)
}

// Com8 returns the ones' complement. C is always set, V always clear.
func Com8(v uint8) (uint8, uint8) {
	r := ^v
	return r, nzTable[r] | FlagC
}

// shiftFlags sets V = N xor C, the rule for every HC11 shift and rotate.
func shiftFlags(nz uint8, carry bool) uint8 {
	f := nz | bsel(carry, FlagC)
	if (f&FlagN != 0) != carry {
		f |= FlagV
	}
	return f
}

// Asl8 shifts left; bit 7 goes to C.
func Asl8(v uint8) (uint8, uint8) {
	r := v << 1
	return r, shiftFlags(nzTable[r], v&0x80 != 0)
}

// Asr8 shifts right keeping the sign bit; bit 0 goes to C.
func Asr8(v uint8) (uint8, uint8) {
	r := v>>1 | v&0x80
	return r, shiftFlags(nzTable[r], v&0x01 != 0)
}

// Lsr8 shifts right inserting zero. N is always clear, so V equals C.
func Lsr8(v uint8) (uint8, uint8) {
	r := v >> 1
	return r, shiftFlags(nzTable[r], v&0x01 != 0)
}

// Rol8 rotates left through carry c.
func Rol8(v, c uint8) (uint8, uint8) {
	r := v<<1 | c&1
	return r, shiftFlags(nzTable[r], v&0x80 != 0)
}

// Ror8 rotates right through carry c.
func Ror8(v, c uint8) (uint8, uint8) {
	r := v>>1 | (c&1)<<7
	return r, shiftFlags(nzTable[r], v&0x01 != 0)
}

// Add16 returns a+b with N Z V C.
func Add16(a, b uint16) (uint16, uint8) {
	sum := uint32(a) + uint32(b)
	r := uint16(sum)
	f := TestNZ16(r) | bsel(sum > 0xFFFF, FlagC)
	f |= bsel((a&b&^r|^a&^b&r)&0x8000 != 0, FlagV)
	return r, f
}

// Sub16 returns a-b with N Z V C.
func Sub16(a, b uint16) (uint16, uint8) {
	r := a - b
	f := TestNZ16(r) | bsel(b > a, FlagC)
	f |= bsel((a&^b&^r|^a&b&r)&0x8000 != 0, FlagV)
	return r, f
}

// Asl16 shifts a 16-bit value left; bit 15 goes to C.
func Asl16(v uint16) (uint16, uint8) {
	r := v << 1
	return r, shiftFlags(TestNZ16(r), v&0x8000 != 0)
}

// Lsr16 shifts a 16-bit value right inserting zero.
func Lsr16(v uint16) (uint16, uint8) {
	r := v >> 1
	return r, shiftFlags(TestNZ16(r), v&0x0001 != 0)
}

// TwosComplement8 interprets v as a signed byte.
func TwosComplement8(v uint8) int {
	return int(int8(v))
}
