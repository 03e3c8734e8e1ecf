package inst

import "strings"

// Mnemonic is a compact identifier for an HC11 operation, independent of
// addressing mode and opcode page. LDAA is one Mnemonic whether it is
// encoded as $86, $96, $A6, $B6 or $18 $A6.
type Mnemonic uint8

// Mnemonic constants, alphabetical. ASL* and LSL* share encodings on the
// HC11, so only the ASL spellings (and LSLD) exist here; ParseMnemonic
// accepts the aliases.
const (
	ABA Mnemonic = iota
	ABX
	ABY
	ADCA
	ADCB
	ADDA
	ADDB
	ADDD
	ANDA
	ANDB
	ASL
	ASLA
	ASLB
	ASR
	ASRA
	ASRB
	BCC
	BCLR
	BCS
	BEQ
	BGE
	BGT
	BHI
	BITA
	BITB
	BLE
	BLS
	BLT
	BMI
	BNE
	BPL
	BRA
	BRCLR
	BRN
	BRSET
	BSET
	BSR
	BVC
	BVS
	CBA
	CLC
	CLI
	CLR
	CLRA
	CLRB
	CLV
	CMPA
	CMPB
	COM
	COMA
	COMB
	CPD
	CPX
	CPY
	DAA
	DEC
	DECA
	DECB
	DES
	DEX
	DEY
	EORA
	EORB
	FDIV
	IDIV
	INC
	INCA
	INCB
	INS
	INX
	INY
	JMP
	JSR
	LDAA
	LDAB
	LDD
	LDS
	LDX
	LDY
	LSLD
	LSR
	LSRA
	LSRB
	LSRD
	MUL
	NEG
	NEGA
	NEGB
	NOP
	ORAA
	ORAB
	PSHA
	PSHB
	PSHX
	PSHY
	PULA
	PULB
	PULX
	PULY
	ROL
	ROLA
	ROLB
	ROR
	RORA
	RORB
	RTI
	RTS
	SBA
	SBCA
	SBCB
	SEC
	SEI
	SEV
	STAA
	STAB
	STD
	STOP
	STS
	STX
	STY
	SUBA
	SUBB
	SUBD
	SWI
	TAB
	TAP
	TBA
	TEST
	TPA
	TST
	TSTA
	TSTB
	TSX
	TSY
	TXS
	TYS
	WAI
	XGDX
	XGDY

	MnemonicCount
)

var mnemonicNames = [MnemonicCount]string{
	"ABA", "ABX", "ABY", "ADCA", "ADCB", "ADDA", "ADDB", "ADDD", "ANDA", "ANDB",
	"ASL", "ASLA", "ASLB", "ASR", "ASRA", "ASRB",
	"BCC", "BCLR", "BCS", "BEQ", "BGE", "BGT", "BHI", "BITA", "BITB", "BLE",
	"BLS", "BLT", "BMI", "BNE", "BPL", "BRA", "BRCLR", "BRN", "BRSET", "BSET",
	"BSR", "BVC", "BVS",
	"CBA", "CLC", "CLI", "CLR", "CLRA", "CLRB", "CLV", "CMPA", "CMPB", "COM",
	"COMA", "COMB", "CPD", "CPX", "CPY",
	"DAA", "DEC", "DECA", "DECB", "DES", "DEX", "DEY",
	"EORA", "EORB", "FDIV", "IDIV",
	"INC", "INCA", "INCB", "INS", "INX", "INY",
	"JMP", "JSR",
	"LDAA", "LDAB", "LDD", "LDS", "LDX", "LDY", "LSLD", "LSR", "LSRA", "LSRB", "LSRD",
	"MUL", "NEG", "NEGA", "NEGB", "NOP", "ORAA", "ORAB",
	"PSHA", "PSHB", "PSHX", "PSHY", "PULA", "PULB", "PULX", "PULY",
	"ROL", "ROLA", "ROLB", "ROR", "RORA", "RORB", "RTI", "RTS",
	"SBA", "SBCA", "SBCB", "SEC", "SEI", "SEV", "STAA", "STAB", "STD", "STOP",
	"STS", "STX", "STY", "SUBA", "SUBB", "SUBD", "SWI",
	"TAB", "TAP", "TBA", "TEST", "TPA", "TST", "TSTA", "TSTB", "TSX", "TSY",
	"TXS", "TYS", "WAI", "XGDX", "XGDY",
}

func (m Mnemonic) String() string {
	if m < MnemonicCount {
		return mnemonicNames[m]
	}
	return "???"
}

var mnemonicAliases = map[string]Mnemonic{
	"LSL":  ASL,
	"LSLA": ASLA,
	"LSLB": ASLB,
	"ASLD": LSLD,
	"BHS":  BCC,
	"BLO":  BCS,
}

// ParseMnemonic looks up a mnemonic by name, case-insensitively.
// Motorola aliases (LSLA, BHS, BLO, ...) resolve to their canonical form.
func ParseMnemonic(s string) (Mnemonic, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for m := Mnemonic(0); m < MnemonicCount; m++ {
		if mnemonicNames[m] == s {
			return m, true
		}
	}
	m, ok := mnemonicAliases[s]
	return m, ok
}

// IsBranch reports whether m is a conditional or unconditional relative branch
// (including BSR, excluding BRSET/BRCLR).
func IsBranch(m Mnemonic) bool {
	switch m {
	case BRA, BRN, BHI, BLS, BCC, BCS, BNE, BEQ, BVC, BVS, BPL, BMI, BGE, BLT, BGT, BLE, BSR:
		return true
	}
	return false
}

// ChangesFlow reports whether executing m may load PC with something other
// than the address of the next instruction.
func ChangesFlow(m Mnemonic) bool {
	switch m {
	case JMP, JSR, RTS, RTI, SWI, BRSET, BRCLR:
		return true
	}
	return IsBranch(m)
}

// Mode is an HC11 addressing mode.
type Mode uint8

const (
	INH      Mode = iota // no operand
	IMM8                 // #$nn
	IMM16                // #$nnnn
	DIR                  // $nn, page zero
	EXT                  // $nnnn
	INDX                 // $nn,X
	INDY                 // $nn,Y
	REL                  // signed 8-bit branch offset
	BIT2DIR              // BSET/BCLR $nn #mask
	BIT2INDX             // BSET/BCLR $nn,X #mask
	BIT2INDY             // BSET/BCLR $nn,Y #mask
	BIT3DIR              // BRSET/BRCLR $nn #mask rel
	BIT3INDX             // BRSET/BRCLR $nn,X #mask rel
	BIT3INDY             // BRSET/BRCLR $nn,Y #mask rel

	ModeCount
)

var modeNames = [ModeCount]string{
	"INH", "IMM8", "IMM16", "DIR", "EXT", "INDX", "INDY", "REL",
	"BIT2DIR", "BIT2INDX", "BIT2INDY", "BIT3DIR", "BIT3INDX", "BIT3INDY",
}

func (m Mode) String() string {
	if m < ModeCount {
		return modeNames[m]
	}
	return "???"
}

// OperandLen returns the number of operand bytes that follow the opcode.
func (m Mode) OperandLen() int {
	switch m {
	case INH:
		return 0
	case IMM8, DIR, INDX, INDY, REL:
		return 1
	case IMM16, EXT, BIT2DIR, BIT2INDX, BIT2INDY:
		return 2
	case BIT3DIR, BIT3INDX, BIT3INDY:
		return 3
	}
	return 0
}

// Prefix is an opcode prebyte selecting an alternate page, or NoPrefix.
type Prefix uint8

const (
	NoPrefix Prefix = 0x00
	Page2    Prefix = 0x18 // Y-register substitutions
	Page3    Prefix = 0x1A // CPD, X-indexed CPY/LDY/STY
	Page4    Prefix = 0xCD // Y-indexed CPD/CPX/LDX/STX
)

// IsPrefix reports whether b is one of the three prebytes.
func IsPrefix(b uint8) bool {
	return b == uint8(Page2) || b == uint8(Page3) || b == uint8(Page4)
}

// Info describes one opcode: everything the decoder knows about it.
type Info struct {
	Mnemonic Mnemonic
	Mode     Mode
	Prefix   Prefix
	Opcode   uint8
	Cycles   int // E-clock cycles
}

// OperandLen is the operand byte count, excluding prefix and opcode.
func (i Info) OperandLen() int {
	return i.Mode.OperandLen()
}

// Len is the total encoded length including any prebyte.
func (i Info) Len() int {
	n := 1 + i.Mode.OperandLen()
	if i.Prefix != NoPrefix {
		n++
	}
	return n
}

// Instruction is one decoded (or to-be-encoded) instruction.
// Which operand fields are meaningful depends on Mode:
//
//	IMM8/IMM16          Operand = value
//	DIR/EXT             Operand = address
//	INDX/INDY           Operand = unsigned offset
//	REL                 Target
//	BIT2*               Operand = address or offset, Mask
//	BIT3*               Operand = address or offset, Mask, Target
type Instruction struct {
	Info
	Addr    uint16 // address of the first byte (prebyte if any)
	Operand uint16
	Mask    uint8
	Target  uint16
}

// Next returns the address immediately after the instruction.
func (in Instruction) Next() uint16 {
	return in.Addr + uint16(in.Len())
}

// Relocate moves in to addr. A branch target moves with the instruction so
// the encoded displacement is unchanged.
func (in *Instruction) Relocate(addr uint16) {
	switch in.Mode {
	case REL, BIT3DIR, BIT3INDX, BIT3INDY:
		in.Target += addr - in.Addr
	}
	in.Addr = addr
}

// SeqByteSize returns total byte size for a sequence of instructions.
func SeqByteSize(seq []Instruction) int {
	n := 0
	for i := range seq {
		n += seq[i].Len()
	}
	return n
}

// SeqCycles returns total E-clock cycles for a sequence of instructions.
func SeqCycles(seq []Instruction) int {
	c := 0
	for i := range seq {
		c += seq[i].Cycles
	}
	return c
}
