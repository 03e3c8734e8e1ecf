package inst

import (
	"errors"
	"testing"
)

// TestCatalogCompleteness verifies every defined opcode has a sane description.
func TestCatalogCompleteness(t *testing.T) {
	s := Default()
	if s.Len() != 308 {
		t.Errorf("opcode count = %d, want 308", s.Len())
	}
	for _, info := range s.All() {
		if info.Mnemonic >= MnemonicCount {
			t.Errorf("%s: mnemonic out of range", info)
		}
		if info.Cycles <= 0 {
			t.Errorf("%s: %d cycles", info, info.Cycles)
		}
		got, ok := s.Lookup(info.Prefix, info.Opcode)
		if !ok || got != info {
			t.Errorf("Lookup(%02X, %02X) = %v, %v; want %v", uint8(info.Prefix), info.Opcode, got, ok, info)
		}
		found, ok := s.Find(info.Mnemonic, info.Mode)
		if !ok || found != info {
			t.Errorf("Find(%s, %s) = %v, %v", info.Mnemonic, info.Mode, found, ok)
		}
	}
}

// TestEveryMnemonicHasEncoding ensures no mnemonic constant is orphaned.
func TestEveryMnemonicHasEncoding(t *testing.T) {
	s := Default()
	for m := Mnemonic(0); m < MnemonicCount; m++ {
		if m.String() == "" || m.String() == "???" {
			t.Errorf("mnemonic %d has no name", m)
		}
		if len(s.Modes(m)) == 0 {
			t.Errorf("%s has no encoding", m)
		}
		back, ok := ParseMnemonic(m.String())
		if !ok || back != m {
			t.Errorf("ParseMnemonic(%q) = %v, %v", m.String(), back, ok)
		}
	}
}

func TestPrebytesUndefinedOnPage1(t *testing.T) {
	for _, b := range []uint8{0x18, 0x1A, 0xCD} {
		if _, ok := Default().Lookup(NoPrefix, b); ok {
			t.Errorf("$%02X defined on page 1", b)
		}
	}
	if _, ok := Default().Lookup(Prefix(0x42), 0x00); ok {
		t.Error("Lookup accepted a non-prebyte prefix")
	}
}

// TestKnownEncodings spot-checks opcodes against the Motorola opcode map.
func TestKnownEncodings(t *testing.T) {
	tests := []struct {
		m      Mnemonic
		mode   Mode
		bytes  []byte
		cycles int
	}{
		{TEST, INH, []byte{0x00}, 1},
		{NOP, INH, []byte{0x01}, 2},
		{IDIV, INH, []byte{0x02}, 41},
		{FDIV, INH, []byte{0x03}, 41},
		{LDAA, IMM8, []byte{0x86}, 2},
		{LDAA, INDY, []byte{0x18, 0xA6}, 5},
		{LDX, INDY, []byte{0xCD, 0xEE}, 6},
		{LDY, INDX, []byte{0x1A, 0xEE}, 6},
		{LDY, IMM16, []byte{0x18, 0xCE}, 4},
		{CPD, IMM16, []byte{0x1A, 0x83}, 5},
		{CPD, INDY, []byte{0xCD, 0xA3}, 7},
		{CPX, INDY, []byte{0xCD, 0xAC}, 7},
		{CPY, INDX, []byte{0x1A, 0xAC}, 7},
		{INY, INH, []byte{0x18, 0x08}, 4},
		{BSR, REL, []byte{0x8D}, 6},
		{JSR, EXT, []byte{0xBD}, 6},
		{JSR, DIR, []byte{0x9D}, 5},
		{RTI, INH, []byte{0x3B}, 12},
		{SWI, INH, []byte{0x3F}, 14},
		{MUL, INH, []byte{0x3D}, 10},
		{BRSET, BIT3DIR, []byte{0x12}, 6},
		{BRCLR, BIT3INDY, []byte{0x18, 0x1F}, 8},
		{BSET, BIT2INDX, []byte{0x1C}, 7},
		{STOP, INH, []byte{0xCF}, 2},
		{XGDY, INH, []byte{0x18, 0x8F}, 4},
	}
	for _, tt := range tests {
		info, ok := Default().Find(tt.m, tt.mode)
		if !ok {
			t.Errorf("%s %s: not found", tt.m, tt.mode)
			continue
		}
		var enc []byte
		if info.Prefix != NoPrefix {
			enc = append(enc, uint8(info.Prefix))
		}
		enc = append(enc, info.Opcode)
		if string(enc) != string(tt.bytes) {
			t.Errorf("%s %s: encoding % X, want % X", tt.m, tt.mode, enc, tt.bytes)
		}
		if info.Cycles != tt.cycles {
			t.Errorf("%s %s: %d cycles, want %d", tt.m, tt.mode, info.Cycles, tt.cycles)
		}
	}
}

func TestIllegalBasePage(t *testing.T) {
	for _, b := range []uint8{0x41, 0x42, 0x45, 0x4B, 0x4E, 0x51, 0x55, 0x5E, 0x61, 0x65, 0x71, 0x7B, 0x87, 0xC7} {
		_, err := Decode([]byte{b, 0, 0, 0}, 0x8000)
		if !errors.Is(err, ErrIllegalOpcode) {
			t.Errorf("$%02X: err = %v, want ErrIllegalOpcode", b, err)
		}
	}
}

func TestSeqHelpers(t *testing.T) {
	s := Default()
	ldaa, _ := s.Find(LDAA, IMM8)
	ldy, _ := s.Find(LDY, IMM16)
	seq := []Instruction{{Info: ldaa}, {Info: ldy}}
	if got := SeqByteSize(seq); got != 6 {
		t.Errorf("SeqByteSize = %d, want 6", got)
	}
	if got := SeqCycles(seq); got != 6 {
		t.Errorf("SeqCycles = %d, want 6", got)
	}
}

func TestParseMnemonicAliases(t *testing.T) {
	tests := map[string]Mnemonic{
		"lsla": ASLA, "LSLB": ASLB, "LSL": ASL, "ASLD": LSLD,
		"BHS": BCC, "blo": BCS, " ldaa ": LDAA,
	}
	for in, want := range tests {
		got, ok := ParseMnemonic(in)
		if !ok || got != want {
			t.Errorf("ParseMnemonic(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
	if _, ok := ParseMnemonic("LDAB2"); ok {
		t.Error("ParseMnemonic accepted LDAB2")
	}
}
