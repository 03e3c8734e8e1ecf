package emu

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/oisee/hc11emu/pkg/cpu"
	"github.com/oisee/hc11emu/pkg/mem"
	"github.com/oisee/hc11emu/pkg/result"
)

// helloProgram enables the SCI transmitter, sends the NUL-terminated string
// at $8020 polling TDRE before each byte, then executes WAI.
func helloProgram() []byte {
	code := []byte{
		0x86, 0x08,       // 8000 LDAA #$08
		0xB7, 0x10, 0x2D, // 8002 STAA SCCR2
		0xCE, 0x80, 0x20, // 8005 LDX #$8020
		0xA6, 0x00,       // 8008 LDAA 0,X
		0x27, 0x0D,       // 800A BEQ $8019
		0xF6, 0x10, 0x2E, // 800C LDAB SCSR
		0xC5, 0x80,       // 800F BITB #$80
		0x27, 0xF9,       // 8011 BEQ $800C
		0xB7, 0x10, 0x2F, // 8013 STAA SCDR
		0x08,             // 8016 INX
		0x20, 0xEF,       // 8017 BRA $8008
		0x3E,             // 8019 WAI
	}
	img := make([]byte, 0x26)
	copy(img, code)
	copy(img[0x20:], "HI\r\n\x00")
	return img
}

func newTestMachine(t *testing.T, cfg Config) (*Machine, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	cfg.Logger = logger
	return New(cfg), hook
}

func TestRunUntilExpectedOutput(t *testing.T) {
	m, _ := newTestMachine(t, Config{ExpectedOutput: []byte("HI\r\n")})
	m.LoadBinary(helloProgram())
	rep := m.Run("hello")
	if rep.Reason != cpu.StopDone {
		t.Fatalf("reason = %s (%s)", rep.Reason, rep.Err)
	}
	if string(rep.Output) != "HI\r\n" {
		t.Errorf("output = %q", rep.Output)
	}
	if rep.Regs.PC != 0x8016 {
		t.Errorf("PC = %04X, want 8016", rep.Regs.PC)
	}
	if !rep.OK() {
		t.Error("report not OK")
	}
}

func TestRunToHalt(t *testing.T) {
	m, hook := newTestMachine(t, Config{})
	m.LoadBinary(helloProgram())
	rep := m.Run("hello")
	if rep.Reason != cpu.StopHalt || string(rep.Output) != "HI\r\n" {
		t.Errorf("reason = %s output = %q", rep.Reason, rep.Output)
	}
	last := hook.LastEntry()
	if last == nil || last.Message != "run stopped" || last.Data["reason"] != "HALT" {
		t.Errorf("last log entry = %+v", last)
	}
}

func TestRunTimeout(t *testing.T) {
	m, _ := newTestMachine(t, Config{MaxCycles: 100})
	m.LoadBinary([]byte{0x20, 0xFE}) // BRA *
	rep := m.Run("spin")
	if rep.Reason != cpu.StopTimeout || rep.Cycles < 100 {
		t.Errorf("reason = %s cycles = %d", rep.Reason, rep.Cycles)
	}
}

func TestBreakpointContinue(t *testing.T) {
	m, _ := newTestMachine(t, Config{Breakpoints: []uint16{0x8013}})
	m.LoadBinary(helloProgram())
	rep := m.Run("bp")
	if rep.Reason != cpu.StopBreak || len(rep.Output) != 0 {
		t.Fatalf("first stop = %s output %q", rep.Reason, rep.Output)
	}
	rep = m.Continue("bp")
	if rep.Reason != cpu.StopBreak || string(rep.Output) != "H" {
		t.Errorf("second stop = %s output %q", rep.Reason, rep.Output)
	}
}

func TestIllegalOpcodeReported(t *testing.T) {
	m, hook := newTestMachine(t, Config{})
	m.LoadBinary([]byte{0x01, 0x41})
	rep := m.Run("bad")
	if rep.Reason != cpu.StopIllegal || rep.OK() {
		t.Fatalf("reason = %s", rep.Reason)
	}
	if !strings.Contains(rep.Err, "illegal opcode $41 at $8001") {
		t.Errorf("err = %q", rep.Err)
	}
	last := hook.LastEntry()
	if last == nil || last.Level != logrus.WarnLevel || last.Data["opcode"] != "41" {
		t.Errorf("last log entry = %+v", last)
	}
}

func TestCheckpointResume(t *testing.T) {
	m, _ := newTestMachine(t, Config{Breakpoints: []uint16{0x8016}})
	m.LoadBinary(helloProgram())
	if rep := m.Run("ckpt"); rep.Reason != cpu.StopBreak {
		t.Fatalf("reason = %s", rep.Reason)
	}
	path := filepath.Join(t.TempDir(), "m.gob")
	if err := result.SaveCheckpoint(path, m.Checkpoint()); err != nil {
		t.Fatal(err)
	}
	ck, err := result.LoadCheckpoint(path)
	if err != nil {
		t.Fatal(err)
	}

	m2, _ := newTestMachine(t, Config{})
	if err := m2.Restore(ck); err != nil {
		t.Fatal(err)
	}
	if m2.CPU.Regs != m.CPU.Regs || string(m2.SCI.Output()) != "H" {
		t.Fatalf("restored %s output %q", m2.CPU.Regs, m2.SCI.Output())
	}
	m.CPU.ClearBreakpoints()
	m2.CPU.ClearBreakpoints()
	// SCCR2 lives in the SCI model, so re-enable the transmitter on both.
	m.Mem.Write8(0x102D, 0x08)
	m2.Mem.Write8(0x102D, 0x08)
	a, b := m.Continue("a"), m2.Continue("b")
	if a.Reason != cpu.StopHalt || b.Reason != a.Reason || a.Cycles != b.Cycles || !bytes.Equal(a.Output, b.Output) {
		t.Errorf("diverged: %s vs %s", a, b)
	}
	if string(b.Output) != "HI\r\n" {
		t.Errorf("output = %q", b.Output)
	}
}

func TestLoadFileS19(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog")
	var buf bytes.Buffer
	if err := mem.WriteS19(&buf, []byte{0x86, 0x42, 0x3E}, 0x9000, "prog", 0x9000); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	m, _ := newTestMachine(t, Config{})
	if err := m.LoadFile(path, FormatAuto); err != nil {
		t.Fatal(err)
	}
	if m.Entry() != 0x9000 {
		t.Errorf("entry = %04X", m.Entry())
	}
	rep := m.Run("s19")
	if rep.Reason != cpu.StopHalt || rep.Regs.A != 0x42 {
		t.Errorf("reason = %s A = %02X", rep.Reason, rep.Regs.A)
	}
}

func TestResetVectorStart(t *testing.T) {
	m, _ := newTestMachine(t, Config{UseResetVector: true})
	m.LoadBinary([]byte{0x86, 0x07, 0x3E})
	m.Mem.LoadBinary([]byte{0x80, 0x00}, cpu.VectorReset)
	rep := m.Run("vec")
	if rep.Reason != cpu.StopHalt || rep.Regs.A != 0x07 {
		t.Errorf("reason = %s A = %02X", rep.Reason, rep.Regs.A)
	}
}

func TestEEPROMPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeprom.bin")
	m, _ := newTestMachine(t, Config{EEPROMPath: path})
	m.LoadBinary([]byte{0x86, 0x5A, 0xB7, 0xFE, 0x00, 0x3E}) // LDAA #$5A; STAA $FE00; WAI
	if err := m.LoadEEPROM(); err != nil {
		t.Fatal(err)
	}
	m.Run("eeprom")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if data[0] != 0x5A {
		t.Errorf("eeprom[0] = %02X", data[0])
	}

	m2, _ := newTestMachine(t, Config{EEPROMPath: path})
	if err := m2.LoadEEPROM(); err != nil {
		t.Fatal(err)
	}
	if m2.Mem.Read8(0xFE00) != 0x5A {
		t.Error("eeprom not reloaded")
	}
}

func TestSensorsAndWatch(t *testing.T) {
	m, hook := newTestMachine(t, Config{
		SensorsNormal: true,
		ADCChannels:   map[int]uint8{2: 0xE0},
		Watch:         []uint16{0x0040},
	})
	// LDAA #$05; STAA ADCTL; LDAA ADR1; STAA $40; LDAA #$02; STAA ADCTL; LDAB ADR1; WAI
	m.LoadBinary([]byte{
		0x86, 0x05, 0xB7, 0x10, 0x30, 0xB6, 0x10, 0x31, 0x97, 0x40,
		0x86, 0x02, 0xB7, 0x10, 0x30, 0xF6, 0x10, 0x31, 0x3E,
	})
	rep := m.Run("adc")
	if rep.Regs.B != 0xE0 || m.Mem.Read8(0x0040) != 0x50 {
		t.Errorf("B = %02X [0040] = %02X", rep.Regs.B, m.Mem.Read8(0x0040))
	}
	var watched bool
	for _, e := range hook.AllEntries() {
		if e.Message == "watched write" && e.Data["new"] == "50" {
			watched = true
		}
	}
	if !watched {
		t.Error("watched write not logged")
	}
}

func TestParseAddr(t *testing.T) {
	tests := []struct {
		in   string
		want uint16
		ok   bool
	}{
		{"$8000", 0x8000, true},
		{"0xFFFE", 0xFFFE, true},
		{"4096", 4096, true},
		{" $10 ", 0x10, true},
		{"$10000", 0, false},
		{"zz", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseAddr(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseAddr(%q) = %04X, %v", tt.in, got, err)
		}
	}
	list, err := ParseAddrs("$8000,0x8010")
	if err != nil || len(list) != 2 || list[1] != 0x8010 {
		t.Errorf("ParseAddrs = %v, %v", list, err)
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		path string
		data string
		want Format
	}{
		{"a.s19", "", FormatS19},
		{"a.bin", "S0", FormatBinary},
		{"a", "\nS00600004844521B", FormatS19},
		{"a", "\x86\x42", FormatBinary},
	}
	for _, tt := range tests {
		if got := Detect(tt.path, []byte(tt.data)); got != tt.want {
			t.Errorf("Detect(%q) = %d, want %d", tt.path, got, tt.want)
		}
	}
	if _, err := ParseFormat("hex"); err == nil {
		t.Error("ParseFormat accepted hex")
	}
}
