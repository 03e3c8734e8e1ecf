package emu

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultMaxCycles = 10_000_000
	DefaultBaseAddr  = 0x8000
)

// Config holds machine configuration.
type Config struct {
	MaxCycles      uint64        // Cycle budget for Run (defaults to DefaultMaxCycles)
	BaseAddr       uint16        // Load address for raw binaries and entry PC (0 means DefaultBaseAddr)
	UseResetVector bool          // Start at the address stored at $FFFE
	Breakpoints    []uint16      // PCs that stop Run with BREAK
	Watch          []uint16      // Addresses whose writes are logged
	Trace          bool          // Record a trace entry per instruction
	ExpectedOutput []byte        // Stop with DONE once the SCI has sent this
	EEPROMPath     string        // Load EEPROM before running and save it after
	ADCChannels    map[int]uint8 // Sensor values injected before the run
	SensorsNormal  bool          // Preload key-on engine-off sensor values
	SCIInput       []byte        // Bytes queued on the SCI receiver
	Logger         *logrus.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxCycles == 0 {
		c.MaxCycles = DefaultMaxCycles
	}
	if c.BaseAddr == 0 {
		c.BaseAddr = DefaultBaseAddr
	}
	if c.Logger == nil {
		c.Logger = logrus.New()
		c.Logger.SetLevel(logrus.WarnLevel)
	}
	return c
}

// ParseAddr parses a 16-bit address written as $hex, 0xhex or decimal.
func ParseAddr(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	base := 10
	switch {
	case strings.HasPrefix(s, "$"):
		s, base = s[1:], 16
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s, base = s[2:], 16
	}
	v, err := strconv.ParseUint(s, base, 16)
	if err != nil {
		return 0, fmt.Errorf("bad address %q: %w", s, err)
	}
	return uint16(v), nil
}

// ParseAddrs parses a comma separated address list. Empty input yields nil.
func ParseAddrs(s string) ([]uint16, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []uint16
	for _, f := range strings.Split(s, ",") {
		a, err := ParseAddr(f)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
