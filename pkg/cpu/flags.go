package cpu

// HC11 condition code register bits.
const (
	FlagC uint8 = 0x01 // Carry/borrow
	FlagV uint8 = 0x02 // Two's complement overflow
	FlagZ uint8 = 0x04 // Zero
	FlagN uint8 = 0x08 // Negative
	FlagI uint8 = 0x10 // IRQ mask
	FlagH uint8 = 0x20 // Half carry (bit 3 to 4)
	FlagX uint8 = 0x40 // XIRQ mask, clear-only from software
	FlagS uint8 = 0x80 // STOP disable
)

// Group masks used by the flag setters. Each names the bits a setter may
// change; everything else is preserved.
const (
	maskHNZVC = FlagH | FlagN | FlagZ | FlagV | FlagC
	maskNZVC  = FlagN | FlagZ | FlagV | FlagC
	maskNZV   = FlagN | FlagZ | FlagV
	maskZVC   = FlagZ | FlagV | FlagC
)

// nzTable holds the N and Z flags for each byte value.
var nzTable [256]uint8

func init() {
	for i := 0; i < 256; i++ {
		if i&0x80 != 0 {
			nzTable[i] = FlagN
		}
	}
	nzTable[0] = FlagZ
}

const ccrLetters = "SXHINZVC"

// FormatCCR renders cc as eight letters, upper case when set and '-' when clear.
func FormatCCR(cc uint8) string {
	var b [8]byte
	for i := 0; i < 8; i++ {
		if cc&(0x80>>i) != 0 {
			b[i] = ccrLetters[i]
		} else {
			b[i] = '-'
		}
	}
	return string(b[:])
}
