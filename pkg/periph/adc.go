package periph

// A/D register addresses.
const (
	ADCTL uint16 = 0x1030
	ADR1  uint16 = 0x1031
	ADR4  uint16 = 0x1034
)

// ADCTL bits. Bits 2:0 select the channel.
const (
	ADCCF   uint8 = 0x80
	ADSCAN  uint8 = 0x20
	ADMULT  uint8 = 0x10
	adChans uint8 = 0x07
)

// Channels is the number of analog inputs.
const Channels = 8

// Delco channel assignments.
const (
	ChanMAP = iota
	ChanMAT
	ChanTPS
	ChanKnock
	ChanO2
	ChanCTS
	ChanBattery
	ChanEGR
)

// ADC converts instantly: writing ADCTL loads the result registers from the
// injected channel values and sets CCF.
type ADC struct {
	adctl    uint8
	done     bool
	channels [Channels]uint8
	adr      [4]uint8
}

// NewADC returns a converter with every channel at mid-scale.
func NewADC() *ADC {
	a := &ADC{}
	for i := range a.channels {
		a.channels[i] = 0x80
	}
	a.Reset()
	return a
}

// Register maps ADCTL and ADR1-4 onto m. The result registers are read-only.
func (a *ADC) Register(m Mapper) {
	m.MapIO(ADCTL, ADCTL, a.readControl, a.writeControl)
	m.MapIO(ADR1, ADR4, a.readResult, nil)
}

func (a *ADC) readControl(uint16) uint8 {
	v := a.adctl & 0x3F
	if a.done {
		v |= ADCCF
	}
	return v
}

func (a *ADC) writeControl(_ uint16, v uint8) {
	a.adctl = v
	a.convert()
}

// convert fills ADR1-4 from one channel, or from a group of four when MULT
// is set.
func (a *ADC) convert() {
	ch := a.adctl & adChans
	for i := range a.adr {
		if a.adctl&ADMULT != 0 {
			a.adr[i] = a.channels[(ch&0x04+uint8(i))&adChans]
		} else {
			a.adr[i] = a.channels[ch]
		}
	}
	a.done = true
}

func (a *ADC) readResult(addr uint16) uint8 {
	return a.adr[addr-ADR1]
}

// SetChannel injects a sensor reading. Out of range channels are ignored.
func (a *ADC) SetChannel(ch int, v uint8) {
	if ch >= 0 && ch < Channels {
		a.channels[ch] = v
	}
}

// Channel returns the injected reading of ch.
func (a *ADC) Channel(ch int) uint8 {
	if ch < 0 || ch >= Channels {
		return 0
	}
	return a.channels[ch]
}

// Result returns ADR1-4.
func (a *ADC) Result() [4]uint8 { return a.adr }

// SetSensorsNormal loads key-on, engine-off readings.
func (a *ADC) SetSensorsNormal() {
	a.channels = [Channels]uint8{
		ChanMAP:     0x55, // ~100 kPa
		ChanMAT:     0x80, // ~25C
		ChanTPS:     0x1A, // closed throttle
		ChanKnock:   0x00,
		ChanO2:      0x80, // ~0.45 V
		ChanCTS:     0x50, // ~80C
		ChanBattery: 0x8C, // ~14.0 V
		ChanEGR:     0x00,
	}
}

// Update is a no-op; conversions complete on the ADCTL write.
func (a *ADC) Update(int) {}

// Reset clears control state. Injected channel values are kept.
func (a *ADC) Reset() {
	a.adctl = 0
	a.done = false
	a.adr = [4]uint8{0x80, 0x80, 0x80, 0x80}
}
