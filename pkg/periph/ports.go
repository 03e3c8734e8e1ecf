package periph

// Port register addresses.
const (
	PORTA uint16 = 0x1000
	PORTC uint16 = 0x1003
	PORTB uint16 = 0x1004
	DDRC  uint16 = 0x1007
	PORTD uint16 = 0x1008
	DDRD  uint16 = 0x1009
	PORTE uint16 = 0x100A
)

var portAddrs = [...]uint16{PORTA, PORTC, PORTB, DDRC, PORTD, DDRD, PORTE}

// PORTB output assignments on the Delco PCM.
const (
	OutFanRelay uint8 = 1 << iota
	OutFuelPump
	OutACClutch
	OutTCC
	OutCEL
	OutShiftA
	OutShiftB
)

// PortBOutputs is PORTB decoded into named discrete outputs.
type PortBOutputs struct {
	FanRelay, FuelPump, ACClutch, TCC, CEL, ShiftA, ShiftB bool
}

// ChangeFunc observes a port write that changed its value.
type ChangeFunc func(addr uint16, old, new uint8)

// Ports tracks the parallel port and data direction registers. PORTE is
// input only; programs cannot write it.
type Ports struct {
	regs      map[uint16]uint8
	callbacks map[uint16][]ChangeFunc
}

// NewPorts returns ports with every register zero.
func NewPorts() *Ports {
	p := &Ports{
		regs:      make(map[uint16]uint8, len(portAddrs)),
		callbacks: make(map[uint16][]ChangeFunc),
	}
	p.Reset()
	return p
}

// Register maps every port register onto m.
func (p *Ports) Register(m Mapper) {
	for _, a := range portAddrs {
		if a == PORTE {
			m.MapIO(a, a, p.read, nil)
			continue
		}
		m.MapIO(a, a, p.read, p.write)
	}
}

func (p *Ports) read(addr uint16) uint8 { return p.regs[addr] }

func (p *Ports) write(addr uint16, v uint8) {
	old := p.regs[addr]
	p.regs[addr] = v
	if old == v {
		return
	}
	for _, fn := range p.callbacks[addr] {
		fn(addr, old, v)
	}
}

// Get returns the current value of a port register.
func (p *Ports) Get(addr uint16) uint8 { return p.regs[addr] }

// SetInput drives an input port such as PORTE. Callbacks do not fire.
func (p *Ports) SetInput(addr uint16, v uint8) {
	if _, ok := p.regs[addr]; ok {
		p.regs[addr] = v
	}
}

// OnChange registers fn for value-changing writes to addr.
func (p *Ports) OnChange(addr uint16, fn ChangeFunc) {
	p.callbacks[addr] = append(p.callbacks[addr], fn)
}

// PortB decodes the PORTB outputs.
func (p *Ports) PortB() PortBOutputs {
	v := p.regs[PORTB]
	return PortBOutputs{
		FanRelay: v&OutFanRelay != 0,
		FuelPump: v&OutFuelPump != 0,
		ACClutch: v&OutACClutch != 0,
		TCC:      v&OutTCC != 0,
		CEL:      v&OutCEL != 0,
		ShiftA:   v&OutShiftA != 0,
		ShiftB:   v&OutShiftB != 0,
	}
}

// Update is a no-op.
func (p *Ports) Update(int) {}

// Reset zeroes every register. Callbacks are kept.
func (p *Ports) Reset() {
	for _, a := range portAddrs {
		p.regs[a] = 0
	}
}
