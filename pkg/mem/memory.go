// Package mem models the 64 KiB HC11 address space: named regions with
// write protection, memory-mapped I/O handlers, write watchpoints and image
// loading.
package mem

import (
	"fmt"
	"strings"
)

// Size is the size of the flat address space.
const Size = 0x10000

// Region is a named address range, inclusive at both ends.
type Region struct {
	Name     string
	Start    uint16
	End      uint16
	Writable bool
	Initial  uint8 // power-on fill value
}

// Contains reports whether addr lies in r.
func (r Region) Contains(addr uint16) bool {
	return addr >= r.Start && addr <= r.End
}

// Len is the number of bytes in r.
func (r Region) Len() int {
	return int(r.End) - int(r.Start) + 1
}

// Region names of the default layout.
const (
	RegionRAM     = "RAM"
	RegionExtRAM  = "EXTRAM"
	RegionIO      = "IO"
	RegionROM1    = "ROM1"
	RegionROM2    = "ROM2"
	RegionEEPROM  = "EEPROM"
	RegionVectors = "VECTORS"
)

// DefaultRegions is the HC11F1 map used by the Delco PCM. Addresses outside
// every region behave as writable RAM filled with zero.
func DefaultRegions() []Region {
	return []Region{
		{Name: RegionRAM, Start: 0x0000, End: 0x03FF, Writable: true, Initial: 0x00},
		{Name: RegionExtRAM, Start: 0x0400, End: 0x0FFF, Writable: true, Initial: 0x00},
		{Name: RegionIO, Start: 0x1000, End: 0x103F, Writable: true, Initial: 0x00},
		{Name: RegionROM1, Start: 0x8000, End: 0xBFFF, Writable: false, Initial: 0xFF},
		{Name: RegionROM2, Start: 0xC000, End: 0xFDFF, Writable: false, Initial: 0xFF},
		{Name: RegionEEPROM, Start: 0xFE00, End: 0xFFBF, Writable: true, Initial: 0xFF},
		{Name: RegionVectors, Start: 0xFFC0, End: 0xFFFF, Writable: false, Initial: 0xFF},
	}
}

// ReadFunc services a read of a mapped I/O address.
type ReadFunc func(addr uint16) uint8

// WriteFunc observes a write to a mapped I/O address. The raw byte has
// already been stored when it runs.
type WriteFunc func(addr uint16, v uint8)

// WatchFunc observes an access to a watched address. For writes it runs
// before the store with the current and incoming bytes; for reads old and
// new are both the value returned.
type WatchFunc func(addr uint16, old, new uint8, isWrite bool)

// WatchID identifies one registered watchpoint.
type WatchID int

type ioHandler struct {
	read  ReadFunc
	write WriteFunc
}

type watch struct {
	id WatchID
	fn WatchFunc
}

// Memory is the flat address space. Not safe for concurrent use; one
// Memory belongs to one machine.
type Memory struct {
	data     [Size]byte
	readOnly [Size]bool
	regions  []Region

	ioPages [Size >> 8]bool // pages holding at least one handler
	io      map[uint16]ioHandler

	watches     map[uint16][]watch
	readWatches map[uint16][]watch
	nextID      WatchID
}

// New returns memory laid out with DefaultRegions.
func New() *Memory {
	return NewWithRegions(DefaultRegions())
}

// NewWithRegions returns memory using a custom region table.
func NewWithRegions(regions []Region) *Memory {
	m := &Memory{
		regions: append([]Region(nil), regions...),
		io:          make(map[uint16]ioHandler),
		watches:     make(map[uint16][]watch),
		readWatches: make(map[uint16][]watch),
	}
	m.Reset()
	return m
}

// Reset refills every region with its initial value. I/O mappings and
// watchpoints survive.
func (m *Memory) Reset() {
	clear(m.data[:])
	clear(m.readOnly[:])
	for _, r := range m.regions {
		for a := int(r.Start); a <= int(r.End); a++ {
			m.data[a] = r.Initial
			m.readOnly[a] = !r.Writable
		}
	}
}

// Regions returns a copy of the region table.
func (m *Memory) Regions() []Region {
	return append([]Region(nil), m.regions...)
}

// Region looks up a region by name.
func (m *Memory) Region(name string) (Region, bool) {
	for _, r := range m.regions {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// RegionAt returns the region containing addr.
func (m *Memory) RegionAt(addr uint16) (Region, bool) {
	for _, r := range m.regions {
		if r.Contains(addr) {
			return r, true
		}
	}
	return Region{}, false
}

// MapIO attaches handlers to every address in [start, end]. Either handler
// may be nil. Mapping an address again replaces its handlers.
func (m *Memory) MapIO(start, end uint16, onRead ReadFunc, onWrite WriteFunc) {
	for a := int(start); a <= int(end); a++ {
		m.io[uint16(a)] = ioHandler{read: onRead, write: onWrite}
		m.ioPages[a>>8] = true
	}
}

// Read8 returns the byte at addr, asking the I/O handler if one is mapped.
func (m *Memory) Read8(addr uint16) uint8 {
	v := m.data[addr]
	if m.ioPages[addr>>8] {
		if h, ok := m.io[addr]; ok && h.read != nil {
			v = h.read(addr)
		}
	}
	if len(m.readWatches) > 0 {
		for _, w := range m.readWatches[addr] {
			w.fn(addr, v, v, false)
		}
	}
	return v
}

// Write8 stores v at addr. Watchpoints fire first. Writes to protected
// regions are dropped. A mapped write handler runs after the store.
func (m *Memory) Write8(addr uint16, v uint8) {
	if ws, ok := m.watches[addr]; ok {
		old := m.data[addr]
		for _, w := range ws {
			w.fn(addr, old, v, true)
		}
	}
	if !m.readOnly[addr] {
		m.data[addr] = v
	}
	if m.ioPages[addr>>8] {
		if h, ok := m.io[addr]; ok && h.write != nil {
			h.write(addr, v)
		}
	}
}

// Read16 reads a big-endian word.
func (m *Memory) Read16(addr uint16) uint16 {
	return uint16(m.Read8(addr))<<8 | uint16(m.Read8(addr+1))
}

// Write16 writes a big-endian word, high byte first.
func (m *Memory) Write16(addr uint16, v uint16) {
	m.Write8(addr, uint8(v>>8))
	m.Write8(addr+1, uint8(v))
}

// Peek returns the raw stored byte, bypassing I/O handlers.
func (m *Memory) Peek(addr uint16) uint8 {
	return m.data[addr]
}

// Poke stores a raw byte, bypassing protection, handlers and watchpoints.
func (m *Memory) Poke(addr uint16, v uint8) {
	m.data[addr] = v
}

// LoadBinary copies data to base, wrapping at the top of memory.
// Write protection is bypassed so ROM images can be installed.
func (m *Memory) LoadBinary(data []byte, base uint16) {
	for i, b := range data {
		m.data[base+uint16(i)] = b
	}
}

// AddWatchpoint registers fn for writes to addr.
func (m *Memory) AddWatchpoint(addr uint16, fn WatchFunc) WatchID {
	m.nextID++
	m.watches[addr] = append(m.watches[addr], watch{id: m.nextID, fn: fn})
	return m.nextID
}

// AddReadWatchpoint registers fn for reads of addr, I/O reads included.
func (m *Memory) AddReadWatchpoint(addr uint16, fn WatchFunc) WatchID {
	m.nextID++
	m.readWatches[addr] = append(m.readWatches[addr], watch{id: m.nextID, fn: fn})
	return m.nextID
}

// RemoveWatchpoint deletes one read or write watchpoint by id.
func (m *Memory) RemoveWatchpoint(id WatchID) {
	if !removeWatch(m.watches, id) {
		removeWatch(m.readWatches, id)
	}
}

func removeWatch(set map[uint16][]watch, id WatchID) bool {
	for addr, ws := range set {
		for i, w := range ws {
			if w.id != id {
				continue
			}
			ws = append(ws[:i], ws[i+1:]...)
			if len(ws) == 0 {
				delete(set, addr)
			} else {
				set[addr] = ws
			}
			return true
		}
	}
	return false
}

// ClearWatchpoints removes every read and write watchpoint on addr.
func (m *Memory) ClearWatchpoints(addr uint16) {
	delete(m.watches, addr)
	delete(m.readWatches, addr)
}

// Snapshot copies the raw bytes of [start, end].
func (m *Memory) Snapshot(start, end uint16) []byte {
	if end < start {
		return nil
	}
	out := make([]byte, int(end)-int(start)+1)
	copy(out, m.data[start:int(end)+1])
	return out
}

// Image returns a copy of the whole address space.
func (m *Memory) Image() []byte {
	out := make([]byte, Size)
	copy(out, m.data[:])
	return out
}

// Restore overwrites the whole address space from an Image.
func (m *Memory) Restore(img []byte) error {
	if len(img) != Size {
		return fmt.Errorf("memory image is %d bytes, want %d", len(img), Size)
	}
	copy(m.data[:], img)
	return nil
}

// Change is one differing byte between two snapshots.
type Change struct {
	Addr     uint16
	Old, New uint8
}

// Diff compares two snapshots taken from base and lists changed bytes in
// address order. Only the common prefix is compared.
func Diff(a, b []byte, base uint16) []Change {
	n := min(len(a), len(b))
	var out []Change
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			out = append(out, Change{Addr: base + uint16(i), Old: a[i], New: b[i]})
		}
	}
	return out
}

// Hexdump formats length bytes from start, 16 per row with an ASCII column.
func (m *Memory) Hexdump(start uint16, length int) string {
	var sb strings.Builder
	for off := 0; off < length; off += 16 {
		addr := start + uint16(off)
		fmt.Fprintf(&sb, "%04X ", addr)
		var ascii [16]byte
		for i := 0; i < 16; i++ {
			b := m.data[addr+uint16(i)]
			fmt.Fprintf(&sb, " %02X", b)
			if b >= 0x20 && b < 0x7F {
				ascii[i] = b
			} else {
				ascii[i] = '.'
			}
		}
		sb.WriteString("  ")
		sb.Write(ascii[:])
		if off+16 < length {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
