package mem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// SaveEEPROM writes the EEPROM region to path.
func (m *Memory) SaveEEPROM(path string) error {
	r, ok := m.Region(RegionEEPROM)
	if !ok {
		return fmt.Errorf("save eeprom: no %s region", RegionEEPROM)
	}
	if err := os.WriteFile(path, m.Snapshot(r.Start, r.End), 0o644); err != nil {
		return fmt.Errorf("save eeprom: %w", err)
	}
	return nil
}

// LoadEEPROM restores the EEPROM region from path. A missing file is not
// an error; the region keeps its current contents. Extra bytes are ignored.
func (m *Memory) LoadEEPROM(path string) error {
	r, ok := m.Region(RegionEEPROM)
	if !ok {
		return fmt.Errorf("load eeprom: no %s region", RegionEEPROM)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load eeprom: %w", err)
	}
	if len(data) > r.Len() {
		data = data[:r.Len()]
	}
	m.LoadBinary(data, r.Start)
	return nil
}
