package result

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/oisee/hc11emu/pkg/cpu"
)

// Checkpoint is a frozen machine: registers, the full address space and
// the SCI transmit buffer. Restoring one and running on is deterministic.
type Checkpoint struct {
	Regs        cpu.Registers
	Memory      []byte
	SCIOutput   []byte
	Breakpoints []uint16
}

func init() {
	gob.Register(cpu.Registers{})
}

// SaveCheckpoint writes machine state to a file.
func SaveCheckpoint(path string, ckpt *Checkpoint) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(ckpt); err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint loads machine state from a file.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var ckpt Checkpoint
	if err := gob.NewDecoder(f).Decode(&ckpt); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &ckpt, nil
}
