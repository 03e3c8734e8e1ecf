package mem

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrChecksum is returned for an S-record whose checksum does not match.
	ErrChecksum = errors.New("s-record checksum mismatch")
	// ErrBadRecord is returned for a malformed S-record line.
	ErrBadRecord = errors.New("malformed s-record")
)

// Record is one parsed S-record.
type Record struct {
	Type byte // '0'..'9'
	Addr uint16
	Data []byte
}

// ParseRecord decodes a single S-record line and verifies its checksum.
// Only 16-bit address records (S0, S1, S5, S9) are accepted.
func ParseRecord(line string) (Record, error) {
	line = strings.TrimSpace(line)
	if len(line) < 4 || line[0] != 'S' {
		return Record{}, fmt.Errorf("%w: %q", ErrBadRecord, line)
	}
	typ := line[1]
	switch typ {
	case '0', '1', '5', '9':
	default:
		return Record{}, fmt.Errorf("%w: unsupported type S%c", ErrBadRecord, typ)
	}
	raw, err := hex.DecodeString(line[2:])
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	count := int(raw[0])
	if count < 3 || len(raw) != count+1 {
		return Record{}, fmt.Errorf("%w: byte count %d does not match length %d", ErrBadRecord, count, len(raw)-1)
	}
	var sum uint8
	for _, b := range raw[:len(raw)-1] {
		sum += b
	}
	if want := ^sum; raw[len(raw)-1] != want {
		return Record{}, fmt.Errorf("%w: got %02X, want %02X", ErrChecksum, raw[len(raw)-1], want)
	}
	return Record{
		Type: typ,
		Addr: uint16(raw[1])<<8 | uint16(raw[2]),
		Data: raw[3 : len(raw)-1],
	}, nil
}

// S19Image is the result of loading an S19 file.
type S19Image struct {
	Header string
	Start  uint16 // from the S9 record
	Bytes  int    // data bytes loaded
	Low    uint16 // lowest loaded address
	High   uint16 // highest loaded address
}

// LoadS19 reads S-records from r and installs S1 data, bypassing write
// protection. Blank lines and lines not starting with 'S' are skipped.
func (m *Memory) LoadS19(r io.Reader) (S19Image, error) {
	var img S19Image
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] != 'S' {
			continue
		}
		rec, err := ParseRecord(line)
		if err != nil {
			return img, fmt.Errorf("line %d: %w", lineNo, err)
		}
		switch rec.Type {
		case '0':
			img.Header = string(rec.Data)
		case '1':
			if len(rec.Data) == 0 {
				continue
			}
			if img.Bytes == 0 || rec.Addr < img.Low {
				img.Low = rec.Addr
			}
			if end := rec.Addr + uint16(len(rec.Data)-1); img.Bytes == 0 || end > img.High {
				img.High = end
			}
			m.LoadBinary(rec.Data, rec.Addr)
			img.Bytes += len(rec.Data)
		case '9':
			img.Start = rec.Addr
		}
	}
	if err := sc.Err(); err != nil {
		return img, fmt.Errorf("read s19: %w", err)
	}
	return img, nil
}

// LoadS19String is LoadS19 over an in-memory string.
func (m *Memory) LoadS19String(s string) (S19Image, error) {
	return m.LoadS19(strings.NewReader(s))
}

func formatRecord(typ byte, addr uint16, data []byte) string {
	raw := make([]byte, 0, len(data)+4)
	raw = append(raw, uint8(len(data)+3), uint8(addr>>8), uint8(addr))
	raw = append(raw, data...)
	var sum uint8
	for _, b := range raw {
		sum += b
	}
	raw = append(raw, ^sum)
	return "S" + string(typ) + strings.ToUpper(hex.EncodeToString(raw))
}

// WriteS19 emits data located at base as an S19 file: an S0 header,
// S1 records of up to 32 data bytes, and an S9 record carrying start.
func WriteS19(w io.Writer, data []byte, base uint16, header string, start uint16) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, formatRecord('0', 0, []byte(header)))
	for off := 0; off < len(data); off += 32 {
		end := min(off+32, len(data))
		fmt.Fprintln(bw, formatRecord('1', base+uint16(off), data[off:end]))
	}
	fmt.Fprintln(bw, formatRecord('9', start, nil))
	return bw.Flush()
}
