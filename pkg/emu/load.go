package emu

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/oisee/hc11emu/pkg/mem"
)

// Format is an image file format.
type Format int

const (
	FormatAuto Format = iota
	FormatBinary
	FormatS19
)

// ParseFormat maps "auto", "bin" and "s19" to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "bin", "binary", "raw":
		return FormatBinary, nil
	case "s19", "srec", "s-record":
		return FormatS19, nil
	}
	return FormatAuto, fmt.Errorf("unknown image format %q", s)
}

// Detect guesses the format from the file name, then from the content:
// S-record text starts with "S0" or "S1".
func Detect(path string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".s19", ".srec", ".mot":
		return FormatS19
	case ".bin", ".rom":
		return FormatBinary
	}
	head := bytes.TrimLeft(data, " \t\r\n")
	if bytes.HasPrefix(head, []byte("S0")) || bytes.HasPrefix(head, []byte("S1")) {
		return FormatS19
	}
	return FormatBinary
}

// LoadBinary places a raw image at the configured base address.
func (m *Machine) LoadBinary(data []byte) {
	m.Mem.LoadBinary(data, m.cfg.BaseAddr)
	m.entry = m.cfg.BaseAddr
	m.Log.WithFields(logrus.Fields{
		"base":  fmt.Sprintf("$%04X", m.cfg.BaseAddr),
		"bytes": len(data),
	}).Info("binary loaded")
}

// LoadS19 installs S-records from r. A non-zero S9 start address becomes
// the entry point.
func (m *Machine) LoadS19(r io.Reader) (mem.S19Image, error) {
	img, err := m.Mem.LoadS19(r)
	if err != nil {
		m.Log.WithError(err).Error("s19 rejected")
		return img, err
	}
	if img.Start != 0 {
		m.entry = img.Start
	} else if img.Bytes > 0 {
		m.entry = img.Low
	}
	m.Log.WithFields(logrus.Fields{
		"header": img.Header,
		"bytes":  img.Bytes,
		"low":    fmt.Sprintf("$%04X", img.Low),
		"high":   fmt.Sprintf("$%04X", img.High),
		"entry":  fmt.Sprintf("$%04X", m.entry),
	}).Info("s19 loaded")
	return img, nil
}

// LoadFile reads an image from path in the given format and, when an
// EEPROM file is configured, overlays the saved EEPROM afterwards.
func (m *Machine) LoadFile(path string, f Format) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}
	if f == FormatAuto {
		f = Detect(path, data)
	}
	switch f {
	case FormatS19:
		if _, err := m.LoadS19(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	default:
		m.LoadBinary(data)
	}
	return m.LoadEEPROM()
}

// LoadEEPROM overlays the configured EEPROM file, if any.
func (m *Machine) LoadEEPROM() error {
	if m.cfg.EEPROMPath == "" {
		return nil
	}
	if err := m.Mem.LoadEEPROM(m.cfg.EEPROMPath); err != nil {
		m.Log.WithError(err).WithField("path", m.cfg.EEPROMPath).Error("eeprom not loaded")
		return err
	}
	return nil
}
