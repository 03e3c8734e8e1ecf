// Package console connects a terminal to a machine's SCI. Keystrokes are
// queued on the receiver and transmitted bytes are echoed to the output.
package console

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/oisee/hc11emu/pkg/cpu"
	"github.com/oisee/hc11emu/pkg/emu"
)

// DefaultSlice is the number of cycles run between host polls.
const DefaultSlice = 20000

// keyQuit ends an interactive session. Raw mode swallows SIGINT.
const keyQuit = 0x03

// ErrInterrupted is returned when the user presses Ctrl-C.
var ErrInterrupted = errors.New("console: interrupted")

// Host bridges a byte stream and a machine. Only Run touches the machine;
// the reader goroutine hands bytes over through a channel.
type Host struct {
	m     *emu.Machine
	in    io.Reader
	out   io.Writer
	log   logrus.FieldLogger
	Slice uint64

	keys     chan byte
	stopCh   chan struct{}
	done     chan struct{}
	stopped  sync.Once
	started  bool
	sent     int
	fd       int
	oldState *term.State
}

// New creates a host reading in and writing out. When in is a terminal it
// is switched to raw mode for the duration of the session.
func New(m *emu.Machine, in io.Reader, out io.Writer) *Host {
	return &Host{
		m:      m,
		in:     in,
		out:    out,
		log:    m.Log,
		Slice:  DefaultSlice,
		keys:   make(chan byte, 256),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start puts the terminal in raw mode, if there is one, and begins reading.
func (h *Host) Start() error {
	if f, ok := h.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		h.fd = int(f.Fd())
		old, err := term.MakeRaw(h.fd)
		if err != nil {
			close(h.done)
			return err
		}
		h.oldState = old
	}
	h.started = true
	go h.read()
	return nil
}

func (h *Host) read() {
	defer close(h.done)
	buf := make([]byte, 64)
	for {
		n, err := h.in.Read(buf)
		for _, b := range buf[:n] {
			// Backspace arrives as DEL on most terminals.
			if b == 0x7F {
				b = 0x08
			}
			select {
			case h.keys <- b:
			case <-h.stopCh:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				h.log.WithError(err).Debug("console input closed")
			}
			return
		}
	}
}

// Stop restores the terminal. A reader blocked on input exits with the
// next byte or when the input is closed.
func (h *Host) Stop() {
	h.stopped.Do(func() {
		close(h.stopCh)
	})
	if h.oldState != nil {
		_ = term.Restore(h.fd, h.oldState)
		h.oldState = nil
	}
}

// Run executes the machine from its current state in slices of h.Slice
// cycles, feeding input and flushing output between slices. It returns when
// the core stops, the machine's cycle budget is spent, the user presses
// Ctrl-C or ctx is cancelled.
func (h *Host) Run(ctx context.Context) (cpu.StopReason, error) {
	if !h.started {
		if err := h.Start(); err != nil {
			return cpu.StopNone, err
		}
		defer h.Stop()
	}
	budget := h.m.Config().MaxCycles
	slice := h.Slice
	if slice == 0 {
		slice = DefaultSlice
	}
	for {
		if err := ctx.Err(); err != nil {
			return cpu.StopNone, err
		}
		input, quit := h.drain()
		if quit {
			return cpu.StopNone, ErrInterrupted
		}
		if len(input) > 0 {
			h.m.SCI.Inject(input)
		}

		limit := min(h.m.CPU.Regs.Cycles+slice, budget)
		r := h.m.CPU.Run(limit, h.m.Config().ExpectedOutput)
		wrote, err := h.flush()
		if err != nil {
			return r, err
		}
		if r != cpu.StopTimeout || limit >= budget {
			h.log.WithFields(logrus.Fields{
				"reason": r.String(),
				"cycles": h.m.CPU.Regs.Cycles,
			}).Info("console session ended")
			return r, nil
		}
		if !wrote && len(input) == 0 {
			time.Sleep(time.Millisecond)
		}
	}
}

func (h *Host) drain() (input []byte, quit bool) {
	for {
		select {
		case b := <-h.keys:
			if b == keyQuit {
				return input, true
			}
			input = append(input, b)
		default:
			return input, false
		}
	}
}

func (h *Host) flush() (bool, error) {
	out := h.m.SCI.Output()
	if len(out) <= h.sent {
		return false, nil
	}
	_, err := h.out.Write(out[h.sent:])
	h.sent = len(out)
	return true, err
}
