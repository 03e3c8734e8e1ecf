package result

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/oisee/hc11emu/pkg/cpu"
)

// Report is the outcome of one emulator run.
type Report struct {
	Name     string
	Reason   cpu.StopReason
	Cycles   uint64
	Regs     cpu.Registers
	Output   []byte // SCI transmit buffer
	Err      string // underlying error for ILLEGAL/ERROR, or a setup failure
	Duration time.Duration
}

// OK reports whether the run ended without a fault.
func (r Report) OK() bool {
	if r.Err != "" {
		return false
	}
	switch r.Reason {
	case cpu.StopIllegal, cpu.StopError:
		return false
	}
	return true
}

func (r Report) String() string {
	s := fmt.Sprintf("%s: %s after %d cycles %s", r.Name, r.Reason, r.Cycles, r.Regs)
	if r.Err != "" {
		s += ": " + r.Err
	}
	return s
}

// Table collects reports from concurrent runs.
type Table struct {
	mu      sync.Mutex
	reports []Report
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{}
}

// Add inserts a report into the table.
func (t *Table) Add(r Report) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reports = append(t.reports, r)
}

// Reports returns a copy of all reports, sorted by name.
func (t *Table) Reports() []Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make([]Report, len(t.reports))
	copy(result, t.reports)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Len returns the number of reports.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.reports)
}

// Counts tallies reports by stop reason.
func (t *Table) Counts() map[cpu.StopReason]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[cpu.StopReason]int)
	for _, r := range t.reports {
		out[r.Reason]++
	}
	return out
}

// Failed returns the reports that did not end cleanly, sorted by name.
func (t *Table) Failed() []Report {
	var out []Report
	for _, r := range t.Reports() {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// WriteTo prints the table in aligned columns.
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	cw := &countWriter{w: w}
	tw := tabwriter.NewWriter(cw, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tREASON\tCYCLES\tPC\tOUTPUT\tERROR")
	for _, r := range t.Reports() {
		fmt.Fprintf(tw, "%s\t%s\t%d\t$%04X\t%q\t%s\n", r.Name, r.Reason, r.Cycles, r.Regs.PC, r.Output, r.Err)
	}
	err := tw.Flush()
	return cw.n, err
}

type countWriter struct {
	w io.Writer
	n int64
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
