package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oisee/hc11emu/pkg/batch"
	"github.com/oisee/hc11emu/pkg/console"
	"github.com/oisee/hc11emu/pkg/emu"
	"github.com/oisee/hc11emu/pkg/fuzz"
	"github.com/oisee/hc11emu/pkg/inst"
	"github.com/oisee/hc11emu/pkg/mem"
	"github.com/oisee/hc11emu/pkg/result"
	"github.com/oisee/hc11emu/pkg/script"
)

var log = logrus.New()

func main() {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "hc11emu",
		Short:         "68HC11 emulator for Delco PCM firmware",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(lvl)
			log.SetOutput(os.Stderr)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (trace, debug, info, warn, error)")

	// run command
	var mf machineFlags
	var saveCkpt, loadCkpt string
	var interactive bool

	runCmd := &cobra.Command{
		Use:   "run [image]",
		Short: "Run a firmware image until it stops",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := mf.machine(args[0], false)
			if err != nil {
				return err
			}
			if loadCkpt != "" {
				ck, err := result.LoadCheckpoint(loadCkpt)
				if err != nil {
					return err
				}
				if err := m.Restore(ck); err != nil {
					return err
				}
			} else {
				m.Start()
			}

			var rep result.Report
			if interactive {
				h := console.New(m, os.Stdin, os.Stdout)
				if err := h.Start(); err != nil {
					return err
				}
				reason, err := h.Run(cmd.Context())
				h.Stop()
				if err != nil && !errors.Is(err, console.ErrInterrupted) {
					return err
				}
				rep = result.Report{Name: args[0], Reason: reason, Cycles: m.CPU.Regs.Cycles, Regs: m.CPU.Regs}
				fmt.Fprintln(os.Stderr)
			} else {
				rep = m.Continue(filepath.Base(args[0]))
				os.Stdout.Write(rep.Output)
				if len(rep.Output) > 0 {
					fmt.Println()
				}
			}
			fmt.Fprintln(os.Stderr, rep)

			if saveCkpt != "" {
				if err := result.SaveCheckpoint(saveCkpt, m.Checkpoint()); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "Checkpoint written to %s\n", saveCkpt)
			}
			if !rep.OK() {
				return fmt.Errorf("%s: %s", rep.Reason, rep.Err)
			}
			return nil
		},
	}
	mf.register(runCmd)
	runCmd.Flags().StringVar(&saveCkpt, "save-checkpoint", "", "Write machine state to this file after the run")
	runCmd.Flags().StringVar(&loadCkpt, "checkpoint", "", "Resume from a checkpoint instead of resetting")
	runCmd.Flags().BoolVar(&interactive, "console", false, "Attach the terminal to the SCI")

	// trace command
	var tf machineFlags
	var traceLimit int

	traceCmd := &cobra.Command{
		Use:   "trace [image]",
		Short: "Run an image and print every executed instruction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := tf.machine(args[0], true)
			if err != nil {
				return err
			}
			rep := m.Run(filepath.Base(args[0]))
			entries := m.CPU.Trace()
			if traceLimit > 0 && len(entries) > traceLimit {
				entries = entries[len(entries)-traceLimit:]
			}
			for _, e := range entries {
				fmt.Println(e)
			}
			fmt.Fprintln(os.Stderr, rep)
			return nil
		},
	}
	tf.register(traceCmd)
	traceCmd.Flags().IntVar(&traceLimit, "last", 0, "Print only the last N entries (0 = all)")

	// disasm command
	var disFormat, disBase, disStart, disEnd string

	disasmCmd := &cobra.Command{
		Use:   "disasm [image]",
		Short: "Disassemble an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			f, err := emu.ParseFormat(disFormat)
			if err != nil {
				return err
			}
			if f == emu.FormatAuto {
				f = emu.Detect(args[0], data)
			}

			var lines []inst.Line
			switch f {
			case emu.FormatS19:
				m := mem.New()
				img, err := m.LoadS19String(string(data))
				if err != nil {
					return err
				}
				start, end := img.Low, img.High
				if start, err = addrOr(disStart, start); err != nil {
					return err
				}
				if end, err = addrOr(disEnd, end); err != nil {
					return err
				}
				lines = inst.Default().Disassemble(m, start, end)
			default:
				base, err := addrOr(disBase, emu.DefaultBaseAddr)
				if err != nil {
					return err
				}
				lines = inst.Default().DisassembleBytes(data, base)
			}
			for _, l := range lines {
				fmt.Println(l)
			}
			return nil
		},
	}
	disasmCmd.Flags().StringVar(&disFormat, "format", "auto", "Image format (auto, bin, s19)")
	disasmCmd.Flags().StringVar(&disBase, "base", "", "Load address of a raw binary")
	disasmCmd.Flags().StringVar(&disStart, "start", "", "First address (S19 only)")
	disasmCmd.Flags().StringVar(&disEnd, "end", "", "Last address (S19 only)")

	// batch command
	var bf machineFlags
	var numWorkers int
	var verbose bool

	batchCmd := &cobra.Command{
		Use:   "batch [images...]",
		Short: "Run many images in parallel and tabulate the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bf.config()
			if err != nil {
				return err
			}
			format, err := emu.ParseFormat(bf.format)
			if err != nil {
				return err
			}
			jobs := make([]batch.Job, len(args))
			for i, path := range args {
				jobs[i] = batch.Job{Name: filepath.Base(path), Path: path, Format: format, Config: cfg}
			}
			table, err := batch.Run(cmd.Context(), batch.Config{
				NumWorkers: numWorkers,
				Verbose:    verbose,
				Logger:     log,
			}, jobs)
			if err != nil {
				return err
			}
			if _, err := table.WriteTo(os.Stdout); err != nil {
				return err
			}
			if failed := table.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d of %d jobs failed", len(failed), table.Len())
			}
			return nil
		},
	}
	bf.register(batchCmd)
	batchCmd.Flags().IntVar(&numWorkers, "workers", 0, "Number of workers (0 = NumCPU)")
	batchCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every finished job")

	// fuzz command
	var fcfg fuzz.Config

	fuzzCmd := &cobra.Command{
		Use:   "fuzz",
		Short: "Execute random instruction sequences and check core invariants",
		RunE: func(cmd *cobra.Command, args []string) error {
			fcfg.Logger = log
			rep, err := fuzz.Run(cmd.Context(), fcfg)
			if err != nil {
				return err
			}
			fmt.Printf("Checked %d sequences, %d steps\n", rep.Sequences, rep.Steps)
			for _, v := range rep.Violations {
				fmt.Println(" ", v)
			}
			if rep.Found > 0 {
				return fmt.Errorf("%d violations", rep.Found)
			}
			return nil
		},
	}
	fuzzCmd.Flags().Uint64Var(&fcfg.Seed, "seed", 1, "Random seed")
	fuzzCmd.Flags().IntVar(&fcfg.Sequences, "sequences", 10000, "Number of sequences")
	fuzzCmd.Flags().IntVar(&fcfg.MaxLen, "max-len", 8, "Maximum sequence length")
	fuzzCmd.Flags().IntVar(&fcfg.Workers, "workers", 0, "Number of workers (0 = NumCPU)")

	// script command
	var sf machineFlags

	scriptCmd := &cobra.Command{
		Use:   "script [file.lua] [image]",
		Short: "Drive a machine from a Lua script",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var m *emu.Machine
			if len(args) == 2 {
				var err error
				if m, err = sf.machine(args[1], false); err != nil {
					return err
				}
				m.Start()
			} else {
				cfg, err := sf.config()
				if err != nil {
					return err
				}
				m = emu.New(cfg)
			}
			s := script.New(m, os.Stdout)
			defer s.Close()
			return s.DoFile(cmd.Context(), args[0])
		},
	}
	sf.register(scriptCmd)

	// s19 command
	var s19Base, s19Start, s19Header string

	s19Cmd := &cobra.Command{
		Use:   "s19 [in.bin] [out.s19]",
		Short: "Convert a raw binary to Motorola S19",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			base, err := addrOr(s19Base, emu.DefaultBaseAddr)
			if err != nil {
				return err
			}
			start, err := addrOr(s19Start, base)
			if err != nil {
				return err
			}
			header := s19Header
			if header == "" {
				header = filepath.Base(args[0])
			}
			f, err := os.Create(args[1])
			if err != nil {
				return err
			}
			if err := mem.WriteS19(f, data, base, header, start); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Printf("Written %d bytes at $%04X to %s\n", len(data), base, args[1])
			return nil
		},
	}
	s19Cmd.Flags().StringVar(&s19Base, "base", "", "Load address (default $8000)")
	s19Cmd.Flags().StringVar(&s19Start, "start", "", "S9 start address (default base)")
	s19Cmd.Flags().StringVar(&s19Header, "header", "", "S0 header text (default file name)")

	rootCmd.AddCommand(runCmd, traceCmd, disasmCmd, batchCmd, fuzzCmd, scriptCmd, s19Cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// machineFlags are the flags shared by every command that builds a machine.
type machineFlags struct {
	format      string
	base        string
	maxCycles   uint64
	resetVector bool
	breaks      string
	watch       string
	expect      string
	eeprom      string
	sensors     bool
	sciInput    string
	adc         []string
}

func (f *machineFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.format, "format", "auto", "Image format (auto, bin, s19)")
	fs.StringVar(&f.base, "base", "", "Load address and entry of a raw binary (default $8000)")
	fs.Uint64Var(&f.maxCycles, "max-cycles", emu.DefaultMaxCycles, "Cycle budget")
	fs.BoolVar(&f.resetVector, "reset-vector", false, "Start at the address stored at $FFFE")
	fs.StringVar(&f.breaks, "break", "", "Comma separated breakpoint addresses")
	fs.StringVar(&f.watch, "watch", "", "Comma separated addresses whose writes are logged")
	fs.StringVar(&f.expect, "expect", "", "Stop with DONE once the SCI has sent this text")
	fs.StringVar(&f.eeprom, "eeprom", "", "EEPROM file loaded before and saved after the run")
	fs.BoolVar(&f.sensors, "sensors-normal", false, "Preload key-on engine-off sensor readings")
	fs.StringVar(&f.sciInput, "sci-input", "", "Bytes queued on the SCI receiver")
	fs.StringSliceVar(&f.adc, "adc", nil, "ADC channel values as channel=value")
}

func (f *machineFlags) config() (emu.Config, error) {
	cfg := emu.Config{
		MaxCycles:      f.maxCycles,
		UseResetVector: f.resetVector,
		ExpectedOutput: []byte(f.expect),
		EEPROMPath:     f.eeprom,
		SensorsNormal:  f.sensors,
		SCIInput:       []byte(f.sciInput),
		Logger:         log,
	}
	var err error
	if cfg.BaseAddr, err = addrOr(f.base, emu.DefaultBaseAddr); err != nil {
		return cfg, err
	}
	if cfg.Breakpoints, err = emu.ParseAddrs(f.breaks); err != nil {
		return cfg, fmt.Errorf("--break: %w", err)
	}
	if cfg.Watch, err = emu.ParseAddrs(f.watch); err != nil {
		return cfg, fmt.Errorf("--watch: %w", err)
	}
	for _, kv := range f.adc {
		ch, v, ok := strings.Cut(kv, "=")
		if !ok {
			return cfg, fmt.Errorf("--adc %q: want channel=value", kv)
		}
		n, err := strconv.Atoi(ch)
		if err != nil || n < 0 || n >= 8 {
			return cfg, fmt.Errorf("--adc %q: bad channel", kv)
		}
		val, err := emu.ParseAddr(v)
		if err != nil || val > 0xFF {
			return cfg, fmt.Errorf("--adc %q: bad value", kv)
		}
		if cfg.ADCChannels == nil {
			cfg.ADCChannels = make(map[int]uint8)
		}
		cfg.ADCChannels[n] = uint8(val)
	}
	return cfg, nil
}

// machine builds a machine and loads path into it.
func (f *machineFlags) machine(path string, trace bool) (*emu.Machine, error) {
	cfg, err := f.config()
	if err != nil {
		return nil, err
	}
	cfg.Trace = trace
	format, err := emu.ParseFormat(f.format)
	if err != nil {
		return nil, err
	}
	m := emu.New(cfg)
	if err := m.LoadFile(path, format); err != nil {
		return nil, err
	}
	return m, nil
}

func addrOr(s string, def uint16) (uint16, error) {
	if s == "" {
		return def, nil
	}
	return emu.ParseAddr(s)
}
