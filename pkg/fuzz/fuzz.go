package fuzz

import (
	"context"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/oisee/hc11emu/pkg/cpu"
	"github.com/oisee/hc11emu/pkg/inst"
)

// maxKept bounds the violations a run retains.
const maxKept = 100

// Config holds fuzzing configuration.
type Config struct {
	Seed      uint64 // Base seed; worker w uses stream (Seed, w)
	Sequences int    // Total sequences to check (defaults to 10000)
	MaxLen    int    // Maximum sequence length (defaults to 8)
	Workers   int    // Parallel workers (defaults to NumCPU)
	Logger    *logrus.Logger
}

// Report summarises a fuzzing run.
type Report struct {
	Sequences  int64
	Steps      int64
	Found      int64       // violations found, including ones not kept
	Violations []Violation // first maxKept violations
}

// Run checks cfg.Sequences random sequences. Each worker alternates fresh
// sequences with mutations of its previous one.
func Run(ctx context.Context, cfg Config) (Report, error) {
	if cfg.Sequences <= 0 {
		cfg.Sequences = 10000
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = 8
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Workers > cfg.Sequences {
		cfg.Workers = cfg.Sequences
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
		cfg.Logger.SetLevel(logrus.WarnLevel)
	}

	var (
		mu          sync.Mutex
		rep         Report
		seqs, steps atomic.Int64
	)
	set := inst.Default()
	g, ctx := errgroup.WithContext(ctx)
	for w := range cfg.Workers {
		quota := cfg.Sequences / cfg.Workers
		if w < cfg.Sequences%cfg.Workers {
			quota++
		}
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(w)))
			mut := NewMutator(rng, set, cfg.MaxLen)
			var prev []inst.Instruction
			for range quota {
				if err := ctx.Err(); err != nil {
					return err
				}
				var seq []inst.Instruction
				if prev != nil && rng.IntN(4) != 0 {
					seq = mut.Mutate(prev)
				} else {
					seq = mut.Random()
				}
				prev = seq
				n, vs := Check(set, seq, RandomRegisters(rng))
				seqs.Add(1)
				steps.Add(int64(n))
				if len(vs) == 0 {
					continue
				}
				mu.Lock()
				rep.Found += int64(len(vs))
				for _, v := range vs {
					if len(rep.Violations) < maxKept {
						rep.Violations = append(rep.Violations, v)
					}
					cfg.Logger.WithFields(logrus.Fields{
						"worker": w,
						"kind":   string(v.Kind),
					}).Warn(v.String())
				}
				mu.Unlock()
			}
			return nil
		})
	}
	err := g.Wait()
	rep.Sequences = seqs.Load()
	rep.Steps = steps.Load()
	cfg.Logger.WithFields(logrus.Fields{
		"sequences":  rep.Sequences,
		"steps":      rep.Steps,
		"violations": rep.Found,
	}).Info("fuzz finished")
	return rep, err
}

// RandomRegisters returns a register file with random contents. SP stays
// inside internal RAM so pushes land in writable memory.
func RandomRegisters(rng *rand.Rand) cpu.Registers {
	return cpu.Registers{
		A:  uint8(rng.IntN(256)),
		B:  uint8(rng.IntN(256)),
		X:  uint16(rng.IntN(65536)),
		Y:  uint16(rng.IntN(65536)),
		SP: 0x0100 + uint16(rng.IntN(0x300)),
		CC: uint8(rng.IntN(256)),
	}
}
