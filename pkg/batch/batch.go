// Package batch runs many independent machines in parallel, one image or
// scenario per job, and gathers their reports.
package batch

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/oisee/hc11emu/pkg/emu"
	"github.com/oisee/hc11emu/pkg/result"
)

// Job is one machine to build and run. Image takes precedence over Path.
type Job struct {
	Name   string
	Image  []byte
	Path   string
	Format emu.Format
	Config emu.Config
}

// Config holds batch configuration.
type Config struct {
	NumWorkers int  // Number of parallel machines (defaults to NumCPU)
	Verbose    bool // Log every finished job at info level
	Logger     *logrus.Logger
}

// Pool runs jobs on a bounded number of goroutines.
type Pool struct {
	NumWorkers int
	Results    *result.Table
	log        *logrus.Logger
	verbose    bool
	completed  atomic.Int64
	failed     atomic.Int64
}

// NewPool creates a pool with the given number of workers.
func NewPool(cfg Config) *Pool {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = runtime.NumCPU()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
		cfg.Logger.SetLevel(logrus.WarnLevel)
	}
	return &Pool{
		NumWorkers: cfg.NumWorkers,
		Results:    result.NewTable(),
		log:        cfg.Logger,
		verbose:    cfg.Verbose,
	}
}

// Stats returns the number of jobs finished and how many of them failed.
func (p *Pool) Stats() (completed, failed int64) {
	return p.completed.Load(), p.failed.Load()
}

// Run executes jobs until all finish or ctx is cancelled. A failing job is
// recorded in Results and does not stop the others; only cancellation is
// returned as an error.
func (p *Pool) Run(ctx context.Context, jobs []Job) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.NumWorkers)
	start := time.Now()
	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rep := p.runJob(job)
			p.Results.Add(rep)
			p.completed.Add(1)
			if !rep.OK() {
				p.failed.Add(1)
			}
			if p.verbose {
				p.log.WithFields(logrus.Fields{
					"job":    rep.Name,
					"reason": rep.Reason.String(),
					"cycles": rep.Cycles,
				}).Info("job finished")
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	done, failed := p.Stats()
	p.log.WithFields(logrus.Fields{
		"jobs":    len(jobs),
		"done":    done,
		"failed":  failed,
		"elapsed": time.Since(start).Round(time.Millisecond).String(),
	}).Info("batch finished")
	return err
}

func (p *Pool) runJob(job Job) result.Report {
	cfg := job.Config
	if cfg.Logger == nil {
		cfg.Logger = p.log
	}
	m := emu.New(cfg)
	switch {
	case job.Image != nil:
		if job.Format == emu.FormatS19 {
			if _, err := m.LoadS19(bytes.NewReader(job.Image)); err != nil {
				return result.Report{Name: job.Name, Err: err.Error()}
			}
		} else {
			m.LoadBinary(job.Image)
		}
		if err := m.LoadEEPROM(); err != nil {
			return result.Report{Name: job.Name, Err: err.Error()}
		}
	case job.Path != "":
		if err := m.LoadFile(job.Path, job.Format); err != nil {
			return result.Report{Name: job.Name, Err: err.Error()}
		}
	default:
		return result.Report{Name: job.Name, Err: fmt.Sprintf("job %q has no image", job.Name)}
	}
	return m.Run(job.Name)
}

// Run executes jobs with a fresh pool and returns the collected reports.
func Run(ctx context.Context, cfg Config, jobs []Job) (*result.Table, error) {
	p := NewPool(cfg)
	err := p.Run(ctx, jobs)
	return p.Results, err
}
