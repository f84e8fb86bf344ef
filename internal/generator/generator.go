// Package generator implements the producer side of the pipeline: a busy-wait
// loop that toggles the output pin every half-period and records how long
// each half-period actually took.
package generator

import (
	"errors"
	"runtime"

	"github.com/torosent/gpiojitter/internal/channel"
	"github.com/torosent/gpiojitter/internal/clock"
	"github.com/torosent/gpiojitter/internal/gpio"
	"github.com/torosent/gpiojitter/internal/lifecycle"
	"github.com/torosent/gpiojitter/internal/logx"
	"github.com/torosent/gpiojitter/internal/metrics"
	"github.com/torosent/gpiojitter/internal/sched"
)

// NoCore disables CPU pinning.
const NoCore = -1

// Config wires a Generator.
type Config struct {
	Pin        gpio.Pin
	Ring       *channel.Ring
	Clock      clock.Clock
	Flag       *lifecycle.Flag
	HalfPeriod uint64
	Overhead   uint64
	Core       int
	Priority   int
	Logger     logx.Logger
}

// Summary describes a finished run of the loop.
type Summary struct {
	Toggles     uint64
	Enqueued    uint64
	WriteErrors uint64
}

// Generator toggles a pin at a fixed half-period.
type Generator struct {
	cfg Config
	log logx.Logger
}

// New validates cfg and returns a Generator.
func New(cfg Config) (*Generator, error) {
	switch {
	case cfg.Pin == nil:
		return nil, errors.New("generator: pin is required")
	case cfg.Ring == nil:
		return nil, errors.New("generator: channel is required")
	case cfg.Clock == nil:
		return nil, errors.New("generator: clock is required")
	case cfg.Flag == nil:
		return nil, errors.New("generator: termination flag is required")
	case cfg.HalfPeriod == 0:
		return nil, errors.New("generator: half-period must be positive")
	}
	return &Generator{
		cfg: cfg,
		log: cfg.Logger.With(logx.String("comp", "generator")),
	}, nil
}

// Run locks the calling goroutine to its OS thread, applies CPU placement
// and real-time priority, then toggles until the termination flag is raised.
//
// The thread is never unlocked: once its affinity or scheduling class has
// been changed the runtime must discard it when the goroutine exits.
func (g *Generator) Run() Summary {
	runtime.LockOSThread()
	g.place()
	return g.loop()
}

func (g *Generator) place() {
	if g.cfg.Core != NoCore {
		if err := sched.PinCurrentThread(g.cfg.Core); err != nil {
			g.log.Warn("cpu pinning failed; continuing unpinned", logx.Int("core", g.cfg.Core), logx.Err(err))
		} else {
			g.log.Debug("pinned to core", logx.Int("core", g.cfg.Core), logx.Int("tid", sched.ThreadID()))
		}
	}
	if g.cfg.Priority > 0 {
		if err := sched.SetFIFOPriority(g.cfg.Priority); err != nil {
			g.log.Warn("real-time priority not applied; continuing with default scheduling",
				logx.Int("priority", g.cfg.Priority), logx.Err(err))
		} else {
			g.log.Info("SCHED_FIFO enabled", logx.Int("priority", g.cfg.Priority))
		}
	}
}

func (g *Generator) loop() Summary {
	var (
		sum   Summary
		seq   uint64
		level int
	)
	clk := g.cfg.Clock
	pin := g.cfg.Pin
	ring := g.cfg.Ring
	flag := g.cfg.Flag
	half := g.cfg.HalfPeriod
	overhead := g.cfg.Overhead

	ref := clk.Now()
	for !flag.Raised() {
		now := clk.Now()
		elapsed := intervalSince(ref, now, overhead)
		if elapsed < half {
			continue
		}

		level ^= 1
		if err := pin.Set(level); err != nil {
			sum.WriteErrors++
			if sum.WriteErrors == 1 {
				g.log.Warn("pin write failed; further failures are only counted", logx.Err(err))
			}
		}
		ref = now
		sum.Toggles++

		if ring.TryEnqueue(metrics.Measurement{Sequence: seq, IntervalNS: elapsed}) {
			seq++
			sum.Enqueued++
		}
	}

	g.log.Debug("generator stopped",
		logx.Uint64("toggles", sum.Toggles),
		logx.Uint64("enqueued", sum.Enqueued),
		logx.Uint64("write_errors", sum.WriteErrors),
	)
	return sum
}

// intervalSince returns now-ref-overhead, clamped to zero.
func intervalSince(ref, now, overhead uint64) uint64 {
	if now <= ref {
		return 0
	}
	d := now - ref
	if d <= overhead {
		return 0
	}
	return d - overhead
}
