package runner

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/gpiojitter/internal/aggregator"
	"github.com/torosent/gpiojitter/internal/channel"
	"github.com/torosent/gpiojitter/internal/clock"
	"github.com/torosent/gpiojitter/internal/generator"
	"github.com/torosent/gpiojitter/internal/gpio"
	"github.com/torosent/gpiojitter/internal/logx"
	"github.com/torosent/gpiojitter/internal/metrics"
	"github.com/torosent/gpiojitter/internal/output"
	"github.com/torosent/gpiojitter/internal/plot"
)

// DefaultChannelCapacity is the ring size used when none is configured.
const DefaultChannelCapacity = 4096

// Options configure the Runner.
type Options struct {
	Pin        gpio.Pin    // output line (required, closed by Run)
	Clock      clock.Clock // timestamp source (required)
	HalfPeriod uint64      // target half-period in ns (required)

	Core     int // generator core; generator.NoCore disables pinning
	Priority int // SCHED_FIFO priority, 0 keeps default scheduling

	Duration        time.Duration // overall time limit (0 means until ctx is cancelled)
	ChannelCapacity int
	Window          int
	Refresh         time.Duration
	HistoryLimit    int

	Sink    plot.Sink
	LogPath string
	LogMode output.LogMode

	Collector *metrics.Collector // optional; created from HalfPeriod when nil
	Logger    logx.Logger
	Tracer    trace.Tracer

	// OnStarted is called once both workers are running.
	OnStarted func(runID string)

	numCPU int
}

func (o *Options) normalize() {
	if o.ChannelCapacity <= 0 {
		o.ChannelCapacity = DefaultChannelCapacity
	}
	o.ChannelCapacity = channel.RoundCapacity(o.ChannelCapacity)
	if o.Window <= 0 {
		o.Window = aggregator.DefaultWindow
	}
	if o.Refresh <= 0 {
		o.Refresh = aggregator.DefaultRefresh
	}
	if o.HistoryLimit < 0 {
		o.HistoryLimit = 0
	}
	if o.Duration < 0 {
		o.Duration = 0
	}
	if o.Priority < 0 {
		o.Priority = 0
	}
	if o.LogMode == "" {
		o.LogMode = output.LogTruncate
	}
	if o.Collector == nil {
		o.Collector = metrics.NewCollector(o.HalfPeriod)
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("gpiojitter")
	}
	if o.numCPU <= 0 {
		o.numCPU = numCPU()
	}
}

// aggregatorCore places the consumer next to the generator so the two never
// share a core. A single-CPU host or an unpinned generator leaves it unpinned.
func aggregatorCore(genCore, cpus int) int {
	if genCore == generator.NoCore || cpus <= 1 {
		return aggregator.NoCore
	}
	return (genCore + 1) % cpus
}
