// Package aggregator implements the consumer side of the pipeline. It drains
// the channel into the run history, feeds live plot sinks with window
// statistics and persists the history when the run ends.
package aggregator

import (
	"errors"
	"runtime"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/gpiojitter/internal/channel"
	"github.com/torosent/gpiojitter/internal/lifecycle"
	"github.com/torosent/gpiojitter/internal/logx"
	"github.com/torosent/gpiojitter/internal/metrics"
	"github.com/torosent/gpiojitter/internal/output"
	"github.com/torosent/gpiojitter/internal/plot"
	"github.com/torosent/gpiojitter/internal/sched"
)

const (
	DefaultWindow  = 100
	DefaultRefresh = 200 * time.Millisecond

	// NoCore disables CPU pinning.
	NoCore = -1
)

// Config wires an Aggregator.
type Config struct {
	Ring      *channel.Ring
	Flag      *lifecycle.Flag
	Collector *metrics.Collector
	TargetNS  uint64

	Window       int
	Refresh      time.Duration
	HistoryLimit int

	// Sink receives a frame per refresh. Nil disables live plotting.
	Sink plot.Sink

	LogPath string
	LogMode output.LogMode

	Core int

	// ProducerDone, when set, is closed once the generator has exited. The
	// final drain waits for it so no in-flight record is missed.
	ProducerDone <-chan struct{}

	Logger logx.Logger
}

// Result describes the outcome of the consumer loop.
type Result struct {
	Recorded    int
	History     []metrics.Measurement
	LogPath     string
	LogErr      error
	HistoryFull bool
}

// Aggregator consumes measurements until the termination flag is raised.
type Aggregator struct {
	cfg     Config
	log     logx.Logger
	history *metrics.History
	sink    plot.Sink

	limiter     *rate.Limiter
	lastDropped uint64
}

// New validates cfg, fills defaults and returns an Aggregator.
func New(cfg Config) (*Aggregator, error) {
	switch {
	case cfg.Ring == nil:
		return nil, errors.New("aggregator: channel is required")
	case cfg.Flag == nil:
		return nil, errors.New("aggregator: termination flag is required")
	case cfg.Collector == nil:
		return nil, errors.New("aggregator: collector is required")
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Refresh <= 0 {
		cfg.Refresh = DefaultRefresh
	}
	if cfg.LogMode == "" {
		cfg.LogMode = output.LogTruncate
	}
	return &Aggregator{
		cfg:     cfg,
		log:     cfg.Logger.With(logx.String("comp", "aggregator")),
		history: metrics.NewHistory(cfg.HistoryLimit),
		sink:    cfg.Sink,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}, nil
}

// Run executes the consumer loop on a locked OS thread and returns once the
// history has been flushed and the sink closed.
func (a *Aggregator) Run() Result {
	runtime.LockOSThread()
	if a.cfg.Core != NoCore {
		if err := sched.PinCurrentThread(a.cfg.Core); err != nil {
			a.log.Warn("cpu pinning failed; continuing unpinned", logx.Int("core", a.cfg.Core), logx.Err(err))
		}
	}

	var res Result
	for !a.cfg.Flag.Raised() {
		if err := a.drain(); err != nil {
			res.HistoryFull = true
			break
		}
		a.checkOverflow()
		a.publish()
		time.Sleep(a.cfg.Refresh)
	}

	if res.HistoryFull {
		a.log.Warn("history limit reached; measurement stopped",
			logx.Int("records", a.history.Len()),
			logx.Int("limit", a.cfg.HistoryLimit),
		)
	} else {
		if a.cfg.ProducerDone != nil {
			<-a.cfg.ProducerDone
		}
		if err := a.drain(); err != nil {
			res.HistoryFull = true
			a.log.Warn("history limit reached during final drain", logx.Int("records", a.history.Len()))
		}
		a.checkOverflow()
	}

	res.Recorded = a.history.Len()
	res.History = a.history.Records()

	if a.cfg.LogPath != "" {
		res.LogPath = a.cfg.LogPath
		res.LogErr = output.WriteLog(a.cfg.LogPath, a.cfg.LogMode, res.History)
		if res.LogErr != nil {
			a.log.Error("writing measurement log failed", logx.String("path", a.cfg.LogPath), logx.Err(res.LogErr))
		} else {
			a.log.Info("measurement log written",
				logx.String("path", a.cfg.LogPath),
				logx.Int("records", res.Recorded),
				logx.String("mode", string(a.cfg.LogMode)),
			)
		}
	}

	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.log.Warn("closing plot sink failed", logx.Err(err))
		}
	}
	return res
}

func (a *Aggregator) drain() error {
	var appendErr error
	a.cfg.Ring.Drain(func(m metrics.Measurement) bool {
		if err := a.history.Append(m); err != nil {
			appendErr = err
			return false
		}
		a.cfg.Collector.Record(m)
		return true
	})
	return appendErr
}

func (a *Aggregator) checkOverflow() {
	dropped := a.cfg.Ring.Dropped()
	a.cfg.Collector.SetDropped(dropped)
	if dropped == a.lastDropped {
		return
	}
	if a.limiter.Allow() {
		a.log.Warn("channel full; measurements dropped",
			logx.Uint64("dropped_total", dropped),
			logx.Uint64("dropped_new", dropped-a.lastDropped),
		)
		a.lastDropped = dropped
	}
}

func (a *Aggregator) publish() {
	if a.sink == nil || a.history.Len() == 0 {
		return
	}
	ws := metrics.Window(a.history.Tail(a.cfg.Window), a.cfg.TargetNS)
	frame := plot.NewFrame(ws, int64(a.history.Len()), a.cfg.Ring.Dropped())
	if err := a.sink.SendFrame(frame); err != nil {
		a.log.Warn("plot sink failed; live plotting disabled", logx.Err(err))
		if cerr := a.sink.Close(); cerr != nil {
			a.log.Warn("closing plot sink failed", logx.Err(cerr))
		}
		a.sink = nil
	}
}
