package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/torosent/gpiojitter/internal/aggregator"
	"github.com/torosent/gpiojitter/internal/channel"
	"github.com/torosent/gpiojitter/internal/clock"
	"github.com/torosent/gpiojitter/internal/generator"
	"github.com/torosent/gpiojitter/internal/lifecycle"
	"github.com/torosent/gpiojitter/internal/logx"
	"github.com/torosent/gpiojitter/internal/metrics"
	"github.com/torosent/gpiojitter/internal/tracing"
)

var numCPU = runtime.NumCPU

// Result captures execution summary.
type Result struct {
	RunID       string
	Overhead    uint64
	Toggles     uint64
	Recorded    int
	Dropped     uint64
	WriteErrors uint64
	Duration    time.Duration
	LogPath     string
	HistoryFull bool
	History     []metrics.Measurement
}

// Runner owns one measurement run: it calibrates the clock, starts the
// generator and aggregator, and tears both down when the context ends.
type Runner struct {
	opt Options
	log logx.Logger
}

func New(opt Options) (*Runner, error) {
	switch {
	case opt.Pin == nil:
		return nil, errors.New("runner: pin is required")
	case opt.Clock == nil:
		return nil, errors.New("runner: clock is required")
	case opt.HalfPeriod == 0:
		return nil, errors.New("runner: half-period must be positive")
	}
	opt.normalize()
	return &Runner{opt: opt, log: opt.Logger.With(logx.String("comp", "runner"))}, nil
}

// Collector returns the run-wide statistics the aggregator feeds.
func (r *Runner) Collector() *metrics.Collector {
	return r.opt.Collector
}

// Run blocks until ctx is done (or Duration elapses, or a worker stops on its
// own), then stops both workers and closes the pin. The returned error
// reports worker panics and log write failures; Result is filled either way.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	res := Result{RunID: ulid.Make().String()}
	log := r.log.With(logx.String("run_id", res.RunID))

	if r.opt.Duration > 0 {
		deadlineCtx, cancel := context.WithTimeout(ctx, r.opt.Duration)
		ctx = deadlineCtx
		defer cancel()
	}

	ctx, runSpan := tracing.StartPhaseSpan(ctx, r.opt.Tracer, "run", res.RunID)
	if traceID := tracing.TraceID(ctx); traceID != "" {
		log = log.With(logx.String("trace_id", traceID))
	}

	_, calSpan := tracing.StartPhaseSpan(ctx, r.opt.Tracer, "calibrate", res.RunID)
	res.Overhead = clock.EstimateOverhead(r.opt.Clock)
	tracing.EndSpan(calSpan, nil, attribute.Int64("gpiojitter.overhead_ns", int64(res.Overhead)))
	log.Info("clock overhead estimated", logx.Uint64("overhead_ns", res.Overhead))

	ring, err := channel.New(r.opt.ChannelCapacity)
	if err != nil {
		r.closePin(log)
		tracing.EndSpan(runSpan, err)
		return res, fmt.Errorf("create channel: %w", err)
	}
	flag := &lifecycle.Flag{}

	gen, err := generator.New(generator.Config{
		Pin:        r.opt.Pin,
		Ring:       ring,
		Clock:      r.opt.Clock,
		Flag:       flag,
		HalfPeriod: r.opt.HalfPeriod,
		Overhead:   res.Overhead,
		Core:       r.opt.Core,
		Priority:   r.opt.Priority,
		Logger:     log,
	})
	if err != nil {
		r.closePin(log)
		tracing.EndSpan(runSpan, err)
		return res, err
	}

	producerDone := make(chan struct{})
	agg, err := aggregator.New(aggregator.Config{
		Ring:         ring,
		Flag:         flag,
		Collector:    r.opt.Collector,
		TargetNS:     r.opt.HalfPeriod,
		Window:       r.opt.Window,
		Refresh:      r.opt.Refresh,
		HistoryLimit: r.opt.HistoryLimit,
		Sink:         r.opt.Sink,
		LogPath:      r.opt.LogPath,
		LogMode:      r.opt.LogMode,
		Core:         aggregatorCore(r.opt.Core, r.opt.numCPU),
		ProducerDone: producerDone,
		Logger:       log,
	})
	if err != nil {
		r.closePin(log)
		tracing.EndSpan(runSpan, err)
		return res, err
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		panics   []error
		genSum   generator.Summary
		aggRes   aggregator.Result
		consumer = make(chan struct{})
	)
	recoverWorker := func(name string) {
		if v := recover(); v != nil {
			flag.Raise()
			log.Error("worker panicked", logx.String("worker", name), logx.Any("panic", v),
				logx.String("stack", string(debug.Stack())))
			mu.Lock()
			panics = append(panics, fmt.Errorf("%s worker panicked: %v", name, v))
			mu.Unlock()
		}
	}

	_, measureSpan := tracing.StartPhaseSpan(ctx, r.opt.Tracer, "measure", res.RunID)
	start := time.Now()
	r.opt.Collector.Start()

	wg.Add(2)
	go func() {
		defer wg.Done()
		defer close(producerDone)
		defer recoverWorker("generator")
		genSum = gen.Run()
	}()
	go func() {
		defer wg.Done()
		defer close(consumer)
		defer recoverWorker("aggregator")
		aggRes = agg.Run()
	}()

	log.Info("measurement started",
		logx.Uint64("half_period_ns", r.opt.HalfPeriod),
		logx.Int("core", r.opt.Core),
		logx.Int("priority", r.opt.Priority),
		logx.Int("channel_capacity", ring.Cap()),
	)
	if r.opt.OnStarted != nil {
		r.opt.OnStarted(res.RunID)
	}

	select {
	case <-ctx.Done():
		log.Info("stopping", logx.String("reason", context.Cause(ctx).Error()))
	case <-consumer:
		log.Warn("aggregator stopped before shutdown was requested")
	case <-producerDone:
		log.Warn("generator stopped before shutdown was requested")
	}

	flag.Raise()
	wg.Wait()
	res.Duration = time.Since(start)

	res.Toggles = genSum.Toggles
	res.WriteErrors = genSum.WriteErrors
	res.Dropped = ring.Dropped()
	res.Recorded = aggRes.Recorded
	res.History = aggRes.History
	res.LogPath = aggRes.LogPath
	res.HistoryFull = aggRes.HistoryFull

	tracing.EndSpan(measureSpan, nil,
		attribute.Int64("gpiojitter.toggles", int64(res.Toggles)),
		attribute.Int("gpiojitter.recorded", res.Recorded),
		attribute.Int64("gpiojitter.dropped", int64(res.Dropped)),
	)

	r.closePin(log)

	var errs []error
	errs = append(errs, panics...)
	if aggRes.LogErr != nil {
		errs = append(errs, fmt.Errorf("write log %s: %w", aggRes.LogPath, aggRes.LogErr))
	}
	runErr := errors.Join(errs...)
	tracing.EndSpan(runSpan, runErr)

	log.Info("measurement finished",
		logx.Uint64("toggles", res.Toggles),
		logx.Int("recorded", res.Recorded),
		logx.Uint64("dropped", res.Dropped),
		logx.Uint64("write_errors", res.WriteErrors),
		logx.Duration("duration", res.Duration),
		logx.Bool("history_full", res.HistoryFull),
	)
	return res, runErr
}

func (r *Runner) closePin(log logx.Logger) {
	if err := r.opt.Pin.Close(); err != nil {
		log.Warn("closing pin failed", logx.Err(err))
	}
}
