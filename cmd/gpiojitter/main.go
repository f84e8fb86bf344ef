package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/torosent/gpiojitter/internal/clock"
	"github.com/torosent/gpiojitter/internal/config"
	"github.com/torosent/gpiojitter/internal/dashboard"
	"github.com/torosent/gpiojitter/internal/gpio"
	"github.com/torosent/gpiojitter/internal/logx"
	"github.com/torosent/gpiojitter/internal/metrics"
	"github.com/torosent/gpiojitter/internal/output"
	"github.com/torosent/gpiojitter/internal/plot"
	"github.com/torosent/gpiojitter/internal/runner"
	"github.com/torosent/gpiojitter/internal/sched"
	"github.com/torosent/gpiojitter/internal/telemetry"
	"github.com/torosent/gpiojitter/internal/threshold"
	"github.com/torosent/gpiojitter/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
	consumerName     = "gpiojitter"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}

	warnings := cfg.Normalize(config.Environment{
		GnuplotAvailable: plot.GnuplotAvailable,
		RealtimeAllowed:  sched.RealtimeAllowed,
	})

	logCfg := logx.Config{Level: cfg.LogLevel, File: cfg.LogFile}
	if cfg.Dashboard {
		// termui owns the terminal; console output would corrupt it.
		logCfg.Console = io.Discard
	}
	log, err := logx.New(logCfg)
	if err != nil {
		return err
	}
	defer log.Close()

	for _, w := range warnings {
		log.Warn(w)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}
	selector, err := gpio.ParseSelector(cfg.Pin)
	if err != nil {
		return err
	}
	clk, err := clock.Open(clock.Source(cfg.Clock))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	if tp.Enabled() {
		log.Info("tracing enabled", logx.String("protocol", cfg.Tracing.Protocol))
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		if err := tp.Shutdown(sctx); err != nil {
			log.Warn("tracing shutdown failed", logx.Err(err))
		}
	}()

	pin, err := gpio.Open(selector, consumerName)
	if err != nil {
		return err
	}
	log.Info("pin ready", logx.String("pin", selector.String()))

	halfPeriod := config.HalfPeriod(cfg.FrequencyHz)
	collector := metrics.NewCollector(halfPeriod)
	logPath := output.ResolveLogPath(cfg.Output, time.Now())

	sinks, cleanup, err := buildSinks(cfg, selector, halfPeriod, logPath, collector, cancel, log)
	if err != nil {
		_ = pin.Close()
		return err
	}
	defer cleanup()

	r, err := runner.New(runner.Options{
		Pin:             pin,
		Clock:           clk,
		HalfPeriod:      halfPeriod,
		Core:            cfg.CPU,
		Priority:        cfg.Priority,
		Duration:        cfg.Duration,
		ChannelCapacity: cfg.ChannelCapacity,
		Window:          cfg.Window,
		Refresh:         cfg.Refresh,
		HistoryLimit:    cfg.HistoryLimit,
		Sink:            sinks,
		LogPath:         logPath,
		LogMode:         output.LogMode(cfg.LogMode),
		Collector:       collector,
		Logger:          log,
		Tracer:          tp.Tracer(),
		OnStarted: func(string) {
			notify(log, daemon.SdNotifyReady)
		},
	})
	if err != nil {
		_ = pin.Close()
		return err
	}

	var progress *output.ProgressReporter
	if !cfg.JSONOutput && !cfg.YAMLOutput && !cfg.Dashboard {
		progress = output.NewProgressReporter(collector, progressInterval, stdout)
		progress.Start()
	}

	result, runErr := r.Run(ctx)
	notify(log, daemon.SdNotifyStopping)
	if progress != nil {
		progress.Stop()
	}

	stats := collector.Stats(result.Duration)
	results := threshold.NewEvaluator(thresholds).Evaluate(stats)
	info := output.RunInfo{
		RunID:       result.RunID,
		Pin:         selector.String(),
		FrequencyHz: cfg.FrequencyHz,
		Core:        cfg.CPU,
		Priority:    cfg.Priority,
		Clock:       cfg.Clock,
		OverheadNS:  result.Overhead,
		Toggles:     result.Toggles,
		WriteErrors: result.WriteErrors,
		LogPath:     result.LogPath,
		HistoryFull: result.HistoryFull,
		DurationSec: result.Duration.Seconds(),
	}

	if err := writeReports(cfg, stdout, info, stats, result.History, halfPeriod, collector, results); err != nil {
		return errors.Join(runErr, err)
	}
	if runErr != nil {
		return runErr
	}
	if threshold.Failed(results) {
		failed := 0
		for _, res := range results {
			if !res.Pass {
				failed++
			}
		}
		return fmt.Errorf("%d of %d thresholds failed", failed, len(results))
	}
	return nil
}

// buildSinks opens every enabled live output and combines them into one
// plot.Sink. cleanup stops what the aggregator does not own.
func buildSinks(cfg *config.Config, sel gpio.Selector, halfPeriod uint64, logPath string,
	collector *metrics.Collector, shutdown func(), log logx.Logger) (plot.Sink, func(), error) {
	var (
		sinks    []plot.Sink
		cleanups []func()
	)
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if cfg.Plot {
		g, err := plot.NewGnuplot()
		if err != nil {
			log.Warn("gnuplot could not be started; plotting disabled", logx.Err(err))
		} else {
			sinks = append(sinks, g)
		}
	}

	if cfg.MetricsAddr != "" {
		exporter := telemetry.NewExporter(sel.String(), halfPeriod)
		srv, err := telemetry.Serve(cfg.MetricsAddr, exporter, log)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		sinks = append(sinks, exporter)
		cleanups = append(cleanups, func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Warn("metrics server shutdown failed", logx.Err(err))
			}
		})
	}

	if cfg.Dashboard {
		dash, err := dashboard.New(collector, dashboard.RunConfig{
			Pin:          sel.String(),
			FrequencyHz:  cfg.FrequencyHz,
			HalfPeriodNS: halfPeriod,
			Core:         cfg.CPU,
			Priority:     cfg.Priority,
			Duration:     cfg.Duration,
			LogPath:      logPath,
			ConfigFile:   cfg.ConfigFile,
		}, shutdown)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		dash.Start()
		sinks = append(sinks, dash)
		cleanups = append(cleanups, dash.Stop)
	}

	return plot.Combine(sinks...), cleanup, nil
}

func writeReports(cfg *config.Config, stdout io.Writer, info output.RunInfo, stats metrics.Stats,
	history []metrics.Measurement, halfPeriod uint64, collector *metrics.Collector, results []threshold.Result) error {
	report := output.NewReport(info, stats, results)
	switch {
	case cfg.JSONOutput:
		if err := output.PrintJSONReport(stdout, report); err != nil {
			return err
		}
	case cfg.YAMLOutput:
		if err := output.PrintYAMLReport(stdout, report); err != nil {
			return err
		}
	default:
		output.PrintReport(stdout, report)
	}

	if cfg.HTMLOutput == "" {
		return nil
	}
	f, err := os.Create(cfg.HTMLOutput)
	if err != nil {
		return fmt.Errorf("create html report: %w", err)
	}
	series := metrics.Window(history, halfPeriod).Points
	if err := output.GenerateHTMLReport(f, info, stats, series, collector.Distribution(), results); err != nil {
		_ = f.Close()
		return fmt.Errorf("write html report: %w", err)
	}
	return f.Close()
}

func notify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("systemd notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("systemd notified", logx.String("state", state))
	}
}
