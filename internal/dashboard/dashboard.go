// Package dashboard renders a live terminal view of a jitter run and acts as
// a plot sink for the aggregator.
package dashboard

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/gpiojitter/internal/metrics"
	"github.com/torosent/gpiojitter/internal/plot"
)

const sparklineHistory = 100

// RunConfig holds run parameters for display.
type RunConfig struct {
	Pin          string        // Pin selector
	FrequencyHz  int           // Output frequency
	HalfPeriodNS uint64        // Target half-period
	Core         int           // Generator CPU core
	Priority     int           // SCHED_FIFO priority (0 = default scheduling)
	Duration     time.Duration // Run duration (0 = until interrupted)
	LogPath      string        // Measurement log path, if any
	ConfigFile   string        // Path to config file if used
}

// Dashboard renders a live terminal UI for jitter metrics.
type Dashboard struct {
	collector    *metrics.Collector
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid         *ui.Grid
	jitterPlot   *widgets.Plot
	windowPara   *widgets.Paragraph
	maxSparkline *widgets.SparklineGroup
	channelGauge *widgets.Gauge
	summaryPara  *widgets.Paragraph
	statsPara    *widgets.Paragraph

	frame      plot.Frame
	haveFrame  bool
	maxHistory []float64
	startTime  time.Time
	runConfig  RunConfig
}

var _ plot.Sink = (*Dashboard)(nil)

// New creates a new Dashboard. shutdownFunc is called when the user asks to
// stop the run.
func New(collector *metrics.Collector, cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	d := newDashboard(collector, cfg, shutdownFunc)
	d.setupGrid()
	return d, nil
}

func newDashboard(collector *metrics.Collector, cfg RunConfig, shutdownFunc func()) *Dashboard {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		collector:    collector,
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
		maxHistory:   make([]float64, 0, sparklineHistory),
		startTime:    time.Now(),
		runConfig:    cfg,
	}
	d.initWidgets()
	return d
}

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	d.jitterPlot = widgets.NewPlot()
	d.jitterPlot.Title = "Jitter (ns) | waiting for samples"
	d.jitterPlot.Data = [][]float64{{0, 0}, {0, 0}}
	d.jitterPlot.LineColors = []ui.Color{ui.ColorGreen, ui.ColorBlue}
	d.jitterPlot.AxesColor = ui.ColorWhite
	d.jitterPlot.BorderStyle.Fg = ui.ColorCyan

	d.windowPara = widgets.NewParagraph()
	d.windowPara.Title = "Window"
	d.windowPara.Text = "Max: 0 ns\nAvg: 0 ns"
	d.windowPara.BorderStyle.Fg = ui.ColorCyan

	spark := widgets.NewSparkline()
	spark.Title = "Window max jitter"
	spark.LineColor = ui.ColorYellow
	spark.Data = []float64{0}
	d.maxSparkline = widgets.NewSparklineGroup(spark)
	d.maxSparkline.Title = "Max Jitter Trend"
	d.maxSparkline.BorderStyle.Fg = ui.ColorCyan

	d.channelGauge = widgets.NewGauge()
	d.channelGauge.Title = "Records Kept"
	d.channelGauge.Percent = 100
	d.channelGauge.BarColor = ui.ColorGreen
	d.channelGauge.BorderStyle.Fg = ui.ColorCyan
	d.channelGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.statsPara = widgets.NewParagraph()
	d.statsPara.Title = "Run-wide Jitter (press q to stop)"
	d.statsPara.Text = "Waiting for data..."
	d.statsPara.BorderStyle.Fg = ui.ColorCyan
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.14,
			ui.NewCol(0.7, d.summaryPara),
			ui.NewCol(0.3, d.channelGauge),
		),
		ui.NewRow(0.50,
			ui.NewCol(0.8, d.jitterPlot),
			ui.NewCol(0.2, d.windowPara),
		),
		ui.NewRow(0.36,
			ui.NewCol(0.6, d.maxSparkline),
			ui.NewCol(0.4, d.statsPara),
		),
	)
}

// SendFrame stores the latest frame; it is drawn on the next refresh.
func (d *Dashboard) SendFrame(f plot.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frame = f
	d.haveFrame = true
	return nil
}

// Close is a no-op; the terminal is restored by Stop.
func (d *Dashboard) Close() error { return nil }

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// run is the main dashboard update loop.
func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop() cancels the context once the run has wound down.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes all widget data from the latest frame and the collector.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := time.Since(d.startTime)
	stats := d.collector.Stats(elapsed)

	d.summaryPara.Text = fmt.Sprintf("%s\nElapsed: %s | Samples: %d | Dropped: %d | Rate: %.1f/s",
		formatRunParams(d.runConfig),
		elapsed.Round(time.Second),
		stats.Samples,
		stats.Dropped,
		stats.TogglesPerSec,
	)

	kept := keptPercent(stats.Samples, stats.Dropped)
	d.channelGauge.Percent = kept
	d.channelGauge.Label = fmt.Sprintf("%d%% (%d dropped)", kept, stats.Dropped)
	if kept < 100 {
		d.channelGauge.BarColor = ui.ColorRed
	}

	d.statsPara.Text = formatRunStats(stats)

	if !d.haveFrame {
		return
	}
	f := d.frame
	if series, ok := plotSeries(f); ok {
		d.jitterPlot.Data = series
		d.jitterPlot.MaxVal = float64(f.YMax)
		d.jitterPlot.Title = fmt.Sprintf("Jitter (ns) | samples %d-%d", f.XMin, f.XMax)
	}
	d.windowPara.Text = fmt.Sprintf("Max: %d ns\nAvg: %d ns\nPoints: %d", f.MaxJitter, f.MeanJitter, len(f.Points))

	d.maxHistory = pushBounded(d.maxHistory, float64(f.MaxJitter), sparklineHistory)
	d.maxSparkline.Sparklines[0].Data = d.maxHistory
	d.maxSparkline.Title = fmt.Sprintf("Max Jitter Trend | Current: %d ns", f.MaxJitter)
}

// render draws all widgets to the screen.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

// plotSeries converts a frame into the absolute-jitter series and the zero
// reference line. The line chart needs at least two points.
func plotSeries(f plot.Frame) ([][]float64, bool) {
	if len(f.Points) < 2 {
		return nil, false
	}
	jitter := make([]float64, len(f.Points))
	for i, p := range f.Points {
		jitter[i] = math.Abs(float64(p.Deviation))
	}
	zero := make([]float64, len(f.Points))
	return [][]float64{jitter, zero}, true
}

func pushBounded(history []float64, v float64, limit int) []float64 {
	history = append(history, v)
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

func keptPercent(samples int64, dropped uint64) int {
	total := float64(samples) + float64(dropped)
	if total == 0 {
		return 100
	}
	return int(float64(samples) / total * 100)
}

func formatRunStats(stats metrics.Stats) string {
	return fmt.Sprintf(
		"Max:      %d ns\nMean:     %d ns\nP50/P90:  %d / %d ns\nP99:      %d ns\nStdDev:   %.1f ns\nInterval: %d - %d ns",
		stats.MaxJitterNS,
		stats.MeanJitterNS,
		stats.P50JitterNS,
		stats.P90JitterNS,
		stats.P99JitterNS,
		stats.StdDevJitterNS,
		stats.MinIntervalNS,
		stats.MaxIntervalNS,
	)
}

// formatRunParams formats the run configuration for display.
func formatRunParams(cfg RunConfig) string {
	var parts []string

	if cfg.Pin != "" {
		parts = append(parts, fmt.Sprintf("Pin: %s", cfg.Pin))
	}
	if cfg.FrequencyHz > 0 {
		parts = append(parts, fmt.Sprintf("Freq: %d Hz (%d ns)", cfg.FrequencyHz, cfg.HalfPeriodNS))
	}
	parts = append(parts, fmt.Sprintf("CPU: %d", cfg.Core))
	if cfg.Priority > 0 {
		parts = append(parts, fmt.Sprintf("FIFO: %d", cfg.Priority))
	}
	if cfg.Duration > 0 {
		parts = append(parts, fmt.Sprintf("Duration: %s", cfg.Duration))
	}
	if cfg.LogPath != "" {
		parts = append(parts, fmt.Sprintf("Log: %s", cfg.LogPath))
	}
	if cfg.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", cfg.ConfigFile))
	}

	return strings.Join(parts, " | ")
}
