package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/gpiojitter/internal/metrics"
	"github.com/torosent/gpiojitter/internal/threshold"
)

// RunInfo describes the configuration and outcome of a run.
type RunInfo struct {
	RunID       string  `json:"run_id" yaml:"run_id"`
	Pin         string  `json:"pin" yaml:"pin"`
	FrequencyHz int     `json:"frequency_hz" yaml:"frequency_hz"`
	Core        int     `json:"cpu" yaml:"cpu"`
	Priority    int     `json:"priority" yaml:"priority"`
	Clock       string  `json:"clock" yaml:"clock"`
	OverheadNS  uint64  `json:"clock_overhead_ns" yaml:"clock_overhead_ns"`
	Toggles     uint64  `json:"toggles" yaml:"toggles"`
	WriteErrors uint64  `json:"write_errors" yaml:"write_errors"`
	LogPath     string  `json:"log_path,omitempty" yaml:"log_path,omitempty"`
	HistoryFull bool    `json:"history_full,omitempty" yaml:"history_full,omitempty"`
	DurationSec float64 `json:"duration_sec" yaml:"duration_sec"`
}

// ThresholdOutcome is the serialisable form of a threshold result.
type ThresholdOutcome struct {
	Threshold string  `json:"threshold" yaml:"threshold"`
	Actual    float64 `json:"actual" yaml:"actual"`
	Pass      bool    `json:"pass" yaml:"pass"`
}

// Report is the final machine-readable summary.
type Report struct {
	Run        RunInfo            `json:"run" yaml:"run"`
	Stats      metrics.Stats      `json:"stats" yaml:"stats"`
	Thresholds []ThresholdOutcome `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// NewReport assembles a Report.
func NewReport(run RunInfo, stats metrics.Stats, results []threshold.Result) Report {
	r := Report{Run: run, Stats: stats}
	for _, res := range results {
		r.Thresholds = append(r.Thresholds, ThresholdOutcome{
			Threshold: res.Threshold.Raw,
			Actual:    res.Actual,
			Pass:      res.Pass,
		})
	}
	return r
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, r Report) {
	stats := r.Stats
	fmt.Fprintln(w, "\n--- Jitter Results ---")
	fmt.Fprintf(w, "Run ID:            %s\n", r.Run.RunID)
	fmt.Fprintf(w, "Pin:               %s\n", r.Run.Pin)
	fmt.Fprintf(w, "Frequency:         %d Hz (half-period %d ns)\n", r.Run.FrequencyHz, stats.TargetNS)
	fmt.Fprintf(w, "Clock:             %s (overhead %d ns)\n", r.Run.Clock, r.Run.OverheadNS)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Toggles:           %d\n", r.Run.Toggles)
	fmt.Fprintf(w, "Recorded:          %d\n", stats.Samples)
	fmt.Fprintf(w, "Dropped:           %d\n", stats.Dropped)
	if r.Run.WriteErrors > 0 {
		fmt.Fprintf(w, "Pin write errors:  %d\n", r.Run.WriteErrors)
	}
	fmt.Fprintf(w, "Toggles/sec:       %.2f\n", stats.TogglesPerSec)

	fmt.Fprintln(w, "\nInterval (ns):")
	fmt.Fprintf(w, "  Min:             %d\n", stats.MinIntervalNS)
	fmt.Fprintf(w, "  Max:             %d\n", stats.MaxIntervalNS)
	fmt.Fprintf(w, "  Mean:            %d\n", stats.MeanIntervalNS)

	fmt.Fprintln(w, "\nJitter (ns):")
	fmt.Fprintf(w, "  Max:             %d\n", stats.MaxJitterNS)
	fmt.Fprintf(w, "  Mean:            %d\n", stats.MeanJitterNS)
	fmt.Fprintf(w, "  P50:             %d\n", stats.P50JitterNS)
	fmt.Fprintf(w, "  P90:             %d\n", stats.P90JitterNS)
	fmt.Fprintf(w, "  P99:             %d\n", stats.P99JitterNS)
	fmt.Fprintf(w, "  StdDev:          %.1f\n", stats.StdDevJitterNS)

	if r.Run.LogPath != "" {
		fmt.Fprintf(w, "\nLog:               %s\n", r.Run.LogPath)
	}
	if r.Run.HistoryFull {
		fmt.Fprintln(w, "History limit reached; measurement stopped early.")
	}

	if len(r.Thresholds) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		for _, t := range r.Thresholds {
			status := "✓"
			if !t.Pass {
				status = "✗"
			}
			fmt.Fprintf(w, "  %s %s (actual %.2f)\n", status, t.Threshold, t.Actual)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
