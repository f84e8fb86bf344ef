package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gpiojitter",
		Short:         "Toggle a GPIO line as a square wave and measure interval jitter",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	d := Defaults()

	// Signal flags
	flags.IntP("frequency", "f", d.FrequencyHz, fmt.Sprintf("Square-wave frequency in Hz (%d-%d)", MinFrequency, MaxFrequency))
	flags.IntP("cpu", "c", d.CPU, "CPU core the generator thread is pinned to")
	flags.Int("priority", d.Priority, "SCHED_FIFO priority for the generator thread (0 disables real-time scheduling)")
	flags.String("pin", d.Pin, "GPIO line as chip:line (e.g. gpiochip4:17), or 'sim' for an in-memory pin")
	flags.String("clock", d.Clock, "Clock source: 'runtime' or 'raw' (CLOCK_MONOTONIC_RAW)")
	flags.DurationP("duration", "d", 0, "Stop automatically after this long (0 runs until interrupted)")

	// Pipeline flags
	flags.Duration("refresh", d.Refresh, "Aggregator refresh period")
	flags.Int("window", d.Window, "Number of recent samples in the live window")
	flags.Int("channel-capacity", d.ChannelCapacity, "Measurement channel capacity (rounded up to a power of two)")
	flags.Int("history-limit", 0, "Maximum samples kept in memory (0 means unlimited)")

	// Output flags
	flags.StringP("output", "o", "", "Write 'sequence,interval_ns' lines to this file ('auto' for a timestamped name)")
	flags.String("log-mode", d.LogMode, "Log file mode: 'truncate' or 'append'")
	flags.BoolP("plot", "p", false, "Stream a live plot to gnuplot")
	flags.Bool("dashboard", false, "Show live terminal dashboard")
	flags.Bool("json-output", false, "Emit JSON formatted report")
	flags.Bool("yaml-output", false, "Emit YAML formatted report")
	flags.String("html-output", "", "Generate HTML report to the specified file path")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")

	// Diagnostics flags
	flags.String("log-level", d.LogLevel, "Log level: debug, info, warn or error")
	flags.String("log-file", "", "Also write JSON logs to this file")

	// Threshold flags
	flags.StringSlice("threshold", nil, "Pass/fail thresholds (repeatable, e.g., 'jitter:p99 < 20000')")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (host:port)")
	flags.String("tracing-protocol", d.Tracing.Protocol, "OTLP protocol: 'grpc' or 'http'")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", d.Tracing.SampleRate, "Trace sample rate between 0.0 and 1.0")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\n%s\n\nFlags:\n", cmd.UseLine(), cmd.Short)
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	ints := []struct {
		name string
		dst  *int
	}{
		{"frequency", &cfg.FrequencyHz},
		{"cpu", &cfg.CPU},
		{"priority", &cfg.Priority},
		{"window", &cfg.Window},
		{"channel-capacity", &cfg.ChannelCapacity},
		{"history-limit", &cfg.HistoryLimit},
	}
	for _, f := range ints {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetInt(f.name)
		if err != nil {
			return err
		}
		*f.dst = val
	}

	strs := []struct {
		name string
		dst  *string
	}{
		{"pin", &cfg.Pin},
		{"clock", &cfg.Clock},
		{"output", &cfg.Output},
		{"log-mode", &cfg.LogMode},
		{"html-output", &cfg.HTMLOutput},
		{"metrics-addr", &cfg.MetricsAddr},
		{"log-level", &cfg.LogLevel},
		{"log-file", &cfg.LogFile},
		{"tracing-endpoint", &cfg.Tracing.Endpoint},
		{"tracing-protocol", &cfg.Tracing.Protocol},
	}
	for _, f := range strs {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetString(f.name)
		if err != nil {
			return err
		}
		*f.dst = strings.TrimSpace(val)
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"plot", &cfg.Plot},
		{"dashboard", &cfg.Dashboard},
		{"json-output", &cfg.JSONOutput},
		{"yaml-output", &cfg.YAMLOutput},
		{"tracing-insecure", &cfg.Tracing.Insecure},
	}
	for _, f := range bools {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetBool(f.name)
		if err != nil {
			return err
		}
		*f.dst = val
	}

	if fs.Changed("duration") {
		val, err := fs.GetDuration("duration")
		if err != nil {
			return err
		}
		cfg.Duration = val
	}
	if fs.Changed("refresh") {
		val, err := fs.GetDuration("refresh")
		if err != nil {
			return err
		}
		cfg.Refresh = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	return nil
}
