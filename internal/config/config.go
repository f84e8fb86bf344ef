package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/torosent/gpiojitter/internal/channel"
	"github.com/torosent/gpiojitter/internal/clock"
	"github.com/torosent/gpiojitter/internal/gpio"
	"github.com/torosent/gpiojitter/internal/logx"
	"github.com/torosent/gpiojitter/internal/output"
	"github.com/torosent/gpiojitter/internal/sched"
	"github.com/torosent/gpiojitter/internal/threshold"
)

const (
	DefaultFrequency       = 10
	MinFrequency           = 1
	MaxFrequency           = 10000
	DefaultCPU             = 0
	DefaultPriority        = 0
	DefaultWindow          = 100
	DefaultRefresh         = 200 * time.Millisecond
	DefaultChannelCapacity = 4096
	DefaultLogLevel        = "info"
)

type Config struct {
	FrequencyHz     int           `mapstructure:"frequency"`
	CPU             int           `mapstructure:"cpu"`
	Priority        int           `mapstructure:"priority"`
	Pin             string        `mapstructure:"pin"`
	Output          string        `mapstructure:"output"`
	LogMode         string        `mapstructure:"log_mode"`
	Plot            bool          `mapstructure:"plot"`
	Dashboard       bool          `mapstructure:"dashboard"`
	Duration        time.Duration `mapstructure:"duration"`
	Refresh         time.Duration `mapstructure:"refresh"`
	Window          int           `mapstructure:"window"`
	ChannelCapacity int           `mapstructure:"channel_capacity"`
	HistoryLimit    int           `mapstructure:"history_limit"`
	Clock           string        `mapstructure:"clock"`
	JSONOutput      bool          `mapstructure:"json_output"`
	YAMLOutput      bool          `mapstructure:"yaml_output"`
	HTMLOutput      string        `mapstructure:"html_output"`
	Thresholds      []string      `mapstructure:"thresholds"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFile         string        `mapstructure:"log_file"`
	Tracing         TracingConfig `mapstructure:"tracing"`
	ConfigFile      string        `mapstructure:"-"`
}

// TracingConfig configures OTLP span export. An empty endpoint disables
// tracing unless OTEL_EXPORTER_OTLP_ENDPOINT is set.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	ServiceName string  `mapstructure:"service_name"`
}

// Enabled reports whether an exporter endpoint is configured.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// Defaults returns the configuration used when no flag or file sets a value.
func Defaults() Config {
	return Config{
		FrequencyHz:     DefaultFrequency,
		CPU:             DefaultCPU,
		Priority:        DefaultPriority,
		Pin:             gpio.DefaultSelector,
		LogMode:         string(output.LogTruncate),
		Refresh:         DefaultRefresh,
		Window:          DefaultWindow,
		ChannelCapacity: DefaultChannelCapacity,
		Clock:           string(clock.SourceRuntime),
		LogLevel:        DefaultLogLevel,
		Tracing:         TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}
}

// HalfPeriod returns half the square-wave period in nanoseconds.
func HalfPeriod(frequencyHz int) uint64 {
	if frequencyHz <= 0 {
		frequencyHz = DefaultFrequency
	}
	return uint64(time.Second) / (2 * uint64(frequencyHz))
}

// Environment describes the host facts Normalize checks against. Nil funcs
// and a zero NumCPU are filled from the running system.
type Environment struct {
	NumCPU           int
	GnuplotAvailable func() bool
	RealtimeAllowed  func() bool
}

func (e Environment) numCPU() int {
	if e.NumCPU > 0 {
		return e.NumCPU
	}
	return runtime.NumCPU()
}

// Normalize replaces out-of-range tunables with their defaults and disables
// features the host cannot support. Each adjustment yields one warning.
func (c *Config) Normalize(env Environment) []string {
	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	if c.FrequencyHz < MinFrequency || c.FrequencyHz > MaxFrequency {
		warn("frequency %d Hz outside %d-%d, using %d Hz", c.FrequencyHz, MinFrequency, MaxFrequency, DefaultFrequency)
		c.FrequencyHz = DefaultFrequency
	}
	if n := env.numCPU(); c.CPU < 0 || c.CPU >= n {
		warn("cpu %d outside [0, %d), using core %d", c.CPU, n, DefaultCPU)
		c.CPU = DefaultCPU
	}
	if c.Priority < 0 || c.Priority > sched.MaxPriority {
		warn("priority %d outside 0-%d, real-time scheduling disabled", c.Priority, sched.MaxPriority)
		c.Priority = DefaultPriority
	}
	if c.Priority > 0 && env.RealtimeAllowed != nil && !env.RealtimeAllowed() {
		warn("priority %d requested without real-time privileges (run as root or raise RLIMIT_RTPRIO)", c.Priority)
	}
	if c.Plot && env.GnuplotAvailable != nil && !env.GnuplotAvailable() {
		warn("gnuplot not found in PATH, plotting disabled")
		c.Plot = false
	}
	if c.Refresh <= 0 {
		warn("refresh %s must be positive, using %s", c.Refresh, DefaultRefresh)
		c.Refresh = DefaultRefresh
	}
	if c.Window <= 0 {
		warn("window %d must be positive, using %d", c.Window, DefaultWindow)
		c.Window = DefaultWindow
	}
	if c.ChannelCapacity <= 0 {
		warn("channel capacity %d must be positive, using %d", c.ChannelCapacity, DefaultChannelCapacity)
		c.ChannelCapacity = DefaultChannelCapacity
	} else if rounded := channel.RoundCapacity(c.ChannelCapacity); rounded != c.ChannelCapacity {
		warn("channel capacity %d is not a power of two, using %d", c.ChannelCapacity, rounded)
		c.ChannelCapacity = rounded
	}
	if !logx.ValidLevel(c.LogLevel) {
		warn("unknown log level %q, using %s", c.LogLevel, DefaultLogLevel)
		c.LogLevel = DefaultLogLevel
	}
	return warnings
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate reports the settings no default can repair.
func (c Config) Validate() error {
	var issues []string

	if _, err := gpio.ParseSelector(c.Pin); err != nil {
		issues = append(issues, fmt.Sprintf("pin: %v", err))
	}
	if len(c.Output) > output.MaxPathLen {
		issues = append(issues, fmt.Sprintf("output path longer than %d bytes", output.MaxPathLen))
	}
	switch output.LogMode(strings.ToLower(c.LogMode)) {
	case output.LogTruncate, output.LogAppend:
	default:
		issues = append(issues, fmt.Sprintf("log-mode must be %q or %q, got %q", output.LogTruncate, output.LogAppend, c.LogMode))
	}
	switch clock.Source(strings.ToLower(c.Clock)) {
	case clock.SourceRuntime, clock.SourceRaw:
	default:
		issues = append(issues, fmt.Sprintf("clock must be %q or %q, got %q", clock.SourceRuntime, clock.SourceRaw, c.Clock))
	}
	if c.Duration < 0 {
		issues = append(issues, "duration must be >= 0")
	}
	if c.HistoryLimit < 0 {
		issues = append(issues, "history-limit must be >= 0")
	}
	if c.JSONOutput && c.YAMLOutput {
		issues = append(issues, "json-output and yaml-output are mutually exclusive")
	}
	if c.Dashboard && (c.JSONOutput || c.YAMLOutput) {
		issues = append(issues, "dashboard and json-output/yaml-output are mutually exclusive")
	}
	if _, err := threshold.ParseMultiple(c.Thresholds); err != nil {
		issues = append(issues, fmt.Sprintf("thresholds: %v", err))
	}
	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTracing(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing protocol must be \"grpc\" or \"http\", got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing sample-rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
