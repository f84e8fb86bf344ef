package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torosent/gpiojitter/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.NewLoader().Load([]string{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.FrequencyHz != 10 {
		t.Errorf("FrequencyHz = %d, want 10", cfg.FrequencyHz)
	}
	if cfg.CPU != 0 || cfg.Priority != 0 {
		t.Errorf("CPU/Priority = %d/%d, want 0/0", cfg.CPU, cfg.Priority)
	}
	if cfg.Pin != "gpiochip4:17" {
		t.Errorf("Pin = %q, want gpiochip4:17", cfg.Pin)
	}
	if cfg.LogMode != "truncate" {
		t.Errorf("LogMode = %q, want truncate", cfg.LogMode)
	}
	if cfg.Refresh != 200*time.Millisecond {
		t.Errorf("Refresh = %v, want 200ms", cfg.Refresh)
	}
	if cfg.Window != 100 {
		t.Errorf("Window = %d, want 100", cfg.Window)
	}
	if cfg.ChannelCapacity != 4096 {
		t.Errorf("ChannelCapacity = %d, want 4096", cfg.ChannelCapacity)
	}
	if cfg.Clock != "runtime" {
		t.Errorf("Clock = %q, want runtime", cfg.Clock)
	}
	if cfg.Plot || cfg.Dashboard || cfg.JSONOutput {
		t.Error("output toggles should default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults error = %v", err)
	}
}

func TestLoadShortFlags(t *testing.T) {
	cfg, err := config.NewLoader().Load([]string{"-f", "1000", "-c", "1", "-o", "auto", "-p", "-d", "30s"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.FrequencyHz != 1000 {
		t.Errorf("FrequencyHz = %d, want 1000", cfg.FrequencyHz)
	}
	if cfg.CPU != 1 {
		t.Errorf("CPU = %d, want 1", cfg.CPU)
	}
	if cfg.Output != "auto" {
		t.Errorf("Output = %q, want auto", cfg.Output)
	}
	if !cfg.Plot {
		t.Error("Plot = false, want true")
	}
	if cfg.Duration != 30*time.Second {
		t.Errorf("Duration = %v, want 30s", cfg.Duration)
	}
}

func TestLoadHelp(t *testing.T) {
	_, err := config.NewLoader().Load([]string{"--help"})
	if !errors.Is(err, config.ErrHelpRequested) {
		t.Fatalf("Load(--help) error = %v, want ErrHelpRequested", err)
	}
}

func TestLoadRejectsPositionalArgs(t *testing.T) {
	if _, err := config.NewLoader().Load([]string{"extra"}); err == nil {
		t.Fatal("Load() with positional argument should fail")
	}
}

func TestLoadConfigFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gpiojitter.yaml")
	if err := os.WriteFile(path, []byte(`
frequency: 500
cpu: 1
pin: sim
output: run.csv
log_mode: append
refresh: 100ms
window: 50
history_limit: 100000
thresholds:
  - "jitter:p99 < 20000"
  - "dropped:count == 0"
tracing:
  endpoint: localhost:4317
  protocol: http
  sample_rate: 0.5
`), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config", path, "--window", "25"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
	if cfg.FrequencyHz != 500 {
		t.Errorf("FrequencyHz = %d, want 500", cfg.FrequencyHz)
	}
	if cfg.Pin != "sim" {
		t.Errorf("Pin = %q, want sim", cfg.Pin)
	}
	if cfg.Output != "run.csv" || cfg.LogMode != "append" {
		t.Errorf("Output/LogMode = %q/%q", cfg.Output, cfg.LogMode)
	}
	if cfg.Refresh != 100*time.Millisecond {
		t.Errorf("Refresh = %v, want 100ms", cfg.Refresh)
	}
	if cfg.Window != 25 {
		t.Errorf("Window = %d, want 25 (flag overrides file)", cfg.Window)
	}
	if cfg.HistoryLimit != 100000 {
		t.Errorf("HistoryLimit = %d, want 100000", cfg.HistoryLimit)
	}
	if len(cfg.Thresholds) != 2 {
		t.Errorf("Thresholds = %v, want 2 entries", cfg.Thresholds)
	}
	if !cfg.Tracing.Enabled() || cfg.Tracing.Protocol != "http" || cfg.Tracing.SampleRate != 0.5 {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfigFileJSONAndTOML(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"config.json", `{"frequency": 2000, "channelCapacity": 512, "jsonOutput": true}`},
		{"config.toml", "frequency = 2000\nchannel_capacity = 512\njson_output = true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.name)
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			cfg, err := config.NewLoader().Load([]string{"--config", path})
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.FrequencyHz != 2000 {
				t.Errorf("FrequencyHz = %d, want 2000", cfg.FrequencyHz)
			}
			if cfg.ChannelCapacity != 512 {
				t.Errorf("ChannelCapacity = %d, want 512", cfg.ChannelCapacity)
			}
			if !cfg.JSONOutput {
				t.Error("JSONOutput = false, want true")
			}
		})
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := config.NewLoader().Load([]string{"--config", path}); err == nil {
		t.Fatal("Load() with missing config file should fail")
	}
}

func TestHalfPeriod(t *testing.T) {
	tests := []struct {
		hz   int
		want uint64
	}{
		{1, 500_000_000},
		{10, 50_000_000},
		{1000, 500_000},
		{10000, 50_000},
		{3, 166_666_666},
		{7, 71_428_571},
		{0, 50_000_000},
	}
	for _, tt := range tests {
		if got := config.HalfPeriod(tt.hz); got != tt.want {
			t.Errorf("HalfPeriod(%d) = %d, want %d", tt.hz, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	yes := func() bool { return true }
	no := func() bool { return false }

	tests := []struct {
		name   string
		mutate func(*config.Config)
		env    config.Environment
		check  func(*testing.T, config.Config)
		warns  int
	}{
		{
			name:   "defaults untouched",
			mutate: func(*config.Config) {},
			env:    config.Environment{NumCPU: 4, GnuplotAvailable: yes, RealtimeAllowed: yes},
			warns:  0,
		},
		{
			name:   "frequency too high",
			mutate: func(c *config.Config) { c.FrequencyHz = 20000 },
			env:    config.Environment{NumCPU: 4},
			check: func(t *testing.T, c config.Config) {
				if c.FrequencyHz != config.DefaultFrequency {
					t.Errorf("FrequencyHz = %d", c.FrequencyHz)
				}
			},
			warns: 1,
		},
		{
			name:   "frequency zero",
			mutate: func(c *config.Config) { c.FrequencyHz = 0 },
			env:    config.Environment{NumCPU: 4},
			warns:  1,
		},
		{
			name:   "cpu beyond host",
			mutate: func(c *config.Config) { c.CPU = 4 },
			env:    config.Environment{NumCPU: 4},
			check: func(t *testing.T, c config.Config) {
				if c.CPU != 0 {
					t.Errorf("CPU = %d, want 0", c.CPU)
				}
			},
			warns: 1,
		},
		{
			name:   "priority out of range",
			mutate: func(c *config.Config) { c.Priority = 120 },
			env:    config.Environment{NumCPU: 4, RealtimeAllowed: yes},
			check: func(t *testing.T, c config.Config) {
				if c.Priority != 0 {
					t.Errorf("Priority = %d, want 0", c.Priority)
				}
			},
			warns: 1,
		},
		{
			name:   "priority without privileges",
			mutate: func(c *config.Config) { c.Priority = 80 },
			env:    config.Environment{NumCPU: 4, RealtimeAllowed: no},
			check: func(t *testing.T, c config.Config) {
				if c.Priority != 80 {
					t.Errorf("Priority = %d, want 80 kept", c.Priority)
				}
			},
			warns: 1,
		},
		{
			name:   "plot without gnuplot",
			mutate: func(c *config.Config) { c.Plot = true },
			env:    config.Environment{NumCPU: 4, GnuplotAvailable: no},
			check: func(t *testing.T, c config.Config) {
				if c.Plot {
					t.Error("Plot should be disabled")
				}
			},
			warns: 1,
		},
		{
			name: "pipeline tunables",
			mutate: func(c *config.Config) {
				c.Refresh = 0
				c.Window = -1
				c.ChannelCapacity = 1000
			},
			env: config.Environment{NumCPU: 4},
			check: func(t *testing.T, c config.Config) {
				if c.Refresh != config.DefaultRefresh || c.Window != config.DefaultWindow {
					t.Errorf("Refresh/Window = %v/%d", c.Refresh, c.Window)
				}
				if c.ChannelCapacity != 1024 {
					t.Errorf("ChannelCapacity = %d, want 1024", c.ChannelCapacity)
				}
			},
			warns: 3,
		},
		{
			name:   "log level",
			mutate: func(c *config.Config) { c.LogLevel = "loud" },
			env:    config.Environment{NumCPU: 4},
			check: func(t *testing.T, c config.Config) {
				if c.LogLevel != "info" {
					t.Errorf("LogLevel = %q, want info", c.LogLevel)
				}
			},
			warns: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(&cfg)
			warnings := cfg.Normalize(tt.env)
			if len(warnings) != tt.warns {
				t.Fatalf("Normalize() warnings = %q, want %d", warnings, tt.warns)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"malformed pin", func(c *config.Config) { c.Pin = "gpio17" }, "pin"},
		{"long output", func(c *config.Config) { c.Output = strings.Repeat("a", 4096) }, "output path"},
		{"log mode", func(c *config.Config) { c.LogMode = "rotate" }, "log-mode"},
		{"clock", func(c *config.Config) { c.Clock = "tsc" }, "clock"},
		{"duration", func(c *config.Config) { c.Duration = -time.Second }, "duration"},
		{"history limit", func(c *config.Config) { c.HistoryLimit = -1 }, "history-limit"},
		{"json and yaml", func(c *config.Config) { c.JSONOutput, c.YAMLOutput = true, true }, "mutually exclusive"},
		{"dashboard and json", func(c *config.Config) { c.Dashboard, c.JSONOutput = true, true }, "dashboard"},
		{"threshold", func(c *config.Config) { c.Thresholds = []string{"jitter:p99 <<< 5"} }, "thresholds"},
		{"tracing protocol", func(c *config.Config) { c.Tracing.Protocol = "thrift" }, "tracing protocol"},
		{"tracing sample rate", func(c *config.Config) { c.Tracing.SampleRate = 2 }, "sample-rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			var verr config.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error type = %T, want ValidationError", err)
			}
			if len(verr.Issues()) != 1 {
				t.Errorf("Issues() = %q, want exactly one", verr.Issues())
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.want)
			}
		})
	}
}

func TestValidateAggregatesIssues(t *testing.T) {
	cfg := config.Defaults()
	cfg.Pin = ""
	cfg.Clock = "bogus"
	cfg.HistoryLimit = -5

	var verr config.ValidationError
	if err := cfg.Validate(); !errors.As(err, &verr) {
		t.Fatalf("Validate() error = %v, want ValidationError", err)
	}
	if len(verr.Issues()) != 3 {
		t.Errorf("Issues() = %q, want 3", verr.Issues())
	}
}

func TestValidateAcceptsSimulatedPin(t *testing.T) {
	cfg := config.Defaults()
	cfg.Pin = "SIM"
	cfg.LogMode = "Append"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
