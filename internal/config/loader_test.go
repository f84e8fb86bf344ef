package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		input interface{}
		want  string
	}{
		{"hello", "hello"},
		{123, "123"},
		{true, "true"},
		{nil, ""},
		{[]byte("bytes"), "bytes"},
	}

	for _, tt := range tests {
		got, err := asString(tt.input)
		if err != nil {
			t.Errorf("asString(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asString(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		input   interface{}
		want    int
		wantErr bool
	}{
		{123, 123, false},
		{" 456 ", 456, false},
		{int64(789), 789, false},
		{float64(4096), 4096, false},
		{nil, 0, false},
		{10.5, 0, true},
		{"ten", 0, true},
		{[]interface{}{1}, 0, true},
	}

	for _, tt := range tests {
		got, err := asInt(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("asInt(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("asInt(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestAsBool(t *testing.T) {
	tests := []struct {
		input interface{}
		want  bool
	}{
		{true, true},
		{"true", true},
		{"1", true},
		{false, false},
		{"false", false},
		{"0", false},
		{nil, false},
	}

	for _, tt := range tests {
		got, err := asBool(tt.input)
		if err != nil {
			t.Errorf("asBool(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asBool(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{time.Second, time.Second},
		{"1m", time.Minute},
		{10, 10 * time.Second}, // int treated as seconds
		{0.5, 500 * time.Millisecond},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsFloat64(t *testing.T) {
	tests := []struct {
		input interface{}
		want  float64
	}{
		{0.25, 0.25},
		{1, 1},
		{int64(2), 2},
		{"0.5", 0.5},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asFloat64(tt.input)
		if err != nil {
			t.Errorf("asFloat64(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asFloat64(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsStringSlice(t *testing.T) {
	got, err := asStringSlice([]interface{}{"jitter:p99 < 100", "dropped:count == 0"})
	if err != nil {
		t.Fatalf("asStringSlice() error = %v", err)
	}
	if len(got) != 2 || got[1] != "dropped:count == 0" {
		t.Errorf("asStringSlice() = %v", got)
	}

	single, err := asStringSlice("jitter:max < 5")
	if err != nil || len(single) != 1 {
		t.Errorf("asStringSlice(string) = %v, %v", single, err)
	}

	if _, err := asStringSlice(42); err == nil {
		t.Error("asStringSlice(int) should fail")
	}
}

func TestApplyConfigSettings(t *testing.T) {
	cfg := Defaults()
	settings := map[string]interface{}{
		"frequency":        500,
		"cpu":              "2",
		"pin":              " gpiochip0:4 ",
		"channel_capacity": 1024,
		"logmode":          "append",
		"refresh":          "50ms",
		"plot":             "true",
		"thresholds":       []interface{}{"jitter:p99 < 20000"},
		"tracing": map[string]interface{}{
			"endpoint":    "collector:4317",
			"sample_rate": 0.25,
			"insecure":    true,
		},
	}

	if err := applyConfigSettings(&cfg, settings); err != nil {
		t.Fatalf("applyConfigSettings() error = %v", err)
	}

	if cfg.FrequencyHz != 500 {
		t.Errorf("FrequencyHz = %d, want 500", cfg.FrequencyHz)
	}
	if cfg.CPU != 2 {
		t.Errorf("CPU = %d, want 2", cfg.CPU)
	}
	if cfg.Pin != "gpiochip0:4" {
		t.Errorf("Pin = %q, want gpiochip0:4", cfg.Pin)
	}
	if cfg.ChannelCapacity != 1024 {
		t.Errorf("ChannelCapacity = %d, want 1024", cfg.ChannelCapacity)
	}
	if cfg.LogMode != "append" {
		t.Errorf("LogMode = %q, want append", cfg.LogMode)
	}
	if cfg.Refresh != 50*time.Millisecond {
		t.Errorf("Refresh = %v, want 50ms", cfg.Refresh)
	}
	if !cfg.Plot {
		t.Error("Plot = false, want true")
	}
	if len(cfg.Thresholds) != 1 {
		t.Errorf("Thresholds = %v", cfg.Thresholds)
	}
	if cfg.Tracing.Endpoint != "collector:4317" || cfg.Tracing.SampleRate != 0.25 || !cfg.Tracing.Insecure {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if cfg.Tracing.Protocol != "grpc" {
		t.Errorf("Tracing.Protocol = %q, want default grpc", cfg.Tracing.Protocol)
	}
}

func TestApplyConfigSettingsRejectsBadTypes(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]interface{}
	}{
		{"frequency", map[string]interface{}{"frequency": "fast"}},
		{"plot", map[string]interface{}{"plot": "maybe"}},
		{"refresh", map[string]interface{}{"refresh": "soon"}},
		{"tracing", map[string]interface{}{"tracing": "collector:4317"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			if err := applyConfigSettings(&cfg, tt.settings); err == nil {
				t.Fatal("applyConfigSettings() error = nil, want error")
			}
		})
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := Defaults()
	cfg.FrequencyHz = 250
	cfg.Window = 40

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)

	args := []string{
		"--frequency=1000",
		"--pin=sim",
		"--plot",
		"--refresh=1s",
		"--threshold=jitter:max < 100",
		"--tracing-sample-rate=0.1",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if err := applyFlagOverrides(&cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}

	if cfg.FrequencyHz != 1000 {
		t.Errorf("FrequencyHz = %d, want 1000", cfg.FrequencyHz)
	}
	if cfg.Window != 40 {
		t.Errorf("Window = %d, want 40 (unchanged flags must not override)", cfg.Window)
	}
	if cfg.Pin != "sim" {
		t.Errorf("Pin = %q, want sim", cfg.Pin)
	}
	if !cfg.Plot {
		t.Error("Plot = false, want true")
	}
	if cfg.Refresh != time.Second {
		t.Errorf("Refresh = %v, want 1s", cfg.Refresh)
	}
	if len(cfg.Thresholds) != 1 || cfg.Thresholds[0] != "jitter:max < 100" {
		t.Errorf("Thresholds = %v", cfg.Thresholds)
	}
	if cfg.Tracing.SampleRate != 0.1 {
		t.Errorf("Tracing.SampleRate = %v, want 0.1", cfg.Tracing.SampleRate)
	}
}
