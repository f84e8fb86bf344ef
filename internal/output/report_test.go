package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/gpiojitter/internal/metrics"
	"github.com/torosent/gpiojitter/internal/threshold"
)

func sampleReport() Report {
	stats := metrics.Stats{
		Samples:        200,
		Dropped:        3,
		TargetNS:       50_000_000,
		MinIntervalNS:  49_990_000,
		MaxIntervalNS:  50_020_000,
		MeanIntervalNS: 50_000_100,
		MaxJitterNS:    20_000,
		MeanJitterNS:   150,
		P50JitterNS:    100,
		P90JitterNS:    400,
		P99JitterNS:    9_000,
		Duration:       10 * time.Second,
		DurationMs:     10_000,
		TogglesPerSec:  20,
	}
	results := []threshold.Result{
		{Threshold: threshold.Threshold{Raw: "jitter:p99 < 10000"}, Actual: 9000, Pass: true},
		{Threshold: threshold.Threshold{Raw: "dropped:count == 0"}, Actual: 3, Pass: false},
	}
	return NewReport(RunInfo{
		RunID:       "01HZX0000000000000000000",
		Pin:         "gpiochip4:17",
		FrequencyHz: 10,
		Clock:       "runtime",
		OverheadNS:  42,
		Toggles:     203,
		LogPath:     "jitter.csv",
	}, stats, results)
}

func TestPrintReportBasic(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, sampleReport())

	output := buf.String()
	for _, want := range []string{
		"Jitter Results",
		"gpiochip4:17",
		"10 Hz (half-period 50000000 ns)",
		"Recorded:          200",
		"Dropped:           3",
		"P99:             9000",
		"Log:               jitter.csv",
		"✓ jitter:p99 < 10000",
		"✗ dropped:count == 0",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("report missing %q\n%s", want, output)
		}
	}
	if strings.Contains(output, "Pin write errors") {
		t.Errorf("write errors shown although there were none")
	}
}

func TestPrintJSONReport(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, sampleReport()); err != nil {
		t.Fatalf("PrintJSONReport failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	stats, ok := decoded["stats"].(map[string]any)
	if !ok {
		t.Fatalf("stats section missing: %v", decoded)
	}
	if stats["p99_jitter_ns"] != float64(9000) {
		t.Errorf("p99_jitter_ns = %v", stats["p99_jitter_ns"])
	}
	if _, ok := stats["Duration"]; ok {
		t.Errorf("raw Duration must not be serialised")
	}
	thresholds, _ := decoded["thresholds"].([]any)
	if len(thresholds) != 2 {
		t.Errorf("thresholds = %v, want 2 entries", decoded["thresholds"])
	}
}

func TestPrintYAMLReport(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintYAMLReport(&buf, sampleReport()); err != nil {
		t.Fatalf("PrintYAMLReport failed: %v", err)
	}

	var decoded Report
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if decoded.Run.Pin != "gpiochip4:17" || decoded.Stats.MaxJitterNS != 20_000 {
		t.Errorf("decoded report = %+v", decoded)
	}
	if !strings.Contains(buf.String(), "clock_overhead_ns: 42") {
		t.Errorf("yaml missing clock_overhead_ns:\n%s", buf.String())
	}
}
