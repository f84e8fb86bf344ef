package metrics_test

import (
	"testing"

	"github.com/torosent/gpiojitter/internal/metrics"
)

func TestWindowReferenceComputation(t *testing.T) {
	intervals := []uint64{100, 105, 95, 110, 90}
	records := make([]metrics.Measurement, len(intervals))
	for i, iv := range intervals {
		records[i] = metrics.Measurement{Sequence: uint64(40 + i), IntervalNS: iv}
	}

	ws := metrics.Window(records, 100)

	if ws.Count != 5 {
		t.Errorf("Count = %d, want 5", ws.Count)
	}
	if ws.MaxJitter != 10 {
		t.Errorf("MaxJitter = %d, want 10", ws.MaxJitter)
	}
	if ws.MeanJitter != 6 {
		t.Errorf("MeanJitter = %d, want 6", ws.MeanJitter)
	}
	if ws.FirstSequence != 40 || ws.LastSequence != 44 {
		t.Errorf("sequence range = [%d:%d], want [40:44]", ws.FirstSequence, ws.LastSequence)
	}

	wantDeviation := []int64{0, 5, -5, 10, -10}
	for i, p := range ws.Points {
		if p.Deviation != wantDeviation[i] {
			t.Errorf("Points[%d].Deviation = %d, want %d", i, p.Deviation, wantDeviation[i])
		}
		if p.Sequence != uint64(40+i) {
			t.Errorf("Points[%d].Sequence = %d, want %d", i, p.Sequence, 40+i)
		}
	}
}

func TestWindowEmpty(t *testing.T) {
	ws := metrics.Window(nil, 100)
	if ws.Count != 0 || ws.MaxJitter != 0 || len(ws.Points) != 0 {
		t.Errorf("expected empty window, got %+v", ws)
	}
}

func TestMeasurementJitter(t *testing.T) {
	tests := []struct {
		interval uint64
		target   uint64
		jitter   uint64
		dev      int64
	}{
		{100, 100, 0, 0},
		{150, 100, 50, 50},
		{40, 100, 60, -60},
		{0, 50_000, 50_000, -50_000},
	}
	for _, tt := range tests {
		m := metrics.Measurement{IntervalNS: tt.interval}
		if got := m.Jitter(tt.target); got != tt.jitter {
			t.Errorf("Jitter(%d, %d) = %d, want %d", tt.interval, tt.target, got, tt.jitter)
		}
		if got := m.Deviation(tt.target); got != tt.dev {
			t.Errorf("Deviation(%d, %d) = %d, want %d", tt.interval, tt.target, got, tt.dev)
		}
	}
}
