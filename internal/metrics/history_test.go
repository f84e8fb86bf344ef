package metrics_test

import (
	"errors"
	"testing"

	"github.com/torosent/gpiojitter/internal/metrics"
)

func TestHistoryGrowthPreservesRecords(t *testing.T) {
	h := metrics.NewHistory(0)
	for i := 0; i < 1024; i++ {
		if err := h.Append(metrics.Measurement{Sequence: uint64(i), IntervalNS: uint64(i) * 3}); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}
	if h.Cap() != 1024 {
		t.Fatalf("Cap() = %d, want 1024", h.Cap())
	}

	if err := h.Append(metrics.Measurement{Sequence: 1024, IntervalNS: 1024 * 3}); err != nil {
		t.Fatalf("Append(1024) error = %v", err)
	}
	if h.Cap() != 2048 {
		t.Fatalf("Cap() after growth = %d, want 2048", h.Cap())
	}

	for i, m := range h.Records() {
		if m.Sequence != uint64(i) || m.IntervalNS != uint64(i)*3 {
			t.Fatalf("record %d = %+v, lost during growth", i, m)
		}
	}
}

func TestHistoryLimit(t *testing.T) {
	h := metrics.NewHistory(1500)
	for i := 0; i < 1500; i++ {
		if err := h.Append(metrics.Measurement{Sequence: uint64(i)}); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}
	if h.Cap() != 1500 {
		t.Errorf("Cap() = %d, want growth clamped to 1500", h.Cap())
	}

	err := h.Append(metrics.Measurement{Sequence: 1500})
	if !errors.Is(err, metrics.ErrHistoryFull) {
		t.Fatalf("Append() error = %v, want ErrHistoryFull", err)
	}
	if h.Len() != 1500 {
		t.Errorf("Len() = %d, want 1500 after rejected append", h.Len())
	}
}

func TestHistoryTail(t *testing.T) {
	h := metrics.NewHistory(0)
	for i := 0; i < 10; i++ {
		_ = h.Append(metrics.Measurement{Sequence: uint64(i)})
	}

	tests := []struct {
		name      string
		n         int
		wantLen   int
		wantFirst uint64
	}{
		{"zero", 0, 0, 0},
		{"partial", 3, 3, 7},
		{"exact", 10, 10, 0},
		{"larger than history", 100, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tail := h.Tail(tt.n)
			if len(tail) != tt.wantLen {
				t.Fatalf("len(Tail(%d)) = %d, want %d", tt.n, len(tail), tt.wantLen)
			}
			if tt.wantLen > 0 && tail[0].Sequence != tt.wantFirst {
				t.Errorf("Tail(%d)[0].Sequence = %d, want %d", tt.n, tail[0].Sequence, tt.wantFirst)
			}
		})
	}
}
