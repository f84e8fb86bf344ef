package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/torosent/gpiojitter/internal/logx"
	"github.com/torosent/gpiojitter/internal/plot"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestExporterReflectsFrames(t *testing.T) {
	e := NewExporter("gpiochip4:17", 50_000)

	if err := e.SendFrame(plot.Frame{MaxJitter: 1234, MeanJitter: 56, Samples: 789, Dropped: 3}); err != nil {
		t.Fatalf("SendFrame() error = %v", err)
	}
	_ = e.SendFrame(plot.Frame{MaxJitter: 1500, MeanJitter: 60, Samples: 800, Dropped: 3})

	body := scrape(t, e.Handler())
	for _, want := range []string{
		"gpiojitter_window_max_jitter_nanoseconds 1500",
		"gpiojitter_window_mean_jitter_nanoseconds 60",
		"gpiojitter_recorded_samples 800",
		"gpiojitter_dropped_samples 3",
		"gpiojitter_frames_total 2",
		"gpiojitter_window_max_jitter_seconds_count 2",
		`gpiojitter_run_info{half_period_ns="50000",pin="gpiochip4:17"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q\n%s", want, body)
		}
	}
}

func TestExportersAreIndependent(t *testing.T) {
	a := NewExporter("sim", 1)
	b := NewExporter("sim", 1)
	_ = a.SendFrame(plot.Frame{Samples: 10})

	if !strings.Contains(scrape(t, b.Handler()), "gpiojitter_recorded_samples 0") {
		t.Errorf("exporters share state")
	}
}

func TestServe(t *testing.T) {
	e := NewExporter("sim", 1)
	_ = e.SendFrame(plot.Frame{Samples: 42})

	srv, err := Serve("127.0.0.1:0", e, logx.Nop())
	if err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "gpiojitter_recorded_samples 42") {
		t.Errorf("served metrics missing samples:\n%s", body)
	}
}
