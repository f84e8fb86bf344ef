// Package telemetry exports live jitter figures as Prometheus metrics. The
// exporter is a plot sink: every frame the aggregator publishes updates the
// gauges.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/torosent/gpiojitter/internal/logx"
	"github.com/torosent/gpiojitter/internal/plot"
)

const namespace = "gpiojitter"

// Exporter holds the collectors for one run.
type Exporter struct {
	registry *prometheus.Registry

	windowMax   prometheus.Gauge
	windowMean  prometheus.Gauge
	samples     prometheus.Gauge
	dropped     prometheus.Gauge
	frames      prometheus.Counter
	maxObserved prometheus.Histogram
}

var _ plot.Sink = (*Exporter)(nil)

// NewExporter registers the run collectors on a private registry. targetNS
// and pin are exported as an info metric.
func NewExporter(pin string, targetNS uint64) *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		windowMax: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_max_jitter_nanoseconds",
			Help:      "Largest absolute jitter in the current plot window",
		}),
		windowMean: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_mean_jitter_nanoseconds",
			Help:      "Mean absolute jitter in the current plot window",
		}),
		samples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recorded_samples",
			Help:      "Measurements recorded so far in this run",
		}),
		dropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dropped_samples",
			Help:      "Measurements lost to channel overflow in this run",
		}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Window frames published by the aggregator",
		}),
		maxObserved: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "window_max_jitter_seconds",
			Help:      "Distribution of per-window maximum jitter",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
	}
	info := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "run_info",
		Help:        "Static run parameters",
		ConstLabels: prometheus.Labels{"pin": pin, "half_period_ns": fmt.Sprint(targetNS)},
	})
	info.Set(1)

	e.registry.MustRegister(e.windowMax, e.windowMean, e.samples, e.dropped, e.frames, e.maxObserved, info)
	return e
}

// SendFrame updates the gauges from f.
func (e *Exporter) SendFrame(f plot.Frame) error {
	e.windowMax.Set(float64(f.MaxJitter))
	e.windowMean.Set(float64(f.MeanJitter))
	e.samples.Set(float64(f.Samples))
	e.dropped.Set(float64(f.Dropped))
	e.frames.Inc()
	e.maxObserved.Observe(time.Duration(f.MaxJitter).Seconds())
	return nil
}

// Close keeps the last values in place so a final scrape still sees them.
func (e *Exporter) Close() error { return nil }

// Handler returns an HTTP handler exposing the run metrics.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Server serves /metrics for an Exporter.
type Server struct {
	srv *http.Server
	ln  net.Listener
	log logx.Logger
}

// Serve starts listening on addr and serves the exporter in the background.
func Serve(addr string, e *Exporter, log logx.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())

	s := &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
		log: log.With(logx.String("comp", "telemetry")),
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server stopped", logx.Err(err))
		}
	}()
	s.log.Info("serving metrics", logx.String("addr", ln.Addr().String()))
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
