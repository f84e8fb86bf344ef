package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector accumulates run-wide jitter statistics in a thread-safe manner.
type Collector struct {
	mu          sync.Mutex
	hist        *hdrhistogram.Histogram
	target      uint64
	samples     int64
	dropped     uint64
	minInterval uint64
	maxInterval uint64
	sumInterval uint64
	maxJitter   uint64
	sumJitter   uint64
	start       time.Time
}

// Stats represents aggregated jitter metrics for a run.
type Stats struct {
	Samples        int64         `json:"samples" yaml:"samples"`
	Dropped        uint64        `json:"dropped" yaml:"dropped"`
	TargetNS       uint64        `json:"target_ns" yaml:"target_ns"`
	MinIntervalNS  uint64        `json:"min_interval_ns" yaml:"min_interval_ns"`
	MaxIntervalNS  uint64        `json:"max_interval_ns" yaml:"max_interval_ns"`
	MeanIntervalNS uint64        `json:"mean_interval_ns" yaml:"mean_interval_ns"`
	MaxJitterNS    uint64        `json:"max_jitter_ns" yaml:"max_jitter_ns"`
	MeanJitterNS   uint64        `json:"mean_jitter_ns" yaml:"mean_jitter_ns"`
	P50JitterNS    int64         `json:"p50_jitter_ns" yaml:"p50_jitter_ns"`
	P90JitterNS    int64         `json:"p90_jitter_ns" yaml:"p90_jitter_ns"`
	P99JitterNS    int64         `json:"p99_jitter_ns" yaml:"p99_jitter_ns"`
	StdDevJitterNS float64       `json:"stddev_jitter_ns" yaml:"stddev_jitter_ns"`
	Duration       time.Duration `json:"-" yaml:"-"`
	DurationMs     float64       `json:"duration_ms" yaml:"duration_ms"`
	TogglesPerSec  float64       `json:"toggles_per_sec" yaml:"toggles_per_sec"`
}

// Bucket is one bar of the jitter distribution.
type Bucket struct {
	FromNS int64 `json:"from_ns"`
	ToNS   int64 `json:"to_ns"`
	Count  int64 `json:"count"`
}

// NewCollector creates a collector for the given target half-period.
func NewCollector(target uint64) *Collector {
	// Track jitter from 0ns up to 10s with 3 significant figures.
	h := hdrhistogram.New(1, 10_000_000_000, 3)
	return &Collector{
		hist:   h,
		target: target,
		start:  time.Now(),
	}
}

// Start marks the beginning of the measured run.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
}

// Elapsed returns the time since Start.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// Record adds a measurement to the run-wide statistics.
func (c *Collector) Record(m Measurement) {
	c.mu.Lock()
	defer c.mu.Unlock()

	jitter := m.Jitter(c.target)
	// Zero jitter is recorded as-is; only the upper bound needs clamping.
	v := int64(jitter)
	if v > c.hist.HighestTrackableValue() {
		v = c.hist.HighestTrackableValue()
	}
	_ = c.hist.RecordValue(v)

	if c.samples == 0 || m.IntervalNS < c.minInterval {
		c.minInterval = m.IntervalNS
	}
	if m.IntervalNS > c.maxInterval {
		c.maxInterval = m.IntervalNS
	}
	if jitter > c.maxJitter {
		c.maxJitter = jitter
	}
	c.sumInterval += m.IntervalNS
	c.sumJitter += jitter
	c.samples++
}

// SetDropped records the number of measurements lost to channel overflow.
func (c *Collector) SetDropped(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped = n
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Samples:       c.samples,
		Dropped:       c.dropped,
		TargetNS:      c.target,
		MinIntervalNS: c.minInterval,
		MaxIntervalNS: c.maxInterval,
		MaxJitterNS:   c.maxJitter,
	}

	if c.samples > 0 {
		stats.MeanIntervalNS = c.sumInterval / uint64(c.samples)
		stats.MeanJitterNS = c.sumJitter / uint64(c.samples)
	}

	if c.hist.TotalCount() > 0 {
		stats.P50JitterNS = c.quantile(50)
		stats.P90JitterNS = c.quantile(90)
		stats.P99JitterNS = c.quantile(99)
		stats.StdDevJitterNS = c.hist.StdDev()
	}

	stats.Duration = elapsed
	stats.DurationMs = float64(elapsed) / float64(time.Millisecond)
	if elapsed > 0 && c.samples > 0 {
		stats.TogglesPerSec = float64(c.samples) / elapsed.Seconds()
	}

	return stats
}

// quantile reports a histogram quantile capped at the exact maximum, since
// bucket upper bounds can overshoot it.
func (c *Collector) quantile(q float64) int64 {
	v := c.hist.ValueAtQuantile(q)
	if limit := int64(c.maxJitter); v > limit {
		return limit
	}
	return v
}

// Distribution returns the non-empty buckets of the jitter histogram.
func (c *Collector) Distribution() []Bucket {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Bucket
	for _, bar := range c.hist.Distribution() {
		if bar.Count == 0 {
			continue
		}
		out = append(out, Bucket{FromNS: bar.From, ToNS: bar.To, Count: bar.Count})
	}
	return out
}
