// Package plot turns window statistics into frames for live renderers.
package plot

import "github.com/torosent/gpiojitter/internal/metrics"

const minMargin = 1000

// Frame is one refresh of the live jitter view.
type Frame struct {
	XMin, XMax uint64
	YMin, YMax int64
	Points     []metrics.Point
	MaxJitter  uint64
	MeanJitter uint64
	// Samples and Dropped are run-wide totals at the time of the frame.
	Samples int64
	Dropped uint64
}

// NewFrame derives axis ranges from window statistics. The y-range leaves a
// tenth of the maximum jitter (at least 1000 ns) as headroom above and below.
func NewFrame(ws metrics.WindowStats, samples int64, dropped uint64) Frame {
	maxJ := int64(ws.MaxJitter)
	margin := maxJ / 10
	if margin == 0 {
		margin = minMargin
	}
	return Frame{
		XMin:       ws.FirstSequence,
		XMax:       ws.LastSequence,
		YMin:       -(maxJ/10 + margin),
		YMax:       maxJ + margin,
		Points:     ws.Points,
		MaxJitter:  ws.MaxJitter,
		MeanJitter: ws.MeanJitter,
		Samples:    samples,
		Dropped:    dropped,
	}
}

// Sink consumes frames. SendFrame is called from the aggregator goroutine
// only; implementations must not block for long.
type Sink interface {
	SendFrame(Frame) error
	Close() error
}
