// Package clock reads the monotonic clock used to time toggles and estimates
// the fixed cost of reading it.
package clock

import (
	"fmt"
	"strings"
	"time"
)

const warmupPairs = 10

// Clock returns monotonic timestamps in nanoseconds. The epoch is arbitrary;
// only differences are meaningful.
type Clock interface {
	Now() uint64
}

// Runtime reads the Go runtime's monotonic clock.
type Runtime struct {
	epoch time.Time
}

// NewRuntime returns a Runtime clock anchored at the current instant.
func NewRuntime() *Runtime {
	return &Runtime{epoch: time.Now()}
}

// Now returns nanoseconds since the clock was created.
func (r *Runtime) Now() uint64 {
	return uint64(time.Since(r.epoch))
}

// EstimateOverhead measures the cost of two back-to-back clock reads. A few
// pairs are discarded first to warm up caches; the last pair is returned.
func EstimateOverhead(c Clock) uint64 {
	for i := 0; i < warmupPairs; i++ {
		_ = c.Now()
		_ = c.Now()
	}
	start := c.Now()
	end := c.Now()
	if end < start {
		return 0
	}
	return end - start
}

// Source names a clock implementation.
type Source string

const (
	SourceRuntime Source = "runtime"
	SourceRaw     Source = "raw"
)

// Open returns the clock for the named source.
func Open(source Source) (Clock, error) {
	switch Source(strings.ToLower(string(source))) {
	case "", SourceRuntime:
		return NewRuntime(), nil
	case SourceRaw:
		return NewRaw()
	default:
		return nil, fmt.Errorf("unsupported clock source %q", source)
	}
}
