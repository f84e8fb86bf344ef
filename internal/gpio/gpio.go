// Package gpio drives a single output line of a GPIO chip.
package gpio

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

// DefaultSelector is the line used when none is configured.
const DefaultSelector = "gpiochip4:17"

// SimulatedSelector selects an in-memory pin instead of hardware.
const SimulatedSelector = "sim"

// ErrMalformedSelector is returned for selectors that are not chip:line.
var ErrMalformedSelector = errors.New("malformed pin selector")

// Pin is an output line.
type Pin interface {
	Set(level int) error
	Close() error
}

// Selector identifies a line on a chip.
type Selector struct {
	Chip      string
	Line      int
	Simulated bool
}

func (s Selector) String() string {
	if s.Simulated {
		return SimulatedSelector
	}
	return fmt.Sprintf("%s:%d", s.Chip, s.Line)
}

// ParseSelector parses "gpiochipN:line", "/dev/gpiochipN:line" or "sim".
func ParseSelector(raw string) (Selector, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Selector{}, fmt.Errorf("%w: empty", ErrMalformedSelector)
	}
	if strings.EqualFold(raw, SimulatedSelector) {
		return Selector{Simulated: true}, nil
	}

	idx := strings.LastIndex(raw, ":")
	if idx <= 0 || idx == len(raw)-1 {
		return Selector{}, fmt.Errorf("%w: %q (expected chip:line, e.g. %s)", ErrMalformedSelector, raw, DefaultSelector)
	}
	chip, lineStr := raw[:idx], raw[idx+1:]

	name := strings.TrimPrefix(chip, "/dev/")
	if !strings.HasPrefix(name, "gpiochip") || strings.Contains(name, "/") {
		return Selector{}, fmt.Errorf("%w: chip %q is not a gpiochip device", ErrMalformedSelector, chip)
	}
	if _, err := strconv.Atoi(strings.TrimPrefix(name, "gpiochip")); err != nil {
		return Selector{}, fmt.Errorf("%w: chip %q has no numeric index", ErrMalformedSelector, chip)
	}

	line, err := strconv.Atoi(lineStr)
	if err != nil || line < 0 {
		return Selector{}, fmt.Errorf("%w: line %q is not a non-negative integer", ErrMalformedSelector, lineStr)
	}

	return Selector{Chip: chip, Line: line}, nil
}

// MemoryPin is a Pin that keeps its state in memory. It is used for
// simulated runs and tests.
type MemoryPin struct {
	level   atomic.Int32
	toggles atomic.Uint64
	closed  atomic.Bool
	onSet   func(level int, toggles uint64)
}

// NewMemoryPin returns a low MemoryPin. onSet, if non-nil, is called after
// every Set with the new level and toggle count.
func NewMemoryPin(onSet func(level int, toggles uint64)) *MemoryPin {
	return &MemoryPin{onSet: onSet}
}

// Set records the level.
func (p *MemoryPin) Set(level int) error {
	if p.closed.Load() {
		return errors.New("pin is closed")
	}
	p.level.Store(int32(level))
	n := p.toggles.Add(1)
	if p.onSet != nil {
		p.onSet(level, n)
	}
	return nil
}

// Close marks the pin closed.
func (p *MemoryPin) Close() error {
	p.closed.Store(true)
	return nil
}

// Level returns the last level set.
func (p *MemoryPin) Level() int { return int(p.level.Load()) }

// Toggles returns the number of Set calls.
func (p *MemoryPin) Toggles() uint64 { return p.toggles.Load() }

// Closed reports whether Close was called.
func (p *MemoryPin) Closed() bool { return p.closed.Load() }
