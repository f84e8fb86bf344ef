package metrics

import "errors"

const (
	initialHistoryCapacity = 1024
	historyGrowthFactor    = 2
)

// ErrHistoryFull is returned by History.Append once the configured record
// limit is reached.
var ErrHistoryFull = errors.New("history limit reached")

// History is the append-only record of every measurement taken during a run.
// It is owned by a single goroutine and is not safe for concurrent use.
type History struct {
	records []Measurement
	limit   int
}

// NewHistory returns an empty History. A limit of zero means unlimited.
func NewHistory(limit int) *History {
	if limit < 0 {
		limit = 0
	}
	return &History{limit: limit}
}

// Append adds m to the end of the history, growing the backing storage
// geometrically when it is full.
func (h *History) Append(m Measurement) error {
	if len(h.records) == cap(h.records) {
		if err := h.grow(); err != nil {
			return err
		}
	}
	h.records = append(h.records, m)
	return nil
}

// grow doubles the capacity explicitly; append's own policy slows down to
// 1.25x for large slices.
func (h *History) grow() error {
	newCap := initialHistoryCapacity
	if c := cap(h.records); c > 0 {
		newCap = c * historyGrowthFactor
	}
	if h.limit > 0 {
		if len(h.records) >= h.limit {
			return ErrHistoryFull
		}
		if newCap > h.limit {
			newCap = h.limit
		}
	}
	grown := make([]Measurement, len(h.records), newCap)
	copy(grown, h.records)
	h.records = grown
	return nil
}

// Len returns the number of recorded measurements.
func (h *History) Len() int { return len(h.records) }

// Cap returns the current capacity of the backing storage.
func (h *History) Cap() int { return cap(h.records) }

// Records returns the recorded measurements in order. The slice aliases the
// history and must not be modified.
func (h *History) Records() []Measurement { return h.records }

// Tail returns at most the last n measurements.
func (h *History) Tail(n int) []Measurement {
	if n <= 0 {
		return nil
	}
	if n >= len(h.records) {
		return h.records
	}
	return h.records[len(h.records)-n:]
}
