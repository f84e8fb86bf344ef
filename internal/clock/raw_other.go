//go:build !linux

package clock

import "errors"

// Raw is only available on Linux.
type Raw struct{}

// NewRaw always fails outside Linux.
func NewRaw() (Raw, error) {
	return Raw{}, errors.New("CLOCK_MONOTONIC_RAW is only available on linux")
}

// Now is never reached because NewRaw fails.
func (Raw) Now() uint64 { return 0 }
