// Package lifecycle holds the process-wide termination flag shared by the
// signal generator and the aggregator.
package lifecycle

import "sync/atomic"

// Flag is a one-way stop signal. It starts lowered and, once raised, stays
// raised. It is safe to read from a busy loop.
type Flag struct {
	v atomic.Bool
}

// Raise sets the flag. Raising an already raised flag is a no-op.
func (f *Flag) Raise() { f.v.Store(true) }

// Raised reports whether Raise has been called.
func (f *Flag) Raised() bool { return f.v.Load() }
