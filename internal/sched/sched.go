// Package sched places the calling OS thread on a CPU core and raises it to a
// real-time scheduling class. Callers must hold runtime.LockOSThread.
package sched

import "errors"

// MaxPriority is the highest SCHED_FIFO priority accepted.
const MaxPriority = 99

// ErrUnsupported is returned on platforms without thread placement support.
var ErrUnsupported = errors.New("thread scheduling control is not supported on this platform")
