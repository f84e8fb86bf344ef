//go:build linux

package sched

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// PinCurrentThread restricts the calling thread to core.
func PinCurrentThread(core int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("set affinity to core %d: %w", core, err)
	}
	return nil
}

// SetFIFOPriority switches the calling thread to SCHED_FIFO at priority.
func SetFIFOPriority(priority int) error {
	if priority < 1 || priority > MaxPriority {
		return fmt.Errorf("SCHED_FIFO priority %d out of range 1-%d", priority, MaxPriority)
	}
	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(priority),
	}
	if err := unix.SchedSetAttr(0, &attr, 0); err != nil {
		return fmt.Errorf("set SCHED_FIFO priority %d: %w", priority, err)
	}
	return nil
}

// RealtimeAllowed reports whether the process may request real-time
// scheduling: it runs as root or RLIMIT_RTPRIO is non-zero.
func RealtimeAllowed() bool {
	if unix.Geteuid() == 0 {
		return true
	}
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_RTPRIO, &rl); err != nil {
		return false
	}
	return rl.Cur > 0
}

// ThreadID returns the kernel id of the calling thread.
func ThreadID() int { return unix.Gettid() }
