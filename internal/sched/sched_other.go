//go:build !linux

package sched

import "os"

func PinCurrentThread(int) error { return ErrUnsupported }

func SetFIFOPriority(int) error { return ErrUnsupported }

func RealtimeAllowed() bool { return false }

func ThreadID() int { return os.Getpid() }
