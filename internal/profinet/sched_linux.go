//go:build linux

package profinet

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// setRealtimePriority pins the calling goroutine to its thread and moves
// the thread to SCHED_FIFO. The thread stays locked until the goroutine
// exits.
func setRealtimePriority(priority int) error {
	if priority <= 0 {
		return nil
	}
	runtime.LockOSThread()
	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(priority),
	}
	return unix.SchedSetAttr(0, &attr, 0)
}
