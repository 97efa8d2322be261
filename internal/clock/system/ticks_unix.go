//go:build unix

package system

import "golang.org/x/sys/unix"

func ticks() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return fallbackTicks()
	}
	return uint64(ts.Nano()) + 1
}
