//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package clock

import (
	"time"

	"golang.org/x/sys/unix"
)

// processCPUTime returns user plus system time consumed by the process.
func processCPUTime() (time.Duration, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, err
	}
	return time.Duration(ru.Utime.Nano() + ru.Stime.Nano()), nil
}
