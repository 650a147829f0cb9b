//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly || windows)

package clock

import "time"

func processCPUTime() (time.Duration, error) {
	return 0, ErrCPUTimeUnavailable
}
