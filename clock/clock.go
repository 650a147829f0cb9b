// Package clock measures elapsed wall-clock and process CPU time.
package clock

import (
	"errors"
	"fmt"
	"time"
)

// ErrCPUTimeUnavailable is returned by New when the host cannot report process CPU time.
var ErrCPUTimeUnavailable = errors.New("process CPU time is not available on this host")

// Clock creates stopwatches. Build one with New.
type Clock struct {
	now func() time.Time
	cpu func() (time.Duration, error)
}

// StopWatch holds the wall and CPU instants captured by Clock.Start.
type StopWatch struct {
	clock    *Clock
	start    time.Time
	cpuStart time.Duration
}

// New returns a Clock, failing if process CPU time cannot be read.
func New() (*Clock, error) {
	return newClock(time.Now, processCPUTime)
}

func newClock(now func() time.Time, cpu func() (time.Duration, error)) (*Clock, error) {
	if _, err := cpu(); err != nil {
		if errors.Is(err, ErrCPUTimeUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrCPUTimeUnavailable, err)
	}
	return &Clock{now: now, cpu: cpu}, nil
}

// Start captures the current wall instant and cumulative process CPU time.
func (c *Clock) Start() *StopWatch {
	return &StopWatch{clock: c, start: c.now(), cpuStart: c.cpuTime()}
}

func (c *Clock) cpuTime() time.Duration {
	// the probe in New succeeded, later failures read as zero elapsed
	d, err := c.cpu()
	if err != nil {
		return 0
	}
	return d
}

// Elapsed returns the wall-clock milliseconds since Start.
func (s *StopWatch) Elapsed() int64 {
	return nonNegative(s.clock.now().Sub(s.start))
}

// CPUElapsed returns the process CPU milliseconds consumed since Start.
func (s *StopWatch) CPUElapsed() int64 {
	return nonNegative(s.clock.cpuTime() - s.cpuStart)
}

func nonNegative(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}
