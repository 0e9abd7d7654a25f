package core

import "time"

// Stopwatch measures wall time from the moment it was started.
//
//	sw := core.StartStopwatch()
//	defer func() { logger.Debug("done", "ms", sw.Milliseconds()) }()
type Stopwatch struct {
	start time.Time
}

// StartStopwatch returns a running stopwatch.
func StartStopwatch() Stopwatch {
	return Stopwatch{start: time.Now()}
}

// Elapsed returns the time since the stopwatch was started.
func (s Stopwatch) Elapsed() time.Duration {
	return time.Since(s.start)
}

// Milliseconds returns the elapsed time in fractional milliseconds.
func (s Stopwatch) Milliseconds() float64 {
	return float64(s.Elapsed()) / float64(time.Millisecond)
}
