// Package stats counts the work of a run for progress and summary
// reporting. Processing is single-threaded, the counter is not safe
// for concurrent use.
package stats

import (
	"fmt"
	"time"
)

type Counter struct {
	start    time.Time
	Features int64
	Lines    int64
	Skipped  int64
	Segments int64
	Commits  int64
}

func NewCounter() *Counter {
	return &Counter{start: time.Now()}
}

// Progress returns a short one-line status for the progress display.
func (c *Counter) Progress() string {
	return fmt.Sprintf("%d features, %d segments", c.Features, c.Segments)
}

// Summary returns the final report with throughput.
func (c *Counter) Summary() string {
	seconds := time.Since(c.start).Seconds()
	rate := 0.0
	if seconds > 0 {
		rate = float64(c.Features) / seconds
	}
	return fmt.Sprintf(
		"%d features read (%.0f/s), %d lines skipped, %d segments written, %d commits",
		c.Features, rate, c.Skipped, c.Segments, c.Commits)
}
