// Package clock provides helpers for time-related operations.
package clock

import (
	"context"
	"time"
)

// NowUTC returns the current instant normalized to UTC. All bookkeeping
// timestamps written by the pipeline go through this helper.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// Today returns the current calendar date as a UTC midnight instant.
func Today() time.Time {
	return Midnight(time.Now().UTC())
}

// Midnight truncates an instant to its UTC calendar date.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SleepWithContext waits for the duration or returns early if the context is
// canceled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
