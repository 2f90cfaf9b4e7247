package service

import (
	"time"
)

// Clock returns the current time; tests replace it to pin timestamps
type Clock func() time.Time

// SystemClock returns the current UTC time
func SystemClock() time.Time {
	return time.Now().UTC()
}

// CleanupCutoff calculates the creation time before which stale games are swept
func CleanupCutoff(now time.Time, hoursOld int) time.Time {
	return now.Add(-time.Duration(hoursOld) * time.Hour)
}

// NextCleanupRun calculates when the next sweep is due given the previous run
func NextCleanupRun(lastRun time.Time, interval time.Duration) time.Time {
	if lastRun.IsZero() {
		return time.Now().UTC()
	}
	return lastRun.Add(interval)
}
