package service

import (
	"testing"
	"time"
)

// withClock pins the package clock for the duration of fn.
func withClock(t *testing.T, ts int64, fn func()) {
	t.Helper()
	orig := timeNow
	timeNow = func() time.Time { return time.Unix(ts, 0) }
	defer func() { timeNow = orig }()
	fn()
}

// advanceClock moves the pinned clock; only valid inside withClock.
func advanceClock(t *testing.T, ts int64) {
	t.Helper()
	timeNow = func() time.Time { return time.Unix(ts, 0) }
}
