package uploader

import (
	"testing"
	"time"
)

func TestStallTrackerEscalation(t *testing.T) {
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	tracker := newStallTracker(60*time.Second, 180*time.Second)

	steps := []struct {
		name     string
		uploaded int
		at       time.Duration
		want     stallLevel
	}{
		{"first observation seeds", 0, 0, stallProgressing},
		{"count advances", 4, 2 * time.Second, stallProgressing},
		{"unchanged under warn", 4, 30 * time.Second, stallNone},
		{"unchanged just under warn", 4, 2*time.Second + 59*time.Second, stallNone},
		{"unchanged at warn", 4, 2*time.Second + 61*time.Second, stallWarn},
		{"still warn under retry", 4, 2*time.Second + 170*time.Second, stallWarn},
		{"unchanged at retry", 4, 2*time.Second + 181*time.Second, stallRetry},
		{"stays at retry", 4, 2*time.Second + 500*time.Second, stallRetry},
		{"progress resets the clock", 6, 2*time.Second + 502*time.Second, stallProgressing},
		{"back under warn after reset", 6, 2*time.Second + 540*time.Second, stallNone},
	}

	for _, step := range steps {
		got := tracker.observe(step.uploaded, base.Add(step.at))
		if got != step.want {
			t.Errorf("%s: observe(%d, +%v) = %d, want %d", step.name, step.uploaded, step.at, got, step.want)
		}
	}
}

func TestStallTrackerSameCountAtSeedIsProgress(t *testing.T) {
	// A fresh tracker must not treat the very first zero as a stall, no
	// matter how much wall time has passed before the first poll.
	tracker := newStallTracker(time.Millisecond, 2*time.Millisecond)
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	if got := tracker.observe(0, now); got != stallProgressing {
		t.Errorf("first observe = %d, want stallProgressing", got)
	}
	if got := tracker.observe(0, now.Add(time.Hour)); got != stallRetry {
		t.Errorf("second observe after an hour = %d, want stallRetry", got)
	}
}
