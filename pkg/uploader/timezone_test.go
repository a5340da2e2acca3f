package uploader

import (
	"testing"
	"time"
)

func TestTimezoneOffset(t *testing.T) {
	// A winter instant, so daylight saving is not in effect for the
	// northern-hemisphere zones below.
	at := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		zone string
		want string
	}{
		{"utc", "UTC", "0"},
		{"arizona", "America/Phoenix", "-7"},
		{"new york winter", "America/New_York", "-5"},
		{"tokyo", "Asia/Tokyo", "9"},
		{"unresolvable name passes through", "Somewhere/Odd", "Somewhere/Odd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TimezoneOffset(tt.zone, at); got != tt.want {
				t.Errorf("TimezoneOffset(%q) = %q, want %q", tt.zone, got, tt.want)
			}
		})
	}
}

func TestTimezoneOffsetDaylightSaving(t *testing.T) {
	winter := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	summer := time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)

	if got := TimezoneOffset("America/New_York", summer); got != "-4" {
		t.Errorf("summer offset = %q, want -4", got)
	}
	// Arizona does not observe daylight saving.
	if TimezoneOffset("America/Phoenix", winter) != TimezoneOffset("America/Phoenix", summer) {
		t.Errorf("Phoenix offset should not change with the season")
	}
}
