package ack

import (
	"strings"
	"testing"
	"time"
)

func TestParseTimestamp_Accepts(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-10-01T09:30:00Z", time.Date(2025, 10, 1, 9, 30, 0, 0, time.UTC)},
		{"2025-10-01T09:30:00.1Z", time.Date(2025, 10, 1, 9, 30, 0, 100_000_000, time.UTC)},
		{"2025-10-01T09:30:00.123Z", time.Date(2025, 10, 1, 9, 30, 0, 123_000_000, time.UTC)},
		{"2025-10-01T09:30:00.123456Z", time.Date(2025, 10, 1, 9, 30, 0, 123_456_000, time.UTC)},
		{"2025-10-01T09:30:00.123456789Z", time.Date(2025, 10, 1, 9, 30, 0, 123_456_789, time.UTC)},
		{"2024-02-29T23:59:59Z", time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if err != nil {
				t.Fatalf("ParseTimestamp(%q): %v", tt.in, err)
			}
			if !got.Equal(tt.want) || got.Location() != time.UTC {
				t.Errorf("ParseTimestamp(%q) = %v, want %v UTC", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseTimestamp_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"date only", "2025-10-01"},
		{"offset", "2025-10-01T09:30:00+02:00"},
		{"lowercase z", "2025-10-01T09:30:00z"},
		{"space separator", "2025-10-01 09:30:00Z"},
		{"missing seconds", "2025-10-01T09:30Z"},
		{"ten fraction digits", "2025-10-01T09:30:00.1234567891Z"},
		{"empty fraction", "2025-10-01T09:30:00.Z"},
		{"month 13", "2025-13-01T09:30:00Z"},
		{"all fields out of range", "2025-13-99T99:99:99Z"},
		{"feb 30", "2025-02-30T00:00:00Z"},
		{"not a leap year", "2025-02-29T00:00:00Z"},
		{"hour 24", "2025-10-01T24:00:00Z"},
		{"oversized", "2025-10-01T09:30:00Z" + strings.Repeat("0", 100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, err := ParseTimestamp(tt.in); err == nil {
				t.Errorf("ParseTimestamp(%q) = %v, want error", tt.in, got)
			}
		})
	}
}

// TestSameSecond: sub-second precision is ignored in both directions.
func TestSameSecond(t *testing.T) {
	stored := time.Date(2025, 10, 1, 9, 30, 0, 123_456_000, time.UTC)
	tests := []struct {
		name string
		echo time.Time
		want bool
	}{
		{"exact", stored, true},
		{"millis", time.Date(2025, 10, 1, 9, 30, 0, 123_000_000, time.UTC), true},
		{"truncated", time.Date(2025, 10, 1, 9, 30, 0, 0, time.UTC), true},
		{"end of second", time.Date(2025, 10, 1, 9, 30, 0, 999_999_999, time.UTC), true},
		{"next second", time.Date(2025, 10, 1, 9, 30, 1, 0, time.UTC), false},
		{"previous second", time.Date(2025, 10, 1, 9, 29, 59, 999_000_000, time.UTC), false},
		{"same instant other zone", stored.In(time.FixedZone("X", 3600)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameSecond(stored, tt.echo); got != tt.want {
				t.Errorf("SameSecond(%v, %v) = %v, want %v", stored, tt.echo, got, tt.want)
			}
		})
	}
}
