// Package ack records that a user has seen a specific version of their
// computed targets.
package ack

import (
	"errors"
	"regexp"
	"time"
)

const (
	minTimestampLen = len("2006-01-02T15:04:05Z")
	maxTimestampLen = len("2006-01-02T15:04:05.999999999Z")
)

// timestampPattern accepts UTC instants with 0 to 9 fractional digits. Offsets
// other than Z and date-only values are rejected.
var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d{1,9})?Z$`)

var errTimestampFormat = errors.New("must be an ISO-8601 UTC timestamp like 2025-10-01T09:30:00.123Z")

// ParseTimestamp parses a client-echoed computed_at value. The length is
// checked before the pattern so oversized input never reaches the regexp.
func ParseTimestamp(s string) (time.Time, error) {
	if len(s) < minTimestampLen || len(s) > maxTimestampLen {
		return time.Time{}, errTimestampFormat
	}
	if !timestampPattern.MatchString(s) {
		return time.Time{}, errTimestampFormat
	}
	// Shape is right; time.Parse rejects impossible calendar values.
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errTimestampFormat
	}
	return t.UTC(), nil
}

// SameSecond reports whether a and b fall in the same Unix second. Clients
// round-trip timestamps at millisecond or second precision while the store
// keeps microseconds.
func SameSecond(a, b time.Time) bool {
	return a.Unix() == b.Unix()
}
