package domain

import (
	"strings"
	"time"
)

// ParseTimestamp parses an ISO-8601 instant, first with fractional seconds
// and then without. It returns false when neither layout matches.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

func parseTimestampPtr(s *string) (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	return ParseTimestamp(*s)
}
