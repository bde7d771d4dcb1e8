package memory

import (
	"strconv"
	"strings"
	"time"
)

// isoLayout matches JavaScript's toISOString for UTC values.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

var dueDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"2/1/2006 15:04",
	"2/1/2006",
	"2-1-2006",
}

// NormalizeDueDate returns an ISO-8601 string for anything that parses as a
// date. The offset of the input is kept so the calendar date does not shift.
func NormalizeDueDate(input string) (string, bool) {
	t, ok := parseDueDate(input)
	if !ok {
		return "", false
	}
	return t.Format(isoLayout), true
}

func parseDueDate(input string) (time.Time, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, false
	}

	// Millisecond timestamps. Short numbers are more likely years or days.
	if len(s) >= 10 {
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
	}

	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
