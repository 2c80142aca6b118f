package tools

import (
	"fmt"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
}

var timeLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04PM",
	"3 PM",
	"3PM",
}

// parseDateTime combines a spoken date and clock time into a local
// timestamp. now supplies the reference day for relative dates.
func parseDateTime(dateStr, timeStr string, now time.Time) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	timeStr = strings.TrimSpace(timeStr)

	var day time.Time
	switch strings.ToLower(dateStr) {
	case "", "today":
		day = now
	case "tomorrow":
		day = now.AddDate(0, 0, 1)
	default:
		var err error
		day, err = parseFirst(dateLayouts, dateStr)
		if err != nil {
			return time.Time{}, fmt.Errorf("unrecognized date %q", dateStr)
		}
	}

	clock, err := parseFirst(timeLayouts, strings.ToUpper(timeStr))
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time %q", timeStr)
	}

	return time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, time.Local), nil
}

func parseFirst(layouts []string, s string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("no layout matched %q", s)
}

// spokenTimestamp formats a reminder time the way it should be read aloud.
func spokenTimestamp(t time.Time) string {
	return t.Format("Monday, January 2, 2006 at 3:04 PM")
}
