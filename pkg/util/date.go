package util

import (
	"fmt"
	"strconv"
	"time"
)

const DateLayout = "2006-01-02"

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseClock parses a strict HH:MM wall-clock time in [00:00, 23:59].
func ParseClock(s string) (hour, minute int, err error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("clock %q: want HH:MM", s)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, 0, fmt.Errorf("clock %q: want HH:MM", s)
		}
	}
	hour = int(s[0]-'0')*10 + int(s[1]-'0')
	minute = int(s[3]-'0')*10 + int(s[4]-'0')
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("clock %q: out of range", s)
	}
	return hour, minute, nil
}

// IsClock reports whether s is a valid HH:MM.
func IsClock(s string) bool {
	_, _, err := ParseClock(s)
	return err == nil
}

// FormatClock renders hour and minute as HH:MM.
func FormatClock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// LocalDate returns the YYYY-MM-DD calendar date of t in loc.
func LocalDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// StartOfDay returns local midnight of t's calendar date in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// AtClock returns the instant of HH:MM on t's calendar date in loc.
func AtClock(t time.Time, loc *time.Location, hour, minute int) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), hour, minute, 0, 0, loc)
}
