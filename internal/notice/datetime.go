package notice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	datePattern  = regexp.MustCompile(`^\s*(\d{1,2})/(\d{1,2})/(\d{4})\s*$`)
	clockPattern = regexp.MustCompile(`(?i)^\s*(\d{1,2}):(\d{2})\s*([ap])\.?\s*m\.?\s*$`)
)

// NormalizeDateTime combines a MM/DD/YYYY date and a 12-hour clock time
// ("08:30 A.M.", "12:15 a.m.", "1:05PM") into a timestamp in loc.
// Dates that do not exist on the calendar are rejected rather than rolled forward.
func NormalizeDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}

	dm := datePattern.FindStringSubmatch(date)
	if dm == nil {
		return time.Time{}, fmt.Errorf("%w: date %q is not MM/DD/YYYY", ErrDateNormalization, date)
	}
	month, _ := strconv.Atoi(dm[1])
	day, _ := strconv.Atoi(dm[2])
	year, _ := strconv.Atoi(dm[3])

	hour, minute, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}

	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("%w: %q is not a calendar date", ErrDateNormalization, date)
	}
	return t, nil
}

// parseClock converts a 12-hour clock string into 24-hour hour and minute.
func parseClock(clock string) (int, int, error) {
	cm := clockPattern.FindStringSubmatch(clock)
	if cm == nil {
		return 0, 0, fmt.Errorf("%w: time %q is not hh:mm AM/PM", ErrDateNormalization, clock)
	}
	hour, _ := strconv.Atoi(cm[1])
	minute, _ := strconv.Atoi(cm[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: time %q out of range", ErrDateNormalization, clock)
	}

	switch strings.ToLower(cm[3]) {
	case "p":
		if hour != 12 {
			hour += 12
		}
	case "a":
		if hour == 12 {
			hour = 0
		}
	}
	return hour, minute, nil
}
