package model

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// ClockTime is a wall-clock time of day in "HH:MM" form.
type ClockTime string

// ParseClock accepts "HH:MM" or "HH:MM:SS" (seconds are dropped).
func ParseClock(s string) (ClockTime, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockAt(t.Hour(), t.Minute()), nil
		}
	}
	return "", fmt.Errorf("invalid time of day %q", s)
}

func ClockAt(hour, minute int) ClockTime {
	return ClockTime(fmt.Sprintf("%02d:%02d", hour, minute))
}

// ClockFromMinutes converts minutes since midnight. Values past 23:59 are clamped.
func ClockFromMinutes(m int) ClockTime {
	if m < 0 {
		m = 0
	}
	if m > 23*60+59 {
		m = 23*60 + 59
	}
	return ClockAt(m/60, m%60)
}

func (c ClockTime) Valid() bool {
	_, err := ParseClock(string(c))
	return err == nil
}

// Minutes returns minutes since midnight, or -1 for a malformed value.
func (c ClockTime) Minutes() int {
	t, err := time.Parse("15:04", string(c))
	if err != nil {
		return -1
	}
	return t.Hour()*60 + t.Minute()
}

// On places the time of day on the given civil date in loc.
func (c ClockTime) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.Date()
	mins := c.Minutes()
	return time.Date(y, m, d, mins/60, mins%60, 0, 0, loc)
}

func (c ClockTime) String() string {
	return string(c)
}

// CivilDate normalises t to UTC midnight of its civil date, the form dates are stored in.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateOf wraps a civil date for a gorm date column.
func DateOf(t time.Time) datatypes.Date {
	return datatypes.Date(CivilDate(t))
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

// DayKey is the "YYYY-MM-DD" form used for lock keys and grouping.
func DayKey(t time.Time) string {
	return CivilDate(t).Format(time.DateOnly)
}
