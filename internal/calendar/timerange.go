package calendar

import (
	"errors"
	"fmt"
	"time"
)

var ErrSlotDuration = errors.New("slot duration must be positive")

// TimeRange is the half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// WithDefaultEnd returns a range starting at start. When end is nil or does not
// come after start, the range lasts fallback instead.
func WithDefaultEnd(start time.Time, end *time.Time, fallback time.Duration) TimeRange {
	if end == nil || !end.After(start) {
		return TimeRange{Start: start, End: start.Add(fallback)}
	}
	return TimeRange{Start: start, End: *end}
}

func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

// Overlaps reports whether two half-open ranges intersect. Touching ends do not count.
func (tr TimeRange) Overlaps(other TimeRange) bool {
	return tr.Start.Before(other.End) && other.Start.Before(tr.End)
}

// SplitToTimeSlots cuts the range into fixed-size slots.
// alignMinutes > 0 moves the first start forward to the next multiple of alignMinutes.
// A tail shorter than slotDuration is dropped.
func SplitToTimeSlots(
	tr TimeRange,
	slotDuration time.Duration,
	alignMinutes int,
) ([]TimeRange, error) {
	if slotDuration <= 0 {
		return nil, ErrSlotDuration
	}
	if !tr.End.After(tr.Start) {
		return []TimeRange{}, nil
	}

	start := tr.Start

	if alignMinutes > 0 {
		min := start.Minute()
		rem := min % alignMinutes
		if rem != 0 || start.Second() != 0 || start.Nanosecond() != 0 {
			delta := 0
			if rem != 0 {
				delta = alignMinutes - rem
			}
			start = time.Date(
				start.Year(),
				start.Month(),
				start.Day(),
				start.Hour(),
				min+delta,
				0, 0,
				start.Location(),
			)
			if start.Before(tr.Start) {
				start = start.Add(time.Duration(alignMinutes) * time.Minute)
			}
			if !start.Before(tr.End) {
				return []TimeRange{}, nil
			}
		}
	}

	var slots []TimeRange
	for cur := start; ; cur = cur.Add(slotDuration) {
		slotEnd := cur.Add(slotDuration)
		if slotEnd.After(tr.End) {
			break
		}
		slots = append(slots, TimeRange{Start: cur, End: slotEnd})
	}

	return slots, nil
}

// SameDate compares civil dates, ignoring location offsets.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

var ptWeekdays = map[time.Weekday]string{
	time.Monday:    "Segunda-feira",
	time.Tuesday:   "Terça-feira",
	time.Wednesday: "Quarta-feira",
	time.Thursday:  "Quinta-feira",
	time.Friday:    "Sexta-feira",
	time.Saturday:  "Sábado",
	time.Sunday:    "Domingo",
}

// FormatSlotForUser renders a range as "Segunda-feira, 10/06/2024, 09:00–10:00".
// If loc != nil the bounds are converted first. includeID appends the id in brackets.
func FormatSlotForUser(
	tr TimeRange,
	loc *time.Location,
	includeID bool,
	slotID string,
) string {
	start := tr.Start
	end := tr.End

	if loc != nil {
		start = start.In(loc)
		end = end.In(loc)
	}

	weekday := ptWeekdays[start.Weekday()]
	dateStr := start.Format("02/01/2006")
	startTimeStr := start.Format("15:04")
	endTimeStr := end.Format("15:04")

	base := fmt.Sprintf("%s, %s, %s–%s", weekday, dateStr, startTimeStr, endTimeStr)

	if includeID && slotID != "" {
		return fmt.Sprintf("%s (ID: %s)", base, slotID)
	}

	return base
}
