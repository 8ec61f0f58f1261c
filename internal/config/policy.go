package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/Leganyst/patient-transport/internal/model"
)

// Policy holds the municipal scheduling rules. Nothing in the scheduling core hard-codes these values.
type Policy struct {
	Location *time.Location

	OpeningTime model.ClockTime
	ClosingTime model.ClockTime
	WorkingDays []time.Weekday

	LeadTime        time.Duration
	SlotInterval    time.Duration
	MaxTrip         time.Duration
	ConflictDefault time.Duration

	ExpiryWarningDays    int
	InsuranceWarningDays int
	MinorAge             int

	FallbackDuration time.Duration
	Durations        map[model.AttendanceType]time.Duration
}

// DefaultDurations is the expected length of each attendance type.
func DefaultDurations() map[model.AttendanceType]time.Duration {
	return map[model.AttendanceType]time.Duration{
		model.AttendanceExam:          120 * time.Minute,
		model.AttendanceConsultation:  90 * time.Minute,
		model.AttendanceProcedure:     180 * time.Minute,
		model.AttendanceReturn:        60 * time.Minute,
		model.AttendanceSurgery:       360 * time.Minute,
		model.AttendancePhysiotherapy: 90 * time.Minute,
		model.AttendanceChemotherapy:  240 * time.Minute,
		model.AttendanceRadiotherapy:  120 * time.Minute,
		model.AttendanceDialysis:      300 * time.Minute,
	}
}

func DefaultPolicy() Policy {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.FixedZone("BRT", -3*60*60)
	}
	return Policy{
		Location:             loc,
		OpeningTime:          "06:00",
		ClosingTime:          "18:00",
		WorkingDays:          []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		LeadTime:             24 * time.Hour,
		SlotInterval:         30 * time.Minute,
		MaxTrip:              480 * time.Minute,
		ConflictDefault:      60 * time.Minute,
		ExpiryWarningDays:    30,
		InsuranceWarningDays: 15,
		MinorAge:             18,
		FallbackDuration:     120 * time.Minute,
		Durations:            DefaultDurations(),
	}
}

func (p Policy) Validate() error {
	if p.Location == nil {
		return errors.New("policy: location is required")
	}
	open, closing := p.OpeningTime.Minutes(), p.ClosingTime.Minutes()
	if open < 0 || closing < 0 {
		return fmt.Errorf("policy: malformed operating window %q-%q", p.OpeningTime, p.ClosingTime)
	}
	if open >= closing {
		return fmt.Errorf("policy: opening time %s must precede closing time %s", p.OpeningTime, p.ClosingTime)
	}
	if len(p.WorkingDays) == 0 {
		return errors.New("policy: at least one working day is required")
	}
	if p.LeadTime < 0 {
		return errors.New("policy: lead time must not be negative")
	}
	if p.SlotInterval <= 0 || p.MaxTrip <= 0 || p.ConflictDefault <= 0 || p.FallbackDuration <= 0 {
		return errors.New("policy: durations must be positive")
	}
	for t, d := range p.Durations {
		if d <= 0 {
			return fmt.Errorf("policy: duration for %s must be positive", t)
		}
	}
	return nil
}

func (p Policy) IsWorkingDay(d time.Weekday) bool {
	for _, w := range p.WorkingDays {
		if w == d {
			return true
		}
	}
	return false
}

// NextWorkingDay returns the first working day strictly after day.
func (p Policy) NextWorkingDay(day time.Time) time.Time {
	next := model.CivilDate(day).AddDate(0, 0, 1)
	for i := 0; i < 7; i++ {
		if p.IsWorkingDay(next.Weekday()) {
			return next
		}
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// DurationFor looks up the expected length of an attendance type.
func (p Policy) DurationFor(t model.AttendanceType) time.Duration {
	if d, ok := p.Durations[t]; ok && d > 0 {
		return d
	}
	return p.FallbackDuration
}

// WithinHours reports whether a time of day lies inside the operating window, both ends included.
func (p Policy) WithinHours(c model.ClockTime) bool {
	m := c.Minutes()
	return m >= p.OpeningTime.Minutes() && m <= p.ClosingTime.Minutes()
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "dom": time.Sunday,
	"mon": time.Monday, "seg": time.Monday,
	"tue": time.Tuesday, "ter": time.Tuesday,
	"wed": time.Wednesday, "qua": time.Wednesday,
	"thu": time.Thursday, "qui": time.Thursday,
	"fri": time.Friday, "sex": time.Friday,
	"sat": time.Saturday, "sab": time.Saturday,
}

// ParseWorkingDays reads a comma separated list such as "mon,tue,wed" or "1,2,3" (0 = Sunday).
func ParseWorkingDays(s string) ([]time.Weekday, error) {
	var days []time.Weekday
	seen := map[time.Weekday]bool{}
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		var d time.Weekday
		if n, err := strconv.Atoi(part); err == nil {
			if n < 0 || n > 6 {
				return nil, fmt.Errorf("invalid weekday %q", part)
			}
			d = time.Weekday(n)
		} else {
			w, ok := weekdayNames[part[:min(3, len(part))]]
			if !ok {
				return nil, fmt.Errorf("invalid weekday %q", part)
			}
			d = w
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	return days, nil
}
