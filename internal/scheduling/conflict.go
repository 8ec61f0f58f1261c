package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/patient-transport/internal/calendar"
	"github.com/Leganyst/patient-transport/internal/model"
)

// Interval is the half-open time an appointment occupies: departure until expected return,
// or departure plus defaultLength when no usable return time is set.
func Interval(a *model.Appointment, loc *time.Location, defaultLength time.Duration) calendar.TimeRange {
	return calendar.WithDefaultEnd(a.DepartureAt(loc), a.ReturnAt(loc), defaultLength)
}

// Overlaps reports whether two appointments on the same date occupy intersecting intervals.
func Overlaps(a, b *model.Appointment, loc *time.Location, defaultLength time.Duration) bool {
	if !calendar.SameDate(a.Day(), b.Day()) {
		return false
	}
	return Interval(a, loc, defaultLength).Overlaps(Interval(b, loc, defaultLength))
}

func findConflicts(
	candidate *model.Appointment,
	existing []model.Appointment,
	resourceType model.ResourceType,
	loc *time.Location,
	defaultLength time.Duration,
) []Conflict {
	var out []Conflict
	for i := range existing {
		other := &existing[i]
		if other.ID == candidate.ID && candidate.ID != uuid.Nil {
			continue
		}
		if !Overlaps(candidate, other, loc, defaultLength) {
			continue
		}
		iv := Interval(other, loc, defaultLength)
		c := Conflict{
			AppointmentID: other.ID,
			ResourceType:  resourceType,
			Date:          other.Day(),
			Start:         other.DepartureTime,
			End:           model.ClockAt(iv.End.Hour(), iv.End.Minute()),
		}
		switch resourceType {
		case model.ResourceDriver:
			c.ResourceID = other.DriverID
		case model.ResourceVehicle:
			c.ResourceID = other.VehicleID
		case model.ResourcePatient:
			c.ResourceID = other.PatientID
		}
		out = append(out, c)
	}
	return out
}
