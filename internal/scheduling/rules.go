package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/patient-transport/internal/config"
	"github.com/Leganyst/patient-transport/internal/model"
)

const defaultGuardianRelationship = "responsável"

// RuleEngine applies the static municipal policy: field sanity, defaults,
// operating hours and days, and lead time. It never touches storage.
type RuleEngine struct {
	policy config.Policy
}

func NewRuleEngine(policy config.Policy) *RuleEngine {
	return &RuleEngine{policy: policy}
}

// ValidateFields checks presence and shape of the fields the other rules depend on.
func (r *RuleEngine) ValidateFields(a *model.Appointment) error {
	switch {
	case a.PatientID == uuid.Nil:
		return validationError(CodeMissingField, "patient is required")
	case a.DriverID == uuid.Nil:
		return validationError(CodeMissingField, "driver is required")
	case a.VehicleID == uuid.Nil:
		return validationError(CodeMissingField, "vehicle is required")
	case time.Time(a.Date).IsZero():
		return validationError(CodeMissingField, "date is required")
	case a.DepartureTime == "":
		return validationError(CodeMissingField, "departure time is required")
	case !a.DepartureTime.Valid():
		return validationError(CodeInvalidField, "departure time %q is not HH:MM", a.DepartureTime)
	case a.ExpectedReturnTime != nil && !a.ExpectedReturnTime.Valid():
		return validationError(CodeInvalidField, "expected return time %q is not HH:MM", *a.ExpectedReturnTime)
	case a.DestinationName == "":
		return validationError(CodeMissingField, "destination is required")
	case !a.AttendanceType.Valid():
		return validationError(CodeInvalidField, "unknown attendance type %q", a.AttendanceType)
	case a.Priority != "" && !a.Priority.Valid():
		return validationError(CodeInvalidField, "unknown priority %q", a.Priority)
	}
	return nil
}

// AutoPriority upgrades clinically urgent treatments when the caller left the default priority.
func (r *RuleEngine) AutoPriority(t model.AttendanceType, requested model.Priority) model.Priority {
	if requested != "" && requested != model.PriorityNormal {
		return requested
	}
	switch t {
	case model.AttendanceSurgery, model.AttendanceChemotherapy, model.AttendanceRadiotherapy:
		return model.PriorityHigh
	case model.AttendanceDialysis:
		return model.PriorityUrgent
	}
	return model.PriorityNormal
}

// DefaultReturnTime estimates the return from the attendance type's usual length.
func (r *RuleEngine) DefaultReturnTime(departure model.ClockTime, t model.AttendanceType) model.ClockTime {
	return model.ClockFromMinutes(departure.Minutes() + int(r.policy.DurationFor(t)/time.Minute))
}

// ApplyDefaults fills priority, return time and companion fields. patient may be nil
// when it could not be found; eligibility is reported later by the validator.
func (r *RuleEngine) ApplyDefaults(a *model.Appointment, patient *model.Patient, now time.Time) {
	a.Priority = r.AutoPriority(a.AttendanceType, a.Priority)

	if a.ExpectedReturnTime == nil {
		ret := r.DefaultReturnTime(a.DepartureTime, a.AttendanceType)
		a.ExpectedReturnTime = &ret
	}

	if patient == nil {
		return
	}
	minor := false
	if age := patient.AgeOn(now.In(r.policy.Location)); age >= 0 && age < r.policy.MinorAge {
		minor = true
	}
	if minor || patient.RequiresGuardian {
		a.HasCompanion = true
		if a.CompanionName == "" {
			a.CompanionName = patient.GuardianName
		}
		if a.CompanionPhone == "" {
			a.CompanionPhone = patient.GuardianPhone
		}
		if a.CompanionRelationship == "" && patient.GuardianName != "" {
			a.CompanionRelationship = defaultGuardianRelationship
		}
	}
}

// CheckPolicy runs the trip-length, date, hours, day and lead-time rules in that order.
// With checkLeadTime false only an already elapsed departure is rejected.
func (r *RuleEngine) CheckPolicy(a *model.Appointment, now time.Time, checkLeadTime bool) error {
	loc := r.policy.Location

	dep := a.DepartureTime.Minutes()
	if a.ExpectedReturnTime != nil {
		ret := a.ExpectedReturnTime.Minutes()
		if ret <= dep {
			return validationError(CodeInvalidField,
				"expected return %s must be after departure %s", *a.ExpectedReturnTime, a.DepartureTime)
		}
		if time.Duration(ret-dep)*time.Minute > r.policy.MaxTrip {
			return validationError(CodeTripTooLong,
				"trip of %d minutes exceeds the maximum of %d", ret-dep, int(r.policy.MaxTrip/time.Minute))
		}
	}

	today := model.CivilDate(now.In(loc))
	if a.Day().Before(today) {
		return policyError(CodePastDate, "date %s is in the past", a.Day().Format(time.DateOnly))
	}

	if !r.policy.WithinHours(a.DepartureTime) {
		return policyError(CodeOutsideOperatingHours,
			"departure %s is outside operating hours %s-%s", a.DepartureTime, r.policy.OpeningTime, r.policy.ClosingTime)
	}
	if a.ExpectedReturnTime != nil && !r.policy.WithinHours(*a.ExpectedReturnTime) {
		return policyError(CodeOutsideOperatingHours,
			"return %s is outside operating hours %s-%s", *a.ExpectedReturnTime, r.policy.OpeningTime, r.policy.ClosingTime)
	}

	if !r.policy.IsWorkingDay(a.Day().Weekday()) {
		return policyError(CodeNonWorkingDay, "%s is not a working day", a.Day().Weekday())
	}

	departure := a.DepartureAt(loc)
	if checkLeadTime {
		if departure.Sub(now) < r.policy.LeadTime {
			return policyError(CodeInsufficientLeadTime,
				"departure must be scheduled at least %s ahead", r.policy.LeadTime)
		}
	} else if departure.Before(now) {
		return policyError(CodePastDate, "departure %s has already passed", departure.Format("2006-01-02 15:04"))
	}
	return nil
}

// IsPast reports whether the appointment's departure has already passed.
func (r *RuleEngine) IsPast(a *model.Appointment, now time.Time) bool {
	return a.DepartureAt(r.policy.Location).Before(now)
}
