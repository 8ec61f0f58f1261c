package scheduling

import (
	"fmt"
	"time"

	"github.com/Leganyst/patient-transport/internal/config"
	"github.com/Leganyst/patient-transport/internal/model"
)

const (
	returnDestinationName = "Retorno - Residência"
	systemActor           = "sistema"
)

// ReturnTripGenerator derives the trip home from a completed appointment.
type ReturnTripGenerator struct {
	policy config.Policy
}

func NewReturnTripGenerator(policy config.Policy) *ReturnTripGenerator {
	return &ReturnTripGenerator{policy: policy}
}

// Wants reports whether finishing origin should produce a return trip.
func (g *ReturnTripGenerator) Wants(origin *model.Appointment) bool {
	if origin.IsReturnTrip {
		return false
	}
	return origin.GenerateReturn || origin.AttendanceType.RequiresReturnTrip()
}

// Build returns the return-trip candidate. It is not validated against other appointments here.
func (g *ReturnTripGenerator) Build(origin *model.Appointment, patient *model.Patient, now time.Time) (*model.Appointment, error) {
	if origin.Status != model.AppointmentStatusCompleted {
		return nil, transitionError(origin.Status, "derive a return trip from")
	}
	if origin.IsReturnTrip {
		return nil, validationError(CodeInvalidField, "appointment %s is already a return trip", origin.ID)
	}
	if patient == nil {
		return nil, newError(KindIneligible, CodePatientIneligible, "patient not found")
	}

	day, departure := g.Schedule(origin, now)
	ret := model.ClockFromMinutes(departure.Minutes() + int(g.policy.DurationFor(model.AttendanceReturn)/time.Minute))
	originID := origin.ID

	return &model.Appointment{
		PatientID:             origin.PatientID,
		DriverID:              origin.DriverID,
		VehicleID:             origin.VehicleID,
		Date:                  model.DateOf(day),
		DepartureTime:         departure,
		ExpectedReturnTime:    &ret,
		DestinationName:       returnDestinationName,
		DestinationAddress:    patient.Address,
		DestinationCity:       patient.City,
		DestinationState:      patient.State,
		DestinationPhone:      patient.Phone,
		AttendanceType:        model.AttendanceReturn,
		Specialty:             origin.Specialty,
		Priority:              origin.Priority,
		Status:                model.AppointmentStatusScheduled,
		IsReturnTrip:          true,
		OriginAppointmentID:   &originID,
		HasCompanion:          origin.HasCompanion,
		CompanionName:         origin.CompanionName,
		CompanionPhone:        origin.CompanionPhone,
		CompanionRelationship: origin.CompanionRelationship,
		Notes:                 fmt.Sprintf("Retorno automático do agendamento %s", origin.ID),
		CreatedBy:             systemActor,
	}, nil
}

// Schedule picks the return date and time: the origin's expected return (or now, if later)
// on the same day while that is a working day and the whole return trip ends by closing
// time, otherwise the opening time of the next working day.
func (g *ReturnTripGenerator) Schedule(origin *model.Appointment, now time.Time) (time.Time, model.ClockTime) {
	loc := g.policy.Location
	local := now.In(loc)
	today := model.CivilDate(local)

	day := origin.Day()
	if day.Before(today) {
		day = today
	}

	target := origin.DepartureTime.Minutes() + int(g.policy.DurationFor(origin.AttendanceType)/time.Minute)
	if origin.ExpectedReturnTime != nil && origin.ExpectedReturnTime.Valid() {
		target = origin.ExpectedReturnTime.Minutes()
	}
	if !day.Equal(origin.Day()) {
		target = 0
	}
	if day.Equal(today) {
		nowMinutes := local.Hour()*60 + local.Minute()
		if local.Second() > 0 || local.Nanosecond() > 0 {
			nowMinutes++
		}
		target = max(target, nowMinutes)
	}
	if target < g.policy.OpeningTime.Minutes() {
		target = g.policy.OpeningTime.Minutes()
	}

	length := int(g.policy.DurationFor(model.AttendanceReturn) / time.Minute)
	if g.policy.IsWorkingDay(day.Weekday()) && target+length <= g.policy.ClosingTime.Minutes() {
		return day, model.ClockFromMinutes(target)
	}
	return g.policy.NextWorkingDay(day), g.policy.OpeningTime
}
