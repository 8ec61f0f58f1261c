package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/patient-transport/internal/calendar"
	"github.com/Leganyst/patient-transport/internal/model"
)

// CheckAvailability runs the availability validator on a candidate without writing anything.
// The returned appointment carries the defaults that a create would apply.
func (s *Scheduler) CheckAvailability(ctx context.Context, in AppointmentInput, excludeID *uuid.UUID) (*Result, error) {
	ctx, span := tracer.Start(ctx, "scheduling.check_availability")
	defer span.End()

	now := s.clock.Now()
	a := &model.Appointment{Status: model.AppointmentStatusScheduled}
	in.applyTo(a)
	if excludeID != nil {
		a.ID = *excludeID
	}

	if err := s.rules.ValidateFields(a); err != nil {
		return nil, err
	}
	dir := s.store.Directory()
	patient, err := lookupPatient(ctx, dir, a.PatientID)
	if err != nil {
		return nil, persistenceError(err)
	}
	s.rules.ApplyDefaults(a, patient, now)

	vr, err := NewValidator(dir, s.store.Appointments(), s.policy).ValidateAll(ctx, a, excludeID, now)
	if err != nil {
		return nil, AsError(err)
	}
	return &Result{Appointment: a, Warnings: vr.Warnings}, nil
}

// SuggestDepartureTimes lists the departures on date, every slot interval from opening,
// at which a trip of the given length fits inside the window and neither the driver nor the
// vehicle is busy. Starts closer than the lead time are skipped.
func (s *Scheduler) SuggestDepartureTimes(
	ctx context.Context,
	driverID, vehicleID uuid.UUID,
	date time.Time,
	length time.Duration,
) ([]model.ClockTime, error) {
	ctx, span := tracer.Start(ctx, "scheduling.suggest_departure_times")
	defer span.End()

	if driverID == uuid.Nil || vehicleID == uuid.Nil {
		return nil, validationError(CodeMissingField, "driver and vehicle are required")
	}
	if length <= 0 {
		length = s.policy.FallbackDuration
	}

	loc := s.policy.Location
	now := s.clock.Now()
	day := model.CivilDate(date)

	if day.Before(model.CivilDate(now.In(loc))) {
		return nil, policyError(CodePastDate, "date %s is in the past", day.Format(time.DateOnly))
	}
	if !s.policy.IsWorkingDay(day.Weekday()) {
		return nil, policyError(CodeNonWorkingDay, "%s is not a working day", day.Weekday())
	}

	v := NewValidator(s.store.Directory(), s.store.Appointments(), s.policy)
	probe := &model.Appointment{DriverID: driverID, VehicleID: vehicleID, Date: model.DateOf(day)}
	snap, err := v.Load(ctx, probe)
	if err != nil {
		return nil, persistenceError(err)
	}
	if err := v.driverEligibility(snap.Driver, snap.Vehicle, day); err != nil {
		return nil, err
	}
	if err := vehicleEligibility(snap.Vehicle, day); err != nil {
		return nil, err
	}

	busyDriver, err := s.store.Appointments().ListNonTerminal(ctx, model.ResourceDriver, driverID, day, nil)
	if err != nil {
		return nil, persistenceError(err)
	}
	busyVehicle, err := s.store.Appointments().ListNonTerminal(ctx, model.ResourceVehicle, vehicleID, day, nil)
	if err != nil {
		return nil, persistenceError(err)
	}

	window := calendar.TimeRange{
		Start: s.policy.OpeningTime.On(day, loc),
		End:   s.policy.ClosingTime.On(day, loc),
	}
	slots, err := calendar.SplitToTimeSlots(window, s.policy.SlotInterval, 0)
	if err != nil {
		return nil, validationError(CodeInvalidField, "%v", err)
	}

	out := []model.ClockTime{}
	for _, slot := range slots {
		if slot.Start.Add(length).After(window.End) {
			break
		}
		if slot.Start.Sub(now) < s.policy.LeadTime {
			continue
		}
		dep := model.ClockAt(slot.Start.Hour(), slot.Start.Minute())
		ret := model.ClockFromMinutes(dep.Minutes() + int(length/time.Minute))
		probe.DepartureTime = dep
		probe.ExpectedReturnTime = &ret

		if len(findConflicts(probe, busyDriver, model.ResourceDriver, loc, s.policy.ConflictDefault)) > 0 ||
			len(findConflicts(probe, busyVehicle, model.ResourceVehicle, loc, s.policy.ConflictDefault)) > 0 {
			continue
		}
		out = append(out, dep)
	}
	return out, nil
}
