package scheduling

import (
	"strings"
	"time"

	"github.com/Leganyst/patient-transport/internal/model"
)

// Lifecycle holds the guarded status transitions:
//
//	agendado -> confirmado -> em_andamento -> concluido
//	agendado|confirmado -> cancelado
//	agendado|confirmado -> nao_compareceu
//
// Every guard runs before the first field is written, so a rejected call leaves the appointment untouched.
type Lifecycle struct {
	rules *RuleEngine
}

func NewLifecycle(rules *RuleEngine) *Lifecycle {
	return &Lifecycle{rules: rules}
}

func (l *Lifecycle) Confirm(a *model.Appointment, actor string, now time.Time) error {
	if a.Status != model.AppointmentStatusScheduled {
		return transitionError(a.Status, "confirm")
	}
	if l.rules.IsPast(a, now) {
		return policyError(CodeAppointmentInPast, "appointment %s has already passed", a.ID)
	}

	at := now.UTC()
	a.Status = model.AppointmentStatusConfirmed
	a.ConfirmedBy = actor
	a.ConfirmedAt = &at
	return nil
}

func (l *Lifecycle) StartTrip(a *model.Appointment, odometerStart *int, now time.Time) error {
	if a.Status != model.AppointmentStatusConfirmed {
		return transitionError(a.Status, "start")
	}
	if odometerStart != nil && *odometerStart < 0 {
		return validationError(CodeInvalidField, "odometer reading must not be negative")
	}

	at := now.UTC()
	a.Status = model.AppointmentStatusInProgress
	a.ActualDepartureAt = &at
	if odometerStart != nil {
		v := *odometerStart
		a.OdometerStart = &v
	}
	return nil
}

func (l *Lifecycle) FinishTrip(a *model.Appointment, odometerEnd *int, notes string, now time.Time) error {
	if a.Status != model.AppointmentStatusInProgress {
		return transitionError(a.Status, "finish")
	}
	var distance *int
	if odometerEnd != nil {
		if *odometerEnd < 0 {
			return validationError(CodeInvalidField, "odometer reading must not be negative")
		}
		if a.OdometerStart != nil {
			if *odometerEnd < *a.OdometerStart {
				return validationError(CodeInvalidField,
					"final odometer %d is below the initial reading %d", *odometerEnd, *a.OdometerStart)
			}
			d := *odometerEnd - *a.OdometerStart
			distance = &d
		}
	}

	at := now.UTC()
	a.Status = model.AppointmentStatusCompleted
	a.ActualReturnAt = &at
	if odometerEnd != nil {
		v := *odometerEnd
		a.OdometerEnd = &v
	}
	a.DistanceKm = distance
	if notes = strings.TrimSpace(notes); notes != "" {
		a.TripNotes = notes
	}
	return nil
}

// Cancel checks state first, then the mandatory reason, then whether the trip already passed.
func (l *Lifecycle) Cancel(a *model.Appointment, reason, actor string, now time.Time) error {
	if !cancellable(a.Status) {
		return transitionError(a.Status, "cancel")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return validationError(CodeMissingField, "cancellation reason is required")
	}
	if l.rules.IsPast(a, now) {
		return policyError(CodeAppointmentInPast, "appointment %s has already passed", a.ID)
	}

	at := now.UTC()
	a.Status = model.AppointmentStatusCancelled
	a.CancellationReason = reason
	a.CancelledBy = actor
	a.CancelledAt = &at
	return nil
}

func (l *Lifecycle) MarkNoShow(a *model.Appointment, reason string) error {
	if !cancellable(a.Status) {
		return transitionError(a.Status, "mark as no-show")
	}
	a.Status = model.AppointmentStatusNoShow
	a.NoShowReason = strings.TrimSpace(reason)
	return nil
}

// Rate records the satisfaction survey of a completed trip. Both ratings range 1..5.
func (l *Lifecycle) Rate(a *model.Appointment, patientRating, serviceRating int, notes string) error {
	if a.Status != model.AppointmentStatusCompleted {
		return transitionError(a.Status, "rate")
	}
	if patientRating < 1 || patientRating > 5 || serviceRating < 1 || serviceRating > 5 {
		return validationError(CodeInvalidField, "ratings must be between 1 and 5")
	}
	a.PatientRating = &patientRating
	a.ServiceRating = &serviceRating
	a.RatingNotes = strings.TrimSpace(notes)
	return nil
}

// CanEdit guards field edits: only before the trip starts and while it is still ahead.
func (l *Lifecycle) CanEdit(a *model.Appointment, now time.Time) error {
	if !cancellable(a.Status) {
		return transitionError(a.Status, "edit")
	}
	if l.rules.IsPast(a, now) {
		return policyError(CodeAppointmentInPast, "appointment %s has already passed", a.ID)
	}
	return nil
}

func cancellable(s model.AppointmentStatus) bool {
	return s == model.AppointmentStatusScheduled || s == model.AppointmentStatusConfirmed
}
