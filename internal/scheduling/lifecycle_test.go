package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leganyst/patient-transport/internal/config"
	"github.com/Leganyst/patient-transport/internal/model"
)

func intPtr(v int) *int { return &v }

func newLifecycle() *Lifecycle {
	return NewLifecycle(NewRuleEngine(config.DefaultPolicy()))
}

func TestLifecycle_HappyPath(t *testing.T) {
	loc := saoPaulo(t)
	lc := newLifecycle()
	now := time.Date(2024, 6, 7, 8, 0, 0, 0, loc)
	a := candidate(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), "08:00", "10:00")

	require.NoError(t, lc.Confirm(a, "central", now))
	assert.Equal(t, model.AppointmentStatusConfirmed, a.Status)
	assert.Equal(t, "central", a.ConfirmedBy)
	require.NotNil(t, a.ConfirmedAt)

	require.NoError(t, lc.StartTrip(a, intPtr(1200), now))
	assert.Equal(t, model.AppointmentStatusInProgress, a.Status)
	assert.NotNil(t, a.ActualDepartureAt)

	require.NoError(t, lc.FinishTrip(a, intPtr(1275), "  sem intercorrências ", now.Add(2*time.Hour)))
	assert.Equal(t, model.AppointmentStatusCompleted, a.Status)
	require.NotNil(t, a.DistanceKm)
	assert.Equal(t, 75, *a.DistanceKm)
	assert.Equal(t, "sem intercorrências", a.TripNotes)

	require.NoError(t, lc.Rate(a, 5, 4, "ok"))
	assert.Equal(t, 5, *a.PatientRating)
	assert.Equal(t, 4, *a.ServiceRating)
}

func TestLifecycle_RejectedTransitionsLeaveStateUntouched(t *testing.T) {
	loc := saoPaulo(t)
	lc := newLifecycle()
	now := time.Date(2024, 6, 7, 8, 0, 0, 0, loc)

	ops := map[string]func(a *model.Appointment) error{
		"confirm": func(a *model.Appointment) error { return lc.Confirm(a, "central", now) },
		"start":   func(a *model.Appointment) error { return lc.StartTrip(a, intPtr(10), now) },
		"finish":  func(a *model.Appointment) error { return lc.FinishTrip(a, intPtr(20), "", now) },
		"cancel":  func(a *model.Appointment) error { return lc.Cancel(a, "paciente desistiu", "central", now) },
		"no_show": func(a *model.Appointment) error { return lc.MarkNoShow(a, "ausente") },
		"rate":    func(a *model.Appointment) error { return lc.Rate(a, 5, 5, "") },
	}
	allowed := map[model.AppointmentStatus]map[string]bool{
		model.AppointmentStatusScheduled:  {"confirm": true, "cancel": true, "no_show": true},
		model.AppointmentStatusConfirmed:  {"start": true, "cancel": true, "no_show": true},
		model.AppointmentStatusInProgress: {"finish": true},
		model.AppointmentStatusCompleted:  {"rate": true},
		model.AppointmentStatusCancelled:  {},
		model.AppointmentStatusNoShow:     {},
	}

	for status, ok := range allowed {
		for name, op := range ops {
			if ok[name] {
				continue
			}
			t.Run(string(status)+"/"+name, func(t *testing.T) {
				a := candidate(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), "08:00", "10:00")
				a.Status = status
				before := a.Clone()

				err := op(a)
				require.Error(t, err)
				assert.Equal(t, KindInvalidTransition, KindOf(err))
				assert.Equal(t, before, a)
			})
		}
	}
}

func TestLifecycle_CancelGuards(t *testing.T) {
	loc := saoPaulo(t)
	lc := newLifecycle()
	a := candidate(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), "08:00", "10:00")
	before := a.Clone()

	err := lc.Cancel(a, "   ", "central", time.Date(2024, 6, 7, 8, 0, 0, 0, loc))
	assert.Equal(t, CodeMissingField, CodeOf(err))
	assert.Equal(t, before, a)

	err = lc.Cancel(a, "chuva", "central", time.Date(2024, 6, 10, 9, 0, 0, 0, loc))
	assert.Equal(t, KindPolicy, KindOf(err))
	assert.Equal(t, CodeAppointmentInPast, CodeOf(err))
	assert.Equal(t, before, a)
}

func TestLifecycle_ConfirmPastAppointment(t *testing.T) {
	loc := saoPaulo(t)
	lc := newLifecycle()
	a := candidate(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), "08:00", "10:00")
	before := a.Clone()

	err := lc.Confirm(a, "central", time.Date(2024, 6, 10, 8, 0, 1, 0, loc))
	assert.Equal(t, CodeAppointmentInPast, CodeOf(err))
	assert.Equal(t, before, a)
}

func TestLifecycle_FinishOdometerBelowStart(t *testing.T) {
	loc := saoPaulo(t)
	lc := newLifecycle()
	a := candidate(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), "08:00", "10:00")
	a.Status = model.AppointmentStatusInProgress
	a.OdometerStart = intPtr(500)
	before := a.Clone()

	err := lc.FinishTrip(a, intPtr(499), "", time.Date(2024, 6, 10, 10, 0, 0, 0, loc))
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, before, a)
}

func TestLifecycle_RateRange(t *testing.T) {
	lc := newLifecycle()
	a := candidate(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), "08:00", "10:00")
	a.Status = model.AppointmentStatusCompleted

	assert.Equal(t, CodeInvalidField, CodeOf(lc.Rate(a, 0, 3, "")))
	assert.Equal(t, CodeInvalidField, CodeOf(lc.Rate(a, 3, 6, "")))
	assert.Nil(t, a.PatientRating)
}
