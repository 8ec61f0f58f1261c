package scheduling

import (
	"context"
	"math"
	"time"

	"github.com/Leganyst/patient-transport/internal/model"
	"github.com/Leganyst/patient-transport/internal/repository"
)

// Statistics is the dashboard summary. JSON names are consumed by existing reports.
type Statistics struct {
	Total          int64 `json:"total"`
	TodayTotal     int64 `json:"hoje_total"`
	Pending        int64 `json:"pendentes"`
	ConfirmedToday int64 `json:"confirmados_hoje"`
	Completed      int64 `json:"concluidos"`
	Cancelled      int64 `json:"cancelados"`
}

type PeriodStatistics struct {
	From             string           `json:"from"`
	To               string           `json:"to"`
	Total            int64            `json:"total"`
	ByStatus         map[string]int64 `json:"by_status"`
	ByAttendanceType map[string]int64 `json:"by_attendance_type"`
	ByPriority       map[string]int64 `json:"by_priority"`
	CompletionRate   float64          `json:"completion_rate"`
	AvgTripMinutes   float64          `json:"avg_trip_minutes"`
	TotalKm          int64            `json:"total_km"`
}

// ReminderDigest feeds the external reminder sweep.
type ReminderDigest struct {
	ToConfirm []model.Appointment `json:"to_confirm"`
	ToRemind  []model.Appointment `json:"to_remind"`
	Late      []model.Appointment `json:"late"`
}

func (s *Scheduler) today() (time.Time, time.Time) {
	now := s.clock.Now()
	return now, model.CivilDate(now.In(s.policy.Location))
}

func (s *Scheduler) Statistics(ctx context.Context) (*Statistics, error) {
	ctx, span := tracer.Start(ctx, "scheduling.statistics")
	defer span.End()

	_, today := s.today()
	repo := s.store.Appointments()

	st := &Statistics{}
	queries := []struct {
		dst *int64
		f   repository.AppointmentFilter
	}{
		{&st.Total, repository.AppointmentFilter{}},
		{&st.TodayTotal, repository.AppointmentFilter{Day: &today}},
		{&st.Pending, repository.AppointmentFilter{Statuses: []model.AppointmentStatus{model.AppointmentStatusScheduled}}},
		{&st.ConfirmedToday, repository.AppointmentFilter{Day: &today, Statuses: []model.AppointmentStatus{
			model.AppointmentStatusConfirmed, model.AppointmentStatusInProgress,
		}}},
		{&st.Completed, repository.AppointmentFilter{Statuses: []model.AppointmentStatus{model.AppointmentStatusCompleted}}},
		{&st.Cancelled, repository.AppointmentFilter{Statuses: []model.AppointmentStatus{model.AppointmentStatusCancelled}}},
	}

	for _, q := range queries {
		n, err := repo.Count(ctx, q.f)
		if err != nil {
			return nil, persistenceError(err)
		}
		*q.dst = n
	}
	return st, nil
}

// PeriodStatistics aggregates appointments dated within [from, to].
func (s *Scheduler) PeriodStatistics(ctx context.Context, from, to time.Time) (*PeriodStatistics, error) {
	ctx, span := tracer.Start(ctx, "scheduling.period_statistics")
	defer span.End()

	from, to = model.CivilDate(from), model.CivilDate(to)
	if to.Before(from) {
		return nil, validationError(CodeInvalidField, "period end %s precedes start %s",
			to.Format(time.DateOnly), from.Format(time.DateOnly))
	}

	repo := s.store.Appointments()
	f := repository.AppointmentFilter{From: &from, To: &to}

	out := &PeriodStatistics{From: from.Format(time.DateOnly), To: to.Format(time.DateOnly)}
	var err error
	if out.ByStatus, err = repo.CountGrouped(ctx, f, "status"); err != nil {
		return nil, persistenceError(err)
	}
	if out.ByAttendanceType, err = repo.CountGrouped(ctx, f, "attendance_type"); err != nil {
		return nil, persistenceError(err)
	}
	if out.ByPriority, err = repo.CountGrouped(ctx, f, "priority"); err != nil {
		return nil, persistenceError(err)
	}
	for _, n := range out.ByStatus {
		out.Total += n
	}

	completedFilter := f
	completedFilter.Statuses = []model.AppointmentStatus{model.AppointmentStatusCompleted}
	completed, _, err := repo.List(ctx, completedFilter, 0, 0)
	if err != nil {
		return nil, persistenceError(err)
	}

	if out.Total > 0 {
		out.CompletionRate = round2(float64(len(completed)) / float64(out.Total) * 100)
	}

	var (
		tripMinutes float64
		trips       int
	)
	for _, a := range completed {
		if a.DistanceKm != nil {
			out.TotalKm += int64(*a.DistanceKm)
		}
		if a.ActualDepartureAt != nil && a.ActualReturnAt != nil && a.ActualReturnAt.After(*a.ActualDepartureAt) {
			tripMinutes += a.ActualReturnAt.Sub(*a.ActualDepartureAt).Minutes()
			trips++
		}
	}
	if trips > 0 {
		out.AvgTripMinutes = round2(tripMinutes / float64(trips))
	}
	return out, nil
}

// ReminderDigest lists what the reminder sweep should act on: agendado trips for today
// and tomorrow still awaiting confirmation, confirmado trips today, and those of them
// whose departure has already passed.
func (s *Scheduler) ReminderDigest(ctx context.Context) (*ReminderDigest, error) {
	ctx, span := tracer.Start(ctx, "scheduling.reminder_digest")
	defer span.End()

	now, today := s.today()
	tomorrow := today.AddDate(0, 0, 1)
	repo := s.store.Appointments()

	toConfirm, _, err := repo.List(ctx, repository.AppointmentFilter{
		From:     &today,
		To:       &tomorrow,
		Statuses: []model.AppointmentStatus{model.AppointmentStatusScheduled},
	}, 0, 0)
	if err != nil {
		return nil, persistenceError(err)
	}

	confirmedToday, _, err := repo.List(ctx, repository.AppointmentFilter{
		Day:      &today,
		Statuses: []model.AppointmentStatus{model.AppointmentStatusConfirmed},
	}, 0, 0)
	if err != nil {
		return nil, persistenceError(err)
	}

	digest := &ReminderDigest{
		ToConfirm: nonNil(toConfirm),
		ToRemind:  nonNil(confirmedToday),
		Late:      []model.Appointment{},
	}
	for _, a := range confirmedToday {
		if a.DepartureAt(s.policy.Location).Before(now) {
			digest.Late = append(digest.Late, a)
		}
	}
	return digest, nil
}

func nonNil(in []model.Appointment) []model.Appointment {
	if in == nil {
		return []model.Appointment{}
	}
	return in
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
