package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Leganyst/patient-transport/internal/db"
	"github.com/Leganyst/patient-transport/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := db.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(gdb))

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func clock(s string) *model.ClockTime {
	c := model.ClockTime(s)
	return &c
}

func appointmentOn(day time.Time, dep string, status model.AppointmentStatus, driverID, vehicleID, patientID uuid.UUID) *model.Appointment {
	return &model.Appointment{
		PatientID:          patientID,
		DriverID:           driverID,
		VehicleID:          vehicleID,
		Date:               model.DateOf(day),
		DepartureTime:      model.ClockTime(dep),
		ExpectedReturnTime: clock("11:00"),
		DestinationName:    "Hospital Municipal",
		AttendanceType:     model.AttendanceConsultation,
		Priority:           model.PriorityNormal,
		Status:             status,
	}
}

func TestListNonTerminal(t *testing.T) {
	ctx := context.Background()
	store := NewGormStore(newTestDB(t))
	repo := store.Appointments()

	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	driverID, vehicleID, patientID := uuid.New(), uuid.New(), uuid.New()

	active := appointmentOn(day, "09:00", model.AppointmentStatusScheduled, driverID, vehicleID, patientID)
	cancelled := appointmentOn(day, "12:00", model.AppointmentStatusCancelled, driverID, vehicleID, patientID)
	otherDay := appointmentOn(day.AddDate(0, 0, 1), "09:00", model.AppointmentStatusConfirmed, driverID, vehicleID, patientID)
	otherDriver := appointmentOn(day, "14:00", model.AppointmentStatusInProgress, uuid.New(), vehicleID, uuid.New())

	for _, a := range []*model.Appointment{active, cancelled, otherDay, otherDriver} {
		require.NoError(t, repo.Create(ctx, a))
		require.NotEqual(t, uuid.Nil, a.ID)
	}

	got, err := repo.ListNonTerminal(ctx, model.ResourceDriver, driverID, day, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, active.ID, got[0].ID)
	assert.Equal(t, day, got[0].Day())

	got, err = repo.ListNonTerminal(ctx, model.ResourceVehicle, vehicleID, day, nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = repo.ListNonTerminal(ctx, model.ResourceDriver, driverID, day, &active.ID)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = repo.ListNonTerminal(ctx, model.ResourceType("boat"), driverID, day, nil)
	assert.Error(t, err)
}

func TestGetByID_NotFound(t *testing.T) {
	store := NewGormStore(newTestDB(t))

	_, err := store.Appointments().GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Directory().GetDriver(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransactionRollback(t *testing.T) {
	ctx := context.Background()
	store := NewGormStore(newTestDB(t))
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	boom := errors.New("boom")
	a := appointmentOn(day, "09:00", model.AppointmentStatusScheduled, uuid.New(), uuid.New(), uuid.New())

	err := store.Transaction(ctx, func(tx Store) error {
		require.NoError(t, tx.Appointments().Create(ctx, a))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Appointments().GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocksAcquireIsReentrant(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	store := NewGormStore(gdb)

	driverID := uuid.New()
	keys := []model.ResourceDayLock{
		{ResourceType: model.ResourcePatient, ResourceID: uuid.New(), Day: "2024-06-10"},
		{ResourceType: model.ResourceDriver, ResourceID: driverID, Day: "2024-06-10"},
		{ResourceType: model.ResourceDriver, ResourceID: driverID, Day: "2024-06-10"},
	}

	for i := 0; i < 2; i++ {
		err := store.Transaction(ctx, func(tx Store) error {
			return tx.Locks().Acquire(ctx, keys)
		})
		require.NoError(t, err)
	}

	var n int64
	require.NoError(t, gdb.Model(&model.ResourceDayLock{}).Count(&n).Error)
	assert.Equal(t, int64(2), n)
}

func TestListAndCounts(t *testing.T) {
	ctx := context.Background()
	store := NewGormStore(newTestDB(t))
	repo := store.Appointments()

	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	driverID := uuid.New()

	seed := []struct {
		day    time.Time
		dep    string
		status model.AppointmentStatus
	}{
		{day, "07:00", model.AppointmentStatusScheduled},
		{day, "08:00", model.AppointmentStatusConfirmed},
		{day, "10:00", model.AppointmentStatusCompleted},
		{day.AddDate(0, 0, 1), "07:00", model.AppointmentStatusScheduled},
		{day.AddDate(0, 0, 3), "07:00", model.AppointmentStatusCancelled},
	}
	for _, s := range seed {
		require.NoError(t, repo.Create(ctx, appointmentOn(s.day, s.dep, s.status, driverID, uuid.New(), uuid.New())))
	}

	items, total, err := repo.List(ctx, AppointmentFilter{DriverID: &driverID}, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, items, 2)
	assert.Equal(t, model.ClockTime("07:00"), items[0].DepartureTime)
	assert.Equal(t, model.ClockTime("08:00"), items[1].DepartureTime)

	n, err := repo.Count(ctx, AppointmentFilter{Day: &day})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	to := day.AddDate(0, 0, 1)
	n, err = repo.Count(ctx, AppointmentFilter{From: &day, To: &to, Statuses: []model.AppointmentStatus{model.AppointmentStatusScheduled}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	byStatus, err := repo.CountGrouped(ctx, AppointmentFilter{}, "status")
	require.NoError(t, err)
	assert.Equal(t, int64(2), byStatus[string(model.AppointmentStatusScheduled)])
	assert.Equal(t, int64(1), byStatus[string(model.AppointmentStatusCancelled)])

	_, err = repo.CountGrouped(ctx, AppointmentFilter{}, "notes")
	assert.Error(t, err)
}

func TestFindReturnTrip(t *testing.T) {
	ctx := context.Background()
	store := NewGormStore(newTestDB(t))
	repo := store.Appointments()
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	origin := appointmentOn(day, "07:00", model.AppointmentStatusCompleted, uuid.New(), uuid.New(), uuid.New())
	require.NoError(t, repo.Create(ctx, origin))

	_, err := repo.FindReturnTrip(ctx, origin.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	ret := appointmentOn(day, "13:00", model.AppointmentStatusScheduled, origin.DriverID, origin.VehicleID, origin.PatientID)
	ret.IsReturnTrip = true
	ret.OriginAppointmentID = &origin.ID
	require.NoError(t, repo.Create(ctx, ret))

	found, err := repo.FindReturnTrip(ctx, origin.ID)
	require.NoError(t, err)
	assert.Equal(t, ret.ID, found.ID)
}

func TestUpdateVehicleOdometer(t *testing.T) {
	ctx := context.Background()
	store := NewGormStore(newTestDB(t))
	dir := store.Directory()

	v := &model.Vehicle{
		Plate:           "ABC1D23",
		Kind:            model.VehicleKindVan,
		Capacity:        8,
		Active:          true,
		Available:       true,
		LicensingExpiry: model.DateOf(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)),
		InsuranceValid:  true,
		Odometer:        1000,
	}
	require.NoError(t, dir.CreateVehicle(ctx, v))
	require.NoError(t, dir.UpdateVehicleOdometer(ctx, v.ID, 1080))

	got, err := dir.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 1080, got.Odometer)

	assert.ErrorIs(t, dir.UpdateVehicleOdometer(ctx, uuid.New(), 10), ErrNotFound)
}

func TestEventsAppendAndList(t *testing.T) {
	ctx := context.Background()
	store := NewGormStore(newTestDB(t))
	id := uuid.New()

	require.NoError(t, store.Events().Append(ctx, &model.AppointmentEvent{
		AppointmentID: id,
		EventType:     model.EventTypeAppointmentCreated,
		Actor:         "central",
		Details:       []byte(`{"status":"agendado"}`),
	}))

	events, err := store.Events().ListByAppointment(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventTypeAppointmentCreated, events[0].EventType)
	assert.JSONEq(t, `{"status":"agendado"}`, string(events[0].Details))
}
