package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leganyst/patient-transport/internal/config"
	"github.com/Leganyst/patient-transport/internal/model"
)

func clockPtr(s string) *model.ClockTime {
	c := model.ClockTime(s)
	return &c
}

func slotOn(day time.Time, dep string, ret *model.ClockTime) *model.Appointment {
	return &model.Appointment{
		ID:                 uuid.New(),
		Date:               model.DateOf(day),
		DepartureTime:      model.ClockTime(dep),
		ExpectedReturnTime: ret,
		Status:             model.AppointmentStatusScheduled,
	}
}

func TestOverlaps_HalfOpen(t *testing.T) {
	loc := config.DefaultPolicy().Location
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	first := slotOn(day, "09:00", clockPtr("10:00"))

	cases := []struct {
		name string
		dep  string
		ret  string
		want bool
	}{
		{"inside", "09:15", "09:45", true},
		{"overlapping tail", "09:30", "10:30", true},
		{"touching end", "10:00", "11:00", false},
		{"touching start", "08:00", "09:00", false},
		{"covering", "08:00", "11:00", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			other := slotOn(day, tc.dep, clockPtr(tc.ret))
			assert.Equal(t, tc.want, Overlaps(first, other, loc, time.Hour))
			assert.Equal(t, tc.want, Overlaps(other, first, loc, time.Hour))
		})
	}
}

func TestOverlaps_DifferentDates(t *testing.T) {
	loc := config.DefaultPolicy().Location
	a := slotOn(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), "09:00", clockPtr("10:00"))
	b := slotOn(time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC), "09:00", clockPtr("10:00"))

	assert.False(t, Overlaps(a, b, loc, time.Hour))
}

func TestOverlaps_DefaultLengthWithoutReturn(t *testing.T) {
	loc := config.DefaultPolicy().Location
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	open := slotOn(day, "09:00", nil)
	assert.True(t, Overlaps(open, slotOn(day, "09:59", clockPtr("10:30")), loc, time.Hour))
	assert.False(t, Overlaps(open, slotOn(day, "10:00", clockPtr("10:30")), loc, time.Hour))
}

func TestFindConflicts(t *testing.T) {
	loc := config.DefaultPolicy().Location
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	driverID := uuid.New()

	busy := slotOn(day, "09:00", clockPtr("10:00"))
	busy.DriverID = driverID
	free := slotOn(day, "11:00", nil)
	free.DriverID = driverID

	cand := slotOn(day, "09:30", clockPtr("10:30"))
	cand.DriverID = driverID

	got := findConflicts(cand, []model.Appointment{*busy, *free}, model.ResourceDriver, loc, time.Hour)
	require.Len(t, got, 1)
	assert.Equal(t, busy.ID, got[0].AppointmentID)
	assert.Equal(t, driverID, got[0].ResourceID)
	assert.Equal(t, model.ClockTime("09:00"), got[0].Start)
	assert.Equal(t, model.ClockTime("10:00"), got[0].End)

	// an appointment never conflicts with its own stored copy
	self := *cand
	assert.Empty(t, findConflicts(cand, []model.Appointment{self}, model.ResourceDriver, loc, time.Hour))
}
