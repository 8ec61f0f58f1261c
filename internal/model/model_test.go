package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestParseClock(t *testing.T) {
	c, err := ParseClock("25:00")
	require.Error(t, err)
	assert.Empty(t, c)

	c, err = ParseClock("09:05")
	require.NoError(t, err)
	assert.Equal(t, ClockTime("09:05"), c)
	assert.Equal(t, 9*60+5, c.Minutes())

	c, err = ParseClock("18:00:30")
	require.NoError(t, err)
	assert.Equal(t, ClockTime("18:00"), c)

	assert.Equal(t, -1, ClockTime("bad").Minutes())
	assert.Equal(t, ClockTime("23:59"), ClockFromMinutes(30*60))
}

func TestClockOn(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	got := ClockTime("07:30").On(day, loc)
	assert.Equal(t, time.Date(2024, 6, 10, 7, 30, 0, 0, loc), got)
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range NonTerminalStatuses {
		assert.False(t, s.Terminal(), s)
	}
	assert.True(t, AppointmentStatusCompleted.Terminal())
	assert.True(t, AppointmentStatusCancelled.Terminal())
	assert.True(t, AppointmentStatusNoShow.Terminal())
	assert.False(t, AppointmentStatus("unknown").Valid())
}

func TestRequiresReturnTrip(t *testing.T) {
	assert.True(t, AttendanceSurgery.RequiresReturnTrip())
	assert.True(t, AttendanceDialysis.RequiresReturnTrip())
	assert.False(t, AttendanceConsultation.RequiresReturnTrip())
	assert.False(t, AttendanceReturn.RequiresReturnTrip())
}

func TestPatientAge(t *testing.T) {
	birth := datatypes.Date(time.Date(2008, 6, 11, 0, 0, 0, 0, time.UTC))
	p := Patient{BirthDate: &birth}

	assert.Equal(t, 15, p.AgeOn(time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)))
	assert.True(t, p.IsMinorOn(time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.IsMinorOn(time.Date(2026, 6, 11, 0, 0, 0, 0, time.UTC)))

	unknown := Patient{}
	assert.Equal(t, -1, unknown.AgeOn(time.Now()))
	assert.False(t, unknown.IsMinorOn(time.Now()))
}

func TestAppointmentCloneIsDeep(t *testing.T) {
	ret := ClockTime("11:00")
	odo := 100
	a := &Appointment{
		ID:                 uuid.New(),
		Date:               DateOf(time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)),
		DepartureTime:      "09:00",
		ExpectedReturnTime: &ret,
		OdometerStart:      &odo,
	}

	c := a.Clone()
	*c.ExpectedReturnTime = "12:00"
	*c.OdometerStart = 200

	assert.Equal(t, ClockTime("11:00"), *a.ExpectedReturnTime)
	assert.Equal(t, 100, *a.OdometerStart)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), a.Day())
	assert.Equal(t, time.Date(2024, 6, 10, 11, 0, 0, 0, time.UTC), *a.ReturnAt(time.UTC))
}

func TestLockOrdering(t *testing.T) {
	a := ResourceDayLock{ResourceType: ResourceDriver, ResourceID: uuid.New(), Day: "2024-06-10"}
	b := ResourceDayLock{ResourceType: ResourcePatient, ResourceID: uuid.New(), Day: "2024-06-10"}
	c := ResourceDayLock{ResourceType: ResourceDriver, ResourceID: uuid.New(), Day: "2024-06-11"}

	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(a))
}
