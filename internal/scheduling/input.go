package scheduling

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/patient-transport/internal/model"
)

type Destination struct {
	Name    string
	Address string
	City    string
	State   string
	Phone   string
}

// AppointmentInput carries the caller-editable fields of an appointment,
// used both to create one and to replace the fields of an existing one.
type AppointmentInput struct {
	PatientID uuid.UUID
	DriverID  uuid.UUID
	VehicleID uuid.UUID

	Date               time.Time
	DepartureTime      model.ClockTime
	ExpectedReturnTime *model.ClockTime

	Destination    Destination
	AttendanceType model.AttendanceType
	Specialty      string
	Priority       model.Priority

	HasCompanion          bool
	CompanionName         string
	CompanionPhone        string
	CompanionRelationship string

	GenerateReturn bool
	Notes          string
	Actor          string
}

func (in AppointmentInput) applyTo(a *model.Appointment) {
	a.PatientID = in.PatientID
	a.DriverID = in.DriverID
	a.VehicleID = in.VehicleID
	a.Date = model.DateOf(in.Date)
	a.DepartureTime = in.DepartureTime
	a.ExpectedReturnTime = nil
	if in.ExpectedReturnTime != nil && *in.ExpectedReturnTime != "" {
		ret := *in.ExpectedReturnTime
		a.ExpectedReturnTime = &ret
	}
	a.DestinationName = strings.TrimSpace(in.Destination.Name)
	a.DestinationAddress = in.Destination.Address
	a.DestinationCity = in.Destination.City
	a.DestinationState = in.Destination.State
	a.DestinationPhone = in.Destination.Phone
	a.AttendanceType = in.AttendanceType
	a.Specialty = in.Specialty
	a.Priority = in.Priority
	a.HasCompanion = in.HasCompanion
	a.CompanionName = in.CompanionName
	a.CompanionPhone = in.CompanionPhone
	a.CompanionRelationship = in.CompanionRelationship
	a.GenerateReturn = in.GenerateReturn
	a.Notes = in.Notes
}

// InputFrom returns the editable fields of an existing appointment, so an unchanged edit can be replayed.
func InputFrom(a *model.Appointment) AppointmentInput {
	in := AppointmentInput{
		PatientID:     a.PatientID,
		DriverID:      a.DriverID,
		VehicleID:     a.VehicleID,
		Date:          a.Day(),
		DepartureTime: a.DepartureTime,
		Destination: Destination{
			Name:    a.DestinationName,
			Address: a.DestinationAddress,
			City:    a.DestinationCity,
			State:   a.DestinationState,
			Phone:   a.DestinationPhone,
		},
		AttendanceType:        a.AttendanceType,
		Specialty:             a.Specialty,
		Priority:              a.Priority,
		HasCompanion:          a.HasCompanion,
		CompanionName:         a.CompanionName,
		CompanionPhone:        a.CompanionPhone,
		CompanionRelationship: a.CompanionRelationship,
		GenerateReturn:        a.GenerateReturn,
		Notes:                 a.Notes,
	}
	if a.ExpectedReturnTime != nil {
		ret := *a.ExpectedReturnTime
		in.ExpectedReturnTime = &ret
	}
	return in
}
