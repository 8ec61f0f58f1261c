package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled  AppointmentStatus = "agendado"
	AppointmentStatusConfirmed  AppointmentStatus = "confirmado"
	AppointmentStatusInProgress AppointmentStatus = "em_andamento"
	AppointmentStatusCompleted  AppointmentStatus = "concluido"
	AppointmentStatusCancelled  AppointmentStatus = "cancelado"
	AppointmentStatusNoShow     AppointmentStatus = "nao_compareceu"
)

// NonTerminalStatuses are the statuses that still occupy a driver, vehicle and patient.
var NonTerminalStatuses = []AppointmentStatus{
	AppointmentStatusScheduled,
	AppointmentStatusConfirmed,
	AppointmentStatusInProgress,
}

func (s AppointmentStatus) Terminal() bool {
	switch s {
	case AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusConfirmed, AppointmentStatusInProgress,
		AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "baixa"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "alta"
	PriorityUrgent Priority = "urgente"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type AttendanceType string

const (
	AttendanceExam          AttendanceType = "exame"
	AttendanceConsultation  AttendanceType = "consulta"
	AttendanceProcedure     AttendanceType = "procedimento"
	AttendanceReturn        AttendanceType = "retorno"
	AttendanceSurgery       AttendanceType = "cirurgia"
	AttendancePhysiotherapy AttendanceType = "fisioterapia"
	AttendanceChemotherapy  AttendanceType = "quimioterapia"
	AttendanceRadiotherapy  AttendanceType = "radioterapia"
	AttendanceDialysis      AttendanceType = "hemodialise"
)

var AttendanceTypes = []AttendanceType{
	AttendanceExam,
	AttendanceConsultation,
	AttendanceProcedure,
	AttendanceReturn,
	AttendanceSurgery,
	AttendancePhysiotherapy,
	AttendanceChemotherapy,
	AttendanceRadiotherapy,
	AttendanceDialysis,
}

func (t AttendanceType) Valid() bool {
	for _, known := range AttendanceTypes {
		if t == known {
			return true
		}
	}
	return false
}

// RequiresReturnTrip lists the treatments after which the patient is always driven home.
func (t AttendanceType) RequiresReturnTrip() bool {
	switch t {
	case AttendanceSurgery, AttendanceChemotherapy, AttendanceRadiotherapy, AttendanceDialysis:
		return true
	}
	return false
}

// appointments
type Appointment struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	PatientID uuid.UUID `gorm:"type:uuid;not null;index:idx_appt_patient_day"`
	DriverID  uuid.UUID `gorm:"type:uuid;not null;index:idx_appt_driver_day"`
	VehicleID uuid.UUID `gorm:"type:uuid;not null;index:idx_appt_vehicle_day"`

	Date               datatypes.Date `gorm:"not null;index:idx_appt_patient_day;index:idx_appt_driver_day;index:idx_appt_vehicle_day"`
	DepartureTime      ClockTime      `gorm:"type:varchar(5);not null"`
	ExpectedReturnTime *ClockTime     `gorm:"type:varchar(5)"`

	ActualDepartureAt *time.Time
	ActualReturnAt    *time.Time

	DestinationName    string `gorm:"type:varchar(200);not null"`
	DestinationAddress string `gorm:"type:varchar(300)"`
	DestinationCity    string `gorm:"type:varchar(100)"`
	DestinationState   string `gorm:"type:varchar(2)"`
	DestinationPhone   string `gorm:"type:varchar(20)"`

	AttendanceType AttendanceType    `gorm:"type:varchar(32);not null;index"`
	Specialty      string            `gorm:"type:varchar(100)"`
	Priority       Priority          `gorm:"type:varchar(16);not null;index"`
	Status         AppointmentStatus `gorm:"type:varchar(32);not null;index"`

	IsReturnTrip bool `gorm:"not null"`
	// weak reference, no foreign key
	OriginAppointmentID *uuid.UUID `gorm:"type:uuid;index"`
	GenerateReturn      bool       `gorm:"not null"`

	HasCompanion          bool   `gorm:"not null"`
	CompanionName         string `gorm:"type:varchar(200)"`
	CompanionPhone        string `gorm:"type:varchar(20)"`
	CompanionRelationship string `gorm:"type:varchar(50)"`

	OdometerStart *int
	OdometerEnd   *int
	DistanceKm    *int

	PatientRating *int
	ServiceRating *int
	RatingNotes   string `gorm:"type:text"`

	ConfirmedBy        string `gorm:"type:varchar(100)"`
	ConfirmedAt        *time.Time
	CancelledBy        string `gorm:"type:varchar(100)"`
	CancellationReason string `gorm:"type:text"`
	CancelledAt        *time.Time
	NoShowReason       string `gorm:"type:text"`

	Notes     string `gorm:"type:text"`
	TripNotes string `gorm:"type:text"`

	CreatedBy string `gorm:"type:varchar(100)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Day returns the appointment date as UTC midnight.
func (a *Appointment) Day() time.Time {
	return CivilDate(time.Time(a.Date))
}

// DepartureAt is the scheduled departure instant in loc.
func (a *Appointment) DepartureAt(loc *time.Location) time.Time {
	return a.DepartureTime.On(a.Day(), loc)
}

// ReturnAt is the expected return instant in loc, or nil when no return time is set.
func (a *Appointment) ReturnAt(loc *time.Location) *time.Time {
	if a.ExpectedReturnTime == nil || *a.ExpectedReturnTime == "" {
		return nil
	}
	t := a.ExpectedReturnTime.On(a.Day(), loc)
	return &t
}

// Clone returns a deep copy, so guarded mutations can be compared against the original.
func (a *Appointment) Clone() *Appointment {
	c := *a
	c.ExpectedReturnTime = clonePtr(a.ExpectedReturnTime)
	c.ActualDepartureAt = clonePtr(a.ActualDepartureAt)
	c.ActualReturnAt = clonePtr(a.ActualReturnAt)
	c.OriginAppointmentID = clonePtr(a.OriginAppointmentID)
	c.OdometerStart = clonePtr(a.OdometerStart)
	c.OdometerEnd = clonePtr(a.OdometerEnd)
	c.DistanceKm = clonePtr(a.DistanceKm)
	c.PatientRating = clonePtr(a.PatientRating)
	c.ServiceRating = clonePtr(a.ServiceRating)
	c.ConfirmedAt = clonePtr(a.ConfirmedAt)
	c.CancelledAt = clonePtr(a.CancelledAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
