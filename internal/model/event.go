package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit event type.
type EventType string

const (
	EventTypeAppointmentCreated    EventType = "appointment_created"
	EventTypeAppointmentUpdated    EventType = "appointment_updated"
	EventTypeAppointmentConfirmed  EventType = "appointment_confirmed"
	EventTypeAppointmentCancelled  EventType = "appointment_cancelled"
	EventTypeTripStarted           EventType = "trip_started"
	EventTypeTripFinished          EventType = "trip_finished"
	EventTypeAppointmentNoShow     EventType = "appointment_no_show"
	EventTypeAppointmentRated      EventType = "appointment_rated"
	EventTypeReturnTripCreated     EventType = "return_trip_created"
	EventTypeVehicleOdometerUpdate EventType = "vehicle_odometer_updated"
)

// appointment_events is the audit trail, written in the same transaction as the change.
type AppointmentEvent struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	AppointmentID uuid.UUID `gorm:"type:uuid;not null;index"`
	EventType     EventType `gorm:"type:varchar(64);not null;index"`
	Actor         string    `gorm:"type:varchar(100)"`

	Details datatypes.JSON

	CreatedAt time.Time `gorm:"not null;index"`
}

func (e *AppointmentEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

type ResourceType string

const (
	ResourceDriver  ResourceType = "driver"
	ResourceVehicle ResourceType = "vehicle"
	ResourcePatient ResourceType = "patient"
)

// resource_day_locks holds one row per (resource, day) that has ever been scheduled.
// Writers lock these rows so the conflict scan and the insert cannot interleave.
type ResourceDayLock struct {
	ResourceType ResourceType `gorm:"type:varchar(16);primaryKey"`
	ResourceID   uuid.UUID    `gorm:"type:uuid;primaryKey"`
	Day          string       `gorm:"type:varchar(10);primaryKey"`
}

// Less orders lock keys so every transaction acquires them in the same sequence.
func (l ResourceDayLock) Less(o ResourceDayLock) bool {
	if l.Day != o.Day {
		return l.Day < o.Day
	}
	if l.ResourceType != o.ResourceType {
		return l.ResourceType < o.ResourceType
	}
	return l.ResourceID.String() < o.ResourceID.String()
}
