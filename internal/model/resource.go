package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type VehicleKind string

const (
	VehicleKindVan       VehicleKind = "van"
	VehicleKindAmbulance VehicleKind = "ambulancia"
	VehicleKindMinibus   VehicleKind = "micro_onibus"
	VehicleKindCar       VehicleKind = "veiculo_comum"
)

// drivers
type Driver struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name  string    `gorm:"type:varchar(200);not null"`
	Phone string    `gorm:"type:varchar(20)"`

	LicenseNumber   string         `gorm:"type:varchar(20)"`
	LicenseCategory string         `gorm:"type:varchar(3);not null"`
	LicenseExpiry   datatypes.Date `gorm:"not null"`

	HasHealthCertificate      bool `gorm:"not null"`
	HasPatientTransportCourse bool `gorm:"not null"`

	Active    bool `gorm:"not null;index"`
	Available bool `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (d *Driver) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// vehicles
type Vehicle struct {
	ID    uuid.UUID   `gorm:"type:uuid;primaryKey"`
	Plate string      `gorm:"type:varchar(10);not null;uniqueIndex"`
	Model string      `gorm:"type:varchar(100)"`
	Kind  VehicleKind `gorm:"type:varchar(20);not null"`

	Capacity           int  `gorm:"not null"`
	WheelchairCapacity int  `gorm:"not null"`
	FullyAccessible    bool `gorm:"not null"`

	Active        bool `gorm:"not null;index"`
	Available     bool `gorm:"not null"`
	InMaintenance bool `gorm:"not null"`

	LicensingExpiry datatypes.Date  `gorm:"not null"`
	InsuranceValid  bool            `gorm:"not null"`
	InsuranceExpiry *datatypes.Date

	Odometer        int `gorm:"not null"`
	NextServiceKm   *int
	NextServiceDate *datatypes.Date

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (v *Vehicle) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// patients
type Patient struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Name      string          `gorm:"type:varchar(200);not null"`
	BirthDate *datatypes.Date

	Phone   string `gorm:"type:varchar(20)"`
	Address string `gorm:"type:varchar(300)"`
	City    string `gorm:"type:varchar(100)"`
	State   string `gorm:"type:varchar(2)"`

	UsesWheelchair   bool `gorm:"not null"`
	ReducedMobility  bool `gorm:"not null"`
	RequiresGuardian bool `gorm:"not null"`

	GuardianName  string `gorm:"type:varchar(200)"`
	GuardianPhone string `gorm:"type:varchar(20)"`

	Active bool `gorm:"not null;index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Patient) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// AgeOn returns the completed years at the given date, or -1 when the birth date is unknown.
func (p *Patient) AgeOn(at time.Time) int {
	if p.BirthDate == nil {
		return -1
	}
	birth := time.Time(*p.BirthDate)
	age := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		age--
	}
	return age
}

// IsMinorOn reports whether the patient is under 18 at the given date.
func (p *Patient) IsMinorOn(at time.Time) bool {
	age := p.AgeOn(at)
	return age >= 0 && age < 18
}
