package model

import "gorm.io/gorm"

// AutoMigrate creates or updates every table of the scheduling core.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Driver{},
		&Vehicle{},
		&Patient{},
		&Appointment{},
		&AppointmentEvent{},
		&ResourceDayLock{},
	)
}
