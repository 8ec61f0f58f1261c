package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/patient-transport/internal/model"
)

type EventRepository interface {
	Append(ctx context.Context, e *model.AppointmentEvent) error
	// Audit trail of one appointment, oldest first.
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]model.AppointmentEvent, error)
}

type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) Append(ctx context.Context, e *model.AppointmentEvent) error {
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("append %s event: %w", e.EventType, err)
	}
	return nil
}

func (r *GormEventRepository) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]model.AppointmentEvent, error) {
	var events []model.AppointmentEvent
	err := r.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		Order("created_at ASC").
		Find(&events).
		Error
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}
