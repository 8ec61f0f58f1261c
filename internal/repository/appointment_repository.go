package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/patient-transport/internal/model"
)

// AppointmentFilter narrows list and count queries. Zero fields are ignored.
type AppointmentFilter struct {
	Statuses  []model.AppointmentStatus
	PatientID *uuid.UUID
	DriverID  *uuid.UUID
	VehicleID *uuid.UUID
	Day       *time.Time
	From      *time.Time
	To        *time.Time
}

type AppointmentRepository interface {
	// Create a new appointment.
	Create(ctx context.Context, a *model.Appointment) error
	// Save writes every column of an existing appointment.
	Save(ctx context.Context, a *model.Appointment) error
	// Get an appointment by id.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	// Get an appointment by id and lock its row until the transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	// Non-terminal appointments of one resource on one date, optionally skipping excludeID.
	ListNonTerminal(
		ctx context.Context,
		resourceType model.ResourceType,
		resourceID uuid.UUID,
		day time.Time,
		excludeID *uuid.UUID,
	) ([]model.Appointment, error)
	// The return trip already derived from an origin appointment, if any.
	FindReturnTrip(ctx context.Context, originID uuid.UUID) (*model.Appointment, error)
	// Paged list ordered by date and departure time.
	List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]model.Appointment, int64, error)
	Count(ctx context.Context, f AppointmentFilter) (int64, error)
	// Counts grouped by one of: status, attendance_type, priority.
	CountGrouped(ctx context.Context, f AppointmentFilter, column string) (map[string]int64, error)
}

// GORM implementation.
type GormAppointmentRepository struct {
	db *gorm.DB
}

func NewGormAppointmentRepository(db *gorm.DB) *GormAppointmentRepository {
	return &GormAppointmentRepository{db: db}
}

func (r *GormAppointmentRepository) Create(ctx context.Context, a *model.Appointment) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

func (r *GormAppointmentRepository) Save(ctx context.Context, a *model.Appointment) error {
	if err := r.db.WithContext(ctx).Save(a).Error; err != nil {
		return fmt.Errorf("save appointment %s: %w", a.ID, err)
	}
	return nil
}

func (r *GormAppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var a model.Appointment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *GormAppointmentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var a model.Appointment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&a, "id = ?", id).
		Error
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

var resourceColumns = map[model.ResourceType]string{
	model.ResourceDriver:  "driver_id",
	model.ResourceVehicle: "vehicle_id",
	model.ResourcePatient: "patient_id",
}

func (r *GormAppointmentRepository) ListNonTerminal(
	ctx context.Context,
	resourceType model.ResourceType,
	resourceID uuid.UUID,
	day time.Time,
	excludeID *uuid.UUID,
) ([]model.Appointment, error) {
	column, ok := resourceColumns[resourceType]
	if !ok {
		return nil, fmt.Errorf("unknown resource type %q", resourceType)
	}

	q := r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where(column+" = ?", resourceID).
		Where("date = ?", model.DateOf(day)).
		Where("status IN ?", model.NonTerminalStatuses)

	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}

	var out []model.Appointment
	if err := q.Order("departure_time ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list non-terminal appointments: %w", err)
	}
	return out, nil
}

func (r *GormAppointmentRepository) FindReturnTrip(ctx context.Context, originID uuid.UUID) (*model.Appointment, error) {
	var a model.Appointment
	err := r.db.WithContext(ctx).
		Where("origin_appointment_id = ? AND is_return_trip = ?", originID, true).
		First(&a).
		Error
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *GormAppointmentRepository) filtered(ctx context.Context, f AppointmentFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Appointment{})

	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.PatientID != nil {
		q = q.Where("patient_id = ?", *f.PatientID)
	}
	if f.DriverID != nil {
		q = q.Where("driver_id = ?", *f.DriverID)
	}
	if f.VehicleID != nil {
		q = q.Where("vehicle_id = ?", *f.VehicleID)
	}
	if f.Day != nil {
		q = q.Where("date = ?", model.DateOf(*f.Day))
	}
	if f.From != nil {
		q = q.Where("date >= ?", model.DateOf(*f.From))
	}
	if f.To != nil {
		q = q.Where("date <= ?", model.DateOf(*f.To))
	}
	return q
}

func (r *GormAppointmentRepository) List(
	ctx context.Context,
	f AppointmentFilter,
	limit, offset int,
) ([]model.Appointment, int64, error) {
	var (
		items []model.Appointment
		total int64
	)

	q := r.filtered(ctx, f)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Order("date ASC").Order("departure_time ASC").Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}

	return items, total, nil
}

func (r *GormAppointmentRepository) Count(ctx context.Context, f AppointmentFilter) (int64, error) {
	var n int64
	if err := r.filtered(ctx, f).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count appointments: %w", err)
	}
	return n, nil
}

var groupableColumns = map[string]bool{
	"status":          true,
	"attendance_type": true,
	"priority":        true,
}

func (r *GormAppointmentRepository) CountGrouped(
	ctx context.Context,
	f AppointmentFilter,
	column string,
) (map[string]int64, error) {
	if !groupableColumns[column] {
		return nil, fmt.Errorf("cannot group appointments by %q", column)
	}

	var rows []struct {
		GroupKey string
		N        int64
	}
	err := r.filtered(ctx, f).
		Select(column + " AS group_key, COUNT(*) AS n").
		Group(column).
		Scan(&rows).
		Error
	if err != nil {
		return nil, fmt.Errorf("count appointments by %s: %w", column, err)
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.GroupKey] = row.N
	}
	return out, nil
}
