package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/patient-transport/internal/model"
)

// DirectoryRepository reads the eligibility snapshot of drivers, vehicles and patients.
// The only write the scheduling core makes is the vehicle odometer after a trip.
type DirectoryRepository interface {
	GetDriver(ctx context.Context, id uuid.UUID) (*model.Driver, error)
	GetVehicle(ctx context.Context, id uuid.UUID) (*model.Vehicle, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error)

	// Registration, used by seeding and administrative tooling.
	CreateDriver(ctx context.Context, d *model.Driver) error
	CreateVehicle(ctx context.Context, v *model.Vehicle) error
	CreatePatient(ctx context.Context, p *model.Patient) error

	UpdateVehicleOdometer(ctx context.Context, id uuid.UUID, km int) error
}

type GormDirectoryRepository struct {
	db *gorm.DB
}

func NewGormDirectoryRepository(db *gorm.DB) *GormDirectoryRepository {
	return &GormDirectoryRepository{db: db}
}

func (r *GormDirectoryRepository) GetDriver(ctx context.Context, id uuid.UUID) (*model.Driver, error) {
	var d model.Driver
	if err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func (r *GormDirectoryRepository) GetVehicle(ctx context.Context, id uuid.UUID) (*model.Vehicle, error) {
	var v model.Vehicle
	if err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (r *GormDirectoryRepository) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	var p model.Patient
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *GormDirectoryRepository) CreateDriver(ctx context.Context, d *model.Driver) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *GormDirectoryRepository) CreateVehicle(ctx context.Context, v *model.Vehicle) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *GormDirectoryRepository) CreatePatient(ctx context.Context, p *model.Patient) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *GormDirectoryRepository) UpdateVehicleOdometer(ctx context.Context, id uuid.UUID, km int) error {
	res := r.db.WithContext(ctx).
		Model(&model.Vehicle{}).
		Where("id = ?", id).
		Update("odometer", km)
	if res.Error != nil {
		return fmt.Errorf("update odometer of vehicle %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
