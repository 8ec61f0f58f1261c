package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup by id matches nothing.
var ErrNotFound = errors.New("record not found")

// Store groups the repositories that share one connection or transaction.
type Store interface {
	Appointments() AppointmentRepository
	Directory() DirectoryRepository
	Events() EventRepository
	Locks() LockRepository
	// Transaction runs fn with a Store bound to a single database transaction.
	// Any error returned by fn rolls everything back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Appointments() AppointmentRepository {
	return NewGormAppointmentRepository(s.db)
}

func (s *GormStore) Directory() DirectoryRepository {
	return NewGormDirectoryRepository(s.db)
}

func (s *GormStore) Events() EventRepository {
	return NewGormEventRepository(s.db)
}

func (s *GormStore) Locks() LockRepository {
	return NewGormLockRepository(s.db)
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormStore(tx))
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
