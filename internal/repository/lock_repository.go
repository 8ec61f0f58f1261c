package repository

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/patient-transport/internal/model"
)

// LockRepository serialises writers per (resource, day).
type LockRepository interface {
	// Acquire locks every key until the surrounding transaction ends.
	// Keys are deduplicated and taken in a fixed order.
	Acquire(ctx context.Context, keys []model.ResourceDayLock) error
}

type GormLockRepository struct {
	db *gorm.DB
}

func NewGormLockRepository(db *gorm.DB) *GormLockRepository {
	return &GormLockRepository{db: db}
}

func (r *GormLockRepository) Acquire(ctx context.Context, keys []model.ResourceDayLock) error {
	keys = uniqueSorted(keys)
	if len(keys) == 0 {
		return nil
	}

	// Lock rows must exist before they can be locked.
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&keys).
		Error
	if err != nil {
		return fmt.Errorf("ensure lock rows: %w", err)
	}

	for _, k := range keys {
		var row model.ResourceDayLock
		err := r.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("resource_type = ? AND resource_id = ? AND day = ?", k.ResourceType, k.ResourceID, k.Day).
			First(&row).
			Error
		if err != nil {
			return fmt.Errorf("lock %s %s on %s: %w", k.ResourceType, k.ResourceID, k.Day, err)
		}
	}
	return nil
}

func uniqueSorted(keys []model.ResourceDayLock) []model.ResourceDayLock {
	out := make([]model.ResourceDayLock, 0, len(keys))
	seen := make(map[model.ResourceDayLock]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
