package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/library/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormDeadLetterRepository implements DeadLetterRepository using GORM
type GormDeadLetterRepository struct {
	db *gorm.DB
}

// NewGormDeadLetterRepository creates a new GormDeadLetterRepository
func NewGormDeadLetterRepository(db *gorm.DB) *GormDeadLetterRepository {
	return &GormDeadLetterRepository{db: db}
}

// Save persists a dead-letter entry
func (r *GormDeadLetterRepository) Save(ctx context.Context, entry *shared.DeadLetterEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindByID retrieves a single entry by ID
func (r *GormDeadLetterRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.DeadLetterEntry, error) {
	var entry shared.DeadLetterEntry
	if err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// FindDead retrieves parked entries with pagination
func (r *GormDeadLetterRepository) FindDead(ctx context.Context, page, pageSize int) ([]*shared.DeadLetterEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var total int64
	query := r.db.WithContext(ctx).Model(&shared.DeadLetterEntry{}).
		Where("status = ?", shared.DeadLetterStatusDead)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []*shared.DeadLetterEntry
	err := query.
		Order("failed_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Update updates an existing entry
func (r *GormDeadLetterRepository) Update(ctx context.Context, entry *shared.DeadLetterEntry) error {
	return r.db.WithContext(ctx).Save(entry).Error
}

// CountByReason returns the number of parked entries per reason
func (r *GormDeadLetterRepository) CountByReason(ctx context.Context) (map[shared.DeadLetterReason]int64, error) {
	type row struct {
		Reason shared.DeadLetterReason
		Count  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&shared.DeadLetterEntry{}).
		Select("reason, COUNT(*) as count").
		Where("status = ?", shared.DeadLetterStatusDead).
		Group("reason").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[shared.DeadLetterReason]int64, len(rows))
	for _, r := range rows {
		counts[r.Reason] = r.Count
	}
	return counts, nil
}

// WithTx returns a repository bound to the given transaction
func (r *GormDeadLetterRepository) WithTx(tx *gorm.DB) *GormDeadLetterRepository {
	return &GormDeadLetterRepository{db: tx}
}

// Ensure GormDeadLetterRepository implements DeadLetterRepository
var _ shared.DeadLetterRepository = (*GormDeadLetterRepository)(nil)
