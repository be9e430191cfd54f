package persistence

import (
	"context"
	"time"

	"github.com/library/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProcessedCommandLog implements ProcessedCommandLog using GORM. Bound
// to a transaction via WithTx, the recorded token commits or rolls back
// together with the transition it guards.
type GormProcessedCommandLog struct {
	db *gorm.DB
}

// NewGormProcessedCommandLog creates a new GormProcessedCommandLog
func NewGormProcessedCommandLog(db *gorm.DB) *GormProcessedCommandLog {
	return &GormProcessedCommandLog{db: db}
}

// Record writes the token, surfacing an existing row as ErrDuplicateCommand
func (r *GormProcessedCommandLog) Record(ctx context.Context, token, routingKey string) error {
	rec := shared.ProcessedCommand{
		Token:       token,
		RoutingKey:  routingKey,
		ProcessedAt: time.Now(),
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrDuplicateCommand
	}
	return nil
}

// PurgeBefore deletes tokens recorded before the cutoff
func (r *GormProcessedCommandLog) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("processed_at < ?", cutoff).
		Delete(&shared.ProcessedCommand{})
	return result.RowsAffected, result.Error
}

// WithTx returns a log bound to the given transaction
func (r *GormProcessedCommandLog) WithTx(tx *gorm.DB) *GormProcessedCommandLog {
	return &GormProcessedCommandLog{db: tx}
}

// Ensure GormProcessedCommandLog implements ProcessedCommandLog
var _ shared.ProcessedCommandLog = (*GormProcessedCommandLog)(nil)
