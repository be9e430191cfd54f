package persistence

import (
	"context"

	"github.com/library/backend/internal/domain/circulation"
	"gorm.io/gorm"
)

// GormLoanHistoryRepository implements LoanHistoryRepository using GORM
type GormLoanHistoryRepository struct {
	db *gorm.DB
}

// NewGormLoanHistoryRepository creates a new GormLoanHistoryRepository
func NewGormLoanHistoryRepository(db *gorm.DB) *GormLoanHistoryRepository {
	return &GormLoanHistoryRepository{db: db}
}

// Append writes audit entries; entries are never updated or deleted
func (r *GormLoanHistoryRepository) Append(ctx context.Context, entries ...circulation.LoanHistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

// FindByLoan returns a loan's entries ordered by sequence
func (r *GormLoanHistoryRepository) FindByLoan(ctx context.Context, loanID int64) ([]circulation.LoanHistoryEntry, error) {
	var entries []circulation.LoanHistoryEntry
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("sequence").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// HasAction reports whether an entry with the action exists for the loan
func (r *GormLoanHistoryRepository) HasAction(ctx context.Context, loanID int64, action circulation.LoanAction) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&circulation.LoanHistoryEntry{}).
		Where("loan_id = ? AND action = ?", loanID, action).
		Count(&count).Error
	return count > 0, err
}

// WithTx returns a repository bound to the given transaction
func (r *GormLoanHistoryRepository) WithTx(tx *gorm.DB) *GormLoanHistoryRepository {
	return &GormLoanHistoryRepository{db: tx}
}

// Ensure GormLoanHistoryRepository implements LoanHistoryRepository
var _ circulation.LoanHistoryRepository = (*GormLoanHistoryRepository)(nil)
