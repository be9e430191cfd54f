package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/library/backend/internal/domain/circulation"
	"github.com/library/backend/internal/domain/shared"
	"gorm.io/gorm"
)

var openStatuses = []circulation.LoanStatus{
	circulation.StatusActive,
	circulation.StatusRenewed,
	circulation.StatusOverdue,
}

// GormLoanRepository implements LoanRepository using GORM
type GormLoanRepository struct {
	db *gorm.DB
}

// NewGormLoanRepository creates a new GormLoanRepository
func NewGormLoanRepository(db *gorm.DB) *GormLoanRepository {
	return &GormLoanRepository{db: db}
}

// FindByID finds a loan by its ID
func (r *GormLoanRepository) FindByID(ctx context.Context, id int64) (*circulation.Loan, error) {
	var loan circulation.Loan
	if err := r.db.WithContext(ctx).First(&loan, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	loan.SyncStoredVersion()
	return &loan, nil
}

// CountOpenByUser counts ACTIVE, RENEWED and OVERDUE loans for a user
func (r *GormLoanRepository) CountOpenByUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&circulation.Loan{}).
		Where("user_id = ? AND status IN ?", userID, openStatuses).
		Count(&count).Error
	return count, err
}

// HasOpenLoanForBook reports whether the user already holds this book
func (r *GormLoanRepository) HasOpenLoanForBook(ctx context.Context, userID, bookID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&circulation.Loan{}).
		Where("user_id = ? AND book_id = ? AND status IN ?", userID, bookID, openStatuses).
		Count(&count).Error
	return count > 0, err
}

// FindDueBefore finds ACTIVE and RENEWED loans due strictly before the given day
func (r *GormLoanRepository) FindDueBefore(ctx context.Context, day time.Time, limit int) ([]circulation.Loan, error) {
	var loans []circulation.Loan
	query := r.db.WithContext(ctx).
		Where("status IN ? AND due_date < ?",
			[]circulation.LoanStatus{circulation.StatusActive, circulation.StatusRenewed}, day).
		Order("id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&loans).Error; err != nil {
		return nil, err
	}
	for i := range loans {
		loans[i].SyncStoredVersion()
	}
	return loans, nil
}

// FindOpenByBook finds open loans for a book
func (r *GormLoanRepository) FindOpenByBook(ctx context.Context, bookID int64) ([]circulation.Loan, error) {
	var loans []circulation.Loan
	err := r.db.WithContext(ctx).
		Where("book_id = ? AND status IN ?", bookID, openStatuses).
		Order("id").
		Find(&loans).Error
	if err != nil {
		return nil, err
	}
	for i := range loans {
		loans[i].SyncStoredVersion()
	}
	return loans, nil
}

// Create inserts a new loan and assigns its ID
func (r *GormLoanRepository) Create(ctx context.Context, loan *circulation.Loan) error {
	return r.db.WithContext(ctx).Create(loan).Error
}

// SaveWithLock updates a loan guarded by its version. The row must still
// hold the exact version the aggregate was loaded with; anything else means
// a concurrent writer got there first. Lane serialization should make
// conflicts impossible; a failed check is surfaced as a transient error so
// the command goes through the retry path.
func (r *GormLoanRepository) SaveWithLock(ctx context.Context, loan *circulation.Loan) error {
	result := r.db.WithContext(ctx).
		Model(loan).
		Where("id = ? AND version = ?", loan.ID, loan.StoredVersion()).
		Updates(map[string]interface{}{
			"due_date":      loan.DueDate,
			"return_date":   loan.ReturnDate,
			"status":        loan.Status,
			"fine_amount":   loan.FineAmount,
			"fine_paid":     loan.FinePaid,
			"renewal_count": loan.RenewalCount,
			"version":       loan.Version,
			"updated_at":    loan.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	loan.SyncStoredVersion()
	return nil
}

// WithTx returns a repository bound to the given transaction
func (r *GormLoanRepository) WithTx(tx *gorm.DB) *GormLoanRepository {
	return &GormLoanRepository{db: tx}
}

// Ensure GormLoanRepository implements LoanRepository
var _ circulation.LoanRepository = (*GormLoanRepository)(nil)
