package circulation

import (
	"context"
	"time"
)

// LoanRepository defines persistence for the Loan aggregate
type LoanRepository interface {
	// FindByID finds a loan by its ID
	FindByID(ctx context.Context, id int64) (*Loan, error)
	// CountOpenByUser counts ACTIVE, RENEWED and OVERDUE loans for a user
	CountOpenByUser(ctx context.Context, userID int64) (int64, error)
	// HasOpenLoanForBook reports whether the user already holds this book
	HasOpenLoanForBook(ctx context.Context, userID, bookID int64) (bool, error)
	// FindDueBefore finds ACTIVE and RENEWED loans whose due date is
	// strictly before the given day; input for the overdue sweep.
	FindDueBefore(ctx context.Context, day time.Time, limit int) ([]Loan, error)
	// FindOpenByBook finds open loans for a book
	FindOpenByBook(ctx context.Context, bookID int64) ([]Loan, error)
	// Create inserts a new loan and assigns its ID
	Create(ctx context.Context, loan *Loan) error
	// SaveWithLock updates a loan guarded by its version
	SaveWithLock(ctx context.Context, loan *Loan) error
}

// LoanHistoryRepository defines persistence for the append-only audit trail
type LoanHistoryRepository interface {
	// Append writes audit entries; entries are never updated or deleted
	Append(ctx context.Context, entries ...LoanHistoryEntry) error
	// FindByLoan returns a loan's entries ordered by sequence
	FindByLoan(ctx context.Context, loanID int64) ([]LoanHistoryEntry, error)
	// HasAction reports whether an entry with the action exists for the
	// loan; defense in depth alongside command dedup.
	HasAction(ctx context.Context, loanID int64, action LoanAction) (bool, error)
}
