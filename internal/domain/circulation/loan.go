package circulation

import (
	"fmt"
	"time"

	"github.com/library/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// LoanStatus represents the lifecycle state of a loan
type LoanStatus string

const (
	StatusActive   LoanStatus = "ACTIVE"
	StatusRenewed  LoanStatus = "RENEWED"
	StatusOverdue  LoanStatus = "OVERDUE"
	StatusReturned LoanStatus = "RETURNED"
)

// Loan is the aggregate root of the circulation context: one borrowing
// relationship between a member and a book.
//
// Transitions run under lane serialization, so a single loan is never
// mutated by two workers at once; the version column is kept as a second
// line of defense and increments on every committed transition.
type Loan struct {
	shared.BaseAggregateRoot
	UserID       int64           `gorm:"not null;index"`
	BookID       int64           `gorm:"not null;index"`
	LoanDate     time.Time       `gorm:"not null"`
	DueDate      time.Time       `gorm:"not null;index"`
	ReturnDate   *time.Time
	Status       LoanStatus      `gorm:"not null;index;default:'ACTIVE'"`
	FineAmount   decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	FinePaid     bool            `gorm:"not null;default:false"`
	RenewalCount int             `gorm:"not null;default:0"`
	MaxRenewals  int             `gorm:"not null;default:2"`
	Notes        string

	pendingHistory []historyRecord `gorm:"-"`
}

// TableName returns the table name for GORM
func (Loan) TableName() string {
	return "loans"
}

// NewLoan creates a loan in ACTIVE with the due date a fixed number of
// calendar days after the loan date. The ID is assigned when the creation
// commits.
func NewLoan(userID, bookID int64, notes string, today time.Time, periodDays, maxRenewals int) *Loan {
	loanDate := truncateToDate(today)
	loan := &Loan{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		UserID:            userID,
		BookID:            bookID,
		LoanDate:          loanDate,
		DueDate:           loanDate.AddDate(0, 0, periodDays),
		Status:            StatusActive,
		FineAmount:        decimal.Zero,
		RenewalCount:      0,
		MaxRenewals:       maxRenewals,
		Notes:             notes,
	}
	loan.recordHistory(ActionCreated, fmt.Sprintf("Loan created for book %d, due %s", bookID, loan.DueDate.Format("2006-01-02")))
	return loan
}

// Return terminates the loan. Loans in ACTIVE, RENEWED or OVERDUE may be
// returned; a second return is a conflict, not a retryable failure. When
// the return is late the fine is calculated and fixed before the RETURNED
// transition, as its own versioned step.
func (l *Loan) Return(today time.Time, calc FineCalculator) error {
	if l.Status == StatusReturned {
		return shared.ErrLoanAlreadyReturned
	}

	returnDate := truncateToDate(today)
	if days := DaysOverdue(l.DueDate, returnDate); days > 0 {
		l.FineAmount = calc.Fine(days)
		l.IncrementVersion()
		l.recordHistory(ActionFineCalculated, fmt.Sprintf("Fine of %s for %d day(s) overdue", l.FineAmount.StringFixed(2), days))
	}

	l.ReturnDate = &returnDate
	l.Status = StatusReturned
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	l.recordHistory(ActionReturned, fmt.Sprintf("Returned on %s", returnDate.Format("2006-01-02")))
	return nil
}

// Renew extends the due date by the loan period counted from the current
// due date, not from today, so a late renewal cannot stack extra time.
// Renewing an overdue loan is allowed but does not clear fine obligations
// already calculated.
func (l *Loan) Renew(periodDays int) error {
	if l.Status == StatusReturned {
		return shared.ErrLoanNotRenewable
	}
	if l.RenewalCount >= l.MaxRenewals {
		return shared.ErrRenewalLimitReached
	}

	l.DueDate = l.DueDate.AddDate(0, 0, periodDays)
	l.RenewalCount++
	l.Status = StatusRenewed
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	l.recordHistory(ActionRenewed, fmt.Sprintf("Renewal %d of %d, new due date %s", l.RenewalCount, l.MaxRenewals, l.DueDate.Format("2006-01-02")))
	return nil
}

// MarkOverdue transitions an ACTIVE or RENEWED loan past its due date to
// OVERDUE. It reports whether the loan changed: re-running the sweep on a
// loan that is already OVERDUE (or RETURNED, or not yet due) is a no-op
// and writes no duplicate history entry.
func (l *Loan) MarkOverdue(today time.Time) bool {
	if l.Status != StatusActive && l.Status != StatusRenewed {
		return false
	}
	days := DaysOverdue(l.DueDate, today)
	if days <= 0 {
		return false
	}

	l.Status = StatusOverdue
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	l.recordHistory(ActionOverdue, fmt.Sprintf("Marked overdue, %d day(s) past due date", days))
	return true
}

// PayFine settles the fine on a returned loan. The amount itself stays
// immutable; only the paid flag toggles.
func (l *Loan) PayFine() error {
	if l.Status != StatusReturned || l.FineAmount.LessThanOrEqual(decimal.Zero) {
		return shared.ErrInvalidState
	}
	if l.FinePaid {
		return shared.ErrInvalidState
	}

	l.FinePaid = true
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	l.recordHistory(ActionFinePaid, fmt.Sprintf("Fine of %s paid", l.FineAmount.StringFixed(2)))
	return nil
}

// IsOverdue reports whether the loan is past due and not yet returned
func (l *Loan) IsOverdue(today time.Time) bool {
	if l.Status == StatusReturned {
		return false
	}
	return DaysOverdue(l.DueDate, today) > 0
}

// DaysUntilDue returns the days remaining before the due date, zero for
// returned loans and negative when overdue.
func (l *Loan) DaysUntilDue(today time.Time) int {
	if l.Status == StatusReturned {
		return 0
	}
	return DaysUntil(l.DueDate, today)
}

// CanRenew reports whether a renew command would currently be accepted
func (l *Loan) CanRenew() bool {
	return l.Status != StatusReturned && l.RenewalCount < l.MaxRenewals
}

// IsOpen reports whether the loan still holds a book copy
func (l *Loan) IsOpen() bool {
	return l.Status == StatusActive || l.Status == StatusRenewed || l.Status == StatusOverdue
}

// recordHistory queues an audit record at the loan's current version
func (l *Loan) recordHistory(action LoanAction, detail string) {
	l.pendingHistory = append(l.pendingHistory, historyRecord{
		Action:   action,
		Detail:   detail,
		Sequence: l.Version,
	})
}

// TakeHistory drains the audit records queued by the last transition.
// The application service persists them, stamped with the loan ID and an
// optional actor, inside the same transaction as the loan itself.
func (l *Loan) TakeHistory(actorID *int64) []LoanHistoryEntry {
	entries := make([]LoanHistoryEntry, 0, len(l.pendingHistory))
	for _, rec := range l.pendingHistory {
		entries = append(entries, LoanHistoryEntry{
			LoanID:   l.ID,
			Action:   rec.Action,
			Detail:   rec.Detail,
			ActorID:  actorID,
			Sequence: rec.Sequence,
		})
	}
	l.pendingHistory = nil
	return entries
}
