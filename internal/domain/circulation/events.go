package circulation

import (
	"time"

	"github.com/library/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event types published after committed loan transitions. They feed the
// out-of-process notification consumers over the broker.
const (
	EventLoanCreated  = "loan.created"
	EventLoanReturned = "loan.returned"
	EventLoanRenewed  = "loan.renewed"
	EventLoanOverdue  = "loan.overdue"
)

const aggregateTypeLoan = "Loan"

// LoanCreatedEvent is emitted when a loan creation commits
type LoanCreatedEvent struct {
	shared.BaseDomainEvent
	UserID   int64     `json:"user_id"`
	BookID   int64     `json:"book_id"`
	LoanDate time.Time `json:"loan_date"`
	DueDate  time.Time `json:"due_date"`
}

// NewLoanCreatedEvent creates a LoanCreatedEvent from a committed loan
func NewLoanCreatedEvent(loan *Loan) *LoanCreatedEvent {
	return &LoanCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventLoanCreated, aggregateTypeLoan, loan.ID),
		UserID:          loan.UserID,
		BookID:          loan.BookID,
		LoanDate:        loan.LoanDate,
		DueDate:         loan.DueDate,
	}
}

// LoanReturnedEvent is emitted when a return commits. OnTime lets the
// notification consumer pick between the on-time and late templates.
type LoanReturnedEvent struct {
	shared.BaseDomainEvent
	UserID      int64           `json:"user_id"`
	BookID      int64           `json:"book_id"`
	ReturnDate  time.Time       `json:"return_date"`
	DueDate     time.Time       `json:"due_date"`
	FineAmount  decimal.Decimal `json:"fine_amount"`
	DaysOverdue int             `json:"days_overdue"`
	OnTime      bool            `json:"on_time"`
}

// NewLoanReturnedEvent creates a LoanReturnedEvent from a committed return
func NewLoanReturnedEvent(loan *Loan, daysOverdue int) *LoanReturnedEvent {
	var returnDate time.Time
	if loan.ReturnDate != nil {
		returnDate = *loan.ReturnDate
	}
	return &LoanReturnedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventLoanReturned, aggregateTypeLoan, loan.ID),
		UserID:          loan.UserID,
		BookID:          loan.BookID,
		ReturnDate:      returnDate,
		DueDate:         loan.DueDate,
		FineAmount:      loan.FineAmount,
		DaysOverdue:     daysOverdue,
		OnTime:          daysOverdue == 0,
	}
}

// LoanRenewedEvent is emitted when a renewal commits
type LoanRenewedEvent struct {
	shared.BaseDomainEvent
	UserID       int64     `json:"user_id"`
	BookID       int64     `json:"book_id"`
	OldDueDate   time.Time `json:"old_due_date"`
	NewDueDate   time.Time `json:"new_due_date"`
	RenewalCount int       `json:"renewal_count"`
	MaxRenewals  int       `json:"max_renewals"`
}

// NewLoanRenewedEvent creates a LoanRenewedEvent from a committed renewal
func NewLoanRenewedEvent(loan *Loan, oldDueDate time.Time) *LoanRenewedEvent {
	return &LoanRenewedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventLoanRenewed, aggregateTypeLoan, loan.ID),
		UserID:          loan.UserID,
		BookID:          loan.BookID,
		OldDueDate:      oldDueDate,
		NewDueDate:      loan.DueDate,
		RenewalCount:    loan.RenewalCount,
		MaxRenewals:     loan.MaxRenewals,
	}
}

// LoanOverdueEvent is emitted when the overdue sweep transitions a loan
type LoanOverdueEvent struct {
	shared.BaseDomainEvent
	UserID      int64     `json:"user_id"`
	BookID      int64     `json:"book_id"`
	DueDate     time.Time `json:"due_date"`
	DaysOverdue int       `json:"days_overdue"`
}

// NewLoanOverdueEvent creates a LoanOverdueEvent from a committed sweep transition
func NewLoanOverdueEvent(loan *Loan, daysOverdue int) *LoanOverdueEvent {
	return &LoanOverdueEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventLoanOverdue, aggregateTypeLoan, loan.ID),
		UserID:          loan.UserID,
		BookID:          loan.BookID,
		DueDate:         loan.DueDate,
		DaysOverdue:     daysOverdue,
	}
}
