package circulation

import (
	"time"

	"github.com/library/backend/internal/domain/circulation"
)

// LoanResponse is the read-side representation of a loan. The computed
// fields are derived at read time from the service clock, so a loan the
// sweeper has not visited yet still reads as overdue.
type LoanResponse struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	BookID       int64      `json:"book_id"`
	LoanDate     time.Time  `json:"loan_date"`
	DueDate      time.Time  `json:"due_date"`
	ReturnDate   *time.Time `json:"return_date,omitempty"`
	Status       string     `json:"status"`
	FineAmount   string     `json:"fine_amount"`
	FinePaid     bool       `json:"fine_paid"`
	RenewalCount int        `json:"renewal_count"`
	MaxRenewals  int        `json:"max_renewals"`
	Notes        string     `json:"notes,omitempty"`
	IsOverdue    bool       `json:"is_overdue"`
	DaysUntilDue int        `json:"days_until_due"`
	CanRenew     bool       `json:"can_renew"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewLoanResponse builds the read model for a loan as of the given day
func NewLoanResponse(loan *circulation.Loan, today time.Time) *LoanResponse {
	return &LoanResponse{
		ID:           loan.ID,
		UserID:       loan.UserID,
		BookID:       loan.BookID,
		LoanDate:     loan.LoanDate,
		DueDate:      loan.DueDate,
		ReturnDate:   loan.ReturnDate,
		Status:       string(loan.Status),
		FineAmount:   loan.FineAmount.StringFixed(2),
		FinePaid:     loan.FinePaid,
		RenewalCount: loan.RenewalCount,
		MaxRenewals:  loan.MaxRenewals,
		Notes:        loan.Notes,
		IsOverdue:    loan.IsOverdue(today),
		DaysUntilDue: loan.DaysUntilDue(today),
		CanRenew:     loan.CanRenew(),
		CreatedAt:    loan.CreatedAt,
		UpdatedAt:    loan.UpdatedAt,
	}
}

// HistoryEntryResponse is one audit record in wire form
type HistoryEntryResponse struct {
	ID        int64     `json:"id"`
	LoanID    int64     `json:"loan_id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	ActorID   *int64    `json:"actor_id,omitempty"`
	Sequence  int       `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
}

// NewHistoryEntryResponse converts one audit entry
func NewHistoryEntryResponse(entry circulation.LoanHistoryEntry) HistoryEntryResponse {
	return HistoryEntryResponse{
		ID:        entry.ID,
		LoanID:    entry.LoanID,
		Action:    string(entry.Action),
		Detail:    entry.Detail,
		ActorID:   entry.ActorID,
		Sequence:  entry.Sequence,
		CreatedAt: entry.CreatedAt,
	}
}
