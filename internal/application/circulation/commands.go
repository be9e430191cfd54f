package circulation

import "fmt"

// Command payloads decoded from the broker. Validation tags are enforced
// at ingress before a command reaches a lane; a violation dead-letters the
// command without retry.

// CreateLoanCommand opens a loan for a member on a book.
type CreateLoanCommand struct {
	UserID int64  `json:"user_id" validate:"required,gt=0"`
	BookID int64  `json:"book_id" validate:"required,gt=0"`
	Notes  string `json:"notes" validate:"max=500"`

	// Token is the command's dedup key, set at ingress rather than
	// decoded from the payload. Recorded inside the transaction so a
	// redelivered command is absorbed even when the post-commit dedup
	// mark was lost.
	Token string `json:"-"`
}

// LaneKey serializes loan creation per member, so capacity checks cannot
// race against each other.
func (c CreateLoanCommand) LaneKey() string {
	return fmt.Sprintf("user:%d", c.UserID)
}

// ReturnLoanCommand terminates a loan. UserID must match the loan's
// borrower and becomes the actor on the audit entries.
type ReturnLoanCommand struct {
	LoanID int64 `json:"loan_id" validate:"required,gt=0"`
	UserID int64 `json:"user_id" validate:"required,gt=0"`

	// Token is the command's dedup key, set at ingress.
	Token string `json:"-"`
}

// LaneKey serializes all transitions of one loan.
func (c ReturnLoanCommand) LaneKey() string {
	return fmt.Sprintf("loan:%d", c.LoanID)
}

// RenewLoanCommand extends a loan's due date.
type RenewLoanCommand struct {
	LoanID int64 `json:"loan_id" validate:"required,gt=0"`
	UserID int64 `json:"user_id" validate:"required,gt=0"`

	// Token is the command's dedup key, set at ingress.
	Token string `json:"-"`
}

// LaneKey serializes all transitions of one loan.
func (c RenewLoanCommand) LaneKey() string {
	return fmt.Sprintf("loan:%d", c.LoanID)
}

// SweepLoanCommand marks a single loan overdue. Enqueued by the sweeper,
// never received from producers.
type SweepLoanCommand struct {
	LoanID int64 `json:"loan_id" validate:"required,gt=0"`

	// Token is the command's dedup key, set at ingress.
	Token string `json:"-"`
}

// LaneKey serializes all transitions of one loan.
func (c SweepLoanCommand) LaneKey() string {
	return fmt.Sprintf("loan:%d", c.LoanID)
}
