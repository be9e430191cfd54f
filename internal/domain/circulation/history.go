package circulation

import (
	"time"
)

// LoanAction identifies the audited action on a loan
type LoanAction string

const (
	ActionCreated        LoanAction = "CREATED"
	ActionRenewed        LoanAction = "RENEWED"
	ActionReturned       LoanAction = "RETURNED"
	ActionOverdue        LoanAction = "OVERDUE"
	ActionFineCalculated LoanAction = "FINE_CALCULATED"
	ActionFinePaid       LoanAction = "FINE_PAID"
)

// LoanHistoryEntry is one append-only audit record. Entries are immutable
// once written and strictly ordered per loan by Sequence, which is the
// loan's version at the time of the write.
type LoanHistoryEntry struct {
	ID        int64      `gorm:"primaryKey;autoIncrement"`
	LoanID    int64      `gorm:"not null;uniqueIndex:ux_loan_history_seq,priority:1"`
	Action    LoanAction `gorm:"not null"`
	Detail    string
	ActorID   *int64
	Sequence  int `gorm:"not null;uniqueIndex:ux_loan_history_seq,priority:2"`
	CreatedAt time.Time
}

// TableName returns the table name for GORM
func (LoanHistoryEntry) TableName() string {
	return "loan_history"
}

// historyRecord is a pending audit record accumulated by the Loan state
// machine during a transition and persisted by the application service in
// the same transaction as the loan itself.
type historyRecord struct {
	Action   LoanAction
	Detail   string
	Sequence int
}
