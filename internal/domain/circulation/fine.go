package circulation

import (
	"time"

	"github.com/shopspring/decimal"
)

// FineCalculator computes overdue fees. It is a pure function of the
// number of days overdue and a fixed daily rate; no fine accrues before
// the due date, and the amount is immutable once stored on the loan.
type FineCalculator struct {
	// DailyRate is the fee charged per calendar day overdue.
	DailyRate decimal.Decimal
}

// NewFineCalculator creates a calculator with the given daily rate
func NewFineCalculator(dailyRate decimal.Decimal) FineCalculator {
	return FineCalculator{DailyRate: dailyRate}
}

// Fine returns daysOverdue × daily rate, and zero for non-positive input
func (c FineCalculator) Fine(daysOverdue int) decimal.Decimal {
	if daysOverdue <= 0 {
		return decimal.Zero
	}
	return c.DailyRate.Mul(decimal.NewFromInt(int64(daysOverdue)))
}

// DaysOverdue returns the number of whole calendar days between the due
// date and the given day, never negative. Both instants are truncated to
// their UTC date so the result does not depend on time of day.
func DaysOverdue(dueDate, on time.Time) int {
	due := truncateToDate(dueDate)
	day := truncateToDate(on)
	days := int(day.Sub(due).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// DaysUntil returns the number of whole calendar days from the given day
// to the due date; negative when the due date has passed.
func DaysUntil(dueDate, on time.Time) int {
	due := truncateToDate(dueDate)
	day := truncateToDate(on)
	return int(due.Sub(day).Hours() / 24)
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
