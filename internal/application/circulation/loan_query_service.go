package circulation

import (
	"context"
	"time"

	"github.com/library/backend/internal/domain/circulation"
)

// LoanQueryService serves the read-side loan endpoints. Queries bypass
// the pipeline and read committed state directly.
type LoanQueryService struct {
	loans   circulation.LoanRepository
	history circulation.LoanHistoryRepository
	now     func() time.Time
}

// NewLoanQueryService creates a new LoanQueryService
func NewLoanQueryService(loans circulation.LoanRepository, history circulation.LoanHistoryRepository) *LoanQueryService {
	return &LoanQueryService{
		loans:   loans,
		history: history,
		now:     time.Now,
	}
}

// WithClock replaces the service clock, for tests.
func (s *LoanQueryService) WithClock(now func() time.Time) *LoanQueryService {
	s.now = now
	return s
}

// GetLoan returns one loan with its computed read-time fields
func (s *LoanQueryService) GetLoan(ctx context.Context, id int64) (*LoanResponse, error) {
	loan, err := s.loans.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewLoanResponse(loan, s.now()), nil
}

// GetHistory returns a loan's audit trail ordered by sequence. The loan
// must exist; an empty trail for an existing loan cannot happen since
// creation itself writes the first entry.
func (s *LoanQueryService) GetHistory(ctx context.Context, loanID int64) ([]HistoryEntryResponse, error) {
	if _, err := s.loans.FindByID(ctx, loanID); err != nil {
		return nil, err
	}
	entries, err := s.history.FindByLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, NewHistoryEntryResponse(entry))
	}
	return out, nil
}
