package circulation

import (
	"context"

	"github.com/library/backend/internal/domain/catalog"
	"github.com/library/backend/internal/domain/circulation"
	"github.com/library/backend/internal/domain/identity"
	"github.com/library/backend/internal/domain/shared"
)

// TransactionScope provides transactional access to the repositories a
// loan transition touches. The loan row, the book's availability counters
// and the history entries commit or roll back as one unit.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides repositories bound to one transaction.
type TransactionalRepositories interface {
	// Loans returns the loan repository scoped to the current transaction
	Loans() circulation.LoanRepository
	// History returns the audit repository scoped to the current transaction
	History() circulation.LoanHistoryRepository
	// Books returns the book repository scoped to the current transaction
	Books() catalog.BookRepository
	// Members returns the member repository scoped to the current transaction
	Members() identity.MemberRepository
	// Processed returns the command token log scoped to the current transaction
	Processed() shared.ProcessedCommandLog
}
