package persistence

import (
	"context"

	appcirculation "github.com/library/backend/internal/application/circulation"
	"github.com/library/backend/internal/domain/catalog"
	"github.com/library/backend/internal/domain/circulation"
	"github.com/library/backend/internal/domain/identity"
	"github.com/library/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction. If the
// function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appcirculation.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides repositories bound to one transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Loans returns the loan repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Loans() circulation.LoanRepository {
	return NewGormLoanRepository(r.tx)
}

// History returns the audit repository scoped to the current transaction.
func (r *gormTransactionalRepositories) History() circulation.LoanHistoryRepository {
	return NewGormLoanHistoryRepository(r.tx)
}

// Books returns the book repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Books() catalog.BookRepository {
	return NewGormBookRepository(r.tx)
}

// Members returns the member repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Members() identity.MemberRepository {
	return NewGormMemberRepository(r.tx)
}

// Processed returns the command token log scoped to the current transaction.
func (r *gormTransactionalRepositories) Processed() shared.ProcessedCommandLog {
	return NewGormProcessedCommandLog(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appcirculation.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appcirculation.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
