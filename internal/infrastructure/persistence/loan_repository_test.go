package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/library/backend/internal/domain/circulation"
	"github.com/library/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoan(userID, bookID int64, today time.Time) *circulation.Loan {
	return circulation.NewLoan(userID, bookID, "", today, 14, 2)
}

func TestGormLoanRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormLoanRepository(db)
	ctx := context.Background()

	today := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	loan := newTestLoan(1, 42, today)

	err := repo.Create(ctx, loan)
	require.NoError(t, err)
	require.NotZero(t, loan.ID)

	found, err := repo.FindByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.UserID)
	assert.Equal(t, int64(42), found.BookID)
	assert.Equal(t, circulation.StatusActive, found.Status)
	assert.Equal(t, loan.DueDate.Format("2006-01-02"), found.DueDate.Format("2006-01-02"))
}

func TestGormLoanRepository_FindByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormLoanRepository(db)

	_, err := repo.FindByID(context.Background(), 9999)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormLoanRepository_CountOpenByUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormLoanRepository(db)
	ctx := context.Background()
	today := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for bookID := int64(1); bookID <= 3; bookID++ {
		require.NoError(t, repo.Create(ctx, newTestLoan(7, bookID, today)))
	}

	returned := newTestLoan(7, 4, today)
	require.NoError(t, returned.Return(today, circulation.FineCalculator{}))
	require.NoError(t, repo.Create(ctx, returned))

	count, err := repo.CountOpenByUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = repo.CountOpenByUser(ctx, 8)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGormLoanRepository_HasOpenLoanForBook(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormLoanRepository(db)
	ctx := context.Background()
	today := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, newTestLoan(7, 1, today)))

	has, err := repo.HasOpenLoanForBook(ctx, 7, 1)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = repo.HasOpenLoanForBook(ctx, 7, 2)
	require.NoError(t, err)
	assert.False(t, has)

	has, err = repo.HasOpenLoanForBook(ctx, 8, 1)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestGormLoanRepository_FindDueBefore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormLoanRepository(db)
	ctx := context.Background()

	// Due 2026-03-15.
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	dueSoon := newTestLoan(1, 1, start)
	require.NoError(t, repo.Create(ctx, dueSoon))

	// Due 2026-04-14.
	later := newTestLoan(2, 2, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Create(ctx, later))

	sweepDay := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	due, err := repo.FindDueBefore(ctx, sweepDay, 100)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, dueSoon.ID, due[0].ID)
}

func TestGormLoanRepository_SaveWithLock(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormLoanRepository(db)
	ctx := context.Background()
	today := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	loan := newTestLoan(1, 1, today)
	require.NoError(t, repo.Create(ctx, loan))

	require.NoError(t, loan.Renew(14))
	require.NoError(t, repo.SaveWithLock(ctx, loan))

	found, err := repo.FindByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.StatusRenewed, found.Status)
	assert.Equal(t, 1, found.RenewalCount)
	assert.Equal(t, loan.Version, found.Version)

	// A copy loaded before another writer committed loses the version check.
	stale, err := repo.FindByID(ctx, loan.ID)
	require.NoError(t, err)
	require.True(t, loan.MarkOverdue(loan.DueDate.AddDate(0, 0, 1)))
	require.NoError(t, repo.SaveWithLock(ctx, loan))

	require.True(t, stale.MarkOverdue(stale.DueDate.AddDate(0, 0, 1)))
	err = repo.SaveWithLock(ctx, stale)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
}

func TestGormLoanRepository_SaveWithLock_InterleavedWriter(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormLoanRepository(db)
	ctx := context.Background()

	loan := newTestLoan(1, 1, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Create(ctx, loan))

	first, err := repo.FindByID(ctx, loan.ID)
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, loan.ID)
	require.NoError(t, err)

	// The first writer marks the loan overdue, bumping the version once.
	require.True(t, first.MarkOverdue(first.DueDate.AddDate(0, 0, 1)))
	require.NoError(t, repo.SaveWithLock(ctx, first))

	// The second writer holds the old row and performs a late return,
	// which bumps the version twice. Even though its final version is
	// above the stored one, the save must not clobber the first write.
	lateDay := second.DueDate.AddDate(0, 0, 7)
	calc := circulation.NewFineCalculator(decimal.RequireFromString("50.00"))
	require.NoError(t, second.Return(lateDay, calc))
	err = repo.SaveWithLock(ctx, second)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

	found, err := repo.FindByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.StatusOverdue, found.Status)
}

func TestGormLoanRepository_SaveWithLock_DoubleIncrement(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormLoanRepository(db)
	ctx := context.Background()

	loan := newTestLoan(1, 1, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Create(ctx, loan))

	// A late return increments the version twice: once for the fine,
	// once for the RETURNED transition.
	lateDay := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	calc := circulation.NewFineCalculator(decimal.RequireFromString("50.00"))
	require.NoError(t, loan.Return(lateDay, calc))
	require.NoError(t, repo.SaveWithLock(ctx, loan))

	found, err := repo.FindByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.StatusReturned, found.Status)
	assert.Equal(t, loan.Version, found.Version)
	assert.True(t, found.FineAmount.IsPositive())
}
