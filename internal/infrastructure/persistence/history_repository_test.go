package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/library/backend/internal/domain/circulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormLoanHistoryRepository_AppendAndFind(t *testing.T) {
	db := setupTestDB(t)
	loanRepo := NewGormLoanRepository(db)
	histRepo := NewGormLoanHistoryRepository(db)
	ctx := context.Background()

	today := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	loan := circulation.NewLoan(1, 1, "", today, 14, 2)
	require.NoError(t, loanRepo.Create(ctx, loan))

	require.NoError(t, histRepo.Append(ctx, loan.TakeHistory(nil)...))

	require.NoError(t, loan.Renew(14))
	require.NoError(t, loanRepo.SaveWithLock(ctx, loan))
	require.NoError(t, histRepo.Append(ctx, loan.TakeHistory(nil)...))

	entries, err := histRepo.FindByLoan(ctx, loan.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, circulation.ActionCreated, entries[0].Action)
	assert.Equal(t, circulation.ActionRenewed, entries[1].Action)
	assert.Less(t, entries[0].Sequence, entries[1].Sequence)
}

func TestGormLoanHistoryRepository_Append_Empty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormLoanHistoryRepository(db)

	require.NoError(t, repo.Append(context.Background()))
}

func TestGormLoanHistoryRepository_DuplicateSequenceRejected(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormLoanHistoryRepository(db)
	ctx := context.Background()

	first := circulation.LoanHistoryEntry{LoanID: 1, Action: circulation.ActionCreated, Sequence: 1}
	require.NoError(t, repo.Append(ctx, first))

	dup := circulation.LoanHistoryEntry{LoanID: 1, Action: circulation.ActionRenewed, Sequence: 1}
	err := repo.Append(ctx, dup)
	assert.Error(t, err)
}

func TestGormLoanHistoryRepository_HasAction(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormLoanHistoryRepository(db)
	ctx := context.Background()

	entry := circulation.LoanHistoryEntry{LoanID: 5, Action: circulation.ActionReturned, Sequence: 2}
	require.NoError(t, repo.Append(ctx, entry))

	has, err := repo.HasAction(ctx, 5, circulation.ActionReturned)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = repo.HasAction(ctx, 5, circulation.ActionOverdue)
	require.NoError(t, err)
	assert.False(t, has)
}
