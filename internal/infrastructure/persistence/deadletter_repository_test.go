package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/library/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDeadCommand(key string) shared.Command {
	return shared.NewCommand("loan.create_request", []byte(`{"user_id":1,"book_id":2}`), key)
}

func TestGormDeadLetterRepository_SaveAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormDeadLetterRepository(db)
	ctx := context.Background()

	entry := shared.NewDeadLetterEntry(newDeadCommand("cmd-1"), shared.ReasonRejected, shared.KindUnavailable, "no available copies")
	require.NoError(t, repo.Save(ctx, entry))

	found, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "loan.create_request", found.RoutingKey)
	assert.Equal(t, shared.ReasonRejected, found.Reason)
	assert.Equal(t, shared.DeadLetterStatusDead, found.Status)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormDeadLetterRepository_FindDead_Pagination(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormDeadLetterRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		entry := shared.NewDeadLetterEntry(newDeadCommand(uuid.NewString()), shared.ReasonExhausted, shared.KindTransient, "db down")
		require.NoError(t, repo.Save(ctx, entry))
	}

	// A replayed entry no longer shows up as dead.
	replayed := shared.NewDeadLetterEntry(newDeadCommand(uuid.NewString()), shared.ReasonExhausted, shared.KindTransient, "db down")
	require.NoError(t, repo.Save(ctx, replayed))
	require.NoError(t, replayed.MarkReplayed())
	require.NoError(t, repo.Update(ctx, replayed))

	entries, total, err := repo.FindDead(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, entries, 3)

	entries, total, err = repo.FindDead(ctx, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, entries, 2)
}

func TestGormDeadLetterRepository_CountByReason(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormDeadLetterRepository(db)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		entry := shared.NewDeadLetterEntry(newDeadCommand(uuid.NewString()), shared.ReasonMalformed, shared.KindValidation, "bad json")
		require.NoError(t, repo.Save(ctx, entry))
	}
	entry := shared.NewDeadLetterEntry(newDeadCommand(uuid.NewString()), shared.ReasonExhausted, shared.KindTransient, "db down")
	require.NoError(t, repo.Save(ctx, entry))

	counts, err := repo.CountByReason(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[shared.ReasonMalformed])
	assert.Equal(t, int64(1), counts[shared.ReasonExhausted])
	assert.Zero(t, counts[shared.ReasonRejected])
}
