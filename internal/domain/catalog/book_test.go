package catalog

import (
	"testing"

	"github.com/library/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBook(t *testing.T) {
	t.Run("creates book with all copies available", func(t *testing.T) {
		book, err := NewBook("9780134190440", "The Go Programming Language", "Donovan", 3)
		require.NoError(t, err)

		assert.Equal(t, "9780134190440", book.ISBN)
		assert.Equal(t, 3, book.TotalCopies)
		assert.Equal(t, 3, book.AvailableCopies)
		assert.Equal(t, 0, book.TimesBorrowed)
		assert.True(t, book.IsAvailable())
		assert.Equal(t, 1, book.Version)
	})

	t.Run("fails with missing fields", func(t *testing.T) {
		_, err := NewBook("", "Title", "Author", 1)
		require.ErrorIs(t, err, shared.ErrInvalidInput)

		_, err = NewBook("9780134190440", "", "Author", 1)
		require.ErrorIs(t, err, shared.ErrInvalidInput)

		_, err = NewBook("9780134190440", "Title", "", 1)
		require.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("fails with negative copies", func(t *testing.T) {
		_, err := NewBook("9780134190440", "Title", "Author", -1)
		require.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("allows zero copies", func(t *testing.T) {
		book, err := NewBook("9780134190440", "Title", "Author", 0)
		require.NoError(t, err)
		assert.False(t, book.IsAvailable())
	})
}

func TestBookReserveRelease(t *testing.T) {
	t.Run("reserve takes one copy and counts the borrow", func(t *testing.T) {
		book, _ := NewBook("9780134190440", "Title", "Author", 2)

		require.NoError(t, book.Reserve())
		assert.Equal(t, 1, book.AvailableCopies)
		assert.Equal(t, 2, book.TotalCopies)
		assert.Equal(t, 1, book.TimesBorrowed)
		assert.Equal(t, 2, book.Version)
	})

	t.Run("reserve fails with no copies left", func(t *testing.T) {
		book, _ := NewBook("9780134190440", "Title", "Author", 1)
		require.NoError(t, book.Reserve())

		err := book.Reserve()
		require.ErrorIs(t, err, shared.ErrNoAvailableCopies)
		assert.Equal(t, 0, book.AvailableCopies)
		assert.Equal(t, 1, book.TimesBorrowed)
	})

	t.Run("release gives one copy back", func(t *testing.T) {
		book, _ := NewBook("9780134190440", "Title", "Author", 2)
		require.NoError(t, book.Reserve())

		require.NoError(t, book.Release())
		assert.Equal(t, 2, book.AvailableCopies)
		assert.Equal(t, 1, book.TimesBorrowed)
	})

	t.Run("release beyond the total is an invalid state", func(t *testing.T) {
		book, _ := NewBook("9780134190440", "Title", "Author", 1)
		require.ErrorIs(t, book.Release(), shared.ErrInvalidState)
	})
}

func TestBookAddCopies(t *testing.T) {
	book, _ := NewBook("9780134190440", "Title", "Author", 1)
	require.NoError(t, book.Reserve())

	require.NoError(t, book.AddCopies(2))
	assert.Equal(t, 3, book.TotalCopies)
	assert.Equal(t, 2, book.AvailableCopies)

	require.ErrorIs(t, book.AddCopies(0), shared.ErrInvalidInput)
	require.ErrorIs(t, book.AddCopies(-1), shared.ErrInvalidInput)
}

func TestBookApplyUpdate(t *testing.T) {
	strPtr := func(s string) *string { return &s }
	intPtr := func(n int) *int { return &n }

	t.Run("applies only the provided fields", func(t *testing.T) {
		book, _ := NewBook("9780134190440", "Title", "Author", 2)

		require.NoError(t, book.ApplyUpdate(BookUpdate{
			Title:    strPtr("New Title"),
			Category: strPtr("computing"),
			Pages:    intPtr(380),
		}))

		assert.Equal(t, "New Title", book.Title)
		assert.Equal(t, "Author", book.Author)
		assert.Equal(t, "computing", book.Category)
		assert.Equal(t, 380, book.Pages)
		assert.Equal(t, 2, book.TotalCopies)
		assert.Equal(t, 2, book.Version)
	})

	t.Run("grows the total and frees the new copies", func(t *testing.T) {
		book, _ := NewBook("9780134190440", "Title", "Author", 2)
		require.NoError(t, book.Reserve())

		require.NoError(t, book.ApplyUpdate(BookUpdate{TotalCopies: intPtr(5)}))
		assert.Equal(t, 5, book.TotalCopies)
		assert.Equal(t, 4, book.AvailableCopies)
	})

	t.Run("rejects shrinking below copies on loan", func(t *testing.T) {
		book, _ := NewBook("9780134190440", "Title", "Author", 3)
		require.NoError(t, book.Reserve())
		require.NoError(t, book.Reserve())

		err := book.ApplyUpdate(BookUpdate{TotalCopies: intPtr(1)})
		require.Error(t, err)
		assert.Equal(t, shared.KindConflict, shared.KindOf(err))
		assert.Equal(t, 3, book.TotalCopies)
		assert.Equal(t, 1, book.AvailableCopies)
	})

	t.Run("allows shrinking exactly to copies on loan", func(t *testing.T) {
		book, _ := NewBook("9780134190440", "Title", "Author", 3)
		require.NoError(t, book.Reserve())
		require.NoError(t, book.Reserve())

		require.NoError(t, book.ApplyUpdate(BookUpdate{TotalCopies: intPtr(2)}))
		assert.Equal(t, 2, book.TotalCopies)
		assert.Equal(t, 0, book.AvailableCopies)
	})
}

func TestBookCanDelete(t *testing.T) {
	book, _ := NewBook("9780134190440", "Title", "Author", 2)
	assert.True(t, book.CanDelete())

	require.NoError(t, book.Reserve())
	assert.False(t, book.CanDelete())

	require.NoError(t, book.Release())
	assert.True(t, book.CanDelete())
}
