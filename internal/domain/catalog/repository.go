package catalog

import (
	"context"
)

// BookRepository defines persistence for the Book aggregate
type BookRepository interface {
	// FindByID finds a book by its ID
	FindByID(ctx context.Context, id int64) (*Book, error)
	// FindByISBN finds a book by ISBN
	FindByISBN(ctx context.Context, isbn string) (*Book, error)
	// Create inserts a new book and assigns its ID
	Create(ctx context.Context, book *Book) error
	// SaveWithLock updates a book guarded by its version
	SaveWithLock(ctx context.Context, book *Book) error
	// Delete removes a book from the catalog
	Delete(ctx context.Context, id int64) error
}
