package persistence

import (
	"context"
	"errors"

	"github.com/library/backend/internal/domain/catalog"
	"github.com/library/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormBookRepository implements BookRepository using GORM
type GormBookRepository struct {
	db *gorm.DB
}

// NewGormBookRepository creates a new GormBookRepository
func NewGormBookRepository(db *gorm.DB) *GormBookRepository {
	return &GormBookRepository{db: db}
}

// FindByID finds a book by its ID
func (r *GormBookRepository) FindByID(ctx context.Context, id int64) (*catalog.Book, error) {
	var book catalog.Book
	if err := r.db.WithContext(ctx).First(&book, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	book.SyncStoredVersion()
	return &book, nil
}

// FindByISBN finds a book by ISBN
func (r *GormBookRepository) FindByISBN(ctx context.Context, isbn string) (*catalog.Book, error) {
	var book catalog.Book
	if err := r.db.WithContext(ctx).First(&book, "isbn = ?", isbn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	book.SyncStoredVersion()
	return &book, nil
}

// Create inserts a new book and assigns its ID
func (r *GormBookRepository) Create(ctx context.Context, book *catalog.Book) error {
	return r.db.WithContext(ctx).Create(book).Error
}

// SaveWithLock updates a book guarded by its version. The row must still
// hold the exact version the aggregate was loaded with.
func (r *GormBookRepository) SaveWithLock(ctx context.Context, book *catalog.Book) error {
	result := r.db.WithContext(ctx).
		Model(book).
		Where("id = ? AND version = ?", book.ID, book.StoredVersion()).
		Updates(map[string]interface{}{
			"title":            book.Title,
			"author":           book.Author,
			"publisher":        book.Publisher,
			"publication_year": book.PublicationYear,
			"category":         book.Category,
			"description":      book.Description,
			"language":         book.Language,
			"pages":            book.Pages,
			"total_copies":     book.TotalCopies,
			"available_copies": book.AvailableCopies,
			"times_borrowed":   book.TimesBorrowed,
			"version":          book.Version,
			"updated_at":       book.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	book.SyncStoredVersion()
	return nil
}

// Delete removes a book from the catalog
func (r *GormBookRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&catalog.Book{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// WithTx returns a repository bound to the given transaction
func (r *GormBookRepository) WithTx(tx *gorm.DB) *GormBookRepository {
	return &GormBookRepository{db: tx}
}

// Ensure GormBookRepository implements BookRepository
var _ catalog.BookRepository = (*GormBookRepository)(nil)
