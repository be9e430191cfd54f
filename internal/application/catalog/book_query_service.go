package catalog

import (
	"context"

	"github.com/library/backend/internal/domain/catalog"
)

// BookQueryService serves the read-side book endpoint
type BookQueryService struct {
	books catalog.BookRepository
}

// NewBookQueryService creates a new BookQueryService
func NewBookQueryService(books catalog.BookRepository) *BookQueryService {
	return &BookQueryService{books: books}
}

// GetBook returns one book with its availability
func (s *BookQueryService) GetBook(ctx context.Context, id int64) (*BookResponse, error) {
	book, err := s.books.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewBookResponse(book), nil
}
