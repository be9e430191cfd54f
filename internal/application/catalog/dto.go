package catalog

import (
	"time"

	"github.com/library/backend/internal/domain/catalog"
)

// BookResponse is the read-side representation of a book
type BookResponse struct {
	ID              int64     `json:"id"`
	ISBN            string    `json:"isbn"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Publisher       string    `json:"publisher,omitempty"`
	PublicationYear int       `json:"publication_year,omitempty"`
	Category        string    `json:"category,omitempty"`
	Description     string    `json:"description,omitempty"`
	Language        string    `json:"language,omitempty"`
	Pages           int       `json:"pages,omitempty"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	TimesBorrowed   int       `json:"times_borrowed"`
	IsAvailable     bool      `json:"is_available"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewBookResponse converts a book to its wire form
func NewBookResponse(book *catalog.Book) *BookResponse {
	return &BookResponse{
		ID:              book.ID,
		ISBN:            book.ISBN,
		Title:           book.Title,
		Author:          book.Author,
		Publisher:       book.Publisher,
		PublicationYear: book.PublicationYear,
		Category:        book.Category,
		Description:     book.Description,
		Language:        book.Language,
		Pages:           book.Pages,
		TotalCopies:     book.TotalCopies,
		AvailableCopies: book.AvailableCopies,
		TimesBorrowed:   book.TimesBorrowed,
		IsAvailable:     book.IsAvailable(),
		CreatedAt:       book.CreatedAt,
		UpdatedAt:       book.UpdatedAt,
	}
}
