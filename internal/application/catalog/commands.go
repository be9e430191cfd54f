package catalog

import "fmt"

// CreateBookCommand adds a title to the catalog.
type CreateBookCommand struct {
	ISBN            string `json:"isbn" validate:"required,min=10,max=13"`
	Title           string `json:"title" validate:"required,max=255"`
	Author          string `json:"author" validate:"required,max=255"`
	Publisher       string `json:"publisher" validate:"max=255"`
	PublicationYear int    `json:"publication_year" validate:"omitempty,gte=0"`
	Category        string `json:"category" validate:"max=50"`
	Description     string `json:"description"`
	Language        string `json:"language" validate:"max=50"`
	Pages           int    `json:"pages" validate:"gte=0"`
	TotalCopies     int    `json:"total_copies" validate:"gte=0"`
}

// LaneKey serializes catalog writes per ISBN, so a duplicate create
// cannot race its original.
func (c CreateBookCommand) LaneKey() string {
	return fmt.Sprintf("isbn:%s", c.ISBN)
}

// UpdateBookCommand partially updates a book. Absent fields stay as they
// are.
type UpdateBookCommand struct {
	BookID          int64   `json:"book_id" validate:"required,gt=0"`
	Title           *string `json:"title" validate:"omitempty,max=255"`
	Author          *string `json:"author" validate:"omitempty,max=255"`
	Publisher       *string `json:"publisher" validate:"omitempty,max=255"`
	PublicationYear *int    `json:"publication_year" validate:"omitempty,gte=0"`
	Category        *string `json:"category" validate:"omitempty,max=50"`
	Description     *string `json:"description"`
	Language        *string `json:"language" validate:"omitempty,max=50"`
	Pages           *int    `json:"pages" validate:"omitempty,gte=0"`
	TotalCopies     *int    `json:"total_copies" validate:"omitempty,gte=0"`
}

// LaneKey serializes all writes against one book.
func (c UpdateBookCommand) LaneKey() string {
	return fmt.Sprintf("book:%d", c.BookID)
}

// DeleteBookCommand removes a book with no copies on loan.
type DeleteBookCommand struct {
	BookID int64 `json:"book_id" validate:"required,gt=0"`
}

// LaneKey serializes all writes against one book.
func (c DeleteBookCommand) LaneKey() string {
	return fmt.Sprintf("book:%d", c.BookID)
}
