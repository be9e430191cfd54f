package catalog

import (
	"github.com/library/backend/internal/domain/shared"
)

// Event types published after committed catalog changes
const (
	EventBookCreated = "book.created"
	EventBookUpdated = "book.updated"
	EventBookDeleted = "book.deleted"
)

const aggregateTypeBook = "Book"

// BookCreatedEvent is emitted when a book creation commits
type BookCreatedEvent struct {
	shared.BaseDomainEvent
	ISBN   string `json:"isbn"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Copies int    `json:"copies"`
}

// NewBookCreatedEvent creates a BookCreatedEvent from a committed book
func NewBookCreatedEvent(book *Book) *BookCreatedEvent {
	return &BookCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventBookCreated, aggregateTypeBook, book.ID),
		ISBN:            book.ISBN,
		Title:           book.Title,
		Author:          book.Author,
		Copies:          book.TotalCopies,
	}
}

// BookUpdatedEvent is emitted when a book update commits
type BookUpdatedEvent struct {
	shared.BaseDomainEvent
	Title string `json:"title"`
}

// NewBookUpdatedEvent creates a BookUpdatedEvent
func NewBookUpdatedEvent(book *Book) *BookUpdatedEvent {
	return &BookUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventBookUpdated, aggregateTypeBook, book.ID),
		Title:           book.Title,
	}
}

// BookDeletedEvent is emitted when a book deletion commits
type BookDeletedEvent struct {
	shared.BaseDomainEvent
	Title string `json:"title"`
}

// NewBookDeletedEvent creates a BookDeletedEvent
func NewBookDeletedEvent(bookID int64, title string) *BookDeletedEvent {
	return &BookDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventBookDeleted, aggregateTypeBook, bookID),
		Title:           title,
	}
}
