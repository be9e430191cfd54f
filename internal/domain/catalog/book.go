package catalog

import (
	"time"

	"github.com/library/backend/internal/domain/shared"
)

// Book is the aggregate root of the catalog context. Its copy counters
// form the availability ledger: every mutation funnels through Reserve,
// Release or the admin operations below, always inside the same
// transaction as the loan transition that triggered it.
type Book struct {
	shared.BaseAggregateRoot
	ISBN            string `gorm:"size:13;not null;uniqueIndex"`
	Title           string `gorm:"size:255;not null;index"`
	Author          string `gorm:"size:255;not null;index"`
	Publisher       string `gorm:"size:255"`
	PublicationYear int
	Category        string `gorm:"size:50;index"`
	Description     string
	Language        string `gorm:"size:50"`
	Pages           int
	TotalCopies     int `gorm:"not null;default:1"`
	AvailableCopies int `gorm:"not null;default:1"`
	TimesBorrowed   int `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (Book) TableName() string {
	return "books"
}

// NewBook creates a book with all copies available
func NewBook(isbn, title, author string, copies int) (*Book, error) {
	if isbn == "" || title == "" || author == "" {
		return nil, shared.ErrInvalidInput
	}
	if copies < 0 {
		return nil, shared.ErrInvalidInput
	}
	book := &Book{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ISBN:              isbn,
		Title:             title,
		Author:            author,
		TotalCopies:       copies,
		AvailableCopies:   copies,
	}
	return book, nil
}

// Reserve takes one copy for a new loan. Exactly one copy per committed
// loan creation; fails when none are available.
func (b *Book) Reserve() error {
	if b.AvailableCopies <= 0 {
		return shared.ErrNoAvailableCopies
	}
	b.AvailableCopies--
	b.TimesBorrowed++
	b.UpdatedAt = time.Now()
	b.IncrementVersion()
	return nil
}

// Release returns one copy after a committed RETURNED transition.
// Releasing beyond the total would mean the ledger and the loans diverged,
// which the shared commit is supposed to make impossible.
func (b *Book) Release() error {
	if b.AvailableCopies >= b.TotalCopies {
		return shared.ErrInvalidState
	}
	b.AvailableCopies++
	b.UpdatedAt = time.Now()
	b.IncrementVersion()
	return nil
}

// IsAvailable reports whether at least one copy can be borrowed
func (b *Book) IsAvailable() bool {
	return b.AvailableCopies > 0
}

// AddCopies grows both counters by the given quantity
func (b *Book) AddCopies(quantity int) error {
	if quantity <= 0 {
		return shared.ErrInvalidInput
	}
	b.TotalCopies += quantity
	b.AvailableCopies += quantity
	b.UpdatedAt = time.Now()
	b.IncrementVersion()
	return nil
}

// BookUpdate carries the optional fields of a book.update_request.
// Nil fields are left unchanged.
type BookUpdate struct {
	Title           *string
	Author          *string
	Publisher       *string
	PublicationYear *int
	Category        *string
	Description     *string
	Language        *string
	Pages           *int
	TotalCopies     *int
}

// ApplyUpdate applies a partial update. Shrinking the total below the
// number of copies currently on loan is rejected: it would break the
// availability invariant.
func (b *Book) ApplyUpdate(u BookUpdate) error {
	if u.TotalCopies != nil {
		onLoan := b.TotalCopies - b.AvailableCopies
		if *u.TotalCopies < onLoan {
			return shared.NewDomainError(shared.KindConflict, "COPIES_ON_LOAN",
				"Total copies cannot drop below the number currently on loan")
		}
		b.AvailableCopies = *u.TotalCopies - onLoan
		b.TotalCopies = *u.TotalCopies
	}
	if u.Title != nil {
		b.Title = *u.Title
	}
	if u.Author != nil {
		b.Author = *u.Author
	}
	if u.Publisher != nil {
		b.Publisher = *u.Publisher
	}
	if u.PublicationYear != nil {
		b.PublicationYear = *u.PublicationYear
	}
	if u.Category != nil {
		b.Category = *u.Category
	}
	if u.Description != nil {
		b.Description = *u.Description
	}
	if u.Language != nil {
		b.Language = *u.Language
	}
	if u.Pages != nil {
		b.Pages = *u.Pages
	}
	b.UpdatedAt = time.Now()
	b.IncrementVersion()
	return nil
}

// CanDelete reports whether the book may be removed from the catalog.
// Books with copies on loan cannot be deleted.
func (b *Book) CanDelete() bool {
	return b.AvailableCopies == b.TotalCopies
}
