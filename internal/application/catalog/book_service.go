package catalog

import (
	"context"
	"errors"

	"github.com/library/backend/internal/domain/catalog"
	"github.com/library/backend/internal/domain/shared"
	"go.uber.org/zap"
)

var errCopiesOnLoan = shared.NewDomainError(shared.KindConflict, "COPIES_ON_LOAN", "Book has copies on loan and cannot be deleted")

// BookCommandService executes catalog commands. Every write lands on a
// single book row, so the optimistic-lock save is the only coordination
// needed with the loan lanes mutating availability counters.
type BookCommandService struct {
	books     catalog.BookRepository
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// NewBookCommandService creates a new BookCommandService
func NewBookCommandService(books catalog.BookRepository, publisher shared.EventPublisher, logger *zap.Logger) *BookCommandService {
	return &BookCommandService{
		books:     books,
		publisher: publisher,
		logger:    logger,
	}
}

// HandleCreate adds a book. A second create for the same ISBN is a
// conflict rejection, not a retry.
func (s *BookCommandService) HandleCreate(ctx context.Context, cmd CreateBookCommand) error {
	if _, err := s.books.FindByISBN(ctx, cmd.ISBN); err == nil {
		return shared.ErrAlreadyExists
	} else if !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	book, err := catalog.NewBook(cmd.ISBN, cmd.Title, cmd.Author, cmd.TotalCopies)
	if err != nil {
		return err
	}
	book.Publisher = cmd.Publisher
	book.PublicationYear = cmd.PublicationYear
	book.Category = cmd.Category
	book.Description = cmd.Description
	book.Language = cmd.Language
	book.Pages = cmd.Pages

	if err := s.books.Create(ctx, book); err != nil {
		return err
	}

	s.logger.Info("book created",
		zap.Int64("book_id", book.ID),
		zap.String("isbn", book.ISBN),
		zap.Int("copies", book.TotalCopies))
	s.publish(ctx, catalog.NewBookCreatedEvent(book))
	return nil
}

// HandleUpdate applies a partial update
func (s *BookCommandService) HandleUpdate(ctx context.Context, cmd UpdateBookCommand) error {
	book, err := s.books.FindByID(ctx, cmd.BookID)
	if err != nil {
		return err
	}

	update := catalog.BookUpdate{
		Title:           cmd.Title,
		Author:          cmd.Author,
		Publisher:       cmd.Publisher,
		PublicationYear: cmd.PublicationYear,
		Category:        cmd.Category,
		Description:     cmd.Description,
		Language:        cmd.Language,
		Pages:           cmd.Pages,
		TotalCopies:     cmd.TotalCopies,
	}
	if err := book.ApplyUpdate(update); err != nil {
		return err
	}
	if err := s.books.SaveWithLock(ctx, book); err != nil {
		return err
	}

	s.logger.Info("book updated", zap.Int64("book_id", book.ID))
	s.publish(ctx, catalog.NewBookUpdatedEvent(book))
	return nil
}

// HandleDelete removes a book with no copies on loan
func (s *BookCommandService) HandleDelete(ctx context.Context, cmd DeleteBookCommand) error {
	book, err := s.books.FindByID(ctx, cmd.BookID)
	if err != nil {
		return err
	}
	if !book.CanDelete() {
		return errCopiesOnLoan
	}
	if err := s.books.Delete(ctx, book.ID); err != nil {
		return err
	}

	s.logger.Info("book deleted", zap.Int64("book_id", book.ID), zap.String("title", book.Title))
	s.publish(ctx, catalog.NewBookDeletedEvent(book.ID, book.Title))
	return nil
}

func (s *BookCommandService) publish(ctx context.Context, event shared.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("event_type", event.EventType()),
			zap.Error(err))
	}
}
