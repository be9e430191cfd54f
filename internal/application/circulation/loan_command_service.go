package circulation

import (
	"context"
	"errors"
	"time"

	"github.com/library/backend/internal/domain/circulation"
	"github.com/library/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Rejections specific to loan creation.
var (
	errMemberInactive = shared.NewDomainError(shared.KindCapacity, "MEMBER_INACTIVE", "Member account is deactivated")
	errDuplicateLoan  = shared.NewDomainError(shared.KindConflict, "DUPLICATE_LOAN", "Member already holds an open loan for this book")
	errNotBorrower    = shared.NewDomainError(shared.KindConflict, "NOT_BORROWER", "Loan belongs to a different member")
)

// Settings carries the circulation policy knobs.
type Settings struct {
	LoanPeriodDays int
	DailyFineRate  decimal.Decimal
	MaxRenewals    int
}

// LoanCommandService executes loan transitions. Each handler runs inside
// one database transaction covering the loan, the book's availability
// counters and the audit trail; under lane serialization at most one
// handler touches a given loan or member at a time.
type LoanCommandService struct {
	scope     TransactionScope
	publisher shared.EventPublisher
	settings  Settings
	calc      circulation.FineCalculator
	logger    *zap.Logger
	now       func() time.Time
}

// NewLoanCommandService creates a new LoanCommandService
func NewLoanCommandService(scope TransactionScope, publisher shared.EventPublisher, settings Settings, logger *zap.Logger) *LoanCommandService {
	return &LoanCommandService{
		scope:     scope,
		publisher: publisher,
		settings:  settings,
		calc:      circulation.NewFineCalculator(settings.DailyFineRate),
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the service clock, for tests.
func (s *LoanCommandService) WithClock(now func() time.Time) *LoanCommandService {
	s.now = now
	return s
}

// HandleCreate opens a loan: member active and under their loan limit, no
// open loan for the same book, one copy reserved, all in one commit.
func (s *LoanCommandService) HandleCreate(ctx context.Context, cmd CreateLoanCommand) error {
	var loan *circulation.Loan

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := recordToken(ctx, repos, cmd.Token, shared.RoutingLoanCreate); err != nil {
			return err
		}

		member, err := repos.Members().FindByID(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		if !member.Active {
			return errMemberInactive
		}

		open, err := repos.Loans().CountOpenByUser(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		if !member.CanBorrow(open) {
			return shared.ErrLoanLimitReached
		}

		duplicate, err := repos.Loans().HasOpenLoanForBook(ctx, cmd.UserID, cmd.BookID)
		if err != nil {
			return err
		}
		if duplicate {
			return errDuplicateLoan
		}

		book, err := repos.Books().FindByID(ctx, cmd.BookID)
		if err != nil {
			return err
		}
		if err := book.Reserve(); err != nil {
			return err
		}

		loan = circulation.NewLoan(cmd.UserID, cmd.BookID, cmd.Notes, s.now(), s.settings.LoanPeriodDays, s.settings.MaxRenewals)
		if err := repos.Loans().Create(ctx, loan); err != nil {
			return err
		}
		if err := repos.Books().SaveWithLock(ctx, book); err != nil {
			return err
		}
		return repos.History().Append(ctx, loan.TakeHistory(&cmd.UserID)...)
	})
	if errors.Is(err, shared.ErrDuplicateCommand) {
		s.logDuplicate(shared.RoutingLoanCreate, cmd.Token)
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("loan created",
		zap.Int64("loan_id", loan.ID),
		zap.Int64("user_id", loan.UserID),
		zap.Int64("book_id", loan.BookID),
		zap.Time("due_date", loan.DueDate))
	s.publish(ctx, circulation.NewLoanCreatedEvent(loan))
	return nil
}

// HandleReturn terminates a loan, calculating the fine for late returns
// and releasing the book copy in the same commit.
func (s *LoanCommandService) HandleReturn(ctx context.Context, cmd ReturnLoanCommand) error {
	var (
		loan        *circulation.Loan
		daysOverdue int
	)

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := recordToken(ctx, repos, cmd.Token, shared.RoutingLoanReturn); err != nil {
			return err
		}

		var err error
		loan, err = repos.Loans().FindByID(ctx, cmd.LoanID)
		if err != nil {
			return err
		}
		if loan.UserID != cmd.UserID {
			return errNotBorrower
		}

		today := s.now()
		daysOverdue = circulation.DaysOverdue(loan.DueDate, today)
		if daysOverdue < 0 {
			daysOverdue = 0
		}
		if err := loan.Return(today, s.calc); err != nil {
			return err
		}

		book, err := repos.Books().FindByID(ctx, loan.BookID)
		if err != nil {
			return err
		}
		if err := book.Release(); err != nil {
			return err
		}

		if err := repos.Loans().SaveWithLock(ctx, loan); err != nil {
			return err
		}
		if err := repos.Books().SaveWithLock(ctx, book); err != nil {
			return err
		}
		return repos.History().Append(ctx, loan.TakeHistory(&cmd.UserID)...)
	})
	if errors.Is(err, shared.ErrDuplicateCommand) {
		s.logDuplicate(shared.RoutingLoanReturn, cmd.Token)
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("loan returned",
		zap.Int64("loan_id", loan.ID),
		zap.Int("days_overdue", daysOverdue),
		zap.String("fine_amount", loan.FineAmount.StringFixed(2)))
	s.publish(ctx, circulation.NewLoanReturnedEvent(loan, daysOverdue))
	return nil
}

// HandleRenew extends the due date by one loan period counted from the
// current due date.
func (s *LoanCommandService) HandleRenew(ctx context.Context, cmd RenewLoanCommand) error {
	var (
		loan       *circulation.Loan
		oldDueDate time.Time
	)

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := recordToken(ctx, repos, cmd.Token, shared.RoutingLoanRenew); err != nil {
			return err
		}

		var err error
		loan, err = repos.Loans().FindByID(ctx, cmd.LoanID)
		if err != nil {
			return err
		}
		if loan.UserID != cmd.UserID {
			return errNotBorrower
		}

		oldDueDate = loan.DueDate
		if err := loan.Renew(s.settings.LoanPeriodDays); err != nil {
			return err
		}

		if err := repos.Loans().SaveWithLock(ctx, loan); err != nil {
			return err
		}
		return repos.History().Append(ctx, loan.TakeHistory(&cmd.UserID)...)
	})
	if errors.Is(err, shared.ErrDuplicateCommand) {
		s.logDuplicate(shared.RoutingLoanRenew, cmd.Token)
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("loan renewed",
		zap.Int64("loan_id", loan.ID),
		zap.Int("renewal_count", loan.RenewalCount),
		zap.Time("new_due_date", loan.DueDate))
	s.publish(ctx, circulation.NewLoanRenewedEvent(loan, oldDueDate))
	return nil
}

// HandleSweep marks one loan overdue. A sweep of a loan that is already
// OVERDUE, returned or not yet due commits nothing and emits nothing.
func (s *LoanCommandService) HandleSweep(ctx context.Context, cmd SweepLoanCommand) error {
	var (
		loan         *circulation.Loan
		transitioned bool
		daysOverdue  int
	)

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := recordToken(ctx, repos, cmd.Token, shared.RoutingLoanSweep); err != nil {
			return err
		}

		var err error
		loan, err = repos.Loans().FindByID(ctx, cmd.LoanID)
		if err != nil {
			return err
		}

		today := s.now()
		daysOverdue = circulation.DaysOverdue(loan.DueDate, today)
		if transitioned = loan.MarkOverdue(today); !transitioned {
			return nil
		}

		if err := repos.Loans().SaveWithLock(ctx, loan); err != nil {
			return err
		}
		return repos.History().Append(ctx, loan.TakeHistory(nil)...)
	})
	if errors.Is(err, shared.ErrDuplicateCommand) {
		s.logDuplicate(shared.RoutingLoanSweep, cmd.Token)
		return nil
	}
	if err != nil {
		return err
	}
	if !transitioned {
		return nil
	}

	s.logger.Info("loan marked overdue",
		zap.Int64("loan_id", loan.ID),
		zap.Int("days_overdue", daysOverdue))
	s.publish(ctx, circulation.NewLoanOverdueEvent(loan, daysOverdue))
	return nil
}

// recordToken writes the command token inside the open transaction. A
// token that is already there means an earlier delivery committed this
// transition; the caller absorbs ErrDuplicateCommand as a no-op. The
// cache-level dedup check runs first, so this insert only decides the
// races and crashes the cache cannot see.
func recordToken(ctx context.Context, repos TransactionalRepositories, token, routingKey string) error {
	if token == "" {
		return nil
	}
	return repos.Processed().Record(ctx, token, routingKey)
}

func (s *LoanCommandService) logDuplicate(routingKey, token string) {
	s.logger.Info("command already processed, skipping",
		zap.String("routing_key", routingKey),
		zap.String("token", token))
}

// publish sends a committed event to the broker. Failures are logged and
// never surfaced: the transition already committed.
func (s *LoanCommandService) publish(ctx context.Context, event shared.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("event_type", event.EventType()),
			zap.Error(err))
	}
}
