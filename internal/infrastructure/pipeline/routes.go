package pipeline

import (
	"context"

	appcatalog "github.com/library/backend/internal/application/catalog"
	appcirculation "github.com/library/backend/internal/application/circulation"
	appidentity "github.com/library/backend/internal/application/identity"
	"github.com/library/backend/internal/domain/shared"
)

// LoanCommands is the loan transition surface the pipeline invokes.
type LoanCommands interface {
	HandleCreate(ctx context.Context, cmd appcirculation.CreateLoanCommand) error
	HandleReturn(ctx context.Context, cmd appcirculation.ReturnLoanCommand) error
	HandleRenew(ctx context.Context, cmd appcirculation.RenewLoanCommand) error
	HandleSweep(ctx context.Context, cmd appcirculation.SweepLoanCommand) error
}

// BookCommands is the catalog surface the pipeline invokes.
type BookCommands interface {
	HandleCreate(ctx context.Context, cmd appcatalog.CreateBookCommand) error
	HandleUpdate(ctx context.Context, cmd appcatalog.UpdateBookCommand) error
	HandleDelete(ctx context.Context, cmd appcatalog.DeleteBookCommand) error
}

// MemberCommands is the identity surface the pipeline invokes.
type MemberCommands interface {
	HandleRegister(ctx context.Context, cmd appidentity.RegisterMemberCommand) error
}

// RegisterRoutes binds every consumed routing key to its decoder and
// handler. Loan decoders carry the dedup key into the command so the
// handlers can record it in the same transaction as the transition.
func RegisterRoutes(in *Ingress, loans LoanCommands, books BookCommands, members MemberCommands) {
	in.Register(shared.RoutingLoanCreate, func(c shared.Command) (*Invocation, error) {
		var cmd appcirculation.CreateLoanCommand
		if err := in.decode(c.Payload, &cmd); err != nil {
			return nil, err
		}
		cmd.Token = c.DedupKey
		return &Invocation{LaneKey: cmd.LaneKey(), Invoke: func(ctx context.Context) error {
			return loans.HandleCreate(ctx, cmd)
		}}, nil
	})

	in.Register(shared.RoutingLoanReturn, func(c shared.Command) (*Invocation, error) {
		var cmd appcirculation.ReturnLoanCommand
		if err := in.decode(c.Payload, &cmd); err != nil {
			return nil, err
		}
		cmd.Token = c.DedupKey
		return &Invocation{LaneKey: cmd.LaneKey(), Invoke: func(ctx context.Context) error {
			return loans.HandleReturn(ctx, cmd)
		}}, nil
	})

	in.Register(shared.RoutingLoanRenew, func(c shared.Command) (*Invocation, error) {
		var cmd appcirculation.RenewLoanCommand
		if err := in.decode(c.Payload, &cmd); err != nil {
			return nil, err
		}
		cmd.Token = c.DedupKey
		return &Invocation{LaneKey: cmd.LaneKey(), Invoke: func(ctx context.Context) error {
			return loans.HandleRenew(ctx, cmd)
		}}, nil
	})

	in.Register(shared.RoutingLoanSweep, func(c shared.Command) (*Invocation, error) {
		var cmd appcirculation.SweepLoanCommand
		if err := in.decode(c.Payload, &cmd); err != nil {
			return nil, err
		}
		cmd.Token = c.DedupKey
		return &Invocation{LaneKey: cmd.LaneKey(), Invoke: func(ctx context.Context) error {
			return loans.HandleSweep(ctx, cmd)
		}}, nil
	})

	in.Register(shared.RoutingBookCreate, func(c shared.Command) (*Invocation, error) {
		var cmd appcatalog.CreateBookCommand
		if err := in.decode(c.Payload, &cmd); err != nil {
			return nil, err
		}
		return &Invocation{LaneKey: cmd.LaneKey(), Invoke: func(ctx context.Context) error {
			return books.HandleCreate(ctx, cmd)
		}}, nil
	})

	in.Register(shared.RoutingBookUpdate, func(c shared.Command) (*Invocation, error) {
		var cmd appcatalog.UpdateBookCommand
		if err := in.decode(c.Payload, &cmd); err != nil {
			return nil, err
		}
		return &Invocation{LaneKey: cmd.LaneKey(), Invoke: func(ctx context.Context) error {
			return books.HandleUpdate(ctx, cmd)
		}}, nil
	})

	in.Register(shared.RoutingBookDelete, func(c shared.Command) (*Invocation, error) {
		var cmd appcatalog.DeleteBookCommand
		if err := in.decode(c.Payload, &cmd); err != nil {
			return nil, err
		}
		return &Invocation{LaneKey: cmd.LaneKey(), Invoke: func(ctx context.Context) error {
			return books.HandleDelete(ctx, cmd)
		}}, nil
	})

	in.Register(shared.RoutingUserCreate, func(c shared.Command) (*Invocation, error) {
		var cmd appidentity.RegisterMemberCommand
		if err := in.decode(c.Payload, &cmd); err != nil {
			return nil, err
		}
		return &Invocation{LaneKey: cmd.LaneKey(), Invoke: func(ctx context.Context) error {
			return members.HandleRegister(ctx, cmd)
		}}, nil
	})
}
