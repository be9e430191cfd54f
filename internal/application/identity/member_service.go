package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/library/backend/internal/domain/identity"
	"github.com/library/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// RegisterMemberCommand creates a borrower account.
type RegisterMemberCommand struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Username string `json:"username" validate:"required,max=150"`
	FullName string `json:"full_name" validate:"max=255"`
}

// LaneKey serializes registrations per email address.
func (c RegisterMemberCommand) LaneKey() string {
	return fmt.Sprintf("member:%s", strings.ToLower(c.Email))
}

// MemberService handles member commands from the user routing keys
type MemberService struct {
	members  identity.MemberRepository
	maxLoans int
	logger   *zap.Logger
}

// NewMemberService creates a new MemberService
func NewMemberService(members identity.MemberRepository, logger *zap.Logger) *MemberService {
	return &MemberService{members: members, logger: logger}
}

// WithMaxLoans overrides the default open-loan limit stamped on new members
func (s *MemberService) WithMaxLoans(maxLoans int) *MemberService {
	s.maxLoans = maxLoans
	return s
}

// HandleRegister creates a member. A duplicate email is a conflict
// rejection.
func (s *MemberService) HandleRegister(ctx context.Context, cmd RegisterMemberCommand) error {
	if _, err := s.members.FindByEmail(ctx, strings.ToLower(cmd.Email)); err == nil {
		return shared.ErrAlreadyExists
	} else if !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	member, err := identity.NewMember(cmd.Email, cmd.Username, cmd.FullName)
	if err != nil {
		return err
	}
	if s.maxLoans > 0 {
		member.MaxLoans = s.maxLoans
	}
	if err := s.members.Create(ctx, member); err != nil {
		return err
	}

	s.logger.Info("member registered",
		zap.Int64("member_id", member.ID),
		zap.String("email", member.Email))
	return nil
}
