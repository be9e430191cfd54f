package identity

import (
	"context"
)

// MemberRepository defines persistence for the Member aggregate
type MemberRepository interface {
	// FindByID finds a member by ID
	FindByID(ctx context.Context, id int64) (*Member, error)
	// FindByEmail finds a member by email
	FindByEmail(ctx context.Context, email string) (*Member, error)
	// Create inserts a new member and assigns their ID
	Create(ctx context.Context, member *Member) error
	// Save updates a member
	Save(ctx context.Context, member *Member) error
}
