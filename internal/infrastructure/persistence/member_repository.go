package persistence

import (
	"context"
	"errors"

	"github.com/library/backend/internal/domain/identity"
	"github.com/library/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormMemberRepository implements MemberRepository using GORM
type GormMemberRepository struct {
	db *gorm.DB
}

// NewGormMemberRepository creates a new GormMemberRepository
func NewGormMemberRepository(db *gorm.DB) *GormMemberRepository {
	return &GormMemberRepository{db: db}
}

// FindByID finds a member by ID
func (r *GormMemberRepository) FindByID(ctx context.Context, id int64) (*identity.Member, error) {
	var member identity.Member
	if err := r.db.WithContext(ctx).First(&member, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &member, nil
}

// FindByEmail finds a member by email
func (r *GormMemberRepository) FindByEmail(ctx context.Context, email string) (*identity.Member, error) {
	var member identity.Member
	if err := r.db.WithContext(ctx).First(&member, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &member, nil
}

// Create inserts a new member and assigns their ID
func (r *GormMemberRepository) Create(ctx context.Context, member *identity.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

// Save updates a member
func (r *GormMemberRepository) Save(ctx context.Context, member *identity.Member) error {
	return r.db.WithContext(ctx).Save(member).Error
}

// WithTx returns a repository bound to the given transaction
func (r *GormMemberRepository) WithTx(tx *gorm.DB) *GormMemberRepository {
	return &GormMemberRepository{db: tx}
}

// Ensure GormMemberRepository implements MemberRepository
var _ identity.MemberRepository = (*GormMemberRepository)(nil)
