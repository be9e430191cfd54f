package identity

import (
	"strings"
	"time"

	"github.com/library/backend/internal/domain/shared"
)

// DefaultMaxLoans is the number of books a member may hold at once
// unless their record says otherwise.
const DefaultMaxLoans = 5

// Member is a library borrower. Authentication and permissions live in an
// external service; this record only carries what the loan pipeline needs
// for capacity checks.
type Member struct {
	shared.BaseAggregateRoot
	Email    string `gorm:"size:255;not null;uniqueIndex"`
	Username string `gorm:"size:150;not null;uniqueIndex"`
	FullName string `gorm:"size:255"`
	MaxLoans int    `gorm:"not null;default:5"`
	Active   bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (Member) TableName() string {
	return "members"
}

// NewMember creates an active member with the default loan limit
func NewMember(email, username, fullName string) (*Member, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	username = strings.TrimSpace(username)
	if email == "" || username == "" {
		return nil, shared.ErrInvalidInput
	}
	return &Member{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Email:             email,
		Username:          username,
		FullName:          fullName,
		MaxLoans:          DefaultMaxLoans,
		Active:            true,
	}, nil
}

// CanBorrow reports whether the member may open another loan given their
// current number of open loans.
func (m *Member) CanBorrow(openLoans int64) bool {
	return m.Active && openLoans < int64(m.MaxLoans)
}

// Deactivate blocks further borrowing without touching existing loans
func (m *Member) Deactivate() {
	m.Active = false
	m.UpdatedAt = time.Now()
	m.IncrementVersion()
}
