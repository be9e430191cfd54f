package persistence

import (
	"testing"

	"github.com/library/backend/internal/domain/catalog"
	"github.com/library/backend/internal/domain/circulation"
	"github.com/library/backend/internal/domain/identity"
	"github.com/library/backend/internal/domain/shared"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&identity.Member{},
		&catalog.Book{},
		&circulation.Loan{},
		&circulation.LoanHistoryEntry{},
		&shared.DeadLetterEntry{},
		&shared.ProcessedCommand{},
	)
	require.NoError(t, err)

	return db
}
