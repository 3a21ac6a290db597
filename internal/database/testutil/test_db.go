package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/charlesng35/authgate/internal/database"
)

var dbCounter atomic.Int64

// MustOpenTestDB opens a private in-memory SQLite database for tests and
// applies migrations. The connection is closed via t.Cleanup.
func MustOpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Each test gets its own shared-cache database so parallel tests never
	// observe each other's rows.
	dsn := fmt.Sprintf("file:authgate-test-%d?mode=memory&cache=shared&_foreign_keys=1", dbCounter.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}
