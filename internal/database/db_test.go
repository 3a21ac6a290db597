package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/authgate/internal/models"
)

func TestOpenDefaultsToSQLiteMemory(t *testing.T) {
	db, err := Open(Config{})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	user := &models.User{Username: "alice", Email: "alice@example.com", Password: "x", IsActive: true}
	require.NoError(t, db.Create(user).Error)
	require.NotEmpty(t, user.ID)

	var found models.User
	require.NoError(t, db.Take(&found, "username = ?", "alice").Error)
	require.Equal(t, user.ID, found.ID)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestUniqueConstraints(t *testing.T) {
	db, err := Open(Config{})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	require.NoError(t, db.Create(&models.User{Username: "bob", Email: "bob@example.com", Password: "x"}).Error)
	err = db.Create(&models.User{Username: "bob", Email: "other@example.com", Password: "x"}).Error
	require.Error(t, err, "duplicate username must be rejected")

	err = db.Create(&models.User{Username: "carol", Email: "bob@example.com", Password: "x"}).Error
	require.Error(t, err, "duplicate email must be rejected")
}

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "auth", Name: "authgate", Password: "pw"})
	require.NoError(t, err)
	require.Contains(t, dsn, "host=localhost")
	require.Contains(t, dsn, "dbname=authgate")
	require.Contains(t, dsn, "password=pw")

	_, err = buildPostgresDSN(Config{})
	require.Error(t, err)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "auth", Password: "pw", Name: "authgate"})
	require.NoError(t, err)
	require.Equal(t, "auth:pw@tcp(127.0.0.1:3306)/authgate?charset=utf8mb4&parseTime=True&loc=Local", dsn)

	_, err = buildMySQLDSN(Config{})
	require.Error(t, err)
}
