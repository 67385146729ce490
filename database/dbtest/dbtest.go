// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wyzar/wyzar_messaging/database"
	"github.com/wyzar/wyzar_messaging/models"
	"gorm.io/gorm"
)

func New(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.ConnectDB("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func User(t testing.TB, db *gorm.DB, name string) models.User {
	t.Helper()
	return createUser(t, db, name, nil)
}

func InactiveUser(t testing.TB, db *gorm.DB, name string) models.User {
	t.Helper()
	inactive := false
	return createUser(t, db, name, &inactive)
}

func createUser(t testing.TB, db *gorm.DB, name string, active *bool) models.User {
	t.Helper()
	u := models.User{
		FullName: name,
		Email:    fmt.Sprintf("%s-%s@wyzar.test", name, uuid.NewString()[:8]),
		IsActive: active,
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func Product(t testing.TB, db *gorm.DB, sellerID uuid.UUID, title string) models.Product {
	t.Helper()
	p := models.Product{SellerID: sellerID, Title: title, Price: 25}
	require.NoError(t, db.Create(&p).Error)
	return p
}

// PostgresEnv names the DSN of a disposable Postgres used by the
// concurrency tests. They skip that backend when it is unset.
const PostgresEnv = "TEST_DATABASE_URL"

// Pooled opens a file-backed sqlite database with several open connections,
// so concurrent callers really run on separate connections.
func Pooled(t testing.TB, conns int) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate",
		filepath.Join(t.TempDir(), "messaging.db"))
	db, err := database.ConnectDB("sqlite", dsn)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(conns)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// Postgres connects to $TEST_DATABASE_URL, or skips the test.
func Postgres(t testing.TB, conns int) *gorm.DB {
	t.Helper()
	dsn := os.Getenv(PostgresEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresEnv)
	}
	db, err := database.ConnectDB("postgres", dsn)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(conns)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}
