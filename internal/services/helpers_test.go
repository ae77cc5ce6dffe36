package services

import (
	"fmt"
	"taskreward-backend/internal/database"
	"taskreward-backend/internal/models"
	"taskreward-backend/internal/userlock"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupTestDB gives each test its own in-memory database. A single
// connection keeps SQLite from reporting table locks under parallel audits.
func setupTestDB(t *testing.T) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	database.DB = db
	database.RedisClient = nil
	Locker = userlock.NewKeyedMutex()
	MaxReconcileRetries = 3
	LedgerSecret = "test-secret"

	t.Cleanup(func() {
		sqlDB.Close()
	})
}

func setupTestRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	database.RedisClient = redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		database.RedisClient.Close()
		database.RedisClient = nil
		mr.Close()
	})
	return mr
}

func seedUser(t *testing.T, username string) models.User {
	t.Helper()
	user, err := CreateUser(username, "user")
	require.NoError(t, err)
	return *user
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, money(want).StringFixed(2), got.StringFixed(2))
}

// assertCachedBalance checks the stored balance against both the expected
// value and a fresh derivation.
func assertCachedBalance(t *testing.T, userID uint, want string) {
	t.Helper()

	var user models.User
	require.NoError(t, database.DB.First(&user, userID).Error)
	assertMoney(t, want, user.Balance)

	derived, err := ComputeUserBalance(database.Ctx, userID)
	require.NoError(t, err)
	assertMoney(t, want, derived)
}
