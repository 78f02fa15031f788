package services

import (
	"testing"

	"mediavault-backend/internal/database"
	"mediavault-backend/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupAuthTestDB() {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{TranslateError: true})
	if err != nil {
		panic("failed to connect database")
	}

	db.Migrator().DropTable(&models.User{}, &models.Account{}, &models.AccountStatus{}, &models.LedgerEntry{})
	db.AutoMigrate(&models.User{}, &models.Account{}, &models.AccountStatus{}, &models.LedgerEntry{})

	database.DB = db
}

func setupAuthTestRedis() *miniredis.Miniredis {
	mr, err := miniredis.Run()
	if err != nil {
		panic(err)
	}

	database.RedisClient = redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return mr
}

func TestRegisterProvisionsAccount(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("FREE_GRANT_CREDITS", "5120")

	setupAuthTestDB()
	mr := setupAuthTestRedis()
	defer mr.Close()

	user, err := RegisterUser("alice", "password123")
	assert.NoError(t, err)
	assert.Equal(t, "admin", user.Role) // first user bootstraps as admin

	// Account, status row and the signup grant all exist
	var acct models.Account
	assert.NoError(t, database.DB.First(&acct, "user_id = ?", user.ID).Error)
	assert.Equal(t, int64(5120), acct.Balance)
	assert.Equal(t, int64(5120), acct.Total)
	assert.Equal(t, int64(0), acct.Spent)
	assert.Equal(t, int64(0), acct.Reserved)

	var status models.AccountStatus
	assert.NoError(t, database.DB.First(&status, "user_id = ?", user.ID).Error)
	assert.False(t, status.IsFrozen)

	var entry models.LedgerEntry
	assert.NoError(t, database.DB.First(&entry, "user_id = ? AND type = ?", user.ID, models.LedgerTypeGrantFree).Error)
	assert.Equal(t, int64(5120), entry.Amount)
	assert.Equal(t, int64(0), entry.BalanceBefore)
	assert.Equal(t, int64(5120), entry.BalanceAfter)

	// Second user is a regular user
	user2, err := RegisterUser("bob", "password123")
	assert.NoError(t, err)
	assert.Equal(t, "user", user2.Role)

	// Duplicate username
	_, err = RegisterUser("alice", "password123")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestLoginAndLogout(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	setupAuthTestDB()
	mr := setupAuthTestRedis()
	defer mr.Close()

	_, err := RegisterUser("alice", "password123")
	assert.NoError(t, err)

	token, user, err := LoginUser("alice", "password123")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "alice", user.Username)

	_, _, err = LoginUser("alice", "wrong")
	assert.Error(t, err)

	_, _, err = LoginUser("nobody", "password123")
	assert.Error(t, err)

	// Logout denylists the token until its natural expiry
	assert.NoError(t, LogoutUser(token))
	denied, err := IsDenylisted(token)
	assert.NoError(t, err)
	assert.True(t, denied)
}
