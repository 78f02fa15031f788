package services

import (
	"testing"
	"time"

	"mediavault-backend/config"
	"mediavault-backend/internal/database"
	"mediavault-backend/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupAdmissionTestDB() {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{TranslateError: true})
	if err != nil {
		panic("failed to connect database")
	}

	db.Migrator().DropTable(&models.Account{}, &models.AccountStatus{}, &models.LedgerEntry{},
		&models.Upload{}, &models.RateLimitWindow{}, &models.DailyMediaUsage{})
	db.AutoMigrate(&models.Account{}, &models.AccountStatus{}, &models.LedgerEntry{},
		&models.Upload{}, &models.RateLimitWindow{}, &models.DailyMediaUsage{})

	database.DB = db
}

func setupAdmissionTestRedis() *miniredis.Miniredis {
	mr, err := miniredis.Run()
	if err != nil {
		panic(err)
	}

	database.RedisClient = redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return mr
}

func TestRateLimitFixedWindow(t *testing.T) {
	t.Setenv("RATE_LIMIT_UPLOAD_BEGIN_MAX", "3")
	t.Setenv("RATE_LIMIT_UPLOAD_BEGIN_WINDOW_MINUTES", "60")

	setupAdmissionTestDB()
	mr := setupAdmissionTestRedis()
	defer mr.Close()

	for i := 0; i < 3; i++ {
		assert.NoError(t, CheckRateLimit(1, config.EndpointUploadBegin))
	}

	err := CheckRateLimit(1, config.EndpointUploadBegin)
	var rateLimited *RateLimitError
	assert.ErrorAs(t, err, &rateLimited)
	assert.Equal(t, config.EndpointUploadBegin, rateLimited.Endpoint)
	assert.Greater(t, rateLimited.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, rateLimited.RetryAfter, 60*time.Minute)

	// Counters are per (user, endpoint)
	assert.NoError(t, CheckRateLimit(2, config.EndpointUploadBegin))
	assert.NoError(t, CheckRateLimit(1, config.EndpointUploadFinalize))
}

func TestRateLimitWindowRecycles(t *testing.T) {
	t.Setenv("RATE_LIMIT_UPLOAD_BEGIN_MAX", "2")
	t.Setenv("RATE_LIMIT_UPLOAD_BEGIN_WINDOW_MINUTES", "60")

	setupAdmissionTestDB()
	mr := setupAdmissionTestRedis()
	defer mr.Close()

	assert.NoError(t, CheckRateLimit(1, config.EndpointUploadBegin))
	assert.NoError(t, CheckRateLimit(1, config.EndpointUploadBegin))

	var rateLimited *RateLimitError
	assert.ErrorAs(t, CheckRateLimit(1, config.EndpointUploadBegin), &rateLimited)

	// Expire the window in place
	past := time.Now().Add(-time.Minute)
	database.DB.Model(&models.RateLimitWindow{}).
		Where("user_id = ? AND endpoint = ?", 1, config.EndpointUploadBegin).
		Updates(map[string]interface{}{
			"window_start": past.Add(-time.Hour),
			"window_end":   past,
		})

	assert.NoError(t, CheckRateLimit(1, config.EndpointUploadBegin))

	var w models.RateLimitWindow
	database.DB.First(&w, "user_id = ? AND endpoint = ?", 1, config.EndpointUploadBegin)
	assert.Equal(t, 1, w.RequestCount)
	assert.True(t, w.WindowEnd.After(time.Now()))
}

func TestRateLimitUnconfiguredEndpointUnlimited(t *testing.T) {
	setupAdmissionTestDB()
	mr := setupAdmissionTestRedis()
	defer mr.Close()

	for i := 0; i < 100; i++ {
		assert.NoError(t, CheckRateLimit(1, "no_such_endpoint"))
	}
}

func TestDailyQuota(t *testing.T) {
	t.Setenv("DAILY_IMAGE_CAP", "2")

	setupAdmissionTestDB()
	mr := setupAdmissionTestRedis()
	defer mr.Close()

	// Nothing used today
	assert.NoError(t, CheckDailyQuota(1, models.MediaTypeImage))

	database.DB.Create(&models.DailyMediaUsage{
		UserID:     1,
		Day:        models.UsageDay(time.Now()),
		ImageCount: 2,
		VideoCount: 0,
	})

	err := CheckDailyQuota(1, models.MediaTypeImage)
	var dailyLimited *DailyLimitError
	assert.ErrorAs(t, err, &dailyLimited)
	assert.Equal(t, models.MediaTypeImage, dailyLimited.MediaType)
	assert.Equal(t, 2, dailyLimited.Current)
	assert.Equal(t, 2, dailyLimited.Max)

	// Video allowance is independent of the image allowance
	assert.NoError(t, CheckDailyQuota(1, models.MediaTypeVideo))

	// Other users are unaffected
	assert.NoError(t, CheckDailyQuota(2, models.MediaTypeImage))
}

func TestDailyQuotaOnlyCountsFinalized(t *testing.T) {
	t.Setenv("DAILY_IMAGE_CAP", "1")

	setupAdmissionTestDB()
	mr := setupAdmissionTestRedis()
	defer mr.Close()

	seedAccount(1, 100, 100, 0, 0)

	// Begin then fail: the allowance is untouched
	upload, err := BeginUpload(1, mb, models.MediaTypeImage, "")
	assert.NoError(t, err)
	_, err = FailUpload(1, upload.ID)
	assert.NoError(t, err)

	usage, err := DailyUsageFor(1)
	assert.NoError(t, err)
	assert.Equal(t, 0, usage.ImageCount)

	// Begin and finalize: now the cap of 1 is consumed
	upload, err = BeginUpload(1, mb, models.MediaTypeImage, "")
	assert.NoError(t, err)
	_, err = FinalizeUpload(1, upload.ID, "blob-1")
	assert.NoError(t, err)

	_, err = BeginUpload(1, mb, models.MediaTypeImage, "")
	var dailyLimited *DailyLimitError
	assert.ErrorAs(t, err, &dailyLimited)
	assert.Equal(t, 1, dailyLimited.Current)
	assert.Equal(t, 1, dailyLimited.Max)

	// A video upload is still admitted
	_, err = BeginUpload(1, mb, models.MediaTypeVideo, "")
	assert.NoError(t, err)
}

func TestCheckFrozenMissingRowMeansNotFrozen(t *testing.T) {
	setupAdmissionTestDB()
	mr := setupAdmissionTestRedis()
	defer mr.Close()

	assert.NoError(t, CheckFrozen(999))
}
