package upload_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"mediavault-backend/internal/api/v1/upload"
	"mediavault-backend/internal/database"
	"mediavault-backend/internal/models"
	"mediavault-backend/internal/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const mb = 1024 * 1024

func setupTestDB() {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{TranslateError: true})
	if err != nil {
		panic("failed to connect database")
	}

	db.Migrator().DropTable(&models.User{}, &models.Account{}, &models.AccountStatus{}, &models.LedgerEntry{},
		&models.Upload{}, &models.RateLimitWindow{}, &models.DailyMediaUsage{})
	db.AutoMigrate(&models.User{}, &models.Account{}, &models.AccountStatus{}, &models.LedgerEntry{},
		&models.Upload{}, &models.RateLimitWindow{}, &models.DailyMediaUsage{})

	database.DB = db
}

func setupTestRedis() *miniredis.Miniredis {
	mr, err := miniredis.Run()
	if err != nil {
		panic(err)
	}

	database.RedisClient = redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return mr
}

func testRouter(user models.User) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		// Simulate auth middleware
		c.Set("user", user)
		c.Next()
	})
	group := r.Group("/api/v1")
	upload.RegisterRoutes(group)
	return r
}

func seedUserWithCredits(userID uint, credits int64) models.User {
	user := models.User{Username: fmt.Sprintf("user%d", userID), Password: "x", Role: "user"}
	user.ID = userID
	database.DB.Create(&user)
	database.DB.Create(&models.Account{UserID: userID, Balance: credits, Total: credits})
	return user
}

func TestUploadLifecycleOverHTTP(t *testing.T) {
	setupTestDB()
	mr := setupTestRedis()
	defer mr.Close()

	gin.SetMode(gin.TestMode)

	user := seedUserWithCredits(1, 100)
	r := testRouter(user)

	// Begin
	body, _ := json.Marshal(upload.BeginUploadInput{
		FileSizeBytes:  50 * mb,
		MediaType:      "image",
		IdempotencyKey: "http-retry-1",
	})
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/uploads", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var beginResp struct {
		Data upload.UploadResponse `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &beginResp))
	assert.Equal(t, int64(50), beginResp.Data.CreditsRequired)
	assert.Equal(t, "pending", beginResp.Data.Status)
	uploadID := beginResp.Data.ID

	// Finalize
	body, _ = json.Marshal(upload.FinalizeUploadInput{ContentID: "blob-http-1"})
	req, _ = http.NewRequest(http.MethodPost, "/api/v1/uploads/"+uploadID+"/finalize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var finalizeResp struct {
		Data upload.FinalizeUploadResponse `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &finalizeResp))
	assert.Equal(t, int64(50), finalizeResp.Data.CreditsCharged)
	assert.Equal(t, int64(50), finalizeResp.Data.NewBalance)
	assert.Equal(t, "blob-http-1", finalizeResp.Data.ContentID)

	// Get
	req, _ = http.NewRequest(http.MethodGet, "/api/v1/uploads/"+uploadID, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var getResp struct {
		Data upload.UploadResponse `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &getResp))
	assert.Equal(t, "complete", getResp.Data.Status)

	// List
	req, _ = http.NewRequest(http.MethodGet, "/api/v1/uploads?status=complete", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var listResp struct {
		Data upload.UploadListResponse `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	assert.Equal(t, int64(1), listResp.Data.Total)
}

func TestBeginUploadInsufficientCreditsHTTP(t *testing.T) {
	setupTestDB()
	mr := setupTestRedis()
	defer mr.Close()

	gin.SetMode(gin.TestMode)

	user := seedUserWithCredits(1, 10)
	r := testRouter(user)

	body, _ := json.Marshal(upload.BeginUploadInput{
		FileSizeBytes: 50 * mb,
		MediaType:     "image",
	})
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/uploads", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	var resp struct {
		Status int `json:"status"`
		Data   struct {
			Required  int64 `json:"required"`
			Available int64 `json:"available"`
		} `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusPaymentRequired, resp.Status)
	assert.Equal(t, int64(50), resp.Data.Required)
	assert.Equal(t, int64(10), resp.Data.Available)
}

func TestBeginUploadFrozenAccountHTTP(t *testing.T) {
	setupTestDB()
	mr := setupTestRedis()
	defer mr.Close()

	gin.SetMode(gin.TestMode)

	user := seedUserWithCredits(1, 100)
	assert.NoError(t, services.FreezeAccount(1, "review", 9))
	r := testRouter(user)

	body, _ := json.Marshal(upload.BeginUploadInput{
		FileSizeBytes: mb,
		MediaType:     "image",
	})
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/uploads", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBeginUploadRateLimitedHTTP(t *testing.T) {
	t.Setenv("RATE_LIMIT_UPLOAD_BEGIN_MAX", "1")
	t.Setenv("RATE_LIMIT_UPLOAD_BEGIN_WINDOW_MINUTES", "60")

	setupTestDB()
	mr := setupTestRedis()
	defer mr.Close()

	gin.SetMode(gin.TestMode)

	user := seedUserWithCredits(1, 100)
	r := testRouter(user)

	post := func() *httptest.ResponseRecorder {
		body, _ := json.Marshal(upload.BeginUploadInput{
			FileSizeBytes: mb,
			MediaType:     "image",
		})
		req, _ := http.NewRequest(http.MethodPost, "/api/v1/uploads", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusCreated, post().Code)

	w := post()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp struct {
		Data struct {
			RetryAfter int64 `json:"retry_after"`
		} `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Greater(t, resp.Data.RetryAfter, int64(0))
}

func TestBeginUploadValidationHTTP(t *testing.T) {
	setupTestDB()
	mr := setupTestRedis()
	defer mr.Close()

	gin.SetMode(gin.TestMode)

	user := seedUserWithCredits(1, 100)
	r := testRouter(user)

	// Unsupported media type is rejected by binding
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/uploads",
		bytes.NewReader([]byte(`{"file_size_bytes":1048576,"media_type":"audio"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing size
	req, _ = http.NewRequest(http.MethodPost, "/api/v1/uploads",
		bytes.NewReader([]byte(`{"media_type":"image"}`)))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFinalizeUnknownUploadHTTP(t *testing.T) {
	setupTestDB()
	mr := setupTestRedis()
	defer mr.Close()

	gin.SetMode(gin.TestMode)

	user := seedUserWithCredits(1, 100)
	r := testRouter(user)

	body, _ := json.Marshal(upload.FinalizeUploadInput{ContentID: "blob-1"})
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/uploads/doesnotexist/finalize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
