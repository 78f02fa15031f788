package services

import (
	"errors"
	"fmt"
	"time"

	"mediavault-backend/config"
	"mediavault-backend/internal/database"
	"mediavault-backend/internal/models"

	"gorm.io/gorm"
)

// ErrAccountFrozen rejects every mutating call until an admin unfreezes the
// account. Checked ahead of rate limits and quotas.
var ErrAccountFrozen = errors.New("account is frozen")

// RateLimitError carries the retry hint derived from the open window.
type RateLimitError struct {
	Endpoint   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Endpoint, e.RetryAfter.Round(time.Second))
}

// DailyLimitError carries current/max so clients can show "N remaining today".
type DailyLimitError struct {
	MediaType models.MediaType
	Current   int
	Max       int
}

func (e *DailyLimitError) Error() string {
	return fmt.Sprintf("daily %s limit exceeded: %d of %d used", e.MediaType, e.Current, e.Max)
}

const frozenCachePrefix = "account:frozen:"

func invalidateFrozenCache(userID uint) {
	if database.RedisClient != nil {
		database.RedisClient.Del(database.Ctx, fmt.Sprintf("%s%d", frozenCachePrefix, userID))
	}
}

// CheckFrozen returns ErrAccountFrozen if the account is administratively
// frozen. A missing status row means not frozen.
func CheckFrozen(userID uint) error {
	cacheKey := fmt.Sprintf("%s%d", frozenCachePrefix, userID)
	if database.RedisClient != nil {
		val, err := database.RedisClient.Get(database.Ctx, cacheKey).Result()
		if err == nil {
			if val == "1" {
				return ErrAccountFrozen
			}
			return nil
		}
	}

	var status models.AccountStatus
	err := database.DB.First(&status, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if database.RedisClient != nil {
		val := "0"
		if status.IsFrozen {
			val = "1"
		}
		database.RedisClient.Set(database.Ctx, cacheKey, val, 5*time.Minute)
	}

	if status.IsFrozen {
		return ErrAccountFrozen
	}
	return nil
}

// CheckRateLimit enforces the fixed window for (user, endpoint): create the
// window on first call, recycle it once expired, otherwise count up to the
// configured maximum. Counter updates use insert-if-absent plus increment, so
// brief over-counting under extreme races is possible and accepted; balance
// correctness never rides on these rows.
func CheckRateLimit(userID uint, endpoint string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	rule := cfg.RateLimit(endpoint)
	if rule.MaxRequests <= 0 {
		return nil
	}
	window := time.Duration(rule.WindowMinutes) * time.Minute

	return database.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		var w models.RateLimitWindow
		err := tx.Set("gorm:query_option", "FOR UPDATE").
			First(&w, "user_id = ? AND endpoint = ?", userID, endpoint).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			w = models.RateLimitWindow{
				UserID:       userID,
				Endpoint:     endpoint,
				RequestCount: 1,
				WindowStart:  now,
				WindowEnd:    now.Add(window),
			}
			return tx.Create(&w).Error
		}

		if now.After(w.WindowEnd) {
			// Recycle the expired window in place
			return tx.Model(&w).Updates(map[string]interface{}{
				"request_count": 1,
				"window_start":  now,
				"window_end":    now.Add(window),
			}).Error
		}

		if w.RequestCount >= rule.MaxRequests {
			return &RateLimitError{Endpoint: endpoint, RetryAfter: w.WindowEnd.Sub(now)}
		}

		return tx.Model(&w).UpdateColumn("request_count", gorm.Expr("request_count + ?", 1)).Error
	})
}

func dailyCapFor(cfg *config.Config, mediaType models.MediaType) int {
	if mediaType == models.MediaTypeVideo {
		return cfg.DailyVideoCap
	}
	return cfg.DailyImageCap
}

// CheckDailyQuota enforces the per-media-type ceiling at Begin time. The
// counter itself is only incremented on successful Finalize, so a
// begun-but-failed upload never consumes the daily allowance.
func CheckDailyQuota(userID uint, mediaType models.MediaType) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	max := dailyCapFor(cfg, mediaType)
	if max <= 0 {
		return nil
	}

	var usage models.DailyMediaUsage
	err = database.DB.First(&usage, "user_id = ? AND day = ?", userID, models.UsageDay(time.Now())).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // nothing used today
		}
		return err
	}

	if current := usage.CountFor(mediaType); current >= max {
		return &DailyLimitError{MediaType: mediaType, Current: current, Max: max}
	}
	return nil
}

// incrementDailyUsageTx bumps today's counter inside the finalize transaction.
func incrementDailyUsageTx(tx *gorm.DB, userID uint, mediaType models.MediaType) error {
	usage := models.DailyMediaUsage{UserID: userID, Day: models.UsageDay(time.Now())}
	if err := tx.Where(models.DailyMediaUsage{UserID: usage.UserID, Day: usage.Day}).
		FirstOrCreate(&usage).Error; err != nil {
		return err
	}

	column := "image_count"
	if mediaType == models.MediaTypeVideo {
		column = "video_count"
	}
	return tx.Model(&usage).UpdateColumn(column, gorm.Expr(column+" + ?", 1)).Error
}

// DailyUsageFor returns today's counters for display.
func DailyUsageFor(userID uint) (*models.DailyMediaUsage, error) {
	var usage models.DailyMediaUsage
	err := database.DB.First(&usage, "user_id = ? AND day = ?", userID, models.UsageDay(time.Now())).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.DailyMediaUsage{UserID: userID, Day: models.UsageDay(time.Now())}, nil
		}
		return nil, err
	}
	return &usage, nil
}
