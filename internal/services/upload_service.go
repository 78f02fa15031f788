package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"mediavault-backend/config"
	"mediavault-backend/internal/database"
	"mediavault-backend/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrUploadNotFound        = errors.New("upload not found")
	ErrUploadAlreadyFailed   = errors.New("upload has already failed")
	ErrUploadAlreadyComplete = errors.New("upload has already completed")
	ErrInvalidFileSize       = errors.New("file size must be positive")
	ErrInvalidMediaType      = errors.New("unsupported media type")
)

const bytesPerMB = 1024 * 1024

// CreditsForBytes converts a declared byte size to credits, rounding up so a
// partial MB still costs a full credit unit.
func CreditsForBytes(sizeBytes int64, creditsPerMB int64) int64 {
	if creditsPerMB <= 0 {
		creditsPerMB = 1
	}
	return (sizeBytes*creditsPerMB + bytesPerMB - 1) / bytesPerMB
}

// BeginUpload reserves credits for a declared byte size before any byte is
// transferred to the blob store. The reservation is the whole point: two
// concurrent uploads must not both pass a check against the same unreserved
// balance and discover the shortfall only after an expensive transfer.
func BeginUpload(userID uint, fileSizeBytes int64, mediaType models.MediaType, idempotencyKey string) (*models.Upload, error) {
	if fileSizeBytes <= 0 {
		return nil, ErrInvalidFileSize
	}
	if mediaType != models.MediaTypeImage && mediaType != models.MediaTypeVideo {
		return nil, ErrInvalidMediaType
	}

	// Idempotent replay short-circuits ahead of the gates so an unbounded
	// number of retries stays safe.
	if idempotencyKey != "" {
		var existing models.Upload
		err := database.DB.First(&existing, "user_id = ? AND idempotency_key = ?", userID, idempotencyKey).Error
		if err == nil {
			return &existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if err := CheckFrozen(userID); err != nil {
		return nil, err
	}
	if err := CheckRateLimit(userID, config.EndpointUploadBegin); err != nil {
		return nil, err
	}
	if err := CheckDailyQuota(userID, mediaType); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	credits := CreditsForBytes(fileSizeBytes, cfg.CreditsPerMB)

	defer lockUser(userID)()

	upload := &models.Upload{
		ID:              strings.ReplaceAll(uuid.New().String(), "-", ""),
		UserID:          userID,
		FileSizeBytes:   fileSizeBytes,
		CreditsRequired: credits,
		Status:          models.UploadStatusPending,
		MediaType:       mediaType,
		CreatedAt:       time.Now(),
	}
	if idempotencyKey != "" {
		upload.IdempotencyKey = &idempotencyKey
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := reserveTx(tx, userID, credits); err != nil {
			return err
		}
		return tx.Create(upload).Error
	})
	if err != nil {
		// A concurrent retry with the same key may have won the unique index
		// race; return its row instead of a duplicate.
		if idempotencyKey != "" && errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing models.Upload
			if ferr := database.DB.First(&existing, "user_id = ? AND idempotency_key = ?", userID, idempotencyKey).Error; ferr == nil {
				return &existing, nil
			}
		}
		return nil, err
	}

	invalidateAccountCache(userID)
	return upload, nil
}

// FinalizeResult reports a settled upload. Values are credits, the internal
// unit; the HTTP layer converts for display.
type FinalizeResult struct {
	UploadID       string
	ContentID      string
	CreditsCharged int64
	NewBalance     int64
}

// FinalizeUpload settles the reservation recorded at Begin. The charge always
// uses the stored credits_required, never a recomputation from a possibly
// different size. Safe to retry: a completed upload replays its original
// result and writes nothing.
func FinalizeUpload(userID uint, uploadID string, contentID string) (*FinalizeResult, error) {
	if err := CheckFrozen(userID); err != nil {
		return nil, err
	}
	if err := CheckRateLimit(userID, config.EndpointUploadFinalize); err != nil {
		return nil, err
	}

	defer lockUser(userID)()

	var result *FinalizeResult
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var upload models.Upload
		err := tx.Set("gorm:query_option", "FOR UPDATE").
			First(&upload, "id = ? AND user_id = ?", uploadID, userID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUploadNotFound
			}
			return err
		}

		if upload.Status == models.UploadStatusComplete {
			result, err = replayFinalizeTx(tx, &upload)
			return err
		}
		if upload.Status == models.UploadStatusFailed {
			return ErrUploadAlreadyFailed
		}

		account, err := settleTx(tx, userID, upload.CreditsRequired)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				// Accounts are provisioned at signup; this is a provisioning
				// failure, not a user error.
				zap.L().Error("settlement hit missing account",
					zap.Uint("user_id", userID),
					zap.String("upload_id", uploadID))
			}
			return err
		}

		entry := &models.LedgerEntry{
			UserID:        userID,
			Type:          models.LedgerTypeChargeUpload,
			Amount:        -upload.CreditsRequired,
			BalanceBefore: account.Balance + upload.CreditsRequired,
			BalanceAfter:  account.Balance,
			Reference:     upload.ID,
			Metadata: models.JSON{
				"media_type":      string(upload.MediaType),
				"file_size_bytes": upload.FileSizeBytes,
				"content_id":      contentID,
			},
		}
		if err := appendLedgerTx(tx, entry); err != nil {
			return err
		}

		now := time.Now()
		upload.Status = models.UploadStatusComplete
		upload.ContentID = contentID
		upload.CompletedAt = &now
		if err := tx.Save(&upload).Error; err != nil {
			return err
		}

		if err := incrementDailyUsageTx(tx, userID, upload.MediaType); err != nil {
			return err
		}

		result = &FinalizeResult{
			UploadID:       upload.ID,
			ContentID:      contentID,
			CreditsCharged: upload.CreditsRequired,
			NewBalance:     account.Balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateAccountCache(userID)
	return result, nil
}

// replayFinalizeTx rebuilds the original finalize result from the charge
// ledger entry so retries return byte-identical output.
func replayFinalizeTx(tx *gorm.DB, upload *models.Upload) (*FinalizeResult, error) {
	var entry models.LedgerEntry
	err := tx.First(&entry, "user_id = ? AND type = ? AND reference = ?",
		upload.UserID, models.LedgerTypeChargeUpload, upload.ID).Error
	if err != nil {
		// A completed upload without its charge entry is an irrecoverable
		// inconsistency; the transaction boundary should make it impossible.
		zap.L().Error("completed upload missing charge ledger entry",
			zap.Uint("user_id", upload.UserID),
			zap.String("upload_id", upload.ID))
		return nil, fmt.Errorf("%w: missing charge entry for upload %s", ErrLedgerWrite, upload.ID)
	}

	return &FinalizeResult{
		UploadID:       upload.ID,
		ContentID:      upload.ContentID,
		CreditsCharged: upload.CreditsRequired,
		NewBalance:     entry.BalanceAfter,
	}, nil
}

// FailUpload releases the reservation without charging. No ledger entry is
// written: nothing was ever charged, the hold simply evaporates. Idempotent.
func FailUpload(userID uint, uploadID string) (int64, error) {
	if err := CheckFrozen(userID); err != nil {
		return 0, err
	}

	defer lockUser(userID)()

	var released int64
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		released, err = failUploadTx(tx, userID, uploadID)
		return err
	})
	if err != nil {
		return 0, err
	}

	invalidateAccountCache(userID)
	return released, nil
}

// failUploadTx is the shared fail transition, also used by the reservation
// sweep (which bypasses the freeze gate: stranding holds on a frozen account
// helps nobody).
func failUploadTx(tx *gorm.DB, userID uint, uploadID string) (int64, error) {
	var upload models.Upload
	err := tx.Set("gorm:query_option", "FOR UPDATE").
		First(&upload, "id = ? AND user_id = ?", uploadID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUploadNotFound
		}
		return 0, err
	}

	if upload.Status == models.UploadStatusFailed {
		return upload.CreditsRequired, nil // replay
	}
	if upload.Status == models.UploadStatusComplete {
		return 0, ErrUploadAlreadyComplete
	}

	if _, err := releaseTx(tx, userID, upload.CreditsRequired); err != nil {
		return 0, err
	}

	now := time.Now()
	upload.Status = models.UploadStatusFailed
	upload.CompletedAt = &now
	if err := tx.Save(&upload).Error; err != nil {
		return 0, err
	}

	return upload.CreditsRequired, nil
}

// GetUpload returns one upload owned by the user.
func GetUpload(userID uint, uploadID string) (*models.Upload, error) {
	var upload models.Upload
	err := database.DB.First(&upload, "id = ? AND user_id = ?", uploadID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUploadNotFound
		}
		return nil, err
	}
	return &upload, nil
}

// FindUploads retrieves a user's uploads with pagination and optional status filter.
func FindUploads(userID uint, status *models.UploadStatus, page, limit int) ([]models.Upload, int64, error) {
	var uploads []models.Upload
	var total int64

	db := database.DB.Model(&models.Upload{}).Where("user_id = ?", userID)
	if status != nil {
		db = db.Where("status = ?", *status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Limit(limit).Offset(offset).Find(&uploads).Error; err != nil {
		return nil, 0, err
	}

	return uploads, total, nil
}
