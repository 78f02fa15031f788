package services

import (
	"time"

	"mediavault-backend/config"
	"mediavault-backend/internal/database"
	"mediavault-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SweepManager releases reservations of uploads abandoned in pending: a
// client that never calls finalize or fail would otherwise lock credits
// forever. Each expired upload goes through the normal fail transition, so a
// sweep racing a late client call is just an idempotent replay.
type SweepManager struct {
	interval time.Duration
	ttl      time.Duration
	stopChan chan struct{}
}

var SweepMgr *SweepManager

func init() {
	SweepMgr = &SweepManager{
		stopChan: make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called.
func (sm *SweepManager) Start() {
	cfg, err := config.LoadConfig()
	if err != nil {
		zap.L().Error("sweep manager config load failed", zap.Error(err))
		return
	}
	sm.interval = time.Duration(cfg.SweepIntervalMinutes) * time.Minute
	sm.ttl = time.Duration(cfg.ReservationTTLMinutes) * time.Minute

	zap.L().Info("reservation sweep started",
		zap.Duration("interval", sm.interval),
		zap.Duration("ttl", sm.ttl))

	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sm.SweepOnce()
		case <-sm.stopChan:
			return
		}
	}
}

// Stop terminates the sweep loop.
func (sm *SweepManager) Stop() {
	close(sm.stopChan)
}

// SweepOnce releases every reservation older than the TTL. Returns the number
// of uploads failed.
func (sm *SweepManager) SweepOnce() int {
	cutoff := time.Now().Add(-sm.ttl)

	var stale []models.Upload
	err := database.DB.
		Where("status = ? AND created_at < ?", models.UploadStatusPending, cutoff).
		Limit(100).
		Find(&stale).Error
	if err != nil {
		zap.L().Error("reservation sweep query failed", zap.Error(err))
		return 0
	}

	swept := 0
	for _, upload := range stale {
		upload := upload
		unlock := lockUser(upload.UserID)
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			_, err := failUploadTx(tx, upload.UserID, upload.ID)
			return err
		})
		unlock()
		if err != nil {
			zap.L().Error("reservation sweep failed for upload",
				zap.String("upload_id", upload.ID),
				zap.Uint("user_id", upload.UserID),
				zap.Error(err))
			continue
		}
		invalidateAccountCache(upload.UserID)
		swept++
		zap.L().Info("released abandoned reservation",
			zap.String("upload_id", upload.ID),
			zap.Uint("user_id", upload.UserID),
			zap.Int64("credits", upload.CreditsRequired))
	}
	return swept
}
