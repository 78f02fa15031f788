package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"mediavault-backend/config"
	"mediavault-backend/internal/database"
	"mediavault-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrAccountNotFound indicates a missing account row. Accounts are
	// provisioned at signup, so hitting this during settlement is an internal
	// invariant violation, not a user error.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountInvariant indicates a write would break balance >= reserved >= 0.
	ErrAccountInvariant = errors.New("account invariant violated")
)

// InsufficientCreditsError is returned when a reservation cannot be covered
// by balance minus existing reservations.
type InsufficientCreditsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

// Per-user serialization for the read-check-write sequences below. The row
// lock protects against other processes; this protects in-process callers
// sharing one connection pool.
var userLocks sync.Map // map[uint]*sync.Mutex

func lockUser(userID uint) func() {
	v, _ := userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func lockAccountTx(tx *gorm.DB, userID uint) (*models.Account, error) {
	var account models.Account
	if err := tx.Set("gorm:query_option", "FOR UPDATE").First(&account, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func saveAccountTx(tx *gorm.DB, account *models.Account) error {
	if account.Balance < 0 || account.Reserved < 0 || account.Spent < 0 || account.Balance < account.Reserved {
		zap.L().Error("refusing account write that breaks invariants",
			zap.Uint("user_id", account.UserID),
			zap.Int64("balance", account.Balance),
			zap.Int64("reserved", account.Reserved),
			zap.Int64("spent", account.Spent))
		return ErrAccountInvariant
	}
	account.Version++
	return tx.Save(account).Error
}

// reserveTx places a hold of credits for an in-flight upload. Fails unless
// balance - reserved covers the request.
func reserveTx(tx *gorm.DB, userID uint, credits int64) (*models.Account, error) {
	account, err := lockAccountTx(tx, userID)
	if err != nil {
		return nil, err
	}

	available := account.Balance - account.Reserved
	if available < credits {
		return nil, &InsufficientCreditsError{Required: credits, Available: available}
	}

	account.Reserved += credits
	if err := saveAccountTx(tx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// releaseTx drops a hold. Idempotent: releasing more than is held clamps to
// zero instead of driving reserved negative.
func releaseTx(tx *gorm.DB, userID uint, credits int64) (*models.Account, error) {
	account, err := lockAccountTx(tx, userID)
	if err != nil {
		return nil, err
	}

	account.Reserved -= credits
	if account.Reserved < 0 {
		account.Reserved = 0
	}
	if err := saveAccountTx(tx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// settleTx converts a hold into a permanent charge.
func settleTx(tx *gorm.DB, userID uint, credits int64) (*models.Account, error) {
	account, err := lockAccountTx(tx, userID)
	if err != nil {
		return nil, err
	}

	if account.Balance < credits {
		return nil, ErrAccountInvariant
	}

	account.Balance -= credits
	account.Spent += credits
	account.Reserved -= credits
	if account.Reserved < 0 {
		account.Reserved = 0
	}
	if err := saveAccountTx(tx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// grantTx adds credits. Used for the signup grant, purchases and positive
// admin adjustments.
func grantTx(tx *gorm.DB, userID uint, credits int64) (*models.Account, error) {
	account, err := lockAccountTx(tx, userID)
	if err != nil {
		return nil, err
	}

	account.Balance += credits
	account.Total += credits
	if err := saveAccountTx(tx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Reserve holds credits for one user under the per-user lock.
func Reserve(userID uint, credits int64) (*models.Account, error) {
	defer lockUser(userID)()

	var account *models.Account
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		account, err = reserveTx(tx, userID, credits)
		return err
	})
	if err != nil {
		return nil, err
	}
	invalidateAccountCache(userID)
	return account, nil
}

// Release drops a hold under the per-user lock.
func Release(userID uint, credits int64) (*models.Account, error) {
	defer lockUser(userID)()

	var account *models.Account
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		account, err = releaseTx(tx, userID, credits)
		return err
	})
	if err != nil {
		return nil, err
	}
	invalidateAccountCache(userID)
	return account, nil
}

// Grant adds credits under the per-user lock.
func Grant(userID uint, credits int64) (*models.Account, error) {
	defer lockUser(userID)()

	var account *models.Account
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		account, err = grantTx(tx, userID, credits)
		return err
	})
	if err != nil {
		return nil, err
	}
	invalidateAccountCache(userID)
	return account, nil
}

// Settle converts a hold into a permanent charge under the per-user lock.
// Upload finalization uses settleTx directly so the ledger write shares its
// transaction; this wrapper exists for callers outside that path.
func Settle(userID uint, credits int64) (*models.Account, error) {
	defer lockUser(userID)()

	var account *models.Account
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		account, err = settleTx(tx, userID, credits)
		return err
	})
	if err != nil {
		return nil, err
	}
	invalidateAccountCache(userID)
	return account, nil
}

// provisionAccountTx creates the account row, its status row and the free
// signup grant with its ledger entry. Called from user registration.
func provisionAccountTx(tx *gorm.DB, userID uint, operator string) (*models.Account, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		UserID:   userID,
		Balance:  cfg.FreeGrantCredits,
		Total:    cfg.FreeGrantCredits,
		Spent:    0,
		Reserved: 0,
	}
	if err := tx.Create(account).Error; err != nil {
		return nil, err
	}

	status := &models.AccountStatus{UserID: userID}
	if err := tx.Create(status).Error; err != nil {
		return nil, err
	}

	if cfg.FreeGrantCredits > 0 {
		entry := &models.LedgerEntry{
			UserID:        userID,
			Type:          models.LedgerTypeGrantFree,
			Amount:        cfg.FreeGrantCredits,
			BalanceBefore: 0,
			BalanceAfter:  cfg.FreeGrantCredits,
			Reference:     fmt.Sprintf("signup:%d", userID),
			Operator:      operator,
		}
		if err := appendLedgerTx(tx, entry); err != nil {
			return nil, err
		}
	}

	return account, nil
}

// AccountSummary is the user-facing view. Credits never leak out of the
// service layer; everything here is converted to GB.
type AccountSummary struct {
	TotalGB        float64 `json:"total_gb"`
	UsedGB         float64 `json:"used_gb"`
	RemainingGB    float64 `json:"remaining_gb"`
	ReservedGB     float64 `json:"reserved_gb"`
	AvailableGB    float64 `json:"available_gb"`
	PercentageUsed float64 `json:"percentage_used"`
}

func creditsToGB(credits int64, creditsPerMB int64) float64 {
	if creditsPerMB <= 0 {
		creditsPerMB = 1
	}
	return float64(credits) / float64(creditsPerMB) / 1024.0
}

func accountCacheKey(userID uint) string {
	return fmt.Sprintf("account:summary:%d", userID)
}

func invalidateAccountCache(userID uint) {
	if database.RedisClient != nil {
		database.RedisClient.Del(database.Ctx, accountCacheKey(userID))
	}
}

// GetAccountSummary returns the GB-converted view of one account.
func GetAccountSummary(userID uint) (*AccountSummary, error) {
	cacheKey := accountCacheKey(userID)
	if database.RedisClient != nil {
		val, err := database.RedisClient.Get(database.Ctx, cacheKey).Result()
		if err == nil {
			var summary AccountSummary
			if err := json.Unmarshal([]byte(val), &summary); err == nil {
				return &summary, nil
			}
		}
	}

	var account models.Account
	if err := database.DB.First(&account, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	summary := &AccountSummary{
		TotalGB:     creditsToGB(account.Total, cfg.CreditsPerMB),
		UsedGB:      creditsToGB(account.Spent, cfg.CreditsPerMB),
		RemainingGB: creditsToGB(account.Balance, cfg.CreditsPerMB),
		ReservedGB:  creditsToGB(account.Reserved, cfg.CreditsPerMB),
		AvailableGB: creditsToGB(account.Balance-account.Reserved, cfg.CreditsPerMB),
	}
	if account.Total > 0 {
		summary.PercentageUsed = float64(account.Spent) / float64(account.Total) * 100
	}

	if database.RedisClient != nil {
		if data, err := json.Marshal(summary); err == nil {
			database.RedisClient.Set(database.Ctx, cacheKey, data, 5*time.Minute)
		}
	}

	return summary, nil
}

// AdminAdjustCredits grants (positive delta) or revokes (negative delta)
// credits and records an admin_adjust ledger entry.
func AdminAdjustCredits(userID uint, delta int64, reason string, operator string, operatorID uint) (*models.Account, error) {
	defer lockUser(userID)()

	var account *models.Account
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		account, err = lockAccountTx(tx, userID)
		if err != nil {
			return err
		}

		if delta < 0 {
			available := account.Balance - account.Reserved
			if available < -delta {
				return &InsufficientCreditsError{Required: -delta, Available: available}
			}
		}

		balanceBefore := account.Balance
		account.Balance += delta
		account.Total += delta
		if err := saveAccountTx(tx, account); err != nil {
			return err
		}

		entry := &models.LedgerEntry{
			UserID:        userID,
			Type:          models.LedgerTypeAdminAdjust,
			Amount:        delta,
			BalanceBefore: balanceBefore,
			BalanceAfter:  account.Balance,
			Reference:     fmt.Sprintf("adjust:%d", userID),
			Operator:      operator,
			OperatorID:    operatorID,
			Metadata:      models.JSON{"reason": reason},
		}
		return appendLedgerTx(tx, entry)
	})
	if err != nil {
		return nil, err
	}
	invalidateAccountCache(userID)
	return account, nil
}

// FreezeAccount blocks every mutating call for the user until unfrozen.
func FreezeAccount(userID uint, reason string, operatorID uint) error {
	now := time.Now()
	var status models.AccountStatus
	err := database.DB.Where(models.AccountStatus{UserID: userID}).FirstOrCreate(&status).Error
	if err != nil {
		return err
	}

	err = database.DB.Model(&status).Updates(map[string]interface{}{
		"is_frozen":     true,
		"freeze_reason": reason,
		"frozen_at":     &now,
		"frozen_by":     operatorID,
	}).Error
	if err != nil {
		return err
	}

	invalidateFrozenCache(userID)
	return nil
}

// UnfreezeAccount lifts an administrative freeze.
func UnfreezeAccount(userID uint) error {
	var status models.AccountStatus
	if err := database.DB.First(&status, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // never frozen
		}
		return err
	}

	err := database.DB.Model(&status).Updates(map[string]interface{}{
		"is_frozen":     false,
		"freeze_reason": "",
		"frozen_at":     nil,
		"frozen_by":     0,
	}).Error
	if err != nil {
		return err
	}

	invalidateFrozenCache(userID)
	return nil
}

// FindAccounts retrieves a paginated list of accounts for the admin view.
func FindAccounts(page, limit int) ([]models.Account, int64, error) {
	var accounts []models.Account
	var total int64

	offset := (page - 1) * limit

	if err := database.DB.Model(&models.Account{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := database.DB.Order("id").Limit(limit).Offset(offset).Find(&accounts).Error; err != nil {
		return nil, 0, err
	}

	return accounts, total, nil
}
