package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"mediavault-backend/config"
	"mediavault-backend/internal/database"
	"mediavault-backend/internal/models"
	"mediavault-backend/internal/payment"
	"mediavault-backend/internal/payment/epay"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound      = errors.New("purchase order not found")
	ErrOrderAlreadyPaid   = errors.New("purchase order already paid")
	ErrOrderCancelled     = errors.New("purchase order has been cancelled")
	ErrInvalidOrderStatus = errors.New("invalid order status for this operation")
	ErrInvalidCredits     = errors.New("credits must be positive")
)

// SettlePurchaseResult reports a credited purchase. NewBalance is credits.
type SettlePurchaseResult struct {
	Purchase   *models.Purchase
	NewBalance int64
}

// SettlePurchase credits an account for one external payment event, exactly
// once. The unique index on (provider, payment_reference) is the authoritative
// idempotency boundary; the lookup below is only the fast path, and a
// concurrent duplicate delivery loses on the index and returns the winner's
// result.
func SettlePurchase(userID uint, provider, paymentReference string, credits int64, metadata map[string]interface{}) (*SettlePurchaseResult, error) {
	if credits <= 0 {
		return nil, ErrInvalidCredits
	}

	var existing models.Purchase
	err := database.DB.First(&existing, "provider = ? AND payment_reference = ?", provider, paymentReference).Error
	if err == nil {
		return replaySettlePurchase(&existing)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	defer lockUser(userID)()

	purchase := &models.Purchase{
		UserID:           userID,
		Provider:         provider,
		PaymentReference: paymentReference,
		CreditsAdded:     credits,
		Status:           "settled",
		CreatedAt:        time.Now(),
	}
	if metadata != nil {
		if data, merr := json.Marshal(metadata); merr == nil {
			purchase.Metadata = datatypes.JSON(data)
		}
	}
	if orderID, ok := metadata["order_id"].(string); ok {
		purchase.OrderID = orderID
	}

	var result *SettlePurchaseResult
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(purchase).Error; err != nil {
			return err
		}

		account, err := grantTx(tx, userID, credits)
		if err != nil {
			return err
		}

		entry := &models.LedgerEntry{
			UserID:        userID,
			Type:          models.LedgerTypePurchase,
			Amount:        credits,
			BalanceBefore: account.Balance - credits,
			BalanceAfter:  account.Balance,
			Reference:     purchase.Reference(),
			Metadata:      models.JSON(metadata),
		}
		if err := appendLedgerTx(tx, entry); err != nil {
			return err
		}

		result = &SettlePurchaseResult{Purchase: purchase, NewBalance: account.Balance}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Concurrent redelivery won the unique index race
			var winner models.Purchase
			if ferr := database.DB.First(&winner, "provider = ? AND payment_reference = ?", provider, paymentReference).Error; ferr == nil {
				return replaySettlePurchase(&winner)
			}
		}
		return nil, err
	}

	invalidateAccountCache(userID)
	return result, nil
}

// replaySettlePurchase rebuilds the original settlement result from the
// purchase ledger entry without mutating anything.
func replaySettlePurchase(purchase *models.Purchase) (*SettlePurchaseResult, error) {
	var entry models.LedgerEntry
	err := database.DB.First(&entry, "user_id = ? AND type = ? AND reference = ?",
		purchase.UserID, models.LedgerTypePurchase, purchase.Reference()).Error
	if err != nil {
		zap.L().Error("settled purchase missing ledger entry",
			zap.Uint("user_id", purchase.UserID),
			zap.String("reference", purchase.Reference()))
		return nil, fmt.Errorf("%w: missing purchase entry for %s", ErrLedgerWrite, purchase.Reference())
	}
	return &SettlePurchaseResult{Purchase: purchase, NewBalance: entry.BalanceAfter}, nil
}

// CreatePurchaseOrder opens a payment intent for a credit package. Admission
// gates apply: purchases are mutating calls.
func CreatePurchaseOrder(userID uint, credits int64, paymentUUID string, remark string) (*models.PurchaseOrder, error) {
	if credits <= 0 {
		return nil, ErrInvalidCredits
	}
	if err := CheckFrozen(userID); err != nil {
		return nil, err
	}
	if err := CheckRateLimit(userID, config.EndpointPurchaseOrder); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	order := &models.PurchaseOrder{
		ID:          strings.ReplaceAll(uuid.New().String(), "-", ""),
		UserID:      userID,
		Credits:     credits,
		Amount:      float64(credits) * cfg.CreditPriceUSD,
		Status:      models.OrderStatusPending,
		PaymentUUID: paymentUUID,
		Remark:      remark,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := database.DB.Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// CompletePurchaseOrder marks an order paid and settles its credits. Called
// from the webhook path and from admin manual completion. Settlement is
// idempotent on (provider, externalID), so webhook redelivery that reaches
// this twice still credits exactly once.
func CompletePurchaseOrder(orderID string, provider string, externalID string, operatorID uint, operatorName string) (*SettlePurchaseResult, error) {
	var order models.PurchaseOrder
	if err := database.DB.First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if order.Status == models.OrderStatusCancelled {
		return nil, ErrOrderCancelled
	}

	result, err := SettlePurchase(order.UserID, provider, externalID, order.Credits, map[string]interface{}{
		"order_id": order.ID,
		"amount":   order.Amount,
		"operator": operatorName,
	})
	if err != nil {
		return nil, err
	}

	if order.Status != models.OrderStatusPaid {
		now := time.Now()
		err = database.DB.Model(&order).Updates(map[string]interface{}{
			"status":       models.OrderStatusPaid,
			"completed_at": &now,
			"completed_by": operatorID,
			"updated_at":   now,
		}).Error
		if err != nil {
			// Settlement already committed; the next redelivery heals the
			// order status without touching the balance again.
			zap.L().Error("order status update failed after settlement",
				zap.String("order_id", order.ID), zap.Error(err))
			return nil, err
		}
	}

	return result, nil
}

// CancelPurchaseOrder cancels a pending order.
func CancelPurchaseOrder(orderID string) error {
	var order models.PurchaseOrder
	if err := database.DB.First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return err
	}

	if order.Status != models.OrderStatusPending {
		return ErrInvalidOrderStatus
	}

	return database.DB.Model(&order).Updates(map[string]interface{}{
		"status":     models.OrderStatusCancelled,
		"updated_at": time.Now(),
	}).Error
}

// FindPurchaseOrders lists a user's orders.
func FindPurchaseOrders(userID uint, page, limit int) ([]models.PurchaseOrder, int64, error) {
	var orders []models.PurchaseOrder
	var total int64

	db := database.DB.Model(&models.PurchaseOrder{}).Where("user_id = ?", userID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Limit(limit).Offset(offset).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func GetPaymentMethods() ([]models.PaymentConfig, error) {
	var methods []models.PaymentConfig
	if err := database.DB.Where("enable = ?", true).Find(&methods).Error; err != nil {
		return nil, err
	}
	return methods, nil
}

func GetAllPaymentConfigs() ([]models.PaymentConfig, error) {
	var methods []models.PaymentConfig
	if err := database.DB.Find(&methods).Error; err != nil {
		return nil, err
	}
	return methods, nil
}

func CreatePaymentConfig(name string, method string, conf map[string]interface{}, enable bool) (*models.PaymentConfig, error) {
	configJSON, err := json.Marshal(conf)
	if err != nil {
		return nil, err
	}

	paymentConfig := &models.PaymentConfig{
		UUID:          uuid.New().String(),
		Name:          name,
		PaymentMethod: method,
		Config:        datatypes.JSON(configJSON),
		Enable:        enable,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	if err := database.DB.Create(paymentConfig).Error; err != nil {
		return nil, err
	}
	return paymentConfig, nil
}

func UpdatePaymentConfig(id uint, name string, conf map[string]interface{}, enable *bool) (*models.PaymentConfig, error) {
	var paymentConfig models.PaymentConfig
	if err := database.DB.First(&paymentConfig, id).Error; err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if name != "" {
		updates["name"] = name
	}
	if conf != nil {
		configJSON, err := json.Marshal(conf)
		if err != nil {
			return nil, err
		}
		updates["config"] = datatypes.JSON(configJSON)
	}
	if enable != nil {
		updates["enable"] = *enable
	}
	updates["updated_at"] = time.Now()

	if err := database.DB.Model(&paymentConfig).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &paymentConfig, nil
}

func DeletePaymentConfig(id uint) error {
	return database.DB.Delete(&models.PaymentConfig{}, id).Error
}

func driverFor(method string) (payment.Driver, error) {
	switch method {
	case "epay":
		return epay.NewEpayDriver(), nil
	default:
		return nil, errors.New("unsupported payment method")
	}
}

// GetPaymentJumpURL builds the gateway redirect URL for a pending order.
func GetPaymentJumpURL(orderID string, paymentMethodUUID string, paymentChannel string, notifyBaseURL string, returnURL string) (string, error) {
	var conf models.PaymentConfig
	if err := database.DB.Where("uuid = ?", paymentMethodUUID).First(&conf).Error; err != nil {
		return "", err
	}

	if !conf.Enable {
		return "", errors.New("payment method is disabled")
	}

	driver, err := driverFor(conf.PaymentMethod)
	if err != nil {
		return "", err
	}

	var configMap map[string]interface{}
	if err := json.Unmarshal(conf.Config, &configMap); err != nil {
		return "", err
	}
	if err := driver.SetConfig(configMap); err != nil {
		return "", err
	}

	var order models.PurchaseOrder
	if err := database.DB.Where("id = ?", orderID).First(&order).Error; err != nil {
		return "", err
	}
	if order.Status != models.OrderStatusPending {
		return "", ErrInvalidOrderStatus
	}

	fullNotifyURL := fmt.Sprintf("%s/%s", strings.TrimRight(notifyBaseURL, "/"), conf.UUID)

	params := map[string]interface{}{
		"type": paymentChannel,
	}

	return driver.Pay(order.ID, order.Amount, fullNotifyURL, returnURL, params)
}

// HandlePurchaseNotify verifies a payment webhook and settles the matching
// order. Redelivered notifications are harmless: settlement is idempotent.
func HandlePurchaseNotify(paymentUUID string, params map[string]interface{}) error {
	var conf models.PaymentConfig
	if err := database.DB.Where("uuid = ?", paymentUUID).First(&conf).Error; err != nil {
		return err
	}

	driver, err := driverFor(conf.PaymentMethod)
	if err != nil {
		return err
	}

	var configMap map[string]interface{}
	if err := json.Unmarshal(conf.Config, &configMap); err != nil {
		return err
	}
	if err := driver.SetConfig(configMap); err != nil {
		return err
	}

	isValid, orderID, externalID, err := driver.Notify(params)
	if err != nil {
		return err
	}
	if !isValid {
		return errors.New("invalid signature")
	}

	_, err = CompletePurchaseOrder(orderID, conf.PaymentMethod, externalID, 0, "system")
	return err
}
