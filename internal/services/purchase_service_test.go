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

func setupPurchaseTestDB() {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{TranslateError: true})
	if err != nil {
		panic("failed to connect database")
	}

	db.Migrator().DropTable(&models.Account{}, &models.AccountStatus{}, &models.LedgerEntry{},
		&models.PurchaseOrder{}, &models.Purchase{}, &models.PaymentConfig{}, &models.RateLimitWindow{})
	db.AutoMigrate(&models.Account{}, &models.AccountStatus{}, &models.LedgerEntry{},
		&models.PurchaseOrder{}, &models.Purchase{}, &models.PaymentConfig{}, &models.RateLimitWindow{})

	database.DB = db
}

func setupPurchaseTestRedis() *miniredis.Miniredis {
	mr, err := miniredis.Run()
	if err != nil {
		panic(err)
	}

	database.RedisClient = redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return mr
}

func TestSettlePurchaseIdempotent(t *testing.T) {
	setupPurchaseTestDB()
	mr := setupPurchaseTestRedis()
	defer mr.Close()

	seedAccount(1, 0, 0, 0, 0)

	result, err := SettlePurchase(1, "epay", "trade-001", 1000, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(1000), result.NewBalance)
	assert.Equal(t, int64(1000), result.Purchase.CreditsAdded)

	var acct models.Account
	database.DB.First(&acct, "user_id = ?", 1)
	assert.Equal(t, int64(1000), acct.Balance)
	assert.Equal(t, int64(1000), acct.Total)

	var entry models.LedgerEntry
	database.DB.First(&entry, "reference = ?", "epay:trade-001")
	assert.Equal(t, models.LedgerTypePurchase, entry.Type)
	assert.Equal(t, int64(1000), entry.Amount)
	assert.Equal(t, int64(0), entry.BalanceBefore)
	assert.Equal(t, int64(1000), entry.BalanceAfter)

	// Redelivery credits nothing and replays the original result
	replay, err := SettlePurchase(1, "epay", "trade-001", 1000, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(1000), replay.NewBalance)

	database.DB.First(&acct, "user_id = ?", 1)
	assert.Equal(t, int64(1000), acct.Balance)

	var ledgerCount, purchaseCount int64
	database.DB.Model(&models.LedgerEntry{}).Count(&ledgerCount)
	database.DB.Model(&models.Purchase{}).Count(&purchaseCount)
	assert.Equal(t, int64(1), ledgerCount)
	assert.Equal(t, int64(1), purchaseCount)

	// Same reference under a different provider is a distinct payment
	_, err = SettlePurchase(1, "manual", "trade-001", 500, nil)
	assert.NoError(t, err)

	database.DB.First(&acct, "user_id = ?", 1)
	assert.Equal(t, int64(1500), acct.Balance)
}

func TestSettlePurchaseValidation(t *testing.T) {
	setupPurchaseTestDB()
	mr := setupPurchaseTestRedis()
	defer mr.Close()

	seedAccount(1, 0, 0, 0, 0)

	_, err := SettlePurchase(1, "epay", "trade-002", 0, nil)
	assert.ErrorIs(t, err, ErrInvalidCredits)

	_, err = SettlePurchase(1, "epay", "trade-002", -10, nil)
	assert.ErrorIs(t, err, ErrInvalidCredits)
}

func TestCreatePurchaseOrder(t *testing.T) {
	t.Setenv("CREDIT_PRICE_USD", "0.01")

	setupPurchaseTestDB()
	mr := setupPurchaseTestRedis()
	defer mr.Close()

	seedAccount(1, 0, 0, 0, 0)

	order, err := CreatePurchaseOrder(1, 1000, "pm-uuid", "first purchase")
	assert.NoError(t, err)
	assert.Equal(t, int64(1000), order.Credits)
	assert.Equal(t, 10.0, order.Amount)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.NotEmpty(t, order.ID)

	// Frozen accounts cannot open orders
	assert.NoError(t, FreezeAccount(1, "review", 9))
	_, err = CreatePurchaseOrder(1, 1000, "pm-uuid", "")
	assert.ErrorIs(t, err, ErrAccountFrozen)
}

func TestCompletePurchaseOrderSettlesOnce(t *testing.T) {
	setupPurchaseTestDB()
	mr := setupPurchaseTestRedis()
	defer mr.Close()

	seedAccount(1, 0, 0, 0, 0)

	order, err := CreatePurchaseOrder(1, 2000, "pm-uuid", "")
	assert.NoError(t, err)

	result, err := CompletePurchaseOrder(order.ID, "epay", "trade-777", 9, "operator")
	assert.NoError(t, err)
	assert.Equal(t, int64(2000), result.NewBalance)

	var reloaded models.PurchaseOrder
	database.DB.First(&reloaded, "id = ?", order.ID)
	assert.Equal(t, models.OrderStatusPaid, reloaded.Status)
	assert.Equal(t, uint(9), reloaded.CompletedBy)
	assert.NotNil(t, reloaded.CompletedAt)

	// Webhook redelivery hits the settled purchase and changes nothing
	replay, err := CompletePurchaseOrder(order.ID, "epay", "trade-777", 0, "system")
	assert.NoError(t, err)
	assert.Equal(t, int64(2000), replay.NewBalance)

	var acct models.Account
	database.DB.First(&acct, "user_id = ?", 1)
	assert.Equal(t, int64(2000), acct.Balance)

	var ledgerCount int64
	database.DB.Model(&models.LedgerEntry{}).Count(&ledgerCount)
	assert.Equal(t, int64(1), ledgerCount)
}

func TestCompleteCancelledOrder(t *testing.T) {
	setupPurchaseTestDB()
	mr := setupPurchaseTestRedis()
	defer mr.Close()

	seedAccount(1, 0, 0, 0, 0)

	order, err := CreatePurchaseOrder(1, 500, "pm-uuid", "")
	assert.NoError(t, err)

	assert.NoError(t, CancelPurchaseOrder(order.ID))

	_, err = CompletePurchaseOrder(order.ID, "epay", "trade-888", 0, "system")
	assert.ErrorIs(t, err, ErrOrderCancelled)

	var acct models.Account
	database.DB.First(&acct, "user_id = ?", 1)
	assert.Equal(t, int64(0), acct.Balance)

	// A paid order cannot be cancelled
	order2, _ := CreatePurchaseOrder(1, 500, "pm-uuid", "")
	_, err = CompletePurchaseOrder(order2.ID, "epay", "trade-889", 0, "system")
	assert.NoError(t, err)
	assert.ErrorIs(t, CancelPurchaseOrder(order2.ID), ErrInvalidOrderStatus)

	assert.ErrorIs(t, CancelPurchaseOrder("missing"), ErrOrderNotFound)
	_, err = CompletePurchaseOrder("missing", "epay", "x", 0, "system")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestPaymentConfigLifecycle(t *testing.T) {
	setupPurchaseTestDB()
	mr := setupPurchaseTestRedis()
	defer mr.Close()

	conf, err := CreatePaymentConfig("Test Gateway", "epay", map[string]interface{}{
		"url": "https://pay.example.com",
		"pid": "1001",
		"key": "secret",
	}, true)
	assert.NoError(t, err)
	assert.NotEmpty(t, conf.UUID)

	methods, err := GetPaymentMethods()
	assert.NoError(t, err)
	assert.Len(t, methods, 1)

	disabled := false
	_, err = UpdatePaymentConfig(conf.ID, "", nil, &disabled)
	assert.NoError(t, err)

	methods, err = GetPaymentMethods()
	assert.NoError(t, err)
	assert.Len(t, methods, 0)

	all, err := GetAllPaymentConfigs()
	assert.NoError(t, err)
	assert.Len(t, all, 1)

	assert.NoError(t, DeletePaymentConfig(conf.ID))
	all, _ = GetAllPaymentConfigs()
	assert.Len(t, all, 0)
}

func TestGetPaymentJumpURL(t *testing.T) {
	setupPurchaseTestDB()
	mr := setupPurchaseTestRedis()
	defer mr.Close()

	seedAccount(1, 0, 0, 0, 0)

	conf, err := CreatePaymentConfig("Test Gateway", "epay", map[string]interface{}{
		"url": "https://pay.example.com",
		"pid": "1001",
		"key": "secret",
	}, true)
	assert.NoError(t, err)

	order, err := CreatePurchaseOrder(1, 100, conf.UUID, "")
	assert.NoError(t, err)

	jumpURL, err := GetPaymentJumpURL(order.ID, conf.UUID, "alipay", "https://api.example.com/api/v1/purchases/notify", "https://app.example.com/done")
	assert.NoError(t, err)
	assert.Contains(t, jumpURL, "https://pay.example.com/submit.php?")
	assert.Contains(t, jumpURL, order.ID)
	assert.Contains(t, jumpURL, "sign=")

	// Only pending orders can be paid
	_, err = CompletePurchaseOrder(order.ID, "epay", "trade-1", 0, "system")
	assert.NoError(t, err)
	_, err = GetPaymentJumpURL(order.ID, conf.UUID, "alipay", "https://api.example.com/api/v1/purchases/notify", "")
	assert.ErrorIs(t, err, ErrInvalidOrderStatus)
}
