package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
)

// PurchaseOrder is a payment intent: how many credits the user is buying and
// for how much. The credits amount is fixed here so a webhook can never alter
// what a payment buys.
type PurchaseOrder struct {
	ID          string  `gorm:"primarykey;type:varchar(32)"` // Order ID
	UserID      uint    `gorm:"index;not null"`
	Credits     int64   `gorm:"not null"`
	Amount      float64 `gorm:"type:decimal(20,2);not null"`
	Status      string  `gorm:"type:varchar(20);default:'pending'"` // pending, paid, cancelled
	PaymentUUID string  `gorm:"type:varchar(36);index"`             // which payment config was used
	Remark      string  `gorm:"type:varchar(255)"`
	CompletedAt *time.Time
	CompletedBy uint `gorm:"default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Purchase is the settled record of one external payment event. The unique
// index on (provider, payment_reference) is the idempotency boundary for
// webhook redelivery.
type Purchase struct {
	ID               uint      `gorm:"primarykey"`
	CreatedAt        time.Time `gorm:"precision:3"`
	UserID           uint      `gorm:"index;not null"`
	Provider         string    `gorm:"type:varchar(50);not null;uniqueIndex:uk_purchase_provider_ref,priority:1"`
	PaymentReference string    `gorm:"type:varchar(64);not null;uniqueIndex:uk_purchase_provider_ref,priority:2"`
	CreditsAdded     int64     `gorm:"not null"`
	Status           string    `gorm:"type:varchar(20);default:'settled'"`
	OrderID          string    `gorm:"type:varchar(32);index"`
	Metadata         datatypes.JSON
}

// Reference is the ledger reference string for this purchase.
func (p *Purchase) Reference() string {
	return p.Provider + ":" + p.PaymentReference
}
