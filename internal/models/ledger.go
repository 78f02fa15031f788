package models

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

type LedgerEntryType string

const (
	LedgerTypeGrantFree    LedgerEntryType = "grant_free"
	LedgerTypeChargeUpload LedgerEntryType = "charge_upload"
	LedgerTypePurchase     LedgerEntryType = "purchase"
	LedgerTypeAdminAdjust  LedgerEntryType = "admin_adjust"
	LedgerTypeRefund       LedgerEntryType = "refund"
)

// LedgerEntry is the append-only audit record of every balance change.
// Entries are never updated or deleted; the sum of Amount per user must
// reconstruct total - spent. Live balance checks always hit Account instead.
type LedgerEntry struct {
	ID            uint            `gorm:"primarykey"`
	CreatedAt     time.Time       `gorm:"precision:3"` // Millisecond precision
	UserID        uint            `gorm:"index;not null"`
	Type          LedgerEntryType `gorm:"type:varchar(50);index;not null"`
	Amount        int64           `gorm:"not null"` // signed credits, negative = debit
	BalanceBefore int64           `gorm:"not null"`
	BalanceAfter  int64           `gorm:"not null"`
	Reference     string          `gorm:"type:varchar(128);index"` // upload ID or provider:payment_reference
	Operator      string          `gorm:"type:varchar(100)"`       // username or 'system'
	OperatorID    uint            `gorm:"index;default:0"`         // 0 for system
	Metadata      JSON            `gorm:"type:jsonb"`
	Hash          string          `gorm:"type:varchar(64);default:''"` // HMAC SHA256
}

// GenerateHash generates a tamper-proof hash for the ledger entry
func (e *LedgerEntry) GenerateHash(secret string) string {
	data := fmt.Sprintf("%d|%d|%s|%d|%d|%d|%s|%s|%d",
		e.UserID, e.CreatedAt.UnixNano(), e.Type, e.Amount, e.BalanceBefore, e.BalanceAfter,
		e.Reference, e.Operator, e.OperatorID)

	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}
