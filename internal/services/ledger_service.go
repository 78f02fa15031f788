package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"time"

	"mediavault-backend/config"
	"mediavault-backend/internal/database"
	"mediavault-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrLedgerWrite wraps a failed ledger insert. The balance mutation sharing
// the transaction rolls back with it, so it can only mean a transaction
// boundary problem; it is logged as critical, never shown as a user error.
var ErrLedgerWrite = errors.New("ledger write failed")

// appendLedgerTx stamps and inserts an entry inside the caller's transaction.
// Entries are append-only; nothing in this codebase updates or deletes them.
func appendLedgerTx(tx *gorm.DB, entry *models.LedgerEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.Operator == "" {
		entry.Operator = "system"
	}

	cfg, _ := config.LoadConfig()
	secret := "default-secret"
	if cfg != nil && cfg.LedgerHashSecret != "" {
		secret = cfg.LedgerHashSecret
	}
	entry.Hash = entry.GenerateHash(secret)

	if err := tx.Create(entry).Error; err != nil {
		zap.L().Error("ledger append failed",
			zap.Uint("user_id", entry.UserID),
			zap.String("type", string(entry.Type)),
			zap.Int64("amount", entry.Amount),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}
	return nil
}

// LedgerFilter defines criteria for filtering ledger entries
type LedgerFilter struct {
	UserID    *uint
	Type      *models.LedgerEntryType
	Reference *string
	StartTime *time.Time
	EndTime   *time.Time
	Page      int
	Limit     int
}

// FindLedgerEntries retrieves a paginated list of ledger entries with filtering
func FindLedgerEntries(filter LedgerFilter) ([]models.LedgerEntry, int64, error) {
	var entries []models.LedgerEntry
	var total int64

	query := database.DB.Model(&models.LedgerEntry{})

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Reference != nil {
		query = query.Where("reference = ?", *filter.Reference)
	}
	if filter.StartTime != nil {
		query = query.Where("created_at >= ?", *filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("created_at <= ?", *filter.EndTime)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := query.Order("created_at desc").Limit(filter.Limit).Offset(offset).Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// ExportLedgerCSV exports filtered ledger entries as CSV for offline audits.
func ExportLedgerCSV(filter LedgerFilter) ([]byte, error) {
	filter.Page = 1
	filter.Limit = 10000 // hard export ceiling

	entries, _, err := FindLedgerEntries(filter)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{"ID", "CreatedAt", "UserID", "Type", "Amount", "BalanceBefore", "BalanceAfter", "Reference", "Operator", "Hash"}
	if err := writer.Write(header); err != nil {
		return nil, err
	}

	for _, e := range entries {
		record := []string{
			fmt.Sprintf("%d", e.ID),
			e.CreatedAt.Format(time.RFC3339),
			fmt.Sprintf("%d", e.UserID),
			string(e.Type),
			fmt.Sprintf("%d", e.Amount),
			fmt.Sprintf("%d", e.BalanceBefore),
			fmt.Sprintf("%d", e.BalanceAfter),
			e.Reference,
			e.Operator,
			e.Hash,
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// ReconciliationReport compares the ledger against the live account counters.
type ReconciliationReport struct {
	UserID       uint  `json:"user_id"`
	LedgerSum    int64 `json:"ledger_sum"`
	AccountTotal int64 `json:"account_total"`
	AccountSpent int64 `json:"account_spent"`
	Consistent   bool  `json:"consistent"`
}

// ReconcileAccount checks that the sum of ledger amounts equals total - spent.
// The ledger is the audit source; a mismatch means a transaction boundary was
// broken somewhere and is logged as critical.
func ReconcileAccount(userID uint) (*ReconciliationReport, error) {
	var account models.Account
	if err := database.DB.First(&account, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	var sum struct {
		Total int64
	}
	err := database.DB.Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("user_id = ?", userID).
		Scan(&sum).Error
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		UserID:       userID,
		LedgerSum:    sum.Total,
		AccountTotal: account.Total,
		AccountSpent: account.Spent,
		Consistent:   sum.Total == account.Total-account.Spent,
	}

	if !report.Consistent {
		zap.L().Error("ledger reconciliation mismatch",
			zap.Uint("user_id", userID),
			zap.Int64("ledger_sum", report.LedgerSum),
			zap.Int64("account_total", report.AccountTotal),
			zap.Int64("account_spent", report.AccountSpent))
	}

	return report, nil
}
