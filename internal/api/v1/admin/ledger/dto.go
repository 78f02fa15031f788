package ledger

import (
	"time"

	"mediavault-backend/internal/models"
)

type LedgerEntryItem struct {
	ID            uint                   `json:"id"`
	CreatedAt     time.Time              `json:"created_at"`
	UserID        uint                   `json:"user_id"`
	Type          models.LedgerEntryType `json:"type"`
	Amount        int64                  `json:"amount"`
	BalanceBefore int64                  `json:"balance_before"`
	BalanceAfter  int64                  `json:"balance_after"`
	Reference     string                 `json:"reference"`
	Operator      string                 `json:"operator"`
	Hash          string                 `json:"hash"`
}

type LedgerListResponse struct {
	Entries []LedgerEntryItem `json:"entries"`
	Total   int64             `json:"total"`
	Page    int               `json:"page"`
	Limit   int               `json:"limit"`
}
