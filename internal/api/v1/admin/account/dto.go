package account

import (
	"time"

	"mediavault-backend/internal/models"
)

type AdjustCreditsInput struct {
	Delta  int64  `json:"delta" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

type FreezeInput struct {
	Reason string `json:"reason" binding:"required"`
}

type AccountItem struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	Balance   int64     `json:"balance"`
	Total     int64     `json:"total"`
	Spent     int64     `json:"spent"`
	Reserved  int64     `json:"reserved"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AccountListResponse struct {
	Accounts []AccountItem `json:"accounts"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	Limit    int           `json:"limit"`
}

func toAccountItem(a *models.Account) AccountItem {
	return AccountItem{
		ID:        a.ID,
		UserID:    a.UserID,
		Balance:   a.Balance,
		Total:     a.Total,
		Spent:     a.Spent,
		Reserved:  a.Reserved,
		UpdatedAt: a.UpdatedAt,
	}
}
