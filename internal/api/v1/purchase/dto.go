package purchase

import (
	"time"

	"mediavault-backend/internal/models"
)

type CreateOrderInput struct {
	Credits           int64  `json:"credits" binding:"required,gt=0"`
	PaymentMethodUUID string `json:"payment_method_uuid" binding:"required"`
	Remark            string `json:"remark"`
}

type PayOrderInput struct {
	PaymentMethodUUID string `json:"payment_method_uuid" binding:"required"`
	PaymentChannel    string `json:"payment_channel"`
	ReturnURL         string `json:"return_url"`
}

type PaymentMethodResponse struct {
	UUID string `json:"uuid"`
	Type string `json:"type"`
	Name string `json:"name"`
}

type OrderResponse struct {
	ID          string     `json:"id"`
	Credits     int64      `json:"credits"`
	Amount      float64    `json:"amount"`
	Status      string     `json:"status"`
	Remark      string     `json:"remark,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type PayOrderResponse struct {
	OrderID string `json:"order_id"`
	JumpURL string `json:"jump_url"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int64           `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

func toOrderResponse(o *models.PurchaseOrder) OrderResponse {
	return OrderResponse{
		ID:          o.ID,
		Credits:     o.Credits,
		Amount:      o.Amount,
		Status:      o.Status,
		Remark:      o.Remark,
		CreatedAt:   o.CreatedAt,
		CompletedAt: o.CompletedAt,
	}
}
