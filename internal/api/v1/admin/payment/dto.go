package payment

type CreatePaymentConfigInput struct {
	Name          string                 `json:"name" binding:"required"`
	PaymentMethod string                 `json:"payment_method" binding:"required,oneof=epay"`
	Config        map[string]interface{} `json:"config" binding:"required"`
	Enable        bool                   `json:"enable"`
}

type UpdatePaymentConfigInput struct {
	Name   string                 `json:"name"`
	Config map[string]interface{} `json:"config"`
	Enable *bool                  `json:"enable"`
}

type CompleteOrderInput struct {
	ExternalID string `json:"external_id" binding:"required"`
}

type PaymentConfigResponse struct {
	ID            uint   `json:"id"`
	UUID          string `json:"uuid"`
	Name          string `json:"name"`
	PaymentMethod string `json:"payment_method"`
	Enable        bool   `json:"enable"`
}
