package payment

import (
	"errors"
	"net/http"
	"strconv"

	"mediavault-backend/internal/models"
	"mediavault-backend/internal/services"
	"mediavault-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

// ListPaymentConfigs godoc
// @Summary List all payment configurations, including disabled ones
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response{data=[]payment.PaymentConfigResponse}
// @Failure 500 {object} utils.Response
// @Router /admin/payments/configs [get]
func ListPaymentConfigs(c *gin.Context) {
	configs, err := services.GetAllPaymentConfigs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to fetch payment configs"))
		return
	}

	var response []PaymentConfigResponse
	for _, conf := range configs {
		response = append(response, PaymentConfigResponse{
			ID:            conf.ID,
			UUID:          conf.UUID,
			Name:          conf.Name,
			PaymentMethod: conf.PaymentMethod,
			Enable:        conf.Enable,
		})
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Payment configs retrieved successfully", response))
}

// CreatePaymentConfig godoc
// @Summary Create a payment configuration
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param input body CreatePaymentConfigInput true "Payment Config"
// @Success 201 {object} utils.Response{data=payment.PaymentConfigResponse}
// @Failure 400 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /admin/payments/configs [post]
func CreatePaymentConfig(c *gin.Context) {
	var input CreatePaymentConfigInput
	if !utils.BindAndValidate(c, &input) {
		return
	}

	conf, err := services.CreatePaymentConfig(input.Name, input.PaymentMethod, input.Config, input.Enable)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to create payment config"))
		return
	}

	c.JSON(http.StatusCreated, utils.NewSuccessResponse("Payment config created", PaymentConfigResponse{
		ID:            conf.ID,
		UUID:          conf.UUID,
		Name:          conf.Name,
		PaymentMethod: conf.PaymentMethod,
		Enable:        conf.Enable,
	}))
}

// UpdatePaymentConfig godoc
// @Summary Update a payment configuration
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Config ID"
// @Param input body UpdatePaymentConfigInput true "Payment Config"
// @Success 200 {object} utils.Response{data=payment.PaymentConfigResponse}
// @Failure 400 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /admin/payments/configs/{id} [put]
func UpdatePaymentConfig(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid config ID"))
		return
	}

	var input UpdatePaymentConfigInput
	if !utils.BindAndValidate(c, &input) {
		return
	}

	conf, err := services.UpdatePaymentConfig(uint(id), input.Name, input.Config, input.Enable)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to update payment config"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Payment config updated", PaymentConfigResponse{
		ID:            conf.ID,
		UUID:          conf.UUID,
		Name:          conf.Name,
		PaymentMethod: conf.PaymentMethod,
		Enable:        conf.Enable,
	}))
}

// DeletePaymentConfig godoc
// @Summary Delete a payment configuration
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Config ID"
// @Success 200 {object} utils.Response
// @Failure 400 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /admin/payments/configs/{id} [delete]
func DeletePaymentConfig(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid config ID"))
		return
	}

	if err := services.DeletePaymentConfig(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to delete payment config"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Payment config deleted", nil))
}

// CompleteOrder godoc
// @Summary Manually complete a purchase order
// @Description Settle an order whose payment was confirmed out of band. Idempotent per external ID. Admin only.
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Order ID"
// @Param input body CompleteOrderInput true "External payment reference"
// @Success 200 {object} utils.Response
// @Failure 400 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 409 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /admin/payments/orders/{id}/complete [post]
func CompleteOrder(c *gin.Context) {
	orderID := c.Param("id")

	var input CompleteOrderInput
	if !utils.BindAndValidate(c, &input) {
		return
	}

	operatorID := uint(0)
	operatorName := "admin"
	if raw, exists := c.Get("user"); exists {
		if u, ok := raw.(models.User); ok {
			operatorID = u.ID
			operatorName = u.Username
		}
	}

	result, err := services.CompletePurchaseOrder(orderID, "manual", input.ExternalID, operatorID, operatorName)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, utils.NewErrorResponse(http.StatusNotFound, "Order not found"))
		case errors.Is(err, services.ErrOrderCancelled):
			c.JSON(http.StatusConflict, utils.NewErrorResponse(http.StatusConflict, "Order has been cancelled"))
		default:
			c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to complete order"))
		}
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Order completed", gin.H{
		"order_id":      orderID,
		"credits_added": result.Purchase.CreditsAdded,
		"new_balance":   result.NewBalance,
	}))
}

// CancelOrder godoc
// @Summary Cancel a pending purchase order
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Order ID"
// @Success 200 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 409 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /admin/payments/orders/{id}/cancel [post]
func CancelOrder(c *gin.Context) {
	orderID := c.Param("id")

	if err := services.CancelPurchaseOrder(orderID); err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, utils.NewErrorResponse(http.StatusNotFound, "Order not found"))
		case errors.Is(err, services.ErrOrderAlreadyPaid):
			c.JSON(http.StatusConflict, utils.NewErrorResponse(http.StatusConflict, "Order already paid"))
		default:
			c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to cancel order"))
		}
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Order cancelled", nil))
}
