package purchase

import (
	"errors"
	"net/http"
	"strconv"

	"mediavault-backend/internal/models"
	"mediavault-backend/internal/services"
	"mediavault-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// GetPaymentMethods godoc
// @Summary List enabled payment methods
// @Tags purchases
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response{data=[]purchase.PaymentMethodResponse}
// @Failure 500 {object} utils.Response
// @Router /purchases/methods [get]
func (h *Handler) GetPaymentMethods(c *gin.Context) {
	methods, err := services.GetPaymentMethods()
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, err.Error()))
		return
	}

	var response []PaymentMethodResponse
	for _, m := range methods {
		response = append(response, PaymentMethodResponse{
			UUID: m.UUID,
			Type: m.PaymentMethod,
			Name: m.Name,
		})
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", response))
}

// CreateOrder godoc
// @Summary Create a credit purchase order
// @Tags purchases
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   input  body  CreateOrderInput  true  "Create Order Input"
// @Success 201 {object} utils.Response{data=purchase.OrderResponse}
// @Failure 400 {object} utils.Response
// @Failure 403 {object} utils.Response
// @Failure 429 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /purchases/orders [post]
func (h *Handler) CreateOrder(c *gin.Context) {
	var input CreateOrderInput
	if !utils.BindAndValidate(c, &input) {
		return
	}

	user := c.MustGet("user").(models.User)

	order, err := services.CreatePurchaseOrder(user.ID, input.Credits, input.PaymentMethodUUID, input.Remark)
	if err != nil {
		if errors.Is(err, services.ErrAccountFrozen) {
			c.JSON(http.StatusForbidden, utils.NewErrorResponse(http.StatusForbidden, "Account is frozen"))
			return
		}
		var rateLimited *services.RateLimitError
		if errors.As(err, &rateLimited) {
			c.JSON(http.StatusTooManyRequests, utils.NewResponse(http.StatusTooManyRequests, "Rate limit exceeded", gin.H{
				"endpoint":    rateLimited.Endpoint,
				"retry_after": int64(rateLimited.RetryAfter.Seconds()),
			}))
			return
		}
		if errors.Is(err, services.ErrInvalidCredits) {
			c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to create order"))
		return
	}

	c.JSON(http.StatusCreated, utils.NewSuccessResponse("Order created", toOrderResponse(order)))
}

// PayOrder godoc
// @Summary Get a payment jump URL for a pending order
// @Tags purchases
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id     path  string         true  "Order ID"
// @Param   input  body  PayOrderInput  true  "Pay Order Input"
// @Success 200 {object} utils.Response{data=purchase.PayOrderResponse}
// @Failure 400 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /purchases/orders/{id}/pay [post]
func (h *Handler) PayOrder(c *gin.Context) {
	var input PayOrderInput
	if !utils.BindAndValidate(c, &input) {
		return
	}

	orderID := c.Param("id")

	scheme := "http"
	if c.Request.TLS != nil || c.Request.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	notifyBaseURL := scheme + "://" + c.Request.Host + "/api/v1/purchases/notify"

	jumpURL, err := services.GetPaymentJumpURL(orderID, input.PaymentMethodUUID, input.PaymentChannel, notifyBaseURL, input.ReturnURL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("success", PayOrderResponse{
		OrderID: orderID,
		JumpURL: jumpURL,
	}))
}

// ListOrders godoc
// @Summary List the current user's purchase orders
// @Tags purchases
// @Produce  json
// @Security ApiKeyAuth
// @Param   page   query  int  false  "Page number"  default(1)
// @Param   limit  query  int  false  "Page size"    default(20)
// @Success 200 {object} utils.Response{data=purchase.OrderListResponse}
// @Failure 500 {object} utils.Response
// @Router /purchases/orders [get]
func (h *Handler) ListOrders(c *gin.Context) {
	user := c.MustGet("user").(models.User)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	orders, total, err := services.FindPurchaseOrders(user.ID, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to list orders"))
		return
	}

	resp := OrderListResponse{
		Orders: make([]OrderResponse, 0, len(orders)),
		Total:  total,
		Page:   page,
		Limit:  limit,
	}
	for i := range orders {
		resp.Orders = append(resp.Orders, toOrderResponse(&orders[i]))
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Orders retrieved", resp))
}

// Notify handles the asynchronous payment gateway callback. The gateway
// retries until it receives the literal body "success".
func (h *Handler) Notify(c *gin.Context) {
	uuid := c.Param("uuid")
	if uuid == "" {
		c.String(http.StatusBadRequest, "Missing UUID")
		return
	}

	params := make(map[string]interface{})
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	if c.Request.Method == "POST" {
		c.Request.ParseForm()
		for k, v := range c.Request.PostForm {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
	}

	if err := services.HandlePurchaseNotify(uuid, params); err != nil {
		// Settlement is idempotent, so a replayed callback still ends here
		// with success once the first one landed.
		if errors.Is(err, services.ErrOrderAlreadyPaid) {
			c.String(http.StatusOK, "success")
			return
		}
		c.String(http.StatusBadRequest, "Fail: "+err.Error())
		return
	}

	c.String(http.StatusOK, "success")
}
