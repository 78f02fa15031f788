package account

import (
	"errors"
	"net/http"
	"strconv"

	"mediavault-backend/internal/models"
	"mediavault-backend/internal/services"
	"mediavault-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

func paramUserID(c *gin.Context) (uint, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid user ID"))
		return 0, false
	}
	return uint(id), true
}

func operatorFrom(c *gin.Context) (uint, string) {
	if raw, exists := c.Get("user"); exists {
		if u, ok := raw.(models.User); ok {
			return u.ID, u.Username
		}
	}
	return 0, "admin"
}

// ListAccounts godoc
// @Summary List storage accounts
// @Description Get a paginated list of all storage accounts. Admin only.
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} utils.Response{data=account.AccountListResponse}
// @Failure 400 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /admin/accounts [get]
func ListAccounts(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid page number"))
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid limit number"))
		return
	}

	accounts, total, err := services.FindAccounts(page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to fetch accounts"))
		return
	}

	resp := AccountListResponse{
		Accounts: make([]AccountItem, 0, len(accounts)),
		Total:    total,
		Page:     page,
		Limit:    limit,
	}
	for i := range accounts {
		resp.Accounts = append(resp.Accounts, toAccountItem(&accounts[i]))
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Accounts retrieved successfully", resp))
}

// AdjustCredits godoc
// @Summary Adjust a user's credits
// @Description Apply a manual credit adjustment (positive or negative) with an audit entry. Admin only.
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "User ID"
// @Param input body AdjustCreditsInput true "Adjustment"
// @Success 200 {object} utils.Response{data=account.AccountItem}
// @Failure 400 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /admin/accounts/{id}/adjust [post]
func AdjustCredits(c *gin.Context) {
	userID, ok := paramUserID(c)
	if !ok {
		return
	}

	var input AdjustCreditsInput
	if !utils.BindAndValidate(c, &input) {
		return
	}

	operatorID, operatorName := operatorFrom(c)

	acct, err := services.AdminAdjustCredits(userID, input.Delta, input.Reason, operatorName, operatorID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAccountNotFound):
			c.JSON(http.StatusNotFound, utils.NewErrorResponse(http.StatusNotFound, "Account not found"))
		case errors.Is(err, services.ErrAccountInvariant):
			c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Adjustment would make the account negative"))
		default:
			c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to adjust credits"))
		}
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Credits adjusted successfully", toAccountItem(acct)))
}

// FreezeAccount godoc
// @Summary Freeze a user's account
// @Description Frozen accounts are rejected at admission for all spending operations. Admin only.
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "User ID"
// @Param input body FreezeInput true "Freeze reason"
// @Success 200 {object} utils.Response
// @Failure 400 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /admin/accounts/{id}/freeze [post]
func FreezeAccount(c *gin.Context) {
	userID, ok := paramUserID(c)
	if !ok {
		return
	}

	var input FreezeInput
	if !utils.BindAndValidate(c, &input) {
		return
	}

	operatorID, _ := operatorFrom(c)

	if err := services.FreezeAccount(userID, input.Reason, operatorID); err != nil {
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to freeze account"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Account frozen", nil))
}

// UnfreezeAccount godoc
// @Summary Unfreeze a user's account
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "User ID"
// @Success 200 {object} utils.Response
// @Failure 400 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /admin/accounts/{id}/unfreeze [post]
func UnfreezeAccount(c *gin.Context) {
	userID, ok := paramUserID(c)
	if !ok {
		return
	}

	if err := services.UnfreezeAccount(userID); err != nil {
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to unfreeze account"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Account unfrozen", nil))
}

// ReconcileAccount godoc
// @Summary Reconcile a user's ledger against their account counters
// @Description Compares the sum of ledger amounts with total minus spent. Admin only.
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "User ID"
// @Success 200 {object} utils.Response{data=services.ReconciliationReport}
// @Failure 400 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /admin/accounts/{id}/reconcile [get]
func ReconcileAccount(c *gin.Context) {
	userID, ok := paramUserID(c)
	if !ok {
		return
	}

	report, err := services.ReconcileAccount(userID)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, utils.NewErrorResponse(http.StatusNotFound, "Account not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to reconcile account"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Reconciliation complete", report))
}
