package ledger

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mediavault-backend/internal/models"
	"mediavault-backend/internal/services"
	"mediavault-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

func filterFromQuery(c *gin.Context) (services.LedgerFilter, bool) {
	var filter services.LedgerFilter

	if userIDStr, exists := c.GetQuery("user_id"); exists {
		userID, err := strconv.Atoi(userIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid user_id"))
			return filter, false
		}
		uid := uint(userID)
		filter.UserID = &uid
	}

	if typeStr, exists := c.GetQuery("type"); exists {
		t := models.LedgerEntryType(typeStr)
		filter.Type = &t
	}

	if refStr, exists := c.GetQuery("reference"); exists {
		filter.Reference = &refStr
	}

	if startTimeStr, exists := c.GetQuery("start_time"); exists {
		startTime, err := time.Parse(time.RFC3339, startTimeStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid start_time format"))
			return filter, false
		}
		filter.StartTime = &startTime
	}

	if endTimeStr, exists := c.GetQuery("end_time"); exists {
		endTime, err := time.Parse(time.RFC3339, endTimeStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid end_time format"))
			return filter, false
		}
		filter.EndTime = &endTime
	}

	return filter, true
}

// ListLedgerEntries godoc
// @Summary List ledger entries
// @Description Get a paginated list of credit ledger entries with filtering. Admin only.
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param user_id query int false "Filter by user ID"
// @Param type query string false "Filter by entry type"
// @Param reference query string false "Filter by reference"
// @Param start_time query string false "Filter by start time (RFC3339)"
// @Param end_time query string false "Filter by end time (RFC3339)"
// @Success 200 {object} utils.Response{data=ledger.LedgerListResponse}
// @Failure 400 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /admin/ledger [get]
func ListLedgerEntries(c *gin.Context) {
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

	filter, ok := filterFromQuery(c)
	if !ok {
		return
	}
	filter.Page = page
	filter.Limit = limit

	entries, total, err := services.FindLedgerEntries(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to fetch ledger entries"))
		return
	}

	items := make([]LedgerEntryItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, LedgerEntryItem{
			ID:            e.ID,
			CreatedAt:     e.CreatedAt,
			UserID:        e.UserID,
			Type:          e.Type,
			Amount:        e.Amount,
			BalanceBefore: e.BalanceBefore,
			BalanceAfter:  e.BalanceAfter,
			Reference:     e.Reference,
			Operator:      e.Operator,
			Hash:          e.Hash,
		})
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Ledger entries retrieved successfully", LedgerListResponse{
		Entries: items,
		Total:   total,
		Page:    page,
		Limit:   limit,
	}))
}

// ExportLedger godoc
// @Summary Export ledger entries
// @Description Export ledger entries to CSV. Admin only.
// @Tags admin
// @Produce text/csv
// @Security ApiKeyAuth
// @Param user_id query int false "Filter by user ID"
// @Param type query string false "Filter by entry type"
// @Param start_time query string false "Filter by start time (RFC3339)"
// @Param end_time query string false "Filter by end time (RFC3339)"
// @Success 200 {string} string "CSV content"
// @Failure 400 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /admin/ledger/export [get]
func ExportLedger(c *gin.Context) {
	filter, ok := filterFromQuery(c)
	if !ok {
		return
	}

	csvContent, err := services.ExportLedgerCSV(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to generate CSV"))
		return
	}

	filename := fmt.Sprintf("ledger_%s.csv", time.Now().Format("20060102150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "text/csv", csvContent)
}
