package account

import (
	"errors"
	"net/http"

	"mediavault-backend/config"
	"mediavault-backend/internal/models"
	"mediavault-backend/internal/services"
	"mediavault-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

type DailyUsageResponse struct {
	Day        string `json:"day"`
	ImageCount int    `json:"image_count"`
	VideoCount int    `json:"video_count"`
	ImageMax   int    `json:"image_max"`
	VideoMax   int    `json:"video_max"`
}

// GetSummary godoc
// @Summary Get the current user's storage account summary
// @Description Balances are reported in GB only; raw credit counts are not exposed.
// @Tags account
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response{data=services.AccountSummary}
// @Failure 404 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /account/summary [get]
func GetSummary(c *gin.Context) {
	user := c.MustGet("user").(models.User)

	summary, err := services.GetAccountSummary(user.ID)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, utils.NewErrorResponse(http.StatusNotFound, "Account not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to get account summary"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Account summary retrieved", summary))
}

// GetDailyUsage godoc
// @Summary Get the current user's upload counts for today
// @Tags account
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response{data=account.DailyUsageResponse}
// @Failure 500 {object} utils.Response
// @Router /account/usage/daily [get]
func GetDailyUsage(c *gin.Context) {
	user := c.MustGet("user").(models.User)

	usage, err := services.DailyUsageFor(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to get daily usage"))
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to load configuration"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Daily usage retrieved", DailyUsageResponse{
		Day:        usage.Day,
		ImageCount: usage.ImageCount,
		VideoCount: usage.VideoCount,
		ImageMax:   cfg.DailyImageCap,
		VideoMax:   cfg.DailyVideoCap,
	}))
}
