package upload

import (
	"errors"
	"net/http"
	"strconv"

	"mediavault-backend/internal/models"
	"mediavault-backend/internal/services"
	"mediavault-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

// writeAdmissionError maps admission and reservation failures to HTTP
// responses shared by the upload endpoints.
func writeAdmissionError(c *gin.Context, err error) bool {
	var insufficient *services.InsufficientCreditsError
	if errors.As(err, &insufficient) {
		c.JSON(http.StatusPaymentRequired, utils.NewResponse(http.StatusPaymentRequired, "Insufficient credits", gin.H{
			"required":  insufficient.Required,
			"available": insufficient.Available,
		}))
		return true
	}
	if errors.Is(err, services.ErrAccountFrozen) {
		c.JSON(http.StatusForbidden, utils.NewErrorResponse(http.StatusForbidden, "Account is frozen"))
		return true
	}
	var rateLimited *services.RateLimitError
	if errors.As(err, &rateLimited) {
		c.JSON(http.StatusTooManyRequests, utils.NewResponse(http.StatusTooManyRequests, "Rate limit exceeded", gin.H{
			"endpoint":    rateLimited.Endpoint,
			"retry_after": int64(rateLimited.RetryAfter.Seconds()),
		}))
		return true
	}
	var dailyLimited *services.DailyLimitError
	if errors.As(err, &dailyLimited) {
		c.JSON(http.StatusTooManyRequests, utils.NewResponse(http.StatusTooManyRequests, "Daily upload limit reached", gin.H{
			"media_type": string(dailyLimited.MediaType),
			"current":    dailyLimited.Current,
			"max":        dailyLimited.Max,
		}))
		return true
	}
	return false
}

// BeginUpload godoc
// @Summary Begin an upload
// @Description Reserve credits for an upload. Requests with the same idempotency key return the original reservation.
// @Tags uploads
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   input     body   BeginUploadInput  true  "Begin Upload Input"
// @Success 201 {object} utils.Response{data=upload.UploadResponse}
// @Failure 400 {object} utils.Response
// @Failure 402 {object} utils.Response
// @Failure 403 {object} utils.Response
// @Failure 429 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /uploads [post]
func BeginUpload(c *gin.Context) {
	var input BeginUploadInput
	if !utils.BindAndValidate(c, &input) {
		return
	}

	user := c.MustGet("user").(models.User)

	u, err := services.BeginUpload(user.ID, input.FileSizeBytes, models.MediaType(input.MediaType), input.IdempotencyKey)
	if err != nil {
		if writeAdmissionError(c, err) {
			return
		}
		if errors.Is(err, services.ErrInvalidFileSize) || errors.Is(err, services.ErrInvalidMediaType) {
			c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to begin upload"))
		return
	}

	c.JSON(http.StatusCreated, utils.NewSuccessResponse("Upload reserved", toUploadResponse(u)))
}

// FinalizeUpload godoc
// @Summary Finalize an upload
// @Description Convert the reservation into a charge and record the stored content ID. Retries return the original result.
// @Tags uploads
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id        path   string               true  "Upload ID"
// @Param   input     body   FinalizeUploadInput  true  "Finalize Upload Input"
// @Success 200 {object} utils.Response{data=upload.FinalizeUploadResponse}
// @Failure 400 {object} utils.Response
// @Failure 403 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 409 {object} utils.Response
// @Failure 429 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /uploads/{id}/finalize [post]
func FinalizeUpload(c *gin.Context) {
	var input FinalizeUploadInput
	if !utils.BindAndValidate(c, &input) {
		return
	}

	user := c.MustGet("user").(models.User)
	uploadID := c.Param("id")

	result, err := services.FinalizeUpload(user.ID, uploadID, input.ContentID)
	if err != nil {
		if writeAdmissionError(c, err) {
			return
		}
		switch {
		case errors.Is(err, services.ErrUploadNotFound):
			c.JSON(http.StatusNotFound, utils.NewErrorResponse(http.StatusNotFound, "Upload not found"))
		case errors.Is(err, services.ErrUploadAlreadyFailed):
			c.JSON(http.StatusConflict, utils.NewErrorResponse(http.StatusConflict, "Upload has already failed"))
		default:
			c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to finalize upload"))
		}
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Upload finalized", FinalizeUploadResponse{
		UploadID:       result.UploadID,
		ContentID:      result.ContentID,
		CreditsCharged: result.CreditsCharged,
		NewBalance:     result.NewBalance,
	}))
}

// FailUpload godoc
// @Summary Fail an upload
// @Description Release the reservation for an upload that did not complete. Retries return the original result.
// @Tags uploads
// @Produce  json
// @Security ApiKeyAuth
// @Param   id   path   string  true  "Upload ID"
// @Success 200 {object} utils.Response{data=upload.FailUploadResponse}
// @Failure 403 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 409 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /uploads/{id}/fail [post]
func FailUpload(c *gin.Context) {
	user := c.MustGet("user").(models.User)
	uploadID := c.Param("id")

	released, err := services.FailUpload(user.ID, uploadID)
	if err != nil {
		if writeAdmissionError(c, err) {
			return
		}
		switch {
		case errors.Is(err, services.ErrUploadNotFound):
			c.JSON(http.StatusNotFound, utils.NewErrorResponse(http.StatusNotFound, "Upload not found"))
		case errors.Is(err, services.ErrUploadAlreadyComplete):
			c.JSON(http.StatusConflict, utils.NewErrorResponse(http.StatusConflict, "Upload has already completed"))
		default:
			c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to fail upload"))
		}
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Upload failed, reservation released", FailUploadResponse{
		UploadID:        uploadID,
		CreditsReleased: released,
	}))
}

// GetUpload godoc
// @Summary Get an upload
// @Tags uploads
// @Produce  json
// @Security ApiKeyAuth
// @Param   id   path   string  true  "Upload ID"
// @Success 200 {object} utils.Response{data=upload.UploadResponse}
// @Failure 404 {object} utils.Response
// @Router /uploads/{id} [get]
func GetUpload(c *gin.Context) {
	user := c.MustGet("user").(models.User)
	uploadID := c.Param("id")

	u, err := services.GetUpload(user.ID, uploadID)
	if err != nil {
		if errors.Is(err, services.ErrUploadNotFound) {
			c.JSON(http.StatusNotFound, utils.NewErrorResponse(http.StatusNotFound, "Upload not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to get upload"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Upload retrieved", toUploadResponse(u)))
}

// ListUploads godoc
// @Summary List uploads for the current user
// @Tags uploads
// @Produce  json
// @Security ApiKeyAuth
// @Param   status  query  string  false  "Filter by status (pending, complete, failed)"
// @Param   page    query  int     false  "Page number"  default(1)
// @Param   limit   query  int     false  "Page size"    default(20)
// @Success 200 {object} utils.Response{data=upload.UploadListResponse}
// @Failure 500 {object} utils.Response
// @Router /uploads [get]
func ListUploads(c *gin.Context) {
	user := c.MustGet("user").(models.User)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var status *models.UploadStatus
	if s := c.Query("status"); s != "" {
		st := models.UploadStatus(s)
		status = &st
	}

	uploads, total, err := services.FindUploads(user.ID, status, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to list uploads"))
		return
	}

	resp := UploadListResponse{
		Uploads: make([]UploadResponse, 0, len(uploads)),
		Total:   total,
		Page:    page,
		Limit:   limit,
	}
	for i := range uploads {
		resp.Uploads = append(resp.Uploads, toUploadResponse(&uploads[i]))
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Uploads retrieved", resp))
}

// GetStorageToken godoc
// @Summary Get temporary storage credentials
// @Description Issue short-lived STS credentials for direct upload to the blob store
// @Tags uploads
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response{data=services.STSCredentials}
// @Failure 500 {object} utils.Response
// @Router /storage/token [get]
func GetStorageToken(c *gin.Context) {
	creds, err := services.GetStorageToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to get storage token"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Storage token issued", creds))
}
