package upload

import (
	"time"

	"mediavault-backend/internal/models"
)

type BeginUploadInput struct {
	FileSizeBytes  int64  `json:"file_size_bytes" binding:"required,gt=0"`
	MediaType      string `json:"media_type" binding:"required,oneof=image video"`
	IdempotencyKey string `json:"idempotency_key"`
}

type FinalizeUploadInput struct {
	ContentID string `json:"content_id" binding:"required"`
}

type UploadResponse struct {
	ID              string     `json:"id"`
	FileSizeBytes   int64      `json:"file_size_bytes"`
	CreditsRequired int64      `json:"credits_required"`
	Status          string     `json:"status"`
	MediaType       string     `json:"media_type"`
	ContentID       string     `json:"content_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

type FinalizeUploadResponse struct {
	UploadID       string `json:"upload_id"`
	ContentID      string `json:"content_id"`
	CreditsCharged int64  `json:"credits_charged"`
	NewBalance     int64  `json:"new_balance"`
}

type FailUploadResponse struct {
	UploadID        string `json:"upload_id"`
	CreditsReleased int64  `json:"credits_released"`
}

type UploadListResponse struct {
	Uploads []UploadResponse `json:"uploads"`
	Total   int64            `json:"total"`
	Page    int              `json:"page"`
	Limit   int              `json:"limit"`
}

func toUploadResponse(u *models.Upload) UploadResponse {
	return UploadResponse{
		ID:              u.ID,
		FileSizeBytes:   u.FileSizeBytes,
		CreditsRequired: u.CreditsRequired,
		Status:          string(u.Status),
		MediaType:       string(u.MediaType),
		ContentID:       u.ContentID,
		CreatedAt:       u.CreatedAt,
		CompletedAt:     u.CompletedAt,
	}
}
