package models

import "time"

type UploadStatus string

const (
	UploadStatusPending  UploadStatus = "pending"
	UploadStatusComplete UploadStatus = "complete"
	UploadStatusFailed   UploadStatus = "failed"
)

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// Upload is one upload attempt. CreditsRequired is computed once at Begin and
// never recomputed; complete and failed are terminal states.
type Upload struct {
	ID              string       `gorm:"primarykey;type:varchar(32)"`
	UserID          uint         `gorm:"index;not null;uniqueIndex:uk_upload_user_idem,priority:1"`
	FileSizeBytes   int64        `gorm:"not null"`
	CreditsRequired int64        `gorm:"not null"`
	Status          UploadStatus `gorm:"type:varchar(20);index;default:'pending'"`
	IdempotencyKey  *string      `gorm:"type:varchar(64);uniqueIndex:uk_upload_user_idem,priority:2"`
	MediaType       MediaType    `gorm:"type:varchar(20);not null"`
	ContentID       string       `gorm:"type:varchar(128);index"` // opaque, set on completion
	CreatedAt       time.Time
	CompletedAt     *time.Time
}

// Terminal reports whether the upload reached a final state.
func (u *Upload) Terminal() bool {
	return u.Status == UploadStatusComplete || u.Status == UploadStatusFailed
}
