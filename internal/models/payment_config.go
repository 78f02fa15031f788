package models

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentConfig is one configured payment provider. The webhook route carries
// the UUID so a notify can be matched to its signing key.
type PaymentConfig struct {
	ID            uint           `gorm:"primarykey"`
	UUID          string         `gorm:"uniqueIndex;type:varchar(36);not null"`
	Name          string         `gorm:"type:varchar(100);not null;default:'Payment Method'"` // Display name
	PaymentMethod string         `gorm:"type:varchar(50);not null"`                           // e.g., "epay"
	Config        datatypes.JSON `gorm:"type:json;not null"`
	Enable        bool           `gorm:"default:true"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
