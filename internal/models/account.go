package models

import "time"

// Account holds the live credit balance for one user. All four counters are
// credits, never bytes. Mutated only through the account service protocols;
// balance >= reserved >= 0 and spent >= 0 must hold after every write.
type Account struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    uint  `gorm:"uniqueIndex;not null"`
	Balance   int64 `gorm:"not null;default:0"` // available to reserve
	Total     int64 `gorm:"not null;default:0"` // lifetime credits granted
	Spent     int64 `gorm:"not null;default:0"` // lifetime credits charged
	Reserved  int64 `gorm:"not null;default:0"` // held by open uploads
	Version   int   `gorm:"default:1"`
}

// AccountStatus is the administrative freeze gate. A missing row means the
// account is not frozen.
type AccountStatus struct {
	ID           uint `gorm:"primarykey"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	UserID       uint   `gorm:"uniqueIndex;not null"`
	IsFrozen     bool   `gorm:"not null;default:false"`
	FreezeReason string `gorm:"type:text"`
	FrozenAt     *time.Time
	FrozenBy     uint `gorm:"default:0"` // admin user ID, 0 for system
}
