package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	Role      string    `gorm:"not null;default:'user'" json:"role"`
	Version   int       `gorm:"default:1" json:"version"`

	// Balance caches the derived balance. Only the reconcile path writes it.
	Balance         decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	BalanceSyncedAt *time.Time      `json:"balance_synced_at,omitempty"`
}
