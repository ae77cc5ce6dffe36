package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AdjustmentOperation string

const (
	AdjustmentOperationSet AdjustmentOperation = "set"
	AdjustmentOperationAdd AdjustmentOperation = "add"
)

// AdminAdjustment is a manual override made by an administrator. A "set"
// adjustment that is the user's latest one acts as a balance checkpoint.
type AdminAdjustment struct {
	ID         uint                `gorm:"primarykey"`
	CreatedAt  time.Time           `gorm:"index"`
	UserID     uint                `gorm:"index;not null"`
	Operation  AdjustmentOperation `gorm:"type:varchar(10);not null"`
	Amount     decimal.Decimal     `gorm:"type:decimal(20,2);not null;default:0"`
	NewBalance decimal.Decimal     `gorm:"type:decimal(20,2);not null;default:0"`
	Reason     string              `gorm:"type:text"`
	Operator   string              `gorm:"type:varchar(100)"`
	OperatorID uint                `gorm:"default:0"`
}
