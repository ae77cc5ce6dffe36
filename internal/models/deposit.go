package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DepositStatus string

const (
	DepositStatusPending   DepositStatus = "pending"
	DepositStatusConfirmed DepositStatus = "confirmed"
	DepositStatusRejected  DepositStatus = "rejected"
)

// CountsTowardBalance reports whether a deposit in this status is credited.
func (s DepositStatus) CountsTowardBalance() bool {
	return s == DepositStatusConfirmed
}

type Deposit struct {
	ID          uint            `gorm:"primarykey"`
	CreatedAt   time.Time       `gorm:"index"`
	UpdatedAt   time.Time
	UserID      uint            `gorm:"index;not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Status      DepositStatus   `gorm:"type:varchar(20);index;not null;default:'pending'"`
	ConfirmedAt *time.Time
}

// EffectiveAt is the instant a confirmed deposit is credited. Rows imported
// without a confirmation time fall back to CreatedAt.
func (d Deposit) EffectiveAt() time.Time {
	if d.ConfirmedAt != nil && !d.ConfirmedAt.IsZero() {
		return *d.ConfirmedAt
	}
	return d.CreatedAt
}
