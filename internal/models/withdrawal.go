package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"
	WithdrawalStatusRejected   WithdrawalStatus = "rejected"
)

// ReservedWithdrawalStatuses are the statuses that hold funds against the balance.
var ReservedWithdrawalStatuses = []WithdrawalStatus{
	WithdrawalStatusPending,
	WithdrawalStatusProcessing,
	WithdrawalStatusCompleted,
}

type Withdrawal struct {
	ID        uint             `gorm:"primarykey"`
	CreatedAt time.Time        `gorm:"index"`
	UpdatedAt time.Time
	UserID    uint             `gorm:"index;not null"`
	Amount    decimal.Decimal  `gorm:"type:decimal(20,2);not null"`
	Status    WithdrawalStatus `gorm:"type:varchar(20);index;not null;default:'pending'"`
}
