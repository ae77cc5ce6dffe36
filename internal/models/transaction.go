package models

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TransactionType string

const (
	TransactionTypeReconcile       TransactionType = "reconcile"
	TransactionTypeAdminAdjustment TransactionType = "admin_adjustment"
	TransactionTypeDeposit         TransactionType = "deposit"
	TransactionTypeWithdrawal      TransactionType = "withdrawal"
	TransactionTypeTaskReward      TransactionType = "task_reward"
)

// Transaction is one entry of the balance ledger. Every write of User.Balance
// that changes its value appends one.
type Transaction struct {
	ID            uint            `gorm:"primarykey"`
	CreatedAt     time.Time       `gorm:"precision:3"` // Millisecond precision
	UserID        uint            `gorm:"index;not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Reason        string          `gorm:"type:text"`
	Operator      string          `gorm:"type:varchar(100)"` // Username or 'system'
	OperatorID    uint            `gorm:"index;default:0"`   // 0 for system
	Type          TransactionType `gorm:"type:varchar(50);index;default:'reconcile'"`
	Breakdown     datatypes.JSON  `gorm:"type:json"`
	Hash          string          `gorm:"type:varchar(64);default:''"` // HMAC SHA256
}

// GenerateHash generates a tamper-proof hash for the transaction
func (t *Transaction) GenerateHash(secret string) string {
	data := fmt.Sprintf("%d|%d|%s|%s|%s|%s|%s|%s|%d",
		t.UserID, t.CreatedAt.UnixNano(), t.Amount.StringFixed(2), t.BalanceBefore.StringFixed(2),
		t.BalanceAfter.StringFixed(2), t.Reason, t.Operator, t.Type, t.OperatorID)
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyHash reports whether the stored hash matches the entry's content.
func (t *Transaction) VerifyHash(secret string) bool {
	return hmac.Equal([]byte(t.Hash), []byte(t.GenerateHash(secret)))
}
