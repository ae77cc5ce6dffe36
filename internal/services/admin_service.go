package services

import (
	"context"
	"fmt"
	"taskreward-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AdjustBalanceRequest is an administrator override. For SetBalance Amount
// is the new balance; for AddBalance it is the signed delta.
type AdjustBalanceRequest struct {
	UserID     uint            `validate:"required"`
	Amount     decimal.Decimal
	Reason     string          `validate:"required"`
	Operator   string          `validate:"required"`
	OperatorID uint
}

// SetBalance checkpoints the user's balance at req.Amount. Later activity
// adjusts the balance from this checkpoint.
func SetBalance(ctx context.Context, req AdjustBalanceRequest) (*ReconcileResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: balance cannot be negative", ErrInvalidInput)
	}

	return runBalanceCycle(ctx, req.UserID, adminChange(req, "set"), func(tx *gorm.DB) error {
		return tx.Create(&models.AdminAdjustment{
			UserID:     req.UserID,
			Operation:  models.AdjustmentOperationSet,
			Amount:     req.Amount,
			NewBalance: req.Amount,
			Reason:     req.Reason,
			Operator:   req.Operator,
			OperatorID: req.OperatorID,
		}).Error
	})
}

// AddBalance credits or debits req.Amount. It is stored as a checkpoint at
// the derived balance plus the delta, floored at zero.
func AddBalance(ctx context.Context, req AdjustBalanceRequest) (*ReconcileResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.Amount.IsZero() {
		return nil, fmt.Errorf("%w: amount must not be zero", ErrInvalidInput)
	}

	return runBalanceCycle(ctx, req.UserID, adminChange(req, "add"), func(tx *gorm.DB) error {
		current, err := newEngine(tx).ComputeBalance(ctx, req.UserID)
		if err != nil {
			return err
		}
		target := current.Add(req.Amount)
		if target.IsNegative() {
			target = decimal.Zero
		}

		return tx.Create(&models.AdminAdjustment{
			UserID:     req.UserID,
			Operation:  models.AdjustmentOperationSet,
			Amount:     req.Amount,
			NewBalance: target,
			Reason:     fmt.Sprintf("add %s: %s", req.Amount.StringFixed(2), req.Reason),
			Operator:   req.Operator,
			OperatorID: req.OperatorID,
		}).Error
	})
}

func adminChange(req AdjustBalanceRequest, op string) balanceChange {
	return balanceChange{
		Type:       models.TransactionTypeAdminAdjustment,
		Reason:     fmt.Sprintf("admin %s %s: %s", op, req.Amount.StringFixed(2), req.Reason),
		Operator:   req.Operator,
		OperatorID: req.OperatorID,
	}
}
