package services

import (
	"context"
	"errors"
	"fmt"
	"taskreward-backend/internal/models"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrWithdrawalNotFound  = errors.New("withdrawal not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// withdrawalTransitions lists the statuses each status may move to.
var withdrawalTransitions = map[models.WithdrawalStatus][]models.WithdrawalStatus{
	models.WithdrawalStatusPending:    {models.WithdrawalStatusProcessing, models.WithdrawalStatusCompleted, models.WithdrawalStatusRejected},
	models.WithdrawalStatusProcessing: {models.WithdrawalStatusCompleted, models.WithdrawalStatusRejected},
}

type WithdrawalRequest struct {
	UserID    uint            `validate:"required"`
	Amount    decimal.Decimal `validate:"gt=0"`
	CreatedAt time.Time
}

// RequestWithdrawal reserves amount against the user's balance. The balance
// is derived inside the same locked transaction that inserts the request.
func RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (*models.Withdrawal, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var withdrawal models.Withdrawal
	_, err := runBalanceCycle(ctx, req.UserID, balanceChange{
		Type:   models.TransactionTypeWithdrawal,
		Reason: "withdrawal requested",
	}, func(tx *gorm.DB) error {
		available, err := newEngine(tx).ComputeBalance(ctx, req.UserID)
		if err != nil {
			return err
		}
		if req.Amount.GreaterThan(available) {
			return fmt.Errorf("%w: requested %s, available %s",
				ErrInsufficientBalance, req.Amount.StringFixed(2), available.StringFixed(2))
		}

		withdrawal = models.Withdrawal{
			UserID:    req.UserID,
			Amount:    req.Amount,
			Status:    models.WithdrawalStatusPending,
			CreatedAt: req.CreatedAt,
		}
		return tx.Create(&withdrawal).Error
	})
	if err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

func StartProcessingWithdrawal(ctx context.Context, withdrawalID uint, operator string) (*models.Withdrawal, error) {
	return transitionWithdrawal(ctx, withdrawalID, models.WithdrawalStatusProcessing, operator)
}

func CompleteWithdrawal(ctx context.Context, withdrawalID uint, operator string) (*models.Withdrawal, error) {
	return transitionWithdrawal(ctx, withdrawalID, models.WithdrawalStatusCompleted, operator)
}

// RejectWithdrawal releases the funds the withdrawal reserved.
func RejectWithdrawal(ctx context.Context, withdrawalID uint, operator string) (*models.Withdrawal, error) {
	return transitionWithdrawal(ctx, withdrawalID, models.WithdrawalStatusRejected, operator)
}

func transitionWithdrawal(ctx context.Context, withdrawalID uint, to models.WithdrawalStatus, operator string) (*models.Withdrawal, error) {
	userID, err := ownerOf(ctx, &models.Withdrawal{}, withdrawalID, ErrWithdrawalNotFound)
	if err != nil {
		return nil, err
	}

	var withdrawal models.Withdrawal
	_, err = runBalanceCycle(ctx, userID, balanceChange{
		Type:     models.TransactionTypeWithdrawal,
		Reason:   fmt.Sprintf("withdrawal #%d %s", withdrawalID, to),
		Operator: operator,
	}, func(tx *gorm.DB) error {
		if err := tx.First(&withdrawal, withdrawalID).Error; err != nil {
			return err
		}
		if !canTransitionWithdrawal(withdrawal.Status, to) {
			return fmt.Errorf("%w: withdrawal #%d is %s", ErrInvalidStatusTransition, withdrawalID, withdrawal.Status)
		}
		withdrawal.Status = to
		return tx.Model(&models.Withdrawal{}).Where("id = ?", withdrawalID).Update("status", to).Error
	})
	if err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

func canTransitionWithdrawal(from, to models.WithdrawalStatus) bool {
	for _, next := range withdrawalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
