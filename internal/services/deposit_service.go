package services

import (
	"context"
	"errors"
	"fmt"
	"taskreward-backend/internal/database"
	"taskreward-backend/internal/models"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrDepositNotFound         = errors.New("deposit not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// CreateDepositRequest describes a new deposit. CreatedAt is only set when
// importing historical records.
type CreateDepositRequest struct {
	UserID    uint                 `validate:"required"`
	Amount    decimal.Decimal      `validate:"gt=0"`
	Status    models.DepositStatus `validate:"omitempty,oneof=pending confirmed"`
	CreatedAt time.Time
}

// CreateDeposit records a deposit. A deposit created as confirmed is
// credited in the same balance cycle.
func CreateDeposit(ctx context.Context, req CreateDepositRequest) (*models.Deposit, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.Status == "" {
		req.Status = models.DepositStatusPending
	}

	deposit := &models.Deposit{
		UserID:    req.UserID,
		Amount:    req.Amount,
		Status:    req.Status,
		CreatedAt: req.CreatedAt,
	}
	create := func(tx *gorm.DB) error {
		d := *deposit
		if d.Status == models.DepositStatusConfirmed {
			// Imported history keeps its original time on the balance timeline.
			confirmedAt := req.CreatedAt
			if confirmedAt.IsZero() {
				confirmedAt = time.Now()
			}
			d.ConfirmedAt = &confirmedAt
		}
		if err := tx.Create(&d).Error; err != nil {
			return err
		}
		*deposit = d
		return nil
	}

	if !req.Status.CountsTowardBalance() {
		if _, err := FindUserByID(req.UserID); err != nil {
			return nil, err
		}
		if err := create(database.DB.WithContext(ctx)); err != nil {
			return nil, err
		}
		return deposit, nil
	}

	_, err := runBalanceCycle(ctx, req.UserID, balanceChange{
		Type:   models.TransactionTypeDeposit,
		Reason: "deposit confirmed",
	}, create)
	if err != nil {
		return nil, err
	}
	return deposit, nil
}

// ConfirmDeposit moves a pending deposit to confirmed and credits it.
func ConfirmDeposit(ctx context.Context, depositID uint, operator string) (*models.Deposit, error) {
	return transitionDeposit(ctx, depositID, models.DepositStatusConfirmed, operator)
}

// RejectDeposit moves a pending deposit to rejected.
func RejectDeposit(ctx context.Context, depositID uint, operator string) (*models.Deposit, error) {
	return transitionDeposit(ctx, depositID, models.DepositStatusRejected, operator)
}

func transitionDeposit(ctx context.Context, depositID uint, to models.DepositStatus, operator string) (*models.Deposit, error) {
	userID, err := ownerOf(ctx, &models.Deposit{}, depositID, ErrDepositNotFound)
	if err != nil {
		return nil, err
	}

	var deposit models.Deposit
	_, err = runBalanceCycle(ctx, userID, balanceChange{
		Type:     models.TransactionTypeDeposit,
		Reason:   fmt.Sprintf("deposit #%d %s", depositID, to),
		Operator: operator,
	}, func(tx *gorm.DB) error {
		if err := tx.First(&deposit, depositID).Error; err != nil {
			return err
		}
		if deposit.Status != models.DepositStatusPending {
			return fmt.Errorf("%w: deposit #%d is %s", ErrInvalidStatusTransition, depositID, deposit.Status)
		}

		updates := map[string]interface{}{"status": to}
		if to == models.DepositStatusConfirmed {
			now := time.Now()
			updates["confirmed_at"] = now
			deposit.ConfirmedAt = &now
		}
		deposit.Status = to
		return tx.Model(&models.Deposit{}).Where("id = ?", depositID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &deposit, nil
}

// ownerOf returns the user a record belongs to so the caller can take that
// user's balance lock before touching the record.
func ownerOf(ctx context.Context, model interface{}, id uint, notFound error) (uint, error) {
	var owners []uint
	if err := database.DB.WithContext(ctx).Model(model).Where("id = ?", id).Pluck("user_id", &owners).Error; err != nil {
		return 0, err
	}
	if len(owners) == 0 {
		return 0, notFound
	}
	return owners[0], nil
}
