package balance

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrUserNotFound = errors.New("user not found")

// Source is the read-only record store a balance is derived from. All
// methods are scoped to one user.
type Source interface {
	UserExists(ctx context.Context, userID uint) (bool, error)
	ConfirmedDeposits(ctx context.Context, userID uint) ([]Entry, error)
	ApprovedRewards(ctx context.Context, userID uint) ([]Reward, error)
	ReservedWithdrawals(ctx context.Context, userID uint) ([]Entry, error)
	Adjustments(ctx context.Context, userID uint) ([]Adjustment, error)
}

// Engine computes user balances from a Source.
type Engine struct {
	Source    Source
	UnlockFee decimal.Decimal
	Logger    *zap.Logger
}

func NewEngine(source Source, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		Source:    source,
		UnlockFee: UnlockFee,
		Logger:    log,
	}
}

// ComputeBalance returns the user's current balance. It never returns a
// negative value and returns zero for a user without records.
func (e *Engine) ComputeBalance(ctx context.Context, userID uint) (decimal.Decimal, error) {
	b, err := e.Explain(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return b.Balance, nil
}

// Explain runs the same computation as ComputeBalance and returns every
// intermediate value.
func (e *Engine) Explain(ctx context.Context, userID uint) (*Breakdown, error) {
	exists, err := e.Source.UserExists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check user %d: %w", userID, err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	h, err := e.history(ctx, userID)
	if err != nil {
		return nil, err
	}

	b := Compute(h, e.UnlockFee)
	for _, s := range b.Skipped {
		e.Logger.Warn("data integrity: record ignored in balance",
			zap.Uint("user_id", userID),
			zap.String("kind", s.Kind),
			zap.Uint("id", s.ID),
			zap.String("reason", s.Reason),
		)
	}
	return &b, nil
}

func (e *Engine) history(ctx context.Context, userID uint) (History, error) {
	var (
		h   History
		err error
	)
	if h.Deposits, err = e.Source.ConfirmedDeposits(ctx, userID); err != nil {
		return h, fmt.Errorf("load deposits: %w", err)
	}
	if h.Rewards, err = e.Source.ApprovedRewards(ctx, userID); err != nil {
		return h, fmt.Errorf("load task rewards: %w", err)
	}
	if h.Withdrawals, err = e.Source.ReservedWithdrawals(ctx, userID); err != nil {
		return h, fmt.Errorf("load withdrawals: %w", err)
	}
	if h.Adjustments, err = e.Source.Adjustments(ctx, userID); err != nil {
		return h, fmt.Errorf("load adjustments: %w", err)
	}
	return h, nil
}
