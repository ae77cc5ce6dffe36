package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"taskreward-backend/config"
	"taskreward-backend/internal/balance"
	"taskreward-backend/internal/database"
	"taskreward-backend/internal/models"
	"taskreward-backend/internal/userlock"
	"taskreward-backend/pkg/logger"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound    = balance.ErrUserNotFound
	ErrBalanceConflict = errors.New("balance was modified concurrently, retry the operation")
)

var (
	// Locker serializes balance cycles per user. Configure swaps in the
	// Redis-backed chain when Redis is available.
	Locker userlock.Locker = userlock.NewKeyedMutex()

	MaxReconcileRetries = 3
	LedgerSecret        = "default-secret"
)

// Configure applies runtime settings. Call it after the database and Redis
// connections are established.
func Configure(cfg *config.Config) {
	MaxReconcileRetries = cfg.ReconcileMaxRetries
	LedgerSecret = cfg.LedgerSecret

	local := userlock.NewKeyedMutex()
	if database.RedisClient != nil {
		Locker = userlock.Chain{local, userlock.NewRedisLocker(database.RedisClient, cfg.LockTTL)}
		return
	}
	Locker = local
}

// ReconcileResult describes one write of a user's cached balance.
type ReconcileResult struct {
	UserID    uint               `json:"user_id"`
	Before    decimal.Decimal    `json:"before"`
	After     decimal.Decimal    `json:"after"`
	Changed   bool               `json:"changed"`
	Breakdown *balance.Breakdown `json:"breakdown"`
}

// balanceChange labels the ledger entry a cycle writes.
type balanceChange struct {
	Type       models.TransactionType
	Reason     string
	Operator   string
	OperatorID uint
}

func newEngine(db *gorm.DB) *balance.Engine {
	return balance.NewEngine(NewBalanceSource(db), logger.L())
}

// ComputeUserBalance derives the user's balance without writing anything.
func ComputeUserBalance(ctx context.Context, userID uint) (decimal.Decimal, error) {
	return newEngine(database.DB).ComputeBalance(ctx, userID)
}

// ExplainUserBalance derives the user's balance with its intermediates.
func ExplainUserBalance(ctx context.Context, userID uint) (*balance.Breakdown, error) {
	return newEngine(database.DB).Explain(ctx, userID)
}

// ReconcileUserBalance recomputes the user's balance and saves it as the
// cached value.
func ReconcileUserBalance(ctx context.Context, userID uint, operator string) (*ReconcileResult, error) {
	return runBalanceCycle(ctx, userID, balanceChange{
		Type:     models.TransactionTypeReconcile,
		Reason:   "balance reconciliation",
		Operator: operator,
	}, nil)
}

// runBalanceCycle holds the user's lock while it applies mutate and rewrites
// the cached balance in one transaction. Version conflicts rerun the whole
// transaction, mutate included.
func runBalanceCycle(ctx context.Context, userID uint, change balanceChange, mutate func(tx *gorm.DB) error) (*ReconcileResult, error) {
	unlock, err := Locker.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lock balance of user %d: %w", userID, err)
	}
	defer unlock()

	log := logger.L().With(zap.Uint("user_id", userID), zap.String("type", string(change.Type)))

	for attempt := 1; ; attempt++ {
		result, err := balanceCycleOnce(ctx, userID, change, mutate)
		if err == nil {
			invalidateUserCache(userID)
			if result.Changed {
				log.Info("balance updated",
					zap.String("balance_before", result.Before.StringFixed(2)),
					zap.String("balance_after", result.After.StringFixed(2)),
					zap.Int("attempt", attempt),
				)
			}
			return result, nil
		}
		if !errors.Is(err, ErrBalanceConflict) || attempt >= MaxReconcileRetries {
			return nil, err
		}
		log.Warn("balance write conflict, retrying", zap.Int("attempt", attempt))
	}
}

func balanceCycleOnce(ctx context.Context, userID uint, change balanceChange, mutate func(tx *gorm.DB) error) (*ReconcileResult, error) {
	var result *ReconcileResult

	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if mutate != nil {
			if err := mutate(tx); err != nil {
				return err
			}
		}

		breakdown, err := newEngine(tx).Explain(ctx, userID)
		if err != nil {
			return err
		}

		now := time.Now()
		before := user.Balance
		after := breakdown.Balance.Round(2)

		res := tx.Model(&models.User{}).
			Where("id = ? AND version = ?", user.ID, user.Version).
			Updates(map[string]interface{}{
				"balance":           after,
				"version":           user.Version + 1,
				"balance_synced_at": now,
				"updated_at":        now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrBalanceConflict
		}

		result = &ReconcileResult{
			UserID:    userID,
			Before:    before,
			After:     after,
			Changed:   !before.Equal(after),
			Breakdown: breakdown,
		}
		if !result.Changed {
			return nil
		}
		return appendLedgerEntry(tx, result, change, now)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func appendLedgerEntry(tx *gorm.DB, result *ReconcileResult, change balanceChange, at time.Time) error {
	detail, err := json.Marshal(result.Breakdown)
	if err != nil {
		return fmt.Errorf("encode breakdown: %w", err)
	}

	operator := change.Operator
	if operator == "" {
		operator = "system"
	}
	entry := models.Transaction{
		CreatedAt:     at.Truncate(time.Millisecond),
		UserID:        result.UserID,
		Amount:        result.After.Sub(result.Before),
		BalanceBefore: result.Before,
		BalanceAfter:  result.After,
		Reason:        change.Reason,
		Operator:      operator,
		OperatorID:    change.OperatorID,
		Type:          change.Type,
		Breakdown:     datatypes.JSON(detail),
	}
	entry.Hash = entry.GenerateHash(LedgerSecret)

	return tx.Create(&entry).Error
}
